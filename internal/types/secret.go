package types

// redactedPlaceholder replaces secret values in any formatted output.
const redactedPlaceholder = "[REDACTED]"

var redactedJSON = []byte(`"` + redactedPlaceholder + `"`)

// SecretString is a string type for sensitive configuration values
// (connection strings, API keys). Formatting or JSON-encoding a SecretString
// yields a redacted placeholder; code that genuinely needs the raw value must
// call Unmask.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value of the secret. Usage should be
// limited to constructing connection strings and authorization headers.
func (s SecretString) Unmask() string {
	return string(s)
}
