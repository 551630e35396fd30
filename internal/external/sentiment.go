package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"perfpulse/internal/config"
	"perfpulse/internal/types"
)

// sentimentUserAgent identifies PerfPulse to the sentiment service.
const sentimentUserAgent = "perfpulse-sentiment-client/1.0"

// SentimentScore is one scored piece of feedback text. Score is in [-1, 1];
// Label is the service's coarse classification (positive, neutral,
// constructive).
type SentimentScore struct {
	Score float64 `json:"sentiment_score"`
	Label string  `json:"label"`
}

// SentimentClient calls the sentiment scoring sidecar service used by the
// feedback ingest path. Aggregation reads stored scores and never calls the
// service directly.
type SentimentClient struct {
	base    *BaseClient
	baseURL string
	apiKey  types.SecretString
	logger  *slog.Logger
}

// NewSentimentClient creates a SentimentClient from the sentiment service
// configuration. Callers should check cfg.Enabled() first; scoring with an
// unconfigured client returns an upstream error.
func NewSentimentClient(cfg config.SentimentConfig, logger *slog.Logger, opts ...BaseClientOption) *SentimentClient {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &SentimentClient{
		base:    NewBaseClient(httpClient, "sentiment", DefaultRetryPolicy(), sentimentUserAgent, opts...),
		baseURL: cfg.BaseURL,
		apiKey:  types.SecretString(cfg.APIKey),
		logger:  logger,
	}
}

type scoreRequest struct {
	Text string `json:"text"`
}

// Score sends one feedback text to the sentiment service and returns its
// score. Failures map to upstream_sentiment_unavailable.
func (c *SentimentClient) Score(ctx context.Context, text string) (SentimentScore, error) {
	if c.baseURL == "" {
		return SentimentScore{}, types.NewAppError(
			types.ErrCodeUpstreamSentiment,
			"sentiment service is not configured",
			nil,
		)
	}

	body, err := json.Marshal(scoreRequest{Text: text})
	if err != nil {
		return SentimentScore{}, types.NewAppError(
			types.ErrCodeUpstreamSentiment,
			"failed to encode sentiment request",
			err,
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sentiment", bytes.NewReader(body))
	if err != nil {
		return SentimentScore{}, types.NewAppError(
			types.ErrCodeUpstreamSentiment,
			"failed to build sentiment request",
			err,
		)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := c.apiKey.Unmask(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return SentimentScore{}, types.NewAppError(
			types.ErrCodeUpstreamSentiment,
			"sentiment service request failed",
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain for connection reuse.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return SentimentScore{}, types.NewAppError(
			types.ErrCodeUpstreamSentiment,
			fmt.Sprintf("sentiment service returned %d", resp.StatusCode),
			nil,
		)
	}

	var score SentimentScore
	if err := json.NewDecoder(resp.Body).Decode(&score); err != nil {
		return SentimentScore{}, types.NewAppError(
			types.ErrCodeUpstreamSentiment,
			"failed to decode sentiment response",
			err,
		)
	}

	// Stored scores are bounded to [-1, 1].
	if score.Score > 1 {
		score.Score = 1
	} else if score.Score < -1 {
		score.Score = -1
	}

	return score, nil
}
