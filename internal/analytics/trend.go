package analytics

import (
	"fmt"
	"math"

	"perfpulse/internal/types"
)

// Direction classification thresholds.
const (
	// volatilityRSquared is the R-squared floor below which a series is
	// classified volatile regardless of slope.
	volatilityRSquared = 0.3

	// flatnessSlope is the slope magnitude below which a non-volatile series
	// is classified stable.
	flatnessSlope = 0.01
)

// Pattern detection thresholds.
const (
	seasonalityMinPeaks     = 3
	seasonalityVarianceFrac = 0.2
	cyclicalReversalFrac    = 0.4
	anomalyStdDevs          = 2.0
	sustainedDeltaFrac      = 0.7
)

// Moving average windows, clipped to the series length.
const (
	maWindowShort  = 7
	maWindowMedium = 30
	maWindowLong   = 90
)

// forecastConfidenceDecay is the per-period confidence loss applied to the
// regression R-squared when extrapolating.
const forecastConfidenceDecay = 0.1

// TrendAnalyzer derives direction, strength, patterns, growth rates, a
// forecast, and narrative output from one named metric's series. Analysis is
// stateless and never fails on a short series; it degrades (fewer growth
// rates, moving averages over fewer points) instead. Only an empty series is
// an error.
type TrendAnalyzer struct{}

// NewTrendAnalyzer creates a TrendAnalyzer.
func NewTrendAnalyzer() *TrendAnalyzer {
	return &TrendAnalyzer{}
}

// Analyze produces the TrendResult for a series. The category steers
// narrative template selection; pass the metric's canonical category from
// types.MetricCategoryOf when in doubt.
func (t *TrendAnalyzer) Analyze(series types.Series, category types.MetricCategory) (*types.TrendResult, error) {
	values := series.Values()
	if len(values) == 0 {
		return nil, types.NewAppError(
			types.ErrCodeValidationEmptySeries,
			"trend analysis requires a non-empty series",
			nil,
		)
	}

	reg := regress(values)
	direction := classifyDirection(reg)
	strength := trendStrength(reg, values)

	current := values[len(values)-1]
	previous := current
	if len(values) > 1 {
		previous = values[len(values)-2]
	}

	result := &types.TrendResult{
		MetricName: series.MetricName,
		Category:   category,

		Direction: direction,
		Strength:  strength,
		Slope:     reg.slope,
		RSquared:  reg.rSquared,

		CurrentValue:  current,
		PreviousValue: previous,
		Change:        current - previous,
		PercentChange: round2(percentChange(current, previous)),

		MovingAvg7:  round2(movingAverage(values, maWindowShort)),
		MovingAvg30: round2(movingAverage(values, maWindowMedium)),
		MovingAvg90: round2(movingAverage(values, maWindowLong)),

		Growth:   growthRates(values, series.PeriodType),
		Forecast: forecast(values, reg, 1),

		Patterns: detectPatterns(values),
	}

	result.Interpretation = interpret(result)
	result.Recommendations = recommend(result)
	return result, nil
}

// ForecastAhead extrapolates the series the given number of periods ahead.
// Confidence decays with distance and the forecast value is floored at zero.
func (t *TrendAnalyzer) ForecastAhead(series types.Series, periodsAhead int) (types.Forecast, error) {
	values := series.Values()
	if len(values) == 0 {
		return types.Forecast{}, types.NewAppError(
			types.ErrCodeValidationEmptySeries,
			"forecast requires a non-empty series",
			nil,
		)
	}
	return forecast(values, regress(values), periodsAhead), nil
}

// regression holds the ordinary-least-squares fit of a series against its
// point index.
type regression struct {
	slope     float64
	intercept float64
	rSquared  float64
}

// regress fits values by OLS using the point index as the independent
// variable. A zero-variance series fits its flat line perfectly, so its
// R-squared is defined as 1; this keeps constant series classified stable
// rather than volatile.
func regress(values []float64) regression {
	n := float64(len(values))
	if len(values) == 1 {
		return regression{slope: 0, intercept: values[0], rSquared: 1}
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	slope := safeDiv(n*sumXY-sumX*sumY, denom)
	intercept := (sumY - slope*sumX) / n

	m := sumY / n
	var ssTot, ssRes float64
	for i, v := range values {
		fit := intercept + slope*float64(i)
		ssTot += (v - m) * (v - m)
		ssRes += (v - fit) * (v - fit)
	}

	rSquared := 1.0
	if ssTot > 0 {
		rSquared = 1 - ssRes/ssTot
	}
	if rSquared < 0 {
		rSquared = 0
	}

	return regression{slope: slope, intercept: intercept, rSquared: rSquared}
}

// classifyDirection applies the volatility and flatness thresholds, in that
// order, then the slope sign.
func classifyDirection(reg regression) types.TrendDirection {
	switch {
	case reg.rSquared < volatilityRSquared:
		return types.TrendVolatile
	case math.Abs(reg.slope) < flatnessSlope:
		return types.TrendStable
	case reg.slope > 0:
		return types.TrendIncreasing
	default:
		return types.TrendDecreasing
	}
}

// trendStrength scores 0-100: 70% fit quality, 30% normalized slope
// magnitude. The slope term is defined as zero when the series mean is zero.
func trendStrength(reg regression, values []float64) int {
	m := mean(values)
	slopeTerm := 0.0
	if m != 0 {
		slopeTerm = math.Min(1, math.Abs(reg.slope)/math.Abs(m))
	}
	return int(math.Round(100 * (0.7*reg.rSquared + 0.3*slopeTerm)))
}

// movingAverage is the simple mean over the trailing window points, using
// fewer points when the series is shorter than the window.
func movingAverage(values []float64, window int) float64 {
	if window > len(values) {
		window = len(values)
	}
	return mean(values[len(values)-window:])
}

// growthOffsets maps each series granularity to the point lags backing the
// four comparison kinds. A lag of zero means the comparison does not apply at
// that granularity.
func growthOffsets(periodType types.PeriodType) (wow, mom, qoq, yoy int) {
	switch periodType {
	case types.PeriodWeekly:
		return 1, 4, 13, 52
	case types.PeriodMonthly:
		return 0, 1, 3, 12
	case types.PeriodQuarterly:
		return 0, 0, 1, 4
	case types.PeriodYearly:
		return 0, 0, 0, 1
	default:
		return 0, 0, 0, 0
	}
}

// growthRates computes the lagged percent changes the series has enough
// history for. Rates needing more history than the series provides are nil,
// not zero.
func growthRates(values []float64, periodType types.PeriodType) types.GrowthRates {
	wow, mom, qoq, yoy := growthOffsets(periodType)
	return types.GrowthRates{
		WeekOverWeek:       laggedRate(values, wow),
		MonthOverMonth:     laggedRate(values, mom),
		QuarterOverQuarter: laggedRate(values, qoq),
		YearOverYear:       laggedRate(values, yoy),
	}
}

func laggedRate(values []float64, offset int) *float64 {
	if offset <= 0 || offset > len(values)-1 {
		return nil
	}
	current := values[len(values)-1]
	baseline := values[len(values)-1-offset]
	rate := round2(percentChange(current, baseline))
	return &rate
}

// forecast extrapolates the regression line periodsAhead steps past the last
// point. The value is floored at zero; confidence is the R-squared scaled by
// a linear decay per period ahead.
func forecast(values []float64, reg regression, periodsAhead int) types.Forecast {
	x := float64(len(values) - 1 + periodsAhead)
	value := reg.intercept + reg.slope*x
	if value < 0 {
		value = 0
	}

	decay := 1 - forecastConfidenceDecay*float64(periodsAhead)
	if decay < 0 {
		decay = 0
	}

	return types.Forecast{
		Value:        round2(value),
		PeriodsAhead: periodsAhead,
		Confidence:   int(math.Round(reg.rSquared * decay * 100)),
	}
}

// detectPatterns applies the four independent, non-exclusive pattern tests.
func detectPatterns(values []float64) []string {
	patterns := []string{}

	if hasSeasonality(values) {
		patterns = append(patterns, "seasonality")
	}
	if isCyclical(values) {
		patterns = append(patterns, "cyclical")
	}
	if n := countAnomalies(values); n > 0 {
		patterns = append(patterns, fmt.Sprintf("anomalies_detected_%d", n))
	}
	if hasSustainedTrend(values) {
		patterns = append(patterns, "sustained_trend")
	}

	return patterns
}

// hasSeasonality reports whether local maxima are spaced at near-regular
// intervals: at least three peaks whose interval variance is below 20% of the
// mean interval.
func hasSeasonality(values []float64) bool {
	var peaks []int
	for i := 1; i < len(values)-1; i++ {
		if values[i] > values[i-1] && values[i] > values[i+1] {
			peaks = append(peaks, i)
		}
	}
	if len(peaks) < seasonalityMinPeaks {
		return false
	}

	intervals := make([]float64, 0, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		intervals = append(intervals, float64(peaks[i]-peaks[i-1]))
	}

	meanInterval := mean(intervals)
	var variance float64
	for _, iv := range intervals {
		d := iv - meanInterval
		variance += d * d
	}
	variance /= float64(len(intervals))

	return variance < seasonalityVarianceFrac*meanInterval
}

// isCyclical reports whether direction reversals make up at least 40% of the
// series length.
func isCyclical(values []float64) bool {
	if len(values) < 3 {
		return false
	}
	reversals := 0
	for i := 2; i < len(values); i++ {
		prev := values[i-1] - values[i-2]
		curr := values[i] - values[i-1]
		if prev*curr < 0 {
			reversals++
		}
	}
	return float64(reversals) >= cyclicalReversalFrac*float64(len(values))
}

// countAnomalies counts values deviating more than two standard deviations
// from the mean. A zero-variance series has no anomalies.
func countAnomalies(values []float64) int {
	sd := stddev(values)
	if sd == 0 {
		return 0
	}
	m := mean(values)
	count := 0
	for _, v := range values {
		if math.Abs(v-m) > anomalyStdDevs*sd {
			count++
		}
	}
	return count
}

// hasSustainedTrend reports whether at least 70% of consecutive deltas share
// the dominant nonzero direction.
func hasSustainedTrend(values []float64) bool {
	if len(values) < 2 {
		return false
	}
	var up, down int
	for i := 1; i < len(values); i++ {
		switch {
		case values[i] > values[i-1]:
			up++
		case values[i] < values[i-1]:
			down++
		}
	}
	dominant := up
	if down > dominant {
		dominant = down
	}
	if dominant == 0 {
		return false
	}
	total := len(values) - 1
	return float64(dominant) >= sustainedDeltaFrac*float64(total)
}
