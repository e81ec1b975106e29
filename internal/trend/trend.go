// Package trend derives direction, strength and weekly seasonality from a
// metric series.
package trend

import "math"

const (
	// MinPoints is the shortest series a trend is computed for.
	MinPoints = 7
	// MinSeasonalPoints is the shortest series checked for seasonality.
	MinSeasonalPoints = 14

	slopeEpsilon       = 0.01
	seasonalWindow     = 7
	seasonalChangeGate = 0.10

	// fallback strengths when the series has no variance
	flatStrengthTrending = 0.5
	flatStrengthStable   = 0.1

	minConfidence     = 0.1
	defaultConfidence = 0.5
)

// Directions.
const (
	DirectionUp     = "up"
	DirectionDown   = "down"
	DirectionStable = "stable"
)

// PatternWeekly is the only seasonal pattern detected.
const PatternWeekly = "weekly"

// Result describes the trend of a series.
type Result struct {
	Direction    string     `json:"direction"`
	Strength     float64    `json:"strength"`
	Confidence   float64    `json:"confidence"`
	Slope        float64    `json:"slope"`
	CurrentValue float64    `json:"current_value"`
	Average      float64    `json:"average"`
	StdDev       float64    `json:"std_dev"`
	Min          float64    `json:"min"`
	Max          float64    `json:"max"`
	Points       int        `json:"points"`
	Comparison   Comparison `json:"comparison"`
	Seasonal     *Seasonal  `json:"seasonal_pattern,omitempty"`
}

// Comparison relates the trailing week to the whole series.
type Comparison struct {
	CurrentMean       float64 `json:"current_mean"`
	HistoricalAverage float64 `json:"historical_average"`
	ChangePercentage  float64 `json:"change_percentage"`
}

// Seasonal describes a detected week over week shift.
type Seasonal struct {
	Detected bool    `json:"detected"`
	Pattern  string  `json:"pattern,omitempty"`
	Strength float64 `json:"strength"`
	Change   float64 `json:"change"`
}

// Options selects optional analyses.
type Options struct {
	Seasonal bool
}

// Analyze computes the trend of values, which must be in ascending time
// order. It returns false when the series is shorter than MinPoints.
func Analyze(values []float64, opts Options) (Result, bool) {
	n := len(values)
	if n < MinPoints {
		return Result{}, false
	}

	mean, std := meanStd(values)
	minV, maxV := values[0], values[0]
	for _, v := range values[1:] {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}

	slope := slopeOf(values)
	direction := DirectionStable
	switch {
	case slope > slopeEpsilon:
		direction = DirectionUp
	case slope < -slopeEpsilon:
		direction = DirectionDown
	}

	var strength float64
	switch {
	case std > 0:
		strength = clamp(math.Abs(slope)/std, 0, 1)
	case direction == DirectionStable:
		strength = flatStrengthStable
	default:
		strength = flatStrengthTrending
	}

	confidence := defaultConfidence
	if mean > 0 {
		confidence = clamp(1-std/mean, minConfidence, 1)
	}

	recent, _ := meanStd(values[n-seasonalWindow:])
	res := Result{
		Direction:    direction,
		Strength:     strength,
		Confidence:   confidence,
		Slope:        slope,
		CurrentValue: values[n-1],
		Average:      mean,
		StdDev:       std,
		Min:          minV,
		Max:          maxV,
		Points:       n,
		Comparison: Comparison{
			CurrentMean:       recent,
			HistoricalAverage: mean,
			ChangePercentage:  percentChange(recent, mean),
		},
	}

	if opts.Seasonal && n >= MinSeasonalPoints {
		res.Seasonal = weekly(values)
	}
	return res, true
}

// weekly compares the trailing seven points with the seven before them.
func weekly(values []float64) *Seasonal {
	n := len(values)
	last, _ := meanStd(values[n-seasonalWindow:])
	prev, _ := meanStd(values[n-2*seasonalWindow : n-seasonalWindow])
	if prev == 0 {
		return &Seasonal{}
	}
	change := (last - prev) / prev
	if math.Abs(change) <= seasonalChangeGate {
		return &Seasonal{Change: change}
	}
	return &Seasonal{
		Detected: true,
		Pattern:  PatternWeekly,
		Strength: clamp(math.Abs(change), 0, 1),
		Change:   change,
	}
}

// slopeOf is the least squares slope of values against their index.
func slopeOf(values []float64) float64 {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumX2 float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if math.Abs(denom) < 1e-12 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// meanStd returns the mean and population standard deviation.
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func percentChange(current, base float64) float64 {
	if base == 0 {
		return 0
	}
	return math.Round((current-base)/base*100*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
