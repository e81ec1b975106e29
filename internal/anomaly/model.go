package anomaly

import (
	"fmt"
	"math"
	"time"
)

// Point is one timestamped observation used for training.
type Point struct {
	Timestamp time.Time
	Value     float64
}

// features maps an observation to [value, hour_of_day, day_of_week]. Hour
// and weekday are taken in UTC so rows from different sources line up.
func features(value float64, at time.Time) []float64 {
	at = at.UTC()
	return []float64{value, float64(at.Hour()), float64(at.Weekday())}
}

// model pairs a forest with the scaler fitted on the same rows.
type model struct {
	forest    *Forest
	scaler    standardScaler
	points    int
	trainedAt time.Time
}

func trainModel(history []Point, opts Options, now time.Time) (*model, error) {
	rows := make([][]float64, len(history))
	for i, p := range history {
		rows[i] = features(p.Value, p.Timestamp)
	}

	m := &model{
		forest: NewForest(opts.EnsembleSize, opts.SubSampleSize, opts.Contamination, opts.Seed),
		points: len(history),
	}
	for i, row := range rows {
		if math.IsNaN(row[0]) || math.IsInf(row[0], 0) {
			return nil, fmt.Errorf("training point %d has non-finite value", i)
		}
	}
	m.scaler.fit(rows)
	if err := m.forest.Fit(m.scaler.transformAll(rows)); err != nil {
		return nil, err
	}
	m.trainedAt = now
	return m, nil
}

// score returns the decision value and whether it marks an anomaly.
func (m *model) score(value float64, at time.Time) (decision float64, anomalous bool, err error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false, fmt.Errorf("cannot score non-finite value %v", value)
	}
	decision = m.forest.Decision(m.scaler.transform(features(value, at)))
	if math.IsNaN(decision) {
		return decision, false, nil
	}
	return decision, decision < 0, nil
}

// confidence maps a decision value to [0, 1]. Without a continuous score it
// falls back to 0.8 for anomalies and 0.2 otherwise.
func confidence(decision float64, anomalous bool) float64 {
	if math.IsNaN(decision) {
		if anomalous {
			return 0.8
		}
		return 0.2
	}
	return math.Max(0, math.Min(1, 1-(decision+0.5)))
}
