package anomaly

import "math"

// standardScaler centers each feature on its training mean and scales it
// to unit variance. Constant features are only centered.
type standardScaler struct {
	mean  []float64
	scale []float64
}

func (s *standardScaler) fit(rows [][]float64) {
	width := len(rows[0])
	s.mean = make([]float64, width)
	s.scale = make([]float64, width)

	n := float64(len(rows))
	for _, row := range rows {
		for k, v := range row {
			s.mean[k] += v / n
		}
	}
	for _, row := range rows {
		for k, v := range row {
			d := v - s.mean[k]
			s.scale[k] += d * d / n
		}
	}
	for k := range s.scale {
		s.scale[k] = math.Sqrt(s.scale[k])
		if s.scale[k] == 0 {
			s.scale[k] = 1
		}
	}
}

func (s *standardScaler) transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for k, v := range row {
		out[k] = (v - s.mean[k]) / s.scale[k]
	}
	return out
}

func (s *standardScaler) transformAll(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = s.transform(row)
	}
	return out
}
