package anomaly

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// isolationTree is one node of an isolation tree. Leaves carry the number
// of training rows that reached them.
type isolationTree struct {
	splitFeature int
	splitValue   float64
	left         *isolationTree
	right        *isolationTree
	size         int
	isLeaf       bool
}

// Forest is an isolation forest over fixed width feature rows.
type Forest struct {
	trees         []*isolationTree
	numTrees      int
	subSampleSize int
	sampleSize    int
	maxDepth      int
	contamination float64
	offset        float64
	rng           *rand.Rand
}

// NewForest creates an untrained forest. The random source is seeded so a
// model trained twice on the same data scores identically.
func NewForest(numTrees, subSampleSize int, contamination float64, seed int64) *Forest {
	return &Forest{
		numTrees:      numTrees,
		subSampleSize: subSampleSize,
		contamination: contamination,
		rng:           rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),
	}
}

// Fit builds the ensemble and calibrates the decision offset so that the
// contamination share of training rows scores below zero.
func (f *Forest) Fit(rows [][]float64) error {
	if len(rows) == 0 {
		return fmt.Errorf("no training rows")
	}
	width := len(rows[0])
	if width == 0 {
		return fmt.Errorf("training rows have no features")
	}
	for i, row := range rows {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %d contains a non-finite value", i)
			}
		}
	}

	f.sampleSize = min(f.subSampleSize, len(rows))
	f.maxDepth = int(math.Ceil(math.Log2(float64(max(f.sampleSize, 2)))))
	f.trees = make([]*isolationTree, 0, f.numTrees)
	for range f.numTrees {
		f.trees = append(f.trees, f.buildTree(f.sample(rows), 0))
	}

	scores := make([]float64, len(rows))
	for i, row := range rows {
		scores[i] = -f.anomalyScore(row)
	}
	f.offset = quantile(scores, f.contamination)
	return nil
}

// Trained reports whether Fit has completed.
func (f *Forest) Trained() bool {
	return len(f.trees) > 0
}

// Decision returns the offset outlier score of row. Negative values are
// anomalous, positive values are inliers.
func (f *Forest) Decision(row []float64) float64 {
	if !f.Trained() {
		return math.NaN()
	}
	return -f.anomalyScore(row) - f.offset
}

// anomalyScore is 2^(-E[h(x)]/c(n)), in (0, 1], higher is more anomalous.
func (f *Forest) anomalyScore(row []float64) float64 {
	var total float64
	for _, tree := range f.trees {
		total += pathLength(tree, row, 0)
	}
	avg := total / float64(len(f.trees))
	c := averagePathLength(f.sampleSize)
	if c == 0 {
		return 0.5
	}
	return math.Pow(2, -avg/c)
}

// sample draws sampleSize rows without replacement (partial Fisher-Yates).
func (f *Forest) sample(rows [][]float64) [][]float64 {
	shuffled := make([][]float64, len(rows))
	copy(shuffled, rows)
	for i := range f.sampleSize {
		j := i + f.rng.IntN(len(shuffled)-i)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:f.sampleSize]
}

func (f *Forest) buildTree(rows [][]float64, depth int) *isolationTree {
	if len(rows) <= 1 || depth >= f.maxDepth || allIdentical(rows) {
		return &isolationTree{size: len(rows), isLeaf: true}
	}

	feature := f.rng.IntN(len(rows[0]))
	lo, hi := featureRange(rows, feature)
	if lo == hi {
		// pick another feature that still varies
		for k := range len(rows[0]) {
			if l, h := featureRange(rows, k); l != h {
				feature, lo, hi = k, l, h
				break
			}
		}
	}
	split := lo + f.rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, row := range rows {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &isolationTree{size: len(rows), isLeaf: true}
	}

	return &isolationTree{
		splitFeature: feature,
		splitValue:   split,
		left:         f.buildTree(left, depth+1),
		right:        f.buildTree(right, depth+1),
		size:         len(rows),
	}
}

func pathLength(tree *isolationTree, row []float64, depth int) float64 {
	if tree.isLeaf {
		return float64(depth) + averagePathLength(tree.size)
	}
	if row[tree.splitFeature] < tree.splitValue {
		return pathLength(tree.left, row, depth+1)
	}
	return pathLength(tree.right, row, depth+1)
}

// averagePathLength is c(n), the mean unsuccessful search depth of a BST
// with n nodes.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	harmonic := math.Log(float64(n-1)) + 0.5772156649
	return 2*harmonic - 2*float64(n-1)/float64(n)
}

func allIdentical(rows [][]float64) bool {
	first := rows[0]
	for _, row := range rows[1:] {
		for k, v := range row {
			if v != first[k] {
				return false
			}
		}
	}
	return true
}

func featureRange(rows [][]float64, feature int) (lo, hi float64) {
	lo, hi = rows[0][feature], rows[0][feature]
	for _, row := range rows[1:] {
		lo = math.Min(lo, row[feature])
		hi = math.Max(hi, row[feature])
	}
	return lo, hi
}

// quantile returns the q-th quantile of values with linear interpolation.
func quantile(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}
