// Package model_selection splits samples into train and test sets.
//
// Every splitter is seeded; the same seed and labels always produce the
// same indices.
package model_selection

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/periospot/implantgen/pkg/errors"
)

// Split holds row indices into the original data, each in ascending order.
type Split struct {
	TrainIndices []int
	TestIndices  []int
}

// TrainTestSplit partitions nSamples rows. With stratify set, each class in
// y keeps (within rounding) its share in both parts; y may be nil otherwise.
// The test size is ceil(testSize * n) as in scikit-learn.
func TrainTestSplit(nSamples int, y mat.Matrix, testSize float64, stratify bool, seed int64) (Split, error) {
	if nSamples < 2 {
		return Split{}, errors.NewValidationError("n_samples", "need at least 2 samples", nSamples)
	}
	if !(testSize > 0 && testSize < 1) {
		return Split{}, errors.NewValidationError("test_size", "must be within (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(nSamples)))
	if nTest >= nSamples {
		return Split{}, errors.NewValidationError("test_size", "leaves no training samples", testSize)
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))

	if !stratify {
		indices := rng.Perm(nSamples)
		return newSplit(indices[nTest:], indices[:nTest]), nil
	}

	groups, err := groupByLabel(nSamples, y)
	if err != nil {
		return Split{}, err
	}
	if len(groups) < 2 {
		return Split{}, errors.NewValueError("TrainTestSplit", "stratify requires at least two classes")
	}

	// 各クラスの割り当て数は比例配分し、端数は大きい順に配る
	alloc := allocate(groups, nTest, nSamples)

	var train, test []int
	for gi, g := range groups {
		rng.Shuffle(len(g.indices), func(i, j int) {
			g.indices[i], g.indices[j] = g.indices[j], g.indices[i]
		})
		test = append(test, g.indices[:alloc[gi]]...)
		train = append(train, g.indices[alloc[gi]:]...)
	}
	return newSplit(train, test), nil
}

type labelGroup struct {
	label   float64
	indices []int
}

// groupByLabel buckets row indices by y, ordered by label.
func groupByLabel(nSamples int, y mat.Matrix) ([]labelGroup, error) {
	if y == nil {
		return nil, errors.NewValueError("TrainTestSplit", "stratify requires labels")
	}
	rows, _ := y.Dims()
	if rows != nSamples {
		return nil, errors.NewDimensionError("TrainTestSplit", nSamples, rows, 0)
	}
	byLabel := make(map[float64][]int)
	for i := 0; i < rows; i++ {
		byLabel[y.At(i, 0)] = append(byLabel[y.At(i, 0)], i)
	}
	groups := make([]labelGroup, 0, len(byLabel))
	for label, idx := range byLabel {
		groups = append(groups, labelGroup{label: label, indices: idx})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].label < groups[j].label })
	return groups, nil
}

func allocate(groups []labelGroup, nTest, nSamples int) []int {
	alloc := make([]int, len(groups))
	remainders := make([]float64, len(groups))
	assigned := 0
	for i, g := range groups {
		exact := float64(nTest) * float64(len(g.indices)) / float64(nSamples)
		alloc[i] = int(math.Floor(exact))
		remainders[i] = exact - float64(alloc[i])
		assigned += alloc[i]
	}
	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return remainders[order[a]] > remainders[order[b]] })
	for k := 0; assigned < nTest; k = (k + 1) % len(order) {
		i := order[k]
		if alloc[i] < len(groups[i].indices) {
			alloc[i]++
			assigned++
		}
	}
	return alloc
}

func newSplit(train, test []int) Split {
	train = append([]int(nil), train...)
	test = append([]int(nil), test...)
	sort.Ints(train)
	sort.Ints(test)
	return Split{TrainIndices: train, TestIndices: test}
}

// SelectRows copies the given rows of X into a new matrix.
func SelectRows(X mat.Matrix, indices []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(indices), c, nil)
	for r, i := range indices {
		for j := 0; j < c; j++ {
			out.Set(r, j, X.At(i, j))
		}
	}
	return out
}
