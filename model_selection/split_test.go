package model_selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func labels(values ...float64) *mat.VecDense {
	return mat.NewVecDense(len(values), values)
}

func imbalanced(n, positives int) *mat.VecDense {
	y := make([]float64, n)
	for i := 0; i < positives; i++ {
		y[i*n/positives] = 1
	}
	return mat.NewVecDense(n, y)
}

func countPositives(y mat.Vector, idx []int) int {
	n := 0
	for _, i := range idx {
		if y.AtVec(i) == 1 {
			n++
		}
	}
	return n
}

func TestTrainTestSplit(t *testing.T) {
	t.Run("stratified keeps class balance", func(t *testing.T) {
		y := imbalanced(500, 100)
		s, err := TrainTestSplit(500, y, 0.2, true, 42)
		require.NoError(t, err)

		assert.Len(t, s.TestIndices, 100)
		assert.Len(t, s.TrainIndices, 400)
		assert.Equal(t, 20, countPositives(y, s.TestIndices))
		assert.Equal(t, 80, countPositives(y, s.TrainIndices))
	})

	t.Run("partitions every row exactly once", func(t *testing.T) {
		y := imbalanced(101, 17)
		s, err := TrainTestSplit(101, y, 0.25, true, 7)
		require.NoError(t, err)

		seen := make(map[int]int)
		for _, i := range append(append([]int{}, s.TrainIndices...), s.TestIndices...) {
			seen[i]++
		}
		assert.Len(t, seen, 101)
		for i, c := range seen {
			assert.Equal(t, 1, c, "row %d", i)
		}
		assert.Len(t, s.TestIndices, 26)
		assert.IsIncreasing(t, s.TestIndices)
		assert.IsIncreasing(t, s.TrainIndices)
	})

	t.Run("same seed same split", func(t *testing.T) {
		y := imbalanced(200, 40)
		a, err := TrainTestSplit(200, y, 0.2, true, 3)
		require.NoError(t, err)
		b, err := TrainTestSplit(200, y, 0.2, true, 3)
		require.NoError(t, err)
		c, err := TrainTestSplit(200, y, 0.2, true, 4)
		require.NoError(t, err)

		assert.Equal(t, a, b)
		assert.NotEqual(t, a.TestIndices, c.TestIndices)
	})

	t.Run("unstratified", func(t *testing.T) {
		s, err := TrainTestSplit(10, nil, 0.3, false, 1)
		require.NoError(t, err)
		assert.Len(t, s.TestIndices, 3)
		assert.Len(t, s.TrainIndices, 7)
	})

	tests := []struct {
		name     string
		n        int
		y        mat.Matrix
		testSize float64
		stratify bool
	}{
		{"too few samples", 1, nil, 0.2, false},
		{"zero test size", 10, nil, 0, false},
		{"test size one", 10, nil, 1, false},
		{"single class", 4, labels(1, 1, 1, 1), 0.5, true},
		{"missing labels", 4, nil, 0.5, true},
		{"label length mismatch", 5, labels(0, 1, 0, 1), 0.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TrainTestSplit(tt.n, tt.y, tt.testSize, tt.stratify, 0)
			assert.Error(t, err)
		})
	}
}

func TestSelectRows(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	got := SelectRows(X, []int{2, 0})
	assert.Equal(t, []float64{5, 6, 1, 2}, got.RawMatrix().Data)
}

func TestKFold(t *testing.T) {
	kf, err := NewKFold(3, false, 0)
	require.NoError(t, err)

	folds, err := kf.Split(10)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].TestIndices)
	assert.Equal(t, []int{4, 5, 6}, folds[1].TestIndices)
	assert.Equal(t, []int{7, 8, 9}, folds[2].TestIndices)
	for _, f := range folds {
		assert.Len(t, f.TrainIndices, 10-len(f.TestIndices))
	}

	_, err = NewKFold(1, false, 0)
	assert.Error(t, err)
	_, err = kf.Split(2)
	assert.Error(t, err)
}

func TestKFoldShuffleIsSeeded(t *testing.T) {
	a, _ := NewKFold(5, true, 11)
	b, _ := NewKFold(5, true, 11)
	fa, err := a.Split(50)
	require.NoError(t, err)
	fb, err := b.Split(50)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
}

func TestStratifiedKFold(t *testing.T) {
	y := imbalanced(100, 20)
	skf, err := NewStratifiedKFold(5, true, 42)
	require.NoError(t, err)

	folds, err := skf.Split(y)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	covered := make(map[int]bool)
	for _, f := range folds {
		assert.Len(t, f.TestIndices, 20)
		assert.Equal(t, 4, countPositives(y, f.TestIndices))
		for _, i := range f.TestIndices {
			assert.False(t, covered[i], "row %d tested twice", i)
			covered[i] = true
		}
	}
	assert.Len(t, covered, 100)

	_, err = skf.Split(labels(0, 0, 0, 0, 0, 1))
	assert.Error(t, err, "class smaller than fold count")
}
