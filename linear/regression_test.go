package linear

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/periospot/implantgen/pkg/errors"
)

func TestLinearRegressionRecoversExactWeights(t *testing.T) {
	// y = 1 + 2*x1 - 3*x2
	X := mat.NewDense(5, 2, []float64{
		1, 0,
		0, 1,
		1, 1,
		2, 1,
		3, 2,
	})
	y := mat.NewDense(5, 1, nil)
	for i := 0; i < 5; i++ {
		y.Set(i, 0, 1+2*X.At(i, 0)-3*X.At(i, 1))
	}

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	assert.InDelta(t, 1.0, lr.GetIntercept(), 1e-9)
	weights := lr.GetWeights()
	require.Len(t, weights, 2)
	assert.InDelta(t, 2.0, weights[0], 1e-9)
	assert.InDelta(t, -3.0, weights[1], 1e-9)

	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)

	pred, err := lr.Predict(mat.NewDense(1, 2, []float64{10, 10}))
	require.NoError(t, err)
	assert.InDelta(t, -9.0, pred.At(0, 0), 1e-8)
}

func TestLinearRegressionNoisyData(t *testing.T) {
	X, y := createBenchmarkData(2000, 4)

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	for j, w := range lr.GetWeights() {
		assert.InDelta(t, float64(j+1)*0.5, w, 0.01)
	}
	assert.InDelta(t, 1.0, lr.GetIntercept(), 0.01)
}

func TestLinearRegressionErrors(t *testing.T) {
	lr := NewLinearRegression()

	_, err := lr.Predict(mat.NewDense(1, 1, []float64{1}))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	_, err = lr.Score(mat.NewDense(1, 1, []float64{1}), mat.NewDense(1, 1, []float64{1}))
	assert.True(t, errors.As(err, &nf))

	err = lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(2, 1, []float64{1, 2}))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))

	err = lr.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))

	// duplicated column makes X^T X singular
	err = lr.Fit(
		mat.NewDense(4, 2, []float64{1, 1, 2, 2, 3, 3, 4, 4}),
		mat.NewDense(4, 1, []float64{1, 2, 3, 4}),
	)
	assert.True(t, errors.Is(err, errors.ErrSingularMatrix))

	require.NoError(t, lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(3, 1, []float64{2, 4, 6})))
	_, err = lr.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	assert.True(t, errors.As(err, &dim))
}

func TestLinearRegressionExportWeights(t *testing.T) {
	lr := NewLinearRegression()
	_, err := lr.ExportWeights([]string{"x"})
	assert.Error(t, err)

	require.NoError(t, lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(3, 1, []float64{3, 5, 7})))
	mw, err := lr.ExportWeights([]string{"hounsfield_units"})
	require.NoError(t, err)
	assert.Equal(t, "LinearRegression", mw.ModelType)
	assert.InDelta(t, 2.0, mw.Coefficients[0], 1e-9)
	assert.InDelta(t, 1.0, mw.Intercept, 1e-9)

	_, err = lr.ExportWeights([]string{"a", "b"})
	assert.Error(t, err)
}
