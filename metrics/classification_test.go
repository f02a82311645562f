package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/periospot/implantgen/pkg/errors"
)

// captureWarnings はテスト中の警告を記録する
func captureWarnings(t *testing.T) *[]error {
	t.Helper()
	var captured []error
	errors.SetWarningHandler(func(w error) { captured = append(captured, w) })
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })
	return &captured
}

func TestAUC(t *testing.T) {
	captureWarnings(t)
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{name: "perfect classifier", yTrue: []float64{0, 0, 0, 1, 1, 1}, yPred: []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9}, want: 1.0},
		{name: "worst classifier", yTrue: []float64{0, 0, 0, 1, 1, 1}, yPred: []float64{0.9, 0.8, 0.7, 0.3, 0.2, 0.1}, want: 0.0},
		{name: "all tied", yTrue: []float64{0, 1, 0, 1}, yPred: []float64{0.5, 0.5, 0.5, 0.5}, want: 0.5},
		{name: "typical case", yTrue: []float64{0, 0, 1, 1}, yPred: []float64{0.1, 0.4, 0.35, 0.8}, want: 0.75},
		{name: "partial tie", yTrue: []float64{0, 1, 0, 1}, yPred: []float64{0.2, 0.6, 0.6, 0.9}, want: 0.875},
		{name: "all positive labels", yTrue: []float64{1, 1, 1, 1}, yPred: []float64{0.1, 0.4, 0.35, 0.8}, want: 0.5},
		{name: "non-binary labels", yTrue: []float64{0, 0.5, 1}, yPred: []float64{0.1, 0.5, 0.9}, wantErr: true},
		{name: "dimension mismatch", yTrue: []float64{0, 1}, yPred: []float64{0.5}, wantErr: true},
		{name: "empty vectors", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AUC(vec(tt.yTrue...), vec(tt.yPred...))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestAUCSingleClassWarns(t *testing.T) {
	warnings := captureWarnings(t)
	_, err := AUC(vec(0, 0, 0), vec(0.1, 0.2, 0.3))
	require.NoError(t, err)
	require.Len(t, *warnings, 1)

	var w *errors.UndefinedMetricWarning
	assert.True(t, errors.As((*warnings)[0], &w))
	assert.Equal(t, "roc_auc", w.Metric)
}

func TestAUCMatrix(t *testing.T) {
	got, err := AUCMatrix(
		mat.NewDense(4, 2, []float64{0, 9, 0, 9, 1, 9, 1, 9}),
		mat.NewDense(4, 2, []float64{0.1, 9, 0.4, 9, 0.35, 9, 0.8, 9}),
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, got, 1e-9, "uses first column")

	_, err = AUCMatrix(nil, mat.NewDense(1, 1, []float64{0.5}))
	assert.Error(t, err)
	_, err = AUCMatrix(&mat.Dense{}, &mat.Dense{})
	assert.Error(t, err)
}

func TestROCCurve(t *testing.T) {
	roc, err := ROCCurve(vec(0, 0, 1, 1), vec(0.1, 0.4, 0.35, 0.8))
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0, 0.5, 0.5, 1}, roc.FPR)
	assert.Equal(t, []float64{0, 0.5, 0.5, 1, 1}, roc.TPR)
	assert.InDeltaSlice(t, []float64{1.8, 0.8, 0.4, 0.35, 0.1}, roc.Thresholds, 1e-12)
	assert.InDelta(t, 0.75, trapezoid(roc.FPR, roc.TPR), 1e-12)

	t.Run("drops collinear points", func(t *testing.T) {
		roc, err := ROCCurve(vec(1, 1, 1, 0, 0), vec(0.9, 0.8, 0.7, 0.2, 0.1))
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 0, 0, 1}, roc.FPR)
		assert.Equal(t, []float64{0, 1.0 / 3.0, 1, 1}, roc.TPR)
	})

	t.Run("single class", func(t *testing.T) {
		_, err := ROCCurve(vec(1, 1), vec(0.2, 0.4))
		assert.Error(t, err)
	})
}

func TestPRCurve(t *testing.T) {
	pr, err := PRCurve(vec(0, 0, 1, 1), vec(0.1, 0.4, 0.35, 0.8))
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{0.5, 2.0 / 3.0, 0.5, 1, 1}, pr.Precision, 1e-12)
	assert.InDeltaSlice(t, []float64{1, 1, 0.5, 0.5, 0}, pr.Recall, 1e-12)
	assert.Equal(t, []float64{0.1, 0.35, 0.4, 0.8}, pr.Thresholds)
	assert.Len(t, pr.Precision, len(pr.Thresholds)+1)
}

func TestAveragePrecision(t *testing.T) {
	captureWarnings(t)
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{name: "perfect ranking", yTrue: []float64{1, 1, 1, 0, 0}, yPred: []float64{5, 4, 3, 2, 1}, want: 1.0},
		{name: "worst ranking", yTrue: []float64{1, 1, 1, 0, 0}, yPred: []float64{1, 2, 3, 4, 5}, want: (1.0/3 + 2.0/4 + 3.0/5) / 3},
		{name: "mixed ranking", yTrue: []float64{1, 0, 1, 0, 1}, yPred: []float64{0.9, 0.8, 0.7, 0.6, 0.5}, want: (1 + 2.0/3 + 3.0/5) / 3},
		{name: "single relevant", yTrue: []float64{0, 0, 1, 0, 0}, yPred: []float64{0.1, 0.2, 0.3, 0.4, 0.5}, want: 1.0 / 3},
		{name: "no relevant items", yTrue: []float64{0, 0, 0, 0}, yPred: []float64{1, 2, 3, 4}, want: 0},
		{name: "non-binary labels", yTrue: []float64{0, 0.5, 1}, yPred: []float64{1, 2, 3}, wantErr: true},
		{name: "dimension mismatch", yTrue: []float64{0, 1}, yPred: []float64{0.5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AveragePrecision(vec(tt.yTrue...), vec(tt.yPred...))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestBinaryLogLoss(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{name: "perfect predictions are clipped", yTrue: []float64{0, 0, 1, 1}, yPred: []float64{0, 0, 1, 1}, want: 0},
		{name: "typical case", yTrue: []float64{0, 0, 1, 1}, yPred: []float64{0.1, 0.2, 0.8, 0.9}, want: -(math.Log(0.9) + math.Log(0.8)) / 2},
		{name: "worst predictions", yTrue: []float64{0, 0, 1, 1}, yPred: []float64{0.9, 0.9, 0.1, 0.1}, want: -math.Log(0.1)},
		{name: "non-binary labels", yTrue: []float64{0, 0.5, 1}, yPred: []float64{0.1, 0.5, 0.9}, wantErr: true},
		{name: "empty vectors", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BinaryLogLoss(vec(tt.yTrue...), vec(tt.yPred...))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestAccuracy(t *testing.T) {
	got, err := Accuracy(vec(0, 1, 2, 1, 0), vec(0, 1, 1, 1, 0))
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got, 1e-12)

	e, err := ClassificationError(vec(0, 1, 2, 1, 0), vec(0, 1, 1, 1, 0))
	require.NoError(t, err)
	assert.InDelta(t, 0.2, e, 1e-12)

	_, err = Accuracy(nil, nil)
	assert.Error(t, err)
	_, err = Accuracy(vec(0, 1), vec(0))
	assert.Error(t, err)
}

func TestConfusionMatrix(t *testing.T) {
	yTrue := vec(1, 1, 1, 1, 0, 0, 0, 0, 0, 0)
	yPred := vec(1, 1, 1, 0, 1, 0, 0, 0, 0, 0)

	cm, err := NewConfusionMatrix(yTrue, yPred)
	require.NoError(t, err)
	assert.Equal(t, ConfusionMatrix{TN: 5, FP: 1, FN: 1, TP: 3}, cm)
	assert.Equal(t, 10, cm.Total())
	assert.InDelta(t, 0.8, cm.Accuracy(), 1e-12)
	assert.InDelta(t, 0.75, cm.Precision(), 1e-12)
	assert.InDelta(t, 0.75, cm.Recall(), 1e-12)
	assert.InDelta(t, 5.0/6.0, cm.Specificity(), 1e-12)
	assert.InDelta(t, 0.75, cm.F1(), 1e-12)

	_, err = NewConfusionMatrix(yTrue, vec(0, 1, 2, 0, 0, 0, 0, 0, 0, 0))
	assert.Error(t, err, "non-binary predictions")
}

func TestPrecisionRecallF1ZeroDivision(t *testing.T) {
	warnings := captureWarnings(t)

	yTrue := vec(1, 0, 1, 0)
	noPositives := vec(0, 0, 0, 0)

	p, err := Precision(yTrue, noPositives)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p)
	require.Len(t, *warnings, 1)

	r, err := Recall(noPositives, vec(1, 0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, r)
	assert.Len(t, *warnings, 2)

	f, err := F1Score(noPositives, noPositives)
	require.NoError(t, err)
	assert.Equal(t, 0.0, f)
	assert.Len(t, *warnings, 3)

	f, err = F1Score(yTrue, vec(1, 0, 0, 0))
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, f, 1e-12)
	assert.Len(t, *warnings, 3)
}

func TestThresholdSweep(t *testing.T) {
	warnings := captureWarnings(t)
	yTrue := vec(0, 0, 1, 1, 1)
	yScore := vec(0.2, 0.55, 0.5, 0.7, 0.95)

	sweep, err := ThresholdSweep(yTrue, yScore, 0.1, 0.9, 0.05)
	require.NoError(t, err)
	require.Len(t, sweep, 17)
	assert.Equal(t, 0.1, sweep[0].Threshold)
	assert.Equal(t, 0.45, sweep[7].Threshold)
	assert.Equal(t, 0.9, sweep[16].Threshold)

	// 0.5 は境界上で陽性になる
	at50 := sweep[8]
	assert.Equal(t, 0.5, at50.Threshold)
	assert.Equal(t, ConfusionMatrix{TN: 1, FP: 1, FN: 0, TP: 3}, at50.Confusion)
	assert.InDelta(t, 0.75, at50.Precision, 1e-12)
	assert.Equal(t, 1.0, at50.Recall)

	assert.Empty(t, *warnings, "sweep uses zero_division=0 silently")

	_, err = ThresholdSweep(yTrue, yScore, 0.1, 0.9, 0)
	assert.Error(t, err)
}

func BenchmarkAUC(b *testing.B) {
	n := 1000
	yTrue := mat.NewVecDense(n, nil)
	yPred := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		if i >= n/2 {
			yTrue.SetVec(i, 1)
		}
		yPred.SetVec(i, float64(i)/float64(n))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = AUC(yTrue, yPred)
	}
}

func TestCalibrationCurve(t *testing.T) {
	yTrue := vec(0, 0, 1, 1, 1, 0)
	yProb := vec(0.05, 0.15, 0.12, 0.95, 1.0, 0.55)

	bins, err := CalibrationCurve(yTrue, yProb, 10)
	require.NoError(t, err)
	require.Len(t, bins, 4, "empty bins are skipped")

	assert.Equal(t, 1, bins[0].Count)
	assert.InDelta(t, 0.0, bins[0].Lo, 1e-12)
	assert.Equal(t, 2, bins[1].Count)
	assert.InDelta(t, 0.135, bins[1].MeanPredicted, 1e-12)
	assert.InDelta(t, 0.5, bins[1].FractionTrue, 1e-12)
	assert.Equal(t, 1, bins[2].Count)
	assert.InDelta(t, 0.5, bins[2].Lo, 1e-12)

	last := bins[3]
	assert.Equal(t, 2, last.Count, "probability 1.0 lands in the top bin")
	assert.InDelta(t, 1.0, last.FractionTrue, 1e-12)

	_, err = CalibrationCurve(yTrue, vec(0.1, 0.2, 0.3, 0.4, 0.5, 1.2), 10)
	assert.Error(t, err)
	_, err = CalibrationCurve(yTrue, yProb, 0)
	assert.Error(t, err)
}
