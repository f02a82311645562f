package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/periospot/implantgen/pkg/errors"
)

// CalibrationBin compares the mean predicted probability of the cases in
// [Lo, Hi) with the fraction of them that are positive.
type CalibrationBin struct {
	Lo            float64 `json:"lo"`
	Hi            float64 `json:"hi"`
	Count         int     `json:"count"`
	MeanPredicted float64 `json:"mean_predicted"`
	FractionTrue  float64 `json:"fraction_true"`
}

// CalibrationCurve は [0,1] を nBins 等分し、各区間の平均予測確率と陽性率を返す。
// 確率 1.0 は最後の区間に入る。空の区間は返さない。
func CalibrationCurve(yTrue, yProb *mat.VecDense, nBins int) ([]CalibrationBin, error) {
	n, err := checkPair("CalibrationCurve", yTrue, yProb)
	if err != nil {
		return nil, err
	}
	if nBins < 1 {
		return nil, errors.NewValidationError("n_bins", "must be positive", nBins)
	}
	if err := checkBinaryLabels("CalibrationCurve", yTrue); err != nil {
		return nil, err
	}

	counts := make([]int, nBins)
	sumProb := make([]float64, nBins)
	sumTrue := make([]float64, nBins)
	for i := 0; i < n; i++ {
		p := yProb.AtVec(i)
		if p < 0 || p > 1 {
			return nil, errors.NewValidationError("y_prob", "probabilities must lie in [0, 1]", p)
		}
		b := int(p * float64(nBins))
		if b == nBins {
			b--
		}
		counts[b]++
		sumProb[b] += p
		sumTrue[b] += yTrue.AtVec(i)
	}

	var bins []CalibrationBin
	width := 1 / float64(nBins)
	for b := 0; b < nBins; b++ {
		if counts[b] == 0 {
			continue
		}
		bins = append(bins, CalibrationBin{
			Lo:            float64(b) * width,
			Hi:            float64(b+1) * width,
			Count:         counts[b],
			MeanPredicted: sumProb[b] / float64(counts[b]),
			FractionTrue:  sumTrue[b] / float64(counts[b]),
		})
	}
	return bins, nil
}
