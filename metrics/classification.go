package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/periospot/implantgen/pkg/errors"
)

// logLossEpsilon は log(0) を避けるための確率クリップ幅
const logLossEpsilon = 1e-15

// checkPair は yTrue と yPred が空でなく同じ長さであることを確認する
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// checkBinaryLabels は全てのラベルが 0 または 1 であることを確認する
func checkBinaryLabels(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewValidationError("y_true", op+" requires binary 0/1 labels", v)
		}
	}
	return nil
}

// Accuracy は正解率を計算する（多クラスのラベルにも使える）
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率 1 - Accuracy を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// BinaryLogLoss は二値交差エントロピーの平均を計算する。
// 予測確率は [eps, 1-eps] にクリップされる。
func BinaryLogLoss(yTrue, yProb *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yProb)
	if err != nil {
		return 0, err
	}
	if err := checkBinaryLabels("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		p := yProb.AtVec(i)
		if yTrue.AtVec(i) == 1 {
			sum -= errors.ClippedLog(p, logLossEpsilon)
		} else {
			sum -= errors.ClippedLog(1-p, logLossEpsilon)
		}
	}
	return sum / float64(n), nil
}

// ConfusionMatrix は二値分類の混同行列。陽性クラスは 1。
type ConfusionMatrix struct {
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TP int `json:"tp"`
}

// NewConfusionMatrix は 0/1 の正解ラベルと予測ラベルから混同行列を作る
func NewConfusionMatrix(yTrue, yPred *mat.VecDense) (ConfusionMatrix, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return ConfusionMatrix{}, err
	}
	if err := checkBinaryLabels("ConfusionMatrix", yTrue); err != nil {
		return ConfusionMatrix{}, err
	}
	if err := checkBinaryLabels("ConfusionMatrix", yPred); err != nil {
		return ConfusionMatrix{}, err
	}

	var cm ConfusionMatrix
	for i := 0; i < n; i++ {
		switch actual, pred := yTrue.AtVec(i) == 1, yPred.AtVec(i) == 1; {
		case actual && pred:
			cm.TP++
		case actual:
			cm.FN++
		case pred:
			cm.FP++
		default:
			cm.TN++
		}
	}
	return cm, nil
}

// Total returns the number of cases counted.
func (cm ConfusionMatrix) Total() int {
	return cm.TN + cm.FP + cm.FN + cm.TP
}

// Accuracy は (TP+TN)/全数。空なら 0。
func (cm ConfusionMatrix) Accuracy() float64 {
	return errors.SafeDivide(float64(cm.TP+cm.TN), float64(cm.Total()))
}

// Precision は TP/(TP+FP)。陽性予測がなければ 0（zero_division=0 と同じ）。
func (cm ConfusionMatrix) Precision() float64 {
	return errors.SafeDivide(float64(cm.TP), float64(cm.TP+cm.FP))
}

// Recall は TP/(TP+FN)。陽性の正解がなければ 0。
func (cm ConfusionMatrix) Recall() float64 {
	return errors.SafeDivide(float64(cm.TP), float64(cm.TP+cm.FN))
}

// Specificity は TN/(TN+FP)。
func (cm ConfusionMatrix) Specificity() float64 {
	return errors.SafeDivide(float64(cm.TN), float64(cm.TN+cm.FP))
}

// F1 は 2TP/(2TP+FP+FN)。分母が 0 なら 0。
func (cm ConfusionMatrix) F1() float64 {
	return errors.SafeDivide(float64(2*cm.TP), float64(2*cm.TP+cm.FP+cm.FN))
}

// Precision は適合率を計算する。陽性予測が一つもない場合は
// UndefinedMetricWarning を出して 0 を返す。
func Precision(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if cm.TP+cm.FP == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted samples", 0))
	}
	return cm.Precision(), nil
}

// Recall は再現率を計算する。陽性の正解が一つもない場合は警告を出して 0 を返す。
func Recall(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if cm.TP+cm.FN == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("recall", "no true samples", 0))
	}
	return cm.Recall(), nil
}

// F1Score は適合率と再現率の調和平均を計算する。
func F1Score(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if 2*cm.TP+cm.FP+cm.FN == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("f1", "no true nor predicted samples", 0))
	}
	return cm.F1(), nil
}

// PredictAtThreshold はスコアが threshold 以上なら 1、それ以外を 0 にする
func PredictAtThreshold(yScore *mat.VecDense, threshold float64) *mat.VecDense {
	out := mat.NewVecDense(yScore.Len(), nil)
	for i := 0; i < yScore.Len(); i++ {
		if yScore.AtVec(i) >= threshold {
			out.SetVec(i, 1)
		}
	}
	return out
}

// ThresholdScores holds the label metrics at one decision threshold.
type ThresholdScores struct {
	Threshold float64         `json:"threshold"`
	Accuracy  float64         `json:"accuracy"`
	Precision float64         `json:"precision"`
	Recall    float64         `json:"recall"`
	F1        float64         `json:"f1"`
	Confusion ConfusionMatrix `json:"confusion"`
}

// ScoreAtThreshold は threshold で二値化した予測の各指標を返す。
// 未定義の指標は警告なしで 0 になる。
func ScoreAtThreshold(yTrue, yScore *mat.VecDense, threshold float64) (ThresholdScores, error) {
	if _, err := checkPair("ScoreAtThreshold", yTrue, yScore); err != nil {
		return ThresholdScores{}, err
	}
	cm, err := NewConfusionMatrix(yTrue, PredictAtThreshold(yScore, threshold))
	if err != nil {
		return ThresholdScores{}, err
	}
	return ThresholdScores{
		Threshold: threshold,
		Accuracy:  cm.Accuracy(),
		Precision: cm.Precision(),
		Recall:    cm.Recall(),
		F1:        cm.F1(),
		Confusion: cm,
	}, nil
}

// ThresholdSweep evaluates thresholds start, start+step, ... up to and
// including stop. Thresholds are computed as start+i*step and rounded to
// 10 decimals so 0.1+0.05*k prints cleanly.
func ThresholdSweep(yTrue, yScore *mat.VecDense, start, stop, step float64) ([]ThresholdScores, error) {
	if !(step > 0) || stop < start {
		return nil, errors.NewValidationError("step", "sweep needs step > 0 and stop >= start", step)
	}
	var out []ThresholdScores
	for i := 0; ; i++ {
		th := math.Round((start+float64(i)*step)*1e10) / 1e10
		if th > stop+1e-12 {
			break
		}
		s, err := ScoreAtThreshold(yTrue, yScore, th)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
