package metrics

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/periospot/implantgen/pkg/errors"
)

// ROC is a receiver operating characteristic curve. Points run from (0,0)
// to (1,1); thresholds decrease and Thresholds[0] is the top score plus one,
// a cut no case reaches.
type ROC struct {
	FPR        []float64 `json:"fpr"`
	TPR        []float64 `json:"tpr"`
	Thresholds []float64 `json:"thresholds"`
}

// PR is a precision-recall curve with thresholds increasing. The final point
// (recall 0, precision 1) has no threshold, so Thresholds is one shorter.
type PR struct {
	Precision  []float64 `json:"precision"`
	Recall     []float64 `json:"recall"`
	Thresholds []float64 `json:"thresholds"`
}

// binaryCurve は各スコア閾値での累積 TP/FP を求める（降順）。
// 同点のスコアは一つの閾値にまとめる。
func binaryCurve(op string, yTrue, yScore *mat.VecDense) (fps, tps, thresholds []float64, err error) {
	n, err := checkPair(op, yTrue, yScore)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := checkBinaryLabels(op, yTrue); err != nil {
		return nil, nil, nil, err
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return yScore.AtVec(order[a]) > yScore.AtVec(order[b])
	})

	var tp, fp float64
	for k, idx := range order {
		if yTrue.AtVec(idx) == 1 {
			tp++
		} else {
			fp++
		}
		// 次のスコアが異なる位置でのみ点を打つ
		if k == n-1 || yScore.AtVec(order[k+1]) != yScore.AtVec(idx) {
			tps = append(tps, tp)
			fps = append(fps, fp)
			thresholds = append(thresholds, yScore.AtVec(idx))
		}
	}
	return fps, tps, thresholds, nil
}

// ROCCurve computes the ROC curve. Collinear intermediate points are dropped,
// which leaves the area unchanged. Labels must contain both classes.
func ROCCurve(yTrue, yScore *mat.VecDense) (ROC, error) {
	fps, tps, thresholds, err := binaryCurve("ROCCurve", yTrue, yScore)
	if err != nil {
		return ROC{}, err
	}
	nNeg, nPos := fps[len(fps)-1], tps[len(tps)-1]
	if nNeg == 0 || nPos == 0 {
		return ROC{}, errors.NewValueError("ROCCurve", "only one class present in y_true")
	}

	// 二階差分が 0 の点（直線上の中間点）を落とす
	keep := make([]int, 0, len(fps))
	for i := range fps {
		if i == 0 || i == len(fps)-1 {
			keep = append(keep, i)
			continue
		}
		d2fp := fps[i+1] - 2*fps[i] + fps[i-1]
		d2tp := tps[i+1] - 2*tps[i] + tps[i-1]
		if d2fp != 0 || d2tp != 0 {
			keep = append(keep, i)
		}
	}

	roc := ROC{
		FPR:        make([]float64, 0, len(keep)+1),
		TPR:        make([]float64, 0, len(keep)+1),
		Thresholds: make([]float64, 0, len(keep)+1),
	}
	roc.FPR = append(roc.FPR, 0)
	roc.TPR = append(roc.TPR, 0)
	roc.Thresholds = append(roc.Thresholds, thresholds[0]+1)
	for _, i := range keep {
		roc.FPR = append(roc.FPR, fps[i]/nNeg)
		roc.TPR = append(roc.TPR, tps[i]/nPos)
		roc.Thresholds = append(roc.Thresholds, thresholds[i])
	}
	return roc, nil
}

// trapezoid は x が単調な折れ線の下の面積を台形則で求める
func trapezoid(x, y []float64) float64 {
	var area float64
	for i := 1; i < len(x); i++ {
		area += (x[i] - x[i-1]) * (y[i] + y[i-1]) / 2
	}
	return area
}

// AUC は ROC 曲線下面積を計算する。
// 片方のクラスしかない場合は UndefinedMetricWarning を出して 0.5 を返す。
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	fps, tps, _, err := binaryCurve("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	nNeg, nPos := fps[len(fps)-1], tps[len(tps)-1]
	if nNeg == 0 || nPos == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", "only one class present in y_true", 0.5))
		return 0.5, nil
	}

	x := make([]float64, len(fps)+1)
	y := make([]float64, len(tps)+1)
	for i := range fps {
		x[i+1] = fps[i] / nNeg
		y[i+1] = tps[i] / nPos
	}
	return trapezoid(x, y), nil
}

// AUCMatrix は行列の先頭列同士で AUC を計算する
func AUCMatrix(yTrue, yScore mat.Matrix) (float64, error) {
	if yTrue == nil || yScore == nil {
		return 0, errors.NewValueError("AUCMatrix", "nil matrix")
	}
	r, c := yTrue.Dims()
	rs, cs := yScore.Dims()
	if r == 0 || c == 0 || rs == 0 || cs == 0 {
		return 0, errors.NewValueError("AUCMatrix", "empty matrix")
	}
	if r != rs {
		return 0, errors.NewDimensionError("AUCMatrix", r, rs, 0)
	}
	return AUC(firstColumn(yTrue), firstColumn(yScore))
}

func firstColumn(m mat.Matrix) *mat.VecDense {
	r, _ := m.Dims()
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v
}

// PRCurve computes the precision-recall curve.
func PRCurve(yTrue, yScore *mat.VecDense) (PR, error) {
	fps, tps, thresholds, err := binaryCurve("PRCurve", yTrue, yScore)
	if err != nil {
		return PR{}, err
	}
	nPos := tps[len(tps)-1]
	if nPos == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("recall", "no positive class found in y_true", 1))
	}

	m := len(tps)
	pr := PR{
		Precision:  make([]float64, m+1),
		Recall:     make([]float64, m+1),
		Thresholds: make([]float64, m),
	}
	// 閾値昇順に並べ替えて格納する
	for i := 0; i < m; i++ {
		j := m - 1 - i
		pr.Precision[i] = errors.SafeDivide(tps[j], tps[j]+fps[j])
		if nPos == 0 {
			pr.Recall[i] = 1
		} else {
			pr.Recall[i] = tps[j] / nPos
		}
		pr.Thresholds[i] = thresholds[j]
	}
	pr.Precision[m] = 1
	pr.Recall[m] = 0
	return pr, nil
}

// AveragePrecision は PR 曲線の段差和 Σ(R_n - R_{n-1}) P_n を計算する。
// 陽性が一つもない場合は 0 になる。
func AveragePrecision(yTrue, yScore *mat.VecDense) (float64, error) {
	pr, err := PRCurve(yTrue, yScore)
	if err != nil {
		return 0, err
	}
	var ap float64
	for i := 0; i < len(pr.Recall)-1; i++ {
		ap += (pr.Recall[i] - pr.Recall[i+1]) * pr.Precision[i]
	}
	return ap, nil
}
