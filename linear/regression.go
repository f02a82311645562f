// Package linear は正規方程式による線形回帰と、L2正則化付きの二値ロジスティック回帰を提供します。
package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/periospot/implantgen/core/model"
	"github.com/periospot/implantgen/core/parallel"
	"github.com/periospot/implantgen/pkg/errors"
)

// 並列処理の閾値（この値以下の行数では逐次処理を使用）
const parallelThreshold = 1000

var (
	_ model.Regressor      = (*LinearRegression)(nil)
	_ model.WeightExporter = (*LinearRegression)(nil)
)

// LinearRegression は線形回帰モデル
type LinearRegression struct {
	model.BaseEstimator
	Weights   *mat.VecDense // 重み（係数）
	Intercept float64       // 切片
	NFeatures int           // 特徴量の数
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

// Fit はモデルを訓練データで学習させる
// 正規方程式 (X^T X) w = X^T y をコレスキー分解で解く
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}

	// 切片項のために X に 1 の列を追加: [1, X]
	design := withInterceptColumn(X)

	var xtx mat.SymDense
	xtx.SymOuterK(1, design.T())

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.ErrSingularMatrix)
	}

	yVec := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		yVec.SetVec(i, y.At(i, 0))
	}
	var xty mat.VecDense
	xty.MulVec(design.T(), yVec)

	var weights mat.VecDense
	if err := chol.SolveVecTo(&weights, &xty); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.CombineErrors(errors.ErrSingularMatrix, err))
	}
	if err := errors.CheckNumericalStability("LinearRegression.Fit", weights.RawVector().Data, 0); err != nil {
		return err
	}

	// 切片と重みを分離
	lr.NFeatures = c
	lr.Intercept = weights.AtVec(0)
	lr.Weights = mat.NewVecDense(c, nil)
	for j := 0; j < c; j++ {
		lr.Weights.SetVec(j, weights.AtVec(j+1))
	}

	lr.SetFitted()
	return nil
}

// withInterceptColumn は先頭に 1 の列を持つ計画行列を組み立てる
func withInterceptColumn(X mat.Matrix) *mat.Dense {
	r, c := X.Dims()
	design := mat.NewDense(r, c+1, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			design.Set(i, 0, 1.0)
			for j := 0; j < c; j++ {
				design.Set(i, j+1, X.At(i, j))
			}
		}
	})
	return design
}

// Predict は入力データに対する予測を行う
// y = X * weights + intercept
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LinearRegression", "Predict")
	}

	r, c := X.Dims()
	if c != lr.NFeatures {
		return nil, errors.NewDimensionError("LinearRegression.Predict", lr.NFeatures, c, 1)
	}

	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		pred := lr.Intercept
		for j := 0; j < c; j++ {
			pred += X.At(i, j) * lr.Weights.AtVec(j)
		}
		predictions.Set(i, 0, pred)
	}
	return predictions, nil
}

// GetWeights は学習された重み（係数）を返す
func (lr *LinearRegression) GetWeights() []float64 {
	if lr.Weights == nil {
		return nil
	}
	return append([]float64(nil), lr.Weights.RawVector().Data...)
}

// GetIntercept は学習された切片を返す
func (lr *LinearRegression) GetIntercept() float64 {
	if !lr.IsFitted() {
		return 0
	}
	return lr.Intercept
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	if !lr.IsFitted() {
		return 0, errors.NewNotFittedError("LinearRegression", "Score")
	}

	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}

	r, _ := y.Dims()
	var yMean float64
	for i := 0; i < r; i++ {
		yMean += y.At(i, 0)
	}
	yMean /= float64(r)

	// 全変動 (TSS) と残差変動 (RSS)
	var tss, rss float64
	for i := 0; i < r; i++ {
		yTrue := y.At(i, 0)
		tss += (yTrue - yMean) * (yTrue - yMean)
		rss += (yTrue - yPred.At(i, 0)) * (yTrue - yPred.At(i, 0))
	}
	if tss == 0 {
		return 0, errors.NewValueError("LinearRegression.Score", "total sum of squares is zero")
	}
	return 1 - rss/tss, nil
}

// ExportWeights は学習済みの係数を特徴量名付きで返す
func (lr *LinearRegression) ExportWeights(features []string) (*model.ModelWeights, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LinearRegression", "ExportWeights")
	}
	mw := &model.ModelWeights{
		ModelType:    "LinearRegression",
		Coefficients: lr.GetWeights(),
		Intercept:    lr.Intercept,
		Features:     append([]string(nil), features...),
	}
	if err := mw.Validate(); err != nil {
		return nil, err
	}
	return mw, nil
}
