// Package model は学習器が共有するインターフェースと学習状態の管理を提供します。
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer はスコアを計算できるモデルのインターフェース
// 回帰では決定係数 R²、分類では正解率を返す
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// Regressor は回帰モデルの組み合わせインターフェース
type Regressor interface {
	Fitter
	Predictor
	Scorer
}

// BinaryClassifier は二値分類モデルのインターフェース
type BinaryClassifier interface {
	Fitter
	Predictor
	Scorer

	// PredictProba は陽性クラスの確率を n_samples × 1 の行列で返す
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// WeightExporter は学習済みの係数を書き出せるモデル
type WeightExporter interface {
	ExportWeights(features []string) (*ModelWeights, error)
}
