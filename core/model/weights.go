package model

import (
	"math"
	"sort"

	"github.com/periospot/implantgen/pkg/errors"
)

// ModelWeights は学習済み線形モデルの係数を特徴量名と共に保持する
// 分析レポートの JSON にそのまま埋め込まれる
type ModelWeights struct {
	// ModelType はモデルの種類（LinearRegression, LogisticRegression）
	ModelType string `json:"model_type"`

	// Coefficients は重み係数（Features と同じ順序）
	Coefficients []float64 `json:"coefficients"`

	// Intercept は切片
	Intercept float64 `json:"intercept"`

	// Features は特徴量の名前
	Features []string `json:"features"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters,omitempty"`
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if len(mw.Coefficients) == 0 {
		return errors.NewValidationError("coefficients", "fitted model must have coefficients", len(mw.Coefficients))
	}
	if len(mw.Features) != len(mw.Coefficients) {
		return errors.NewDimensionError("ModelWeights.Validate", len(mw.Coefficients), len(mw.Features), 1)
	}
	return nil
}

// Coefficient は特徴量名から係数を引く
func (mw *ModelWeights) Coefficient(feature string) (float64, bool) {
	for i, f := range mw.Features {
		if f == feature {
			return mw.Coefficients[i], true
		}
	}
	return 0, false
}

// FeatureEffect は1特徴量の係数とオッズ比
type FeatureEffect struct {
	Feature     string  `json:"feature"`
	Coefficient float64 `json:"coefficient"`
	OddsRatio   float64 `json:"odds_ratio"`
}

// OddsRatios は exp(係数) を昇順に並べて返す
// ロジスティック回帰の係数にのみ意味がある
func (mw *ModelWeights) OddsRatios() []FeatureEffect {
	effects := make([]FeatureEffect, len(mw.Coefficients))
	for i, c := range mw.Coefficients {
		effects[i] = FeatureEffect{Feature: mw.Features[i], Coefficient: c, OddsRatio: math.Exp(c)}
	}
	sort.SliceStable(effects, func(i, j int) bool {
		return effects[i].OddsRatio < effects[j].OddsRatio
	})
	return effects
}
