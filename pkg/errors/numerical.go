package errors

import (
	"math"
)

// divideEpsilon 未満の分母はゼロとみなす
const divideEpsilon = 1e-10

// maxExpArg を超える指数は float64 で +Inf になる
const maxExpArg = 700.0

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CheckNumericalStability は values に NaN / Inf が含まれていれば
// NumericalInstabilityError を返します。反復法では毎イテレーション呼び出します。
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	for _, v := range values {
		if !finite(v) {
			return NewNumericalInstabilityError(operation, values, iteration)
		}
	}
	return nil
}

// CheckScalar は単一の値について CheckNumericalStability と同じ検査をします。
func CheckScalar(operation string, value float64, iteration int) error {
	if finite(value) {
		return nil
	}
	return NewNumericalInstabilityError(operation, []float64{value}, iteration)
}

// SafeDivide は分母がほぼゼロのとき 0 を返す除算です。
// 指標計算での zero_division=0 の扱いに使います。
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < divideEpsilon {
		return 0
	}
	return numerator / denominator
}

// ClipValue は value を [lo, hi] に収めます。
func ClipValue(value, lo, hi float64) float64 {
	return math.Min(math.Max(value, lo), hi)
}

// ClippedLog は p を [eps, 1-eps] に収めてから対数を取ります。
// 対数損失で log(0) を避けるために使います。
func ClippedLog(p, eps float64) float64 {
	return math.Log(ClipValue(p, eps, 1-eps))
}

// StabilizeExp は引数を ±maxExpArg に制限した exp です。
func StabilizeExp(value float64) float64 {
	if value < -maxExpArg {
		return 0
	}
	return math.Exp(math.Min(value, maxExpArg))
}
