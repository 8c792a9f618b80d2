package normalize

import "math"

// Clamp01 clamps x into [0,1].
func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// LinearRescale maps x from the bounded native range [lo, hi] onto [0,1],
// clamping values outside the range. A −10..+10 scale maps −10→0, 0→0.5,
// +10→1.
func LinearRescale(x, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return Clamp01((x - lo) / (hi - lo))
}

// SaturatingRatio maps an unbounded non-negative count onto [0,1] as
// min(x/k, 1). Negative inputs score 0.
func SaturatingRatio(x, k float64) float64 {
	if x <= 0 || k <= 0 {
		return 0
	}
	return Clamp01(x / k)
}

// LogisticSquash maps a non-negative long-tailed value onto [0,1) with
// 2/(1+e^(−x/scale))−1: zero stays zero, values near scale land mid-range,
// outliers saturate instead of diverging.
func LogisticSquash(x, scale float64) float64 {
	if x <= 0 || scale <= 0 {
		return 0
	}
	return Clamp01(2/(1+math.Exp(-x/scale)) - 1)
}

// Sigmoid is the standard logistic function mapping ℝ onto (0,1) with
// 0→0.5. Used to squash z-scores so statistical outliers saturate.
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
