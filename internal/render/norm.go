package render

import (
	"math"

	"github.com/rotisserie/eris"
)

// Norm maps data values onto [0, 1] for palette lookup.
type Norm interface {
	Normalize(v float64) float64
	Ticks() []float64
}

// LogNorm normalizes logarithmically between VMin and VMax. Values at or
// below zero normalize to NaN; values outside the range are clamped.
type LogNorm struct {
	VMin, VMax float64
}

// LogNormOf returns a LogNorm spanning the positive finite values in vs.
func LogNormOf(vs []float64) (LogNorm, error) {
	n := LogNorm{VMin: math.Inf(1), VMax: math.Inf(-1)}
	for _, v := range vs {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		n.VMin = math.Min(n.VMin, v)
		n.VMax = math.Max(n.VMax, v)
	}
	if math.IsInf(n.VMin, 1) {
		return LogNorm{}, eris.New("render: no positive values to normalize")
	}
	return n, nil
}

func (n LogNorm) Normalize(v float64) float64 {
	if v <= 0 || math.IsNaN(v) {
		return math.NaN()
	}
	lo, hi := math.Log10(n.VMin), math.Log10(n.VMax)
	if hi == lo {
		return 0.5
	}
	x := (math.Log10(v) - lo) / (hi - lo)
	return math.Max(0, math.Min(1, x))
}

// Ticks returns the powers of ten within [VMin, VMax]. When the range
// holds none, the endpoints are returned.
func (n LogNorm) Ticks() []float64 {
	var ticks []float64
	for e := math.Ceil(decade(n.VMin)); e <= math.Floor(decade(n.VMax)); e++ {
		ticks = append(ticks, math.Pow(10, e))
	}
	if len(ticks) == 0 {
		ticks = []float64{n.VMin}
		if n.VMax != n.VMin {
			ticks = append(ticks, n.VMax)
		}
	}
	return ticks
}

// decade is log10 snapped to the nearest integer when within rounding
// error of it.
func decade(v float64) float64 {
	l := math.Log10(v)
	if r := math.Round(l); math.Abs(l-r) < 1e-9 {
		return r
	}
	return l
}
