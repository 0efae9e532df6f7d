// Package landvalue derives land value per acre for parcels.
package landvalue

import (
	"math"

	"parcelmap/internal/types"
)

// Default plausible band for land value per acre. Values outside it are
// mostly data errors and swamp the colour scale.
const (
	DefaultLowerBound = 1_000
	DefaultUpperBound = 10_000_000
)

// PerAcre returns land market value divided by acreage. Zero acreage is
// not special-cased: the result is +Inf, -Inf or NaN.
func PerAcre(p types.Parcel) float64 {
	return p.LandMarketValue / p.Acreage
}

// Undefined reports whether v is NaN or infinite.
func Undefined(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// Range is an exclusive (Lower, Upper) band.
type Range struct {
	Lower float64 `yaml:"lower_bound" mapstructure:"lower_bound"`
	Upper float64 `yaml:"upper_bound" mapstructure:"upper_bound"`
}

// DefaultRange returns the default plausible band.
func DefaultRange() Range {
	return Range{Lower: DefaultLowerBound, Upper: DefaultUpperBound}
}

// Contains reports whether Lower < v < Upper. NaN is never contained.
func (r Range) Contains(v float64) bool {
	return v > r.Lower && v < r.Upper
}
