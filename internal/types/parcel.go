package types

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// ErrMissingColumn is returned when a layer lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// Parcel holds one row of the county parcel layer. We keep only the
// attributes the maps need; the loader fills them once so nothing
// downstream has to look columns up by name.
type Parcel struct {
	UseCode         string  // DOR use code, "" when absent
	LandMarketValue float64 // NaN when blank or unparsable
	Acreage         float64 // may be 0
	CityCode        string

	Geometry geom.T // nil when the feature has no usable shape
}

// Columns names the source columns each Parcel field is read from.
type Columns struct {
	UseCode         string `yaml:"use_code" mapstructure:"use_code"`
	LandMarketValue string `yaml:"land_market_value" mapstructure:"land_market_value"`
	Acreage         string `yaml:"acreage" mapstructure:"acreage"`
	CityCode        string `yaml:"city_code" mapstructure:"city_code"`
	Geometry        string `yaml:"geometry" mapstructure:"geometry"` // database layers only
}

// Resolve matches the configured column names against the names a layer
// actually carries, ignoring case and trailing NULs. The result holds the
// layer's spelling of each name. A missing required column is an error; a
// missing city column resolves to "".
func (c Columns) Resolve(names []string) (Columns, error) {
	byFold := make(map[string]string, len(names))
	for _, n := range names {
		clean := strings.TrimSpace(strings.TrimRight(n, "\x00"))
		byFold[strings.ToLower(clean)] = n
	}
	lookup := func(want string) (string, bool) {
		got, ok := byFold[strings.ToLower(want)]
		return got, ok && want != ""
	}

	out := Columns{Geometry: c.Geometry}
	for _, f := range []struct {
		want string
		dst  *string
	}{
		{c.UseCode, &out.UseCode},
		{c.LandMarketValue, &out.LandMarketValue},
		{c.Acreage, &out.Acreage},
	} {
		got, ok := lookup(f.want)
		if !ok {
			return Columns{}, eris.Wrapf(ErrMissingColumn, "types: column %q", f.want)
		}
		*f.dst = got
	}
	if got, ok := lookup(c.CityCode); ok {
		out.CityCode = got
	}
	return out, nil
}

// ParseNumber parses a numeric attribute, tolerating thousands separators
// and surrounding blanks. Blank or unparsable input yields NaN.
func ParseNumber(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
