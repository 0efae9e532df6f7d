// Package landuse buckets county use codes into coarse residential
// building types for mapping.
//
// Use codes starting with 0 are residential; the second digit is the
// building type code. The buckets are deliberately lossy: they do not
// account for density, so a sprawling duplex lands in the same bucket as a
// high-rise condominium.
package landuse

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/rotisserie/eris"
)

// Category is a coarse residential building type.
type Category int

const (
	Other Category = iota
	SingleFamily
	MultiFamily
)

// Categories lists every Category in legend order.
var Categories = []Category{Other, SingleFamily, MultiFamily}

// ErrUnclassifiable is returned when a residential use code has no valid
// building type digit.
var ErrUnclassifiable = errors.New("unclassifiable use code")

func (c Category) String() string {
	switch c {
	case SingleFamily:
		return "Single-Family-likely"
	case MultiFamily:
		return "Multi-Family-likely"
	default:
		return "Other"
	}
}

// Legend returns the label shown next to the category's colour swatch.
func (c Category) Legend() string {
	switch c {
	case SingleFamily:
		return "Blue: Probably Single Family"
	case MultiFamily:
		return "Red: Probably Multi Family"
	default:
		return "Grey: Other"
	}
}

// buildingTypes names the building type codes 0-9.
var buildingTypes = [10]string{
	"Vacant",
	"Single Fam Residence",
	"Manufactured Home",
	"Multi Fam Residence",
	"Condominium",
	"Cooperative",
	"Assisted Living",
	"Hotel Or Motel",
	"Condominium",
	"Other",
}

// generalTypes maps a building type code to its Category.
var generalTypes = [10]Category{
	Other,
	SingleFamily, SingleFamily,
	MultiFamily, MultiFamily, MultiFamily, MultiFamily, MultiFamily, MultiFamily, MultiFamily,
}

// BuildingTypeName returns the name of building type code d, or "" if d is
// not in 0-9.
func BuildingTypeName(d int) string {
	if d < 0 || d >= len(buildingTypes) {
		return ""
	}
	return buildingTypes[d]
}

// BuildingType returns the building type digit of a residential use code.
// ok is false for non-residential codes. A residential code without a
// digit in second position returns ErrUnclassifiable.
func BuildingType(code string) (d int, ok bool, err error) {
	if code == "" || code[0] != '0' {
		return 0, false, nil
	}
	if len(code) < 2 || code[1] < '0' || code[1] > '9' {
		return 0, false, eris.Wrapf(ErrUnclassifiable, "landuse: code %q", code)
	}
	return int(code[1] - '0'), true, nil
}

// Classify returns the Category for a use code. Empty codes and codes not
// starting with 0 are Other. A residential code with a bad building type
// digit is also Other, but is reported with ErrUnclassifiable so callers
// can count it.
func Classify(code string) (Category, error) {
	d, ok, err := BuildingType(code)
	if err != nil || !ok {
		return Other, err
	}
	return generalTypes[d], nil
}

// CodeText renders a raw attribute value as a use code. Missing values
// become "" and numbers are written without exponent.
func CodeText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
