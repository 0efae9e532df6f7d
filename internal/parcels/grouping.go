package parcels

import (
	"errors"

	"github.com/aclements/go-gg/table"
	"github.com/rotisserie/eris"
)

// Attribute column names, as they appear in Grouping and to the renderer.
const (
	ColumnUseCode         = "use_code"
	ColumnLandMarketValue = "land_market_value"
	ColumnAcreage         = "acreage"
	ColumnCityCode        = "city_code"
)

// ErrUnknownColumn is returned when a column is neither an attribute nor
// an attached derived column.
var ErrUnknownColumn = errors.New("unknown column")

// Labels returns a categorical column by name.
func (t *Table) Labels(column string) ([]string, error) {
	out := make([]string, len(t.Parcels))
	switch column {
	case ColumnUseCode:
		for i, p := range t.Parcels {
			out[i] = p.UseCode
		}
	case ColumnCityCode:
		for i, p := range t.Parcels {
			out[i] = p.CityCode
		}
	case ColumnBuildingType:
		if t.buildingType == nil {
			return nil, eris.Wrapf(ErrUnknownColumn, "parcels: %s not attached", column)
		}
		for i, c := range t.buildingType {
			out[i] = c.String()
		}
	default:
		return nil, eris.Wrapf(ErrUnknownColumn, "parcels: categorical column %q", column)
	}
	return out, nil
}

// Values returns a numeric column by name. The derived column is returned
// without copying.
func (t *Table) Values(column string) ([]float64, error) {
	switch column {
	case ColumnLandMarketValue, ColumnAcreage:
		out := make([]float64, len(t.Parcels))
		for i, p := range t.Parcels {
			if column == ColumnAcreage {
				out[i] = p.Acreage
			} else {
				out[i] = p.LandMarketValue
			}
		}
		return out, nil
	case ColumnLandValuePerAcre:
		if t.perAcre == nil {
			return nil, eris.Wrapf(ErrUnknownColumn, "parcels: %s not attached", column)
		}
		return t.perAcre, nil
	}
	return nil, eris.Wrapf(ErrUnknownColumn, "parcels: numeric column %q", column)
}

// Grouping returns the attribute columns of t, plus any attached derived
// columns, as a go-gg table for charting and printing. Geometry is left
// out.
func (t *Table) Grouping() *table.Table {
	b := new(table.Builder)
	for _, col := range []string{ColumnUseCode, ColumnLandMarketValue, ColumnAcreage, ColumnCityCode, ColumnBuildingType, ColumnLandValuePerAcre} {
		if labels, err := t.Labels(col); err == nil {
			b.Add(col, labels)
		} else if values, err := t.Values(col); err == nil {
			b.Add(col, values)
		}
	}
	return b.Done()
}
