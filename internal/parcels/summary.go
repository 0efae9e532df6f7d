package parcels

import (
	"math"

	"github.com/aclements/go-moremath/stats"

	"parcelmap/internal/landuse"
	"parcelmap/internal/landvalue"
)

// Summary is a per-layer breakdown of the derived columns.
type Summary struct {
	Rows int

	// ByCategory counts rows per building type category. Empty when the
	// residential_building_type column is not attached.
	ByCategory map[landuse.Category]int
	// ByBuildingType counts residential rows per building type digit.
	ByBuildingType [10]int
	Unclassifiable int

	LandValue ValueStats
}

// ValueStats describes the land_value_per_acre column.
type ValueStats struct {
	Undefined int // NaN or infinite
	InRange   int
	Min       float64
	Max       float64
	Mean      float64
	Median    float64
}

// Summarize counts categories and computes land value statistics over the
// rows inside r. Statistics are NaN when no row is in range.
func (t *Table) Summarize(r landvalue.Range) Summary {
	s := Summary{
		Rows:       t.Len(),
		ByCategory: make(map[landuse.Category]int),
	}

	if t.buildingType != nil {
		for i, c := range t.buildingType {
			s.ByCategory[c]++
			d, ok, err := landuse.BuildingType(t.Parcels[i].UseCode)
			if err != nil {
				s.Unclassifiable++
			} else if ok {
				s.ByBuildingType[d]++
			}
		}
	}

	s.LandValue = ValueStats{Min: math.NaN(), Max: math.NaN(), Mean: math.NaN(), Median: math.NaN()}
	if t.perAcre != nil {
		var xs []float64
		for _, v := range t.perAcre {
			if landvalue.Undefined(v) {
				s.LandValue.Undefined++
				continue
			}
			if r.Contains(v) {
				xs = append(xs, v)
			}
		}
		s.LandValue.InRange = len(xs)
		if len(xs) > 0 {
			sample := stats.Sample{Xs: xs}
			s.LandValue.Min, s.LandValue.Max = sample.Bounds()
			s.LandValue.Mean = sample.Mean()
			s.LandValue.Median = sample.Quantile(0.5)
		}
	}
	return s
}
