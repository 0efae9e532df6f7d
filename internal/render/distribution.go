package render

import (
	"io"
	"math"

	"github.com/aclements/go-gg/gg"
	"github.com/aclements/go-gg/ggstat"
	"github.com/aclements/go-gg/table"
	"github.com/rotisserie/eris"

	"parcelmap/internal/landvalue"
	"parcelmap/internal/parcels"
)

// Distribution writes the empirical CDF of log10 land value per acre as an
// SVG chart. When building types are attached there is one curve per
// type.
func Distribution(w io.Writer, t *parcels.Table, width, height int, title string) error {
	values := t.LandValuePerAcre()
	if values == nil {
		return eris.Errorf("render: %s not attached", parcels.ColumnLandValuePerAcre)
	}
	usable := 0
	for _, v := range values {
		if v > 0 && !landvalue.Undefined(v) {
			usable++
		}
	}
	if usable == 0 {
		return eris.New("render: no positive land values to chart")
	}

	var g table.Grouping = t.Grouping()
	g = table.Filter(g, func(v float64) bool {
		return v > 0 && !landvalue.Undefined(v)
	}, parcels.ColumnLandValuePerAcre)

	x := "log10 " + parcels.ColumnLandValuePerAcre
	plot := gg.NewPlot(g)
	plot.Stat(log10Col{parcels.ColumnLandValuePerAcre})

	color := ""
	if t.BuildingTypes() != nil {
		plot.GroupBy(parcels.ColumnBuildingType)
		color = parcels.ColumnBuildingType
	}
	plot.Stat(ggstat.ECDF{X: x})
	plot.Add(gg.LayerSteps{LayerPaths: gg.LayerPaths{X: x, Y: "cumulative density", Color: color}})
	plot.Add(gg.Title(title))

	if err := plot.WriteSVG(w, width, height); err != nil {
		return eris.Wrap(err, "render: write distribution")
	}
	return nil
}

type log10Col struct {
	col string
}

func (l log10Col) F(g table.Grouping) table.Grouping {
	return table.MapTables(g, func(_ table.GroupID, t *table.Table) *table.Table {
		xs := t.MustColumn(l.col).([]float64)
		ys := make([]float64, len(xs))
		for i, v := range xs {
			ys[i] = math.Log10(v)
		}
		return table.NewBuilder(t).Add("log10 "+l.col, ys).Done()
	})
}
