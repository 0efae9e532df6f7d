package source

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"parcelmap/internal/parcels"
	"parcelmap/internal/types"
)

// Shapefile loads <Dir>/<layer>.shp and its attribute table.
type Shapefile struct {
	Dir     string
	Columns types.Columns
}

func (s *Shapefile) Load(ctx context.Context, layer string) (*parcels.Table, error) {
	path := filepath.Join(s.Dir, layer+".shp")
	r, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open shapefile %s", path)
	}
	defer func() { _ = r.Close() }()

	fields := r.Fields()
	names := make([]string, len(fields))
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		names[i] = f.String()
		fieldIdx[names[i]] = i
	}
	cols, err := s.Columns.Resolve(names)
	if err != nil {
		return nil, eris.Wrapf(err, "source: layer %s", layer)
	}

	attr := func(col string) string {
		if col == "" {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(r.Attribute(fieldIdx[col]), "\x00"))
	}

	var rows []types.Parcel
	var noShape int
	for r.Next() {
		if len(rows)%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrap(err, "source: read shapefile")
			}
		}
		_, shape := r.Shape()

		p := types.Parcel{
			UseCode:         attr(cols.UseCode),
			LandMarketValue: types.ParseNumber(attr(cols.LandMarketValue)),
			Acreage:         types.ParseNumber(attr(cols.Acreage)),
			CityCode:        attr(cols.CityCode),
		}
		if poly, ok := shape.(*shp.Polygon); ok {
			if mp := polygonToMultiPolygon(poly); mp != nil {
				p.Geometry = mp
			}
		}
		if p.Geometry == nil {
			noShape++
		}
		rows = append(rows, p)
	}
	if err := r.Err(); err != nil {
		return nil, eris.Wrapf(err, "source: read shapefile %s", path)
	}

	zap.L().Debug("source: loaded shapefile",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
		zap.Int("without_shape", noShape),
	)
	return parcels.New(layer, rows), nil
}

func (s *Shapefile) Close() error { return nil }

// polygonToMultiPolygon converts a shapefile polygon to a MultiPolygon with
// one single-ring polygon per part. Holes are kept as their own parts and
// cancel out under an even-odd fill.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 3 {
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("source: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("source: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
