package source

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"parcelmap/internal/landuse"
	"parcelmap/internal/parcels"
	"parcelmap/internal/types"
)

// GeoJSON loads a FeatureCollection. Path is either the file itself or a
// directory holding <layer>.geojson.
type GeoJSON struct {
	Path    string
	Columns types.Columns
}

func (g *GeoJSON) Load(ctx context.Context, layer string) (*parcels.Table, error) {
	path := g.Path
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, layer+".geojson")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read geojson %s", path)
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "source: decode geojson %s", path)
	}

	rows := make([]types.Parcel, 0, len(fc.Features))
	if len(fc.Features) == 0 {
		return parcels.New(layer, rows), nil
	}

	// GeoJSON has no layer schema and exporters drop null properties, so
	// the columns are the union of keys over all features. Rows missing a
	// key get NaN or "".
	seen := make(map[string]bool)
	var names []string
	for _, f := range fc.Features {
		for k := range f.Properties {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)
	cols, err := g.Columns.Resolve(names)
	if err != nil {
		return nil, eris.Wrapf(err, "source: layer %s", layer)
	}

	for i, f := range fc.Features {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrap(err, "source: read geojson")
			}
		}
		p := types.Parcel{
			UseCode:         landuse.CodeText(f.Properties[cols.UseCode]),
			LandMarketValue: numberValue(f.Properties[cols.LandMarketValue]),
			Acreage:         numberValue(f.Properties[cols.Acreage]),
			Geometry:        f.Geometry,
		}
		if cols.CityCode != "" {
			p.CityCode = landuse.CodeText(f.Properties[cols.CityCode])
		}
		rows = append(rows, p)
	}

	zap.L().Debug("source: loaded geojson", zap.String("path", path), zap.Int("rows", len(rows)))
	return parcels.New(layer, rows), nil
}

func (g *GeoJSON) Close() error { return nil }

// numberValue converts a decoded JSON property to float64. Strings are
// parsed; anything else is NaN.
func numberValue(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		return types.ParseNumber(x)
	default:
		return math.NaN()
	}
}
