package source

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"parcelmap/internal/types"
)

var testColumns = types.Columns{
	UseCode:         "DOR_CODE",
	LandMarketValue: "LAND_MKT",
	Acreage:         "ACREAGE",
	CityCode:        "CITY_CODE",
	Geometry:        "SHAPE",
}

func square(x, y, size float64) []shp.Point {
	return []shp.Point{
		{X: x, Y: y},
		{X: x, Y: y + size},
		{X: x + size, Y: y + size},
		{X: x + size, Y: y},
		{X: x, Y: y},
	}
}

type fixtureRow struct {
	code, city     string
	value, acreage float64
	parts          [][]shp.Point
}

func writeShapefile(t *testing.T, dir, layer string, fields []shp.Field, rows []fixtureRow) {
	t.Helper()
	w, err := shp.Create(filepath.Join(dir, layer+".shp"), shp.POLYGON)
	require.NoError(t, err)
	w.SetFields(fields)
	for i, r := range rows {
		poly := shp.Polygon(*shp.NewPolyLine(r.parts))
		w.Write(&poly)
		w.WriteAttribute(i, 0, r.code)
		w.WriteAttribute(i, 1, r.value)
		w.WriteAttribute(i, 2, r.acreage)
		if len(fields) > 3 {
			w.WriteAttribute(i, 3, r.city)
		}
	}
	w.Close()

	// The writer names the attribute file <layer>dbf; the reader expects
	// <layer>.dbf.
	if _, err := os.Stat(filepath.Join(dir, layer+"dbf")); err == nil {
		require.NoError(t, os.Rename(filepath.Join(dir, layer+"dbf"), filepath.Join(dir, layer+".dbf")))
	}
}

var parcelFields = []shp.Field{
	shp.StringField("DOR_CODE", 8),
	shp.FloatField("LAND_MKT", 14, 2),
	shp.FloatField("ACREAGE", 10, 4),
	shp.StringField("CITY_CODE", 4),
}

func TestShapefileLoad(t *testing.T) {
	dir := t.TempDir()
	writeShapefile(t, dir, "PARCELS", parcelFields, []fixtureRow{
		{code: "0100", city: "ORL", value: 100000, acreage: 2, parts: [][]shp.Point{square(0, 0, 10)}},
		{code: "0300", city: "WP", value: 250000, acreage: 0.5, parts: [][]shp.Point{square(20, 0, 10), square(40, 0, 5)}},
		{code: "", city: "ORL", value: 1000, acreage: 0, parts: [][]shp.Point{square(0, 20, 10)}},
	})

	l, err := Open(context.Background(), Options{Kind: KindShapefile, Path: dir, Columns: testColumns})
	require.NoError(t, err)
	defer l.Close()

	tab, err := l.Load(context.Background(), "PARCELS")
	require.NoError(t, err)
	require.Equal(t, 3, tab.Len())
	assert.Equal(t, "PARCELS", tab.Layer)

	p := tab.Parcels[0]
	assert.Equal(t, "0100", p.UseCode)
	assert.InDelta(t, 100000, p.LandMarketValue, 1e-6)
	assert.InDelta(t, 2, p.Acreage, 1e-6)
	assert.Equal(t, "ORL", p.CityCode)
	mp, ok := p.Geometry.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 1, mp.NumPolygons())

	mp, ok = tab.Parcels[1].Geometry.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 2, mp.NumPolygons())

	assert.Equal(t, "", tab.Parcels[2].UseCode)
	assert.Equal(t, 0.0, tab.Parcels[2].Acreage)
}

func TestShapefileLoad_MissingColumn(t *testing.T) {
	dir := t.TempDir()
	writeShapefile(t, dir, "PARCELS", []shp.Field{
		shp.StringField("DOR_CODE", 8),
		shp.FloatField("LAND_VAL", 14, 2),
		shp.FloatField("ACREAGE", 10, 4),
	}, []fixtureRow{
		{code: "0100", value: 1, acreage: 1, parts: [][]shp.Point{square(0, 0, 1)}},
	})

	l := &Shapefile{Dir: dir, Columns: testColumns}
	_, err := l.Load(context.Background(), "PARCELS")
	require.Error(t, err)
	assert.True(t, eris.Is(err, types.ErrMissingColumn))
	assert.Contains(t, err.Error(), `"LAND_MKT"`)
	assert.NotContains(t, err.Error(), `"DOR_CODE"`)
}

func TestShapefileLoad_MissingFile(t *testing.T) {
	l := &Shapefile{Dir: t.TempDir(), Columns: testColumns}
	_, err := l.Load(context.Background(), "NOPE")
	assert.Error(t, err)
}

const fixtureGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"DOR_CODE": "0200", "LAND_MKT": 80000, "ACREAGE": 0.25, "CITY_CODE": "ORL"},
      "geometry": {"type": "Polygon", "coordinates": [[[-81.38, 28.54], [-81.38, 28.55], [-81.37, 28.55], [-81.38, 28.54]]]}
    },
    {
      "type": "Feature",
      "properties": {"DOR_CODE": 100, "LAND_MKT": "1,500,000", "ACREAGE": null, "CITY_CODE": "WP"},
      "geometry": {"type": "MultiPolygon", "coordinates": [[[[-81.35, 28.60], [-81.35, 28.61], [-81.34, 28.61], [-81.35, 28.60]]]]}
    },
    {
      "type": "Feature",
      "properties": {"DOR_CODE": null, "LAND_MKT": 10, "ACREAGE": 1, "CITY_CODE": "ORL"},
      "geometry": null
    }
  ]
}`

func TestGeoJSONLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PARCELS.geojson"), []byte(fixtureGeoJSON), 0644))

	for name, path := range map[string]string{
		"directory": dir,
		"file":      filepath.Join(dir, "PARCELS.geojson"),
	} {
		t.Run(name, func(t *testing.T) {
			l, err := Open(context.Background(), Options{Kind: KindGeoJSON, Path: path, Columns: testColumns})
			require.NoError(t, err)

			tab, err := l.Load(context.Background(), "PARCELS")
			require.NoError(t, err)
			require.Equal(t, 3, tab.Len())

			p := tab.Parcels[0]
			assert.Equal(t, "0200", p.UseCode)
			assert.Equal(t, 80000.0, p.LandMarketValue)
			assert.Equal(t, 0.25, p.Acreage)
			assert.Equal(t, "ORL", p.CityCode)
			_, ok := p.Geometry.(*geom.Polygon)
			assert.True(t, ok)

			p = tab.Parcels[1]
			assert.Equal(t, "100", p.UseCode)
			assert.Equal(t, 1500000.0, p.LandMarketValue)
			assert.True(t, math.IsNaN(p.Acreage))
			_, ok = p.Geometry.(*geom.MultiPolygon)
			assert.True(t, ok)

			assert.Equal(t, "", tab.Parcels[2].UseCode)
			assert.Nil(t, tab.Parcels[2].Geometry)
		})
	}
}

func TestGeoJSONLoad_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"DOR_CODE":"0100","ACREAGE":1},"geometry":null}]}`), 0644))

	_, err := (&GeoJSON{Path: path, Columns: testColumns}).Load(context.Background(), "PARCELS")
	require.Error(t, err)
	assert.True(t, eris.Is(err, types.ErrMissingColumn))
}

func TestGeoJSONLoad_PartialFeatures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"DOR_CODE":"0100"},"geometry":null},
		{"type":"Feature","properties":{"DOR_CODE":"0300","LAND_MKT":500000,"ACREAGE":0.5,"CITY_CODE":"ORL"},"geometry":null}]}`), 0644))

	tab, err := (&GeoJSON{Path: path, Columns: testColumns}).Load(context.Background(), "PARCELS")
	require.NoError(t, err)
	require.Equal(t, 2, tab.Len())

	p := tab.Parcels[0]
	assert.Equal(t, "0100", p.UseCode)
	assert.True(t, math.IsNaN(p.LandMarketValue))
	assert.True(t, math.IsNaN(p.Acreage))
	assert.Equal(t, "", p.CityCode)

	p = tab.Parcels[1]
	assert.Equal(t, "0300", p.UseCode)
	assert.Equal(t, 500000.0, p.LandMarketValue)
	assert.Equal(t, 0.5, p.Acreage)
	assert.Equal(t, "ORL", p.CityCode)
}

func TestGeoJSONLoad_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"FeatureCollection","features":[]}`), 0644))

	tab, err := (&GeoJSON{Path: path, Columns: testColumns}).Load(context.Background(), "PARCELS")
	require.NoError(t, err)
	assert.Equal(t, 0, tab.Len())
}

func TestOpen_UnknownKind(t *testing.T) {
	_, err := Open(context.Background(), Options{Kind: "gdb"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnknownKind))
}

func TestLoad_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeShapefile(t, dir, "PARCELS", parcelFields, []fixtureRow{
		{code: "0100", value: 1, acreage: 1, parts: [][]shp.Point{square(0, 0, 1)}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Shapefile{Dir: dir, Columns: testColumns}).Load(ctx, "PARCELS")
	require.Error(t, err)
	assert.True(t, eris.Is(err, context.Canceled))

	// The same file loads without the cancellation.
	tab, err := (&Shapefile{Dir: dir, Columns: testColumns}).Load(context.Background(), "PARCELS")
	require.NoError(t, err)
	assert.Equal(t, 1, tab.Len())
}

func TestShapefileLoad_Truncated(t *testing.T) {
	dir := t.TempDir()
	writeShapefile(t, dir, "PARCELS", parcelFields, []fixtureRow{
		{code: "0100", value: 1, acreage: 1, parts: [][]shp.Point{square(0, 0, 1)}},
		{code: "0200", value: 2, acreage: 1, parts: [][]shp.Point{square(2, 0, 1)}},
	})
	// The index holds each record's offset in 16-bit words, big endian.
	shx, err := os.ReadFile(filepath.Join(dir, "PARCELS.shx"))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(shx), 116)
	second := int64(binary.BigEndian.Uint32(shx[108:112])) * 2

	// Cut the file inside the second record's header.
	require.NoError(t, os.Truncate(filepath.Join(dir, "PARCELS.shp"), second+2))

	_, err = (&Shapefile{Dir: dir, Columns: testColumns}).Load(context.Background(), "PARCELS")
	assert.Error(t, err)
}

func TestDelimitedLoad(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("Dor_Code|Land_Mkt|Acreage|City_Code\n")
	const n = 2*batchSize + 7
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%04d|%d|1|ORL\n", i%1000, i)
	}
	b.WriteString("\n0100|1,250,000|0.25\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PARCELS.txt"), []byte(b.String()), 0644))

	l, err := Open(context.Background(), Options{Kind: KindDelimited, Path: dir, Columns: testColumns})
	require.NoError(t, err)
	tab, err := l.Load(context.Background(), "PARCELS")
	require.NoError(t, err)
	require.Equal(t, n+1, tab.Len())

	for i := 0; i < n; i++ {
		require.Equal(t, float64(i), tab.Parcels[i].LandMarketValue, "row %d out of order", i)
	}
	last := tab.Parcels[n]
	assert.Equal(t, "0100", last.UseCode)
	assert.Equal(t, 1250000.0, last.LandMarketValue)
	assert.Equal(t, 0.25, last.Acreage)
	assert.Equal(t, "", last.CityCode)
	assert.Nil(t, last.Geometry)
}

func TestDelimitedLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	_, err := (&Delimited{Path: empty, Columns: testColumns}).Load(context.Background(), "PARCELS")
	assert.Error(t, err)

	noValue := filepath.Join(dir, "novalue.txt")
	require.NoError(t, os.WriteFile(noValue, []byte("DOR_CODE,ACREAGE\n0100,1\n"), 0644))
	_, err = (&Delimited{Path: noValue, Separator: ",", Columns: testColumns}).Load(context.Background(), "PARCELS")
	assert.True(t, eris.Is(err, types.ErrMissingColumn))
}
