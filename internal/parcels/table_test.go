package parcels

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelmap/internal/landuse"
	"parcelmap/internal/landvalue"
	"parcelmap/internal/types"
)

func sampleTable() *Table {
	return New("PARCELS", []types.Parcel{
		{UseCode: "0100", LandMarketValue: 100000, Acreage: 2, CityCode: "ORL"},
		{UseCode: "0300", LandMarketValue: 500000, Acreage: 0.5, CityCode: "ORL"},
		{UseCode: "1200", LandMarketValue: 2000000, Acreage: 0, CityCode: "WP"},
		{UseCode: "", LandMarketValue: 50, Acreage: 1, CityCode: "ORL"},
		{UseCode: "0X00", LandMarketValue: 40000, Acreage: 1, CityCode: "WP"},
		{UseCode: "0000", LandMarketValue: 30000000, Acreage: 1, CityCode: "ORL"},
	})
}

func TestAnnotateBuildingType(t *testing.T) {
	tab := sampleTable()
	stats, err := tab.AnnotateBuildingType(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, []landuse.Category{
		landuse.SingleFamily,
		landuse.MultiFamily,
		landuse.Other,
		landuse.Other,
		landuse.Other,
		landuse.Other,
	}, tab.BuildingTypes())
	assert.Equal(t, 1, stats.Unclassifiable)
	assert.Equal(t, "0X00", stats.Sample)

	// Source fields are untouched.
	assert.Equal(t, "0X00", tab.Parcels[4].UseCode)
}

func TestAnnotateLandValue(t *testing.T) {
	tab := sampleTable()
	undefined, err := tab.AnnotateLandValue(context.Background(), 0)
	require.NoError(t, err)

	col := tab.LandValuePerAcre()
	require.Len(t, col, tab.Len())
	assert.Equal(t, 1, undefined)
	assert.InDelta(t, 50000, col[0], 1e-9)
	assert.InDelta(t, 1000000, col[1], 1e-9)
	assert.True(t, math.IsInf(col[2], 1))
	assert.InDelta(t, 50, col[3], 1e-9)
}

func TestAnnotate_Idempotent(t *testing.T) {
	tab := sampleTable()
	ctx := context.Background()

	_, err := tab.AnnotateBuildingType(ctx, 1)
	require.NoError(t, err)
	first := append([]landuse.Category(nil), tab.BuildingTypes()...)
	_, err = tab.AnnotateBuildingType(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first, tab.BuildingTypes())

	_, err = tab.AnnotateLandValue(ctx, 1)
	require.NoError(t, err)
	firstValues := append([]float64(nil), tab.LandValuePerAcre()...)
	_, err = tab.AnnotateLandValue(ctx, 1)
	require.NoError(t, err)
	for i := range firstValues {
		if math.IsNaN(firstValues[i]) {
			assert.True(t, math.IsNaN(tab.LandValuePerAcre()[i]))
			continue
		}
		assert.Equal(t, firstValues[i], tab.LandValuePerAcre()[i])
	}
}

func TestAnnotate_ParallelMatchesSequential(t *testing.T) {
	old := minChunk
	minChunk = 7
	t.Cleanup(func() { minChunk = old })

	codes := []string{"0100", "0200", "0300", "0900", "0000", "1200", "", "0Z"}
	ps := make([]types.Parcel, 1000)
	for i := range ps {
		ps[i] = types.Parcel{
			UseCode:         codes[i%len(codes)],
			LandMarketValue: float64(i * 1000),
			Acreage:         float64(i % 5),
		}
	}

	seq := New("seq", ps)
	par := New("par", ps)
	ctx := context.Background()

	seqStats, err := seq.AnnotateBuildingType(ctx, 1)
	require.NoError(t, err)
	parStats, err := par.AnnotateBuildingType(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, seq.BuildingTypes(), par.BuildingTypes())
	assert.Equal(t, seqStats.Unclassifiable, parStats.Unclassifiable)
	assert.Equal(t, 125, parStats.Unclassifiable)

	seqUndef, err := seq.AnnotateLandValue(ctx, 1)
	require.NoError(t, err)
	parUndef, err := par.AnnotateLandValue(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, seqUndef, parUndef)
	assert.Equal(t, 200, parUndef)
	for i := range ps {
		a, b := seq.LandValuePerAcre()[i], par.LandValuePerAcre()[i]
		if math.IsNaN(a) {
			assert.True(t, math.IsNaN(b), "row %d", i)
		} else {
			assert.Equal(t, a, b, "row %d", i)
		}
	}
}

func TestAnnotate_TotalCoverage(t *testing.T) {
	for _, n := range []int{1, 3, 100} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			ps := make([]types.Parcel, n)
			for i := range ps {
				ps[i] = types.Parcel{UseCode: "0100", LandMarketValue: 10, Acreage: 1}
			}
			tab := New("cov", ps)
			_, err := tab.AnnotateBuildingType(context.Background(), 4)
			require.NoError(t, err)
			_, err = tab.AnnotateLandValue(context.Background(), 4)
			require.NoError(t, err)
			assert.Len(t, tab.BuildingTypes(), n)
			assert.Len(t, tab.LandValuePerAcre(), n)
		})
	}
}

func TestAnnotate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tab := sampleTable()
	_, err := tab.AnnotateBuildingType(ctx, 1)
	require.Error(t, err)
	assert.Nil(t, tab.BuildingTypes())
}

func TestFilterCity(t *testing.T) {
	tab := sampleTable()
	_, err := tab.AnnotateBuildingType(context.Background(), 1)
	require.NoError(t, err)

	orl := tab.FilterCity("ORL")
	assert.Equal(t, 4, orl.Len())
	assert.Len(t, orl.BuildingTypes(), 4)
	assert.Nil(t, orl.LandValuePerAcre())
	for _, p := range orl.Parcels {
		assert.Equal(t, "ORL", p.CityCode)
	}

	assert.Same(t, tab, tab.FilterCity(""))
	assert.Equal(t, 0, tab.FilterCity("NOPE").Len())
}

func TestFilterLandValue(t *testing.T) {
	tab := sampleTable()
	_, err := tab.FilterLandValue(landvalue.DefaultRange())
	require.Error(t, err)

	_, err = tab.AnnotateLandValue(context.Background(), 1)
	require.NoError(t, err)
	kept, err := tab.FilterLandValue(landvalue.DefaultRange())
	require.NoError(t, err)

	// 50 is below the band, Inf and 30M are above it.
	assert.Equal(t, 3, kept.Len())
	assert.Equal(t, []float64{50000, 1000000, 40000}, kept.LandValuePerAcre())
	assert.Equal(t, "0X00", kept.Parcels[2].UseCode)
}

func TestGrouping(t *testing.T) {
	tab := sampleTable()
	g := tab.Grouping()
	assert.Equal(t, []string{"use_code", "land_market_value", "acreage", "city_code"}, g.Columns())
	assert.Equal(t, tab.Len(), g.Len())

	ctx := context.Background()
	_, err := tab.AnnotateBuildingType(ctx, 1)
	require.NoError(t, err)
	_, err = tab.AnnotateLandValue(ctx, 1)
	require.NoError(t, err)

	g = tab.Grouping()
	labels := g.MustColumn(ColumnBuildingType).([]string)
	assert.Equal(t, "Single-Family-likely", labels[0])
	assert.Equal(t, "Multi-Family-likely", labels[1])
	assert.InDelta(t, 50000, g.MustColumn(ColumnLandValuePerAcre).([]float64)[0], 1e-9)
}

func TestSummarize(t *testing.T) {
	tab := sampleTable()
	ctx := context.Background()
	_, err := tab.AnnotateBuildingType(ctx, 1)
	require.NoError(t, err)
	_, err = tab.AnnotateLandValue(ctx, 1)
	require.NoError(t, err)

	s := tab.Summarize(landvalue.DefaultRange())
	assert.Equal(t, 6, s.Rows)
	assert.Equal(t, 1, s.ByCategory[landuse.SingleFamily])
	assert.Equal(t, 1, s.ByCategory[landuse.MultiFamily])
	assert.Equal(t, 4, s.ByCategory[landuse.Other])
	assert.Equal(t, 1, s.ByBuildingType[0])
	assert.Equal(t, 1, s.ByBuildingType[1])
	assert.Equal(t, 1, s.ByBuildingType[3])
	assert.Equal(t, 1, s.Unclassifiable)

	assert.Equal(t, 1, s.LandValue.Undefined)
	assert.Equal(t, 3, s.LandValue.InRange)
	assert.InDelta(t, 40000, s.LandValue.Min, 1e-9)
	assert.InDelta(t, 1000000, s.LandValue.Max, 1e-9)
	assert.InDelta(t, 50000, s.LandValue.Median, 1e-9)
	assert.InDelta(t, 363333.333, s.LandValue.Mean, 1e-3)
}

func TestSummarize_NoDerivedColumns(t *testing.T) {
	s := sampleTable().Summarize(landvalue.DefaultRange())
	assert.Equal(t, 6, s.Rows)
	assert.Empty(t, s.ByCategory)
	assert.True(t, math.IsNaN(s.LandValue.Min))
}

func TestLabelsAndValues(t *testing.T) {
	tab := sampleTable()

	_, err := tab.Labels(ColumnBuildingType)
	assert.True(t, eris.Is(err, ErrUnknownColumn))
	_, err = tab.Values(ColumnLandValuePerAcre)
	assert.True(t, eris.Is(err, ErrUnknownColumn))
	_, err = tab.FilterLandValue(landvalue.DefaultRange())
	assert.True(t, eris.Is(err, ErrUnknownColumn))

	cities, err := tab.Labels(ColumnCityCode)
	require.NoError(t, err)
	assert.Equal(t, []string{"ORL", "ORL", "WP", "ORL", "WP", "ORL"}, cities)

	acres, err := tab.Values(ColumnAcreage)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 0.5, 0, 1, 1, 1}, acres)

	_, err = tab.AnnotateBuildingType(context.Background(), 1)
	require.NoError(t, err)
	labels, err := tab.Labels(ColumnBuildingType)
	require.NoError(t, err)
	assert.Equal(t, "Single-Family-likely", labels[0])
	assert.Equal(t, "Multi-Family-likely", labels[1])

	_, err = tab.Labels("owner")
	assert.True(t, eris.Is(err, ErrUnknownColumn))
	_, err = tab.Values(ColumnUseCode)
	assert.True(t, eris.Is(err, ErrUnknownColumn))
}
