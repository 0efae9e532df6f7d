// Package parcels holds a loaded parcel layer and the derived columns
// attached to it for mapping.
package parcels

import (
	"context"
	"runtime"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"parcelmap/internal/landuse"
	"parcelmap/internal/landvalue"
	"parcelmap/internal/types"
)

// Derived column names.
const (
	ColumnBuildingType     = "residential_building_type"
	ColumnLandValuePerAcre = "land_value_per_acre"
)

// minChunk keeps tiny tables from being split across goroutines.
var minChunk = 4096

// Table is a parcel layer held in memory. Derived columns are nil until
// the matching Annotate method runs and always have one entry per parcel.
type Table struct {
	Layer   string
	Parcels []types.Parcel

	buildingType []landuse.Category
	perAcre      []float64
}

// New wraps parcels loaded from layer.
func New(layer string, parcels []types.Parcel) *Table {
	return &Table{Layer: layer, Parcels: parcels}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Parcels) }

// BuildingTypes returns the residential_building_type column, or nil if
// it has not been attached.
func (t *Table) BuildingTypes() []landuse.Category { return t.buildingType }

// LandValuePerAcre returns the land_value_per_acre column, or nil if it
// has not been attached.
func (t *Table) LandValuePerAcre() []float64 { return t.perAcre }

// ClassifyStats reports rows that could not be classified cleanly.
type ClassifyStats struct {
	Unclassifiable int
	Sample         string // one offending use code
}

// AnnotateBuildingType classifies every row and attaches the
// residential_building_type column. Rows with malformed use codes are
// labelled Other and counted; they never abort the pass.
func (t *Table) AnnotateBuildingType(ctx context.Context, workers int) (ClassifyStats, error) {
	col := make([]landuse.Category, len(t.Parcels))
	type chunkStats struct {
		bad    int
		sample string
	}
	var perChunk []chunkStats

	err := forEachChunk(ctx, len(t.Parcels), workers, func(n int) {
		perChunk = make([]chunkStats, n)
	}, func(chunk, lo, hi int) {
		cs := &perChunk[chunk]
		for i := lo; i < hi; i++ {
			c, err := landuse.Classify(t.Parcels[i].UseCode)
			if err != nil {
				cs.bad++
				if cs.sample == "" {
					cs.sample = t.Parcels[i].UseCode
				}
			}
			col[i] = c
		}
	})
	if err != nil {
		return ClassifyStats{}, eris.Wrap(err, "parcels: classify")
	}

	var stats ClassifyStats
	for _, cs := range perChunk {
		stats.Unclassifiable += cs.bad
		if stats.Sample == "" {
			stats.Sample = cs.sample
		}
	}
	if stats.Unclassifiable > 0 {
		zap.L().Warn("parcels: unclassifiable use codes mapped to Other",
			zap.String("layer", t.Layer),
			zap.Int("rows", stats.Unclassifiable),
			zap.String("sample", stats.Sample),
		)
	}

	t.buildingType = col
	return stats, nil
}

// AnnotateLandValue attaches the land_value_per_acre column and returns how
// many rows came out NaN or infinite.
func (t *Table) AnnotateLandValue(ctx context.Context, workers int) (int, error) {
	col := make([]float64, len(t.Parcels))
	var perChunk []int

	err := forEachChunk(ctx, len(t.Parcels), workers, func(n int) {
		perChunk = make([]int, n)
	}, func(chunk, lo, hi int) {
		for i := lo; i < hi; i++ {
			v := landvalue.PerAcre(t.Parcels[i])
			if landvalue.Undefined(v) {
				perChunk[chunk]++
			}
			col[i] = v
		}
	})
	if err != nil {
		return 0, eris.Wrap(err, "parcels: land value per acre")
	}

	undefined := 0
	for _, n := range perChunk {
		undefined += n
	}
	if undefined > 0 {
		zap.L().Debug("parcels: undefined land value per acre",
			zap.String("layer", t.Layer),
			zap.Int("rows", undefined),
		)
	}

	t.perAcre = col
	return undefined, nil
}

// Select returns a new Table holding the rows for which keep returns true,
// in their original order. Attached derived columns are carried along.
func (t *Table) Select(keep func(i int) bool) *Table {
	out := &Table{Layer: t.Layer}
	if t.buildingType != nil {
		out.buildingType = []landuse.Category{}
	}
	if t.perAcre != nil {
		out.perAcre = []float64{}
	}
	for i, p := range t.Parcels {
		if !keep(i) {
			continue
		}
		out.Parcels = append(out.Parcels, p)
		if t.buildingType != nil {
			out.buildingType = append(out.buildingType, t.buildingType[i])
		}
		if t.perAcre != nil {
			out.perAcre = append(out.perAcre, t.perAcre[i])
		}
	}
	return out
}

// FilterCity keeps rows whose city code equals code. An empty code keeps
// everything.
func (t *Table) FilterCity(code string) *Table {
	if code == "" {
		return t
	}
	return t.Select(func(i int) bool { return t.Parcels[i].CityCode == code })
}

// FilterLandValue keeps rows whose land value per acre lies inside r. The
// column must already be attached.
func (t *Table) FilterLandValue(r landvalue.Range) (*Table, error) {
	if t.perAcre == nil {
		return nil, eris.Wrapf(ErrUnknownColumn, "parcels: %s not attached", ColumnLandValuePerAcre)
	}
	return t.Select(func(i int) bool { return r.Contains(t.perAcre[i]) }), nil
}

// forEachChunk splits [0, n) into contiguous chunks and runs fn on them with
// at most workers goroutines. setup is called with the chunk count before
// any fn runs. workers <= 0 means one per CPU.
func forEachChunk(ctx context.Context, n, workers int, setup func(chunks int), fn func(chunk, lo, hi int)) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	size := (n + workers - 1) / workers
	if size < minChunk {
		size = minChunk
	}
	chunks := (n + size - 1) / size
	setup(chunks)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for c := 0; c < chunks; c++ {
		lo := c * size
		hi := min(lo+size, n)
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			fn(c, lo, hi)
			return nil
		})
	}
	return g.Wait()
}
