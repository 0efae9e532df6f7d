// Package source loads parcel layers from shapefiles, GeoJSON files,
// delimited attribute exports and Oracle Spatial tables into parcels.Table
// values.
package source

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"parcelmap/internal/database"
	"parcelmap/internal/parcels"
	"parcelmap/internal/types"
)

// Source kinds.
const (
	KindShapefile = "shapefile"
	KindGeoJSON   = "geojson"
	KindOracle    = "oracle"
	KindDelimited = "delimited"
)

// ErrUnknownKind is returned by Open for an unsupported source kind.
var ErrUnknownKind = errors.New("unknown source kind")

// Loader reads a named layer into memory.
type Loader interface {
	Load(ctx context.Context, layer string) (*parcels.Table, error)
	Close() error
}

// Options select and configure a Loader.
type Options struct {
	Kind      string
	Path      string // directory or file for the file-backed kinds
	Separator string // delimited only
	Columns   types.Columns
	Oracle    database.DBConfig
}

// Open returns the Loader for opts.Kind. Oracle loaders connect eagerly.
func Open(ctx context.Context, opts Options) (Loader, error) {
	switch opts.Kind {
	case KindShapefile:
		return &Shapefile{Dir: opts.Path, Columns: opts.Columns}, nil
	case KindGeoJSON:
		return &GeoJSON{Path: opts.Path, Columns: opts.Columns}, nil
	case KindDelimited:
		return &Delimited{Path: opts.Path, Separator: opts.Separator, Columns: opts.Columns}, nil
	case KindOracle:
		db, err := database.NewDatabase(ctx, opts.Oracle)
		if err != nil {
			return nil, eris.Wrap(err, "source: open oracle")
		}
		return &Oracle{db: db, Columns: opts.Columns}, nil
	default:
		return nil, eris.Wrapf(ErrUnknownKind, "source: %q", opts.Kind)
	}
}

// checkEvery is how many rows a loader reads between context checks.
const checkEvery = 10000
