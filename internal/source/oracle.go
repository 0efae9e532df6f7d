package source

import (
	"context"

	"go.uber.org/zap"

	"parcelmap/internal/database"
	"parcelmap/internal/parcels"
	"parcelmap/internal/types"
)

// Oracle loads a layer from an Oracle Spatial table of the same name.
type Oracle struct {
	db      *database.Database
	Columns types.Columns
}

func (o *Oracle) Load(ctx context.Context, layer string) (*parcels.Table, error) {
	rows, err := o.db.QueryParcels(ctx, layer, o.Columns)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("source: loaded oracle layer", zap.String("layer", layer), zap.Int("rows", len(rows)))
	return parcels.New(layer, rows), nil
}

func (o *Oracle) Close() error { return o.db.Close() }
