package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"parcelmap/internal/config"
	"parcelmap/internal/landuse"
	"parcelmap/internal/parcels"
	"parcelmap/internal/render"
	"parcelmap/internal/source"
)

var cfg *config.Config

var (
	flagConfig string
	flagLayer  string
	flagSource string
	flagKind   string
	flagCity   string
	flagOut    string
)

const (
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorReset = "\033[0m"
)

var rootCmd = &cobra.Command{
	Use:   "parcelmap",
	Short: "Map county parcels by residential building type and land value per acre",
	Long: "Loads a county parcel layer, classifies parcels as probable single-family, " +
		"multi-family or other from their DOR use code, derives land value per acre " +
		"and renders choropleth maps as SVG.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(flagConfig)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		applyFlags(cmd, c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default ./config.yaml)")
	pf.StringVar(&flagLayer, "layer", "", "layer to load, e.g. PARCELS")
	pf.StringVar(&flagSource, "source", "", "source directory or file")
	pf.StringVar(&flagKind, "kind", "", "source kind: shapefile, geojson, delimited or oracle")
	pf.StringVar(&flagCity, "city", "", "keep only parcels with this city code, e.g. ORL")
	pf.StringVar(&flagOut, "out", "", "directory the maps are written to")
}

// applyFlags copies explicitly set persistent flags over the loaded config.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	for _, f := range []struct {
		name string
		dst  *string
		val  string
	}{
		{"layer", &c.Source.Layer, flagLayer},
		{"source", &c.Source.Path, flagSource},
		{"kind", &c.Source.Kind, flagKind},
		{"city", &c.Filter.CityCode, flagCity},
		{"out", &c.Map.OutputDir, flagOut},
	} {
		if cmd.Flags().Changed(f.name) {
			*f.dst = f.val
		}
	}
}

// loadTable opens the configured source, loads the layer and applies the
// city filter.
func loadTable(ctx context.Context) (*parcels.Table, error) {
	start := time.Now()

	l, err := source.Open(ctx, source.Options{
		Kind:      cfg.Source.Kind,
		Path:      cfg.Source.Path,
		Separator: cfg.Source.Separator,
		Columns:   cfg.Columns,
		Oracle:    cfg.Oracle,
	})
	if err != nil {
		return nil, err
	}
	defer l.Close()

	t, err := l.Load(ctx, cfg.Source.Layer)
	if err != nil {
		return nil, err
	}
	loaded := t.Len()
	t = t.FilterCity(cfg.Filter.CityCode)

	zap.L().Debug("layer loaded",
		zap.String("kind", cfg.Source.Kind),
		zap.String("layer", t.Layer),
		zap.Int("rows", loaded),
		zap.Int("kept", t.Len()),
		zap.String("city", cfg.Filter.CityCode),
	)
	fmt.Printf("Layer %s loaded in %v (%d parcels)\n", t.Layer, time.Since(start).Truncate(time.Millisecond), t.Len())
	return t, nil
}

// newSurface builds the SVG renderer from the map config.
func newSurface() (*render.SVG, error) {
	s := &render.SVG{Width: cfg.Map.Width, Height: cfg.Map.Height}
	switch strings.ToLower(cfg.Map.Projection) {
	case "", "none":
	case "lcc":
		p := cfg.Map.LCC
		lcc, err := render.NewLCC(render.LCCParams{
			OriginLat:     p.Origin,
			CentralLon:    p.CentralLon,
			Parallel1:     p.Parallel1,
			Parallel2:     p.Parallel2,
			FalseEasting:  p.FalseEasting,
			FalseNorthing: p.FalseNorthing,
			UnitsPerMeter: p.UnitsPerMeter,
		})
		if err != nil {
			return nil, err
		}
		s.Projection = lcc
	default:
		return nil, eris.Errorf("unknown map projection %q", cfg.Map.Projection)
	}
	return s, nil
}

// buildingTypeLegend maps each category to its configured colour. The
// stock labels name the default colours, so a recoloured category falls
// back to its plain name.
func buildingTypeLegend() ([]render.LegendEntry, error) {
	names := map[landuse.Category]string{
		landuse.Other:        cfg.Map.Colors.Other,
		landuse.SingleFamily: cfg.Map.Colors.SingleFamily,
		landuse.MultiFamily:  cfg.Map.Colors.MultiFamily,
	}
	var legend []render.LegendEntry
	for _, c := range landuse.Categories {
		col, err := render.ParseColor(names[c])
		if err != nil {
			return nil, eris.Wrapf(err, "colour for %s", c)
		}
		label := c.Legend()
		if !strings.HasPrefix(strings.ToLower(label), strings.ToLower(strings.TrimSpace(names[c]))+":") {
			label = c.String()
		}
		legend = append(legend, render.LegendEntry{Value: c.String(), Label: label, Color: col})
	}
	return legend, nil
}

// mapTitle names the layer and, when filtered, the city.
func mapTitle(what string, t *parcels.Table) string {
	title := what + ": " + t.Layer
	if cfg.Filter.CityCode != "" {
		title += " (" + cfg.Filter.CityCode + ")"
	}
	return title
}

// writeOutput creates name under the output directory and hands it to fn.
func writeOutput(name string, fn func(w io.Writer) error) (string, error) {
	if err := os.MkdirAll(cfg.Map.OutputDir, 0755); err != nil {
		return "", eris.Wrap(err, "create output dir")
	}
	path := filepath.Join(cfg.Map.OutputDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "create %s", path)
	}
	if err := fn(f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrapf(err, "close %s", path)
	}
	return path, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
