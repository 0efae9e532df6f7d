package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"parcelmap/internal/parcels"
	"parcelmap/internal/render"
)

var flagDist bool

var useCmd = &cobra.Command{
	Use:   "use",
	Short: "Render the residential building type map",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTable(cmd.Context())
		if err != nil {
			return err
		}
		path, err := renderUse(cmd.Context(), t)
		if err != nil {
			return err
		}
		fmt.Printf("%sWrote %s%s\n", colorGreen, path, colorReset)
		return nil
	},
}

var lvpaCmd = &cobra.Command{
	Use:   "lvpa",
	Short: "Render the land value per acre map",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTable(cmd.Context())
		if err != nil {
			return err
		}
		paths, err := renderLandValue(cmd.Context(), t, flagDist)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Printf("%sWrote %s%s\n", colorGreen, p, colorReset)
		}
		return nil
	},
}

func init() {
	lvpaCmd.Flags().BoolVar(&flagDist, "dist", false, "also chart the distribution of land value per acre")
	rootCmd.AddCommand(useCmd, lvpaCmd)
}

// outputName prefixes kind with the layer and city so maps of different
// subsets do not overwrite each other.
func outputName(t *parcels.Table, kind string) string {
	parts := []string{strings.ToLower(t.Layer)}
	if cfg.Filter.CityCode != "" {
		parts = append(parts, strings.ToLower(cfg.Filter.CityCode))
	}
	return strings.Join(append(parts, kind), "_") + ".svg"
}

// renderUse classifies t and writes the building type map.
func renderUse(ctx context.Context, t *parcels.Table) (string, error) {
	stats, err := t.AnnotateBuildingType(ctx, cfg.Workers)
	if err != nil {
		return "", err
	}
	if stats.Unclassifiable > 0 {
		fmt.Printf("%s%d parcels have unclassifiable use codes (e.g. %q) and are drawn as Other%s\n",
			colorRed, stats.Unclassifiable, stats.Sample, colorReset)
	}

	legend, err := buildingTypeLegend()
	if err != nil {
		return "", err
	}
	s, err := newSurface()
	if err != nil {
		return "", err
	}
	return writeOutput(outputName(t, "use"), func(w io.Writer) error {
		return s.Categorical(w, t, parcels.ColumnBuildingType, legend, mapTitle("Residential building type", t))
	})
}

// renderLandValue derives land value per acre, drops rows outside the
// configured band and writes the log-scaled map, plus the distribution
// chart when dist is set.
func renderLandValue(ctx context.Context, t *parcels.Table, dist bool) ([]string, error) {
	undefined, err := t.AnnotateLandValue(ctx, cfg.Workers)
	if err != nil {
		return nil, err
	}
	if dist {
		// Curves are split by building type.
		if _, err := t.AnnotateBuildingType(ctx, cfg.Workers); err != nil {
			return nil, err
		}
	}

	kept, err := t.FilterLandValue(cfg.LandValue)
	if err != nil {
		return nil, err
	}
	fmt.Printf("%d of %d parcels within $%.0f-$%.0f per acre (%d undefined)\n",
		kept.Len(), t.Len(), cfg.LandValue.Lower, cfg.LandValue.Upper, undefined)
	if kept.Len() == 0 {
		return nil, eris.New("no parcels left to draw after the land value filter")
	}

	norm, err := render.LogNormOf(kept.LandValuePerAcre())
	if err != nil {
		return nil, err
	}
	pal, err := render.Gradient(cfg.Map.Palette)
	if err != nil {
		return nil, err
	}
	s, err := newSurface()
	if err != nil {
		return nil, err
	}

	path, err := writeOutput(outputName(t, "lvpa"), func(w io.Writer) error {
		return s.Continuous(w, kept, parcels.ColumnLandValuePerAcre, norm, pal, mapTitle("Land value per acre", t))
	})
	if err != nil {
		return nil, err
	}
	paths := []string{path}

	if dist {
		path, err := writeOutput(outputName(t, "lvpa_dist"), func(w io.Writer) error {
			return render.Distribution(w, kept, 800, 500, mapTitle("Land value per acre (log10)", t))
		})
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
