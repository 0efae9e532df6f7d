package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/aclements/go-gg/table"
	"github.com/dustin/go-humanize"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"parcelmap/internal/landuse"
	"parcelmap/internal/parcels"
)

var (
	flagXLSX  string
	flagTable bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print building type counts and land value per acre statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTable(cmd.Context())
		if err != nil {
			return err
		}
		s, err := summarize(cmd.Context(), t)
		if err != nil {
			return err
		}

		if flagTable {
			return printTable(os.Stdout, t)
		}
		printSummary(os.Stdout, t.Layer, s)

		if flagXLSX != "" {
			if err := writeXLSX(flagXLSX, t.Layer, s); err != nil {
				return err
			}
			fmt.Printf("%sWrote %s%s\n", colorGreen, flagXLSX, colorReset)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&flagXLSX, "xlsx", "", "also write the summary to this workbook")
	reportCmd.Flags().BoolVar(&flagTable, "table", false, "dump every row with its derived columns instead")
	rootCmd.AddCommand(reportCmd)
}

// summarize attaches both derived columns and summarizes them.
func summarize(ctx context.Context, t *parcels.Table) (parcels.Summary, error) {
	if _, err := t.AnnotateBuildingType(ctx, cfg.Workers); err != nil {
		return parcels.Summary{}, err
	}
	if _, err := t.AnnotateLandValue(ctx, cfg.Workers); err != nil {
		return parcels.Summary{}, err
	}
	return t.Summarize(cfg.LandValue), nil
}

func dollars(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return "$" + humanize.Comma(int64(math.Round(v)))
}

// printTable dumps every row with its attached derived columns.
func printTable(w io.Writer, t *parcels.Table) error {
	if err := table.Fprint(w, t.Grouping()); err != nil {
		return eris.Wrap(err, "print table")
	}
	return nil
}

// printSummary prints the summary in a readable layout.
func printSummary(w io.Writer, layer string, s parcels.Summary) {
	fmt.Fprintln(w, strings.Repeat("-", 80))
	fmt.Fprintf(w, "Layer             : %s (%s parcels)\n", layer, humanize.Comma(int64(s.Rows)))
	fmt.Fprintln(w)

	for _, c := range landuse.Categories {
		fmt.Fprintf(w, "%-18s: %s\n", c, humanize.Comma(int64(s.ByCategory[c])))
	}
	if s.Unclassifiable > 0 {
		fmt.Fprintf(w, "%s  unclassifiable  : %s (counted as Other)%s\n", colorRed, humanize.Comma(int64(s.Unclassifiable)), colorReset)
	}
	fmt.Fprintln(w)

	for d, n := range s.ByBuildingType {
		if n == 0 {
			continue
		}
		fmt.Fprintf(w, "  %d %-22s: %s\n", d, landuse.BuildingTypeName(d), humanize.Comma(int64(n)))
	}
	fmt.Fprintln(w)

	lv := s.LandValue
	fmt.Fprintf(w, "Land value / acre : %s in range, %s undefined\n", humanize.Comma(int64(lv.InRange)), humanize.Comma(int64(lv.Undefined)))
	fmt.Fprintf(w, "  Min / Max       : %s / %s\n", dollars(lv.Min), dollars(lv.Max))
	fmt.Fprintf(w, "  Mean / Median   : %s / %s\n", dollars(lv.Mean), dollars(lv.Median))
	fmt.Fprintln(w, strings.Repeat("-", 80))
}

// writeXLSX writes the summary to a workbook with a Summary sheet and a
// Building types sheet.
func writeXLSX(path, layer string, s parcels.Summary) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "xlsx: add summary sheet")
	}
	add := func(sh *xlsx.Sheet, label string, v any) {
		row := sh.AddRow()
		row.AddCell().SetString(label)
		cell := row.AddCell()
		switch x := v.(type) {
		case int:
			cell.SetInt(x)
		case float64:
			if !math.IsNaN(x) {
				cell.SetFloat(x)
			}
		case string:
			cell.SetString(x)
		}
	}
	add(sheet, "Layer", layer)
	add(sheet, "Parcels", s.Rows)
	for _, c := range landuse.Categories {
		add(sheet, c.String(), s.ByCategory[c])
	}
	add(sheet, "Unclassifiable", s.Unclassifiable)
	add(sheet, "Land value per acre in range", s.LandValue.InRange)
	add(sheet, "Land value per acre undefined", s.LandValue.Undefined)
	add(sheet, "Land value per acre min", s.LandValue.Min)
	add(sheet, "Land value per acre max", s.LandValue.Max)
	add(sheet, "Land value per acre mean", s.LandValue.Mean)
	add(sheet, "Land value per acre median", s.LandValue.Median)

	types, err := f.AddSheet("Building types")
	if err != nil {
		return eris.Wrap(err, "xlsx: add building types sheet")
	}
	for d, n := range s.ByBuildingType {
		add(types, fmt.Sprintf("%d %s", d, landuse.BuildingTypeName(d)), n)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}
