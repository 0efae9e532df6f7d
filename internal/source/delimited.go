package source

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"parcelmap/internal/parcels"
	"parcelmap/internal/types"
)

// DefaultSeparator splits fields in county attribute exports.
const DefaultSeparator = "|"

// batchSize is the number of lines handed to a parse worker at once.
const batchSize = 1024

// Delimited loads an attribute-only export: a text file with a header row
// and one record per line. Path is the file or a directory holding
// <layer>.txt. Rows carry no geometry, so they feed reports but draw
// nothing on a map.
type Delimited struct {
	Path      string
	Separator string
	Columns   types.Columns
}

type lineBatch struct {
	lines []string
	rows  []types.Parcel
}

func (d *Delimited) Load(ctx context.Context, layer string) (*parcels.Table, error) {
	path := d.Path
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, layer+".txt")
	}
	sep := d.Separator
	if sep == "" {
		sep = DefaultSeparator
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024) // allow very long lines

	// Read header row
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, eris.Wrapf(err, "source: read %s", path)
		}
		return nil, eris.Errorf("source: file %s is empty", path)
	}
	header := strings.Split(scanner.Text(), sep)
	cols, err := d.Columns.Resolve(header)
	if err != nil {
		return nil, eris.Wrapf(err, "source: layer %s", layer)
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[h] = i
	}
	city, hasCity := pos[cols.CityCode]
	hasCity = hasCity && cols.CityCode != ""
	parse := func(line string) types.Parcel {
		fields := strings.Split(line, sep)
		get := func(i int) string {
			if i < len(fields) {
				return strings.TrimSpace(fields[i])
			}
			return ""
		}
		p := types.Parcel{
			UseCode:         get(pos[cols.UseCode]),
			LandMarketValue: types.ParseNumber(get(pos[cols.LandMarketValue])),
			Acreage:         types.ParseNumber(get(pos[cols.Acreage])),
		}
		if hasCity {
			p.CityCode = get(city)
		}
		return p
	}

	// Pipeline: producer (I/O) -> workers (CPU-bound parsing). Each worker
	// fills only its own batch, and batches are joined in read order.
	workers := runtime.NumCPU()
	in := make(chan *lineBatch, workers)
	g, gCtx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			for b := range in {
				b.rows = make([]types.Parcel, len(b.lines))
				for i, line := range b.lines {
					b.rows[i] = parse(line)
				}
			}
			return nil
		})
	}

	var batches []*lineBatch
	cur := &lineBatch{}
	send := func() error {
		select {
		case in <- cur:
		case <-gCtx.Done():
			return gCtx.Err()
		}
		batches = append(batches, cur)
		cur = &lineBatch{}
		return nil
	}
	var readErr error
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		cur.lines = append(cur.lines, scanner.Text())
		if len(cur.lines) == batchSize {
			if readErr = send(); readErr != nil {
				break
			}
		}
	}
	if readErr == nil && len(cur.lines) > 0 {
		readErr = send()
	}
	close(in)
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "source: parse delimited")
	}
	if readErr != nil {
		return nil, eris.Wrap(readErr, "source: read delimited")
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "source: read %s", path)
	}

	n := 0
	for _, b := range batches {
		n += len(b.rows)
	}
	rows := make([]types.Parcel, 0, n)
	for _, b := range batches {
		rows = append(rows, b.rows...)
	}

	zap.L().Debug("source: loaded delimited", zap.String("path", path), zap.Int("rows", len(rows)))
	return parcels.New(layer, rows), nil
}

func (d *Delimited) Close() error { return nil }
