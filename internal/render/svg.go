// Package render draws parcel choropleth maps as SVG.
package render

import (
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/aclements/go-gg/palette"
	svg "github.com/ajstarks/svgo"
	"github.com/dustin/go-humanize"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"parcelmap/internal/parcels"
)

// Surface renders a table column as a map.
type Surface interface {
	// Categorical fills each parcel by the legend entry matching its
	// value in column. Values without an entry are left unfilled.
	Categorical(w io.Writer, t *parcels.Table, column string, legend []LegendEntry, title string) error
	// Continuous fills each parcel by pal at norm of its value in column.
	// NaN values are left unfilled.
	Continuous(w io.Writer, t *parcels.Table, column string, norm Norm, pal palette.Continuous, title string) error
}

// LegendEntry binds a column value to a fill colour and legend label.
type LegendEntry struct {
	Value string
	Label string
	Color color.RGBA
}

const (
	margin      = 20
	titleHeight = 36
	panelWidth  = 240
	barSteps    = 64
	barWidth    = 20
	emptyStyle  = "fill:none;stroke:#bbbbbb;stroke-width:0.5"
)

// SVG is a Surface producing a fixed-size SVG document. The map is fitted
// to the bounds of the projected geometry, north up, with the aspect
// ratio preserved.
type SVG struct {
	Width, Height int
	Projection    Projection // nil means Planar
}

var _ Surface = (*SVG)(nil)

func (s *SVG) Categorical(w io.Writer, t *parcels.Table, column string, legend []LegendEntry, title string) error {
	labels, err := t.Labels(column)
	if err != nil {
		return err
	}
	styles := make(map[string]string, len(legend))
	for _, e := range legend {
		styles[e.Value] = fillStyle(e.Color)
	}

	return s.draw(w, t, title, func(i int) string {
		if st, ok := styles[labels[i]]; ok {
			return st
		}
		return emptyStyle
	}, func(canvas *svg.SVG, x, y int) {
		for _, e := range legend {
			canvas.Rect(x, y, 18, 18, "fill:"+Hex(e.Color)+";stroke:#333333;stroke-width:0.5")
			canvas.Text(x+26, y+14, e.Label, "font-family:sans-serif;font-size:13px")
			y += 26
		}
	})
}

func (s *SVG) Continuous(w io.Writer, t *parcels.Table, column string, norm Norm, pal palette.Continuous, title string) error {
	values, err := t.Values(column)
	if err != nil {
		return err
	}

	return s.draw(w, t, title, func(i int) string {
		x := norm.Normalize(values[i])
		if math.IsNaN(x) {
			return emptyStyle
		}
		return fillStyle(pal.Map(x))
	}, func(canvas *svg.SVG, x, y int) {
		barHeight := min(s.Height-y-2*margin, 400)
		if barHeight <= 0 {
			return
		}
		step := float64(barHeight) / barSteps
		for k := 0; k < barSteps; k++ {
			// Top of the bar is 1.
			v := 1 - (float64(k)+0.5)/barSteps
			y0 := y + int(math.Floor(float64(k)*step))
			y1 := y + int(math.Ceil(float64(k+1)*step))
			canvas.Rect(x, y0, barWidth, y1-y0, fillStyle(pal.Map(v)))
		}
		canvas.Rect(x, y, barWidth, barHeight, "fill:none;stroke:#333333;stroke-width:0.5")
		for _, tick := range norm.Ticks() {
			ty := y + int(math.Round((1-norm.Normalize(tick))*float64(barHeight)))
			canvas.Line(x+barWidth, ty, x+barWidth+5, ty, "stroke:#333333")
			canvas.Text(x+barWidth+8, ty+4, tickLabel(tick), "font-family:sans-serif;font-size:12px")
		}
		canvas.Text(x, y+barHeight+20, column, "font-family:sans-serif;font-size:12px")
	})
}

// draw lays out the title, the map and the side panel. style returns the
// path style for row i.
func (s *SVG) draw(w io.Writer, t *parcels.Table, title string, style func(i int) string, panel func(canvas *svg.SVG, x, y int)) error {
	areaW := s.Width - 2*margin - panelWidth
	areaH := s.Height - titleHeight - 2*margin
	if areaW <= 0 || areaH <= 0 {
		return eris.Errorf("render: canvas %dx%d too small", s.Width, s.Height)
	}

	proj := s.Projection
	if proj == nil {
		proj = Planar{}
	}
	shapes := make([][][]point, len(t.Parcels))
	b := emptyBounds()
	missing := 0
	for i, p := range t.Parcels {
		shapes[i] = rings(p.Geometry, proj)
		if shapes[i] == nil {
			missing++
		}
		for _, r := range shapes[i] {
			for _, pt := range r {
				b.extend(pt)
			}
		}
	}
	if missing > 0 {
		zap.L().Debug("render: parcels without polygon geometry", zap.Int("rows", missing))
	}

	fit := b.fit(margin, titleHeight+margin, areaW, areaH)

	canvas := svg.New(w)
	canvas.Start(s.Width, s.Height)
	canvas.Rect(0, 0, s.Width, s.Height, "fill:white")
	canvas.Text(margin, titleHeight-10, title, "font-family:sans-serif;font-size:18px")

	canvas.Group("id=\"parcels\"")
	var d strings.Builder
	for i, rs := range shapes {
		if rs == nil {
			continue
		}
		d.Reset()
		for _, r := range rs {
			for k, pt := range r {
				if k == 0 {
					d.WriteByte('M')
				} else {
					d.WriteByte('L')
				}
				x, y := fit(pt)
				d.WriteString(strconv.FormatFloat(x, 'f', 1, 64))
				d.WriteByte(' ')
				d.WriteString(strconv.FormatFloat(y, 'f', 1, 64))
			}
			d.WriteByte('Z')
		}
		canvas.Path(d.String(), style(i)+";fill-rule:evenodd")
	}
	canvas.Gend()

	panel(canvas, s.Width-panelWidth, titleHeight+margin)
	canvas.End()
	return nil
}

type point struct{ x, y float64 }

// rings returns the projected rings of a polygonal geometry, or nil for
// anything else.
func rings(g geom.T, proj Projection) [][]point {
	var polys []*geom.Polygon
	switch g := g.(type) {
	case *geom.Polygon:
		polys = []*geom.Polygon{g}
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			polys = append(polys, g.Polygon(i))
		}
	default:
		return nil
	}

	var out [][]point
	for _, p := range polys {
		for i := 0; i < p.NumLinearRings(); i++ {
			ring := p.LinearRing(i)
			flat, stride := ring.FlatCoords(), ring.Stride()
			pts := make([]point, 0, len(flat)/stride)
			for k := 0; k+1 < len(flat); k += stride {
				x, y := proj.Project(flat[k], flat[k+1])
				pts = append(pts, point{x, y})
			}
			if len(pts) >= 3 {
				out = append(out, pts)
			}
		}
	}
	return out
}

type bounds struct{ minX, minY, maxX, maxY float64 }

func emptyBounds() bounds {
	return bounds{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
}

func (b *bounds) extend(p point) {
	b.minX = math.Min(b.minX, p.x)
	b.minY = math.Min(b.minY, p.y)
	b.maxX = math.Max(b.maxX, p.x)
	b.maxY = math.Max(b.maxY, p.y)
}

// fit returns a transform placing b centred in the given pixel box with
// y flipped.
func (b bounds) fit(x0, y0, w, h int) func(point) (float64, float64) {
	if b.minX > b.maxX {
		return func(point) (float64, float64) { return float64(x0), float64(y0) }
	}
	dx, dy := b.maxX-b.minX, b.maxY-b.minY
	scale := 1.0
	switch {
	case dx > 0 && dy > 0:
		scale = math.Min(float64(w)/dx, float64(h)/dy)
	case dx > 0:
		scale = float64(w) / dx
	case dy > 0:
		scale = float64(h) / dy
	}
	ox := float64(x0) + (float64(w)-dx*scale)/2
	oy := float64(y0) + (float64(h)-dy*scale)/2
	return func(p point) (float64, float64) {
		return ox + (p.x-b.minX)*scale, oy + (b.maxY-p.y)*scale
	}
}

func fillStyle(c color.Color) string {
	return "fill:" + Hex(c) + ";stroke:none"
}

func tickLabel(v float64) string {
	if v >= 1 && v == math.Trunc(v) {
		return humanize.Comma(int64(v))
	}
	return humanize.Ftoa(v)
}
