package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/aclements/go-gg/palette"
	"github.com/rotisserie/eris"
)

// namedColors covers the names used in configuration files. Values follow
// the CSS colour keywords.
var namedColors = map[string]color.RGBA{
	"black":  {0x00, 0x00, 0x00, 0xff},
	"white":  {0xff, 0xff, 0xff, 0xff},
	"grey":   {0x80, 0x80, 0x80, 0xff},
	"gray":   {0x80, 0x80, 0x80, 0xff},
	"silver": {0xc0, 0xc0, 0xc0, 0xff},
	"red":    {0xff, 0x00, 0x00, 0xff},
	"green":  {0x00, 0x80, 0x00, 0xff},
	"blue":   {0x00, 0x00, 0xff, 0xff},
	"orange": {0xff, 0xa5, 0x00, 0xff},
	"purple": {0x80, 0x00, 0x80, 0xff},
	"yellow": {0xff, 0xff, 0x00, 0xff},
}

// ViridisStops samples the viridis colour map at nine even stops.
var ViridisStops = []string{
	"#440154", "#472d7b", "#3b528b", "#2c728e", "#21918c",
	"#28ae80", "#5ec962", "#addc30", "#fde725",
}

// Viridis returns the default continuous palette.
func Viridis() palette.RGBGradient {
	g, _ := Gradient(ViridisStops)
	return g
}

// ParseColor accepts a colour keyword, "#rgb" or "#rrggbb".
func ParseColor(s string) (color.RGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return color.RGBA{}, eris.Errorf("render: unknown colour %q", s)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, eris.Errorf("render: bad colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, eris.Wrapf(err, "render: bad colour %q", s)
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 0xff}, nil
}

// Gradient builds an evenly spaced continuous palette from colour strings.
func Gradient(stops []string) (palette.RGBGradient, error) {
	if len(stops) < 2 {
		return palette.RGBGradient{}, eris.New("render: palette needs at least two colours")
	}
	g := palette.RGBGradient{Colors: make([]color.RGBA, len(stops))}
	for i, s := range stops {
		c, err := ParseColor(s)
		if err != nil {
			return palette.RGBGradient{}, err
		}
		g.Colors[i] = c
	}
	return g, nil
}

// Hex formats c as #rrggbb.
func Hex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}
