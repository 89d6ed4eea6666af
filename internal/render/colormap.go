package render

import (
	"fmt"
	"image"
	"image/color"
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Colormap maps an 8-bit intensity to a display color.
type Colormap [256]color.NRGBA

// colormapStops lists the named colormaps as evenly spaced hex stops.
var colormapStops = map[string][]string{
	"gray":     {"#000000", "#ffffff"},
	"inverted": {"#ffffff", "#000000"},
	"green":    {"#000000", "#00ff00"},
	"heat":     {"#000000", "#b00000", "#ff8000", "#ffff00", "#ffffff"},
	"viridis":  {"#440154", "#3e4989", "#26828e", "#35b779", "#fde725"},
}

// ColormapNames returns the known colormap names in sorted order.
func ColormapNames() []string {
	names := make([]string, 0, len(colormapStops))
	for name := range colormapStops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewColormap builds the named colormap by blending its stops in Lab
// space. An empty name selects "gray".
func NewColormap(name string) (*Colormap, error) {
	if name == "" {
		name = "gray"
	}
	hexes, ok := colormapStops[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown colormap %q (want one of %s)", name, strings.Join(ColormapNames(), ", "))
	}

	stops := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, fmt.Errorf("colormap %s: %w", name, err)
		}
		stops[i] = c
	}

	var cm Colormap
	segments := float64(len(stops) - 1)
	for i := range cm {
		pos := float64(i) / 255 * segments
		k := int(pos)
		if k >= len(stops)-1 {
			k = len(stops) - 2
		}
		c := stops[k].BlendLab(stops[k+1], pos-float64(k)).Clamped()
		r, g, b := c.RGB255()
		cm[i] = color.NRGBA{R: r, G: g, B: b, A: 255}
	}
	return &cm, nil
}

// Apply colors img by its luminance.
func (cm *Colormap) Apply(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			out.SetNRGBA(x-b.Min.X, y-b.Min.Y, cm[g.Y])
		}
	}
	return out
}
