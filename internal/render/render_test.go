package render

import (
	"bytes"
	"encoding/base64"
	"image/color"
	"image/png"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/kymflow-mcp/internal/kymograph"
)

// rampKymograph has intensity rising with the line index.
func rampKymograph(t *testing.T, lines, width int) *kymograph.Kymograph {
	t.Helper()
	pix := make([]uint16, lines*width)
	for l := 0; l < lines; l++ {
		for p := 0; p < width; p++ {
			pix[l*width+p] = uint16(1000 + 10*l)
		}
	}
	k, err := kymograph.New(lines, width, pix)
	if err != nil {
		t.Fatalf("Failed to build kymograph: %v", err)
	}
	return k
}

func TestNewColormap(t *testing.T) {
	for _, name := range ColormapNames() {
		t.Run(name, func(t *testing.T) {
			cm, err := NewColormap(name)
			require.NoError(t, err)
			assert.Equal(t, uint8(255), cm[0].A)
		})
	}

	gray, err := NewColormap("")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, gray[0])
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, gray[255])

	green, err := NewColormap("Green")
	require.NoError(t, err)
	assert.Equal(t, uint8(0), green[255].R)
	assert.Equal(t, uint8(255), green[255].G)

	_, err = NewColormap("rainbow")
	assert.Error(t, err)
}

func TestPreview_RotatesTimeOntoX(t *testing.T) {
	k := rampKymograph(t, 40, 8)
	img, err := Preview(k, PreviewOptions{})
	require.NoError(t, err)

	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())

	// The first line is the darkest and lands on the left edge.
	first := color.GrayModel.Convert(img.At(0, 4)).(color.Gray)
	last := color.GrayModel.Convert(img.At(39, 4)).(color.Gray)
	assert.Equal(t, uint8(0), first.Y)
	assert.Equal(t, uint8(255), last.Y)
}

func TestPreview_LineRangeAndResize(t *testing.T) {
	k := rampKymograph(t, 40, 8)

	img, err := Preview(k, PreviewOptions{StartLine: 10, StopLine: 30, Colormap: "heat", Gamma: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())

	img, err = Preview(k, PreviewOptions{Width: 20})
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())
}

func TestPreview_Errors(t *testing.T) {
	k := rampKymograph(t, 40, 8)
	tests := []struct {
		name string
		opts PreviewOptions
	}{
		{"stop past end", PreviewOptions{StopLine: 41}},
		{"empty range", PreviewOptions{StartLine: 20, StopLine: 20}},
		{"negative start", PreviewOptions{StartLine: -1}},
		{"negative size", PreviewOptions{Width: -5}},
		{"bad colormap", PreviewOptions{Colormap: "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Preview(k, tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestPreview_ConstantImage(t *testing.T) {
	k, err := kymograph.New(4, 4, make([]uint16, 16))
	require.NoError(t, err)
	img, err := Preview(k, PreviewOptions{})
	require.NoError(t, err)
	assert.Equal(t, color.Gray{}, color.GrayModel.Convert(img.At(2, 2)))
}

func TestEncodePNG(t *testing.T) {
	img, err := Preview(rampKymograph(t, 12, 6), PreviewOptions{})
	require.NoError(t, err)

	res, err := EncodePNG(img)
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.MimeType)
	assert.Equal(t, 12, res.Width)
	assert.Equal(t, 6, res.Height)

	raw, err := base64.StdEncoding.DecodeString(res.ImageBase64)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds().Size(), decoded.Bounds().Size())
}

func TestFiniteSegments(t *testing.T) {
	nan := math.NaN()
	times := []float64{0, 1, 2, 3, 4, 5, 6}
	vel := []float64{nan, 1, 2, nan, 3, nan, nan}

	segs := finiteSegments(times, vel)
	require.Len(t, segs, 2)
	assert.Len(t, segs[0], 2)
	assert.Len(t, segs[1], 1)
	assert.Equal(t, 4.0, segs[1][0].X)
}

func TestVelocityPNG(t *testing.T) {
	times := []float64{0.01, 0.02, 0.03, 0.04, 0.05}
	vel := []float64{0.5, 0.6, math.NaN(), 0.55, 0.52}

	data, err := VelocityPNG(times, vel, PlotOptions{Title: "k.tif", WidthIn: 4, HeightIn: 2})
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), img.Bounds().Dy())

	_, err = VelocityPNG(times, []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()}, PlotOptions{})
	assert.ErrorIs(t, err, ErrNoData)

	_, err = VelocityPNG(times, vel[:2], PlotOptions{})
	assert.Error(t, err)
}

func TestSaveVelocityPlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "velocity.png")
	require.NoError(t, SaveVelocityPlot(path, []float64{0, 1, 2}, []float64{1, 2, 1}, PlotOptions{}))
	assert.FileExists(t, path)
}

func TestWriteVelocityChart(t *testing.T) {
	times := []float64{0.01, 0.02, 0.03}
	vel := []float64{0.5, math.NaN(), 0.7}

	var buf bytes.Buffer
	require.NoError(t, WriteVelocityChart(&buf, times, vel, ChartOptions{Title: "Capillary1_0001", AssetsHost: "/assets/"}))
	html := buf.String()
	assert.True(t, strings.Contains(html, "Capillary1_0001"))
	assert.True(t, strings.Contains(html, "/assets/"))
	assert.False(t, strings.Contains(html, "NaN"))

	err := WriteVelocityChart(&buf, times[:1], []float64{math.NaN()}, ChartOptions{})
	assert.ErrorIs(t, err, ErrNoData)
}
