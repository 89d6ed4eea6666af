package kymograph

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

// createTestTIFF writes a 16-bit grayscale TIFF where sample = line*width + pixel.
func createTestTIFF(t *testing.T, lines, width int) string {
	t.Helper()
	img := image.NewGray16(image.Rect(0, 0, width, lines))
	for y := 0; y < lines; y++ {
		for x := 0; x < width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(y*width + x)})
		}
	}

	path := filepath.Join(t.TempDir(), "kym.tif")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer f.Close()
	if err := tiff.Encode(f, img, nil); err != nil {
		t.Fatalf("Failed to encode TIFF: %v", err)
	}
	return path
}

func TestLoad_TIFF16(t *testing.T) {
	path := createTestTIFF(t, 40, 12)

	k, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 40, k.NumLines())
	assert.Equal(t, 12, k.PixelsPerLine())
	assert.Equal(t, uint16(3*12+5), k.At(3, 5))
	assert.Equal(t, uint16(39*12+11), k.At(39, 11))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("/nonexistent/path/kym.tif")
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.tif")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestPathHelpers(t *testing.T) {
	assert.True(t, IsImageFile("a/b/c.TIF"))
	assert.True(t, IsImageFile("c.png"))
	assert.False(t, IsImageFile("c.txt"))
	assert.Equal(t, "20221102", FolderName("/data/20221102/Capillary1_0001.tif"))
	assert.Equal(t, "Capillary1_0001", BaseName("/data/20221102/Capillary1_0001.tif"))
}
