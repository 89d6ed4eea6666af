package kymograph

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Load decodes an image file into a Kymograph.
//
// Parameters:
//   - path: file path to a TIFF, PNG, JPEG, GIF or BMP image. Rows of the
//     image are scan lines.
//
// Returns:
//   - *Kymograph: the decoded samples.
//   - error: non-nil if the file cannot be opened or decoded.
//
// EXIF orientation is ignored; line-scan exports have none and rotating
// the array would swap time and space.
func Load(path string) (*Kymograph, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open kymograph: %w", err)
	}
	return FromImage(img)
}

// IsImageFile reports whether path has an extension Load understands.
func IsImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff", ".png", ".jpg", ".jpeg", ".gif", ".bmp":
		return true
	}
	return false
}

// FolderName returns the name of the directory containing path.
func FolderName(path string) string {
	return filepath.Base(filepath.Dir(path))
}

// BaseName returns the file name of path without its extension.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
