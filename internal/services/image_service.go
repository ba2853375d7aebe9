package services

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"
)

const (
	defaultMaxDimension = 1024
	defaultJPEGQuality  = 85
)

// ImageService shrinks images before they are sent to the AI collaborator
type ImageService struct {
	maxDim  int
	quality int
}

// NewImageService creates an ImageService that fits images into maxDim x maxDim
func NewImageService(maxDim int) *ImageService {
	if maxDim <= 0 {
		maxDim = defaultMaxDimension
	}
	return &ImageService{maxDim: maxDim, quality: defaultJPEGQuality}
}

// Prepare returns a JPEG no larger than the configured box, upright per its
// EXIF orientation. Input that cannot be decoded is returned unchanged along
// with its detected content type.
func (s *ImageService) Prepare(data []byte, filename string) ([]byte, string) {
	img, err := decodeImage(data, filename)
	if err != nil {
		return data, DetectContentType(data, filename)
	}

	img = applyOrientation(img, readOrientation(data, filename))
	img = imaging.Fit(img, s.maxDim, s.maxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return data, DetectContentType(data, filename)
	}
	return buf.Bytes(), "image/jpeg"
}

// DetectContentType sniffs data, falling back to the filename for formats the
// standard sniffer does not know.
func DetectContentType(data []byte, filename string) string {
	if IsHEIC(filename) {
		return "image/heic"
	}
	ct := http.DetectContentType(data)
	if ct == "application/octet-stream" {
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".jpg", ".jpeg":
			return "image/jpeg"
		case ".png":
			return "image/png"
		case ".gif":
			return "image/gif"
		case ".webp":
			return "image/webp"
		}
	}
	return ct
}

// IsHEIC checks if the file is HEIC/HEIF format (requires special handling)
func IsHEIC(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".heic" || ext == ".heif"
}

func decodeImage(data []byte, filename string) (image.Image, error) {
	if IsHEIC(filename) {
		img, err := goheif.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode HEIC image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// readOrientation returns the EXIF orientation, 1 when absent
func readOrientation(data []byte, filename string) int {
	raw := data
	if IsHEIC(filename) {
		exifBytes, err := goheif.ExtractExif(bytes.NewReader(data))
		if err != nil {
			return 1
		}
		raw = exifBytes
	}

	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	orientation, err := tag.Int(0)
	if err != nil || orientation < 1 || orientation > 8 {
		return 1
	}
	return orientation
}

// applyOrientation corrects image orientation based on EXIF data
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		// Transpose
		return imaging.Rotate270(imaging.FlipH(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		// Transverse
		return imaging.Rotate90(imaging.FlipH(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
