// Package encoder persists raw RGBA captures as image files.
package encoder

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
)

// Format identifies an output image encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatBMP  Format = "bmp"
)

// DefaultJPEGQuality is used when no quality is configured.
const DefaultJPEGQuality = 90

// FormatForPath picks the encoding for a file path by extension. Unknown
// extensions fall back to PNG.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".bmp":
		return FormatBMP
	default:
		return FormatPNG
	}
}

// ParseFormat maps a format name to a Format. Unknown names fall back
// to PNG.
func ParseFormat(name string) Format {
	switch strings.ToLower(name) {
	case "jpg", "jpeg":
		return FormatJPEG
	case "bmp":
		return FormatBMP
	default:
		return FormatPNG
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatBMP:
		return "image/bmp"
	default:
		return "image/png"
	}
}

// Encode writes pixels to w as one image in the given format. The buffer
// must hold exactly width*height*4 bytes in R,G,B,A order. Out-of-range
// JPEG qualities fall back to DefaultJPEGQuality.
func Encode(w io.Writer, format Format, pixels []byte, width, height uint32, quality int) error {
	want := int(width) * int(height) * 4
	if len(pixels) != want {
		return fmt.Errorf("pixel buffer is %d bytes, want %d for %dx%d", len(pixels), want, width, height)
	}

	img := &image.RGBA{
		Pix:    pixels,
		Stride: int(width) * 4,
		Rect:   image.Rect(0, 0, int(width), int(height)),
	}

	switch format {
	case FormatJPEG:
		if quality < 1 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case FormatBMP:
		return bmp.Encode(w, img)
	default:
		return png.Encode(w, img)
	}
}

// FileSaver writes captures to disk, picking the format from the target
// file's extension.
type FileSaver struct {
	JPEGQuality int
}

// NewFileSaver returns a saver with the given JPEG quality. Out-of-range
// values fall back to DefaultJPEGQuality.
func NewFileSaver(quality int) FileSaver {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return FileSaver{JPEGQuality: quality}
}

// Save encodes pixels into the file at path.
func (s FileSaver) Save(path string, pixels []byte, width, height uint32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Encode(f, FormatForPath(path), pixels, width, height, s.JPEGQuality); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
