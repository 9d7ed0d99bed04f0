// Package image prepares scanned recipe photos for OCR.
package image

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"

	_ "image/gif"  // 支援 GIF
	_ "image/jpeg" // 支援 JPEG

	_ "golang.org/x/image/bmp" // 支援 BMP
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // 支援 TIFF
	_ "golang.org/x/image/webp" // 支援 WebP
)

const (
	DefaultMaxBytes     = 20 << 20
	DefaultMaxDimension = 3000
)

var (
	// ErrImageTooLarge 檔案超過大小上限
	ErrImageTooLarge = errors.New("image too large")
	// ErrUnsupportedFormat 無法解碼的圖片格式
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// tesseract 可直接讀取的格式
var nativeFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"tiff": true,
	"bmp":  true,
}

// Service 圖片前處理服務
type Service struct {
	maxSizeBytes int64
	maxDimension int
}

// NewService 創建新的圖片前處理服務
func NewService(maxSizeBytes int64, maxDimension int) *Service {
	if maxSizeBytes <= 0 {
		maxSizeBytes = DefaultMaxBytes
	}
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	return &Service{maxSizeBytes: maxSizeBytes, maxDimension: maxDimension}
}

// Prepare validates the image at path and returns a file tesseract can read.
// Formats tesseract handles natively within the dimension limit are returned
// as is; anything else is decoded, scaled down to grayscale and written to a
// temporary PNG that the returned cleanup removes.
func (s *Service) Prepare(path string) (string, func(), error) {
	noop := func() {}

	info, err := os.Stat(path)
	if err != nil {
		return "", noop, err
	}
	if info.Size() > s.maxSizeBytes {
		return "", noop, fmt.Errorf("%w: %d bytes exceeds %d", ErrImageTooLarge, info.Size(), s.maxSizeBytes)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", noop, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return "", noop, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if nativeFormats[format] && cfg.Width <= s.maxDimension && cfg.Height <= s.maxDimension {
		return path, noop, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", noop, err
	}
	img, _, err := image.Decode(f)
	if err != nil {
		return "", noop, fmt.Errorf("failed to decode image: %w", err)
	}

	out, err := os.CreateTemp("", "ocr-*.png")
	if err != nil {
		return "", noop, err
	}
	cleanup := func() { os.Remove(out.Name()) }

	if err := png.Encode(out, s.grayscale(img)); err != nil {
		out.Close()
		cleanup()
		return "", noop, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	if err := out.Close(); err != nil {
		cleanup()
		return "", noop, err
	}
	return out.Name(), cleanup, nil
}

// grayscale 轉灰階並縮到尺寸上限內
func (s *Service) grayscale(src image.Image) *image.Gray {
	b := src.Bounds()
	w, h := fit(b.Dx(), b.Dy(), s.maxDimension)
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func fit(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}
