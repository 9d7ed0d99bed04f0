// Package extract turns recipe source files into plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"recipe-normalizer/internal/core/image"
	"recipe-normalizer/internal/infrastructure/config"
	"recipe-normalizer/internal/pkg/common"

	"go.uber.org/zap"
)

// ErrUnsupportedSource 不支援的副檔名
var ErrUnsupportedSource = errors.New("unsupported source")

// Extractor 單一格式的擷取器
type Extractor interface {
	Name() string
	Extract(ctx context.Context, path string) (string, error)
}

// Registry dispatches by file extension.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry 以設定建立預設擷取器
func NewRegistry(cfg *config.ExtractConfig) *Registry {
	r := &Registry{byExt: make(map[string]Extractor)}

	plain := &PlainText{}
	r.Register(plain, ".txt", ".md", ".markdown")
	r.Register(&HTML{}, ".html", ".htm")

	if cfg != nil {
		r.Register(NewPDF(cfg.PDFToText, cfg.Timeout), ".pdf")
		images := image.NewService(cfg.MaxImageBytes, cfg.MaxImageDimension)
		r.Register(NewOCR(cfg.Tesseract, cfg.Languages, cfg.Timeout, images),
			".png", ".jpg", ".jpeg", ".tif", ".tiff", ".webp", ".gif", ".bmp")
	}
	return r
}

// Register 綁定副檔名
func (r *Registry) Register(e Extractor, exts ...string) {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = e
	}
}

// Extensions 已註冊的副檔名
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Supports 是否支援該檔案
func (r *Registry) Supports(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extract 擷取文字
func (r *Registry) Extract(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := r.byExt[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSource, ext)
	}

	text, err := e.Extract(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%s extract %s: %w", e.Name(), filepath.Base(path), err)
	}
	common.LogDebug("文字擷取完成",
		zap.String("extractor", e.Name()),
		zap.String("path", path),
		zap.Int("bytes", len(text)),
	)
	return text, nil
}
