package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"recipe-normalizer/internal/core/image"
)

// commandRunner runs an external tool and returns its stdout.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// PDF 以 pdftotext 擷取 PDF 文字
type PDF struct {
	binary  string
	timeout time.Duration
	run     commandRunner
}

// NewPDF 創建 PDF 擷取器
func NewPDF(binary string, timeout time.Duration) *PDF {
	if binary == "" {
		binary = "pdftotext"
	}
	return &PDF{binary: binary, timeout: timeout, run: runCommand}
}

func (p *PDF) Name() string { return "pdf" }

func (p *PDF) Extract(ctx context.Context, path string) (string, error) {
	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.run(ctx, p.binary, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", err
	}
	return CleanPageArtifacts(string(out)), nil
}

// OCR 以 tesseract 辨識圖片文字
type OCR struct {
	binary    string
	languages string
	timeout   time.Duration
	images    *image.Service
	run       commandRunner
}

// NewOCR 創建 OCR 擷取器
func NewOCR(binary, languages string, timeout time.Duration, images *image.Service) *OCR {
	if binary == "" {
		binary = "tesseract"
	}
	if languages == "" {
		languages = "spa+eng"
	}
	if images == nil {
		images = image.NewService(0, 0)
	}
	return &OCR{binary: binary, languages: languages, timeout: timeout, images: images, run: runCommand}
}

func (o *OCR) Name() string { return "ocr" }

func (o *OCR) Extract(ctx context.Context, path string) (string, error) {
	ctx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()

	input, cleanup, err := o.images.Prepare(path)
	if err != nil {
		return "", err
	}
	defer cleanup()

	out, err := o.run(ctx, o.binary, input, "stdout", "-l", o.languages)
	if err != nil {
		return "", err
	}
	return CleanPageArtifacts(string(out)), nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
