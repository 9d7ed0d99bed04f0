package image

import (
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeImage(t *testing.T, name string, w, h int, encode func(*os.File, image.Image) error) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.Black)
	}
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func encodePNG(f *os.File, img image.Image) error { return png.Encode(f, img) }

func encodeGIF(f *os.File, img image.Image) error { return gif.Encode(f, img, nil) }

func decodeSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if format != "png" {
		t.Errorf("format = %s, want png", format)
	}
	return cfg.Width, cfg.Height
}

func TestPrepare_NativeFormatPassesThrough(t *testing.T) {
	src := writeImage(t, "receta.png", 40, 20, encodePNG)

	got, cleanup, err := NewService(0, 0).Prepare(src)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()
	if got != src {
		t.Errorf("path = %s, want original %s", got, src)
	}
}

func TestPrepare_ConvertsGIF(t *testing.T) {
	src := writeImage(t, "receta.gif", 40, 20, encodeGIF)

	got, cleanup, err := NewService(0, 0).Prepare(src)
	if err != nil {
		t.Fatal(err)
	}
	if got == src {
		t.Fatal("gif returned unconverted")
	}
	if w, h := decodeSize(t, got); w != 40 || h != 20 {
		t.Errorf("size = %dx%d, want 40x20", w, h)
	}

	cleanup()
	if _, err := os.Stat(got); !os.IsNotExist(err) {
		t.Errorf("temp file kept after cleanup: %v", err)
	}
}

func TestPrepare_ScalesDown(t *testing.T) {
	src := writeImage(t, "scan.png", 400, 100, encodePNG)

	got, cleanup, err := NewService(0, 200).Prepare(src)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()
	if w, h := decodeSize(t, got); w != 200 || h != 50 {
		t.Errorf("size = %dx%d, want 200x50", w, h)
	}
}

func TestPrepare_Rejects(t *testing.T) {
	svc := NewService(16, 0)

	big := writeImage(t, "big.png", 8, 8, encodePNG)
	if _, _, err := svc.Prepare(big); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("err = %v, want ErrImageTooLarge", err)
	}

	junk := filepath.Join(t.TempDir(), "junk.png")
	if err := os.WriteFile(junk, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Prepare(junk); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h, limit int
		wantW       int
		wantH       int
	}{
		{100, 50, 200, 100, 50},
		{400, 100, 200, 200, 50},
		{100, 400, 200, 50, 200},
		{5000, 1, 100, 100, 1},
	}
	for _, tt := range tests {
		w, h := fit(tt.w, tt.h, tt.limit)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("fit(%d, %d, %d) = %d, %d; want %d, %d", tt.w, tt.h, tt.limit, w, h, tt.wantW, tt.wantH)
		}
	}
}
