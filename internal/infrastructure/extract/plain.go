package extract

import (
	"bytes"
	"context"
	"errors"
	"os"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrInvalidEncoding 文字檔不是 UTF-8
var ErrInvalidEncoding = errors.New("file is not valid UTF-8")

// PlainText 純文字與 Markdown
type PlainText struct{}

func (PlainText) Name() string { return "plain" }

func (PlainText) Extract(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", ErrInvalidEncoding
	}
	return string(data), nil
}
