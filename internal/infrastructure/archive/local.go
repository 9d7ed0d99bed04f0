// Package archive 將處理完的收件匣檔案移出
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"recipe-normalizer/internal/pkg/common"

	"go.uber.org/zap"
)

// diagnosticsSuffix 錯誤診斷檔的副檔名
const diagnosticsSuffix = ".errors.json"

// Local 本機目錄歸檔
type Local struct {
	processedDir string
	errorDir     string
	now          func() time.Time
}

// NewLocal 創建本機歸檔器並建立目錄
func NewLocal(processedDir, errorDir string) (*Local, error) {
	for _, dir := range []string{processedDir, errorDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir %s: %w", dir, err)
		}
	}
	return &Local{processedDir: processedDir, errorDir: errorDir, now: time.Now}, nil
}

func (l *Local) MoveProcessed(_ context.Context, path string) error {
	dest, err := l.move(path, l.processedDir)
	if err != nil {
		return err
	}
	common.LogInfo("File archived", zap.String("source", path), zap.String("dest", dest))
	return nil
}

func (l *Local) MoveFailed(_ context.Context, path string, diagnostics []common.AssemblyError) error {
	dest, err := l.move(path, l.errorDir)
	if err != nil {
		return err
	}
	if err := writeDiagnostics(dest+diagnosticsSuffix, diagnostics); err != nil {
		return err
	}
	common.LogWarn("File moved to error dir",
		zap.String("source", path),
		zap.String("dest", dest),
		zap.Int("diagnostics", len(diagnostics)),
	)
	return nil
}

// move 搬移檔案，目標已存在時加上時間戳記
func (l *Local) move(path, dir string) (string, error) {
	dest := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(dest)
		dest = strings.TrimSuffix(dest, ext) + "-" + l.now().UTC().Format("20060102T150405.000000000") + ext
	}

	err := os.Rename(path, dest)
	if errors.Is(err, syscall.EXDEV) {
		err = copyAndRemove(path, dest)
	}
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", path, err)
	}
	return dest, nil
}

func copyAndRemove(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return err
	}
	return os.Remove(src)
}

// writeDiagnostics 經由暫存檔改名寫入
func writeDiagnostics(path string, diagnostics []common.AssemblyError) error {
	data, err := diagnosticsJSON(diagnostics)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".diag-*")
	if err != nil {
		return fmt.Errorf("write diagnostics: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write diagnostics: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write diagnostics: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func diagnosticsJSON(diagnostics []common.AssemblyError) ([]byte, error) {
	if diagnostics == nil {
		diagnostics = []common.AssemblyError{}
	}
	data, err := common.ToJSONIndent(diagnostics)
	if err != nil {
		return nil, fmt.Errorf("encode diagnostics: %w", err)
	}
	return data, nil
}
