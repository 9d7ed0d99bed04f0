package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"recipe-normalizer/internal/pkg/common"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func newLocal(t *testing.T) (*Local, string) {
	t.Helper()
	root := t.TempDir()
	l, err := NewLocal(filepath.Join(root, "processed"), filepath.Join(root, "error"))
	if err != nil {
		t.Fatal(err)
	}
	l.now = func() time.Time { return time.Date(2024, 3, 9, 8, 30, 0, 0, time.UTC) }
	return l, root
}

func inboxFile(t *testing.T, root, name, content string) string {
	t.Helper()
	dir := filepath.Join(root, "inbox")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLocal_MoveProcessed(t *testing.T) {
	l, root := newLocal(t)
	ctx := context.Background()

	first := inboxFile(t, root, "flan.txt", "uno")
	if err := l.MoveProcessed(ctx, first); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(first); !errors.Is(err, os.ErrNotExist) {
		t.Error("source still in inbox")
	}

	second := inboxFile(t, root, "flan.txt", "dos")
	if err := l.MoveProcessed(ctx, second); err != nil {
		t.Fatal(err)
	}
	renamed := filepath.Join(root, "processed", "flan-20240309T083000.000000000.txt")
	data, err := os.ReadFile(renamed)
	if err != nil || string(data) != "dos" {
		t.Errorf("collision file = %q, %v", data, err)
	}
}

func TestLocal_MoveFailed(t *testing.T) {
	l, root := newLocal(t)
	path := inboxFile(t, root, "roto.md", "???")
	diags := []common.AssemblyError{*common.NewValidationError(common.CodeEmptyIngredients, "no ingredients")}

	if err := l.MoveFailed(context.Background(), path, diags); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(root, "error", "roto.md.errors.json"))
	if err != nil {
		t.Fatal(err)
	}
	var got []common.AssemblyError
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Code != common.CodeEmptyIngredients {
		t.Errorf("diagnostics = %+v", got)
	}

	entries, _ := os.ReadDir(filepath.Join(root, "error"))
	if len(entries) != 2 {
		t.Errorf("error dir has %d entries, want file + diagnostics", len(entries))
	}
}

func TestLocal_MissingSource(t *testing.T) {
	l, root := newLocal(t)
	if err := l.MoveProcessed(context.Background(), filepath.Join(root, "nope.txt")); err == nil {
		t.Error("missing source archived")
	}
}

type fakePutter struct {
	objects map[string]string
	types   map[string]string
	err     error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(in.Body)
	f.objects[*in.Key] = string(data)
	f.types[*in.Key] = *in.ContentType
	return &s3.PutObjectOutput{}, nil
}

func TestS3_Move(t *testing.T) {
	root := t.TempDir()
	put := &fakePutter{objects: map[string]string{}, types: map[string]string{}}
	a := newS3(put, "recetas", "archive")
	ctx := context.Background()

	ok := inboxFile(t, root, "sopa.txt", "Sopa")
	if err := a.MoveProcessed(ctx, ok); err != nil {
		t.Fatal(err)
	}
	if put.objects["archive/processed/sopa.txt"] != "Sopa" {
		t.Errorf("objects = %v", put.objects)
	}
	if _, err := os.Stat(ok); !errors.Is(err, os.ErrNotExist) {
		t.Error("local file kept after upload")
	}

	bad := inboxFile(t, root, "mal.html", "<p>")
	if err := a.MoveFailed(ctx, bad, nil); err != nil {
		t.Fatal(err)
	}
	if put.objects["archive/error/mal.html.errors.json"] != "[]" {
		t.Errorf("diagnostics object = %q", put.objects["archive/error/mal.html.errors.json"])
	}
	if put.types["archive/error/mal.html.errors.json"] != "application/json" {
		t.Errorf("content type = %q", put.types["archive/error/mal.html.errors.json"])
	}
}

func TestS3_UploadFailureKeepsFile(t *testing.T) {
	root := t.TempDir()
	a := newS3(&fakePutter{err: errors.New("network down")}, "recetas", "")
	path := inboxFile(t, root, "sopa.txt", "Sopa")

	if err := a.MoveProcessed(context.Background(), path); err == nil {
		t.Fatal("upload error swallowed")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file removed after failed upload: %v", err)
	}
	if got := a.key("processed", "sopa.txt"); got != "processed/sopa.txt" {
		t.Errorf("key = %q", got)
	}
}
