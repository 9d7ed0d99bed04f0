package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"recipe-normalizer/internal/core/recipe"
	"recipe-normalizer/internal/core/vocab"
	"recipe-normalizer/internal/pkg/common"
)

type fakeExtractor struct {
	texts map[string]string
}

func (f *fakeExtractor) Extract(_ context.Context, path string) (string, error) {
	text, ok := f.texts[filepath.Base(path)]
	if !ok {
		return "", errors.New("unreadable file")
	}
	return text, nil
}

func (f *fakeExtractor) Supports(path string) bool {
	return strings.HasSuffix(path, ".txt")
}

type fakeSyncer struct {
	name   string
	fail   bool
	err    error
	mu     sync.Mutex
	synced []string
}

type rejectedError struct{ status int }

func (e *rejectedError) Error() string   { return "rejected" }
func (e *rejectedError) Permanent() bool { return e.status != 429 }

func (f *fakeSyncer) Name() string { return f.name }

func (f *fakeSyncer) Sync(_ context.Context, r *common.Recipe, _ string) (common.SyncReport, error) {
	if f.err != nil {
		return common.SyncReport{}, f.err
	}
	if f.fail {
		return common.SyncReport{}, errors.New("connection refused")
	}
	f.mu.Lock()
	f.synced = append(f.synced, r.Metadata.Title)
	f.mu.Unlock()
	report := common.NewSyncReport(f.name)
	report.Mark("title", nil)
	return report, nil
}

type fakeArchiver struct {
	mu        sync.Mutex
	processed []string
	failed    map[string][]common.AssemblyError
}

func (f *fakeArchiver) MoveProcessed(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, filepath.Base(path))
	return nil
}

func (f *fakeArchiver) MoveFailed(_ context.Context, path string, diags []common.AssemblyError) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed == nil {
		f.failed = make(map[string][]common.AssemblyError)
	}
	f.failed[filepath.Base(path)] = diags
	return nil
}

var inbox = map[string]string{
	"tortilla.txt": "Tortilla\nINGREDIENTES\n- 4 huevos\n- 2 patatas\nPREPARACIÓN\n1. Freír las patatas.\n2. Cuajar.",
	"sopa.txt":     "Sopa\nPREPARACIÓN\nHervir agua.",
}

func newTestRunner(syncers []Syncer, archiver Archiver, dryRun bool) *Runner {
	svc := recipe.NewService(recipe.NewPipeline(vocab.Default(), recipe.Options{}), nil)
	return NewRunner(Deps{
		Extractor: &fakeExtractor{texts: inbox},
		Processor: svc,
		Syncers:   syncers,
		Archiver:  archiver,
		Workers:   2,
		DryRun:    dryRun,
	})
}

func TestRunner_Run(t *testing.T) {
	syncer := &fakeSyncer{name: "notion"}
	archiver := &fakeArchiver{}
	r := newTestRunner([]Syncer{syncer}, archiver, false)

	summary, err := r.Run(context.Background(), []string{"in/tortilla.txt", "in/sopa.txt", "in/roto.txt"})
	if err != nil {
		t.Fatal(err)
	}

	want := []FileStatus{StatusProcessed, StatusFailed, StatusExtractFailed}
	for i, res := range summary.Results {
		if res.Status != want[i] {
			t.Errorf("%s status = %s, want %s", res.Path, res.Status, want[i])
		}
	}
	if len(archiver.processed) != 1 || archiver.processed[0] != "tortilla.txt" {
		t.Errorf("processed = %v", archiver.processed)
	}
	if diags := archiver.failed["sopa.txt"]; len(diags) == 0 {
		t.Error("failed recipe archived without diagnostics")
	}
	if diags := archiver.failed["roto.txt"]; len(diags) != 1 || diags[0].Code != common.CodeExtractionFailed {
		t.Errorf("extraction diagnostics = %+v", diags)
	}
	if len(syncer.synced) != 1 || syncer.synced[0] != "Tortilla" {
		t.Errorf("synced = %v", syncer.synced)
	}
	if summary.Results[0].RecipeID == "" || len(summary.Results[0].Reports) != 1 {
		t.Errorf("result = %+v", summary.Results[0])
	}
	if summary.Counts[StatusProcessed] != 1 || summary.Counts[StatusFailed] != 1 {
		t.Errorf("counts = %v", summary.Counts)
	}
}

func TestRunner_TransportErrorKeepsFile(t *testing.T) {
	archiver := &fakeArchiver{}
	ok := &fakeSyncer{name: "postgres"}
	r := newTestRunner([]Syncer{ok, &fakeSyncer{name: "notion", fail: true}}, archiver, false)

	summary, err := r.Run(context.Background(), []string{"in/tortilla.txt"})
	if err != nil {
		t.Fatal(err)
	}
	res := summary.Results[0]
	if res.Status != StatusDeferred || !strings.Contains(res.Error, "notion") {
		t.Errorf("result = %+v", res)
	}
	if len(archiver.processed) != 0 || len(archiver.failed) != 0 {
		t.Error("deferred file was moved")
	}
	if len(ok.synced) != 1 {
		t.Error("healthy syncer skipped")
	}
}

func TestRunner_RejectedSyncArchivesAsFailed(t *testing.T) {
	archiver := &fakeArchiver{}
	notion := &fakeSyncer{name: "notion", err: fmt.Errorf("save page: %w", &rejectedError{status: 400})}
	r := newTestRunner([]Syncer{&fakeSyncer{name: "postgres"}, notion}, archiver, false)

	summary, err := r.Run(context.Background(), []string{"in/tortilla.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if res := summary.Results[0]; res.Status != StatusRejected {
		t.Errorf("result = %+v", res)
	}
	diags := archiver.failed["tortilla.txt"]
	if len(diags) == 0 {
		t.Fatal("rejected file not moved to the error directory")
	}
	if last := diags[len(diags)-1]; last.Code != common.CodeSyncRejected || !strings.Contains(last.Message, "notion") {
		t.Errorf("diagnostics = %+v", diags)
	}
	if len(archiver.processed) != 0 {
		t.Error("rejected file moved to processed")
	}

	// 429 可以重試，仍留在收件匣
	archiver = &fakeArchiver{}
	notion.err = &rejectedError{status: 429}
	r = newTestRunner([]Syncer{notion}, archiver, false)
	summary, err = r.Run(context.Background(), []string{"in/tortilla.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Results[0].Status != StatusDeferred || len(archiver.failed) != 0 {
		t.Errorf("retryable rejection = %+v", summary.Results[0])
	}
}

func TestRunner_DryRun(t *testing.T) {
	archiver := &fakeArchiver{}
	syncer := &fakeSyncer{name: "notion"}
	r := newTestRunner([]Syncer{syncer}, archiver, true)

	summary, err := r.Run(context.Background(), []string{"in/tortilla.txt", "in/sopa.txt"})
	if err != nil {
		t.Fatal(err)
	}
	for _, res := range summary.Results {
		if res.Status != StatusDryRun {
			t.Errorf("%s status = %s", res.Path, res.Status)
		}
	}
	if !summary.Results[0].Outcome.Succeeded() || summary.Results[1].Outcome.Succeeded() {
		t.Error("dry run lost outcomes")
	}
	if len(syncer.synced) != 0 || len(archiver.processed) != 0 || len(archiver.failed) != 0 {
		t.Error("dry run had side effects")
	}
}

func TestRunner_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestRunner(nil, &fakeArchiver{}, false).Run(ctx, []string{"in/tortilla.txt"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRunner_Scan(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.txt", ".hidden.txt", "foto.bmp"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755); err != nil {
		t.Fatal(err)
	}

	paths, err := newTestRunner(nil, &fakeArchiver{}, false).Scan(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt")}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Errorf("paths = %v, want %v", paths, want)
	}

	if _, err := newTestRunner(nil, &fakeArchiver{}, false).Scan(filepath.Join(dir, "missing")); err == nil {
		t.Error("missing inbox accepted")
	}
}
