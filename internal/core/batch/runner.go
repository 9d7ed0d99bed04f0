package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"recipe-normalizer/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FileStatus 單一檔案的處理結果
type FileStatus string

const (
	StatusProcessed     FileStatus = "processed"      // 組裝成功並已同步、歸檔
	StatusFailed        FileStatus = "failed"         // 組裝失敗，已移至錯誤目錄
	StatusExtractFailed FileStatus = "extract_failed" // 無法擷取文字
	StatusDeferred      FileStatus = "deferred"       // 同步傳輸失敗，留在收件匣
	StatusRejected      FileStatus = "rejected"       // 同步目標拒絕內容，已移至錯誤目錄
	StatusDryRun        FileStatus = "dry_run"
)

// FileResult 單一檔案的處理紀錄
type FileResult struct {
	Path     string              `json:"path"`
	Status   FileStatus          `json:"status"`
	RecipeID string              `json:"recipe_id,omitempty"`
	Reports  []common.SyncReport `json:"reports,omitempty"`
	Error    string              `json:"error,omitempty"`
	Outcome  common.Outcome      `json:"-"`
}

// Summary 一次批次處理的統計
type Summary struct {
	Results  []FileResult       `json:"results"`
	Counts   map[FileStatus]int `json:"counts"`
	Duration time.Duration      `json:"duration"`
}

// Deps 批次處理的協作者
type Deps struct {
	Extractor Extractor
	Processor Processor
	Syncers   []Syncer
	Archiver  Archiver
	Workers   int
	DryRun    bool // 只組裝，不同步也不搬移檔案
}

// Runner 批次處理器
type Runner struct {
	deps Deps
	now  func() time.Time
}

// NewRunner 創建批次處理器
func NewRunner(deps Deps) *Runner {
	if deps.Workers <= 0 {
		deps.Workers = 1
	}
	return &Runner{deps: deps, now: time.Now}
}

// Run processes paths with bounded parallelism. Results keep the order of
// paths. The returned error is only the context error; per-file failures are
// recorded in the summary.
func (r *Runner) Run(ctx context.Context, paths []string) (Summary, error) {
	start := r.now()
	results := make([]FileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.deps.Workers)
	for i, path := range paths {
		g.Go(func() error {
			res, err := r.handle(gctx, path)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Results:  results,
		Counts:   make(map[FileStatus]int),
		Duration: r.now().Sub(start),
	}
	for _, res := range results {
		summary.Counts[res.Status]++
	}
	common.LogInfo("批次處理完成",
		zap.Int("files", len(paths)),
		zap.Int("processed", summary.Counts[StatusProcessed]),
		zap.Int("failed", summary.Counts[StatusFailed]+summary.Counts[StatusExtractFailed]+summary.Counts[StatusRejected]),
		zap.Int("deferred", summary.Counts[StatusDeferred]),
		zap.Duration("耗時", summary.Duration),
	)
	return summary, nil
}

func (r *Runner) handle(ctx context.Context, path string) (FileResult, error) {
	res := FileResult{Path: path}

	text, err := r.deps.Extractor.Extract(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		common.LogWarn("文字擷取失敗", zap.String("path", path), zap.Error(err))
		diag := common.NewExtractionWarning(common.CodeExtractionFailed, err.Error(), common.SectionUnknown)
		res.Status = StatusExtractFailed
		res.Error = err.Error()
		res.Outcome = common.Outcome{Status: common.OutcomeFailed, Diagnostics: []common.AssemblyError{*diag}}
		r.moveFailed(ctx, &res, res.Outcome.Diagnostics)
		return res, nil
	}

	outcome, err := r.deps.Processor.Process(ctx, common.RawDocument{
		Source:     path,
		Text:       text,
		ReceivedAt: r.receivedAt(path),
	})
	if err != nil {
		return res, err
	}
	res.Outcome = outcome

	if r.deps.DryRun {
		res.Status = StatusDryRun
		if outcome.Recipe != nil {
			res.RecipeID = outcome.Recipe.ID
		}
		return res, nil
	}

	if !outcome.Succeeded() {
		res.Status = StatusFailed
		r.moveFailed(ctx, &res, outcome.Diagnostics)
		return res, nil
	}
	res.RecipeID = outcome.Recipe.ID

	transportErr := false
	var rejected []common.AssemblyError
	for _, s := range r.deps.Syncers {
		report, err := s.Sync(ctx, outcome.Recipe, text)
		if err != nil {
			if IsPermanent(err) {
				rejected = append(rejected, *common.NewValidationError(common.CodeSyncRejected, fmt.Sprintf("%s: %v", s.Name(), err)))
			} else {
				transportErr = true
			}
			common.LogError("同步失敗",
				zap.String("target", s.Name()),
				zap.String("path", path),
				zap.Error(err),
			)
			res.Error = fmt.Sprintf("%s: %v", s.Name(), err)
			continue
		}
		if failed := report.Failed(); len(failed) > 0 {
			common.LogWarn("部分欄位同步失敗",
				zap.String("target", s.Name()),
				zap.Strings("fields", failed),
			)
		}
		res.Reports = append(res.Reports, report)
	}

	// 被拒絕的內容重試也不會成功，移至錯誤目錄
	if len(rejected) > 0 {
		res.Status = StatusRejected
		diags := append(append([]common.AssemblyError(nil), outcome.Diagnostics...), rejected...)
		r.moveFailed(ctx, &res, diags)
		return res, nil
	}

	// 傳輸失敗時留在收件匣，下次再試
	if transportErr {
		res.Status = StatusDeferred
		return res, nil
	}

	res.Status = StatusProcessed
	if err := r.deps.Archiver.MoveProcessed(ctx, path); err != nil {
		common.LogError("歸檔失敗", zap.String("path", path), zap.Error(err))
		res.Error = err.Error()
	}
	return res, nil
}

// receivedAt 以檔案修改時間作為收件時間，同一檔案重試時結果不變
func (r *Runner) receivedAt(path string) time.Time {
	if info, err := os.Stat(path); err == nil {
		return info.ModTime().UTC()
	}
	return r.now().UTC()
}

func (r *Runner) moveFailed(ctx context.Context, res *FileResult, diags []common.AssemblyError) {
	if r.deps.DryRun {
		return
	}
	if err := r.deps.Archiver.MoveFailed(ctx, res.Path, diags); err != nil {
		common.LogError("移至錯誤目錄失敗", zap.String("path", res.Path), zap.Error(err))
		res.Error = err.Error()
	}
}

// Scan 列出目錄中可處理的檔案，依名稱排序
func (r *Runner) Scan(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if r.deps.Extractor.Supports(path) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Loop 定期掃描收件匣直到 ctx 結束
func (r *Runner) Loop(ctx context.Context, dir string, interval time.Duration, onSummary func(Summary)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pass := func() error {
		paths, err := r.Scan(dir)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return nil
		}
		summary, err := r.Run(ctx, paths)
		if err != nil {
			return err
		}
		if onSummary != nil {
			onSummary(summary)
		}
		return nil
	}

	for {
		if err := pass(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			common.LogError("批次處理失敗", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
