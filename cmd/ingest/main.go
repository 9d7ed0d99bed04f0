// Command ingest watches an inbox directory, assembles every supported file
// into a recipe, syncs it to the configured targets and archives the file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"recipe-normalizer/internal/core/batch"
	"recipe-normalizer/internal/core/cache"
	"recipe-normalizer/internal/core/recipe"
	"recipe-normalizer/internal/core/vocab"
	"recipe-normalizer/internal/infrastructure/archive"
	"recipe-normalizer/internal/infrastructure/config"
	"recipe-normalizer/internal/infrastructure/extract"
	"recipe-normalizer/internal/infrastructure/notion"
	"recipe-normalizer/internal/infrastructure/render"
	"recipe-normalizer/internal/infrastructure/store"
	"recipe-normalizer/internal/pkg/common"

	"go.uber.org/zap"
)

func main() {
	once := flag.Bool("once", false, "Process the inbox once and exit")
	dryRun := flag.Bool("dry-run", false, "Assemble and print recipes without syncing or moving files")
	inbox := flag.String("inbox", "", "Inbox directory (overrides ingest.inbox_dir)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *inbox != "" {
		cfg.Ingest.InboxDir = *inbox
	}

	if err := common.InitLoggerWithService(cfg.LogLevel, "ingest"); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tables := vocab.Default()
	if cfg.Pipeline.VocabularyPath != "" {
		if tables, err = vocab.Load(cfg.Pipeline.VocabularyPath); err != nil {
			common.LogFatal("Failed to load vocabulary", zap.Error(err))
		}
	}

	outcomeCache, err := cache.New(&cfg.Cache)
	if err != nil {
		common.LogFatal("Failed to initialize cache", zap.Error(err))
	}
	if outcomeCache != nil {
		defer outcomeCache.Close()
	}

	service := recipe.NewService(recipe.NewPipeline(tables, recipe.Options{
		MaxInputBytes: cfg.Pipeline.MaxInputBytes,
		AllowPartial:  cfg.Pipeline.AllowPartial,
	}), outcomeCache)

	deps := batch.Deps{
		Extractor: extract.NewRegistry(&cfg.Extract),
		Processor: service,
		Workers:   cfg.Ingest.Workers,
		DryRun:    *dryRun,
	}

	if !*dryRun {
		syncers, closeSyncers, err := buildSyncers(ctx, cfg, tables)
		if err != nil {
			common.LogFatal("Failed to initialize sync targets", zap.Error(err))
		}
		defer closeSyncers()
		deps.Syncers = syncers

		archiver, err := buildArchiver(ctx, cfg)
		if err != nil {
			common.LogFatal("Failed to initialize archive", zap.Error(err))
		}
		deps.Archiver = archiver
	}

	runner := batch.NewRunner(deps)
	onSummary := func(s batch.Summary) {
		if *dryRun {
			printDryRun(s)
		}
	}

	common.LogInfo("啟動應用",
		zap.String("inbox", cfg.Ingest.InboxDir),
		zap.Bool("once", *once),
		zap.Bool("dry_run", *dryRun),
		zap.Int("syncers", len(deps.Syncers)),
	)

	if *once {
		paths, err := runner.Scan(cfg.Ingest.InboxDir)
		if err != nil {
			common.LogFatal("Failed to scan inbox", zap.Error(err))
		}
		summary, err := runner.Run(ctx, paths)
		if err != nil {
			common.LogError("Batch interrupted", zap.Error(err))
			os.Exit(1)
		}
		onSummary(summary)
		if summary.Counts[batch.StatusFailed]+summary.Counts[batch.StatusExtractFailed]+summary.Counts[batch.StatusRejected] > 0 {
			os.Exit(2)
		}
		return
	}

	if err := runner.Loop(ctx, cfg.Ingest.InboxDir, cfg.Ingest.PollInterval, onSummary); err != nil {
		common.LogError("Inbox loop stopped", zap.Error(err))
	}
	common.LogInfo("Shutting down server...")
}

// buildSyncers 依設定建立同步目標
func buildSyncers(ctx context.Context, cfg *config.Config, tables *vocab.Tables) ([]batch.Syncer, func(), error) {
	var syncers []batch.Syncer
	closers := []func(){}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.Notion.Enabled {
		syncers = append(syncers, notion.NewClient(&cfg.Notion, tables))
	}
	if cfg.Postgres.Enabled {
		db, err := store.Connect(ctx, &cfg.Postgres)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, db.Close)
		if err := db.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, closeAll, err
		}
		syncers = append(syncers, db)
	}
	return syncers, closeAll, nil
}

// buildArchiver 依設定建立歸檔器
func buildArchiver(ctx context.Context, cfg *config.Config) (batch.Archiver, error) {
	if cfg.Ingest.Archive == "s3" {
		return archive.NewS3(ctx, &cfg.S3)
	}
	return archive.NewLocal(cfg.Ingest.ProcessedDir, cfg.Ingest.ErrorDir)
}

// printDryRun 輸出每個檔案的 Markdown 或診斷
func printDryRun(s batch.Summary) {
	for _, res := range s.Results {
		fmt.Printf("==> %s [%s]\n", filepath.Base(res.Path), res.Status)
		if res.Outcome.Succeeded() {
			fmt.Println(render.Markdown(res.Outcome.Recipe))
			continue
		}
		for _, d := range res.Outcome.Diagnostics {
			fmt.Printf("  %s %s: %s\n", d.Kind, d.Code, d.Message)
		}
		fmt.Println()
	}
}
