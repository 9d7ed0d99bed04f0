package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recipe-normalizer/internal/api"
	"recipe-normalizer/internal/core/cache"
	"recipe-normalizer/internal/core/ingredient"
	"recipe-normalizer/internal/core/queue"
	"recipe-normalizer/internal/core/recipe"
	"recipe-normalizer/internal/core/vocab"
	"recipe-normalizer/internal/infrastructure/config"
	"recipe-normalizer/internal/pkg/common"

	"go.uber.org/zap"
)

func main() {
	// 載入設定（含 .env）
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLoggerWithService(cfg.LogLevel, "api"); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	tables, err := loadVocabulary(cfg.Pipeline.VocabularyPath)
	if err != nil {
		common.LogFatal("Failed to load vocabulary", zap.Error(err))
	}

	// 初始化快取
	store, err := cache.New(&cfg.Cache)
	if err != nil {
		common.LogFatal("Failed to initialize cache", zap.Error(err), zap.String("backend", cfg.Cache.Backend))
	}
	if store != nil {
		defer store.Close()
	}

	pipeline := recipe.NewPipeline(tables, recipe.Options{
		MaxInputBytes: cfg.Pipeline.MaxInputBytes,
		AllowPartial:  cfg.Pipeline.AllowPartial,
	})
	service := recipe.NewService(pipeline, store)

	// 啟動處理隊列
	q := queue.NewManager(&cfg.Queue)
	q.Start(service.Process)

	router := api.SetupRouter(cfg, api.Dependencies{
		Service: service,
		Queue:   q,
		Cache:   store,
		Parser:  ingredient.New(tables),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
			zap.Int("port", cfg.Server.Port),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}
	q.Close()

	common.LogInfo("Server exited")
}

// loadVocabulary 讀取自訂詞彙表，未設定時使用內建詞彙表
func loadVocabulary(path string) (*vocab.Tables, error) {
	if path == "" {
		return vocab.Default(), nil
	}
	tables, err := vocab.Load(path)
	if err != nil {
		return nil, err
	}
	common.LogInfo("Custom vocabulary loaded", zap.String("path", path))
	return tables, nil
}
