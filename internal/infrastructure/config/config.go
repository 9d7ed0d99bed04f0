package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig       `mapstructure:"app"`
	Server      ServerConfig    `mapstructure:"server"`
	Pipeline    PipelineConfig  `mapstructure:"pipeline"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Queue       QueueConfig     `mapstructure:"queue"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	Ingest      IngestConfig    `mapstructure:"ingest"`
	Notion      NotionConfig    `mapstructure:"notion"`
	Postgres    PostgresConfig  `mapstructure:"postgres"`
	S3          S3Config        `mapstructure:"s3"`
	Extract     ExtractConfig   `mapstructure:"extract"`
	DedupWindow time.Duration   `mapstructure:"dedup_window"`
	LogLevel    string          `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// PipelineConfig 食譜組裝設定
type PipelineConfig struct {
	MaxInputBytes  int    `mapstructure:"max_input_bytes"`
	AllowPartial   bool   `mapstructure:"allow_partial"`
	VocabularyPath string `mapstructure:"vocabulary_path"` // 空字串使用內建詞彙表
}

// CacheConfig 緩存配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Backend         string        `mapstructure:"backend"` // memory | redis
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Redis           RedisConfig   `mapstructure:"redis"`
}

// RedisConfig Redis 連線設定
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueueConfig 請求隊列設定
type QueueConfig struct {
	Workers int `mapstructure:"workers"`
	MaxSize int `mapstructure:"max_size"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// IngestConfig 收件匣批次處理設定
type IngestConfig struct {
	InboxDir     string        `mapstructure:"inbox_dir"`
	ProcessedDir string        `mapstructure:"processed_dir"`
	ErrorDir     string        `mapstructure:"error_dir"`
	Workers      int           `mapstructure:"workers"`
	Archive      string        `mapstructure:"archive"` // local | s3
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// NotionConfig Notion 同步設定
type NotionConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Token      string        `mapstructure:"token"`
	DatabaseID string        `mapstructure:"database_id"`
	Version    string        `mapstructure:"version"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// PostgresConfig 資料庫設定
type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// S3Config 物件儲存設定（相容 R2 / MinIO）
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// ExtractConfig 文字擷取設定
type ExtractConfig struct {
	Tesseract         string        `mapstructure:"tesseract"`
	Languages         string        `mapstructure:"languages"`
	PDFToText         string        `mapstructure:"pdftotext"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxImageBytes     int64         `mapstructure:"max_image_bytes"`
	MaxImageDimension int           `mapstructure:"max_image_dimension"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// 加載 .env 文件，不存在時只用環境變數
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	// 設定預設值
	setDefaults(v)

	// 設定環境變數前綴
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定環境變量
	v.BindEnv("cache.enabled", "CACHE_ENABLED")
	v.BindEnv("cache.backend", "CACHE_BACKEND")
	v.BindEnv("cache.redis.addr", "REDIS_ADDR")
	v.BindEnv("cache.redis.password", "REDIS_PASSWORD")
	v.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	v.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	v.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	v.BindEnv("dedup_window", "DEDUP_WINDOW")
	v.BindEnv("log_level", "LOG_LEVEL")
	v.BindEnv("pipeline.allow_partial", "ALLOW_PARTIAL")
	v.BindEnv("pipeline.vocabulary_path", "VOCABULARY_PATH")
	v.BindEnv("ingest.inbox_dir", "INBOX_DIR")
	v.BindEnv("notion.enabled", "NOTION_ENABLED")
	v.BindEnv("notion.token", "NOTION_TOKEN")
	v.BindEnv("notion.database_id", "NOTION_DATABASE_ID")
	v.BindEnv("postgres.enabled", "POSTGRES_ENABLED")
	v.BindEnv("postgres.dsn", "DATABASE_URL")
	v.BindEnv("s3.bucket", "S3_BUCKET")
	v.BindEnv("s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("s3.access_key", "S3_ACCESS_KEY")
	v.BindEnv("s3.secret_key", "S3_SECRET_KEY")

	// 解析設定
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 驗證必要設定
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// logger 尚未初始化，改用 fmt.Println
	fmt.Println("Loading configuration", "notion_token:", maskAPIKey(config.Notion.Token), "cache_backend:", config.Cache.Backend)

	return &config, nil
}

// maskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "recipe-normalizer")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	// 組裝設定
	v.SetDefault("pipeline.max_input_bytes", 256<<10)
	v.SetDefault("pipeline.allow_partial", false)
	v.SetDefault("pipeline.vocabulary_path", "")

	// 快取設定
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_interval", "10m")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	// 隊列設定
	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.max_size", 100)

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")

	// 收件匣設定
	v.SetDefault("ingest.inbox_dir", "inbox")
	v.SetDefault("ingest.processed_dir", "processed")
	v.SetDefault("ingest.error_dir", "error")
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.archive", "local")
	v.SetDefault("ingest.poll_interval", "30s")

	// Notion 設定
	v.SetDefault("notion.enabled", false)
	v.SetDefault("notion.version", "2022-06-28")
	v.SetDefault("notion.base_url", "https://api.notion.com/v1")
	v.SetDefault("notion.timeout", "30s")
	v.SetDefault("notion.max_retries", 3)

	// 資料庫設定
	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.max_conns", 4)

	// 物件儲存設定
	v.SetDefault("s3.region", "auto")
	v.SetDefault("s3.prefix", "recipes")

	// 擷取設定
	v.SetDefault("extract.tesseract", "tesseract")
	v.SetDefault("extract.languages", "spa+eng")
	v.SetDefault("extract.pdftotext", "pdftotext")
	v.SetDefault("extract.timeout", "2m")
	v.SetDefault("extract.max_image_bytes", 20<<20)
	v.SetDefault("extract.max_image_dimension", 3000)

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	// 驗證伺服器設定
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	if config.Pipeline.MaxInputBytes < 0 {
		return fmt.Errorf("invalid pipeline max input bytes")
	}

	// 驗證快取設定
	if config.Cache.Enabled {
		switch config.Cache.Backend {
		case "memory":
			if config.Cache.MaxSize <= 0 {
				return fmt.Errorf("invalid cache max size")
			}
			if config.Cache.CleanupInterval <= 0 {
				return fmt.Errorf("invalid cache cleanup interval")
			}
		case "redis":
			if config.Cache.Redis.Addr == "" {
				return fmt.Errorf("redis addr is required")
			}
		default:
			return fmt.Errorf("unknown cache backend %q", config.Cache.Backend)
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
	}

	// 驗證隊列設定
	if config.Queue.Workers <= 0 {
		return fmt.Errorf("invalid queue workers")
	}
	if config.Queue.MaxSize <= 0 {
		return fmt.Errorf("invalid queue max size")
	}

	if config.Ingest.Workers <= 0 {
		return fmt.Errorf("invalid ingest workers")
	}
	switch config.Ingest.Archive {
	case "local":
	case "s3":
		if config.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required for the s3 archive")
		}
	default:
		return fmt.Errorf("unknown archive backend %q", config.Ingest.Archive)
	}

	if config.Notion.Enabled && (config.Notion.Token == "" || config.Notion.DatabaseID == "") {
		return fmt.Errorf("notion token and database id are required")
	}
	if config.Postgres.Enabled && config.Postgres.DSN == "" {
		return fmt.Errorf("postgres dsn is required")
	}

	return nil
}
