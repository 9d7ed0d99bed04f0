// Package store 將食譜保存到 Postgres
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"recipe-normalizer/internal/infrastructure/config"
	"recipe-normalizer/internal/pkg/common"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const table = "recipes"

// ErrNotFound 找不到食譜
var ErrNotFound = errors.New("recipe not found")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// columns 寫入順序，upsertQuery 的值必須對應
var columns = []string{
	"id", "source", "title", "language",
	"servings_min", "servings_max", "calories_per_serving",
	"prep_time_minutes", "cook_time_minutes", "total_time_minutes",
	"difficulty", "tags", "source_url", "made", "recipe_date", "partial",
	"recipe", "raw_text", "created_at", "updated_at",
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS recipes (
		id UUID PRIMARY KEY,
		source TEXT NOT NULL,
		title TEXT NOT NULL,
		language VARCHAR(8) NOT NULL DEFAULT '',
		servings_min INTEGER NULL,
		servings_max INTEGER NULL,
		calories_per_serving INTEGER NULL,
		prep_time_minutes INTEGER NULL,
		cook_time_minutes INTEGER NULL,
		total_time_minutes INTEGER NULL,
		difficulty VARCHAR(32) NULL,
		tags TEXT[] NOT NULL DEFAULT '{}',
		source_url TEXT NOT NULL,
		made BOOLEAN NOT NULL DEFAULT FALSE,
		recipe_date DATE NULL,
		partial BOOLEAN NOT NULL DEFAULT FALSE,
		recipe JSONB NOT NULL,
		raw_text TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS recipes_tags_idx ON recipes USING GIN (tags);
`

// PostgresStore 食譜資料表
type PostgresStore struct {
	db *pgxpool.Pool
}

// Connect 建立連線池並確認連線
func Connect(ctx context.Context, cfg *config.PostgresConfig) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MaxConnLifetime = time.Hour

	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	common.LogInfo("Connected to PostgreSQL", zap.Int32("max_conns", poolConfig.MaxConns))
	return NewPostgresStore(db), nil
}

// NewPostgresStore 使用既有連線池
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Name() string { return "postgres" }

// Close 關閉連線池
func (s *PostgresStore) Close() {
	s.db.Close()
}

// EnsureSchema 建立資料表
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Sync 以 upsert 寫入食譜。單一陳述式寫入所有欄位，所以欄位要嘛全部成功要嘛全部失敗。
func (s *PostgresStore) Sync(ctx context.Context, recipe *common.Recipe, rawText string) (common.SyncReport, error) {
	report := common.NewSyncReport(s.Name())
	if recipe == nil {
		return report, errors.New("postgres: nil recipe")
	}

	query, args, err := upsertQuery(recipe, rawText)
	if err != nil {
		return report, err
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return report, fmt.Errorf("upsert recipe %s: %w", recipe.ID, err)
	}

	report.ExternalID = recipe.ID
	for _, c := range columns {
		report.Mark(c, nil)
	}
	return report, nil
}

// Get 讀取已保存的食譜
func (s *PostgresStore) Get(ctx context.Context, id string) (*common.Recipe, error) {
	query, args, err := selectQuery(id)
	if err != nil {
		return nil, err
	}

	var data []byte
	if err := s.db.QueryRow(ctx, query, args...).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get recipe %s: %w", id, err)
	}

	var recipe common.Recipe
	if err := common.ParseJSONBytes(data, &recipe); err != nil {
		return nil, fmt.Errorf("decode recipe %s: %w", id, err)
	}
	return &recipe, nil
}

func upsertQuery(recipe *common.Recipe, rawText string) (string, []interface{}, error) {
	data, err := json.Marshal(recipe)
	if err != nil {
		return "", nil, fmt.Errorf("encode recipe: %w", err)
	}

	m := recipe.Metadata
	var servingsMin, servingsMax *int
	if m.Servings != nil {
		servingsMin, servingsMax = &m.Servings.Min, &m.Servings.Max
	}
	var difficulty *string
	if m.Difficulty != nil {
		d := string(*m.Difficulty)
		difficulty = &d
	}
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}

	updates := make([]string, 0, len(columns))
	for _, c := range columns {
		switch c {
		case "id", "created_at":
		case "updated_at":
			updates = append(updates, "updated_at = now()")
		default:
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}

	return psql.Insert(table).
		Columns(columns...).
		Values(
			recipe.ID, recipe.Source, m.Title, m.Language,
			servingsMin, servingsMax, m.CaloriesPerServing,
			m.PrepTimeMinutes, m.CookTimeMinutes, m.TotalTimeMinutes,
			difficulty, tags, m.SourceURL, m.Made, m.Date, recipe.Partial,
			string(data), rawText, recipe.CreatedAt, sq.Expr("now()"),
		).
		Suffix("ON CONFLICT (id) DO UPDATE SET " + strings.Join(updates, ", ")).
		ToSql()
}

func selectQuery(id string) (string, []interface{}, error) {
	return psql.Select("recipe").From(table).Where(sq.Eq{"id": id}).ToSql()
}
