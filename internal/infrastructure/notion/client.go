// Package notion 將食譜同步到 Notion 資料庫
package notion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"recipe-normalizer/internal/core/vocab"
	"recipe-normalizer/internal/infrastructure/config"
	"recipe-normalizer/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// PropRecipeID 用來找回既有頁面的屬性
const PropRecipeID = "Recipe ID"

// ErrRetriesExhausted 被拒絕的屬性太多，超過重試次數
var ErrRetriesExhausted = errors.New("notion: property retries exhausted")

// APIError Notion 回傳的錯誤
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion %d %s: %s", e.Status, e.Code, e.Message)
}

// Permanent 4xx 錯誤重送同一份內容不會成功；408、409、429 除外
func (e *APIError) Permanent() bool {
	switch e.Status {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return false
	}
	return e.Status >= 400 && e.Status < 500
}

// Client Notion API 客戶端
type Client struct {
	client     *resty.Client
	databaseID string
	maxRetries int
	tables     *vocab.Tables
}

// NewClient 創建 Notion 客戶端
func NewClient(cfg *config.NotionConfig, tables *vocab.Tables) *Client {
	if tables == nil {
		tables = vocab.Default()
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.Token)).
		SetHeader("Notion-Version", cfg.Version).
		SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &Client{
		client:     client,
		databaseID: cfg.DatabaseID,
		maxRetries: cfg.MaxRetries,
		tables:     tables,
	}
}

func (c *Client) Name() string { return "notion" }

// Sync 建立或更新食譜頁面。被 Notion 拒絕的屬性會標記為失敗並在不帶它的情況下重試，
// 回傳的 error 只代表無法完成同步。
func (c *Client) Sync(ctx context.Context, recipe *common.Recipe, rawText string) (common.SyncReport, error) {
	report := common.NewSyncReport(c.Name())
	if recipe == nil {
		return report, errors.New("notion: nil recipe")
	}

	pageID, err := c.findPage(ctx, recipe.ID)
	if err != nil {
		return report, err
	}

	props := Properties(recipe)
	var children []Block
	if pageID == "" {
		children = Blocks(c.tables, rawText)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		id, err := c.save(ctx, pageID, props, children)
		if err == nil {
			report.ExternalID = id
			for name := range props {
				report.Mark(name, nil)
			}
			common.LogInfo("Notion page synced",
				zap.String("recipe_id", recipe.ID),
				zap.String("page_id", id),
				zap.Bool("created", pageID == ""),
				zap.Int("rejected_fields", len(report.Failed())),
			)
			return report, nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			return report, err
		}
		field := rejectedProperty(apiErr, props)
		if field == "" || field == PropRecipeID {
			return report, err
		}
		common.LogWarn("Notion rejected property",
			zap.String("recipe_id", recipe.ID),
			zap.String("property", field),
			zap.String("message", apiErr.Message),
		)
		report.Mark(field, apiErr)
		delete(props, field)
		lastErr = apiErr
	}

	return report, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, c.maxRetries+1, lastErr)
}

type queryResponse struct {
	Results []struct {
		ID string `json:"id"`
	} `json:"results"`
}

// findPage 以 Recipe ID 查詢既有頁面，沒有時回傳空字串
func (c *Client) findPage(ctx context.Context, recipeID string) (string, error) {
	body := map[string]interface{}{
		"page_size": 1,
		"filter": map[string]interface{}{
			"property":  PropRecipeID,
			"rich_text": map[string]string{"equals": recipeID},
		},
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(fmt.Sprintf("/databases/%s/query", c.databaseID))
	if err != nil {
		return "", fmt.Errorf("query notion database: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", decodeError(resp)
	}

	var result queryResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("decode query response: %w", err)
	}
	if len(result.Results) == 0 {
		return "", nil
	}
	return result.Results[0].ID, nil
}

type pageResponse struct {
	ID string `json:"id"`
}

// save 沒有 pageID 時建立頁面，否則只更新屬性
func (c *Client) save(ctx context.Context, pageID string, props map[string]interface{}, children []Block) (string, error) {
	req := c.client.R().SetContext(ctx)

	var resp *resty.Response
	var err error
	if pageID == "" {
		body := map[string]interface{}{
			"parent":     map[string]string{"database_id": c.databaseID},
			"properties": props,
		}
		if len(children) > 0 {
			body["children"] = children
		}
		resp, err = req.SetBody(body).Post("/pages")
	} else {
		resp, err = req.SetBody(map[string]interface{}{"properties": props}).Patch(fmt.Sprintf("/pages/%s", pageID))
	}
	if err != nil {
		return "", fmt.Errorf("save notion page: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", decodeError(resp)
	}

	var result pageResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("decode page response: %w", err)
	}
	return result.ID, nil
}

func decodeError(resp *resty.Response) error {
	apiErr := &APIError{Status: resp.StatusCode()}
	if err := json.Unmarshal(resp.Body(), apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(resp.Body()))
	}
	apiErr.Status = resp.StatusCode()
	return apiErr
}

// rejectedProperty 找出 validation_error 訊息中提到的屬性，名稱最長者優先
func rejectedProperty(apiErr *APIError, props map[string]interface{}) string {
	if apiErr.Status != http.StatusBadRequest || apiErr.Code != "validation_error" {
		return ""
	}
	best := ""
	for name := range props {
		if strings.Contains(apiErr.Message, name) && len(name) > len(best) {
			best = name
		}
	}
	return best
}
