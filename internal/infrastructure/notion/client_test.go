package notion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"recipe-normalizer/internal/core/batch"
	"recipe-normalizer/internal/core/vocab"
	"recipe-normalizer/internal/infrastructure/config"
	"recipe-normalizer/internal/pkg/common"
)

type captured struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

type fakeNotion struct {
	mu       sync.Mutex
	requests []captured
	pageID   string   // 既有頁面
	reject   []string // 依序拒絕的屬性
	status   int
}

func (f *fakeNotion) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, _ := io.ReadAll(r.Body)
	var body map[string]interface{}
	_ = json.Unmarshal(data, &body)
	f.requests = append(f.requests, captured{Method: r.Method, Path: r.URL.Path, Body: body})

	if r.Header.Get("Authorization") != "Bearer secret_token" || r.Header.Get("Notion-Version") != "2022-06-28" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"object":"error","status":401,"code":"unauthorized","message":"bad token"}`))
		return
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"object":"error","status":502,"code":"service_unavailable","message":"try later"}`))
		return
	}

	switch {
	case r.URL.Path == "/databases/db-1/query":
		if f.pageID == "" {
			_, _ = w.Write([]byte(`{"results":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"id":"` + f.pageID + `"}]}`))
	case strings.HasPrefix(r.URL.Path, "/pages"):
		if len(f.reject) > 0 {
			name := f.reject[0]
			f.reject = f.reject[1:]
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"object":"error","status":400,"code":"validation_error","message":"` + name + ` is not a property that exists."}`))
			return
		}
		id := f.pageID
		if id == "" {
			id = "page-new"
		}
		_, _ = w.Write([]byte(`{"object":"page","id":"` + id + `"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, f *fakeNotion, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewClient(&config.NotionConfig{
		Token:      "secret_token",
		DatabaseID: "db-1",
		Version:    "2022-06-28",
		BaseURL:    srv.URL,
		Timeout:    5 * time.Second,
		MaxRetries: retries,
	}, vocab.Default())
}

func testRecipe() *common.Recipe {
	cal := 450
	q := 200.0
	unit := "g"
	return &common.Recipe{
		ID: "7d1c3f0e-0000-5000-8000-000000000001",
		Metadata: common.RecipeMetadata{
			Title:              "Crema de calabaza",
			Servings:           &common.Servings{Min: 2, Max: 4},
			CaloriesPerServing: &cal,
			Tags:               []string{"otoño", "vegano"},
			SourceURL:          common.SourceURLUnknown,
			Language:           "es",
		},
		Ingredients: []common.Ingredient{{Name: "calabaza", Quantity: &q, Unit: &unit}},
	}
}

const rawCrema = `Crema de calabaza
INGREDIENTES
- 200 g de calabaza
PREPARACIÓN
1. Hervir y triturar.`

func TestSync_CreateRetriesWithoutRejectedProperty(t *testing.T) {
	f := &fakeNotion{reject: []string{PropCalories}}
	c := newTestClient(t, f, 3)

	report, err := c.Sync(context.Background(), testRecipe(), rawCrema)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if report.ExternalID != "page-new" {
		t.Errorf("ExternalID = %q", report.ExternalID)
	}
	if ok, seen := report.Fields[PropCalories]; !seen || ok {
		t.Errorf("Calories field = %v (seen %v), want failed", ok, seen)
	}
	for _, name := range []string{PropName, PropServings, PropTags, PropIngredients, PropRecipeID} {
		if !report.Fields[name] {
			t.Errorf("field %s not marked synced", name)
		}
	}
	if _, ok := report.Fields[PropSourceURL]; ok {
		t.Error("unknown source URL sent")
	}

	if len(f.requests) != 3 {
		t.Fatalf("requests = %d, want query + 2 creates", len(f.requests))
	}
	retry := f.requests[2]
	if retry.Method != http.MethodPost || retry.Path != "/pages" {
		t.Errorf("retry = %s %s", retry.Method, retry.Path)
	}
	props := retry.Body["properties"].(map[string]interface{})
	if _, ok := props[PropCalories]; ok {
		t.Error("rejected property resent")
	}
	if children, _ := retry.Body["children"].([]interface{}); len(children) != 5 {
		t.Errorf("children = %d, want 5", len(children))
	}
}

func TestSync_UpdatesExistingPage(t *testing.T) {
	f := &fakeNotion{pageID: "page-9"}
	c := newTestClient(t, f, 3)

	report, err := c.Sync(context.Background(), testRecipe(), rawCrema)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if report.ExternalID != "page-9" || len(report.Failed()) != 0 {
		t.Errorf("report = %+v", report)
	}
	last := f.requests[len(f.requests)-1]
	if last.Method != http.MethodPatch || last.Path != "/pages/page-9" {
		t.Errorf("update = %s %s", last.Method, last.Path)
	}
	if _, ok := last.Body["children"]; ok {
		t.Error("children sent on update")
	}
}

func TestSync_ServerError(t *testing.T) {
	f := &fakeNotion{status: http.StatusBadGateway}
	c := newTestClient(t, f, 3)

	_, err := c.Sync(context.Background(), testRecipe(), rawCrema)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("err = %v, want APIError 502", err)
	}
	if batch.IsPermanent(err) {
		t.Error("502 must stay retryable")
	}
	if len(f.requests) != 1 {
		t.Errorf("requests = %d, want 1", len(f.requests))
	}
}

func TestSync_RetriesExhausted(t *testing.T) {
	f := &fakeNotion{reject: []string{PropTags, PropCalories}}
	c := newTestClient(t, f, 1)

	report, err := c.Sync(context.Background(), testRecipe(), rawCrema)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}
	if !batch.IsPermanent(err) {
		t.Error("exhausted property retries should not be retried on the next pass")
	}
	if len(report.Failed()) != 2 {
		t.Errorf("failed = %v", report.Failed())
	}
}

func TestAPIError_Permanent(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusUnauthorized, true},
		{http.StatusNotFound, true},
		{http.StatusRequestTimeout, false},
		{http.StatusConflict, false},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
		{http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		err := &APIError{Status: tt.status}
		if got := err.Permanent(); got != tt.want {
			t.Errorf("Permanent(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestBlocks(t *testing.T) {
	blocks := Blocks(vocab.Default(), rawCrema)
	want := []string{"paragraph", "heading_3", "bulleted_list_item", "heading_3", "paragraph"}
	if len(blocks) != len(want) {
		t.Fatalf("blocks = %d, want %d", len(blocks), len(want))
	}
	for i, kind := range want {
		if blocks[i]["type"] != kind {
			t.Errorf("block %d type = %v, want %s", i, blocks[i]["type"], kind)
		}
	}
	item := blocks[2]["bulleted_list_item"].(map[string]interface{})["rich_text"].([]RichText)
	if item[0].Text.Content != "200 g de calabaza" {
		t.Errorf("bullet text = %q", item[0].Text.Content)
	}

	long := strings.Repeat("línea\n", maxBlocks+20)
	if got := len(Blocks(vocab.Default(), long)); got != maxBlocks {
		t.Errorf("blocks = %d, want %d", got, maxBlocks)
	}
}

func TestRichTextChunks(t *testing.T) {
	s := strings.Repeat("ñ", maxTextRunes*2+1)
	parts := richText(s)
	if len(parts) != 3 || len([]rune(parts[2].Text.Content)) != 1 {
		t.Errorf("chunks = %d", len(parts))
	}
}

func TestProperties(t *testing.T) {
	props := Properties(testRecipe())
	servings := props[PropServings].(map[string]interface{})["number"].(float64)
	if servings != 3 {
		t.Errorf("servings = %v, want midpoint 3", servings)
	}
	if _, ok := props[PropDifficulty]; ok {
		t.Error("nil difficulty sent")
	}
	ing := props[PropIngredients].(map[string]interface{})["rich_text"].([]RichText)
	if ing[0].Text.Content != "200 g calabaza" {
		t.Errorf("ingredients = %q", ing[0].Text.Content)
	}
}
