package store

import (
	"strings"
	"testing"
	"time"

	"recipe-normalizer/internal/pkg/common"
)

func TestUpsertQuery(t *testing.T) {
	diff := common.DifficultyHard
	recipe := &common.Recipe{
		ID:     "0b6c1e9a-1111-5222-8333-444455556666",
		Source: "inbox/pisto.txt",
		Metadata: common.RecipeMetadata{
			Title:      "Pisto manchego",
			Servings:   &common.Servings{Min: 4, Max: 4},
			Difficulty: &diff,
			SourceURL:  common.SourceURLUnknown,
		},
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	query, args, err := upsertQuery(recipe, "Pisto manchego\n...")
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(query, "INSERT INTO recipes (id,source,title,language,") {
		t.Errorf("query = %s", query)
	}
	if !strings.Contains(query, "$19,now())") {
		t.Errorf("placeholders not dollar style: %s", query)
	}
	if !strings.Contains(query, "ON CONFLICT (id) DO UPDATE SET source = EXCLUDED.source, title = EXCLUDED.title") {
		t.Errorf("missing upsert clause: %s", query)
	}
	if strings.Contains(query, "id = EXCLUDED.id") || strings.Contains(query, "created_at = EXCLUDED") {
		t.Errorf("immutable column updated: %s", query)
	}
	if !strings.HasSuffix(query, "updated_at = now()") {
		t.Errorf("updated_at not refreshed: %s", query)
	}

	if len(args) != len(columns)-1 {
		t.Fatalf("args = %d, want %d", len(args), len(columns)-1)
	}
	if args[0] != recipe.ID || args[2] != "Pisto manchego" {
		t.Errorf("args = %v", args[:3])
	}
	if d, ok := args[10].(*string); !ok || *d != "hard" {
		t.Errorf("difficulty arg = %#v", args[10])
	}
	if tags, ok := args[11].([]string); !ok || tags == nil {
		t.Errorf("tags arg = %#v, want empty slice", args[11])
	}
	if !strings.Contains(args[16].(string), `"title":"Pisto manchego"`) {
		t.Errorf("recipe json = %v", args[16])
	}
}

func TestSelectQuery(t *testing.T) {
	query, args, err := selectQuery("abc")
	if err != nil {
		t.Fatal(err)
	}
	if query != "SELECT recipe FROM recipes WHERE id = $1" {
		t.Errorf("query = %s", query)
	}
	if len(args) != 1 || args[0] != "abc" {
		t.Errorf("args = %v", args)
	}
}
