package render

import (
	"strings"
	"testing"

	"recipe-normalizer/internal/pkg/common"
)

func ptr[T any](v T) *T { return &v }

func TestTable(t *testing.T) {
	got := Table([]string{"Campo", "Valor"}, [][]string{
		{"Porciones", "4"},
		{"Dificultad", "medium"},
	})
	want := []string{
		"| Campo      | Valor  |",
		"| ---------- | ------ |",
		"| Porciones  | 4      |",
		"| Dificultad | medium |",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("Table =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestTable_WideRunes(t *testing.T) {
	got := Table([]string{"a", "b"}, [][]string{{"抹茶", "x|y"}})
	want := []string{
		"| a    | b    |",
		"| ---- | ---- |",
		"| 抹茶 | x\\|y |",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("Table =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestIngredientLine(t *testing.T) {
	tests := []struct {
		name string
		ing  common.Ingredient
		want string
	}{
		{"full", common.Ingredient{Name: "arroz", Quantity: ptr(300.0), Unit: ptr("g"), Notes: "lavado"}, "300 g arroz (lavado)"},
		{"count", common.Ingredient{Name: "huevos", Quantity: ptr(2.0), Unit: ptr("unit")}, "2 huevos"},
		{"fraction", common.Ingredient{Name: "azúcar", Quantity: ptr(0.5), Unit: ptr("cup")}, "0.5 cup azúcar"},
		{"qualitative", common.Ingredient{Name: "sal", Notes: "al gusto"}, "sal (al gusto)"},
		{"alternatives", common.Ingredient{Name: "mantequilla", Alternatives: []string{"aceite"}}, "mantequilla / aceite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IngredientLine(tt.ing); got != tt.want {
				t.Errorf("IngredientLine = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMarkdown(t *testing.T) {
	diff := common.DifficultyMedium
	r := &common.Recipe{
		Metadata: common.RecipeMetadata{
			Title:      "Tortilla de patatas",
			Servings:   &common.Servings{Min: 4, Max: 6},
			Difficulty: &diff,
			Tags:       []string{"cena", "huevos"},
			SourceURL:  common.SourceURLUnknown,
			Language:   "es",
		},
		Ingredients: []common.Ingredient{
			{Name: "patatas", Quantity: ptr(500.0), Unit: ptr("g")},
			{Name: "huevos", Quantity: ptr(6.0), Unit: ptr("unit"), Group: "Para la mezcla"},
		},
		OptionalIngredients: []common.Ingredient{{Name: "cebolla", Quantity: ptr(1.0), Unit: ptr("unit")}},
		Instructions: []common.InstructionStep{
			{Number: 1, Text: "Freír las patatas."},
			{Number: 2, Text: "Cuajar con el huevo."},
		},
		Tips: []string{"Usar sartén antiadherente."},
	}

	got := Markdown(r)
	for _, want := range []string{
		"# Tortilla de patatas\n",
		"| Porciones  | 4-6          |",
		"| Etiquetas  | cena, huevos |",
		"## Ingredientes\n",
		"| 500      | g      | patatas     |       |",
		"### Para la mezcla\n",
		"## Ingredientes opcionales\n",
		"## Preparación\n\n1. Freír las patatas.\n2. Cuajar con el huevo.\n",
		"## Consejos\n\n- Usar sartén antiadherente.\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("markdown missing %q\n%s", want, got)
		}
	}
	if strings.Contains(got, "Fuente") {
		t.Error("unknown source rendered")
	}
}

func TestMarkdown_English(t *testing.T) {
	r := &common.Recipe{
		Metadata:    common.RecipeMetadata{Title: "Pancakes", Language: "en"},
		Ingredients: []common.Ingredient{{Name: "flour"}},
		Partial:     true,
	}
	got := Markdown(r)
	for _, want := range []string{"## Ingredients\n", "> Incomplete recipe"} {
		if !strings.Contains(got, want) {
			t.Errorf("markdown missing %q\n%s", want, got)
		}
	}
	if Markdown(nil) != "" {
		t.Error("nil recipe rendered")
	}
}
