package metadata

import (
	"testing"
	"time"

	"recipe-normalizer/internal/core/vocab"
	"recipe-normalizer/internal/pkg/common"
)

const tortilla = `Tortilla de patatas paso a paso
Porciones: 4-6
Calorías: 320 kcal por porción
Tiempo de preparación: 15 minutos
Cocción: 1 hora 10 minutos
Tiempo total: 1h25
Dificultad: Media-Alta
Etiquetas: Española, huevo; Cena | española
Fecha: 3 de mayo de 2024
Hecho: sí
Fuente: https://example.com/tortilla.

INGREDIENTES
- 4 huevos
- 500 g de patatas

PREPARACIÓN
1. Pelar y cortar las patatas.`

func TestExtract(t *testing.T) {
	meta, diags := New(vocab.Default()).Extract(tortilla, "tortilla.txt")
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %+v", diags)
	}

	if meta.Title != "Tortilla de patatas" {
		t.Errorf("title = %q", meta.Title)
	}
	if meta.Servings == nil || *meta.Servings != (common.Servings{Min: 4, Max: 6}) {
		t.Errorf("servings = %+v", meta.Servings)
	}
	if meta.Servings.Midpoint() != 5 {
		t.Errorf("midpoint = %v", meta.Servings.Midpoint())
	}
	assertInt(t, "calories", meta.CaloriesPerServing, 320)
	assertInt(t, "prep", meta.PrepTimeMinutes, 15)
	assertInt(t, "cook", meta.CookTimeMinutes, 70)
	assertInt(t, "total", meta.TotalTimeMinutes, 85)
	if meta.Difficulty == nil || *meta.Difficulty != common.DifficultyMediumHigh {
		t.Errorf("difficulty = %v", meta.Difficulty)
	}
	if meta.Difficulty.Nearest() != common.DifficultyHard {
		t.Errorf("nearest = %s", meta.Difficulty.Nearest())
	}
	wantTags := []string{"española", "huevo", "cena"}
	if len(meta.Tags) != len(wantTags) {
		t.Fatalf("tags = %v", meta.Tags)
	}
	for i, tag := range wantTags {
		if meta.Tags[i] != tag {
			t.Errorf("tag %d = %q, want %q", i, meta.Tags[i], tag)
		}
	}
	if meta.Date == nil || !meta.Date.Equal(time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v", meta.Date)
	}
	if !meta.Made {
		t.Error("made = false")
	}
	if meta.SourceURL != "https://example.com/tortilla" {
		t.Errorf("source url = %q", meta.SourceURL)
	}
	if meta.Language != "es" {
		t.Errorf("language = %q", meta.Language)
	}
}

func TestExtract_ServingsRange(t *testing.T) {
	meta, _ := New(vocab.Default()).Extract("Sopa\nPorciones: 4-6\nINGREDIENTES\n- agua", "")
	if meta.Servings == nil || meta.Servings.Min != 4 || meta.Servings.Max != 6 || !meta.Servings.IsRange() {
		t.Fatalf("servings = %+v", meta.Servings)
	}
	if meta.Servings.Midpoint() != 5.0 {
		t.Errorf("midpoint = %v, want 5", meta.Servings.Midpoint())
	}
}

func TestExtract_Absent(t *testing.T) {
	meta, _ := New(vocab.Default()).Extract("Pan\nINGREDIENTS\n- flour\nMETHOD\nBake.", "")
	if meta.Servings != nil || meta.CaloriesPerServing != nil || meta.PrepTimeMinutes != nil ||
		meta.CookTimeMinutes != nil || meta.TotalTimeMinutes != nil || meta.Difficulty != nil || meta.Date != nil {
		t.Errorf("expected absent fields, got %+v", meta)
	}
	if meta.Tags != nil {
		t.Errorf("tags must never be inferred, got %v", meta.Tags)
	}
	if meta.SourceURL != common.SourceURLUnknown {
		t.Errorf("source url = %q, want %q", meta.SourceURL, common.SourceURLUnknown)
	}
	if meta.Language != "en" {
		t.Errorf("language = %q", meta.Language)
	}
}

func TestExtract_TitleFallback(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"heading first", "INGREDIENTES\n- 2 huevos"},
		{"filler only", "Paso a paso\nINGREDIENTES\n- 2 huevos"},
		{"metadata only", "Porciones: 2\nhttps://example.com\nINGREDIENTES\n- 2 huevos"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, diags := New(vocab.Default()).Extract(tt.text, "huevos revueltos")
			if meta.Title != "huevos revueltos" {
				t.Errorf("title = %q", meta.Title)
			}
			if len(diags) != 1 || diags[0].Code != common.CodeTitleFallback || diags[0].Fatal() {
				t.Errorf("diagnostics = %+v", diags)
			}
		})
	}
}

func TestExtract_Servings(t *testing.T) {
	e := New(vocab.Default())
	tests := []struct {
		line     string
		min, max int
	}{
		{"Porciones: 4", 4, 4},
		{"Raciones: 2 a 3", 2, 3},
		{"Servings: 6", 6, 6},
		{"**Serves:** 8", 8, 8},
		{"Para 4 personas", 4, 4},
		{"Serves 2-4", 2, 4},
	}
	for _, tt := range tests {
		meta, _ := e.Extract("Receta\n"+tt.line, "")
		if meta.Servings == nil || meta.Servings.Min != tt.min || meta.Servings.Max != tt.max {
			t.Errorf("%q servings = %+v, want %d-%d", tt.line, meta.Servings, tt.min, tt.max)
		}
	}
}

func TestExtract_CaloriesInline(t *testing.T) {
	meta, _ := New(vocab.Default()).Extract("Ensalada\nINFORMACIÓN NUTRICIONAL\nAprox. 250,6 kcal", "")
	assertInt(t, "calories", meta.CaloriesPerServing, 251)
}

func TestParseMinutes(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"45 minutos", 45, true},
		{"45 min", 45, true},
		{"1 hora", 60, true},
		{"2 horas 15 minutos", 135, true},
		{"1h30", 90, true},
		{"1 h 30 min", 90, true},
		{"1.5 hours", 90, true},
		{"20-25 minutes", 25, true},
		{"30", 30, true},
		{"un rato", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseMinutes(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseMinutes(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-03-07", "07/03/2024", "7/3/2024", "7 de marzo de 2024", "March 7, 2024", "7 March 2024"} {
		got, ok := ParseDate(in)
		if !ok || !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := ParseDate("ayer"); ok {
		t.Error("ParseDate(ayer) should fail")
	}
}

func TestParseTags(t *testing.T) {
	got := ParseTags("#Vegano, rápido; Vegano | cena  ")
	want := []string{"vegano", "rápido", "cena"}
	if len(got) != len(want) {
		t.Fatalf("tags = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tag %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFindURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Ver https://cocina.example.es/receta?id=3.", "https://cocina.example.es/receta?id=3"},
		{"(www.example.com/pan)", "www.example.com/pan"},
		{"sin enlace", ""},
	}
	for _, tt := range tests {
		if got := FindURL(tt.in); got != tt.want {
			t.Errorf("FindURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsMetadataLine(t *testing.T) {
	e := New(vocab.Default())
	tests := []struct {
		line string
		want bool
	}{
		{"Porciones: 4", true},
		{"- Tiempo de preparación: 20 min", true},
		{"Para 6 personas", true},
		{"Dificultad: Fácil", true},
		{"Preparación: mezclar todo", false},
		{"Dificultad: ninguna pista", false},
		{"2 huevos", false},
		{"PREPARACIÓN", false},
	}
	for _, tt := range tests {
		if got := e.IsMetadataLine(tt.line); got != tt.want {
			t.Errorf("IsMetadataLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func assertInt(t *testing.T, field string, got *int, want int) {
	t.Helper()
	if got == nil {
		t.Errorf("%s = nil, want %d", field, want)
		return
	}
	if *got != want {
		t.Errorf("%s = %d, want %d", field, *got, want)
	}
}
