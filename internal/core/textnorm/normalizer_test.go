package textnorm

import (
	"strings"
	"testing"
)

var testFillers = []string{
	"paso a paso",
	"receta fácil",
	"fácil y rápida",
	"step by step",
	"easy recipe",
	"how to make it at home",
}

func TestNormalize(t *testing.T) {
	n := New(testFillers)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"crlf", "Tortilla\r\nINGREDIENTES\r\n- 4 huevos", "Tortilla\nINGREDIENTES\n- 4 huevos"},
		{"lone cr", "a\rb", "a\nb"},
		{"collapse spaces", "2   tazas\tde  arroz", "2 tazas de arroz"},
		{"nbsp", "2 tazas", "2 tazas"},
		{"zero width", "ha​rina\uFEFF", "harina"},
		{"control", "sal\x07", "sal"},
		{"blank runs", "a\n\n\n\nb", "a\n\nb"},
		{"leading and trailing blanks", "\n\n a \n\n", "a"},
		{"fraction slash", "1⁄2 taza", "1/2 taza"},
		{"title filler", "Paella paso a paso\nINGREDIENTES", "Paella\nINGREDIENTES"},
		{"title filler english", "Easy Recipe: Banana Bread\nINGREDIENTS", "Banana Bread\nINGREDIENTS"},
		{"filler only on title", "Paella\nPREPARACIÓN\nRemover paso a paso", "Paella\nPREPARACIÓN\nRemover paso a paso"},
		{"filler-only title kept", "Paso a paso\nINGREDIENTES", "Paso a paso\nINGREDIENTES"},
		{"decomposed accents", "Preparación", "Preparación"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n := New(testFillers)
	inputs := []string{
		"Tarta de queso fácil y rápida  \r\n\r\n\r\nINGREDIENTES:\n-  200 g  queso\n\n\n",
		"# Pan casero paso a paso\n\nPREPARACIÓN\n1. Amasar",
		"   \n\t\n",
	}
	for _, in := range inputs {
		once := n.Normalize(in)
		if twice := n.Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent:\n once: %q\ntwice: %q", once, twice)
		}
	}
}

func TestNormalize_InvalidUTF8(t *testing.T) {
	n := New(nil)
	got := n.Normalize("sal\xff y pimienta")
	if got != "sal y pimienta" {
		t.Errorf("got %q", got)
	}
}

func TestCleanTitle(t *testing.T) {
	n := New(testFillers)

	tests := []struct {
		in   string
		want string
	}{
		{"# Tortilla de patatas", "Tortilla de patatas"},
		{"Título: Gazpacho andaluz", "Gazpacho andaluz"},
		{"Gazpacho (receta fácil)", "Gazpacho"},
		{"Banana bread - step by step!", "Banana bread"},
		{"RECETA FACIL | Flan de huevo", "Flan de huevo"},
		{"Paso a paso", ""},
		{"**Croquetas**", "Croquetas"},
		{"Pasta pasopaso", "Pasta pasopaso"},
	}
	for _, tt := range tests {
		if got := n.CleanTitle(tt.in); got != tt.want {
			t.Errorf("CleanTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFold(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Preparación", "preparacion"},
		{"INFORMACIÓN NUTRICIONAL", "informacion nutricional"},
		{"Puñado", "punado"},
		{"crème brûlée", "creme brulee"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := Fold(tt.in); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFoldRunes_OneToOne(t *testing.T) {
	for _, s := range []string{"Preparación", "Ñoquis al pesto", "crème brûlée", "abc"} {
		folded := FoldRunes(s)
		if len(folded) != len([]rune(s)) {
			t.Errorf("FoldRunes(%q) changed rune count", s)
		}
		if string(folded) != Fold(s) {
			t.Errorf("FoldRunes(%q) = %q, Fold = %q", s, string(folded), Fold(s))
		}
	}
}

func TestIsUpper(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"INGREDIENTES", true},
		{"PREPARACIÓN:", true},
		{"Ingredientes", false},
		{"A", false},
		{"123", false},
	}
	for _, tt := range tests {
		if got := IsUpper(tt.in); got != tt.want {
			t.Errorf("IsUpper(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWordPattern(t *testing.T) {
	p := WordPattern([]string{"al gusto"})
	if !strings.HasPrefix(p, "(?i)") {
		t.Fatalf("pattern %q is not case-insensitive", p)
	}
}
