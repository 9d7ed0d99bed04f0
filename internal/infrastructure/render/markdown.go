// Package render 將食譜轉為 Markdown 顯示格式
package render

import (
	"fmt"
	"strconv"
	"strings"

	"recipe-normalizer/internal/pkg/common"

	"github.com/mattn/go-runewidth"
)

// labels 各語言的標籤
type labels struct {
	field, value                                 string
	servings, calories, prep, cook, total, level string
	tags, source, made, date                     string
	quantity, unit, ingredient, notes            string
	ingredients, optional, instructions          string
	variations, tips, notesSection               string
	nutrition, storage, yes, no, partial         string
}

var spanish = labels{
	field: "Campo", value: "Valor",
	servings: "Porciones", calories: "Calorías", prep: "Preparación", cook: "Cocción", total: "Tiempo total",
	level: "Dificultad", tags: "Etiquetas", source: "Fuente", made: "Hecha", date: "Fecha",
	quantity: "Cantidad", unit: "Unidad", ingredient: "Ingrediente", notes: "Notas",
	ingredients: "Ingredientes", optional: "Ingredientes opcionales", instructions: "Preparación",
	variations: "Variaciones", tips: "Consejos", notesSection: "Notas",
	nutrition: "Información nutricional", storage: "Conservación",
	yes: "sí", no: "no", partial: "Receta incompleta: faltan los pasos de preparación.",
}

var english = labels{
	field: "Field", value: "Value",
	servings: "Servings", calories: "Calories", prep: "Prep time", cook: "Cook time", total: "Total time",
	level: "Difficulty", tags: "Tags", source: "Source", made: "Made", date: "Date",
	quantity: "Quantity", unit: "Unit", ingredient: "Ingredient", notes: "Notes",
	ingredients: "Ingredients", optional: "Optional ingredients", instructions: "Instructions",
	variations: "Variations", tips: "Tips", notesSection: "Notes",
	nutrition: "Nutrition", storage: "Storage",
	yes: "yes", no: "no", partial: "Incomplete recipe: instructions are missing.",
}

// Markdown 將食譜轉為 Markdown，標籤語言跟隨食譜語言
func Markdown(r *common.Recipe) string {
	if r == nil {
		return ""
	}
	l := spanish
	if r.Metadata.Language == "en" {
		l = english
	}

	var b strings.Builder
	b.WriteString("# " + r.Metadata.Title + "\n")
	if r.Partial {
		b.WriteString("\n> " + l.partial + "\n")
	}

	if rows := metadataRows(r.Metadata, l); len(rows) > 0 {
		b.WriteString("\n")
		writeLines(&b, Table([]string{l.field, l.value}, rows))
	}

	writeIngredients(&b, l.ingredients, r.Ingredients, l)
	writeIngredients(&b, l.optional, r.OptionalIngredients, l)

	if len(r.Instructions) > 0 {
		b.WriteString("\n## " + l.instructions + "\n\n")
		for _, s := range r.Instructions {
			fmt.Fprintf(&b, "%d. %s\n", s.Number, s.Text)
		}
	}

	writeList(&b, l.variations, r.Variations)
	writeList(&b, l.tips, r.Tips)
	writeList(&b, l.nutrition, r.Nutrition)
	writeList(&b, l.storage, r.Storage)
	writeList(&b, l.notesSection, r.Notes)
	return b.String()
}

func metadataRows(m common.RecipeMetadata, l labels) [][]string {
	var rows [][]string
	if m.Servings != nil {
		v := strconv.Itoa(m.Servings.Min)
		if m.Servings.IsRange() {
			v += "-" + strconv.Itoa(m.Servings.Max)
		}
		rows = append(rows, []string{l.servings, v})
	}
	if m.CaloriesPerServing != nil {
		rows = append(rows, []string{l.calories, strconv.Itoa(*m.CaloriesPerServing) + " kcal"})
	}
	for _, t := range []struct {
		label string
		value *int
	}{
		{l.prep, m.PrepTimeMinutes},
		{l.cook, m.CookTimeMinutes},
		{l.total, m.TotalTimeMinutes},
	} {
		if t.value != nil {
			rows = append(rows, []string{t.label, strconv.Itoa(*t.value) + " min"})
		}
	}
	if m.Difficulty != nil {
		rows = append(rows, []string{l.level, string(*m.Difficulty)})
	}
	if len(m.Tags) > 0 {
		rows = append(rows, []string{l.tags, strings.Join(m.Tags, ", ")})
	}
	if m.SourceURL != "" && m.SourceURL != common.SourceURLUnknown {
		rows = append(rows, []string{l.source, m.SourceURL})
	}
	if m.Made {
		rows = append(rows, []string{l.made, l.yes})
	}
	if m.Date != nil {
		rows = append(rows, []string{l.date, m.Date.Format("2006-01-02")})
	}
	return rows
}

func writeIngredients(b *strings.Builder, heading string, items []common.Ingredient, l labels) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n## " + heading + "\n")

	group := ""
	var rows [][]string
	flush := func() {
		if len(rows) == 0 {
			return
		}
		b.WriteString("\n")
		writeLines(b, Table([]string{l.quantity, l.unit, l.ingredient, l.notes}, rows))
		rows = nil
	}
	for _, ing := range items {
		if ing.Group != group {
			flush()
			group = ing.Group
			if group != "" {
				b.WriteString("\n### " + group + "\n")
			}
		}
		rows = append(rows, []string{FormatQuantity(ing.Quantity), unitText(ing.Unit), ingredientName(ing), ing.Notes})
	}
	flush()
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n## " + heading + "\n\n")
	for _, item := range items {
		b.WriteString("- " + item + "\n")
	}
}

func writeLines(b *strings.Builder, lines []string) {
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func ingredientName(ing common.Ingredient) string {
	if len(ing.Alternatives) == 0 {
		return ing.Name
	}
	return ing.Name + " / " + strings.Join(ing.Alternatives, " / ")
}

func unitText(u *string) string {
	if u == nil || *u == "unit" {
		return ""
	}
	return *u
}

// FormatQuantity 數量的顯示文字，沒有數量時為空字串
func FormatQuantity(q *float64) string {
	if q == nil {
		return ""
	}
	return strconv.FormatFloat(*q, 'f', -1, 64)
}

// IngredientLine 單行食材文字，例如 "300 g arroz (lavado)"
func IngredientLine(ing common.Ingredient) string {
	parts := make([]string, 0, 3)
	if q := FormatQuantity(ing.Quantity); q != "" {
		parts = append(parts, q)
	}
	if u := unitText(ing.Unit); u != "" {
		parts = append(parts, u)
	}
	parts = append(parts, ingredientName(ing))
	line := strings.Join(parts, " ")
	if ing.Notes != "" {
		line += " (" + ing.Notes + ")"
	}
	return line
}

// Table 以顯示寬度對齊的 Markdown 表格
func Table(header []string, rows [][]string) []string {
	cols := len(header)
	widths := make([]int, cols)
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < cols; i++ {
			if w := runewidth.StringWidth(escapeCell(row[i])); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		if widths[i] < 3 {
			widths[i] = 3
		}
	}

	out := make([]string, 0, len(rows)+2)
	out = append(out, tableRow(header, widths))
	sep := make([]string, cols)
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	out = append(out, tableRow(sep, widths))
	for _, row := range rows {
		out = append(out, tableRow(row, widths))
	}
	return out
}

func tableRow(cells []string, widths []int) string {
	var sb strings.Builder
	sb.WriteString("|")
	for j, w := range widths {
		content := ""
		if j < len(cells) {
			content = escapeCell(cells[j])
		}
		sb.WriteString(" ")
		sb.WriteString(content)
		if pad := w - runewidth.StringWidth(content); pad > 0 {
			sb.WriteString(strings.Repeat(" ", pad))
		}
		sb.WriteString(" |")
	}
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
