package notion

import (
	"strings"
	"unicode/utf8"

	"recipe-normalizer/internal/core/ingredient"
	"recipe-normalizer/internal/core/vocab"
	"recipe-normalizer/internal/infrastructure/render"
	"recipe-normalizer/internal/pkg/common"
)

const (
	// maxTextRunes Notion 單一 rich text 的長度上限
	maxTextRunes = 2000
	// maxBlocks 建立頁面時一次能帶的區塊數上限
	maxBlocks = 100
)

// 資料庫欄位名稱
const (
	PropName        = "Name"
	PropServings    = "Servings"
	PropCalories    = "Calories"
	PropPrepTime    = "Prep Time"
	PropCookTime    = "Cook Time"
	PropTotalTime   = "Total Time"
	PropDifficulty  = "Difficulty"
	PropTags        = "Tags"
	PropSourceURL   = "Source URL"
	PropMade        = "Made"
	PropDate        = "Date"
	PropLanguage    = "Language"
	PropIngredients = "Ingredients"
	PropPartial     = "Partial"
)

type textContent struct {
	Content string `json:"content"`
}

// RichText Notion rich text 物件
type RichText struct {
	Type string      `json:"type"`
	Text textContent `json:"text"`
}

// Block Notion 區塊
type Block map[string]interface{}

// Properties 將食譜轉為頁面屬性，沒有值的欄位不送出
func Properties(r *common.Recipe) map[string]interface{} {
	m := r.Metadata
	props := map[string]interface{}{
		PropName:     map[string]interface{}{"title": richText(m.Title)},
		PropRecipeID: map[string]interface{}{"rich_text": richText(r.ID)},
		PropMade:     map[string]interface{}{"checkbox": m.Made},
		PropPartial:  map[string]interface{}{"checkbox": r.Partial},
	}

	if m.Servings != nil {
		props[PropServings] = number(m.Servings.Midpoint())
	}
	if m.CaloriesPerServing != nil {
		props[PropCalories] = number(float64(*m.CaloriesPerServing))
	}
	for name, v := range map[string]*int{
		PropPrepTime:  m.PrepTimeMinutes,
		PropCookTime:  m.CookTimeMinutes,
		PropTotalTime: m.TotalTimeMinutes,
	} {
		if v != nil {
			props[name] = number(float64(*v))
		}
	}
	if m.Difficulty != nil {
		props[PropDifficulty] = selectOption(string(m.Difficulty.Nearest()))
	}
	if len(m.Tags) > 0 {
		options := make([]map[string]string, 0, len(m.Tags))
		for _, t := range m.Tags {
			options = append(options, map[string]string{"name": strings.ReplaceAll(t, ",", " ")})
		}
		props[PropTags] = map[string]interface{}{"multi_select": options}
	}
	if m.SourceURL != "" && m.SourceURL != common.SourceURLUnknown {
		props[PropSourceURL] = map[string]interface{}{"url": m.SourceURL}
	}
	if m.Date != nil {
		props[PropDate] = map[string]interface{}{"date": map[string]string{"start": m.Date.Format("2006-01-02")}}
	}
	if m.Language != "" {
		props[PropLanguage] = selectOption(m.Language)
	}
	if len(r.Ingredients) > 0 {
		lines := make([]string, 0, len(r.Ingredients))
		for _, ing := range r.Ingredients {
			lines = append(lines, render.IngredientLine(ing))
		}
		props[PropIngredients] = map[string]interface{}{"rich_text": richText(strings.Join(lines, "\n"))}
	}
	return props
}

func number(v float64) map[string]interface{} {
	return map[string]interface{}{"number": v}
}

func selectOption(name string) map[string]interface{} {
	return map[string]interface{}{"select": map[string]string{"name": name}}
}

// Blocks 由原始文字建立頁面內容：標題轉 heading_3，清單轉 bulleted_list_item，其餘為段落
func Blocks(tables *vocab.Tables, raw string) []Block {
	var blocks []Block
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(blocks) == maxBlocks {
			break
		}

		kind := "paragraph"
		text := line
		if _, ok := tables.MatchHeading(line); ok {
			kind = "heading_3"
			text = strings.TrimSpace(strings.Trim(line, "#*_=: "))
		} else if stripped := ingredient.StripMarker(line); stripped != line && isBullet(line) {
			kind = "bulleted_list_item"
			text = stripped
		}
		blocks = append(blocks, Block{
			"object": "block",
			"type":   kind,
			kind:     map[string]interface{}{"rich_text": richText(text)},
		})
	}
	return blocks
}

func isBullet(line string) bool {
	r, _ := utf8.DecodeRuneInString(line)
	return strings.ContainsRune("-*•·+–—▪◦", r)
}

// richText 依長度上限切成多段
func richText(s string) []RichText {
	chunks := chunk(s, maxTextRunes)
	out := make([]RichText, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, RichText{Type: "text", Text: textContent{Content: c}})
	}
	return out
}

func chunk(s string, size int) []string {
	if s == "" {
		return []string{""}
	}
	var out []string
	runes := []rune(s)
	for len(runes) > size {
		out = append(out, string(runes[:size]))
		runes = runes[size:]
	}
	return append(out, string(runes))
}
