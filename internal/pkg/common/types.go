package common

import (
	"strings"
	"time"
)

// RawDocument 原始文件輸入，建立後不再修改
type RawDocument struct {
	Source     string    `json:"source"`             // 來源路徑或識別碼
	Text       string    `json:"text"`               // 完整文字
	Language   string    `json:"language,omitempty"` // 語言提示 (es / en)
	ReceivedAt time.Time `json:"received_at"`        // 收件時間，作為 Recipe.CreatedAt
}

// SectionKind 區段種類
type SectionKind string

const (
	SectionUnknown             SectionKind = "unknown"
	SectionIngredients         SectionKind = "ingredients"
	SectionOptionalIngredients SectionKind = "optional_ingredients"
	SectionInstructions        SectionKind = "instructions"
	SectionVariations          SectionKind = "variations"
	SectionTips                SectionKind = "tips"
	SectionNutrition           SectionKind = "nutrition"
	SectionStorage             SectionKind = "storage"
	SectionNotes               SectionKind = "notes"
)

// SectionLine 區段中的一行內容
type SectionLine struct {
	Number int    `json:"number"` // 1-based 行號
	Offset int    `json:"offset"` // 位元組位移
	Text   string `json:"text"`
}

// Section 文件中的一個具名區段
type Section struct {
	Kind          SectionKind   `json:"kind"`
	Heading       string        `json:"heading,omitempty"`
	HeadingNumber int           `json:"heading_number,omitempty"`
	Inline        string        `json:"inline,omitempty"` // 標題冒號後的文字
	Language      string        `json:"language,omitempty"`
	Lines         []SectionLine `json:"lines"`
	Start         int           `json:"start"`
	End           int           `json:"end"`
}

// LineCount 區段涵蓋的行數（標題行加內容行）
func (s Section) LineCount() int {
	n := len(s.Lines)
	if s.HeadingNumber > 0 {
		n++
	}
	return n
}

// Texts 區段內容文字
func (s Section) Texts() []string {
	out := make([]string, 0, len(s.Lines))
	for _, l := range s.Lines {
		out = append(out, l.Text)
	}
	return out
}

// UnitFamily 單位族群
type UnitFamily string

const (
	FamilyMass     UnitFamily = "mass"
	FamilyVolume   UnitFamily = "volume"
	FamilyCount    UnitFamily = "count"
	FamilyFreeform UnitFamily = "freeform"
)

// QuantityHint 括號中的替代份量
type QuantityHint struct {
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// Ingredient 食材
type Ingredient struct {
	Name         string        `json:"name"`
	Quantity     *float64      `json:"quantity"`
	Unit         *string       `json:"unit"`
	UnitFamily   UnitFamily    `json:"unit_family,omitempty"`
	Notes        string        `json:"notes,omitempty"`
	Alternatives []string      `json:"alternatives,omitempty"`
	QuantityHint *QuantityHint `json:"quantity_hint,omitempty"`
	Group        string        `json:"group,omitempty"`
	Optional     bool          `json:"optional,omitempty"`
	Raw          string        `json:"raw"`
}

// Key 比對與去重用的名稱
func (i Ingredient) Key() string {
	return strings.ToLower(strings.TrimSpace(i.Name))
}

// InstructionStep 製作步驟
type InstructionStep struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Difficulty 難度
type Difficulty string

const (
	DifficultyEasy       Difficulty = "easy"
	DifficultyEasyMedium Difficulty = "easy_medium"
	DifficultyMedium     Difficulty = "medium"
	DifficultyMediumHigh Difficulty = "medium_high"
	DifficultyHard       Difficulty = "hard"
)

// Nearest 對應到三級難度
func (d Difficulty) Nearest() Difficulty {
	switch d {
	case DifficultyMediumHigh:
		return DifficultyHard
	case DifficultyEasyMedium:
		return DifficultyMedium
	}
	return d
}

// Servings 份量，單一數值時 Min == Max
type Servings struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// IsRange 是否為範圍
func (s Servings) IsRange() bool { return s.Max > s.Min }

// Midpoint 需要單一數值時使用的中點
func (s Servings) Midpoint() float64 {
	return float64(s.Min+s.Max) / 2
}

// SourceURLUnknown 找不到來源網址時的標記
const SourceURLUnknown = "unknown"

// RecipeMetadata 食譜中繼資料
type RecipeMetadata struct {
	Title              string      `json:"title"`
	Servings           *Servings   `json:"servings"`
	CaloriesPerServing *int        `json:"calories_per_serving"`
	PrepTimeMinutes    *int        `json:"prep_time_minutes"`
	CookTimeMinutes    *int        `json:"cook_time_minutes"`
	TotalTimeMinutes   *int        `json:"total_time_minutes"`
	Difficulty         *Difficulty `json:"difficulty"`
	Tags               []string    `json:"tags"`
	SourceURL          string      `json:"source_url"`
	Made               bool        `json:"made"`
	Date               *time.Time  `json:"date"`
	Language           string      `json:"language,omitempty"`
}

// Recipe 組裝完成的食譜
type Recipe struct {
	ID                  string            `json:"id"`
	Source              string            `json:"source"`
	Metadata            RecipeMetadata    `json:"metadata"`
	Ingredients         []Ingredient      `json:"ingredients"`
	OptionalIngredients []Ingredient      `json:"optional_ingredients"`
	Instructions        []InstructionStep `json:"instructions"`
	Variations          []string          `json:"variations"`
	Tips                []string          `json:"tips"`
	Notes               []string          `json:"notes"`
	Nutrition           []string          `json:"nutrition"`
	Storage             []string          `json:"storage"`
	Partial             bool              `json:"partial,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
}

// OutcomeStatus 組裝結果狀態
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Outcome 組裝結果；成功時帶 Recipe，失敗時只有診斷
type Outcome struct {
	Status      OutcomeStatus   `json:"status"`
	Recipe      *Recipe         `json:"recipe,omitempty"`
	Diagnostics []AssemblyError `json:"diagnostics"`
}

// Succeeded 是否成功
func (o Outcome) Succeeded() bool {
	return o.Status == OutcomeSucceeded
}

// Fatal 回傳致命診斷
func (o Outcome) Fatal() []AssemblyError {
	var out []AssemblyError
	for _, d := range o.Diagnostics {
		if d.Fatal() {
			out = append(out, d)
		}
	}
	return out
}

// SyncReport 同步結果，每個欄位各自成功或失敗
type SyncReport struct {
	Target     string            `json:"target"`
	ExternalID string            `json:"external_id,omitempty"`
	Fields     map[string]bool   `json:"fields"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// NewSyncReport 建立同步結果
func NewSyncReport(target string) SyncReport {
	return SyncReport{
		Target: target,
		Fields: make(map[string]bool),
	}
}

// Mark 記錄欄位結果
func (r *SyncReport) Mark(field string, err error) {
	if r.Fields == nil {
		r.Fields = make(map[string]bool)
	}
	if err == nil {
		r.Fields[field] = true
		return
	}
	r.Fields[field] = false
	if r.Errors == nil {
		r.Errors = make(map[string]string)
	}
	r.Errors[field] = err.Error()
}

// Failed 失敗的欄位
func (r SyncReport) Failed() []string {
	var out []string
	for k, ok := range r.Fields {
		if !ok {
			out = append(out, k)
		}
	}
	return out
}
