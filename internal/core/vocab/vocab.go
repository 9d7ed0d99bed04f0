// Package vocab holds the bilingual vocabulary tables shared by every stage
// of the recipe pipeline. Tables are built once and never mutated, so a
// single *Tables can be read from any number of goroutines.
package vocab

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"recipe-normalizer/internal/core/textnorm"
	"recipe-normalizer/internal/pkg/common"
)

//go:embed vocab.yaml
var embedded []byte

var (
	defaultOnce   sync.Once
	defaultTables *Tables
)

// LabelKind 中繼資料標籤種類
type LabelKind string

const (
	LabelServings   LabelKind = "servings"
	LabelCalories   LabelKind = "calories"
	LabelPrepTime   LabelKind = "prep_time"
	LabelCookTime   LabelKind = "cook_time"
	LabelTotalTime  LabelKind = "total_time"
	LabelDifficulty LabelKind = "difficulty"
	LabelTags       LabelKind = "tags"
	LabelDate       LabelKind = "date"
	LabelMade       LabelKind = "made"
	LabelTitle      LabelKind = "title"
	LabelSource     LabelKind = "source"
)

// Unit 標準單位
type Unit struct {
	Code   string
	Family common.UnitFamily
}

type file struct {
	Headings []struct {
		Kind     string     `yaml:"kind"`
		ES       []string   `yaml:"es"`
		EN       []string   `yaml:"en"`
		Requires [][]string `yaml:"requires"`
	} `yaml:"headings"`
	Units []struct {
		Code     string   `yaml:"code"`
		Family   string   `yaml:"family"`
		Synonyms []string `yaml:"synonyms"`
	} `yaml:"units"`
	Qualitative struct {
		Leading  []string `yaml:"leading"`
		Anywhere []string `yaml:"anywhere"`
	} `yaml:"qualitative"`
	Fillers     []string               `yaml:"fillers"`
	Difficulty  map[string][]string    `yaml:"difficulty"`
	Labels      map[LabelKind][]string `yaml:"labels"`
	NumberWords map[string]string      `yaml:"number_words"`
	Connectors  struct {
		Conjunction []string `yaml:"conjunction"`
		Alternative []string `yaml:"alternative"`
		Of          []string `yaml:"of"`
	} `yaml:"connectors"`
}

type headingPrefix struct {
	text string
	lang string
}

type headingRule struct {
	kind     common.SectionKind
	prefixes []headingPrefix
	requires [][]string
}

// Tables 不可變的詞彙表
type Tables struct {
	headings    []headingRule
	units       map[string]Unit
	unitTokens  []string
	leading     []string
	anywhere    []string
	fillers     []string
	difficulty  map[string]common.Difficulty
	labels      map[LabelKind][]string
	numberWords map[string]string
	conjunction []string
	alternative []string
	of          []string
}

// Default returns the embedded tables, parsed on first use.
func Default() *Tables {
	defaultOnce.Do(func() {
		t, err := Parse(embedded)
		if err != nil {
			panic(fmt.Sprintf("vocab: embedded tables: %v", err))
		}
		defaultTables = t
	})
	return defaultTables
}

// Load reads tables from a YAML file. An empty path returns Default().
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds tables from YAML. Every entry is folded (lower-case, no accents).
func Parse(data []byte) (*Tables, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}

	t := &Tables{
		units:       make(map[string]Unit),
		difficulty:  make(map[string]common.Difficulty),
		labels:      make(map[LabelKind][]string),
		numberWords: make(map[string]string),
	}

	for _, h := range f.Headings {
		kind := common.SectionKind(h.Kind)
		if !validKind(kind) {
			return nil, fmt.Errorf("unknown section kind %q", h.Kind)
		}
		rule := headingRule{kind: kind}
		for _, p := range h.ES {
			rule.prefixes = append(rule.prefixes, headingPrefix{text: textnorm.Fold(p), lang: "es"})
		}
		for _, p := range h.EN {
			rule.prefixes = append(rule.prefixes, headingPrefix{text: textnorm.Fold(p), lang: "en"})
		}
		sort.SliceStable(rule.prefixes, func(i, j int) bool {
			return len(rule.prefixes[i].text) > len(rule.prefixes[j].text)
		})
		for _, group := range h.Requires {
			rule.requires = append(rule.requires, foldAll(group))
		}
		t.headings = append(t.headings, rule)
	}
	if len(t.headings) == 0 {
		return nil, fmt.Errorf("vocabulary has no headings")
	}

	for _, u := range f.Units {
		unit := Unit{Code: u.Code, Family: common.UnitFamily(u.Family)}
		for _, syn := range u.Synonyms {
			key := textnorm.Fold(syn)
			if prev, ok := t.units[key]; ok && prev.Code != u.Code {
				return nil, fmt.Errorf("unit synonym %q maps to both %s and %s", syn, prev.Code, u.Code)
			}
			t.units[key] = unit
			t.unitTokens = append(t.unitTokens, key)
		}
	}
	t.unitTokens = longestFirst(t.unitTokens)

	t.leading = longestFirst(foldAll(f.Qualitative.Leading))
	t.anywhere = longestFirst(foldAll(f.Qualitative.Anywhere))
	t.fillers = append([]string(nil), f.Fillers...)

	for level, words := range f.Difficulty {
		d := common.Difficulty(level)
		switch d {
		case common.DifficultyEasy, common.DifficultyEasyMedium, common.DifficultyMedium,
			common.DifficultyMediumHigh, common.DifficultyHard:
		default:
			return nil, fmt.Errorf("unknown difficulty level %q", level)
		}
		for _, w := range words {
			t.difficulty[DifficultyKey(w)] = d
		}
	}

	for kind, words := range f.Labels {
		t.labels[kind] = longestFirst(foldAll(words))
	}
	for word, value := range f.NumberWords {
		t.numberWords[textnorm.Fold(word)] = value
	}
	t.conjunction = foldAll(f.Connectors.Conjunction)
	t.alternative = foldAll(f.Connectors.Alternative)
	t.of = longestFirst(foldAll(f.Connectors.Of))
	return t, nil
}

func validKind(k common.SectionKind) bool {
	switch k {
	case common.SectionIngredients, common.SectionOptionalIngredients, common.SectionInstructions,
		common.SectionVariations, common.SectionTips, common.SectionNutrition,
		common.SectionStorage, common.SectionNotes:
		return true
	}
	return false
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if f := strings.TrimSpace(textnorm.Fold(s)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func longestFirst(in []string) []string {
	out := append([]string(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		return utf8.RuneCountInString(out[i]) > utf8.RuneCountInString(out[j])
	})
	return out
}

var difficultySeparators = regexp.MustCompile(`[\s\-–—/]+`)

// DifficultyKey normalizes a difficulty label for lookup ("Media - Alta" -> "media-alta").
func DifficultyKey(s string) string {
	return strings.Trim(difficultySeparators.ReplaceAllString(textnorm.Fold(strings.TrimSpace(s)), "-"), "-.")
}

// LookupUnit maps a unit token to its canonical unit.
func (t *Tables) LookupUnit(token string) (Unit, bool) {
	key := textnorm.Fold(strings.TrimSuffix(strings.TrimSpace(token), "."))
	u, ok := t.units[key]
	return u, ok
}

// UnitTokens returns folded unit synonyms, longest first.
func (t *Tables) UnitTokens() []string { return t.unitTokens }

// LeadingQualitative returns folded markers recognised at the start of a line.
func (t *Tables) LeadingQualitative() []string { return t.leading }

// AnywhereQualitative returns folded markers recognised anywhere in a line.
func (t *Tables) AnywhereQualitative() []string { return t.anywhere }

// Fillers returns the title filler phrases as written.
func (t *Tables) Fillers() []string { return t.fillers }

// Labels returns folded labels of one kind, longest first.
func (t *Tables) Labels(kind LabelKind) []string { return t.labels[kind] }

// AllLabels returns every metadata label except title labels.
func (t *Tables) AllLabels() []string {
	var out []string
	for kind, words := range t.labels {
		if kind == LabelTitle {
			continue
		}
		out = append(out, words...)
	}
	sort.Strings(out)
	return longestFirst(out)
}

// NumberWord returns the numeric literal for a folded number word.
func (t *Tables) NumberWord(word string) (string, bool) {
	v, ok := t.numberWords[textnorm.Fold(word)]
	return v, ok
}

// Conjunctions returns folded words joining two ingredients ("y", "and").
func (t *Tables) Conjunctions() []string { return t.conjunction }

// Alternatives returns folded words introducing an alternative ("o", "or").
func (t *Tables) Alternatives() []string { return t.alternative }

// Connectives returns folded "de"/"of" style words dropped after a unit.
func (t *Tables) Connectives() []string { return t.of }

// Difficulty maps a free-text difficulty value to a level. Compound labels
// are looked up before their parts; trailing qualifiers are ignored.
func (t *Tables) Difficulty(value string) (common.Difficulty, bool) {
	candidates := []string{value}
	if i := strings.IndexAny(value, "(,;"); i > 0 {
		candidates = append(candidates, value[:i])
	}
	if fields := strings.Fields(value); len(fields) > 1 {
		candidates = append(candidates, fields[0])
	}
	for _, c := range candidates {
		if d, ok := t.difficulty[DifficultyKey(c)]; ok {
			return d, true
		}
	}
	return "", false
}

// HeadingMatch 標題比對結果
type HeadingMatch struct {
	Kind     common.SectionKind
	Language string
	Exact    bool   // the line is exactly a heading keyword
	Inline   string // text after "KEYWORD:" on the same line
}

const maxHeadingRunes = 80

var valueAfterLabel = regexp.MustCompile(`^\s*[:\-–]\s*\d`)

// maxQualifierWords 混合大小寫標題後修飾語的字數上限
const maxQualifierWords = 5

// MatchHeading classifies a line as a section heading. Rules are tried in
// table order, so optional ingredients win over plain ingredients.
func (t *Tables) MatchHeading(line string) (HeadingMatch, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxHeadingRunes {
		return HeadingMatch{}, false
	}
	decorated := strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "**") || strings.HasPrefix(trimmed, "__")
	core := strings.Trim(trimmed, "#*_= ")
	hasColon := strings.HasSuffix(core, ":")
	core = strings.TrimSpace(strings.TrimSuffix(core, ":"))
	if core == "" {
		return HeadingMatch{}, false
	}
	folded := textnorm.Fold(core)
	upper := textnorm.IsUpper(core)

	for _, rule := range t.headings {
		for _, p := range rule.prefixes {
			if folded == p.text {
				if rule.satisfied(folded) {
					return HeadingMatch{Kind: rule.kind, Language: p.lang, Exact: true}, true
				}
				continue
			}
			if !strings.HasPrefix(folded, p.text) {
				continue
			}
			rest := folded[len(p.text):]
			if r, _ := utf8.DecodeRuneInString(rest); unicode.IsLetter(r) || unicode.IsDigit(r) {
				continue
			}
			if valueAfterLabel.MatchString(rest) {
				continue
			}
			shaped := hasColon || upper || decorated || strings.HasPrefix(strings.TrimSpace(rest), "(") || rule.qualifier(rest)
			if !shaped || !rule.satisfied(folded) {
				continue
			}
			m := HeadingMatch{Kind: rule.kind, Language: p.lang}
			if i := strings.Index(core, ":"); i >= 0 {
				m.Inline = strings.TrimSpace(core[i+1:])
			}
			return m, true
		}
	}
	return HeadingMatch{}, false
}

// qualifier reports whether rest is a short trailing qualifier such as
// "para 4 personas" or "for the dough". "de/del/of" only qualify ingredient and
// instruction headings; "Notas de vainilla" stays content.
func (r headingRule) qualifier(rest string) bool {
	words := strings.Fields(rest)
	if len(words) == 0 || len(words) > maxQualifierWords {
		return false
	}
	switch words[0] {
	case "para", "for":
		return true
	case "de", "del", "of":
		switch r.kind {
		case common.SectionIngredients, common.SectionOptionalIngredients, common.SectionInstructions:
			return true
		}
	}
	return false
}

func (r headingRule) satisfied(folded string) bool {
	for _, group := range r.requires {
		found := false
		for _, w := range group {
			if strings.Contains(folded, w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
