// Package metadata pulls labelled metadata (servings, times, difficulty,
// tags, source URL) and the title out of recipe text.
package metadata

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"recipe-normalizer/internal/core/section"
	"recipe-normalizer/internal/core/textnorm"
	"recipe-normalizer/internal/core/vocab"
	"recipe-normalizer/internal/pkg/common"
)

var (
	urlPattern        = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>()"'\[\]]+`)
	bareURLLine       = regexp.MustCompile(`(?i)^[\s\-*•]*(?:https?://|www\.)\S+$`)
	rangePattern      = regexp.MustCompile(`^(\d+)(?:\s*(?:-|–|a|to|o|or)\s*(\d+))?`)
	numberPattern     = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	caloriesInline    = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:kcal|calor[ií]as|calories)\b`)
	personsPattern    = regexp.MustCompile(`(?i)\b(?:para|for)\s+(\d+)(?:\s*(?:-|–|a|to|o|or)\s*(\d+))?\s+(?:personas|porciones|raciones|comensales|people|persons|servings|portions)\b`)
	servesPattern     = regexp.MustCompile(`(?i)^[\s\-*•]*(?:serves|rinde|makes|yields?)\s+(\d+)(?:\s*(?:-|–|a|to)\s*(\d+))?\b`)
	compactHours      = regexp.MustCompile(`(\d+)\s*h\s*(\d+)\s*(?:m|min|mins|minutos?|minutes?)?\b`)
	hoursPattern      = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:horas?|hours?|hrs?|h)\b`)
	minutesPattern    = regexp.MustCompile(`(\d+)\s*(?:minutos?|minutes?|mins?|m)\b`)
	bareMinutes       = regexp.MustCompile(`^\s*(\d+)\s*$`)
	tagSeparators     = regexp.MustCompile(`[,;|#]+`)
	dayOfPattern      = regexp.MustCompile(`(?i)\s+de(?:l)?\s+`)
	truthyMadeValues  = map[string]bool{"si": true, "yes": true, "y": true, "x": true, "true": true, "1": true, "✓": true, "✔": true, "ok": true}
	urlTrailingTrim   = ".,;:!?)]}>\"'"
	spanishMonthNames = strings.NewReplacer(
		"enero", "january", "febrero", "february", "marzo", "march", "abril", "april",
		"mayo", "may", "junio", "june", "julio", "july", "agosto", "august",
		"septiembre", "september", "setiembre", "september", "octubre", "october",
		"noviembre", "november", "diciembre", "december",
	)
	dateLayouts = []string{
		"2006-01-02",
		"2006/01/02",
		"02/01/2006",
		"2/1/2006",
		"02-01-2006",
		"2-1-2006",
		"02.01.2006",
		"02/01/06",
		"2 January 2006",
		"January 2 2006",
		"January 2, 2006",
		"2 Jan 2006",
		"Jan 2, 2006",
	}
)

// labelOrder 標籤比對順序
var labelOrder = []vocab.LabelKind{
	vocab.LabelServings,
	vocab.LabelCalories,
	vocab.LabelPrepTime,
	vocab.LabelCookTime,
	vocab.LabelTotalTime,
	vocab.LabelDifficulty,
	vocab.LabelTags,
	vocab.LabelDate,
	vocab.LabelMade,
	vocab.LabelSource,
}

type labelRule struct {
	kind vocab.LabelKind
	re   *regexp.Regexp
}

// Extractor 中繼資料擷取器，無狀態可並行使用
type Extractor struct {
	tables   *vocab.Tables
	sections *section.Extractor
	norm     *textnorm.Normalizer
	rules    []labelRule
}

// New 建立中繼資料擷取器
func New(tables *vocab.Tables) *Extractor {
	e := &Extractor{
		tables:   tables,
		sections: section.New(tables),
		norm:     textnorm.New(tables.Fillers()),
	}
	for _, kind := range labelOrder {
		labels := tables.Labels(kind)
		if len(labels) == 0 {
			continue
		}
		alts := make([]string, 0, len(labels))
		for _, l := range labels {
			alts = append(alts, textnorm.AccentPattern(l))
		}
		re := regexp.MustCompile(`(?i)^[\s\-*•]*(?:\*\*|__)?(?:` + strings.Join(alts, "|") +
			`)(?:\*\*|__)?[ \t]*[:：\-–—][ \t]*(?:\*\*|__)?[ \t]*(.*?)[ \t*_]*$`)
		e.rules = append(e.rules, labelRule{kind: kind, re: re})
	}
	return e
}

// Extract reads metadata from text. Absent fields stay nil, except the source
// URL which falls back to common.SourceURLUnknown.
func (e *Extractor) Extract(text, fallbackTitle string) (common.RecipeMetadata, []common.AssemblyError) {
	var diags []common.AssemblyError
	meta := common.RecipeMetadata{SourceURL: common.SourceURLUnknown}

	res := e.sections.Extract(text)
	meta.Title = e.title(res)
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(fallbackTitle)
		diags = append(diags, *common.NewExtractionWarning(common.CodeTitleFallback,
			"no title line before the first heading, using the source name", common.SectionUnknown))
	}
	meta.Language = dominantLanguage(res.Languages())

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if kind, value, ok := e.label(line); ok {
			e.apply(&meta, kind, value)
			continue
		}
		if meta.Servings == nil {
			if s, ok := personsServings(line); ok {
				meta.Servings = s
			}
		}
	}

	if meta.CaloriesPerServing == nil {
		if m := caloriesInline.FindStringSubmatch(text); m != nil {
			meta.CaloriesPerServing = roundInt(m[1])
		}
	}
	if meta.SourceURL == common.SourceURLUnknown {
		if u := FindURL(text); u != "" {
			meta.SourceURL = u
		}
	}
	return meta, diags
}

// IsMetadataLine reports whether line is a labelled metadata line whose value
// parses, such as "Porciones: 4" or "Para 4 personas".
func (e *Extractor) IsMetadataLine(line string) bool {
	if _, _, ok := e.label(line); ok {
		return true
	}
	_, ok := personsServings(line)
	return ok
}

// label finds the first rule whose label matches line and whose value parses.
func (e *Extractor) label(line string) (vocab.LabelKind, string, bool) {
	for _, r := range e.rules {
		m := r.re.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		value := strings.TrimSpace(m[1])
		if e.valid(r.kind, value) {
			return r.kind, value, true
		}
	}
	return "", "", false
}

func (e *Extractor) valid(kind vocab.LabelKind, value string) bool {
	if value == "" {
		return false
	}
	switch kind {
	case vocab.LabelServings:
		_, ok := parseServings(value)
		return ok
	case vocab.LabelCalories:
		return numberPattern.MatchString(value)
	case vocab.LabelPrepTime, vocab.LabelCookTime, vocab.LabelTotalTime:
		_, ok := ParseMinutes(value)
		return ok
	case vocab.LabelDifficulty:
		_, ok := e.tables.Difficulty(value)
		return ok
	case vocab.LabelDate:
		_, ok := ParseDate(value)
		return ok
	case vocab.LabelMade:
		return truthyMadeValues[textnorm.Fold(value)] || isFalsy(value)
	}
	return true
}

// apply sets a field the first time its label is seen.
func (e *Extractor) apply(meta *common.RecipeMetadata, kind vocab.LabelKind, value string) {
	switch kind {
	case vocab.LabelServings:
		if meta.Servings == nil {
			meta.Servings, _ = parseServings(value)
		}
	case vocab.LabelCalories:
		if meta.CaloriesPerServing == nil {
			meta.CaloriesPerServing = roundInt(numberPattern.FindString(value))
		}
	case vocab.LabelPrepTime:
		if meta.PrepTimeMinutes == nil {
			meta.PrepTimeMinutes = minutesPtr(value)
		}
	case vocab.LabelCookTime:
		if meta.CookTimeMinutes == nil {
			meta.CookTimeMinutes = minutesPtr(value)
		}
	case vocab.LabelTotalTime:
		if meta.TotalTimeMinutes == nil {
			meta.TotalTimeMinutes = minutesPtr(value)
		}
	case vocab.LabelDifficulty:
		if meta.Difficulty == nil {
			if d, ok := e.tables.Difficulty(value); ok {
				meta.Difficulty = &d
			}
		}
	case vocab.LabelTags:
		if meta.Tags == nil {
			meta.Tags = ParseTags(value)
		}
	case vocab.LabelDate:
		if meta.Date == nil {
			if d, ok := ParseDate(value); ok {
				meta.Date = &d
			}
		}
	case vocab.LabelMade:
		meta.Made = truthyMadeValues[textnorm.Fold(value)]
	case vocab.LabelSource:
		if meta.SourceURL == common.SourceURLUnknown {
			if u := FindURL(value); u != "" {
				meta.SourceURL = u
			}
		}
	}
}

// title returns the first usable line before the first heading.
func (e *Extractor) title(res section.Result) string {
	if len(res.Sections) == 0 || res.Sections[0].Kind != common.SectionUnknown {
		return ""
	}
	for _, l := range res.Sections[0].Lines {
		line := strings.TrimSpace(l.Text)
		if line == "" || bareURLLine.MatchString(line) || e.IsMetadataLine(line) {
			continue
		}
		if t := e.norm.CleanTitle(line); t != "" {
			return t
		}
	}
	return ""
}

func dominantLanguage(counts map[string]int) string {
	best, n := "", 0
	langs := make([]string, 0, len(counts))
	for l := range counts {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	for _, l := range langs {
		if counts[l] > n {
			best, n = l, counts[l]
		}
	}
	return best
}

func parseServings(value string) (*common.Servings, bool) {
	m := rangePattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return nil, false
	}
	lo, _ := strconv.Atoi(m[1])
	hi := lo
	if m[2] != "" {
		hi, _ = strconv.Atoi(m[2])
	}
	if lo <= 0 || hi < lo {
		return nil, false
	}
	return &common.Servings{Min: lo, Max: hi}, true
}

// personsServings reads "Para 4 personas" and "Serves 4-6".
func personsServings(line string) (*common.Servings, bool) {
	m := personsPattern.FindStringSubmatch(line)
	if m == nil {
		m = servesPattern.FindStringSubmatch(line)
	}
	if m == nil {
		return nil, false
	}
	value := m[1]
	if m[2] != "" {
		value += "-" + m[2]
	}
	return parseServings(value)
}

// ParseMinutes reads "45 minutos", "1 hora 30 minutos", "1h30", "2 hours" or
// a bare number of minutes. Ranges resolve to their upper bound.
func ParseMinutes(value string) (int, bool) {
	f := textnorm.Fold(value)
	if m := compactHours.FindStringSubmatch(f); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		return h*60 + mins, true
	}
	total, found := 0, false
	if m := lastMatch(hoursPattern, f); m != nil {
		h, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
		if err == nil {
			total += int(math.Round(h * 60))
			found = true
		}
	}
	if m := lastMatch(minutesPattern, f); m != nil {
		mins, _ := strconv.Atoi(m[1])
		total += mins
		found = true
	}
	if !found {
		if m := bareMinutes.FindStringSubmatch(f); m != nil {
			total, _ = strconv.Atoi(m[1])
			found = true
		}
	}
	return total, found
}

func lastMatch(re *regexp.Regexp, s string) []string {
	all := re.FindAllStringSubmatch(s, -1)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

func minutesPtr(value string) *int {
	if n, ok := ParseMinutes(value); ok {
		return &n
	}
	return nil
}

func roundInt(s string) *int {
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return nil
	}
	n := int(math.Round(f))
	return &n
}

// ParseTags splits a tag list on , ; | #, lower-cases and de-duplicates it
// keeping first-seen order.
func ParseTags(value string) []string {
	seen := make(map[string]bool)
	tags := []string{}
	for _, t := range tagSeparators.Split(value, -1) {
		t = strings.ToLower(strings.Join(strings.Fields(t), " "))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return tags
}

// FindURL returns the first URL in text with trailing punctuation removed.
func FindURL(text string) string {
	u := urlPattern.FindString(text)
	return strings.TrimRight(u, urlTrailingTrim)
}

// ParseDate accepts ISO dates, day-first numeric dates and written dates in
// Spanish or English ("3 de mayo de 2024").
func ParseDate(value string) (time.Time, bool) {
	v := strings.TrimSpace(textnorm.Fold(value))
	v = dayOfPattern.ReplaceAllString(v, " ")
	v = spanishMonthNames.Replace(v)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isFalsy(value string) bool {
	switch textnorm.Fold(value) {
	case "no", "n", "false", "0", "-":
		return true
	}
	return false
}
