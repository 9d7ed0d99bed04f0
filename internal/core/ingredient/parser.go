// Package ingredient parses single ingredient lines into quantity, unit,
// name and notes.
package ingredient

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"recipe-normalizer/internal/core/measure"
	"recipe-normalizer/internal/core/textnorm"
	"recipe-normalizer/internal/core/vocab"
	"recipe-normalizer/internal/pkg/common"
)

// MaxConjoinedWords 連接詞拆分時每個項目的最多字數
const MaxConjoinedWords = 4

var (
	bulletPattern    = regexp.MustCompile(`^(?:[-*•·+–—▪◦]|\[[ xX✓]?\]|[☐☑✓✔])\s*`)
	numberingPattern = regexp.MustCompile(`^\d{1,2}[.)]\s+`)
	mixedPattern     = regexp.MustCompile(`^(\d+)\s+(?:(?i:y|and)\s+)?(\d+)\s*/\s*(\d+)`)
	fractionPattern  = regexp.MustCompile(`^(\d+)\s*/\s*(\d+)`)
	thousandsPattern = regexp.MustCompile(`^[1-9]\d{0,2}(?:,\d{3})+(?:\.\d+)?`)
	decimalPattern   = regexp.MustCompile(`^\d+(?:[.,]\d+)?`)
	rangeConnector   = regexp.MustCompile(`^\s*(?:[-–—]|(?i:a|al|to|o|or|hasta)\s)\s*`)
	wordPattern      = regexp.MustCompile(`^(\p{L}+)\s+`)
	articlePattern   = regexp.MustCompile(`^(?i:a|an)\s+`)
	parenPattern     = regexp.MustCompile(`\(([^()]*)\)`)
	emptyParens      = regexp.MustCompile(`\(\s*\)`)
	hintPattern      = regexp.MustCompile(`^(?i:(?:aprox\.?|approx\.?|aproximadamente|about|unos|unas|~|≈)\s*)?(\d+(?:[.,]\d+)?)\s*(\p{L}+\.?)$`)
	alternativeSlash = regexp.MustCompile(`(\p{L})\s*/\s*(\p{L})`)
	digitPattern     = regexp.MustCompile(`\d`)
	optionalWords    = map[string]bool{"opcional": true, "optional": true, "opcionales": true}
)

var vulgarFractions = map[rune]string{
	'½': "1/2", '⅓': "1/3", '⅔': "2/3", '¼': "1/4", '¾': "3/4",
	'⅕': "1/5", '⅖': "2/5", '⅗': "3/5", '⅘': "4/5", '⅙': "1/6",
	'⅚': "5/6", '⅛': "1/8", '⅜': "3/8", '⅝': "5/8", '⅞': "7/8",
}

// Line 單行食材的解析結果（尚未正規化）
type Line struct {
	Raw          string
	Expression   measure.Expression
	UnitToken    string
	Name         string
	Items        []string // 以連接詞列出的多個食材
	Notes        []string
	Alternatives []string
	Hint         *common.QuantityHint
	Optional     bool
}

// Parser 食材行解析器，只持有唯讀資料，可並行使用
type Parser struct {
	tables   *vocab.Tables
	measure  *measure.Normalizer
	anywhere *regexp.Regexp
	alt      *regexp.Regexp
	conjSep  *regexp.Regexp
	conjWord *regexp.Regexp
}

// New 建立食材行解析器
func New(tables *vocab.Tables) *Parser {
	p := &Parser{
		tables:  tables,
		measure: measure.NewNormalizer(tables),
	}
	if markers := tables.AnywhereQualitative(); len(markers) > 0 {
		p.anywhere = regexp.MustCompile(textnorm.WordPattern(markers))
	}
	if alts := tables.Alternatives(); len(alts) > 0 {
		p.alt = regexp.MustCompile(`(?i)\s+(?:` + quoteAll(alts) + `)\s+`)
	}
	if conj := tables.Conjunctions(); len(conj) > 0 {
		words := quoteAll(conj)
		p.conjWord = regexp.MustCompile(`(?i)^(?:` + words + `)$`)
		p.conjSep = regexp.MustCompile(`(?i)\s*,\s*(?:(?:` + words + `)\s+)?|\s+(?:` + words + `)\s+`)
	}
	return p
}

func quoteAll(words []string) string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		out = append(out, regexp.QuoteMeta(w))
	}
	return strings.Join(out, "|")
}

// Parse parses one line into one ingredient, or several when the line lists
// conjoined ingredients without a numeric quantity. A line that cannot be
// used returns a parse warning.
func (p *Parser) Parse(line string) ([]common.Ingredient, error) {
	l, err := p.ParseLine(line)
	if err != nil {
		return nil, err
	}
	m := p.measure.Normalize(l.Expression, l.UnitToken)

	notes := append([]string(nil), l.Notes...)
	if m.Note != "" {
		notes = append(notes, m.Note)
	}
	base := common.Ingredient{
		Quantity:     m.Quantity,
		Unit:         m.Unit,
		UnitFamily:   m.Family,
		Notes:        strings.Join(notes, "; "),
		QuantityHint: l.Hint,
		Optional:     l.Optional,
		Raw:          l.Raw,
	}

	names := l.Items
	if len(names) == 0 {
		names = []string{l.Name}
	}
	out := make([]common.Ingredient, 0, len(names))
	for _, name := range names {
		ing := base
		ing.Name = name
		if len(l.Alternatives) > 0 {
			ing.Alternatives = append([]string(nil), l.Alternatives...)
		}
		out = append(out, ing)
	}
	return out, nil
}

// ParseLine splits a line into its raw pieces.
func (p *Parser) ParseLine(line string) (Line, error) {
	l := Line{Raw: line}
	s := StripMarker(line)
	s = expandVulgarFractions(s)

	expr, rest, err := p.quantity(s)
	if err != nil {
		code := common.CodeZeroDenominator
		switch {
		case errors.Is(err, measure.ErrDescendingRange):
			code = common.CodeDescendingRange
		case errors.Is(err, measure.ErrNumberOutOfRange):
			code = common.CodeNumberOutOfRange
		}
		return l, common.NewParseWarning(code, err.Error(), line)
	}
	consumed := rest != s

	if measure.IsNumeric(expr) {
		if token, after, ok := p.unit(rest); ok && hasLetter(stripConnective(p.tables, after)) {
			l.UnitToken = token
			rest = after
		}
	}
	if consumed {
		rest = stripConnective(p.tables, rest)
	}

	if p.anywhere != nil {
		if loc := p.anywhere.FindStringSubmatchIndex(rest); loc != nil {
			marker := rest[loc[4]:loc[5]]
			rest = strings.TrimSpace(rest[:loc[4]] + " " + rest[loc[5]:])
			rest = emptyParens.ReplaceAllString(rest, "")
			if _, unspecified := expr.(measure.Unspecified); unspecified {
				expr = measure.Qualitative{Text: marker}
			} else {
				l.Notes = append(l.Notes, marker)
			}
		}
	}
	l.Expression = expr

	rest = p.parentheticals(rest, &l)

	if !measure.IsNumeric(expr) {
		if items := p.splitConjoined(rest); len(items) > 1 {
			l.Name, l.Items = items[0], items
			return l, nil
		}
	}

	name, clause := splitClause(rest)
	if clause != "" {
		if optionalWords[textnorm.Fold(clause)] {
			l.Optional = true
		} else {
			l.Notes = append([]string{clause}, l.Notes...)
		}
	}

	name, l.Alternatives = p.alternatives(name)
	l.Name = cleanName(name)
	if !hasLetter(l.Name) {
		return l, common.NewParseWarning(common.CodeNoName, "ingredient line has no name", line)
	}
	return l, nil
}

// StripMarker removes list bullets, check boxes and "1." style numbering.
func StripMarker(line string) string {
	s := strings.TrimSpace(line)
	for {
		next := strings.TrimSpace(bulletPattern.ReplaceAllString(s, ""))
		next = numberingPattern.ReplaceAllString(next, "")
		if next == s {
			return s
		}
		s = next
	}
}

// IsGroupLabel reports whether line labels a group of ingredients, such as
// "Para la salsa:".
func IsGroupLabel(line string) bool {
	s := StripMarker(line)
	if !strings.HasSuffix(s, ":") || digitPattern.MatchString(s) {
		return false
	}
	return hasLetter(s) && len([]rune(s)) <= 60
}

func expandVulgarFractions(s string) string {
	if !strings.ContainsAny(s, "½⅓⅔¼¾⅕⅖⅗⅘⅙⅚⅛⅜⅝⅞") {
		return s
	}
	var b strings.Builder
	var prev rune
	for _, r := range s {
		if f, ok := vulgarFractions[r]; ok {
			if unicode.IsDigit(prev) {
				b.WriteByte(' ')
			}
			b.WriteString(f)
			prev = r
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// quantity reads the leading quantity expression and returns the rest of s.
func (p *Parser) quantity(s string) (measure.Expression, string, error) {
	expr, n, err := term(s)
	if err != nil {
		return nil, s, err
	}
	if n > 0 {
		rest := s[n:]
		if loc := rangeConnector.FindStringIndex(rest); loc != nil {
			high, m, err := term(rest[loc[1]:])
			if err != nil {
				return nil, s, err
			}
			if m > 0 {
				r, err := measure.NewRange(expr, high)
				if err != nil {
					return nil, s, err
				}
				return r, strings.TrimSpace(rest[loc[1]+m:]), nil
			}
		}
		return expr, strings.TrimSpace(rest), nil
	}

	if marker, n := matchFolded(s, p.tables.LeadingQualitative()); n > 0 {
		return measure.Qualitative{Text: marker}, strings.TrimSpace(s[n:]), nil
	}

	if expr, n := p.numberWord(s); n > 0 {
		return expr, strings.TrimSpace(s[n:]), nil
	}
	return measure.Unspecified{}, s, nil
}

// term reads one numeric term: mixed number, fraction or decimal.
func term(s string) (measure.Expression, int, error) {
	if m := mixedPattern.FindStringSubmatch(s); m != nil {
		n, err := integers(m[1], m[2], m[3])
		if err != nil {
			return nil, 0, err
		}
		e, err := measure.NewMixed(n[0], n[1], n[2])
		return e, len(m[0]), err
	}
	if m := fractionPattern.FindStringSubmatch(s); m != nil {
		n, err := integers(m[1], m[2])
		if err != nil {
			return nil, 0, err
		}
		e, err := measure.NewFraction(n[0], n[1])
		return e, len(m[0]), err
	}
	if m := thousandsPattern.FindString(s); m != "" && !startsWithDigit(s[len(m):]) {
		e, err := measure.NewExact(strings.ReplaceAll(m, ",", ""))
		if err != nil {
			return nil, 0, nil
		}
		return e, len(m), nil
	}
	if m := decimalPattern.FindString(s); m != "" {
		e, err := measure.NewExact(m)
		if err != nil {
			return nil, 0, nil
		}
		return e, len(m), nil
	}
	return nil, 0, nil
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

// integers parses decimal digit strings; anything beyond int64 is an error
// rather than a wrapped value.
func integers(parts ...string) ([]int64, error) {
	out := make([]int64, len(parts))
	for i, s := range parts {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", measure.ErrNumberOutOfRange, s)
		}
		out[i] = n
	}
	return out, nil
}

// numberWord reads "una", "media", "un cuarto", "half a" and similar.
func (p *Parser) numberWord(s string) (measure.Expression, int) {
	m := wordPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, 0
	}
	value, ok := p.tables.NumberWord(m[1])
	if !ok {
		return nil, 0
	}
	n := len(m[0])
	if value == "1" {
		if next := wordPattern.FindStringSubmatch(s[n:]); next != nil {
			if v, ok := p.tables.NumberWord(next[1]); ok {
				value = v
				n += len(next[0])
			}
		}
	}
	if a := articlePattern.FindString(s[n:]); a != "" && strings.Contains(value, "/") {
		n += len(a)
	}

	var expr measure.Expression
	if i := strings.Index(value, "/"); i > 0 {
		n, err := integers(value[:i], value[i+1:])
		if err != nil {
			return nil, 0
		}
		f, err := measure.NewFraction(n[0], n[1])
		if err != nil {
			return nil, 0
		}
		expr = f
	} else {
		e, err := measure.NewExact(value)
		if err != nil {
			return nil, 0
		}
		expr = e
	}
	if strings.TrimSpace(s[n:]) == "" {
		return nil, 0
	}
	return expr, n
}

// unit matches the longest unit token at the start of s.
func (p *Parser) unit(s string) (string, string, bool) {
	token, n := matchFolded(s, p.tables.UnitTokens())
	if n == 0 {
		return "", s, false
	}
	rest := s[n:]
	if strings.HasPrefix(rest, ".") {
		token += "."
		rest = rest[1:]
	}
	return token, strings.TrimSpace(rest), true
}

// matchFolded finds the longest candidate that prefixes s, ignoring case and
// accents. It returns the original text and its byte length.
func matchFolded(s string, candidates []string) (string, int) {
	runes := []rune(s)
	folded := textnorm.FoldRunes(s)
	for _, c := range candidates {
		cr := []rune(c)
		if len(cr) == 0 || len(cr) > len(folded) || string(folded[:len(cr)]) != c {
			continue
		}
		if len(cr) < len(folded) {
			next := folded[len(cr)]
			if unicode.IsLetter(next) || unicode.IsDigit(next) {
				continue
			}
		}
		orig := string(runes[:len(cr)])
		return orig, len(orig)
	}
	return "", 0
}

func stripConnective(tables *vocab.Tables, s string) string {
	if of, n := matchFolded(s, tables.Connectives()); n > 0 && of != "" {
		if rest := strings.TrimSpace(s[n:]); hasLetter(rest) {
			return rest
		}
	}
	return s
}

// parentheticals moves every "( ... )" group into notes, the quantity hint or
// the optional flag, and returns s without them.
func (p *Parser) parentheticals(s string, l *Line) string {
	var notes []string
	for _, m := range parenPattern.FindAllStringSubmatch(s, -1) {
		content := strings.TrimSpace(m[1])
		if content == "" {
			continue
		}
		if optionalWords[textnorm.Fold(content)] {
			l.Optional = true
			continue
		}
		if l.Hint == nil {
			l.Hint = p.hint(content)
		}
		notes = append(notes, content)
	}
	l.Notes = append(notes, l.Notes...)
	s = parenPattern.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// hint parses "300g" or "aprox. 2 tazas" into an alternative quantity.
func (p *Parser) hint(content string) *common.QuantityHint {
	m := hintPattern.FindStringSubmatch(content)
	if m == nil {
		return nil
	}
	u, ok := p.tables.LookupUnit(m[2])
	if !ok {
		return nil
	}
	e, err := measure.NewExact(m[1])
	if err != nil {
		return nil
	}
	r, _ := measure.Rat(e)
	return &common.QuantityHint{Quantity: measure.Round(r, measure.Precision), Unit: u.Code}
}

// splitConjoined applies the conjoined-ingredient rule: "Sal y pimienta" and
// "sal, pimienta y orégano" list several ingredients when every item is
// short and the list ends with a conjunction.
func (p *Parser) splitConjoined(s string) []string {
	if p.conjSep == nil {
		return nil
	}
	seps := p.conjSep.FindAllString(s, -1)
	if len(seps) == 0 {
		return nil
	}
	last := strings.Trim(seps[len(seps)-1], " ,")
	if !p.conjWord.MatchString(last) {
		return nil
	}
	parts := p.conjSep.Split(s, -1)
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		item := cleanName(part)
		if !hasLetter(item) || len(strings.Fields(item)) > MaxConjoinedWords {
			return nil
		}
		items = append(items, item)
	}
	return items
}

// splitClause separates "name, clause" at the first comma.
func splitClause(s string) (string, string) {
	i := strings.Index(s, ",")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.Trim(strings.TrimSpace(s[i+1:]), ",;. ")
}

func (p *Parser) alternatives(name string) (string, []string) {
	name = alternativeSlash.ReplaceAllString(name, "$1\x00$2")
	var parts []string
	for _, chunk := range strings.Split(name, "\x00") {
		if p.alt != nil {
			parts = append(parts, p.alt.Split(chunk, -1)...)
		} else {
			parts = append(parts, chunk)
		}
	}
	if len(parts) < 2 {
		return strings.ReplaceAll(name, "\x00", "/"), nil
	}
	var alts []string
	for _, a := range parts[1:] {
		if a = cleanName(a); hasLetter(a) {
			alts = append(alts, a)
		}
	}
	return parts[0], alts
}

func cleanName(s string) string {
	return strings.Trim(strings.Join(strings.Fields(s), " "), " ,;:.-")
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
