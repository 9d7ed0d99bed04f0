package textnorm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s and strips diacritics ("Preparación" -> "preparacion").
// A new transformer is built per call; transform.Chain keeps internal state.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// FoldRunes folds s rune by rune so that index i of the result corresponds
// to rune i of s. Input is expected to be NFC.
func FoldRunes(s string) []rune {
	rs := []rune(s)
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = foldRune(r)
	}
	return out
}

func foldRune(r rune) rune {
	r = unicode.ToLower(r)
	if r < utf8.RuneSelf {
		return r
	}
	d := norm.NFD.String(string(r))
	base, size := utf8.DecodeRuneInString(d)
	if size == len(d) {
		return base
	}
	for _, m := range d[size:] {
		if !unicode.Is(unicode.Mn, m) {
			return r
		}
	}
	return base
}

// IsUpper reports whether s has at least two letters and none of them lower-case.
func IsUpper(s string) bool {
	letters := 0
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		if unicode.IsLower(r) {
			return false
		}
		letters++
	}
	return letters >= 2
}

var accentClasses = map[rune]string{
	'a': "aáàâäã",
	'e': "eéèêë",
	'i': "iíìîï",
	'o': "oóòôöõ",
	'u': "uúùûü",
	'n': "nñ",
	'c': "cç",
}

// AccentPattern builds a regexp fragment matching phrase regardless of
// accents. Combine with (?i) for case-insensitivity.
func AccentPattern(phrase string) string {
	var b strings.Builder
	space := false
	for _, r := range Fold(strings.TrimSpace(phrase)) {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteString(`\s+`)
			}
			space = true
			continue
		}
		space = false
		if class, ok := accentClasses[r]; ok {
			b.WriteString("[" + class + "]")
			continue
		}
		b.WriteString(regexp.QuoteMeta(string(r)))
	}
	return b.String()
}

// WordPattern wraps an alternation of phrases with letter/digit boundaries.
// The boundary characters are captured in groups 1 and 3.
func WordPattern(phrases []string) string {
	alts := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.TrimSpace(p); p != "" {
			alts = append(alts, AccentPattern(p))
		}
	}
	return `(?i)(^|[^\p{L}\p{N}])(` + strings.Join(alts, "|") + `)($|[^\p{L}\p{N}])`
}
