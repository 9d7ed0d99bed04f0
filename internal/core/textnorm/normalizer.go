// Package textnorm cleans raw recipe text before section extraction.
package textnorm

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	titleLabelPattern   = regexp.MustCompile(`(?i)^(?:t[ií]tulo|title|receta|recipe)\s*:\s*`)
	emptyBracketPattern = regexp.MustCompile(`\(\s*\)|\[\s*\]`)
	repeatedSepPattern  = regexp.MustCompile(`\s*([|\-–—:·•])(?:\s*[|\-–—:·•])+\s*`)
	titleTrimCharacters = " -–—|:,.;!¡·•*_"
)

// Normalizer removes noise from recipe text. It holds only compiled,
// read-only patterns and is safe for concurrent use.
type Normalizer struct {
	filler *regexp.Regexp
}

// New compiles the filler phrase denylist. Longer phrases are tried first.
func New(fillers []string) *Normalizer {
	n := &Normalizer{}
	phrases := make([]string, 0, len(fillers))
	for _, f := range fillers {
		if strings.TrimSpace(f) != "" {
			phrases = append(phrases, f)
		}
	}
	if len(phrases) == 0 {
		return n
	}
	sort.SliceStable(phrases, func(i, j int) bool {
		return utf8.RuneCountInString(phrases[i]) > utf8.RuneCountInString(phrases[j])
	})
	n.filler = regexp.MustCompile(WordPattern(phrases))
	return n
}

// Normalize unifies line endings, drops zero-width and control characters,
// collapses whitespace inside lines and runs of blank lines, and removes
// filler phrases from the first non-empty line.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = norm.NFC.String(text)
	text = strings.Map(cleanRune, text)

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}

	for i, line := range out {
		if line == "" {
			continue
		}
		if n.filler != nil && n.filler.MatchString(line) {
			if cleaned := n.removeFillers(line); cleaned != "" {
				out[i] = cleaned
			}
		}
		break
	}
	return strings.Join(out, "\n")
}

// CleanTitle strips Markdown heading markers, a leading "Título:" style
// label and filler phrases from a title candidate. The result may be empty.
func (n *Normalizer) CleanTitle(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "#")
	s = strings.Trim(s, "*_ ")
	s = titleLabelPattern.ReplaceAllString(s, "")
	return n.removeFillers(s)
}

func (n *Normalizer) removeFillers(s string) string {
	if n.filler != nil {
		// Adjacent phrases share a boundary character, so run until stable.
		for i := 0; i < 4; i++ {
			next := n.filler.ReplaceAllString(s, "${1} ${3}")
			if next == s {
				break
			}
			s = next
		}
	}
	s = emptyBracketPattern.ReplaceAllString(s, " ")
	s = repeatedSepPattern.ReplaceAllString(s, " $1 ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, titleTrimCharacters)
}

func cleanRune(r rune) rune {
	switch r {
	case '\n':
		return r
	case '\t', '\u00a0', '\u2007', '\u202f':
		return ' '
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff', '\u00ad':
		return -1
	case '\u2044', '\u2215':
		return '/'
	}
	switch {
	case unicode.IsControl(r):
		return -1
	case unicode.IsSpace(r):
		return ' '
	case unicode.Is(unicode.Cf, r):
		return -1
	}
	return r
}
