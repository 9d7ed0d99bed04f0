// Package section splits normalized recipe text into labelled sections.
package section

import (
	"strings"

	"recipe-normalizer/internal/core/vocab"
	"recipe-normalizer/internal/pkg/common"
)

// Result 區段切分結果
type Result struct {
	Sections   []common.Section `json:"sections"`
	BlankLines int              `json:"blank_lines"`
	TotalLines int              `json:"total_lines"`
}

// Covered 回傳所有區段涵蓋的行數加上空白行數
func (r Result) Covered() int {
	n := r.BlankLines
	for _, s := range r.Sections {
		n += s.LineCount()
	}
	return n
}

// Of 回傳指定種類的所有區段（依出現順序）
func (r Result) Of(kind common.SectionKind) []common.Section {
	var out []common.Section
	for _, s := range r.Sections {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// Has 是否有指定種類的區段
func (r Result) Has(kind common.SectionKind) bool {
	for _, s := range r.Sections {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

// Languages 統計各語言標題數量
func (r Result) Languages() map[string]int {
	out := make(map[string]int)
	for _, s := range r.Sections {
		if s.Language != "" {
			out[s.Language]++
		}
	}
	return out
}

// Extractor 區段擷取器，無狀態
type Extractor struct {
	tables *vocab.Tables
}

// New 建立區段擷取器
func New(tables *vocab.Tables) *Extractor {
	return &Extractor{tables: tables}
}

// Extract scans text line by line. A heading closes the current section and
// opens a new one; lines before the first heading form an unknown section.
// Every input line is either blank, a heading, or content of exactly one
// section.
func (e *Extractor) Extract(text string) Result {
	lines := strings.Split(text, "\n")
	res := Result{TotalLines: len(lines)}

	current := &common.Section{Kind: common.SectionUnknown}
	flush := func() {
		if current.HeadingNumber > 0 || len(current.Lines) > 0 {
			res.Sections = append(res.Sections, *current)
		}
	}

	offset := 0
	for i, line := range lines {
		number := i + 1
		start := offset
		offset += len(line) + 1

		if strings.TrimSpace(line) == "" {
			res.BlankLines++
			continue
		}

		if m, ok := e.tables.MatchHeading(line); ok && !e.isSubHeading(current, m) {
			flush()
			current = &common.Section{
				Kind:          m.Kind,
				Heading:       strings.TrimSpace(line),
				HeadingNumber: number,
				Inline:        m.Inline,
				Language:      m.Language,
				Start:         start,
				End:           start + len(line),
			}
			continue
		}

		if current.HeadingNumber == 0 && len(current.Lines) == 0 {
			current.Start = start
		}
		current.Lines = append(current.Lines, common.SectionLine{Number: number, Offset: start, Text: line})
		current.End = start + len(line)
	}
	flush()
	return res
}

// isSubHeading keeps a loose match of the open section's own kind as content,
// e.g. "Versión vegana:" inside variations or "INGREDIENTES PARA LA SALSA:"
// inside ingredients.
func (e *Extractor) isSubHeading(current *common.Section, m vocab.HeadingMatch) bool {
	if current.Kind == common.SectionUnknown || m.Exact {
		return false
	}
	return current.Kind == m.Kind
}
