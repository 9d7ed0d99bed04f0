// Package recipe assembles a validated Recipe from raw recipe text.
package recipe

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"recipe-normalizer/internal/core/ingredient"
	"recipe-normalizer/internal/core/metadata"
	"recipe-normalizer/internal/core/section"
	"recipe-normalizer/internal/core/textnorm"
	"recipe-normalizer/internal/core/vocab"
	"recipe-normalizer/internal/pkg/common"
)

// DefaultMaxInputBytes 單一文件預設大小上限
const DefaultMaxInputBytes = 256 << 10

var (
	stepMarker   = regexp.MustCompile(`(?i)^(?:(?:paso|step)\s*\d+\s*[:.)\-–]?\s*|\d{1,2}(?:[.)]|\s*[-–:])\s+|[-*•·+▪◦–—]\s*)`)
	bulletMarker = regexp.MustCompile(`^[-*•·+▪◦–—]\s*`)
	nameSplitter = strings.NewReplacer("_", " ", "-", " ")
)

// Options 組裝選項
type Options struct {
	MaxInputBytes int  // 0 表示不限制
	AllowPartial  bool // 沒有步驟時仍輸出部分食譜
}

// Pipeline wires the stateless stages together. It holds only read-only
// tables and compiled patterns and is safe for concurrent use.
type Pipeline struct {
	opts       Options
	normalizer *textnorm.Normalizer
	sections   *section.Extractor
	parser     *ingredient.Parser
	metadata   *metadata.Extractor
}

// NewPipeline 建立組裝流程
func NewPipeline(tables *vocab.Tables, opts Options) *Pipeline {
	if tables == nil {
		tables = vocab.Default()
	}
	return &Pipeline{
		opts:       opts,
		normalizer: textnorm.New(tables.Fillers()),
		sections:   section.New(tables),
		parser:     ingredient.New(tables),
		metadata:   metadata.New(tables),
	}
}

// Options 回傳組裝選項
func (p *Pipeline) Options() Options {
	return p.opts
}

// run is the per-invocation state of one Process call.
type run struct {
	*machine
	doc         common.RawDocument
	text        string
	sections    section.Result
	ingredients []common.Ingredient
	optional    []common.Ingredient
	meta        common.RecipeMetadata
	diags       []common.AssemblyError
}

func (r *run) warn(d *common.AssemblyError) {
	r.diags = append(r.diags, *d)
}

// Process runs doc through every stage and returns a terminal outcome. It has
// no side effects; identical input always yields an identical outcome.
func (p *Pipeline) Process(doc common.RawDocument) common.Outcome {
	if p.opts.MaxInputBytes > 0 && len(doc.Text) > p.opts.MaxInputBytes {
		return InputTooLarge(len(doc.Text), p.opts.MaxInputBytes)
	}

	r := &run{machine: newMachine(), doc: doc, diags: []common.AssemblyError{}}

	r.text = p.normalizer.Normalize(doc.Text)
	r.sections = p.sections.Extract(r.text)
	p.mustAdvance(r, StateSectionsExtracted)

	if !r.sections.Has(common.SectionIngredients) && !r.sections.Has(common.SectionOptionalIngredients) {
		r.warn(common.NewExtractionWarning(common.CodeMissingSection, "no ingredients heading found", common.SectionIngredients))
	}
	if !r.sections.Has(common.SectionInstructions) {
		r.warn(common.NewExtractionWarning(common.CodeMissingSection, "no instructions heading found", common.SectionInstructions))
	}

	r.ingredients = p.parseIngredients(r, common.SectionIngredients)
	r.optional = p.parseIngredients(r, common.SectionOptionalIngredients)
	for i := range r.optional {
		r.optional[i].Optional = true
	}
	p.mustAdvance(r, StateIngredientsParsed)

	meta, diags := p.metadata.Extract(r.text, FallbackTitle(doc.Source))
	if meta.Language == "" {
		meta.Language = doc.Language
	}
	r.meta = meta
	r.diags = append(r.diags, diags...)
	p.mustAdvance(r, StateMetadataParsed)

	rec := &common.Recipe{
		ID:                  common.ContentID(r.text),
		Source:              doc.Source,
		Metadata:            r.meta,
		Ingredients:         nonNil(r.ingredients),
		OptionalIngredients: nonNil(r.optional),
		Instructions:        p.steps(r.sections.Of(common.SectionInstructions)),
		Variations:          listLines(r.sections.Of(common.SectionVariations)),
		Tips:                listLines(r.sections.Of(common.SectionTips)),
		Notes:               listLines(r.sections.Of(common.SectionNotes)),
		Nutrition:           listLines(r.sections.Of(common.SectionNutrition)),
		Storage:             listLines(r.sections.Of(common.SectionStorage)),
		CreatedAt:           doc.ReceivedAt.UTC(),
	}

	fatal := p.validate(r, rec)
	p.mustAdvance(r, StateValidated)

	if fatal {
		p.mustAdvance(r, StateFailed)
		return common.Outcome{Status: common.OutcomeFailed, Diagnostics: r.diags}
	}
	p.mustAdvance(r, StateSucceeded)
	return common.Outcome{Status: common.OutcomeSucceeded, Recipe: rec, Diagnostics: r.diags}
}

// mustAdvance panics on a programming error in the stage order.
func (p *Pipeline) mustAdvance(r *run, to State) {
	if err := r.advance(to); err != nil {
		panic(err)
	}
}

// InputTooLarge 文件超過大小上限時的結果
func InputTooLarge(size, limit int) common.Outcome {
	return common.Outcome{
		Status: common.OutcomeFailed,
		Diagnostics: []common.AssemblyError{{
			Kind:    common.KindInputTooLarge,
			Code:    common.CodeInputTooLarge,
			Message: fmt.Sprintf("input is %d bytes, limit is %d", size, limit),
		}},
	}
}

// parseIngredients parses every section of kind. Group labels set the group
// of the lines that follow; metadata lines are skipped; identical duplicates
// within one section are dropped with a warning.
func (p *Pipeline) parseIngredients(r *run, kind common.SectionKind) []common.Ingredient {
	var out []common.Ingredient
	for _, sec := range r.sections.Of(kind) {
		group := ""
		seen := make(map[string]bool)
		lines := sec.Lines
		if sec.Inline != "" {
			lines = append([]common.SectionLine{{Number: sec.HeadingNumber, Offset: sec.Start, Text: sec.Inline}}, lines...)
		}
		for _, line := range lines {
			if p.metadata.IsMetadataLine(line.Text) {
				continue
			}
			if ingredient.IsGroupLabel(line.Text) {
				group = strings.TrimSuffix(ingredient.StripMarker(line.Text), ":")
				continue
			}
			parsed, err := p.parser.Parse(line.Text)
			if err != nil {
				var ae *common.AssemblyError
				if !errors.As(err, &ae) {
					ae = common.NewParseWarning(common.CodeNoName, err.Error(), line.Text)
				}
				d := *ae
				d.Section, d.Line = kind, line.Number
				r.diags = append(r.diags, d)
				continue
			}
			for _, ing := range parsed {
				ing.Group = group
				key := dedupKey(ing)
				if seen[key] {
					d := common.NewExtractionWarning(common.CodeDuplicateIngredient,
						fmt.Sprintf("duplicate ingredient %q dropped", ing.Name), kind)
					d.Line, d.Text = line.Number, line.Text
					r.warn(d)
					continue
				}
				seen[key] = true
				out = append(out, ing)
			}
		}
	}
	return out
}

func dedupKey(ing common.Ingredient) string {
	q, u := "", ""
	if ing.Quantity != nil {
		q = fmt.Sprint(*ing.Quantity)
	}
	if ing.Unit != nil {
		u = *ing.Unit
	}
	return strings.Join([]string{ing.Key(), q, u, ing.Notes, ing.Group, fmt.Sprint(ing.Optional)}, "\x00")
}

// steps builds numbered instruction steps. When a section marks its steps
// ("1.", "Paso 2:", bullets), unmarked lines continue the previous step;
// otherwise every line is a step.
func (p *Pipeline) steps(sections []common.Section) []common.InstructionStep {
	var texts []string
	for _, sec := range sections {
		lines := sec.Texts()
		if sec.Inline != "" {
			lines = append([]string{sec.Inline}, lines...)
		}
		marked := false
		for _, l := range lines {
			if stepMarker.MatchString(l) {
				marked = true
				break
			}
		}
		started := false
		for _, l := range lines {
			text := strings.TrimSpace(l)
			isMarked := stepMarker.MatchString(text)
			if isMarked {
				text = strings.TrimSpace(stepMarker.ReplaceAllString(text, ""))
			}
			if text == "" {
				continue
			}
			if marked && !isMarked && started {
				texts[len(texts)-1] += " " + text
				continue
			}
			texts = append(texts, text)
			started = true
		}
	}

	out := make([]common.InstructionStep, 0, len(texts))
	for i, t := range texts {
		out = append(out, common.InstructionStep{Number: i + 1, Text: t})
	}
	return out
}

// listLines returns bullet-stripped lines of the given sections in order.
func listLines(sections []common.Section) []string {
	out := []string{}
	for _, sec := range sections {
		if sec.Inline != "" {
			out = append(out, sec.Inline)
		}
		for _, l := range sec.Lines {
			if text := strings.TrimSpace(bulletMarker.ReplaceAllString(strings.TrimSpace(l.Text), "")); text != "" {
				out = append(out, text)
			}
		}
	}
	return out
}

// validate appends every validation failure and reports whether any is fatal.
func (p *Pipeline) validate(r *run, rec *common.Recipe) bool {
	fatal := false
	if strings.TrimSpace(rec.Metadata.Title) == "" {
		r.warn(common.NewValidationError(common.CodeMissingTitle, "no title line and no usable source name"))
		fatal = true
	}
	if len(rec.Ingredients) == 0 {
		r.warn(common.NewValidationError(common.CodeEmptyIngredients, "recipe has no parsed ingredients"))
		fatal = true
	}
	if len(rec.Instructions) == 0 {
		if p.opts.AllowPartial {
			rec.Partial = true
			r.warn(common.NewExtractionWarning(common.CodePartialInstructions,
				"recipe has no instructions, kept as partial", common.SectionInstructions))
		} else {
			r.warn(common.NewValidationError(common.CodeEmptyInstructions, "recipe has no instructions"))
			fatal = true
		}
	}
	return fatal
}

// FallbackTitle derives a title from a source path: base name without
// extension, underscores and dashes as spaces.
func FallbackTitle(source string) string {
	if strings.TrimSpace(source) == "" {
		return ""
	}
	base := filepath.Base(strings.ReplaceAll(source, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.Join(strings.Fields(nameSplitter.Replace(base)), " ")
}

func nonNil(in []common.Ingredient) []common.Ingredient {
	if in == nil {
		return []common.Ingredient{}
	}
	return in
}
