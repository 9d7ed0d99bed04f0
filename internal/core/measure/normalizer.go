package measure

import (
	"math/big"
	"strconv"
	"strings"

	"recipe-normalizer/internal/core/vocab"
	"recipe-normalizer/internal/pkg/common"
)

// Precision 小數位數
const Precision = 4

// CountUnit 無單位數量使用的單位
const CountUnit = "unit"

// Measurement 正規化後的份量
type Measurement struct {
	Quantity *float64
	Unit     *string
	Family   common.UnitFamily
	Note     string // range bounds or qualitative text
}

// Normalizer 份量正規化
type Normalizer struct {
	tables *vocab.Tables
}

// NewNormalizer 建立份量正規化器
func NewNormalizer(tables *vocab.Tables) *Normalizer {
	return &Normalizer{tables: tables}
}

// Normalize resolves expr to a decimal quantity rounded to Precision places
// and maps unitToken to its canonical code. Unknown tokens are kept verbatim
// as a freeform unit; a numeric quantity without a token counts "unit".
func (n *Normalizer) Normalize(expr Expression, unitToken string) Measurement {
	switch v := expr.(type) {
	case nil, Unspecified:
		return Measurement{}
	case Qualitative:
		return Measurement{Note: v.Text}
	}

	r, ok := Rat(expr)
	if !ok {
		return Measurement{}
	}
	q := Round(r, Precision)
	m := Measurement{Quantity: &q}
	if rg, isRange := expr.(Range); isRange {
		m.Note = rg.String()
	}

	token := strings.TrimSpace(unitToken)
	switch {
	case token == "":
		unit := CountUnit
		m.Unit, m.Family = &unit, common.FamilyCount
	default:
		if u, found := n.tables.LookupUnit(token); found {
			code := u.Code
			m.Unit, m.Family = &code, u.Family
		} else {
			m.Unit, m.Family = &token, common.FamilyFreeform
		}
	}
	return m
}

// Round converts r to float64 after rounding half away from zero.
func Round(r *big.Rat, places int) float64 {
	f, err := strconv.ParseFloat(r.FloatString(places), 64)
	if err != nil {
		f, _ = r.Float64()
	}
	return f
}
