// Package measure models quantity expressions and normalizes them, with a
// unit token, into a decimal quantity and a canonical unit.
package measure

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	ErrZeroDenominator  = errors.New("denominator must be greater than zero")
	ErrDescendingRange  = errors.New("range low bound exceeds high bound")
	ErrInvalidNumber    = errors.New("invalid number")
	ErrNotNumeric       = errors.New("range bounds must be numeric")
	ErrNumberOutOfRange = errors.New("number out of range")
)

// Expression is the unevaluated form of an amount. The set of
// implementations is closed: Exact, Fraction, Mixed, Range, Qualitative
// and Unspecified.
type Expression interface {
	fmt.Stringer
	isExpression()
}

// Exact 整數或小數，Value 使用 "." 作為小數點
type Exact struct {
	Value string
}

// Fraction 分數
type Fraction struct {
	Numerator   int64
	Denominator int64
}

// Mixed 帶分數，例如 1 1/2
type Mixed struct {
	Whole       int64
	Numerator   int64
	Denominator int64
}

// Range 範圍，Low <= High
type Range struct {
	Low  Expression
	High Expression
}

// Qualitative 非數值份量，例如 "al gusto"
type Qualitative struct {
	Text string
}

// Unspecified 未標示份量
type Unspecified struct{}

func (Exact) isExpression()       {}
func (Fraction) isExpression()    {}
func (Mixed) isExpression()       {}
func (Range) isExpression()       {}
func (Qualitative) isExpression() {}
func (Unspecified) isExpression() {}

func (e Exact) String() string    { return e.Value }
func (f Fraction) String() string { return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator) }
func (m Mixed) String() string {
	return fmt.Sprintf("%d %d/%d", m.Whole, m.Numerator, m.Denominator)
}
func (r Range) String() string       { return r.Low.String() + "-" + r.High.String() }
func (q Qualitative) String() string { return q.Text }
func (Unspecified) String() string   { return "" }

// NewExact parses a decimal literal; a comma decimal separator is accepted.
func NewExact(literal string) (Exact, error) {
	v := strings.Replace(strings.TrimSpace(literal), ",", ".", 1)
	if _, ok := new(big.Rat).SetString(v); !ok || v == "" || strings.ContainsAny(v, "/eE") {
		return Exact{}, fmt.Errorf("%w: %q", ErrInvalidNumber, literal)
	}
	return Exact{Value: v}, nil
}

// NewFraction validates the denominator.
func NewFraction(numerator, denominator int64) (Fraction, error) {
	if denominator <= 0 {
		return Fraction{}, ErrZeroDenominator
	}
	return Fraction{Numerator: numerator, Denominator: denominator}, nil
}

// NewMixed validates the denominator.
func NewMixed(whole, numerator, denominator int64) (Mixed, error) {
	if denominator <= 0 {
		return Mixed{}, ErrZeroDenominator
	}
	return Mixed{Whole: whole, Numerator: numerator, Denominator: denominator}, nil
}

// NewRange requires numeric bounds in ascending order.
func NewRange(low, high Expression) (Range, error) {
	lo, ok := Rat(low)
	if !ok {
		return Range{}, ErrNotNumeric
	}
	hi, ok := Rat(high)
	if !ok {
		return Range{}, ErrNotNumeric
	}
	if lo.Cmp(hi) > 0 {
		return Range{}, fmt.Errorf("%w: %s > %s", ErrDescendingRange, low, high)
	}
	return Range{Low: low, High: high}, nil
}

// Rat returns the exact value of a numeric expression. Ranges evaluate to
// their midpoint. Qualitative and Unspecified report false.
func Rat(e Expression) (*big.Rat, bool) {
	switch v := e.(type) {
	case Exact:
		r, ok := new(big.Rat).SetString(v.Value)
		return r, ok
	case Fraction:
		if v.Denominator <= 0 {
			return nil, false
		}
		return big.NewRat(v.Numerator, v.Denominator), true
	case Mixed:
		if v.Denominator <= 0 {
			return nil, false
		}
		r := big.NewRat(v.Numerator, v.Denominator)
		return r.Add(r, new(big.Rat).SetInt64(v.Whole)), true
	case Range:
		lo, ok := Rat(v.Low)
		if !ok {
			return nil, false
		}
		hi, ok := Rat(v.High)
		if !ok {
			return nil, false
		}
		mid := new(big.Rat).Add(lo, hi)
		return mid.Quo(mid, big.NewRat(2, 1)), true
	}
	return nil, false
}

// IsNumeric reports whether e carries a numeric value.
func IsNumeric(e Expression) bool {
	_, ok := Rat(e)
	return ok
}
