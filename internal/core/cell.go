package core

import (
	"math"
	"strconv"
)

// CellKind identifies which variant a Cell holds.
type CellKind uint8

const (
	// KindMissing is an absent value: an empty spreadsheet cell, or a column
	// that did not exist in the source file.
	KindMissing CellKind = iota
	KindText
	KindNumber
)

func (k CellKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	default:
		return "missing"
	}
}

// maxExactInt is the largest magnitude at which every integer is exactly
// representable as a float64.
const maxExactInt = 1 << 53

// Cell is a single spreadsheet value. The zero value is Missing.
type Cell struct {
	kind CellKind
	text string
	num  float64
}

// Text returns a text cell.
func Text(s string) Cell { return Cell{kind: KindText, text: s} }

// Number returns a numeric cell.
func Number(v float64) Cell { return Cell{kind: KindNumber, num: v} }

// Missing returns an absent cell.
func Missing() Cell { return Cell{} }

// Kind reports the variant held by c.
func (c Cell) Kind() CellKind { return c.kind }

// IsMissing reports whether c holds no value.
func (c Cell) IsMissing() bool { return c.kind == KindMissing }

// String renders the cell as text.
//
// Integral numbers below 2^53 are written without a fractional part, so a
// phone number stored as 9998887776 renders as "9998887776", never
// "9998887776.0". Other numbers use the shortest decimal form that round-trips,
// without an exponent. Missing renders as "".
func (c Cell) String() string {
	switch c.kind {
	case KindText:
		return c.text
	case KindNumber:
		return formatNumber(c.num)
	default:
		return ""
	}
}

func formatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	if v == math.Trunc(v) && math.Abs(v) < maxExactInt {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
