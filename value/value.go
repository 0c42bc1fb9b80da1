// Package value defines the cell value model: a cell value is exactly one
// of blank (nil), decimal number, text, boolean, or *Error, plus the
// coercion ladder between them used by the formula evaluator.
package value

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Value holds a cell value: nil (blank), decimal.Decimal, string, bool, or
// *Error.
type Value = any

// Type orders the value types for comparison purposes:
// number < string < boolean.
type Type int

const (
	TypeBlank Type = iota
	TypeNumber
	TypeString
	TypeBool
)

// TypeOf reports the type of a non-error value.
func TypeOf(v Value) Type {
	switch v.(type) {
	case nil:
		return TypeBlank
	case decimal.Decimal:
		return TypeNumber
	case string:
		return TypeString
	case bool:
		return TypeBool
	}
	panic("value: unreachable type")
}

// Zero returns the zero value of the given type: 0, "", or FALSE.
func Zero(t Type) Value {
	switch t {
	case TypeNumber:
		return decimal.Zero
	case TypeString:
		return ""
	case TypeBool:
		return false
	}
	return nil
}

// StripZeros removes trailing fractional zeros so that 50.00 stores as 50
// and 1.000 as 1.
func StripZeros(d decimal.Decimal) decimal.Decimal {
	s := d.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
		out, err := decimal.NewFromString(s)
		if err == nil {
			return out
		}
	}
	return d
}

// ToDecimal coerces a value for arithmetic: blank is 0, booleans are 1/0,
// strings parse as decimals (whitespace-trimmed), errors pass through, and
// anything unparsable is a TYPE_ERROR.
func ToDecimal(v Value) Value {
	switch v := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return v
	case *Error:
		return v
	case bool:
		if v {
			return decimal.NewFromInt(1)
		}
		return decimal.Zero
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return NewError(TypeError, "")
		}
		return d
	}
	return NewError(TypeError, "")
}

// ToBool coerces a value for boolean context: blank is FALSE, numbers are
// x != 0, and strings match "true"/"false" case-insensitively.
func ToBool(v Value) Value {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case *Error:
		return v
	case string:
		if strings.EqualFold(v, "true") {
			return true
		}
		if strings.EqualFold(v, "false") {
			return false
		}
		return NewError(TypeError, "failed to convert string to bool")
	case decimal.Decimal:
		return !v.IsZero()
	}
	panic("value: unreachable type")
}

// ToText coerces a non-error value for concatenation: blank is "", booleans
// are "TRUE"/"FALSE", numbers are their stripped text form.
func ToText(v Value) string {
	switch v := v.(type) {
	case nil:
		return ""
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case decimal.Decimal:
		return StripZeros(v).String()
	case string:
		return v
	}
	panic("value: unreachable type")
}

// ParseLiteral interprets non-formula cell contents as a value: an error
// literal, a boolean, a number, or failing those, the text itself. Contents
// starting with an apostrophe are explicit text.
func ParseLiteral(contents string) Value {
	if strings.HasPrefix(contents, "'") {
		return contents[1:]
	}
	if err := ErrorFromLiteral(contents); err != nil {
		return err
	}
	if strings.EqualFold(contents, "true") {
		return true
	}
	if strings.EqualFold(contents, "false") {
		return false
	}
	if d, err := decimal.NewFromString(contents); err == nil {
		return StripZeros(d)
	}
	return contents
}

// Display renders a value the way a grid or terminal shows it. Blank cells
// render empty, errors render as their literal.
func Display(v Value) string {
	if err, ok := v.(*Error); ok {
		return err.Literal()
	}
	return ToText(v)
}

// Equal compares two cell values for observable equality. Decimals compare
// numerically so that snapshot diffs do not report representation changes.
func Equal(a, b Value) bool {
	if da, ok := a.(decimal.Decimal); ok {
		db, ok := b.(decimal.Decimal)
		return ok && da.Equal(db)
	}
	if ea, ok := a.(*Error); ok {
		eb, ok := b.(*Error)
		return ok && ea.Kind == eb.Kind
	}
	return a == b
}
