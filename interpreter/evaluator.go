// Package interpreter evaluates parsed formula trees. Formula errors are
// values that propagate through operators, leftmost first; only the cell
// resolver can fail with a Go error, and that surfaces as a bad-reference
// value.
package interpreter

import (
	"strings"

	"github.com/shopspring/decimal"

	"sheets/ast"
	"sheets/ref"
	"sheets/value"
)

// Version is reported by the VERSION() builtin.
const Version = "1.3.0"

// Resolver returns the value of a cell by sheet name and location. Sheet
// names match case-insensitively. It returns an error for a missing sheet
// or an invalid location; an empty cell is a nil value.
type Resolver func(sheet, location string) (value.Value, error)

// Evaluator evaluates formulas in the context of one containing cell.
type Evaluator struct {
	sheet    string // containing sheet, lower-case
	location string // containing location, upper-case
	resolve  Resolver
}

func New(sheet, location string, resolve Resolver) *Evaluator {
	return &Evaluator{
		sheet:    strings.ToLower(sheet),
		location: strings.ToUpper(location),
		resolve:  resolve,
	}
}

func (e *Evaluator) Eval(node ast.Expression) value.Value {
	switch n := node.(type) {
	case *ast.NumberLiteral:
		d, err := decimal.NewFromString(n.Literal)
		if err != nil {
			return value.NewError(value.ParseError, "")
		}
		return value.StripZeros(d)
	case *ast.StringLiteral:
		return n.Value
	case *ast.BooleanLiteral:
		return n.Value
	case *ast.ErrorLiteral:
		return value.ErrorFromLiteral(n.Literal)
	case *ast.ParenExpression:
		return e.Eval(n.Inner)
	case *ast.CellRef:
		return e.evalCellRef(n)
	case *ast.PrefixExpression:
		return e.evalPrefix(n)
	case *ast.InfixExpression:
		return e.evalInfix(n)
	case *ast.CallExpression:
		return e.evalCall(n)
	}
	return value.NewError(value.ParseError, "")
}

func (e *Evaluator) evalCellRef(n *ast.CellRef) value.Value {
	sheet := e.sheet
	if n.HasSheet {
		sheet = strings.ToLower(n.Sheet)
	}
	location := strings.ToUpper(ref.StripAbsolute(n.Location))
	// A reference back to the cell under evaluation is a circular
	// reference regardless of what the update engine later decides.
	if sheet == e.sheet && location == e.location {
		return value.NewError(value.CircularReference, "")
	}
	v, err := e.resolve(sheet, location)
	if err != nil {
		return value.NewError(value.BadReference, "")
	}
	return v
}

func (e *Evaluator) evalPrefix(n *ast.PrefixExpression) value.Value {
	v := value.ToDecimal(e.Eval(n.Right))
	if err, ok := v.(*value.Error); ok {
		return err
	}
	d := v.(decimal.Decimal)
	if n.Operator == "-" {
		return d.Neg()
	}
	return d
}

func (e *Evaluator) evalInfix(n *ast.InfixExpression) value.Value {
	switch n.Operator {
	case "+", "-", "*", "/":
		return e.evalArithmetic(n)
	case "&":
		return e.evalConcat(n)
	default:
		return e.evalComparison(n)
	}
}

func (e *Evaluator) evalArithmetic(n *ast.InfixExpression) value.Value {
	left := value.ToDecimal(e.Eval(n.Left))
	if err, ok := left.(*value.Error); ok {
		return err
	}
	right := value.ToDecimal(e.Eval(n.Right))
	if err, ok := right.(*value.Error); ok {
		return err
	}
	a := left.(decimal.Decimal)
	b := right.(decimal.Decimal)
	switch n.Operator {
	case "+":
		return a.Add(b)
	case "-":
		return a.Sub(b)
	case "*":
		return a.Mul(b)
	case "/":
		if b.IsZero() {
			return value.NewError(value.DivideByZero, "")
		}
		return a.Div(b)
	}
	return value.NewError(value.ParseError, "")
}

func (e *Evaluator) evalConcat(n *ast.InfixExpression) value.Value {
	left := e.Eval(n.Left)
	if err, ok := left.(*value.Error); ok {
		return err
	}
	right := e.Eval(n.Right)
	if err, ok := right.(*value.Error); ok {
		return err
	}
	return value.ToText(left) + value.ToText(right)
}

func (e *Evaluator) evalComparison(n *ast.InfixExpression) value.Value {
	left := e.Eval(n.Left)
	if err, ok := left.(*value.Error); ok {
		return err
	}
	right := e.Eval(n.Right)
	if err, ok := right.(*value.Error); ok {
		return err
	}
	// Two blanks compare as zero; a single blank takes the zero value of
	// the other operand's type.
	if left == nil && right == nil {
		left, right = decimal.Zero, decimal.Zero
	}
	if left == nil {
		left = value.Zero(value.TypeOf(right))
	}
	if right == nil {
		right = value.Zero(value.TypeOf(left))
	}

	cmp := compare(left, right)
	switch n.Operator {
	case "=", "==":
		return cmp == 0
	case "<>", "!=":
		return cmp != 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	}
	return value.NewError(value.ParseError, "")
}

// compare orders two non-blank, non-error values. Values of different types
// order by type rank (number < string < boolean); strings compare
// case-insensitively.
func compare(left, right value.Value) int {
	t1, t2 := value.TypeOf(left), value.TypeOf(right)
	if t1 != t2 {
		return int(t1) - int(t2)
	}
	switch a := left.(type) {
	case decimal.Decimal:
		return a.Cmp(right.(decimal.Decimal))
	case string:
		return strings.Compare(strings.ToLower(a), strings.ToLower(right.(string)))
	case bool:
		b := right.(bool)
		switch {
		case a == b:
			return 0
		case b:
			return -1
		default:
			return 1
		}
	}
	return 0
}

func (e *Evaluator) evalCall(n *ast.CallExpression) value.Value {
	fn := lookupBuiltin(n.Name)
	if fn == nil {
		return value.NewError(value.BadName, `function "`+n.Name+`" not found`)
	}
	args := make([]Thunk, len(n.Arguments))
	for i, arg := range n.Arguments {
		arg := arg
		args[i] = func() value.Value { return e.Eval(arg) }
	}
	return fn(e, args)
}
