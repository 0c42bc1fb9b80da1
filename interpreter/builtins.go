package interpreter

import (
	"strings"

	"github.com/shopspring/decimal"

	"sheets/ast"
	"sheets/parser"
	"sheets/value"
)

// Thunk defers evaluation of one argument subexpression. Builtins invoke
// only the thunks they need, which is what gives IF, IFERROR and CHOOSE
// their short-circuit behavior.
type Thunk func() value.Value

// BuiltinFunc is a builtin formula function.
type BuiltinFunc func(e *Evaluator, args []Thunk) value.Value

var builtins = map[string]BuiltinFunc{
	"and":      builtinAnd,
	"or":       builtinOr,
	"not":      builtinNot,
	"xor":      builtinXor,
	"exact":    builtinExact,
	"if":       builtinIf,
	"iferror":  builtinIfError,
	"choose":   builtinChoose,
	"isblank":  builtinIsBlank,
	"iserror":  builtinIsError,
	"version":  builtinVersion,
	"indirect": builtinIndirect,
	"min":      builtinMin,
	"max":      builtinMax,
	"sum":      builtinSum,
	"average":  builtinAverage,
}

func lookupBuiltin(name string) BuiltinFunc {
	return builtins[strings.ToLower(name)]
}

func typeError(msg string) *value.Error {
	return value.NewError(value.TypeError, msg)
}

// evalBools evaluates every argument in boolean context, reporting the
// first (leftmost) error.
func evalBools(args []Thunk) ([]bool, *value.Error) {
	out := make([]bool, len(args))
	for i, arg := range args {
		v := value.ToBool(arg())
		if err, ok := v.(*value.Error); ok {
			return nil, err
		}
		out[i] = v.(bool)
	}
	return out, nil
}

func builtinAnd(_ *Evaluator, args []Thunk) value.Value {
	if len(args) == 0 {
		return typeError("AND requires at least one argument")
	}
	vals, err := evalBools(args)
	if err != nil {
		return err
	}
	res := true
	for _, v := range vals {
		res = res && v
	}
	return res
}

func builtinOr(_ *Evaluator, args []Thunk) value.Value {
	if len(args) == 0 {
		return typeError("OR requires at least one argument")
	}
	vals, err := evalBools(args)
	if err != nil {
		return err
	}
	res := false
	for _, v := range vals {
		res = res || v
	}
	return res
}

func builtinNot(_ *Evaluator, args []Thunk) value.Value {
	if len(args) != 1 {
		return typeError("NOT requires exactly one argument")
	}
	v := value.ToBool(args[0]())
	if err, ok := v.(*value.Error); ok {
		return err
	}
	return !v.(bool)
}

func builtinXor(_ *Evaluator, args []Thunk) value.Value {
	if len(args) == 0 {
		return typeError("XOR requires at least one argument")
	}
	vals, err := evalBools(args)
	if err != nil {
		return err
	}
	res := false
	for _, v := range vals {
		res = res != v
	}
	return res
}

func builtinExact(_ *Evaluator, args []Thunk) value.Value {
	if len(args) != 2 {
		return typeError("EXACT requires exactly two arguments")
	}
	left := args[0]()
	if err, ok := left.(*value.Error); ok {
		return err
	}
	right := args[1]()
	if err, ok := right.(*value.Error); ok {
		return err
	}
	return value.ToText(left) == value.ToText(right)
}

func builtinIf(_ *Evaluator, args []Thunk) value.Value {
	if len(args) != 2 && len(args) != 3 {
		return typeError("IF requires 2 or 3 arguments")
	}
	cond := value.ToBool(args[0]())
	if err, ok := cond.(*value.Error); ok {
		return err
	}
	if cond.(bool) {
		return args[1]()
	}
	if len(args) == 2 {
		return false
	}
	return args[2]()
}

func builtinIfError(_ *Evaluator, args []Thunk) value.Value {
	if len(args) != 1 && len(args) != 2 {
		return typeError("IFERROR requires 1 or 2 arguments")
	}
	v := args[0]()
	if _, ok := v.(*value.Error); !ok {
		return v
	}
	if len(args) == 2 {
		return args[1]()
	}
	return ""
}

func builtinChoose(_ *Evaluator, args []Thunk) value.Value {
	if len(args) < 2 {
		return typeError("CHOOSE requires at least 2 arguments")
	}
	v := value.ToDecimal(args[0]())
	if err, ok := v.(*value.Error); ok {
		return err
	}
	d := v.(decimal.Decimal)
	if !d.IsInteger() {
		return typeError("CHOOSE requires an integer index")
	}
	index := int(d.IntPart())
	if index < 1 || index >= len(args) {
		return typeError("index out of bounds")
	}
	return args[index]()
}

func builtinIsBlank(_ *Evaluator, args []Thunk) value.Value {
	if len(args) != 1 {
		return typeError("ISBLANK requires exactly one argument")
	}
	return args[0]() == nil
}

func builtinIsError(_ *Evaluator, args []Thunk) value.Value {
	if len(args) != 1 {
		return typeError("ISERROR requires exactly one argument")
	}
	_, ok := args[0]().(*value.Error)
	return ok
}

func builtinVersion(_ *Evaluator, args []Thunk) value.Value {
	if len(args) != 0 {
		return typeError("VERSION requires exactly 0 arguments")
	}
	return Version
}

func builtinIndirect(e *Evaluator, args []Thunk) value.Value {
	if len(args) != 1 {
		return typeError("INDIRECT requires exactly one argument")
	}
	v := args[0]()
	if err, ok := v.(*value.Error); ok {
		return err
	}
	tree, err := parser.Parse("=" + value.ToText(v))
	if err != nil {
		return value.NewError(value.BadReference, "")
	}
	cellRef, ok := tree.(*ast.CellRef)
	if !ok {
		return typeError("invalid cell reference")
	}
	return e.evalCellRef(cellRef)
}

// evalDecimals evaluates every argument in numeric context, reporting the
// first (leftmost) error.
func evalDecimals(args []Thunk) ([]decimal.Decimal, *value.Error) {
	out := make([]decimal.Decimal, len(args))
	for i, arg := range args {
		v := value.ToDecimal(arg())
		if err, ok := v.(*value.Error); ok {
			return nil, err
		}
		out[i] = v.(decimal.Decimal)
	}
	return out, nil
}

func builtinMin(_ *Evaluator, args []Thunk) value.Value {
	if len(args) < 1 {
		return typeError("MIN requires at least 1 argument")
	}
	vals, err := evalDecimals(args)
	if err != nil {
		return err
	}
	min := vals[0]
	for _, v := range vals[1:] {
		if v.LessThan(min) {
			min = v
		}
	}
	return min
}

func builtinMax(_ *Evaluator, args []Thunk) value.Value {
	if len(args) < 1 {
		return typeError("MAX requires at least 1 argument")
	}
	vals, err := evalDecimals(args)
	if err != nil {
		return err
	}
	max := vals[0]
	for _, v := range vals[1:] {
		if v.GreaterThan(max) {
			max = v
		}
	}
	return max
}

func builtinSum(_ *Evaluator, args []Thunk) value.Value {
	if len(args) < 1 {
		return typeError("SUM requires at least 1 argument")
	}
	vals, err := evalDecimals(args)
	if err != nil {
		return err
	}
	sum := decimal.Zero
	for _, v := range vals {
		sum = sum.Add(v)
	}
	return sum
}

func builtinAverage(_ *Evaluator, args []Thunk) value.Value {
	if len(args) < 1 {
		return typeError("AVERAGE requires at least 1 argument")
	}
	vals, err := evalDecimals(args)
	if err != nil {
		return err
	}
	sum := decimal.Zero
	for _, v := range vals {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(vals))))
}
