package ast

import (
	"strings"

	"sheets/ref"
)

// Reference identifies a cell as (sheet name lower-cased, location
// upper-cased with absolute markers stripped).
type Reference struct {
	Sheet    string
	Location string
}

// Dependencies collects every cell reference occurring in the tree.
// Unqualified references take the containing cell's sheet name. The result
// is de-duplicated.
func Dependencies(e Expression, containingSheet string) []Reference {
	seen := make(map[Reference]struct{})
	var out []Reference
	walk(e, func(cr *CellRef) {
		sheet := containingSheet
		if cr.HasSheet {
			sheet = cr.Sheet
		}
		r := Reference{
			Sheet:    strings.ToLower(sheet),
			Location: strings.ToUpper(ref.StripAbsolute(cr.Location)),
		}
		if _, ok := seen[r]; !ok {
			seen[r] = struct{}{}
			out = append(out, r)
		}
	})
	return out
}

func walk(e Expression, visit func(*CellRef)) {
	switch n := e.(type) {
	case *CellRef:
		visit(n)
	case *PrefixExpression:
		walk(n.Right, visit)
	case *InfixExpression:
		walk(n.Left, visit)
		walk(n.Right, visit)
	case *ParenExpression:
		walk(n.Inner, visit)
	case *CallExpression:
		for _, arg := range n.Arguments {
			walk(arg, visit)
		}
	}
}

// RenameSheet rewrites every reference whose sheet component matches old
// (case-insensitively) to use the new name, re-deciding quoting for the new
// name. Reports changed=false, with the tree untouched, when no reference
// matches.
func RenameSheet(e Expression, old, new string) (Expression, bool) {
	matches := false
	walk(e, func(cr *CellRef) {
		if cr.HasSheet && strings.EqualFold(cr.Sheet, old) {
			matches = true
		}
	})
	if !matches {
		return e, false
	}
	return rewrite(e, func(cr *CellRef) Expression {
		if !cr.HasSheet || !strings.EqualFold(cr.Sheet, old) {
			return cr
		}
		return &CellRef{
			Token:    cr.Token,
			HasSheet: true,
			Sheet:    new,
			Quoted:   !bareSheetName(new),
			Location: cr.Location,
		}
	}), true
}

// Translate rewrites every cell reference under the given offset. Locked
// components stay in place; references that leave the valid area become a
// #REF! literal so the surrounding formula stays well-formed and that
// subexpression evaluates to a bad-reference error.
func Translate(e Expression, dcol, drow int) Expression {
	return rewrite(e, func(cr *CellRef) Expression {
		loc, ok := ref.Translate(cr.Location, dcol, drow)
		if !ok {
			return &ErrorLiteral{Token: cr.Token, Literal: "#REF!"}
		}
		return &CellRef{
			Token:    cr.Token,
			HasSheet: cr.HasSheet,
			Sheet:    cr.Sheet,
			Quoted:   cr.Quoted,
			Location: loc,
		}
	})
}

// rewrite rebuilds the tree, replacing each CellRef with the result of fn.
// Untouched subtrees are shared, not cloned; trees are immutable once
// built.
func rewrite(e Expression, fn func(*CellRef) Expression) Expression {
	switch n := e.(type) {
	case *CellRef:
		return fn(n)
	case *PrefixExpression:
		right := rewrite(n.Right, fn)
		if right == n.Right {
			return n
		}
		return &PrefixExpression{Token: n.Token, Operator: n.Operator, Right: right}
	case *InfixExpression:
		left, right := rewrite(n.Left, fn), rewrite(n.Right, fn)
		if left == n.Left && right == n.Right {
			return n
		}
		return &InfixExpression{
			Token:    n.Token,
			Left:     left,
			Operator: n.Operator,
			Right:    right,
		}
	case *ParenExpression:
		inner := rewrite(n.Inner, fn)
		if inner == n.Inner {
			return n
		}
		return &ParenExpression{Token: n.Token, Inner: inner}
	case *CallExpression:
		args := make([]Expression, len(n.Arguments))
		changed := false
		for i, arg := range n.Arguments {
			args[i] = rewrite(arg, fn)
			changed = changed || args[i] != arg
		}
		if !changed {
			return n
		}
		return &CallExpression{Token: n.Token, Name: n.Name, Arguments: args}
	default:
		return e
	}
}
