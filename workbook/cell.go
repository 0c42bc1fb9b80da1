// Package workbook implements the spreadsheet engine: cells, sheets, the
// workbook façade, and the update transaction that recomputes dependent
// cells and notifies listeners after every mutation.
package workbook

import (
	"strings"

	"github.com/shopspring/decimal"

	"sheets/ast"
	"sheets/interpreter"
	"sheets/parser"
	"sheets/value"
)

// Cell owns one cell's contents, its parsed formula tree (when contents are
// a formula that parses), its computed value and its dependency list. Cells
// never point at other Cell objects; the dependency relation lives in the
// workbook's graph.
type Cell struct {
	sheet    string // owning sheet name, lower-case
	location string // upper-case
	contents string
	tree     ast.Expression
	value    value.Value
	deps     []ast.Reference
	resolve  interpreter.Resolver
}

// newCell builds a cell from trimmed, non-empty contents and evaluates it
// once. The immediate evaluation may be stale if the cell participates in a
// cycle; the update transaction corrects that afterwards.
func newCell(sheet, location, contents string, resolve interpreter.Resolver) *Cell {
	c := &Cell{
		sheet:    strings.ToLower(sheet),
		location: strings.ToUpper(location),
		contents: contents,
		resolve:  resolve,
	}
	if strings.HasPrefix(contents, "=") {
		if tree, err := parser.Parse(contents); err == nil {
			c.tree = tree
		}
	}
	c.calculateDependencies()
	c.RecomputeValue()
	return c
}

// newCellFromContents builds a cell from a range-bundle Contents, reusing
// its already-translated tree instead of reparsing.
func newCellFromContents(sheet, location string, contents Contents, resolve interpreter.Resolver) *Cell {
	c := &Cell{
		sheet:    strings.ToLower(sheet),
		location: strings.ToUpper(location),
		contents: contents.text,
		tree:     contents.tree,
		resolve:  resolve,
	}
	c.calculateDependencies()
	c.RecomputeValue()
	return c
}

func (c *Cell) Contents() string {
	return c.contents
}

// Tree returns the parsed formula tree, or nil. Trees are immutable once
// built, so the shared structure is safe to hand out.
func (c *Cell) Tree() ast.Expression {
	return c.tree
}

func (c *Cell) Value() value.Value {
	return c.value
}

// Dependencies returns the cell references occurring in the formula,
// de-duplicated, with sheet names lower-cased and locations upper-cased.
func (c *Cell) Dependencies() []ast.Reference {
	return c.deps
}

func (c *Cell) calculateDependencies() {
	if c.tree == nil {
		c.deps = nil
		return
	}
	c.deps = ast.Dependencies(c.tree, c.sheet)
}

// RenameSheet rewrites the cell for a sheet rename: its owning reference if
// the cell lives on the renamed sheet, and its formula text if the formula
// mentions the old name.
func (c *Cell) RenameSheet(old, new string) {
	if strings.EqualFold(c.sheet, old) {
		c.sheet = strings.ToLower(new)
	}
	if c.tree != nil {
		if tree, changed := ast.RenameSheet(c.tree, old, new); changed {
			c.tree = tree
			c.contents = ast.Formula(tree)
		}
	}
	c.calculateDependencies()
}

// MarkCyclical forces the value to a circular-reference error. The update
// transaction calls this for every member of a dependency cycle.
func (c *Cell) MarkCyclical() {
	c.value = value.NewError(value.CircularReference, "")
}

// RecomputeValue re-evaluates the cell from its contents.
func (c *Cell) RecomputeValue() {
	if strings.HasPrefix(c.contents, "=") {
		c.recomputeFormula()
		return
	}
	c.value = value.ParseLiteral(c.contents)
}

func (c *Cell) recomputeFormula() {
	if c.tree == nil {
		c.value = value.NewError(value.ParseError, "")
		return
	}
	e := interpreter.New(c.sheet, c.location, c.resolve)
	v := e.Eval(c.tree)
	if d, ok := v.(decimal.Decimal); ok {
		v = value.StripZeros(d)
	}
	c.value = v
}
