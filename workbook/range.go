package workbook

import (
	"errors"
	"strings"

	"sheets/ast"
	"sheets/parser"
	"sheets/ref"
)

// ErrOutOfBounds is returned when a paste target would place cells outside
// the valid area (beyond ZZZZ9999). The operation makes no changes.
var ErrOutOfBounds = errors.New("target area out of bounds")

// Contents carries a cell's source text together with its parsed tree, so
// that copy/cut/paste translates formulas once, at paste time. It has no
// mutating methods and may be shared between cells.
type Contents struct {
	text string
	tree ast.Expression
}

func newContents(text string, tree ast.Expression) Contents {
	if tree == nil && strings.HasPrefix(text, "=") {
		tree, _ = parser.Parse(text)
	}
	return Contents{text: text, tree: tree}
}

// translated returns the contents rewritten under the given offset.
// Non-formula contents translate to themselves.
func (c Contents) translated(dcol, drow int) Contents {
	if c.tree == nil {
		return c
	}
	tree := ast.Translate(c.tree, dcol, drow)
	return Contents{text: ast.Formula(tree), tree: tree}
}

// SheetRange is the portable bundle produced by copy/cut and consumed by
// exactly one paste: an origin plus the cells of the region keyed by their
// absolute coordinates.
type SheetRange struct {
	origin ref.Coord
	cells  map[ref.Coord]Contents
}

// translated shifts the bundle so its origin lands on the given coordinate,
// translating each cell's formula by the same offset. Returns
// ErrOutOfBounds if any translated coordinate leaves the sheet area.
func (r *SheetRange) translated(origin ref.Coord) (map[ref.Coord]Contents, error) {
	dcol := origin.Col - r.origin.Col
	drow := origin.Row - r.origin.Row
	out := make(map[ref.Coord]Contents, len(r.cells))
	for coord, contents := range r.cells {
		moved := ref.Coord{Col: coord.Col + dcol, Row: coord.Row + drow}
		if moved.Col < 1 || moved.Col > ref.MaxCol || moved.Row < 1 || moved.Row > ref.MaxRow {
			return nil, ErrOutOfBounds
		}
		out[moved] = contents.translated(dcol, drow)
	}
	return out, nil
}
