package workbook

import (
	"strings"

	"sheets/ast"
	"sheets/interpreter"
	"sheets/ref"
	"sheets/value"
)

// CellKey identifies a cell in snapshots and change notifications. Sheet
// carries the original display case.
type CellKey struct {
	Sheet    string
	Location string
}

// Sheet maps coordinates to cells. The name keeps its original case; the
// workbook enforces case-insensitive uniqueness.
type Sheet struct {
	name    string
	cells   map[ref.Coord]*Cell
	resolve interpreter.Resolver
}

func newSheet(name string, resolve interpreter.Resolver) *Sheet {
	return &Sheet{
		name:    name,
		cells:   make(map[ref.Coord]*Cell),
		resolve: resolve,
	}
}

// Name returns the sheet name in its original case.
func (s *Sheet) Name() string {
	return s.name
}

// SetCellContents stores trimmed contents at the location. Empty or
// whitespace-only contents delete the cell.
func (s *Sheet) SetCellContents(location, contents string) error {
	coord, err := ref.ParseLocation(location)
	if err != nil {
		return err
	}
	contents = strings.TrimSpace(contents)
	if contents == "" {
		delete(s.cells, coord)
		return nil
	}
	s.cells[coord] = newCell(s.name, location, contents, s.resolve)
	return nil
}

// GetCell returns the cell at the location, or nil for an empty cell.
func (s *Sheet) GetCell(location string) (*Cell, error) {
	coord, err := ref.ParseLocation(location)
	if err != nil {
		return nil, err
	}
	return s.cells[coord], nil
}

// GetCellContents returns the stored contents, or "" for an empty cell.
func (s *Sheet) GetCellContents(location string) (string, error) {
	cell, err := s.GetCell(location)
	if err != nil {
		return "", err
	}
	if cell == nil {
		return "", nil
	}
	return cell.Contents(), nil
}

// GetCellValue returns the computed value; empty cells are blank (nil).
func (s *Sheet) GetCellValue(location string) (value.Value, error) {
	cell, err := s.GetCell(location)
	if err != nil {
		return nil, err
	}
	if cell == nil {
		return nil, nil
	}
	return cell.Value(), nil
}

// Extent returns the maximum populated (column, row), or (0, 0) for an
// empty sheet.
func (s *Sheet) Extent() (int, int) {
	maxCol, maxRow := 0, 0
	for coord := range s.cells {
		if coord.Col > maxCol {
			maxCol = coord.Col
		}
		if coord.Row > maxRow {
			maxRow = coord.Row
		}
	}
	return maxCol, maxRow
}

// snapshot records every populated cell's value keyed by (display name,
// location).
func (s *Sheet) snapshot(into map[CellKey]value.Value) {
	for coord, cell := range s.cells {
		into[CellKey{Sheet: s.name, Location: ref.FormatLocation(coord)}] = cell.Value()
	}
}

// dependencyGraph adds this sheet's adjacency lists: each populated cell
// maps to the references its formula mentions.
func (s *Sheet) dependencyGraph(into map[ast.Reference][]ast.Reference) {
	lower := strings.ToLower(s.name)
	for coord, cell := range s.cells {
		vertex := ast.Reference{Sheet: lower, Location: ref.FormatLocation(coord)}
		into[vertex] = cell.Dependencies()
	}
}

func (s *Sheet) markCyclical(location string) {
	cell, err := s.GetCell(location)
	if err != nil || cell == nil {
		return
	}
	cell.MarkCyclical()
}

// renameSheet renames this sheet when it matches old, and rewrites every
// cell's formula for the rename.
func (s *Sheet) renameSheet(old, new string) {
	if strings.EqualFold(s.name, old) {
		s.name = new
	}
	for _, cell := range s.cells {
		cell.RenameSheet(old, new)
	}
}

// copyFrom populates this sheet with the contents of another.
func (s *Sheet) copyFrom(other *Sheet) {
	for coord, cell := range other.cells {
		s.cells[coord] = newCell(s.name, ref.FormatLocation(coord), cell.Contents(), s.resolve)
	}
}

// CopyCells returns a range bundle for the axis-aligned bounding box of the
// two corner locations. The source sheet is unchanged.
func (s *Sheet) CopyCells(startLocation, endLocation string) (*SheetRange, error) {
	start, err := ref.ParseLocation(startLocation)
	if err != nil {
		return nil, err
	}
	end, err := ref.ParseLocation(endLocation)
	if err != nil {
		return nil, err
	}
	min, max := ref.Bounds(start, end)
	cells := make(map[ref.Coord]Contents)
	for coord, cell := range s.cells {
		if ref.InRange(coord, min, max) {
			cells[coord] = newContents(cell.Contents(), cell.Tree())
		}
	}
	return &SheetRange{origin: min, cells: cells}, nil
}

// CutCells is CopyCells followed by deleting the copied cells.
func (s *Sheet) CutCells(startLocation, endLocation string) (*SheetRange, error) {
	r, err := s.CopyCells(startLocation, endLocation)
	if err != nil {
		return nil, err
	}
	for coord := range r.cells {
		delete(s.cells, coord)
	}
	return r, nil
}

// PasteCells inserts a range bundle with its origin at the given location,
// translating each formula by the move offset.
func (s *Sheet) PasteCells(toLocation string, r *SheetRange) error {
	origin, err := ref.ParseLocation(toLocation)
	if err != nil {
		return err
	}
	translated, err := r.translated(origin)
	if err != nil {
		return err
	}
	for coord, contents := range translated {
		s.cells[coord] = newCellFromContents(s.name, ref.FormatLocation(coord), contents, s.resolve)
	}
	return nil
}

// saveContents returns the sheet's stored contents keyed by location, the
// shape used by the JSON format.
func (s *Sheet) saveContents() map[string]string {
	out := make(map[string]string, len(s.cells))
	for coord, cell := range s.cells {
		out[ref.FormatLocation(coord)] = cell.Contents()
	}
	return out
}
