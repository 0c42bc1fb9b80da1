package workbook

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/exp/slices"

	"sheets/ast"
	"sheets/graph"
	"sheets/ref"
	"sheets/value"
)

var (
	// ErrSheetNotFound is returned when no sheet matches a requested name
	// (case-insensitively).
	ErrSheetNotFound = errors.New("sheet not found")
	// ErrSheetExists is returned when a sheet name would collide
	// case-insensitively with an existing one.
	ErrSheetExists = errors.New("sheet already exists")
	// ErrInvalidSheetName is returned for empty names, names with leading
	// or trailing whitespace, or names with characters outside the allowed
	// set.
	ErrInvalidSheetName = errors.New("invalid sheet name")
	// ErrIndexOutOfRange is returned by MoveSheet for a target index
	// outside 0..NumSheets()-1.
	ErrIndexOutOfRange = errors.New("index out of range")
)

var sheetNameRegexp = regexp.MustCompile(`^[A-Za-z0-9.?!,:;!@#$%^&*()\-_ ]+$`)

func validSheetName(name string) bool {
	if name == "" || strings.TrimSpace(name) != name {
		return false
	}
	return sheetNameRegexp.MatchString(name)
}

// NotifyFunc receives the workbook and the set of cells whose observable
// value changed during one update transaction. It must not mutate either.
type NotifyFunc func(wb *Workbook, changed []CellKey)

// Workbook is an ordered collection of uniquely named sheets. Every
// mutating operation runs inside an update transaction: snapshot, mutate,
// rebuild the dependency graph, mark cycles, recompute in topological
// order, snapshot again, and notify listeners with the difference.
//
// A workbook is not safe for concurrent mutation; the caller serialises.
type Workbook struct {
	sheets []*Sheet
	notify []NotifyFunc
	count  int
}

func New() *Workbook {
	return &Workbook{}
}

// NumSheets returns the number of sheets in the workbook.
func (wb *Workbook) NumSheets() int {
	return len(wb.sheets)
}

// ListSheets returns the sheet names in order, in their original case.
func (wb *Workbook) ListSheets() []string {
	out := make([]string, len(wb.sheets))
	for i, s := range wb.sheets {
		out[i] = s.Name()
	}
	return out
}

// NotifyCellsChanged registers a notification function. Functions are
// called in registration order; a function registered twice is called
// twice. A panicking notifier never affects the update or later notifiers.
func (wb *Workbook) NotifyCellsChanged(fn NotifyFunc) {
	wb.notify = append(wb.notify, fn)
}

// NewSheet adds a sheet. An empty name picks the next free default name
// ("Sheet1", "Sheet2", …). Returns the new sheet's index and name.
func (wb *Workbook) NewSheet(name string) (int, string, error) {
	if name == "" {
		wb.count++
		name = fmt.Sprintf("Sheet%d", wb.count)
		for wb.sheetIndex(name) >= 0 {
			wb.count++
			name = fmt.Sprintf("Sheet%d", wb.count)
		}
	} else {
		if !validSheetName(name) {
			return 0, "", ErrInvalidSheetName
		}
		if wb.sheetIndex(name) >= 0 {
			return 0, "", fmt.Errorf("%w: %q", ErrSheetExists, name)
		}
		wb.count++
	}

	wb.update(nil, func() {
		wb.sheets = append(wb.sheets, newSheet(name, wb.resolveCellValue))
	})
	return len(wb.sheets) - 1, name, nil
}

// DelSheet removes the named sheet. Cells referencing it evaluate to a
// bad-reference error afterwards.
func (wb *Workbook) DelSheet(name string) error {
	index := wb.sheetIndex(name)
	if index < 0 {
		return fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	wb.update(nil, func() {
		wb.sheets = append(wb.sheets[:index], wb.sheets[index+1:]...)
	})
	return nil
}

// RenameSheet renames a sheet and rewrites every formula referencing the
// old name, re-quoting the new name as needed.
func (wb *Workbook) RenameSheet(name, newName string) error {
	if !validSheetName(newName) {
		return ErrInvalidSheetName
	}
	if wb.sheetIndex(name) < 0 {
		return fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	if wb.sheetIndex(newName) >= 0 {
		return fmt.Errorf("%w: %q", ErrSheetExists, newName)
	}
	wb.update(nil, func() {
		for _, s := range wb.sheets {
			s.renameSheet(name, newName)
		}
	})
	return nil
}

// MoveSheet moves the named sheet to the given index, as if it were
// removed and re-inserted there. Sheet order carries no dependency
// meaning, so no recompute happens.
func (wb *Workbook) MoveSheet(name string, index int) error {
	current := wb.sheetIndex(name)
	if current < 0 {
		return fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	if index < 0 || index >= len(wb.sheets) {
		return ErrIndexOutOfRange
	}
	s := wb.sheets[current]
	wb.sheets = append(wb.sheets[:current], wb.sheets[current+1:]...)
	wb.sheets = append(wb.sheets[:index], append([]*Sheet{s}, wb.sheets[index:]...)...)
	return nil
}

// CopySheet duplicates a sheet cell-by-cell. The copy's name appends "_1",
// "_2", … until case-insensitively unique, and the copy lands at the end
// of the sheet order.
func (wb *Workbook) CopySheet(name string) (int, string, error) {
	index := wb.sheetIndex(name)
	if index < 0 {
		return 0, "", fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	src := wb.sheets[index]

	copyName := name + "_1"
	for n := 2; wb.sheetIndex(copyName) >= 0; n++ {
		copyName = fmt.Sprintf("%s_%d", name, n)
	}

	wb.update(nil, func() {
		copied := newSheet(copyName, wb.resolveCellValue)
		wb.sheets = append(wb.sheets, copied)
		copied.copyFrom(src)
	})
	return len(wb.sheets) - 1, copyName, nil
}

// SetCellContents sets a cell's contents. Empty or whitespace-only
// contents delete the cell. Invalid formulas do not fail the call; the
// cell's value becomes a parse error.
func (wb *Workbook) SetCellContents(sheetName, location, contents string) error {
	s, err := wb.getSheet(sheetName)
	if err != nil {
		return err
	}
	if _, err := ref.ParseLocation(location); err != nil {
		return err
	}
	dirty := []ast.Reference{{
		Sheet:    strings.ToLower(s.Name()),
		Location: strings.ToUpper(location),
	}}
	wb.update(dirty, func() {
		_ = s.SetCellContents(location, contents)
	})
	return nil
}

// GetCellContents returns the stored contents of a cell, "" when empty.
func (wb *Workbook) GetCellContents(sheetName, location string) (string, error) {
	s, err := wb.getSheet(sheetName)
	if err != nil {
		return "", err
	}
	return s.GetCellContents(location)
}

// GetCellValue returns the computed value of a cell, blank (nil) when
// empty.
func (wb *Workbook) GetCellValue(sheetName, location string) (value.Value, error) {
	s, err := wb.getSheet(sheetName)
	if err != nil {
		return nil, err
	}
	return s.GetCellValue(location)
}

// SheetCells returns a sheet's populated cells as location -> contents.
func (wb *Workbook) SheetCells(sheetName string) (map[string]string, error) {
	s, err := wb.getSheet(sheetName)
	if err != nil {
		return nil, err
	}
	return s.saveContents(), nil
}

// GetSheetExtent returns the (columns, rows) extent of a sheet.
func (wb *Workbook) GetSheetExtent(sheetName string) (int, int, error) {
	s, err := wb.getSheet(sheetName)
	if err != nil {
		return 0, 0, err
	}
	cols, rows := s.Extent()
	return cols, rows, nil
}

// MoveCells moves the region spanned by two corners so its top-left corner
// lands on toLocation, optionally on another sheet. Relative references in
// moved formulas shift by the move offset; references that leave the valid
// area become #REF!. On any error no changes are made.
func (wb *Workbook) MoveCells(sheetName, startLocation, endLocation, toLocation, toSheet string) error {
	return wb.transferCells(sheetName, startLocation, endLocation, toLocation, toSheet, true)
}

// CopyCells is MoveCells without emptying the source region.
func (wb *Workbook) CopyCells(sheetName, startLocation, endLocation, toLocation, toSheet string) error {
	return wb.transferCells(sheetName, startLocation, endLocation, toLocation, toSheet, false)
}

func (wb *Workbook) transferCells(sheetName, startLocation, endLocation, toLocation, toSheet string, cut bool) error {
	src, err := wb.getSheet(sheetName)
	if err != nil {
		return err
	}
	dst := src
	if toSheet != "" {
		if dst, err = wb.getSheet(toSheet); err != nil {
			return err
		}
	}
	// Form the range bundle before any mutation so that overlapping source
	// and destination behave consistently, and so out-of-bounds targets
	// leave the workbook untouched.
	r, err := src.CopyCells(startLocation, endLocation)
	if err != nil {
		return err
	}
	origin, err := ref.ParseLocation(toLocation)
	if err != nil {
		return err
	}
	if _, err := r.translated(origin); err != nil {
		return err
	}
	wb.update(nil, func() {
		if cut {
			for coord := range r.cells {
				delete(src.cells, coord)
			}
		}
		_ = dst.PasteCells(toLocation, r)
	})
	return nil
}

func (wb *Workbook) sheetIndex(name string) int {
	for i, s := range wb.sheets {
		if strings.EqualFold(s.Name(), name) {
			return i
		}
	}
	return -1
}

func (wb *Workbook) getSheet(name string) (*Sheet, error) {
	index := wb.sheetIndex(name)
	if index < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	return wb.sheets[index], nil
}

// resolveCellValue is the resolver handed to every cell's evaluator.
func (wb *Workbook) resolveCellValue(sheetName, location string) (value.Value, error) {
	s, err := wb.getSheet(sheetName)
	if err != nil {
		return nil, err
	}
	return s.GetCellValue(location)
}

// update wraps a mutation in the transaction phases: pre-snapshot, mutate,
// recompute, post-snapshot, notify. The mutation must already be
// validated; it cannot fail.
func (wb *Workbook) update(dirty []ast.Reference, mutate func()) {
	prev := wb.snapshot()
	mutate()
	wb.recompute(dirty)
	curr := wb.snapshot()
	wb.notifyChanged(prev, curr)
}

func (wb *Workbook) snapshot() map[CellKey]value.Value {
	out := make(map[CellKey]value.Value)
	for _, s := range wb.sheets {
		s.snapshot(out)
	}
	return out
}

// recompute rebuilds the dependency graph and brings every affected cell's
// value up to date. A nil dirty set means everything; otherwise only cells
// reachable from the dirty set in the dependents graph are touched.
func (wb *Workbook) recompute(dirty []ast.Reference) {
	adjacency := make(map[ast.Reference][]ast.Reference)
	for _, s := range wb.sheets {
		s.dependencyGraph(adjacency)
	}
	// Edges in the adjacency map run cell -> referenced cell; the
	// transpose runs referenced cell -> dependent, which is the direction
	// invalidation flows.
	g := graph.New(adjacency).Transpose()
	if dirty != nil {
		g = g.Reachable(dirty)
	}

	var cyclical, acyclic []ast.Reference
	for _, component := range g.StronglyConnectedComponents() {
		if len(component) > 1 || g.HasEdge(component[0], component[0]) {
			cyclical = append(cyclical, component...)
		} else {
			acyclic = append(acyclic, component...)
		}
	}

	for _, r := range cyclical {
		if s, err := wb.getSheet(r.Sheet); err == nil {
			s.markCyclical(r.Location)
		}
	}

	order, err := g.Subgraph(acyclic).TopologicalSort()
	if err != nil {
		return
	}
	for _, r := range order {
		s, err := wb.getSheet(r.Sheet)
		if err != nil {
			continue
		}
		cell, err := s.GetCell(r.Location)
		if err != nil || cell == nil {
			// Dangling references appear as graph vertices without a
			// backing cell; there is nothing to recompute.
			continue
		}
		cell.RecomputeValue()
	}
}

// notifyChanged diffs two snapshots and reports every key that appeared,
// disappeared, or changed value.
func (wb *Workbook) notifyChanged(prev, curr map[CellKey]value.Value) {
	var changed []CellKey
	for key, prevValue := range prev {
		currValue, ok := curr[key]
		if !ok || !value.Equal(prevValue, currValue) {
			changed = append(changed, key)
		}
	}
	for key := range curr {
		if _, ok := prev[key]; !ok {
			changed = append(changed, key)
		}
	}
	if len(changed) == 0 {
		return
	}
	slices.SortFunc(changed, func(a, b CellKey) int {
		if c := strings.Compare(a.Sheet, b.Sheet); c != 0 {
			return c
		}
		return strings.Compare(a.Location, b.Location)
	})
	for _, fn := range wb.notify {
		wb.safeNotify(fn, changed)
	}
}

// safeNotify isolates notifier panics so later notifiers still run.
func (wb *Workbook) safeNotify(fn NotifyFunc, changed []CellKey) {
	defer func() {
		_ = recover()
	}()
	fn(wb, changed)
}
