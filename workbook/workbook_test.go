package workbook

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheets/value"
)

func newTestWorkbook(t *testing.T) *Workbook {
	t.Helper()
	wb := New()
	_, name, err := wb.NewSheet("Sheet1")
	require.NoError(t, err)
	require.Equal(t, "Sheet1", name)
	return wb
}

func mustSet(t *testing.T, wb *Workbook, sheet, location, contents string) {
	t.Helper()
	require.NoError(t, wb.SetCellContents(sheet, location, contents))
}

func cellNumber(t *testing.T, wb *Workbook, sheet, location, want string) {
	t.Helper()
	v, err := wb.GetCellValue(sheet, location)
	require.NoError(t, err)
	d, ok := v.(decimal.Decimal)
	require.True(t, ok, "%s!%s: expected number, got %T (%v)", sheet, location, v, v)
	expected, err := decimal.NewFromString(want)
	require.NoError(t, err)
	assert.True(t, expected.Equal(d), "%s!%s: expected %s, got %s", sheet, location, want, d)
}

func cellError(t *testing.T, wb *Workbook, sheet, location string, want value.ErrorKind) {
	t.Helper()
	v, err := wb.GetCellValue(sheet, location)
	require.NoError(t, err)
	cellErr, ok := v.(*value.Error)
	require.True(t, ok, "%s!%s: expected error, got %T (%v)", sheet, location, v, v)
	assert.Equal(t, want, cellErr.Kind)
}

func TestLiteralCells(t *testing.T) {
	wb := newTestWorkbook(t)
	mustSet(t, wb, "Sheet1", "A1", "  42.50  ")
	contents, err := wb.GetCellContents("Sheet1", "A1")
	require.NoError(t, err)
	assert.Equal(t, "42.50", contents) // stored trimmed
	cellNumber(t, wb, "Sheet1", "A1", "42.5")

	mustSet(t, wb, "Sheet1", "A2", "true")
	v, _ := wb.GetCellValue("Sheet1", "A2")
	assert.Equal(t, true, v)

	mustSet(t, wb, "Sheet1", "A3", "#REF!")
	cellError(t, wb, "Sheet1", "A3", value.BadReference)

	mustSet(t, wb, "Sheet1", "A4", "hello")
	v, _ = wb.GetCellValue("Sheet1", "A4")
	assert.Equal(t, "hello", v)
}

func TestEmptyWriteDeletes(t *testing.T) {
	wb := newTestWorkbook(t)
	mustSet(t, wb, "Sheet1", "A1", "5")
	mustSet(t, wb, "Sheet1", "A1", "   ")
	contents, err := wb.GetCellContents("Sheet1", "A1")
	require.NoError(t, err)
	assert.Equal(t, "", contents)
	v, err := wb.GetCellValue("Sheet1", "A1")
	require.NoError(t, err)
	assert.Nil(t, v)

	cols, rows, err := wb.GetSheetExtent("Sheet1")
	require.NoError(t, err)
	assert.Equal(t, 0, cols)
	assert.Equal(t, 0, rows)
}

func TestHostErrors(t *testing.T) {
	wb := newTestWorkbook(t)
	assert.ErrorIs(t, wb.SetCellContents("Nope", "A1", "1"), ErrSheetNotFound)
	assert.Error(t, wb.SetCellContents("Sheet1", "A0", "1"))
	_, err := wb.GetCellValue("Sheet1", "ZZZZZ1")
	assert.Error(t, err)

	_, _, err = wb.NewSheet("  padded  ")
	assert.ErrorIs(t, err, ErrInvalidSheetName)
	_, _, err = wb.NewSheet("sheet1")
	assert.ErrorIs(t, err, ErrSheetExists)

	assert.ErrorIs(t, wb.MoveSheet("Sheet1", 3), ErrIndexOutOfRange)
	assert.ErrorIs(t, wb.MoveSheet("ghost", 0), ErrSheetNotFound)
	assert.ErrorIs(t, wb.RenameSheet("Sheet1", "bad\nname"), ErrInvalidSheetName)
}

func TestParseErrorValue(t *testing.T) {
	wb := newTestWorkbook(t)
	mustSet(t, wb, "Sheet1", "A1", "=1+")
	cellError(t, wb, "Sheet1", "A1", value.ParseError)
	contents, _ := wb.GetCellContents("Sheet1", "A1")
	assert.Equal(t, "=1+", contents)
}

// Diamond dependency: A1=B1+D1, B1=C1+5, D1=C1, C1=5.
func TestDiamondRecompute(t *testing.T) {
	wb := newTestWorkbook(t)
	mustSet(t, wb, "Sheet1", "A1", "=B1+D1")
	mustSet(t, wb, "Sheet1", "B1", "=C1+5")
	mustSet(t, wb, "Sheet1", "D1", "=C1")
	mustSet(t, wb, "Sheet1", "C1", "5")

	cellNumber(t, wb, "Sheet1", "A1", "15")
	cellNumber(t, wb, "Sheet1", "B1", "10")
	cellNumber(t, wb, "Sheet1", "D1", "5")

	mustSet(t, wb, "Sheet1", "C1", "10")
	cellNumber(t, wb, "Sheet1", "A1", "25")
	cellNumber(t, wb, "Sheet1", "B1", "15")
	cellNumber(t, wb, "Sheet1", "D1", "10")
}

func TestCycleDetection(t *testing.T) {
	wb := newTestWorkbook(t)
	mustSet(t, wb, "Sheet1", "A1", "=B1")
	mustSet(t, wb, "Sheet1", "B1", "=A1")
	mustSet(t, wb, "Sheet1", "C1", "=A1+D1")
	mustSet(t, wb, "Sheet1", "D1", "=E1")

	cellError(t, wb, "Sheet1", "A1", value.CircularReference)
	cellError(t, wb, "Sheet1", "B1", value.CircularReference)
	// C1 inherits the error through evaluation without being in the cycle.
	cellError(t, wb, "Sheet1", "C1", value.CircularReference)

	mustSet(t, wb, "Sheet1", "E1", "4")
	cellNumber(t, wb, "Sheet1", "D1", "4")
	cellError(t, wb, "Sheet1", "A1", value.CircularReference)
	cellError(t, wb, "Sheet1", "B1", value.CircularReference)
	cellError(t, wb, "Sheet1", "C1", value.CircularReference)

	// Breaking the cycle clears every affected cell.
	mustSet(t, wb, "Sheet1", "B1", "3")
	cellNumber(t, wb, "Sheet1", "A1", "3")
	cellNumber(t, wb, "Sheet1", "C1", "7")
}

func TestSelfReferenceCycle(t *testing.T) {
	wb := newTestWorkbook(t)
	mustSet(t, wb, "Sheet1", "A1", "=A1")
	cellError(t, wb, "Sheet1", "A1", value.CircularReference)
}

func TestCrossSheetReferences(t *testing.T) {
	wb := newTestWorkbook(t)
	_, _, err := wb.NewSheet("Data")
	require.NoError(t, err)
	mustSet(t, wb, "Data", "A1", "11")
	mustSet(t, wb, "Sheet1", "A1", "=data!A1+1")
	cellNumber(t, wb, "Sheet1", "A1", "12")

	// Deleting the referenced sheet turns the value into a bad reference.
	require.NoError(t, wb.DelSheet("DATA"))
	cellError(t, wb, "Sheet1", "A1", value.BadReference)
}

func TestRenamePropagation(t *testing.T) {
	wb := New()
	_, _, err := wb.NewSheet("Sheet1")
	require.NoError(t, err)
	_, _, err = wb.NewSheet("Sheet2")
	require.NoError(t, err)

	mustSet(t, wb, "Sheet1", "A1", "Foo")
	mustSet(t, wb, "Sheet2", "B2", "='Sheet 3'!A1")
	cellError(t, wb, "Sheet2", "B2", value.BadReference)

	require.NoError(t, wb.RenameSheet("Sheet1", "Sheet 3"))
	v, err := wb.GetCellValue("Sheet2", "B2")
	require.NoError(t, err)
	assert.Equal(t, "Foo", v)
	contents, _ := wb.GetCellContents("Sheet2", "B2")
	assert.Equal(t, "='Sheet 3'!A1", contents)
	assert.Equal(t, []string{"Sheet 3", "Sheet2"}, wb.ListSheets())
}

func TestRenameRewritesFormulas(t *testing.T) {
	wb := newTestWorkbook(t)
	_, _, err := wb.NewSheet("Other")
	require.NoError(t, err)
	mustSet(t, wb, "Other", "A1", "=Sheet1!B1*2")
	mustSet(t, wb, "Sheet1", "B1", "3")

	require.NoError(t, wb.RenameSheet("sheet1", "My Sheet"))
	contents, err := wb.GetCellContents("Other", "A1")
	require.NoError(t, err)
	assert.Equal(t, "='My Sheet'!B1*2", contents)
	cellNumber(t, wb, "Other", "A1", "6")
	// Cells on the renamed sheet keep working with unqualified refs.
	mustSet(t, wb, "My Sheet", "C1", "=B1+1")
	cellNumber(t, wb, "My Sheet", "C1", "4")
}

func TestCopyCellsRelativeRefs(t *testing.T) {
	wb := newTestWorkbook(t)
	mustSet(t, wb, "Sheet1", "A1", "5")
	mustSet(t, wb, "Sheet1", "B1", "2")
	mustSet(t, wb, "Sheet1", "C1", "=A1*B1")
	cellNumber(t, wb, "Sheet1", "C1", "10")

	require.NoError(t, wb.CopyCells("Sheet1", "A1", "C1", "A2", ""))
	contents, _ := wb.GetCellContents("Sheet1", "C2")
	assert.Equal(t, "=A2*B2", contents)
	cellNumber(t, wb, "Sheet1", "C2", "10")

	mustSet(t, wb, "Sheet1", "A2", "2")
	cellNumber(t, wb, "Sheet1", "C2", "4")
	// Source is untouched.
	cellNumber(t, wb, "Sheet1", "C1", "10")
}

func TestMoveCellsEmptiesSource(t *testing.T) {
	wb := newTestWorkbook(t)
	mustSet(t, wb, "Sheet1", "A1", "1")
	mustSet(t, wb, "Sheet1", "B1", "=A1+1")

	require.NoError(t, wb.MoveCells("Sheet1", "A1", "B1", "A3", ""))
	v, _ := wb.GetCellValue("Sheet1", "A1")
	assert.Nil(t, v)
	contents, _ := wb.GetCellContents("Sheet1", "B3")
	assert.Equal(t, "=A3+1", contents)
	cellNumber(t, wb, "Sheet1", "B3", "2")
}

func TestMoveCellsOverlap(t *testing.T) {
	wb := newTestWorkbook(t)
	mustSet(t, wb, "Sheet1", "A1", "1")
	mustSet(t, wb, "Sheet1", "B1", "=A1")

	require.NoError(t, wb.MoveCells("Sheet1", "A1", "B1", "B1", ""))
	contents, _ := wb.GetCellContents("Sheet1", "B1")
	assert.Equal(t, "1", contents)
	contents, _ = wb.GetCellContents("Sheet1", "C1")
	assert.Equal(t, "=B1", contents)
	cellNumber(t, wb, "Sheet1", "C1", "1")
	v, _ := wb.GetCellValue("Sheet1", "A1")
	assert.Nil(t, v)
}

func TestMoveCellsAcrossSheets(t *testing.T) {
	wb := newTestWorkbook(t)
	_, _, err := wb.NewSheet("Dst")
	require.NoError(t, err)
	mustSet(t, wb, "Sheet1", "A1", "7")
	require.NoError(t, wb.MoveCells("Sheet1", "A1", "A1", "B2", "Dst"))
	cellNumber(t, wb, "Dst", "B2", "7")
	v, _ := wb.GetCellValue("Sheet1", "A1")
	assert.Nil(t, v)
}

func TestOutOfBoundsTranslationBecomesRefError(t *testing.T) {
	wb := newTestWorkbook(t)
	mustSet(t, wb, "Sheet1", "B2", "=A1")
	require.NoError(t, wb.CopyCells("Sheet1", "B2", "B2", "A2", ""))
	contents, _ := wb.GetCellContents("Sheet1", "A2")
	assert.Equal(t, "=#REF!", contents)
	cellError(t, wb, "Sheet1", "A2", value.BadReference)
}

func TestMoveCellsOutOfBoundsMakesNoChanges(t *testing.T) {
	wb := newTestWorkbook(t)
	mustSet(t, wb, "Sheet1", "A1", "1")
	err := wb.MoveCells("Sheet1", "A1", "A1", "ZZZZ9999", "")
	// A 1x1 move to the far corner fits; push it out with a 2x2 region.
	require.NoError(t, err)
	mustSet(t, wb, "Sheet1", "A1", "1")
	mustSet(t, wb, "Sheet1", "B2", "2")
	err = wb.MoveCells("Sheet1", "A1", "B2", "ZZZZ9999", "")
	assert.ErrorIs(t, err, ErrOutOfBounds)
	// Nothing moved.
	cellNumber(t, wb, "Sheet1", "A1", "1")
	cellNumber(t, wb, "Sheet1", "B2", "2")
}

func TestSheetLifecycle(t *testing.T) {
	wb := New()
	index, name, err := wb.NewSheet("")
	require.NoError(t, err)
	assert.Equal(t, 0, index)
	assert.Equal(t, "Sheet1", name)

	_, name, err = wb.NewSheet("")
	require.NoError(t, err)
	assert.Equal(t, "Sheet2", name)

	_, _, err = wb.NewSheet("Zed")
	require.NoError(t, err)
	assert.Equal(t, 3, wb.NumSheets())
	assert.Equal(t, []string{"Sheet1", "Sheet2", "Zed"}, wb.ListSheets())

	require.NoError(t, wb.MoveSheet("Zed", 0))
	assert.Equal(t, []string{"Zed", "Sheet1", "Sheet2"}, wb.ListSheets())

	require.NoError(t, wb.DelSheet("sheet1"))
	assert.Equal(t, []string{"Zed", "Sheet2"}, wb.ListSheets())
}

func TestCopySheet(t *testing.T) {
	wb := newTestWorkbook(t)
	mustSet(t, wb, "Sheet1", "A1", "1")
	mustSet(t, wb, "Sheet1", "B1", "=A1+1")

	index, name, err := wb.CopySheet("Sheet1")
	require.NoError(t, err)
	assert.Equal(t, 1, index)
	assert.Equal(t, "Sheet1_1", name)
	cellNumber(t, wb, "Sheet1_1", "B1", "2")

	// Copies are independent.
	mustSet(t, wb, "Sheet1_1", "A1", "10")
	cellNumber(t, wb, "Sheet1_1", "B1", "11")
	cellNumber(t, wb, "Sheet1", "B1", "2")

	_, name, err = wb.CopySheet("Sheet1")
	require.NoError(t, err)
	assert.Equal(t, "Sheet1_2", name)
}

func TestExtent(t *testing.T) {
	wb := newTestWorkbook(t)
	mustSet(t, wb, "Sheet1", "D4", "x")
	mustSet(t, wb, "Sheet1", "B9", "y")
	cols, rows, err := wb.GetSheetExtent("Sheet1")
	require.NoError(t, err)
	assert.Equal(t, 4, cols)
	assert.Equal(t, 9, rows)
}

func collectNotifications(wb *Workbook) *[][]CellKey {
	var calls [][]CellKey
	wb.NotifyCellsChanged(func(_ *Workbook, changed []CellKey) {
		snapshot := make([]CellKey, len(changed))
		copy(snapshot, changed)
		calls = append(calls, snapshot)
	})
	return &calls
}

func TestNotificationCoalescing(t *testing.T) {
	wb := newTestWorkbook(t)
	calls := collectNotifications(wb)

	mustSet(t, wb, "Sheet1", "A1", "1")
	mustSet(t, wb, "Sheet1", "A2", "=A1")
	mustSet(t, wb, "Sheet1", "A3", "=A1")
	mustSet(t, wb, "Sheet1", "A1", "2")

	require.Len(t, *calls, 4)
	key := func(loc string) CellKey { return CellKey{Sheet: "Sheet1", Location: loc} }
	assert.ElementsMatch(t, []CellKey{key("A1")}, (*calls)[0])
	assert.ElementsMatch(t, []CellKey{key("A2")}, (*calls)[1])
	assert.ElementsMatch(t, []CellKey{key("A3")}, (*calls)[2])
	assert.ElementsMatch(t, []CellKey{key("A1"), key("A2"), key("A3")}, (*calls)[3])
}

func TestNotificationIdempotence(t *testing.T) {
	wb := newTestWorkbook(t)
	calls := collectNotifications(wb)

	mustSet(t, wb, "Sheet1", "A1", "5")
	mustSet(t, wb, "Sheet1", "A1", "5")
	assert.Len(t, *calls, 1)
}

func TestNotificationOnDelete(t *testing.T) {
	wb := newTestWorkbook(t)
	mustSet(t, wb, "Sheet1", "A1", "5")
	calls := collectNotifications(wb)

	mustSet(t, wb, "Sheet1", "A1", "")
	require.Len(t, *calls, 1)
	assert.ElementsMatch(t, []CellKey{{Sheet: "Sheet1", Location: "A1"}}, (*calls)[0])
}

func TestNotifierPanicIsolated(t *testing.T) {
	wb := newTestWorkbook(t)
	wb.NotifyCellsChanged(func(_ *Workbook, _ []CellKey) {
		panic("misbehaving notifier")
	})
	calls := collectNotifications(wb)

	mustSet(t, wb, "Sheet1", "A1", "1")
	assert.Len(t, *calls, 1)
}

func TestNotifierRegistrationOrder(t *testing.T) {
	wb := newTestWorkbook(t)
	var order []int
	wb.NotifyCellsChanged(func(_ *Workbook, _ []CellKey) { order = append(order, 1) })
	wb.NotifyCellsChanged(func(_ *Workbook, _ []CellKey) { order = append(order, 2) })
	wb.NotifyCellsChanged(func(_ *Workbook, _ []CellKey) { order = append(order, 1) })

	mustSet(t, wb, "Sheet1", "A1", "1")
	assert.Equal(t, []int{1, 2, 1}, order)
}

func TestDeepChainRecompute(t *testing.T) {
	wb := newTestWorkbook(t)
	const depth = 1200
	mustSet(t, wb, "Sheet1", "A1", "1")
	for i := 2; i <= depth; i++ {
		mustSet(t, wb, "Sheet1", locationFor(i), "="+locationFor(i-1)+"+1")
	}
	cellNumber(t, wb, "Sheet1", locationFor(depth), "1200")

	mustSet(t, wb, "Sheet1", "A1", "2")
	cellNumber(t, wb, "Sheet1", locationFor(depth), "1201")
}

func locationFor(row int) string {
	return fmt.Sprintf("A%d", row)
}

func TestIndirectThroughWorkbook(t *testing.T) {
	wb := newTestWorkbook(t)
	mustSet(t, wb, "Sheet1", "A1", "9")
	mustSet(t, wb, "Sheet1", "B1", `=INDIRECT("A1")+1`)
	cellNumber(t, wb, "Sheet1", "B1", "10")
}

func TestSheetCells(t *testing.T) {
	wb := newTestWorkbook(t)
	mustSet(t, wb, "Sheet1", "A1", "1")
	mustSet(t, wb, "Sheet1", "B2", "=A1")
	cells, err := wb.SheetCells("sheet1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A1": "1", "B2": "=A1"}, cells)
}
