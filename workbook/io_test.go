package workbook

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	wb := New()
	_, _, err := wb.NewSheet("Sheet1")
	require.NoError(t, err)
	_, _, err = wb.NewSheet("My Data")
	require.NoError(t, err)
	mustSet(t, wb, "Sheet1", "A1", "5")
	mustSet(t, wb, "Sheet1", "B1", "=A1*2")
	mustSet(t, wb, "My Data", "C3", "='Sheet1'!A1")
	mustSet(t, wb, "My Data", "D4", "hello")

	var buf bytes.Buffer
	require.NoError(t, wb.SaveWorkbook(&buf))

	loaded, err := LoadWorkbook(&buf)
	require.NoError(t, err)

	assert.Equal(t, wb.ListSheets(), loaded.ListSheets())
	for _, name := range wb.ListSheets() {
		want, err := wb.SheetCells(name)
		require.NoError(t, err)
		got, err := loaded.SheetCells(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
	cellNumber(t, loaded, "Sheet1", "B1", "10")
}

func TestLoadValidWorkbook(t *testing.T) {
	input := `{"sheets":[{"name":"S","cell-contents":{"A1":"1","B1":"=A1+1"}}]}`
	wb, err := LoadWorkbook(strings.NewReader(input))
	require.NoError(t, err)
	cellNumber(t, wb, "S", "B1", "2")
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"syntax error", `{`, nil},
		{"top level not object", `[1]`, ErrInvalidType},
		{"missing sheets", `{}`, ErrMissingKey},
		{"sheets not array", `{"sheets":{}}`, ErrInvalidType},
		{"sheet not object", `{"sheets":[1]}`, ErrInvalidType},
		{"missing name", `{"sheets":[{"cell-contents":{}}]}`, ErrMissingKey},
		{"name not string", `{"sheets":[{"name":1,"cell-contents":{}}]}`, ErrInvalidType},
		{"missing cell-contents", `{"sheets":[{"name":"S"}]}`, ErrMissingKey},
		{"cell-contents not object", `{"sheets":[{"name":"S","cell-contents":[]}]}`, ErrInvalidType},
		{"contents not string", `{"sheets":[{"name":"S","cell-contents":{"A1":5}}]}`, ErrInvalidType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWorkbook(strings.NewReader(tt.input))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoadDuplicateSheetFails(t *testing.T) {
	input := `{"sheets":[{"name":"S","cell-contents":{}},{"name":"s","cell-contents":{}}]}`
	_, err := LoadWorkbook(strings.NewReader(input))
	assert.ErrorIs(t, err, ErrSheetExists)
}

func TestSaveOmitsEmptyCells(t *testing.T) {
	wb := New()
	_, _, err := wb.NewSheet("S")
	require.NoError(t, err)
	mustSet(t, wb, "S", "A1", "1")
	mustSet(t, wb, "S", "A1", "")

	var buf bytes.Buffer
	require.NoError(t, wb.SaveWorkbook(&buf))
	assert.Equal(t, `{"sheets":[{"name":"S","cell-contents":{}}]}`, strings.TrimSpace(buf.String()))
}
