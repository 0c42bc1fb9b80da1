package ast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheets/ast"
	"sheets/parser"
)

func mustParse(t *testing.T, formula string) ast.Expression {
	t.Helper()
	tree, err := parser.Parse(formula)
	require.NoError(t, err)
	return tree
}

func TestDependencies(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		sheet   string
		want    []ast.Reference
	}{
		{
			name:    "unqualified takes containing sheet",
			formula: "=A1+B2",
			sheet:   "sheet1",
			want:    []ast.Reference{{"sheet1", "A1"}, {"sheet1", "B2"}},
		},
		{
			name:    "qualified lowers sheet and uppers location",
			formula: "=Other!a1",
			sheet:   "sheet1",
			want:    []ast.Reference{{"other", "A1"}},
		},
		{
			name:    "absolute markers stripped",
			formula: "=$D$4",
			sheet:   "s",
			want:    []ast.Reference{{"s", "D4"}},
		},
		{
			name:    "deduplicated",
			formula: "=A1+A1+$A$1",
			sheet:   "s",
			want:    []ast.Reference{{"s", "A1"}},
		},
		{
			name:    "inside calls and parens",
			formula: "=IF((A1), SUM(B2, C3), 1)",
			sheet:   "s",
			want:    []ast.Reference{{"s", "A1"}, {"s", "B2"}, {"s", "C3"}},
		},
		{
			name:    "no references",
			formula: "=1+2",
			sheet:   "s",
			want:    nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ast.Dependencies(mustParse(t, tt.formula), tt.sheet)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenameSheet(t *testing.T) {
	tests := []struct {
		name        string
		formula     string
		old, new    string
		want        string
		wantChanged bool
	}{
		{
			name:        "bare to bare",
			formula:     "=Sheet1!A1+1",
			old:         "Sheet1",
			new:         "Data",
			want:        "=Data!A1+1",
			wantChanged: true,
		},
		{
			name:        "case-insensitive match",
			formula:     "=SHEET1!A1",
			old:         "sheet1",
			new:         "Data",
			want:        "=Data!A1",
			wantChanged: true,
		},
		{
			name:        "new name needs quotes",
			formula:     "=Sheet1!A1",
			old:         "Sheet1",
			new:         "My Sheet",
			want:        "='My Sheet'!A1",
			wantChanged: true,
		},
		{
			name:        "quoted old to bare new",
			formula:     "='Old Name'!A1",
			old:         "Old Name",
			new:         "Fresh",
			want:        "=Fresh!A1",
			wantChanged: true,
		},
		{
			name:        "unrelated sheet untouched",
			formula:     "=Other!A1",
			old:         "Sheet1",
			new:         "Data",
			wantChanged: false,
		},
		{
			name:        "unqualified untouched",
			formula:     "=A1",
			old:         "Sheet1",
			new:         "Data",
			wantChanged: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := mustParse(t, tt.formula)
			got, changed := ast.RenameSheet(tree, tt.old, tt.new)
			assert.Equal(t, tt.wantChanged, changed)
			if tt.wantChanged {
				assert.Equal(t, tt.want, ast.Formula(got))
			} else {
				assert.Same(t, tree, got)
			}
		})
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		dcol    int
		drow    int
		want    string
	}{
		{name: "relative", formula: "=A1*B1", dcol: 0, drow: 1, want: "=A2*B2"},
		{name: "locked stays", formula: "=$A$1+B1", dcol: 2, drow: 2, want: "=$A$1+D3"},
		{name: "sheet kept verbatim", formula: "='My Sheet'!A1", dcol: 1, drow: 0, want: "='My Sheet'!B1"},
		{name: "out of bounds becomes ref error", formula: "=A2", dcol: -1, drow: 0, want: "=#REF!"},
		{name: "partial out of bounds", formula: "=A1+B1", dcol: -1, drow: 0, want: "=#REF!+A1"},
		{name: "literals untouched", formula: `=1+"x"`, dcol: 5, drow: 5, want: `=1+"x"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ast.Translate(mustParse(t, tt.formula), tt.dcol, tt.drow)
			assert.Equal(t, tt.want, ast.Formula(got))
		})
	}
}

func TestTranslateSharesUntouchedTree(t *testing.T) {
	tree := mustParse(t, "=1+2")
	got := ast.Translate(tree, 1, 1)
	assert.Equal(t, "=1+2", ast.Formula(got))
	assert.Same(t, tree, got)
}

func TestFormatDebug(t *testing.T) {
	out := ast.Format(mustParse(t, "=IF(A1,1,2)"))
	assert.Contains(t, out, "Call(IF)")
	assert.Contains(t, out, "CellRef(A1)")
}
