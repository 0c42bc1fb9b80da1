package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheets/ast"
)

// Most structure is checked through the canonical stringifier: parsing and
// re-emitting must normalise whitespace and keep grouping intact.
func TestParseCanonical(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
	}{
		{"number", "= 1", "=1"},
		{"number literal kept", "=007.50", "=007.50"},
		{"string", `="a b"`, `="a b"`},
		{"boolean", "=TRUE", "=TRUE"},
		{"boolean case kept", "=false", "=false"},
		{"error literal", "=#REF!", "=#REF!"},
		{"add", "= 1 + 2", "=1+2"},
		{"precedence", "=1+2*3", "=1+2*3"},
		{"parens kept", "=(1+2)*3", "=(1+2)*3"},
		{"redundant parens kept", "=(1)", "=(1)"},
		{"unary", "=-A1", "=-A1"},
		{"unary plus", "=+3", "=+3"},
		{"concat", `="a" & "b"`, `="a"&"b"`},
		{"compare", "=A1 <> B2", "=A1<>B2"},
		{"two-char comparison", "=1<=2", "=1<=2"},
		{"cell ref", "=a1", "=a1"},
		{"absolute ref kept", "=$D$4", "=$D$4"},
		{"sheet ref", "=Sheet1!A1", "=Sheet1!A1"},
		{"quoted sheet ref", "='Sheet 1'!A1", "='Sheet 1'!A1"},
		{"call no args", "=VERSION()", "=VERSION()"},
		{"call args", "=IF(A1, 1, 2)", "=IF(A1,1,2)"},
		{"nested call", "=SUM(1, MIN(2, 3))", "=SUM(1,MIN(2,3))"},
		{"mixed", `=IF(A1>2, B1 & "x", 'My Sheet'!C1 * 2)`, `=IF(A1>2,B1&"x",'My Sheet'!C1*2)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ast.Formula(tree))
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no equals", "1+1"},
		{"empty", "="},
		{"dangling operator", "=1+"},
		{"unbalanced parens", "=(1+2"},
		{"trailing junk", "=1 2"},
		{"bad identifier", "=foo"},
		{"identifier letters only", "=ABC"},
		{"unterminated string", `="abc`},
		{"missing call paren", "=SUM(1,2"},
		{"bad sheet separator", "=Sheet1!"},
		{"dollar in sheet name", "=$A1!B2"},
		{"double operator", "=1**2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			assert.Error(t, err, tt.input)
		})
	}
}

func TestParseStructure(t *testing.T) {
	tree, err := Parse("=1+2*3")
	require.NoError(t, err)
	add, ok := tree.(*ast.InfixExpression)
	require.True(t, ok)
	assert.Equal(t, "+", add.Operator)
	mul, ok := add.Right.(*ast.InfixExpression)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Operator)
}

func TestParseCellRefParts(t *testing.T) {
	tree, err := Parse("='My Sheet'!$B$2")
	require.NoError(t, err)
	cr, ok := tree.(*ast.CellRef)
	require.True(t, ok)
	assert.True(t, cr.HasSheet)
	assert.True(t, cr.Quoted)
	assert.Equal(t, "My Sheet", cr.Sheet)
	assert.Equal(t, "$B$2", cr.Location)
}

func TestOversizedAddressStillParses(t *testing.T) {
	// Grammar accepts any letters+digits address; validity is an
	// evaluation-time concern.
	tree, err := Parse("=ABCDE123456")
	require.NoError(t, err)
	_, ok := tree.(*ast.CellRef)
	assert.True(t, ok)
}
