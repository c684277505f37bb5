package clipboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize_LineEndingsAndBlankLines(t *testing.T) {
	rows := Tokenize("Aspirin\t81mg OD\r\n\r\n   \t  \nParacetamol\t1g QID\n")
	require.Len(t, rows, 2)

	assert.Equal(t, "Aspirin\t81mg OD", rows[0].Line)
	assert.Equal(t, []string{"Aspirin", "81mg OD"}, rows[0].Cells)
	assert.Equal(t, []string{"Paracetamol", "1g QID"}, rows[1].Cells)
}

func TestTokenize_KeepsRawCells(t *testing.T) {
	rows := Tokenize("  Metformin \t 500mg BID PO\t")
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"  Metformin ", " 500mg BID PO", ""}, rows[0].Cells)
}

func TestTokenize_NoTabs(t *testing.T) {
	rows := Tokenize("just some notes\nmore notes")
	require.Len(t, rows, 2)
	assert.Len(t, rows[0].Cells, 1)
	assert.Len(t, rows[1].Cells, 1)
}

func TestTokenize_Empty(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("\n\r\n  \n"))
}
