package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	input := "Name, Amount,Notes\nACME Corp,1200,\"first, with comma\"\n\n , , \nBeta LLC , 900 ,plain\n"

	dataset, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Amount", "Notes"}, dataset.Headers)
	require.Len(t, dataset.Rows, 2, "blank rows are skipped")
	assert.Equal(t, []string{"ACME Corp", "1200", "first, with comma"}, dataset.Rows[0])
	assert.Equal(t, []string{"Beta LLC", "900", "plain"}, dataset.Rows[1])
}

func TestParseCSVRaggedRows(t *testing.T) {
	input := "A,B,C\n1,2\n3,4,5,6\n"

	dataset, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, dataset.Rows, 2)
	assert.Len(t, dataset.Rows[0], 2)
	assert.Len(t, dataset.Rows[1], 4)
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	require.Error(t, err)
}

func TestParseCSVHeaderOnly(t *testing.T) {
	dataset, err := ParseCSV(strings.NewReader("Name,Amount\n"))
	require.NoError(t, err)
	assert.Empty(t, dataset.Rows)
}

func TestHeaderIndex(t *testing.T) {
	dataset := &Dataset{Headers: []string{"Name", "Amount"}}
	assert.Equal(t, 1, dataset.HeaderIndex("Amount"))
	assert.Equal(t, -1, dataset.HeaderIndex("missing"))
}
