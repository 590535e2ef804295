package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMissing(t *testing.T) {
	tests := []struct {
		name    string
		cell    string
		missing bool
	}{
		{"empty string", "", true},
		{"whitespace only", "   ", true},
		{"na token", "na", true},
		{"NA uppercase", "NA", true},
		{"n/a token", "N/A", true},
		{"null token", "null", true},
		{"none token", "None", true},
		{"dash token", "-", true},
		{"excel na", "#N/A", true},
		{"padded token", "  null  ", true},
		{"zero is a value", "0", false},
		{"plain value", "hello", false},
		{"negative number", "-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.missing, IsMissing(tt.cell))
		})
	}
}

func TestColumnNonMissing(t *testing.T) {
	col := Column{
		Name:  "city",
		Cells: []string{" Paris ", "", "na", "London", "NULL", "Tokyo"},
	}

	values := col.NonMissing()
	require.Equal(t, []string{"Paris", "London", "Tokyo"}, values)
	assert.Equal(t, 3, col.MissingCount())
}

func TestDatasetShape(t *testing.T) {
	ds := New([]Column{
		{Name: "a", Cells: []string{"1", "2", "3"}},
		{Name: "b", Cells: []string{"x", "y", "z"}},
	})

	assert.Equal(t, 3, ds.Rows())
	assert.Equal(t, 2, ds.NumColumns())

	col, ok := ds.Column("b")
	require.True(t, ok)
	assert.Equal(t, []string{"x", "y", "z"}, col.Cells)

	_, ok = ds.Column("missing")
	assert.False(t, ok)
}

func TestDatasetEmpty(t *testing.T) {
	ds := New(nil)
	assert.Equal(t, 0, ds.Rows())
	assert.Equal(t, 0, ds.NumColumns())
}
