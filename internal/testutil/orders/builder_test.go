package orders

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestBuilder_Rows(t *testing.T) {
	rows := NewBuilder(t).
		WithTitle("Spring Order Form").
		WithHeaders("Style", "Qty").
		WithRow("G500", 3).
		WithBlankRow().
		WithRow("PC54", 1).
		Rows()

	require.Len(t, rows, 6)
	assert.Equal(t, []any{"Spring Order Form"}, rows[0])
	assert.Nil(t, rows[1])
	assert.Equal(t, []any{"Style", "Qty"}, rows[2])
	assert.Equal(t, []any{"G500", 3}, rows[3])
	assert.Nil(t, rows[4])
}

func TestBuilder_WriteXLSX(t *testing.T) {
	path := NewBuilder(t).WithSheet("Orders").WithFixture(WideOrder).WriteXLSX()

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{"Orders"}, f.GetSheetList())
	style, err := f.GetCellValue("Orders", "A2")
	require.NoError(t, err)
	assert.Equal(t, "G500", style)
	qty, err := f.GetCellValue("Orders", "E2")
	require.NoError(t, err)
	assert.Equal(t, "2", qty)
}

func TestBuilder_WriteCSV(t *testing.T) {
	path := NewBuilder(t).WithFixture(LongOrder).WriteCSV()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Item Number,Color,Size,Qty", lines[0])
	assert.Equal(t, "112,Heather Grey,L,4", lines[1])
}
