package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestBuildSplitReport(t *testing.T) {
	divisionID := uint(42)
	data, err := BuildSplitReport(SplitMeta{
		OrderID:     7,
		OrderCode:   "ORD-7",
		Status:      "split_failed",
		Path:        "local",
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, []SplitRow{
		{StoreName: "Jongno Gold", Success: true, OrderID: &divisionID},
		{StoreName: "Busan Silver", Error: "database is locked"},
		{StoreName: "Mystery Shop", Success: true, OrderID: &divisionID, Unrouted: true, Skipped: true},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(splitSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, splitHeaders, rows[0])
	assert.Equal(t, []string{"Jongno Gold", "created", "42"}, rows[1])
	assert.Equal(t, []string{"Busan Silver", "failed", "", "", "database is locked"}, rows[2])
	assert.Equal(t, "already existed, vendor not registered", rows[3][3])

	failed, err := f.GetCellValue(summarySheet, "B7")
	require.NoError(t, err)
	assert.Equal(t, "1", failed)
	generated, err := f.GetCellValue(summarySheet, "B8")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-02T03:04:05Z", generated)
}

func writeSheet(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestReadVendors(t *testing.T) {
	buf := writeSheet(t, [][]interface{}{
		{"Name", "Region", "District", "Phone", "Owner_User_ID"},
		{" Jongno Gold ", "Seoul", "Jongno-gu", "02-000-0000", "12"},
		{"jongno gold", "Seoul", "", "", ""},
		{"", "Seoul"},
		{"Busan Silver", "Busan"},
		{"Bad Owner", "", "", "", "abc"},
	})

	vendors, skipped, err := ReadVendors(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, skipped)
	require.Len(t, vendors, 2)

	assert.Equal(t, "Jongno Gold", vendors[0].Name)
	assert.Equal(t, "Jongno-gu", vendors[0].District)
	require.NotNil(t, vendors[0].OwnerUserID)
	assert.Equal(t, uint(12), *vendors[0].OwnerUserID)

	assert.Equal(t, "Busan Silver", vendors[1].Name)
	assert.Nil(t, vendors[1].OwnerUserID)
	assert.Empty(t, vendors[1].PhoneNumber)
}

func TestReadVendors_MissingNameColumn(t *testing.T) {
	buf := writeSheet(t, [][]interface{}{{"Region"}, {"Seoul"}})
	_, _, err := ReadVendors(buf)
	assert.Error(t, err)
}
