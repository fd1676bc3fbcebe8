// Package report reads and writes the xlsx workbooks exchanged with operators:
// the per-vendor split outcome report and the vendor import sheet.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	splitSheet   = "Split"
	summarySheet = "Summary"
)

// SplitRow 매장 그룹별 분할 결과 한 줄
type SplitRow struct {
	StoreName string
	Success   bool
	OrderID   *uint
	Error     string
	Skipped   bool
	Unrouted  bool
}

// SplitMeta 원 주문 정보
type SplitMeta struct {
	OrderID     uint
	OrderCode   string
	Status      string
	Path        string
	GeneratedAt time.Time
}

var splitHeaders = []string{"Store", "Result", "Division Order ID", "Note", "Error"}

// BuildSplitReport 분할 결과 워크북 생성
func BuildSplitReport(meta SplitMeta, rows []SplitRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", splitSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	for i, h := range splitHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(splitSheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	succeeded := 0
	for i, row := range rows {
		result := "failed"
		if row.Success {
			result = "created"
			succeeded++
		}

		var note []string
		if row.Skipped {
			note = append(note, "already existed")
		}
		if row.Unrouted {
			note = append(note, "vendor not registered")
		}

		orderID := ""
		if row.OrderID != nil {
			orderID = strconv.FormatUint(uint64(*row.OrderID), 10)
		}

		values := []interface{}{row.StoreName, result, orderID, strings.Join(note, ", "), row.Error}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(splitSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	generated := meta.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	summary := [][]interface{}{
		{"Order ID", meta.OrderID},
		{"Order Code", meta.OrderCode},
		{"Order Status", meta.Status},
		{"Split Path", meta.Path},
		{"Store Groups", len(rows)},
		{"Succeeded", succeeded},
		{"Failed", len(rows) - succeeded},
		{"Generated At", generated.UTC().Format(time.RFC3339)},
	}
	for i, line := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &line); err != nil {
			return nil, fmt.Errorf("failed to write summary: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// VendorRow 매장 등록 시트 한 줄
type VendorRow struct {
	Name        string
	Region      string
	District    string
	PhoneNumber string
	OwnerUserID *uint
}

// ReadVendors 첫 시트에서 매장 목록을 읽는다.
// 헤더: name, region, district, phone, owner_user_id (name 외에는 선택)
func ReadVendors(r io.Reader) ([]VendorRow, int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open XLSX: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, 0, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, 0, fmt.Errorf("no data found in XLSX file")
	}

	columns := make(map[string]int)
	for i, h := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	nameCol, ok := columns["name"]
	if !ok {
		return nil, 0, fmt.Errorf("missing required column %q", "name")
	}

	cell := func(row []string, column string) string {
		i, ok := columns[column]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var vendors []VendorRow
	seen := make(map[string]bool) // 중복 제거용
	skipped := 0
	for _, row := range rows[1:] {
		if nameCol >= len(row) || strings.TrimSpace(row[nameCol]) == "" {
			skipped++
			continue
		}
		name := strings.TrimSpace(row[nameCol])
		key := strings.ToLower(name)
		if seen[key] {
			skipped++
			continue
		}
		seen[key] = true

		vendor := VendorRow{
			Name:        name,
			Region:      cell(row, "region"),
			District:    cell(row, "district"),
			PhoneNumber: cell(row, "phone"),
		}
		if owner := cell(row, "owner_user_id"); owner != "" {
			id, err := strconv.ParseUint(owner, 10, 64)
			if err != nil {
				skipped++
				continue
			}
			ownerID := uint(id)
			vendor.OwnerUserID = &ownerID
		}
		vendors = append(vendors, vendor)
	}

	return vendors, skipped, nil
}
