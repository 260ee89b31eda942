package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"adminpanel/internal/models"

	"github.com/xuri/excelize/v2"
)

// ExportFormat selects the activity export encoding.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
)

var exportColumns = []string{
	"ID", "Timestamp", "Username", "Action", "TargetType", "TargetID",
	"TargetSummary", "Changes", "IPAddress", "UserAgent",
}

func exportRow(l models.ActivityLog) ([]string, error) {
	changes, err := json.Marshal(l.Changes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode changes of log %d: %w", l.ID, err)
	}
	return []string{
		strconv.FormatUint(uint64(l.ID), 10),
		l.Timestamp.UTC().Format(time.RFC3339),
		l.User.Username,
		string(l.Action),
		deref(l.TargetType),
		deref(l.TargetID),
		l.TargetSummary,
		string(changes),
		deref(l.IPAddress),
		l.UserAgent,
	}, nil
}

// WriteCSV writes logs as CSV with a header row.
func WriteCSV(w io.Writer, logs []models.ActivityLog) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, l := range logs {
		row, err := exportRow(l)
		if err != nil {
			return err
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteXLSX writes logs as a single-sheet workbook.
func WriteXLSX(w io.Writer, logs []models.ActivityLog) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Activity"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	for i, col := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, l := range logs {
		row, err := exportRow(l)
		if err != nil {
			return err
		}
		for colIdx, val := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, val)
		}
	}

	for i := range exportColumns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 18)
	}

	_, err := f.WriteTo(w)
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
