// Package report renders the active warehouse rows as an xlsx workbook,
// one sheet per entity table, one workbook per run date.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/scdsync/internal/scd"
)

// Writer writes run reports beneath a configured directory.
type Writer struct {
	dir string
}

// NewWriter creates a report writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Path returns the workbook path for a run date.
func (w *Writer) Path(runDate string) string {
	return filepath.Join(w.dir, runDate+".xlsx")
}

// WriteSheet writes one sheet named after the table into the run
// date's workbook: a header row of business column names followed by
// one row per record. Re-running for the same date replaces the sheet
// instead of appending a duplicate.
func (w *Writer) WriteSheet(runDate string, schema scd.TableSchema, records []scd.Record) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("ensure report directory: %w", err)
	}

	path := w.Path(runDate)
	workbook, isNew, err := openWorkbook(path)
	if err != nil {
		return err
	}
	defer func() { _ = workbook.Close() }()

	// A workbook must always keep at least one sheet, so a stale sheet is
	// swapped out via a scratch sheet rather than deleted in place.
	const scratchSheet = "__rebuild__"
	existing, err := workbook.GetSheetIndex(schema.Name)
	if err != nil {
		return fmt.Errorf("look up sheet %s: %w", schema.Name, err)
	}
	if existing != -1 {
		if _, err := workbook.NewSheet(scratchSheet); err != nil {
			return fmt.Errorf("create scratch sheet: %w", err)
		}
		if err := workbook.DeleteSheet(schema.Name); err != nil {
			return fmt.Errorf("replace sheet %s: %w", schema.Name, err)
		}
	}
	if _, err := workbook.NewSheet(schema.Name); err != nil {
		return fmt.Errorf("create sheet %s: %w", schema.Name, err)
	}
	if existing != -1 {
		if err := workbook.DeleteSheet(scratchSheet); err != nil {
			return fmt.Errorf("remove scratch sheet: %w", err)
		}
	}
	if isNew {
		// Drop the workbook's default sheet once a real one exists.
		if err := workbook.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("remove default sheet: %w", err)
		}
	}

	header := make([]any, len(schema.Columns))
	for i, name := range schema.ColumnNames() {
		header[i] = name
	}
	if err := workbook.SetSheetRow(schema.Name, "A1", &header); err != nil {
		return fmt.Errorf("write header for %s: %w", schema.Name, err)
	}

	for rowIdx, record := range records {
		row := make([]any, len(schema.Columns))
		for i, col := range schema.Columns {
			row[i] = cellValue(record[col.Name])
		}
		cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err != nil {
			return fmt.Errorf("address row %d: %w", rowIdx+2, err)
		}
		if err := workbook.SetSheetRow(schema.Name, cell, &row); err != nil {
			return fmt.Errorf("write row %d of %s: %w", rowIdx+2, schema.Name, err)
		}
	}

	if err := workbook.SaveAs(path); err != nil {
		return fmt.Errorf("save report %s: %w", path, err)
	}
	return nil
}

func openWorkbook(path string) (*excelize.File, bool, error) {
	if _, err := os.Stat(path); err == nil {
		workbook, err := excelize.OpenFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("open report %s: %w", path, err)
		}
		return workbook, false, nil
	} else if !os.IsNotExist(err) {
		return nil, false, fmt.Errorf("stat report %s: %w", path, err)
	}
	return excelize.NewFile(), true, nil
}

func cellValue(value any) any {
	switch v := value.(type) {
	case nil:
		return ""
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	default:
		return v
	}
}
