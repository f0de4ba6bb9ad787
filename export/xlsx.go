// ABOUTME: Writes tables to the first sheet of an Excel workbook.
// ABOUTME: Numeric cells are stored as numbers; append mode continues below the last used row.

package export

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

func WriteXLSX(dest Destination, columns []string, rows [][]string) error {
	if dest.Mode == Append {
		if _, err := os.Stat(dest.Path); err == nil {
			return appendXLSX(dest.Path, columns, rows)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	next := 1
	if len(columns) > 0 {
		if err := setRow(f, sheet, next, headerCells(columns)); err != nil {
			return err
		}
		next++
	}
	for _, row := range rows {
		if err := setRow(f, sheet, next, valueCells(row)); err != nil {
			return err
		}
		next++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("encode workbook: %w", err)
	}
	return atomicWriteFile(dest.Path, buf.Bytes(), 0644)
}

func appendXLSX(path string, columns []string, rows [][]string) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return fmt.Errorf("no sheets found in %s", path)
	}
	sheet := sheets[0]

	existing, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}

	next := len(existing) + 1
	if len(existing) == 0 && len(columns) > 0 {
		if err := setRow(f, sheet, next, headerCells(columns)); err != nil {
			return err
		}
		next++
	}
	for _, row := range rows {
		if err := setRow(f, sheet, next, valueCells(row)); err != nil {
			return err
		}
		next++
	}

	return f.Save()
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func headerCells(columns []string) []interface{} {
	cells := make([]interface{}, len(columns))
	for i, c := range columns {
		cells[i] = c
	}
	return cells
}

func valueCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = cellValue(v)
	}
	return cells
}

// cellValue stores integers and floats as numbers, anything else as text.
func cellValue(v string) interface{} {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return v
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return v
}
