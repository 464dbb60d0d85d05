// Package workbook reads and writes the spreadsheet files of the
// dashboard: the local cache of the contract table and every export.
package workbook

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"hopdong/internal/core"
)

// CacheSheet is the sheet holding the cached contract table.
const CacheSheet = "Contracts"

// ErrNoCache is returned by ReadCache when the cache file does not exist.
var ErrNoCache = errors.New("local cache file not found")

// ReadCache reads the local cache file into untyped rows keyed by the
// header row. The first sheet is used when CacheSheet is missing.
func ReadCache(path string) ([]core.Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoCache
		}
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheet := CacheSheet
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, nil
		}
		sheet = list[0]
	}

	grid, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read cache sheet %s: %w", sheet, err)
	}
	return gridRows(grid), nil
}

// gridRows keys every data row by the header row. Blank rows are dropped.
func gridRows(grid [][]string) []core.Row {
	if len(grid) == 0 {
		return nil
	}
	header := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	rows := make([]core.Row, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		row := core.Row{}
		blank := true
		for i, v := range cells {
			if i >= len(header) || header[i] == "" {
				continue
			}
			row[header[i]] = v
			if strings.TrimSpace(v) != "" {
				blank = false
			}
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows
}

// WriteCache overwrites the local cache file with the persisted columns of
// contracts. The file is written next to path and renamed into place.
func WriteCache(path string, contracts []core.Contract) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", CacheSheet); err != nil {
		return err
	}
	if err := writeHeader(f, CacheSheet, 1, core.Columns); err != nil {
		return err
	}
	for i, c := range contracts {
		row := c.Row()
		values := make([]any, len(core.Columns))
		for j, col := range core.Columns {
			values[j] = row[col]
		}
		if err := setRow(f, CacheSheet, i+2, values); err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".contracts-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if err := f.Write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace cache %s: %w", path, err)
	}
	return nil
}
