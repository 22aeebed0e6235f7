// Package sheet reads and writes tables as xlsx workbooks and UTF-8 CSV files
// carrying a byte-order mark.
package sheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/pavelanni/quizgrader/internal/model"
)

const defaultSheet = "Sheet1"

// Files performs table I/O on a filesystem.
type Files struct {
	fs afero.Fs
}

// New returns Files backed by fs. A nil fs means the OS filesystem.
func New(fs afero.Fs) *Files {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Files{fs: fs}
}

// Fs returns the underlying filesystem.
func (f *Files) Fs() afero.Fs {
	return f.fs
}

// ReplaceExt swaps the extension of path for ext (which includes the dot).
func ReplaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// ReadXLSX loads the first sheet of a workbook. Empty header cells are named
// "Unnamed: <index>" so that placeholder columns can be recognized later.
func (f *Files) ReadXLSX(path string) (model.Table, error) {
	file, err := f.fs.Open(path)
	if err != nil {
		return model.Table{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	wb, err := excelize.OpenReader(file)
	if err != nil {
		return model.Table{}, fmt.Errorf("parse workbook %s: %w", path, err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return model.Table{}, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return model.Table{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if err := restoreDates(wb, sheets[0], rows); err != nil {
		return model.Table{}, fmt.Errorf("read dates of sheet %q: %w", sheets[0], err)
	}
	return tableFromRecords(rows, true), nil
}

// restoreDates replaces the display text of date-formatted cells with their
// full value in TimestampLayout. Number formats such as "m/d/yy hh:mm" would
// otherwise drop the seconds.
func restoreDates(wb *excelize.File, sheet string, rows [][]string) error {
	raw, err := wb.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return err
	}
	date1904 := false
	if props, err := wb.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}
	for r := range rows {
		if r >= len(raw) {
			break
		}
		for c := range rows[r] {
			if c >= len(raw[r]) || raw[r][c] == rows[r][c] {
				continue
			}
			serial, err := strconv.ParseFloat(raw[r][c], 64)
			if err != nil {
				continue
			}
			isDate, err := dateStyled(wb, sheet, c, r)
			if err != nil {
				return err
			}
			if !isDate {
				continue
			}
			at, err := excelize.ExcelDateToTime(serial, date1904)
			if err != nil {
				continue
			}
			rows[r][c] = at.Round(time.Second).Format(model.TimestampLayout)
		}
	}
	return nil
}

func dateStyled(wb *excelize.File, sheet string, col, row int) (bool, error) {
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return false, err
	}
	idx, err := wb.GetCellStyle(sheet, cell)
	if err != nil {
		return false, err
	}
	style, err := wb.GetStyle(idx)
	if err != nil || style == nil {
		return false, err
	}
	if style.CustomNumFmt != nil {
		return IsDateFormat(*style.CustomNumFmt), nil
	}
	return isBuiltinDateFormat(style.NumFmt), nil
}

// Built-in number format IDs that render dates or times, including the CJK
// locale ones.
func isBuiltinDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47, id >= 50 && id <= 58:
		return true
	}
	return false
}

// IsDateFormat reports whether a custom number format code renders a date or
// time. Quoted literals, bracketed sections and escaped characters are ignored.
func IsDateFormat(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	runes := []rune(strings.ToLower(code))
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case inQuote:
			inQuote = ch != '"'
		case inBracket:
			inBracket = ch != ']'
		case ch == '"':
			inQuote = true
		case ch == '[':
			inBracket = true
		case ch == '\\' || ch == '_' || ch == '*':
			i++
		default:
			b.WriteRune(ch)
		}
	}
	return strings.ContainsAny(b.String(), "ymdhs")
}

// WriteXLSX writes the table to a single-sheet workbook.
func (f *Files) WriteXLSX(path string, t model.Table) error {
	wb := excelize.NewFile()
	defer wb.Close()

	all := append([][]string{t.Header}, t.Rows...)
	for i, row := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := wb.SetSheetRow(defaultSheet, cell, &r); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return f.writeAtomic(path, func(w io.Writer) error {
		_, err := wb.WriteTo(w)
		return err
	})
}

// ReadCSV reads every record of a CSV file, stripping a leading BOM.
// Records may have differing lengths.
func (f *Files) ReadCSV(path string) ([][]string, error) {
	file, err := f.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	r := csv.NewReader(transform.NewReader(file, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %w", path, err)
	}
	return records, nil
}

// ReadTable reads a CSV file whose first record is the header.
func (f *Files) ReadTable(path string) (model.Table, error) {
	records, err := f.ReadCSV(path)
	if err != nil {
		return model.Table{}, err
	}
	return tableFromRecords(records, false), nil
}

// WriteTable writes a table as CSV with a BOM.
func (f *Files) WriteTable(path string, t model.Table) error {
	return f.WriteCSV(path, append([][]string{t.Header}, t.Rows...))
}

// WriteCSV writes records as UTF-8 CSV with a BOM. The file is written to a
// temporary sibling and renamed into place.
func (f *Files) WriteCSV(path string, records [][]string) error {
	return f.writeAtomic(path, func(w io.Writer) error {
		return EncodeCSV(w, records, false)
	})
}

// WriteCSVCRLF is WriteCSV with \r\n line endings, the form spreadsheet
// programs save gradebooks in.
func (f *Files) WriteCSVCRLF(path string, records [][]string) error {
	return f.writeAtomic(path, func(w io.Writer) error {
		return EncodeCSV(w, records, true)
	})
}

// EncodeCSV writes records to w as UTF-8 CSV prefixed with a BOM.
func EncodeCSV(w io.Writer, records [][]string, crlf bool) error {
	tw := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(tw)
	cw.UseCRLF = crlf
	if err := cw.WriteAll(records); err != nil {
		return err
	}
	return tw.Close()
}

// Backup copies path to path+".bak", replacing an older backup.
func (f *Files) Backup(path string) (string, error) {
	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		return "", fmt.Errorf("read %s for backup: %w", path, err)
	}
	dst := path + ".bak"
	if err := afero.WriteFile(f.fs, dst, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup %s: %w", dst, err)
	}
	return dst, nil
}

func (f *Files) writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := afero.TempFile(f.fs, filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	name := tmp.Name()
	if err := write(tmp); err != nil {
		tmp.Close()
		_ = f.fs.Remove(name)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = f.fs.Remove(name)
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = f.fs.Remove(name)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := f.fs.Rename(name, path); err != nil {
		_ = f.fs.Remove(name)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

func tableFromRecords(records [][]string, nameEmpty bool) model.Table {
	if len(records) == 0 {
		return model.Table{}
	}
	t := model.Table{Header: append([]string(nil), records[0]...)}
	if nameEmpty {
		for i, h := range t.Header {
			if strings.TrimSpace(h) == "" {
				t.Header[i] = fmt.Sprintf("Unnamed: %d", i)
			}
		}
	}
	for _, rec := range records[1:] {
		row := append([]string(nil), rec...)
		if len(row) > len(t.Header) {
			for i := len(t.Header); i < len(row); i++ {
				t.Header = append(t.Header, fmt.Sprintf("Unnamed: %d", i))
			}
		}
		t.Rows = append(t.Rows, row)
	}
	t.Pad()
	return t
}
