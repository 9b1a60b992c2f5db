package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"catalog-import-service/internal/models"
	"github.com/xuri/excelize/v2"
)

// ErrNoDataRows is returned when a file has a header but no non-blank rows
var ErrNoDataRows = errors.New("the file contains no data rows")

// ParseError fails the whole run; no rows are yielded once it occurs
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error on line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// RowRecord is one data row keyed by the literal source headers
type RowRecord struct {
	line  int
	index map[string]int
	cells []string
}

// Line returns the 1-based spreadsheet line (the header is line 1)
func (r RowRecord) Line() int {
	return r.line
}

// Get returns the trimmed raw value under a literal header
func (r RowRecord) Get(header string) string {
	i, ok := r.index[header]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

type rawRow struct {
	line  int
	cells []string
}

// RowSet is the parsed content of a file. Iteration is restartable.
type RowSet struct {
	headers []string
	index   map[string]int
	rows    []rawRow
}

// Headers returns the cleaned literal headers in source order
func (s *RowSet) Headers() []string {
	out := make([]string, len(s.headers))
	copy(out, s.headers)
	return out
}

// Len returns the number of non-blank data rows
func (s *RowSet) Len() int {
	return len(s.rows)
}

// All yields the data rows in source order
func (s *RowSet) All() iter.Seq2[int, RowRecord] {
	return func(yield func(int, RowRecord) bool) {
		for i, row := range s.rows {
			rec := RowRecord{line: row.line, index: s.index, cells: row.cells}
			if !yield(i, rec) {
				return
			}
		}
	}
}

func newRowSet(rawHeaders []string) (*RowSet, error) {
	set := &RowSet{
		headers: make([]string, len(rawHeaders)),
		index:   make(map[string]int, len(rawHeaders)),
	}
	for i, h := range rawHeaders {
		h = cleanHeader(h, i == 0)
		set.headers[i] = h
		if h == "" {
			continue
		}
		if _, dup := set.index[h]; dup {
			return nil, &ParseError{Line: 1, Err: fmt.Errorf("duplicate column header %q", h)}
		}
		set.index[h] = i
	}
	if len(set.index) == 0 {
		return nil, &ParseError{Line: 1, Err: errors.New("header row is empty")}
	}
	return set, nil
}

func (s *RowSet) append(line int, cells []string) {
	if isBlank(cells) {
		return
	}
	s.rows = append(s.rows, rawRow{line: line, cells: cells})
}

// cleanHeader trims a header and drops the required marker the template writes
func cleanHeader(h string, first bool) string {
	if first {
		h = strings.TrimPrefix(h, "\ufeff")
	}
	h = strings.TrimSpace(h)
	h = strings.TrimSuffix(h, "*")
	return strings.TrimSpace(h)
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Parse dispatches on the file format
func Parse(r io.Reader, format models.ImportFormat) (*RowSet, error) {
	switch format {
	case models.ImportFormatCSV:
		return ParseCSV(r, ',')
	case models.ImportFormatTSV:
		return ParseCSV(r, '\t')
	case models.ImportFormatXLSX:
		return ParseXLSX(r)
	default:
		return nil, fmt.Errorf("unsupported import format %q", format)
	}
}

// ParseCSV parses delimited text with a header line
func ParseCSV(r io.Reader, delim rune) (*RowSet, error) {
	reader := csv.NewReader(r)
	reader.Comma = delim

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoDataRows
	}
	if err != nil {
		return nil, csvError(err)
	}

	set, err := newRowSet(headers)
	if err != nil {
		return nil, err
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		line, _ := reader.FieldPos(0)
		set.append(line, record)
	}

	if set.Len() == 0 {
		return nil, ErrNoDataRows
	}
	return set, nil
}

func csvError(err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return &ParseError{Line: perr.Line, Err: perr.Err}
	}
	return &ParseError{Err: err}
}

// ParseXLSX parses the first sheet of a workbook, preferring one named "Products"
func ParseXLSX(r io.Reader) (*RowSet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("failed to open Excel file: %w", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Err: errors.New("no sheets found in Excel file")}
	}

	sheetName := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, "Products") {
			sheetName = name
			break
		}
	}

	excelRows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("failed to read sheet %q: %w", sheetName, err)}
	}
	if len(excelRows) == 0 {
		return nil, ErrNoDataRows
	}

	set, err := newRowSet(excelRows[0])
	if err != nil {
		return nil, err
	}

	width := len(set.headers)
	for i, excelRow := range excelRows[1:] {
		line := i + 2
		if len(excelRow) > width {
			if !isBlank(excelRow[width:]) {
				return nil, &ParseError{Line: line, Err: fmt.Errorf("row has %d cells but header has %d columns", len(excelRow), width)}
			}
			excelRow = excelRow[:width]
		}
		cells := make([]string, width)
		copy(cells, excelRow)
		set.append(line, cells)
	}

	if set.Len() == 0 {
		return nil, ErrNoDataRows
	}
	return set, nil
}
