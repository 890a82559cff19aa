package statements

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format, expected CSV or XLSX")
	ErrEmptyFile         = errors.New("file has no header row")
)

// Row is one data line. Number is the 1-based line in the file, the header
// included, so it can be quoted back to whoever prepared the file.
type Row struct {
	Number int
	Values map[Field]string
}

// Get returns the trimmed cell of field, or "" when the column is absent.
func (r Row) Get(field Field) string {
	return strings.TrimSpace(r.Values[field])
}

type Table struct {
	Headers []string
	Mapping map[Field]int
	Rows    []Row
}

// Parse decodes a CSV or XLSX file and maps its columns. Blank lines are
// dropped.
func Parse(fileName string, data []byte, columns []Column) (*Table, error) {
	var (
		records [][]string
		err     error
	)
	switch format(fileName, data) {
	case "xlsx":
		records, err = readXLSX(data)
	case "csv":
		records, err = readCSV(data)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}

	start := -1
	for i, rec := range records {
		if !blank(rec) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, ErrEmptyFile
	}

	headers := records[start]
	mapping, err := MapHeaders(headers, columns)
	if err != nil {
		return nil, err
	}

	table := &Table{Headers: headers, Mapping: mapping}
	for i := start + 1; i < len(records); i++ {
		rec := records[i]
		if blank(rec) {
			continue
		}
		values := make(map[Field]string, len(mapping))
		for field, idx := range mapping {
			if idx < len(rec) {
				values[field] = rec[idx]
			}
		}
		table.Rows = append(table.Rows, Row{Number: i + 1, Values: values})
	}
	return table, nil
}

func format(fileName string, data []byte) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return "xlsx"
	case ".csv", ".txt":
		return "csv"
	case ".xls":
		return ""
	}
	if bytes.HasPrefix(data, []byte("PK")) {
		return "xlsx"
	}
	return "csv"
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// delimiter picks ';' for exports whose first line has more semicolons than
// commas.
func delimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

// readXLSX reads the first sheet with raw cell values, so dates arrive as
// spreadsheet serials and amounts without display formatting.
func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error opening XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("error reading sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
