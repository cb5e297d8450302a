// Package tabular reads uploaded CSV, Excel and JSON files into a table of
// typed columns and rows.
package tabular

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

// Column types reported for parsed files.
const (
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeDate    = "date"
	TypeString  = "string"
)

// ErrNoRecords is returned when a JSON document holds no array of records.
var ErrNoRecords = errors.New("no array of records found")

// Column is a named, typed column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Table is a parsed file. Every row has one value per column.
type Table struct {
	Columns []Column
	Rows    [][]any
}

// Options tune parsing per file type.
type Options struct {
	Delimiter rune   // csv; defaults to ','
	Sheet     string // excel; defaults to the first sheet
	DataPath  string // json; dotted path to the records array
}

// Parse reads r according to fileType.
func Parse(fileType models.FileType, r io.Reader, opts Options) (*Table, error) {
	switch fileType {
	case models.FileTypeCSV:
		return ParseCSV(r, opts.Delimiter)
	case models.FileTypeExcel:
		return ParseExcel(r, opts.Sheet)
	case models.FileTypeJSON:
		return ParseJSON(r, opts.DataPath)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
}

// ParseCSV reads a header row followed by data rows.
func ParseCSV(r io.Reader, delimiter rune) (*Table, error) {
	reader := csv.NewReader(r)
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return fromStringRows(records), nil
}

// ParseExcel reads the named sheet, or the first one, of a workbook.
func ParseExcel(r io.Reader, sheet string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return fromStringRows(rows), nil
}

// DelimiterRune returns the first rune of a delimiter setting, or 0.
func DelimiterRune(s string) rune {
	if s == "" {
		return 0
	}
	if s == `\t` {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func fromStringRows(rows [][]string) *Table {
	if len(rows) == 0 {
		return &Table{Columns: []Column{}, Rows: [][]any{}}
	}

	header := rows[0]
	names := uniqueNames(header)
	data := rows[1:]

	columns := make([]Column, len(names))
	for i, name := range names {
		values := make([]string, 0, len(data))
		for _, row := range data {
			if i < len(row) {
				values = append(values, row[i])
			}
		}
		columns[i] = Column{Name: name, Type: InferType(values)}
	}

	out := make([][]any, 0, len(data))
	for _, row := range data {
		if isBlank(row) {
			continue
		}
		values := make([]any, len(columns))
		for i, c := range columns {
			if i < len(row) {
				values[i] = Convert(row[i], c.Type)
			}
		}
		out = append(out, values)
	}
	return &Table{Columns: columns, Rows: out}
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// uniqueNames fills empty header cells and de-duplicates repeated names.
func uniqueNames(header []string) []string {
	seen := make(map[string]int, len(header))
	names := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 1
		}
		names[i] = name
	}
	return names
}

// ParseJSON accepts an array of objects, or an object holding one. With
// dataPath the array is looked up by dotted path; otherwise the first array
// field of the top-level object is used.
func ParseJSON(r io.Reader, dataPath string) (*Table, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read json: %w", err)
	}
	records, err := RecordsFromJSON(body, dataPath)
	if err != nil {
		return nil, err
	}
	return FromRecords(records), nil
}

// RecordsFromJSON locates the records array in a JSON document and returns
// each element as raw JSON.
func RecordsFromJSON(body []byte, dataPath string) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrNoRecords
	}

	node := json.RawMessage(body)
	if dataPath != "" {
		for _, key := range strings.Split(dataPath, ".") {
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(node, &obj); err != nil {
				return nil, fmt.Errorf("data path %q: %w", dataPath, ErrNoRecords)
			}
			next, ok := obj[key]
			if !ok {
				return nil, fmt.Errorf("data path %q: %w", dataPath, ErrNoRecords)
			}
			node = next
		}
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(node, &arr); err == nil {
		return arr, nil
	}

	if dataPath == "" {
		keys, err := objectKeys(node)
		if err != nil {
			return nil, fmt.Errorf("failed to parse json: %w", err)
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(node, &obj); err != nil {
			return nil, fmt.Errorf("failed to parse json: %w", err)
		}
		for _, k := range keys {
			if err := json.Unmarshal(obj[k], &arr); err == nil {
				return arr, nil
			}
		}
	}
	return nil, ErrNoRecords
}

// FromRecords builds a table from JSON records. Columns follow the key order
// of the first record in which each key appears. Non-object elements become
// a single "value" column.
func FromRecords(records []json.RawMessage) *Table {
	var names []string
	index := map[string]int{}
	parsed := make([]map[string]any, 0, len(records))

	for _, raw := range records {
		keys, err := objectKeys(raw)
		var obj map[string]any
		if err != nil || json.Unmarshal(raw, &obj) != nil {
			var scalar any
			if json.Unmarshal(raw, &scalar) != nil {
				continue
			}
			keys = []string{"value"}
			obj = map[string]any{"value": scalar}
		}
		for _, k := range keys {
			if _, ok := index[k]; !ok {
				index[k] = len(names)
				names = append(names, k)
			}
		}
		parsed = append(parsed, obj)
	}

	columns := make([]Column, len(names))
	for i, name := range names {
		values := make([]any, 0, len(parsed))
		for _, obj := range parsed {
			values = append(values, obj[name])
		}
		columns[i] = Column{Name: name, Type: inferAnyType(values)}
	}

	rows := make([][]any, len(parsed))
	for r, obj := range parsed {
		row := make([]any, len(columns))
		for i, c := range columns {
			row[i] = convertAny(obj[c.Name], c.Type)
		}
		rows[r] = row
	}
	return &Table{Columns: columns, Rows: rows}
}

// objectKeys returns the keys of a JSON object in document order.
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("not an object")
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("invalid object key")
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// Records returns up to limit rows as column-keyed maps; limit <= 0 means all.
func (t *Table) Records(limit int) []map[string]any {
	n := len(t.Rows)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]map[string]any, n)
	for r := 0; r < n; r++ {
		rec := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			rec[c.Name] = t.Rows[r][i]
		}
		out[r] = rec
	}
	return out
}
