// Package frame flattens API results into column-oriented tables.
//
// Columns address values with gjson paths, so nested properties
// ("properties.oneLakeTablesPath", "connectionState.status") need no
// per-type plumbing.
package frame

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Format controls how a cell renders as text.
type Format string

const (
	// FormatString renders scalars as-is and objects/arrays as compact JSON.
	FormatString Format = ""
	// FormatCount renders the length of an array.
	FormatCount Format = "count"
	// FormatBool renders booleans as yes/no.
	FormatBool Format = "bool"
	// FormatBytes renders a byte count with a binary unit suffix.
	FormatBytes Format = "bytes"
)

// Column is one output column.
type Column struct {
	Header string
	Path   string
	Format Format
}

// Frame is a table with one Row per input item, in input order. A nil cell
// means the path was missing or null.
type Frame struct {
	Columns []Column
	Rows    [][]any
}

// Build evaluates columns against each element of items, which may be any
// JSON-encodable slice (typed structs or maps).
func Build(items any, columns []Column) (Frame, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to encode items: %w", err)
	}
	root := gjson.ParseBytes(data)
	if root.Type == gjson.Null {
		return Frame{Columns: columns, Rows: [][]any{}}, nil
	}
	if !root.IsArray() {
		return Frame{}, fmt.Errorf("frame input must be a list, got %s", root.Type)
	}

	f := Frame{Columns: columns, Rows: make([][]any, 0, len(root.Array()))}
	for _, elem := range root.Array() {
		row := make([]any, len(columns))
		for i, col := range columns {
			v := elem.Get(col.Path)
			if v.Exists() && v.Type != gjson.Null {
				row[i] = v.Value()
			}
		}
		f.Rows = append(f.Rows, row)
	}
	return f, nil
}

// Headers returns the column headers.
func (f Frame) Headers() []string {
	out := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		out[i] = c.Header
	}
	return out
}

// Len is the number of rows.
func (f Frame) Len() int { return len(f.Rows) }

// Records returns one map per row keyed by header. Missing values are nil,
// which encodes as JSON null.
func (f Frame) Records() []map[string]any {
	out := make([]map[string]any, 0, len(f.Rows))
	for _, row := range f.Rows {
		rec := make(map[string]any, len(f.Columns))
		for i, c := range f.Columns {
			rec[c.Header] = row[i]
		}
		out = append(out, rec)
	}
	return out
}

// Text renders row r as display strings. Missing values are empty.
func (f Frame) Text(r int) []string {
	row := f.Rows[r]
	out := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		out[i] = formatCell(row[i], c.Format)
	}
	return out
}

func formatCell(v any, format Format) string {
	if v == nil {
		return ""
	}
	switch format {
	case FormatCount:
		if arr, ok := v.([]any); ok {
			return strconv.Itoa(len(arr))
		}
	case FormatBool:
		if b, ok := v.(bool); ok {
			if b {
				return "yes"
			}
			return "no"
		}
	case FormatBytes:
		if n, ok := v.(float64); ok {
			return humanBytes(int64(n))
		}
	}

	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %siB", float64(n)/float64(div), strings.Split("K M G T P E", " ")[exp])
}
