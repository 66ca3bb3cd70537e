package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// ResultSet holds the rows returned by a query
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"-"`
}

// Shape returns the number of rows and columns
func (r *ResultSet) Shape() (int, int) {
	return len(r.Rows), len(r.Columns)
}

// Empty reports whether the query returned no rows
func (r *ResultSet) Empty() bool {
	return len(r.Rows) == 0
}

// Strings returns every cell formatted for display
func (r *ResultSet) Strings() [][]string {
	out := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = FormatValue(v)
		}
		out[i] = cells
	}
	return out
}

// String renders the result set as a text table
func (r *ResultSet) String() string {
	if r.Empty() {
		return fmt.Sprintf("Empty result set\nColumns: [%s]\n", strings.Join(r.Columns, ", "))
	}

	var b strings.Builder
	tw := tablewriter.NewWriter(&b)
	tw.SetHeader(r.Columns)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.AppendBulk(r.Strings())
	tw.Render()
	return b.String()
}

// Markdown renders the result set as a GitHub-flavored markdown table
func (r *ResultSet) Markdown() string {
	if r.Empty() {
		return "No results found.\n"
	}

	var b strings.Builder
	b.WriteString("| ")
	b.WriteString(strings.Join(escapePipes(r.Columns), " | "))
	b.WriteString(" |\n|")
	for range r.Columns {
		b.WriteString("---|")
	}
	b.WriteString("\n")
	for _, row := range r.Strings() {
		b.WriteString("| ")
		b.WriteString(strings.Join(escapePipes(row), " | "))
		b.WriteString(" |\n")
	}
	return b.String()
}

// CSV renders the result set as CSV with a header row; NULL becomes an empty field
func (r *ResultSet) CSV() string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(r.Columns)
	for _, row := range r.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			if v != nil {
				rec[i] = FormatValue(v)
			}
		}
		_ = w.Write(rec)
	}
	w.Flush()
	return buf.String()
}

// Records returns one map per row keyed by column name, with JSON-friendly values
func (r *ResultSet) Records() []map[string]any {
	out := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		rec := make(map[string]any, len(r.Columns))
		for i, col := range r.Columns {
			if i < len(row) {
				rec[col] = jsonValue(row[i])
			}
		}
		out = append(out, rec)
	}
	return out
}

// FormatValue formats a driver value for display
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int, int8, int16, int32, int64, uint8, uint16, uint32, uint64, time.Time:
		return x
	case float64:
		return jsonFloat(x)
	case float32:
		return jsonFloat(float64(x))
	case []byte:
		return string(x)
	case interface{ Float64() float64 }:
		// DuckDB DECIMAL
		return jsonFloat(x.Float64())
	default:
		return FormatValue(x)
	}
}

// jsonFloat keeps NaN and ±Inf encodable by turning them into strings
func jsonFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return FormatValue(f)
	}
	return f
}

func escapePipes(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.ReplaceAll(strings.ReplaceAll(c, "|", `\|`), "\n", " ")
	}
	return out
}
