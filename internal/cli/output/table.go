package output

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
)

// TableFormatter formats data as an aligned table.
type TableFormatter struct {
	Wide      bool
	NoHeaders bool
}

// Format formats data as a table.
// Supports: *Table, a struct (field/value rows), a slice of structs, and
// maps. Anything else, including raw JSON, falls back to indented JSON.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	if data == nil {
		return nil
	}

	switch t := data.(type) {
	case *Table:
		return t.RenderWithOptions(w, f.NoHeaders)
	case Table:
		return t.RenderWithOptions(w, f.NoHeaders)
	case json.RawMessage:
		return (&JSONFormatter{}).Format(w, t)
	}

	table, err := toTable(data, f.Wide)
	if err != nil {
		return (&JSONFormatter{}).Format(w, data)
	}
	return table.RenderWithOptions(w, f.NoHeaders)
}

// toTable converts various data types to a Table.
func toTable(data any, wide bool) (*Table, error) {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return &Table{}, nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		return structToTable(v, wide), nil
	case reflect.Slice, reflect.Array:
		return sliceToTable(v, wide)
	case reflect.Map:
		return mapToTable(v), nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", v.Kind())
	}
}

// column is an exported struct field rendered in a table.
type column struct {
	index int
	name  string
}

// columns lists the visible fields of t. Fields tagged `table:"-"` are
// hidden, `table:"wide"` only in wide mode.
func columns(t reflect.Type, wide bool) []column {
	var cols []column
	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("table")
		if tag == "-" || (tag == "wide" && !wide) {
			continue
		}
		name := field.Name
		if jsonTag, _, _ := strings.Cut(field.Tag.Get("json"), ","); jsonTag != "" {
			if jsonTag == "-" {
				continue
			}
			name = jsonTag
		}
		cols = append(cols, column{index: i, name: name})
	}
	return cols
}

func structToTable(v reflect.Value, wide bool) *Table {
	table := &Table{Headers: []string{"FIELD", "VALUE"}}
	for _, c := range columns(v.Type(), wide) {
		table.AddRow(c.name, formatValue(v.Field(c.index)))
	}
	return table
}

func sliceToTable(v reflect.Value, wide bool) (*Table, error) {
	if v.Len() == 0 {
		return &Table{}, nil
	}

	elemType := v.Type().Elem()
	if elemType.Kind() == reflect.Ptr {
		elemType = elemType.Elem()
	}
	if elemType.Kind() != reflect.Struct {
		table := &Table{Headers: []string{"VALUE"}}
		for i := range v.Len() {
			table.AddRow(formatValue(v.Index(i)))
		}
		return table, nil
	}

	cols := columns(elemType, wide)
	table := &Table{}
	for _, c := range cols {
		table.Headers = append(table.Headers, strings.ToUpper(c.name))
	}
	for i := range v.Len() {
		elem := v.Index(i)
		if elem.Kind() == reflect.Ptr {
			if elem.IsNil() {
				continue
			}
			elem = elem.Elem()
		}
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j] = formatValue(elem.Field(c.index))
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// mapToTable converts a map to a key-value table sorted by key.
func mapToTable(v reflect.Value) *Table {
	table := &Table{Headers: []string{"KEY", "VALUE"}}
	iter := v.MapRange()
	for iter.Next() {
		table.AddRow(formatValue(iter.Key()), formatValue(iter.Value()))
	}
	sort.Slice(table.Rows, func(i, j int) bool { return table.Rows[i][0] < table.Rows[j][0] })
	return table
}

// formatValue formats a reflect.Value for display.
func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return "-"
	}
	if v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "-"
		}
		v = v.Elem()
	}

	switch x := v.Interface().(type) {
	case time.Time:
		if x.IsZero() {
			return "-"
		}
		return x.Local().Format("2006-01-02 15:04:05")
	case time.Duration:
		return x.Round(time.Second).String()
	case fmt.Stringer:
		return x.String()
	}

	switch v.Kind() {
	case reflect.String:
		if v.String() == "" {
			return "-"
		}
		return v.String()
	case reflect.Bool:
		return fmt.Sprintf("%t", v.Bool())
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%g", v.Float())
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "-"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "-"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		data, err := json.Marshal(v.Interface())
		if err != nil {
			return fmt.Sprintf("%v", v.Interface())
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render renders the table to the writer.
func (t *Table) Render(w io.Writer) error {
	return t.RenderWithOptions(w, false)
}

// RenderWithOptions renders the table with options.
func (t *Table) RenderWithOptions(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if !noHeaders && len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	return tw.Flush()
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}
