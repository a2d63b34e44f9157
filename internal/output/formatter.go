package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/muesli/termenv"
)

// Formatter renders command results. Commands print structs and slices
// of structs; freeform text goes through PrintHint.
type Formatter interface {
	Print(data any) error
	PrintList(items any, columns []Column) error
	PrintError(err error)
	PrintHint(msg string)
}

// Column maps a struct field to a table column.
type Column struct {
	Name  string // Display name
	Key   string // Struct field name
	Width int    // Width for rich mode (0 = auto)
}

// New creates a formatter for the specified mode, writing to stdout and
// stderr.
func New(mode string) Formatter {
	switch mode {
	case "json":
		return NewJSON(false)
	case "rich":
		return &richFormatter{
			profile: termenv.ColorProfile(),
			out:     os.Stdout,
			errOut:  os.Stderr,
		}
	default:
		return &plainFormatter{out: os.Stdout, errOut: os.Stderr}
	}
}

// NewJSON creates a JSON formatter. With resultsOnly, PrintList emits
// the bare array instead of the {"data","count"} envelope.
func NewJSON(resultsOnly bool) Formatter {
	return &jsonFormatter{resultsOnly: resultsOnly, out: os.Stdout, errOut: os.Stderr}
}

// rowValues extracts column values from a slice of structs (or pointers
// to structs). Missing fields render empty rather than erroring so a
// renamed field shows up in review, not as a broken command.
func rowValues(items any, columns []Column) ([][]string, error) {
	v := reflect.ValueOf(items)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice {
		return nil, fmt.Errorf("PrintList requires a slice, got %T", items)
	}

	rows := make([][]string, v.Len())
	for i := 0; i < v.Len(); i++ {
		item := v.Index(i)
		if item.Kind() == reflect.Ptr {
			item = item.Elem()
		}

		row := make([]string, len(columns))
		for j, col := range columns {
			field := item.FieldByName(col.Key)
			if field.IsValid() {
				row[j] = fmt.Sprintf("%v", field.Interface())
			}
		}
		rows[i] = row
	}
	return rows, nil
}

type jsonFormatter struct {
	resultsOnly bool
	out         io.Writer
	errOut      io.Writer
}

func (f *jsonFormatter) Print(data any) error {
	enc := json.NewEncoder(f.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (f *jsonFormatter) PrintList(items any, columns []Column) error {
	if f.resultsOnly {
		return f.Print(items)
	}

	v := reflect.ValueOf(items)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	count := 0
	if v.Kind() == reflect.Slice {
		count = v.Len()
	}

	return f.Print(map[string]any{
		"data":  items,
		"count": count,
	})
}

func (f *jsonFormatter) PrintError(err error) {
	enc := json.NewEncoder(f.errOut)
	enc.SetIndent("", "  ")
	enc.Encode(map[string]string{"error": err.Error()})
}

// PrintHint is silent in JSON mode; hints are for humans, and scripts
// parsing stderr should only ever see the error object.
func (f *jsonFormatter) PrintHint(msg string) {}

type plainFormatter struct {
	out    io.Writer
	errOut io.Writer
}

func (f *plainFormatter) Print(data any) error {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() == reflect.Struct {
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			fmt.Fprintf(f.out, "%s\t%v\n", t.Field(i).Name, v.Field(i).Interface())
		}
		return nil
	}

	fmt.Fprintf(f.out, "%v\n", data)
	return nil
}

func (f *plainFormatter) PrintList(items any, columns []Column) error {
	rows, err := rowValues(items, columns)
	if err != nil {
		return err
	}

	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.Name
	}
	fmt.Fprintf(f.out, "%s\n", strings.Join(headers, "\t"))

	for _, row := range rows {
		fmt.Fprintf(f.out, "%s\n", strings.Join(row, "\t"))
	}
	return nil
}

func (f *plainFormatter) PrintError(err error) {
	fmt.Fprintf(f.errOut, "error: %v\n", err)
}

func (f *plainFormatter) PrintHint(msg string) {
	fmt.Fprintf(f.errOut, "hint: %v\n", msg)
}

type richFormatter struct {
	profile termenv.Profile
	out     io.Writer
	errOut  io.Writer
}

var (
	richKeyStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	richValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	richErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	richHintStyle  = lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("8"))
)

func (f *richFormatter) Print(data any) error {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() == reflect.Struct {
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			fmt.Fprintf(f.out, "%s: %s\n",
				richKeyStyle.Render(t.Field(i).Name),
				richValueStyle.Render(fmt.Sprintf("%v", v.Field(i).Interface())),
			)
		}
		return nil
	}

	fmt.Fprintf(f.out, "%v\n", data)
	return nil
}

func (f *richFormatter) PrintList(items any, columns []Column) error {
	rows, err := rowValues(items, columns)
	if err != nil {
		return err
	}
	RenderTable(f.out, columns, rows)
	return nil
}

func (f *richFormatter) PrintError(err error) {
	fmt.Fprintf(f.errOut, "%s\n", richErrorStyle.Render("error: "+err.Error()))
}

func (f *richFormatter) PrintHint(msg string) {
	fmt.Fprintf(f.errOut, "%s\n", richHintStyle.Render("hint: "+msg))
}
