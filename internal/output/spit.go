// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/lipgloss/v2/table"
	"github.com/dustin/go-humanize"
	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v2"

	"github.com/staranto/cconv/internal/config"
)

// floatDigits bounds the fractional digits shown for rates and amounts.
const floatDigits = 6

// Column selects one value out of each row of a dataset.
type Column struct {
	// The gjson path of the value within the row.
	Key string
	// The key used in json and yaml output, the table header and the name
	// --filter and --sort refer to.
	Title string
	// Hidden columns can be filtered and sorted on but are not emitted.
	Hidden bool
}

type Columns []Column

// Lookup returns the column with the given title.
func (c Columns) Lookup(title string) (Column, bool) {
	for _, col := range c {
		if col.Title == title {
			return col, true
		}
	}
	return Column{}, false
}

// Visible returns the columns that are emitted.
func (c Columns) Visible() Columns {
	visible := make(Columns, 0, len(c))
	for _, col := range c {
		if !col.Hidden {
			visible = append(visible, col)
		}
	}
	return visible
}

// DumpExamples renders a table of example command usages.
func DumpExamples(w io.Writer, examples [][2]string) {
	if len(examples) == 0 {
		return
	}
	if w == nil {
		w = os.Stdout
	}

	var rows [][]string
	for _, ex := range examples {
		rows = append(rows, []string{ex[0], ex[1]})
	}

	t := table.New().
		BorderBottom(false).
		BorderTop(false).
		BorderLeft(false).
		BorderRight(false).
		Border(lipgloss.HiddenBorder()).
		Headers().
		Rows(rows...)

	t = t.Headers("Command", "Description").BorderHeader(false)

	fmt.Fprintln(w, t)
}

// DumpSchema prints the column titles available to --filter and --sort.
func DumpSchema(w io.Writer, name string, cols Columns) {
	if w == nil {
		w = os.Stdout
	}

	titles := make([]string, 0, len(cols))
	for _, col := range cols {
		titles = append(titles, col.Title)
	}
	slices.Sort(titles)

	fmt.Fprintln(w, "Schema for", name, "--")
	for _, title := range titles {
		fmt.Fprintln(w, title)
	}
}

// SliceDiceSpit orchestrates filtering, sorting and rendering of data
// according to the --output, --filter and --sort flags. data is anything that
// encodes to a JSON object or array of objects.
func SliceDiceSpit(data any, cols Columns, cmd *cli.Command, w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	// If raw, just dump it and go home.
	output := cmd.String("output")
	if output == "raw" {
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}

	fullDataset := gjson.ParseBytes(raw)
	if !fullDataset.IsArray() {
		fullDataset = gjson.Parse("[" + string(raw) + "]")
	}

	filteredDataset := FilterDataset(fullDataset, cols, cmd.String("filter"))
	SortDataset(filteredDataset, cmd.String("sort"))

	// Hidden columns have served their purpose.
	for _, row := range filteredDataset {
		for _, col := range cols {
			if col.Hidden {
				delete(row, col.Title)
			}
		}
	}

	switch output {
	case "json":
		if filteredDataset == nil {
			filteredDataset = []map[string]interface{}{}
		}
		jsonOutput, err := json.Marshal(filteredDataset)
		if err != nil {
			return fmt.Errorf("failed to marshal json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(jsonOutput))
		return err
	case "yaml":
		yamlOutput, err := yaml.Marshal(filteredDataset)
		if err != nil {
			return fmt.Errorf("failed to marshal yaml: %w", err)
		}
		_, err = w.Write(yamlOutput)
		return err
	default:
		TableWriter(filteredDataset, cols, cmd, w)
	}

	return nil
}

// SortDataset orders rows in place per spec, a comma separated list of column
// titles. A leading - sorts descending and a leading ! compares strings case
// sensitively.
func SortDataset(rows []map[string]interface{}, spec string) {
	if spec == "" || len(rows) < 2 {
		return
	}

	type key struct {
		title     string
		desc      bool
		sensitive bool
	}

	var keys []key
	for _, field := range strings.Split(spec, ",") {
		k := key{}
		for len(field) > 0 && (field[0] == '-' || field[0] == '!') {
			if field[0] == '-' {
				k.desc = true
			} else {
				k.sensitive = true
			}
			field = field[1:]
		}
		if field == "" {
			continue
		}
		k.title = field
		keys = append(keys, k)
	}

	slices.SortStableFunc(rows, func(a, b map[string]interface{}) int {
		for _, k := range keys {
			c := compareValues(a[k.title], b[k.title], k.sensitive)
			if k.desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

func compareValues(a, b interface{}, sensitive bool) int {
	fa, aok := a.(float64)
	fb, bok := b.(float64)
	if aok && bok {
		return cmp.Compare(fa, fb)
	}

	sa, sb := InterfaceToString(a), InterfaceToString(b)
	if !sensitive {
		sa, sb = strings.ToLower(sa), strings.ToLower(sb)
	}
	return strings.Compare(sa, sb)
}

// TableWriter renders the result set in a tabular form honoring color,
// titles and padding options.
func TableWriter(
	resultSet []map[string]interface{},
	cols Columns,
	cmd *cli.Command,
	w io.Writer) {

	if len(resultSet) == 0 {
		return
	}

	var (
		headerStyle  = lipgloss.NewStyle().Align(lipgloss.Left)
		cellStyle    = lipgloss.NewStyle().Padding(0, 0).Align(lipgloss.Left)
		evenRowStyle = cellStyle
		oddRowStyle  = cellStyle
	)

	if cmd.Bool("color") {
		headerColor, evenColor, oddColor := getColors("colors")

		headerStyle = headerStyle.Foreground(lipgloss.Color(headerColor))
		evenRowStyle = evenRowStyle.Foreground(lipgloss.Color(evenColor))
		oddRowStyle = oddRowStyle.Foreground(lipgloss.Color(oddColor))
	}

	visible := cols.Visible()

	var rows [][]string
	for _, result := range resultSet {
		row := make([]string, 0, len(visible))
		for _, col := range visible {
			row = append(row, InterfaceToString(result[col.Title], "-"))
		}
		rows = append(rows, row)
	}

	pad, _ := config.GetInt("padding", 0)
	log.Debugf("padding: %v", pad)

	t := table.New().
		BorderBottom(false).
		BorderTop(false).
		BorderLeft(false).
		BorderRight(false).
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			var style lipgloss.Style
			switch {
			case row == table.HeaderRow:
				style = headerStyle
			case row%2 == 0:
				style = evenRowStyle
			default:
				style = oddRowStyle
			}

			if col > 0 {
				style = style.PaddingLeft(pad)
			}

			return style
		}).
		Headers().
		Rows(rows...)

	if cmd.Bool("titles") {
		headers := make([]string, 0, len(visible))
		for _, col := range visible {
			headers = append(headers, col.Title)
		}

		// https://github.com/charmbracelet/lipgloss/issues/261
		t = t.Headers(headers...).BorderHeader(false)
	}
	fmt.Fprintln(w, t)
}

// getColors returns configured color values for table rendering.
func getColors(key string) (header string, even string, odd string) {
	header, _ = config.GetString(fmt.Sprintf("%s.title", key), "#f6be00")
	even, _ = config.GetString(fmt.Sprintf("%s.even", key), "#ffffff")
	odd, _ = config.GetString(fmt.Sprintf("%s.odd", key), "#00c8f0")
	return
}

// InterfaceToString converts supported primitive or composite values to a
// string. A custom empty value may be provided.
func InterfaceToString(value interface{}, emptyValue ...string) string {
	if len(emptyValue) == 0 {
		emptyValue = []string{""}
	}

	if value == nil || reflect.ValueOf(value).IsZero() {
		return emptyValue[0]
	}

	switch value := value.(type) {
	case string:
		return value
	case int:
		return strconv.Itoa(value)
	case float64:
		return humanize.CommafWithDigits(value, floatDigits)
	case bool:
		return strconv.FormatBool(value)
	default:
		jsonBytes, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(jsonBytes)
	}
}
