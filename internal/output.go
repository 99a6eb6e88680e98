package internal

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/simiotics/sqlcli/records"
)

// Output formats accepted by Render
const (
	FormatTable    = "table"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Formats lists every output format
var Formats = []string{FormatTable, FormatCSV, FormatMarkdown, FormatJSON}

// ErrUnknownFormat - the requested output format is not one of Formats
var ErrUnknownFormat = errors.New("Unknown output format")

// Render writes rows under header to w in the given format. JSON output is a list of objects
// whose keys follow header order.
func Render(w io.Writer, format string, header []string, rows []*records.Record) error {
	var rendered string
	switch format {
	case FormatJSON:
		if rows == nil {
			rows = []*records.Record{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case FormatCSV:
		writer := csv.NewWriter(w)
		if err := writer.Write(header); err != nil {
			return errors.Wrap(err, "write csv header")
		}
		for i, record := range rows {
			if err := writer.Write(record.ValuesStr()); err != nil {
				return errors.Wrapf(err, "write csv row %d", i)
			}
		}
		writer.Flush()
		return writer.Error()
	case FormatTable, FormatMarkdown:
		t := table.NewWriter()
		t.SetStyle(table.StyleLight)
		// column names are printed as returned by the database
		t.Style().Format.Header = text.FormatDefault
		headerRow := make(table.Row, len(header))
		for i, key := range header {
			headerRow[i] = key
		}
		t.AppendHeader(headerRow)
		for _, record := range rows {
			values := record.ValuesStr()
			row := make(table.Row, len(values))
			for i, value := range values {
				row[i] = value
			}
			t.AppendRow(row)
		}
		if format == FormatMarkdown {
			rendered = t.RenderMarkdown()
		} else {
			rendered = t.Render()
		}
	default:
		return errors.Wrapf(ErrUnknownFormat, "%s (choose one of %s)", format, strings.Join(Formats, ", "))
	}

	_, err := io.WriteString(w, rendered+"\n")
	return err
}

// RenderCollection renders every record of collection, with the collection's keys as the header.
func RenderCollection(w io.Writer, format string, collection *records.Collection) error {
	all, err := collection.All()
	if err != nil {
		return err
	}
	return Render(w, format, collection.Keys(), all)
}
