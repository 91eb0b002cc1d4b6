package main

import (
	"io"
	"os"

	"github.com/pterm/pterm"

	"github.com/dan-strohschein/remotedb/result"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		pterm.DisableColor()
	}
}

func printSuccess(w io.Writer, message string) {
	pterm.Success.WithWriter(w).Println(message)
}

func printError(w io.Writer, message string) {
	pterm.Error.WithWriter(w).Println(message)
}

func printWarning(w io.Writer, message string) {
	pterm.Warning.WithWriter(w).Println(message)
}

// renderTable prints data with its first row as the header.
func renderTable(w io.Writer, data pterm.TableData) error {
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}

// readerTable drains r into table data. Values are shown with
// result.Converter; NULL marks missing values.
func readerTable(r *result.Reader) (pterm.TableData, error) {
	var conv result.Converter

	header := make([]string, r.FieldCount())
	for i, c := range r.Columns() {
		header[i] = c.Name
	}
	data := pterm.TableData{header}

	for r.Next() {
		values, err := r.Values()
		if err != nil {
			return nil, err
		}
		row := make([]string, len(values))
		for i, v := range values {
			if v == nil {
				row[i] = "NULL"
				continue
			}
			row[i] = conv.ToString(v)
		}
		data = append(data, row)
	}
	return data, nil
}
