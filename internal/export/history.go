// Package export renders loan history as a spreadsheet.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/tealeg/xlsx/v3"

	"github.com/erazemk/teamdesk/internal/tracker"
)

// ContentType is the MIME type of files written by WriteHistory.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const timeLayout = "2006-01-02 15:04"

// HistoryHeader is the first row of the history sheet.
var HistoryHeader = []string{"Type", "Tag", "Model", "Employee", "Email", "Started", "Returned", "Status"}

// WriteHistory writes rows as a single-sheet XLSX workbook.
func WriteHistory(w io.Writer, rows []tracker.HistoryRow) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("History")
	if err != nil {
		return fmt.Errorf("adding sheet: %w", err)
	}

	addRow(sheet, HistoryHeader...)
	for _, r := range rows {
		returned, status := "", "On loan"
		if r.ReturnedAt != nil {
			returned = formatTime(*r.ReturnedAt)
			status = "Returned"
		}
		tag := r.Tag
		if tag != tracker.Placeholder {
			tag = "#" + tag
		}
		addRow(sheet, r.Type, tag, r.Model, r.EmployeeName, r.EmployeeEmail,
			formatTime(r.StartedAt), returned, status)
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// HistoryFilename names an export taken at t.
func HistoryFilename(t time.Time) string {
	return "loan-history-" + t.UTC().Format("2006-01-02") + ".xlsx"
}
