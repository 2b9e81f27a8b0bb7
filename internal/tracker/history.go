package tracker

import (
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/teamdesk/internal/model"
)

// Placeholder is shown for unit fields of a loan whose unit is unknown.
const Placeholder = "—"

// AllTypes disables the type filter.
const AllTypes = "All"

// HistoryFilter narrows BuildHistory. Empty fields match everything.
type HistoryFilter struct {
	Type  string
	Query string
}

// HistoryRow is a loan enriched with its unit's display fields.
type HistoryRow struct {
	LoanID        int64      `json:"loan_id"`
	UnitID        int64      `json:"unit_id"`
	Type          string     `json:"type"`
	Model         string     `json:"model"`
	Tag           string     `json:"tag"`
	EmployeeName  string     `json:"employee_name"`
	EmployeeEmail string     `json:"employee_email,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	ReturnedAt    *time.Time `json:"returned_at,omitempty"`
	Open          bool       `json:"open"`
}

// searchText is what a history query is matched against.
func (r HistoryRow) searchText() string {
	return strings.ToLower(r.EmployeeName + " " + r.EmployeeEmail + " " + r.Model + " #" + r.Tag)
}

// BuildHistory joins loans with their units and applies f. Rows keep the
// order of loans.
func BuildHistory(loans []model.Loan, units []model.Unit, f HistoryFilter) []HistoryRow {
	index := make(map[int64]model.Unit, len(units))
	for _, u := range units {
		index[u.ID] = u
	}

	typ := strings.TrimSpace(f.Type)
	if typ == AllTypes {
		typ = ""
	}
	query := strings.ToLower(strings.TrimSpace(f.Query))

	rows := []HistoryRow{}
	for _, l := range loans {
		row := HistoryRow{
			LoanID:        l.ID,
			UnitID:        l.UnitID,
			Type:          Placeholder,
			Model:         Placeholder,
			Tag:           Placeholder,
			EmployeeName:  l.EmployeeName,
			EmployeeEmail: l.EmployeeEmail,
			StartedAt:     l.StartedAt,
			ReturnedAt:    l.ReturnedAt,
			Open:          l.Open(),
		}
		if u, ok := index[l.UnitID]; ok {
			row.Type = u.Type
			row.Model = u.Model
			row.Tag = strconv.Itoa(u.Tag)
		}

		if typ != "" && row.Type != typ {
			continue
		}
		if query != "" && !strings.Contains(row.searchText(), query) {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}
