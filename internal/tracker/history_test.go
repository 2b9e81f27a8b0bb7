package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/teamdesk/internal/model"
)

func historyFixture() ([]model.Loan, []model.Unit) {
	units := []model.Unit{
		unit(1, model.TypeMouse, "MX Master", 1, true),
		unit(2, model.TypeKeyboard, "K120", 7, false),
	}
	returned := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	loans := []model.Loan{
		{ID: 3, UnitID: 1, EmployeeName: "Alice", EmployeeEmail: "alice@example.com",
			StartedAt: time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)},
		{ID: 2, UnitID: 2, EmployeeName: "Bob",
			StartedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), ReturnedAt: &returned},
		{ID: 1, UnitID: 99, EmployeeName: "Ghost",
			StartedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	return loans, units
}

func loanIDs(rows []HistoryRow) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.LoanID)
	}
	return out
}

func TestBuildHistoryResolvesUnits(t *testing.T) {
	loans, units := historyFixture()

	rows := BuildHistory(loans, units, HistoryFilter{})
	require.Len(t, rows, 3)
	assert.Equal(t, []int64{3, 2, 1}, loanIDs(rows), "input order is kept")

	assert.Equal(t, model.TypeMouse, rows[0].Type)
	assert.Equal(t, "MX Master", rows[0].Model)
	assert.Equal(t, "1", rows[0].Tag)
	assert.True(t, rows[0].Open)

	assert.False(t, rows[1].Open)
	assert.NotNil(t, rows[1].ReturnedAt)

	assert.Equal(t, Placeholder, rows[2].Type)
	assert.Equal(t, Placeholder, rows[2].Model)
	assert.Equal(t, Placeholder, rows[2].Tag)
}

func TestBuildHistoryTypeFilter(t *testing.T) {
	loans, units := historyFixture()

	assert.Equal(t, []int64{2}, loanIDs(BuildHistory(loans, units, HistoryFilter{Type: model.TypeKeyboard})))
	assert.Len(t, BuildHistory(loans, units, HistoryFilter{Type: AllTypes}), 3)
	assert.Empty(t, BuildHistory(loans, units, HistoryFilter{Type: model.TypeHeadset}))
}

func TestBuildHistorySearch(t *testing.T) {
	loans, units := historyFixture()

	tests := []struct {
		query string
		want  []int64
	}{
		{"alice", []int64{3}},
		{"  ALICE ", []int64{3}},
		{"example.com", []int64{3}},
		{"k120", []int64{2}},
		{"#7", []int64{2}},
		{"#1", []int64{3}},
		{"ghost", []int64{1}},
		{"carol", []int64{}},
		{"", []int64{3, 2, 1}},
	}

	for _, tt := range tests {
		got := BuildHistory(loans, units, HistoryFilter{Query: tt.query})
		assert.Equal(t, tt.want, loanIDs(got), "query %q", tt.query)
	}
}

func TestBuildHistoryCombinedFilters(t *testing.T) {
	loans, units := historyFixture()

	got := BuildHistory(loans, units, HistoryFilter{Type: model.TypeMouse, Query: "bob"})
	assert.Empty(t, got)
	assert.NotNil(t, got)
}
