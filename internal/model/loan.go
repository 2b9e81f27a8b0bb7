package model

import "time"

// Loan links one unit to one employee over a time interval. A nil
// ReturnedAt means the loan is still open.
type Loan struct {
	ID            int64      `json:"id"`
	UnitID        int64      `json:"unit_id"`
	EmployeeName  string     `json:"employee_name"`
	EmployeeEmail string     `json:"employee_email,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	ReturnedAt    *time.Time `json:"returned_at,omitempty"`
}

// Open reports whether the loan has not been returned yet.
func (l Loan) Open() bool {
	return l.ReturnedAt == nil
}
