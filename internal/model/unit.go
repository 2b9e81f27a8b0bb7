package model

import "time"

// Equipment types, in display order.
const (
	TypeMouse    = "Mouse"
	TypeKeyboard = "Keyboard"
	TypeCombo    = "Combo"
	TypeHeadset  = "Headset"
)

// EquipmentTypes lists every known equipment type in display order.
var EquipmentTypes = []string{TypeMouse, TypeKeyboard, TypeCombo, TypeHeadset}

// DefaultModel is used when a unit is added without a model name.
const DefaultModel = "Generic"

// ValidType reports whether t is a known equipment type.
func ValidType(t string) bool {
	for _, known := range EquipmentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Unit is a single physical piece of equipment. Its loan status is derived
// from the open loan referencing it and is never stored on the unit itself.
type Unit struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Model     string    `json:"model"`
	Tag       int       `json:"tag"`
	CreatedAt time.Time `json:"created_at"`

	// Derived from the open loan, if any.
	Active        bool       `json:"is_active"`
	ActiveLoanID  *int64     `json:"active_loan_id,omitempty"`
	EmployeeName  string     `json:"employee_name,omitempty"`
	EmployeeEmail string     `json:"employee_email,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
}

// ModelSummary is the per type+model availability aggregate.
type ModelSummary struct {
	Type      string `json:"type"`
	Model     string `json:"model"`
	Total     int    `json:"total"`
	Out       int    `json:"out"`
	Available int    `json:"available"`
}
