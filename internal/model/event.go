package model

import "time"

// Event is an all-day, date-ranged calendar entry. End is exclusive.
type Event struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category"`
	Color       string    `json:"color,omitempty"`
	Start       time.Time `json:"start_time"`
	End         time.Time `json:"end_time"`
	CreatedBy   *int64    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
