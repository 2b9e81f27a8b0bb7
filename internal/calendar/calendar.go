// Package calendar holds the team calendar rules: categories and their
// colors, date-range conversion, validation, and merging of live changes.
package calendar

import (
	"errors"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/erazemk/teamdesk/internal/model"
)

// DefaultCategory is used when an event is saved without a category.
const DefaultCategory = "Meeting"

// Categories lists every event category in display order.
var Categories = []string{
	"Work Trip", "Holiday", "Meeting", "Maintenance", "On-call", "Doctor", "Dentist", "Barber",
}

// CategoryColors are the fallback colors of categories that have one.
var CategoryColors = map[string]string{
	"Work Trip":   "#2563eb",
	"Holiday":     "#22c55e",
	"Meeting":     "#f59e0b",
	"Maintenance": "#ef4444",
	"On-call":     "#a855f7",
}

// Palette is the set of preset colors offered when picking an event color.
var Palette = []string{
	"#ef4444", "#f97316", "#f59e0b", "#eab308", "#84cc16",
	"#22c55e", "#10b981", "#14b8a6", "#06b6d4", "#0ea5e9",
	"#3b82f6", "#6366f1", "#8b5cf6", "#a855f7", "#d946ef",
	"#ec4899", "#f43f5e", "#737373", "#64748b", "#0f172a",
}

// DateLayout is the format of the inclusive dates in requests.
const DateLayout = "2006-01-02"

// Validation failures, returned wrapped in a *model.ValidationError.
var (
	ErrTitleRequired   = errors.New("please enter a title")
	ErrDatesRequired   = errors.New("please choose dates")
	ErrInvalidDate     = errors.New("dates must be formatted as YYYY-MM-DD")
	ErrRangeOrder      = errors.New("end date must not be before start date")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidColor    = errors.New("color must be a #rrggbb hex value")
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidCategory reports whether c is a known category.
func ValidCategory(c string) bool {
	return slices.Contains(Categories, c)
}

// ResolveColor returns the chosen color, else the category's color, else "".
func ResolveColor(chosen, category string) string {
	if chosen != "" {
		return chosen
	}
	return CategoryColors[category]
}

// DisplayTitle renders an event title with its category, e.g. "Standup (MEETING)".
func DisplayTitle(title, category string) string {
	if category == "" {
		return title
	}
	return title + " (" + strings.ToUpper(category) + ")"
}

// StoredRange converts inclusive calendar dates into the stored half-open
// range: midnight UTC of the first day up to midnight after the last day.
func StoredRange(startDate, endDate string) (time.Time, time.Time, error) {
	if strings.TrimSpace(startDate) == "" || strings.TrimSpace(endDate) == "" {
		return time.Time{}, time.Time{}, model.Invalid("start_date", ErrDatesRequired)
	}
	start, err := time.Parse(DateLayout, strings.TrimSpace(startDate))
	if err != nil {
		return time.Time{}, time.Time{}, model.Invalid("start_date", ErrInvalidDate)
	}
	last, err := time.Parse(DateLayout, strings.TrimSpace(endDate))
	if err != nil {
		return time.Time{}, time.Time{}, model.Invalid("end_date", ErrInvalidDate)
	}
	if last.Before(start) {
		return time.Time{}, time.Time{}, model.Invalid("end_date", ErrRangeOrder)
	}
	return start, last.AddDate(0, 0, 1), nil
}

// FormRange is the inverse of StoredRange.
func FormRange(start, end time.Time) (string, string) {
	return start.UTC().Format(DateLayout), end.UTC().AddDate(0, 0, -1).Format(DateLayout)
}

// Input is an event as submitted by a user.
type Input struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Color       string `json:"color"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

// Event validates in and returns the event to store. ID and ownership are
// left for the caller.
func (in Input) Event() (model.Event, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.Event{}, model.Invalid("title", ErrTitleRequired)
	}

	start, end, err := StoredRange(in.StartDate, in.EndDate)
	if err != nil {
		return model.Event{}, err
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = DefaultCategory
	}
	if !ValidCategory(category) {
		return model.Event{}, model.Invalid("category", ErrUnknownCategory)
	}

	color := strings.TrimSpace(in.Color)
	if color != "" && !hexColor.MatchString(color) {
		return model.Event{}, model.Invalid("color", ErrInvalidColor)
	}

	return model.Event{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Category:    category,
		Color:       strings.ToLower(ResolveColor(color, category)),
		Start:       start,
		End:         end,
	}, nil
}
