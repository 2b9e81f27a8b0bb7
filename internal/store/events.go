package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/erazemk/teamdesk/internal/model"
)

const eventColumns = `id, title, description, category, color, start_time, end_time,
	created_by, created_at, updated_at`

// CreateEvent inserts e and returns the stored row.
func CreateEvent(ctx context.Context, db *sql.DB, e model.Event) (*model.Event, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO events (title, description, category, color, start_time, end_time, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Title, nullString(e.Description), e.Category, nullString(e.Color),
		e.Start.UTC(), e.End.UTC(), e.CreatedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("creating event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting event id: %w", err)
	}
	return GetEvent(ctx, db, id)
}

// GetEvent returns an event by ID.
func GetEvent(ctx context.Context, db *sql.DB, id int64) (*model.Event, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting event: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

// UpdateEvent overwrites the editable fields of an event.
func UpdateEvent(ctx context.Context, db *sql.DB, e model.Event) (*model.Event, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE events
		 SET title = ?, description = ?, category = ?, color = ?, start_time = ?, end_time = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		e.Title, nullString(e.Description), e.Category, nullString(e.Color),
		e.Start.UTC(), e.End.UTC(), e.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating event: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking event update: %w", err)
	}
	if n == 0 {
		return nil, ErrEventNotFound
	}
	return GetEvent(ctx, db, e.ID)
}

// DeleteEvent permanently removes an event.
func DeleteEvent(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking event delete: %w", err)
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

// ListEvents returns events ordered by start. A non-zero from or to keeps only
// events overlapping the half-open window [from, to).
func ListEvents(ctx context.Context, db *sql.DB, from, to time.Time) ([]model.Event, error) {
	ds := dialect.From("events").Select(
		"id", "title", "description", "category", "color", "start_time", "end_time",
		"created_by", "created_at", "updated_at",
	)

	if !to.IsZero() {
		ds = ds.Where(goqu.C("start_time").Lt(to.UTC()))
	}
	if !from.IsZero() {
		ds = ds.Where(goqu.C("end_time").Gt(from.UTC()))
	}
	ds = ds.Order(goqu.C("start_time").Asc(), goqu.C("id").Asc())

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building events query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]model.Event, error) {
	var events []model.Event
	for rows.Next() {
		var e model.Event
		var description, color sql.NullString
		if err := rows.Scan(&e.ID, &e.Title, &description, &e.Category, &color,
			&e.Start, &e.End, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Description = description.String
		e.Color = color.String
		e.Start = e.Start.UTC()
		e.End = e.End.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}
