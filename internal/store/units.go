package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/teamdesk/internal/model"
)

const unitColumns = `u.id, u.type, u.model, u.tag, u.created_at,
	l.id, l.employee_name, l.employee_email, l.started_at`

// unitJoin attaches the open loan, if any, to each unit.
const unitJoin = `FROM units u
	LEFT JOIN loans l ON l.unit_id = u.id AND l.returned_at IS NULL`

// AddUnits inserts quantity units of the given type and model in a single
// transaction. Each tag is allocated by the insert itself as the current
// maximum for the type plus one, so tags are consecutive and never reused.
func AddUnits(ctx context.Context, db *sql.DB, typ, unitModel string, quantity int) ([]model.Unit, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make([]int64, 0, quantity)
	for range quantity {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO units (type, model, tag)
			 SELECT ?, ?, COALESCE(MAX(tag), 0) + 1 FROM units WHERE type = ?`,
			typ, unitModel, typ,
		)
		if err != nil {
			return nil, fmt.Errorf("inserting unit: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("getting unit id: %w", err)
		}
		ids = append(ids, id)
	}

	units := make([]model.Unit, 0, quantity)
	for _, id := range ids {
		var u model.Unit
		err := tx.QueryRowContext(ctx,
			`SELECT id, type, model, tag, created_at FROM units WHERE id = ?`, id,
		).Scan(&u.ID, &u.Type, &u.Model, &u.Tag, &u.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("reading unit: %w", err)
		}
		units = append(units, u)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing units: %w", err)
	}
	return units, nil
}

// GetUnit returns a unit with its derived loan status.
func GetUnit(ctx context.Context, db *sql.DB, id int64) (*model.Unit, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+unitColumns+` `+unitJoin+` WHERE u.id = ?`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting unit: %w", err)
	}
	defer rows.Close()

	units, err := scanUnits(rows)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, nil
	}
	return &units[0], nil
}

// ListUnits returns all units ordered by type and tag, optionally limited to one type.
func ListUnits(ctx context.Context, db *sql.DB, typ string) ([]model.Unit, error) {
	query := `SELECT ` + unitColumns + ` ` + unitJoin + ` WHERE 1=1`
	var args []any

	if typ != "" {
		query += ` AND u.type = ?`
		args = append(args, typ)
	}
	query += ` ORDER BY u.type, u.tag`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing units: %w", err)
	}
	defer rows.Close()

	return scanUnits(rows)
}

// ListModels returns per type+model counts ordered by type and model.
func ListModels(ctx context.Context, db *sql.DB) ([]model.ModelSummary, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT u.type, u.model, COUNT(*) AS total, COUNT(l.id) AS out
		 `+unitJoin+`
		 GROUP BY u.type, u.model
		 ORDER BY u.type, u.model`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	defer rows.Close()

	var summaries []model.ModelSummary
	for rows.Next() {
		var s model.ModelSummary
		if err := rows.Scan(&s.Type, &s.Model, &s.Total, &s.Out); err != nil {
			return nil, fmt.Errorf("scanning model: %w", err)
		}
		s.Available = s.Total - s.Out
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func scanUnits(rows *sql.Rows) ([]model.Unit, error) {
	var units []model.Unit
	for rows.Next() {
		var u model.Unit
		var name, email sql.NullString
		if err := rows.Scan(&u.ID, &u.Type, &u.Model, &u.Tag, &u.CreatedAt,
			&u.ActiveLoanID, &name, &email, &u.StartedAt); err != nil {
			return nil, fmt.Errorf("scanning unit: %w", err)
		}
		u.Active = u.ActiveLoanID != nil
		u.EmployeeName = name.String
		u.EmployeeEmail = email.String
		units = append(units, u)
	}
	return units, rows.Err()
}
