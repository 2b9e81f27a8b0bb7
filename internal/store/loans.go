package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/erazemk/teamdesk/internal/model"
)

// LoanFilter narrows ListLoans. Zero values disable a filter.
type LoanFilter struct {
	UnitID int64
	// Open selects only open (true) or only returned (false) loans.
	Open  *bool
	Since time.Time
	Limit int
}

// CreateLoan opens a loan for unitID. The insert only happens if the unit
// exists and has no open loan, so two concurrent assignments of the same
// unit cannot both succeed.
func CreateLoan(ctx context.Context, db *sql.DB, unitID int64, name, email string, startedAt time.Time) (*model.Loan, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO loans (unit_id, employee_name, employee_email, started_at)
		 SELECT u.id, ?, ?, ? FROM units u
		 WHERE u.id = ?
		   AND NOT EXISTS (SELECT 1 FROM loans l WHERE l.unit_id = u.id AND l.returned_at IS NULL)`,
		name, nullString(email), startedAt, unitID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUnitUnavailable
		}
		return nil, fmt.Errorf("creating loan: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking loan insert: %w", err)
	}
	if n == 0 {
		unit, err := GetUnit(ctx, db, unitID)
		if err != nil {
			return nil, err
		}
		if unit == nil {
			return nil, ErrUnitNotFound
		}
		return nil, ErrUnitUnavailable
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting loan id: %w", err)
	}
	return GetLoan(ctx, db, id)
}

// ReturnLoan closes an open loan. Returned loans are left untouched and
// reported as ErrLoanReturned.
func ReturnLoan(ctx context.Context, db *sql.DB, id int64, returnedAt time.Time) (*model.Loan, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE loans SET returned_at = ? WHERE id = ? AND returned_at IS NULL`,
		returnedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("returning loan: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking loan update: %w", err)
	}

	loan, err := GetLoan(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, ErrLoanNotFound
	}
	if n == 0 {
		return nil, ErrLoanReturned
	}
	return loan, nil
}

// GetLoan returns a loan by ID.
func GetLoan(ctx context.Context, db *sql.DB, id int64) (*model.Loan, error) {
	l := &model.Loan{}
	var email sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, unit_id, employee_name, employee_email, started_at, returned_at
		 FROM loans WHERE id = ?`, id,
	).Scan(&l.ID, &l.UnitID, &l.EmployeeName, &email, &l.StartedAt, &l.ReturnedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting loan: %w", err)
	}
	l.EmployeeEmail = email.String
	return l, nil
}

// ListLoans returns loans, most recent first.
func ListLoans(ctx context.Context, db *sql.DB, f LoanFilter) ([]model.Loan, error) {
	ds := dialect.From("loans").
		Select("id", "unit_id", "employee_name", "employee_email", "started_at", "returned_at")

	if f.UnitID > 0 {
		ds = ds.Where(goqu.C("unit_id").Eq(f.UnitID))
	}
	if f.Open != nil {
		if *f.Open {
			ds = ds.Where(goqu.C("returned_at").IsNull())
		} else {
			ds = ds.Where(goqu.C("returned_at").IsNotNull())
		}
	}
	if !f.Since.IsZero() {
		ds = ds.Where(goqu.C("started_at").Gte(f.Since.UTC()))
	}

	ds = ds.Order(goqu.C("started_at").Desc(), goqu.C("id").Desc())
	if f.Limit > 0 {
		ds = ds.Limit(uint(f.Limit))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building loans query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing loans: %w", err)
	}
	defer rows.Close()

	var loans []model.Loan
	for rows.Next() {
		var l model.Loan
		var email sql.NullString
		if err := rows.Scan(&l.ID, &l.UnitID, &l.EmployeeName, &email, &l.StartedAt, &l.ReturnedAt); err != nil {
			return nil, fmt.Errorf("scanning loan: %w", err)
		}
		l.EmployeeEmail = email.String
		loans = append(loans, l)
	}
	return loans, rows.Err()
}
