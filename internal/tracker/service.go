// Package tracker implements the equipment loan workflows: adding units,
// assigning them to employees, returning them, and the read-side inventory
// and history projections.
package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/erazemk/teamdesk/internal/model"
	"github.com/erazemk/teamdesk/internal/realtime"
	"github.com/erazemk/teamdesk/internal/store"
)

// Validation failures. They are returned wrapped in a *model.ValidationError.
var (
	ErrNameRequired     = errors.New("please enter employee name")
	ErrUnitRequired     = errors.New("please choose a unit")
	ErrLoanRequired     = errors.New("no open loan to return")
	ErrNotConfirmed     = errors.New("return must be confirmed")
	ErrQuantity         = errors.New("quantity must be at least 1")
	ErrUnknownType      = errors.New("unknown equipment type")
	ErrLoanUnitMismatch = errors.New("loan does not belong to this unit")
)

// DefaultHistoryLimit caps how many recent loans a snapshot reads.
const DefaultHistoryLimit = 250

// Service runs the loan workflows against the database and announces every
// committed change to Changes, or to realtime.Discard when it is nil.
type Service struct {
	DB           *sql.DB
	Changes      realtime.Publisher
	HistoryLimit int
	// Now defaults to time.Now; tests replace it.
	Now func() time.Time
}

// AddUnitsRequest asks for Quantity new units of Type. NewModel wins over
// ExistingModel; with neither, units get model.DefaultModel.
type AddUnitsRequest struct {
	Type          string `json:"type"`
	Quantity      int    `json:"quantity"`
	ExistingModel string `json:"existing_model"`
	NewModel      string `json:"new_model"`
}

// AssignRequest loans UnitID to an employee.
type AssignRequest struct {
	EmployeeName  string `json:"employee_name"`
	EmployeeEmail string `json:"employee_email"`
	UnitID        int64  `json:"unit_id"`
}

// AssignResponse reports an assignment. EmployeeName is kept so the next
// unit can go to the same person; UnitID is always zero, clearing the
// selection since the unit is no longer available.
type AssignResponse struct {
	Loan         *model.Loan `json:"loan"`
	EmployeeName string      `json:"employee_name"`
	UnitID       int64       `json:"unit_id"`
}

// NewAssignResponse builds the response for a freshly opened loan.
func NewAssignResponse(loan *model.Loan) AssignResponse {
	return AssignResponse{Loan: loan, EmployeeName: loan.EmployeeName}
}

// ReturnRequest ends LoanID. UnitID, when set, must match the loan's unit.
type ReturnRequest struct {
	LoanID    int64 `json:"loan_id"`
	UnitID    int64 `json:"unit_id"`
	Confirmed bool  `json:"confirm"`
}

// ResolveModel picks the model name for new units.
func ResolveModel(newModel, existingModel string) string {
	if m := strings.TrimSpace(newModel); m != "" {
		return m
	}
	if m := strings.TrimSpace(existingModel); m != "" {
		return m
	}
	return model.DefaultModel
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// changes returns the configured publisher, or realtime.Discard.
func (s *Service) changes() realtime.Publisher {
	if s.Changes == nil {
		return realtime.Discard
	}
	return s.Changes
}

func (s *Service) publish(ctx context.Context, resource string, op realtime.Op, id int64, row any) {
	c, err := realtime.NewChange(resource, op, id, row)
	if err != nil {
		slog.Error("failed to build change", "resource", resource, "id", id, "error", err)
		return
	}
	s.changes().Publish(ctx, c)
}

// AddUnits creates the requested units with consecutive tags after the
// current highest tag of the type.
func (s *Service) AddUnits(ctx context.Context, req AddUnitsRequest) ([]model.Unit, error) {
	if req.Quantity < 1 {
		return nil, model.Invalid("quantity", ErrQuantity)
	}
	if !model.ValidType(req.Type) {
		return nil, model.Invalid("type", ErrUnknownType)
	}

	units, err := store.AddUnits(ctx, s.DB, req.Type, ResolveModel(req.NewModel, req.ExistingModel), req.Quantity)
	if err != nil {
		return nil, err
	}

	for _, u := range units {
		s.publish(ctx, realtime.ResourceUnits, realtime.OpInsert, u.ID, u)
	}
	return units, nil
}

// Assign opens a loan for an available unit. The unit row is never written;
// its status follows from the open loan.
func (s *Service) Assign(ctx context.Context, req AssignRequest) (*model.Loan, error) {
	name := strings.TrimSpace(req.EmployeeName)
	if name == "" {
		return nil, model.Invalid("employee_name", ErrNameRequired)
	}
	if req.UnitID <= 0 {
		return nil, model.Invalid("unit_id", ErrUnitRequired)
	}

	loan, err := store.CreateLoan(ctx, s.DB, req.UnitID, name, strings.TrimSpace(req.EmployeeEmail), s.now())
	if err != nil {
		return nil, err
	}

	s.publish(ctx, realtime.ResourceLoans, realtime.OpInsert, loan.ID, loan)
	return loan, nil
}

// Return ends an open loan. Nothing is written unless the caller confirmed.
func (s *Service) Return(ctx context.Context, req ReturnRequest) (*model.Loan, error) {
	if req.LoanID <= 0 {
		return nil, model.Invalid("loan_id", ErrLoanRequired)
	}
	if !req.Confirmed {
		return nil, model.Invalid("confirm", ErrNotConfirmed)
	}

	if req.UnitID > 0 {
		existing, err := store.GetLoan(ctx, s.DB, req.LoanID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, store.ErrLoanNotFound
		}
		if existing.UnitID != req.UnitID {
			return nil, model.Invalid("unit_id", ErrLoanUnitMismatch)
		}
	}

	loan, err := store.ReturnLoan(ctx, s.DB, req.LoanID, s.now())
	if err != nil {
		return nil, err
	}

	s.publish(ctx, realtime.ResourceLoans, realtime.OpUpdate, loan.ID, loan)
	return loan, nil
}

// Snapshot is a consistent-enough read of everything the loan views need.
// It is never mutated after Snapshot returns it.
type Snapshot struct {
	Units   []model.Unit         `json:"units"`
	Models  []model.ModelSummary `json:"models"`
	Loans   []model.Loan         `json:"loans"`
	TakenAt time.Time            `json:"taken_at"`
}

// Snapshot reads units, model aggregates and the most recent loans.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	limit := s.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	units, err := store.ListUnits(ctx, s.DB, "")
	if err != nil {
		return nil, fmt.Errorf("loading units: %w", err)
	}
	models, err := store.ListModels(ctx, s.DB)
	if err != nil {
		return nil, fmt.Errorf("loading models: %w", err)
	}
	loans, err := store.ListLoans(ctx, s.DB, store.LoanFilter{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("loading loans: %w", err)
	}

	if units == nil {
		units = []model.Unit{}
	}
	if models == nil {
		models = []model.ModelSummary{}
	}
	if loans == nil {
		loans = []model.Loan{}
	}
	return &Snapshot{Units: units, Models: models, Loans: loans, TakenAt: s.now()}, nil
}

// Inventory aggregates the snapshot's units.
func (snap *Snapshot) Inventory() Inventory {
	return Aggregate(snap.Units)
}

// History builds the filtered loan history from the snapshot.
func (snap *Snapshot) History(f HistoryFilter) []HistoryRow {
	return BuildHistory(snap.Loans, snap.Units, f)
}
