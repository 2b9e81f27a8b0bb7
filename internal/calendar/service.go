package calendar

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/erazemk/teamdesk/internal/model"
	"github.com/erazemk/teamdesk/internal/realtime"
	"github.com/erazemk/teamdesk/internal/store"
)

// ErrNotCreator is returned when someone other than the creator or an admin
// tries to change an event.
var ErrNotCreator = errors.New("only the creator can change this event")

// Actor is the user performing a calendar operation.
type Actor struct {
	UserID int64
	Role   string
}

func (a Actor) canChange(e *model.Event) bool {
	if a.Role == model.RoleAdmin {
		return true
	}
	return e.CreatedBy != nil && *e.CreatedBy == a.UserID
}

// Service stores events and announces changes. A nil Changes drops them.
type Service struct {
	DB      *sql.DB
	Changes realtime.Publisher
}

func (s *Service) changes() realtime.Publisher {
	if s.Changes == nil {
		return realtime.Discard
	}
	return s.Changes
}

func (s *Service) publish(ctx context.Context, op realtime.Op, e *model.Event) {
	c, err := realtime.NewChange(realtime.ResourceEvents, op, e.ID, e)
	if err != nil {
		slog.Error("failed to build change", "resource", realtime.ResourceEvents, "id", e.ID, "error", err)
		return
	}
	s.changes().Publish(ctx, c)
}

// List returns events overlapping [from, to); zero bounds are open.
func (s *Service) List(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	events, err := store.ListEvents(ctx, s.DB, from, to)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

// Create validates in and stores it as an event owned by actor.
func (s *Service) Create(ctx context.Context, in Input, actor Actor) (*model.Event, error) {
	e, err := in.Event()
	if err != nil {
		return nil, err
	}
	if actor.UserID > 0 {
		e.CreatedBy = &actor.UserID
	}

	created, err := store.CreateEvent(ctx, s.DB, e)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.OpInsert, created)
	return created, nil
}

// Update replaces the editable fields of event id.
func (s *Service) Update(ctx context.Context, id int64, in Input, actor Actor) (*model.Event, error) {
	existing, err := s.owned(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	e, err := in.Event()
	if err != nil {
		return nil, err
	}
	e.ID = existing.ID
	e.CreatedBy = existing.CreatedBy

	updated, err := store.UpdateEvent(ctx, s.DB, e)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.OpUpdate, updated)
	return updated, nil
}

// Delete removes event id.
func (s *Service) Delete(ctx context.Context, id int64, actor Actor) (*model.Event, error) {
	existing, err := s.owned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := store.DeleteEvent(ctx, s.DB, id); err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.OpDelete, existing)
	return existing, nil
}

func (s *Service) owned(ctx context.Context, id int64, actor Actor) (*model.Event, error) {
	existing, err := store.GetEvent(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, store.ErrEventNotFound
	}
	if !actor.canChange(existing) {
		return nil, ErrNotCreator
	}
	return existing, nil
}
