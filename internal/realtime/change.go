// Package realtime fans out row changes to subscribers so clients can merge
// them into their local copy instead of polling.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Op is the kind of row change.
type Op string

// Row change kinds.
const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Resources that publish changes.
const (
	ResourceUnits  = "units"
	ResourceLoans  = "loans"
	ResourceEvents = "events"
)

// Change describes one committed row change. Data holds the row after the
// change; for deletes it holds the row as it was.
type Change struct {
	Resource string          `json:"resource"`
	Op       Op              `json:"op"`
	ID       int64           `json:"id"`
	Data     json.RawMessage `json:"data,omitempty"`
	At       time.Time       `json:"at"`
}

// NewChange encodes row as the change payload.
func NewChange(resource string, op Op, id int64, row any) (Change, error) {
	c := Change{Resource: resource, Op: op, ID: id, At: time.Now().UTC()}
	if row != nil {
		data, err := json.Marshal(row)
		if err != nil {
			return Change{}, fmt.Errorf("encoding %s change: %w", resource, err)
		}
		c.Data = data
	}
	return c, nil
}

// Publisher delivers changes to interested subscribers. Publish never blocks
// on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, c Change)
}

// Discard is a Publisher that drops every change.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Change) {}
