package calendar

import (
	"encoding/json"
	"fmt"

	"github.com/erazemk/teamdesk/internal/model"
	"github.com/erazemk/teamdesk/internal/realtime"
)

// Apply merges an events change into rows and returns the result. rows is not
// modified. Inserts of an already present ID replace it, so a change that
// arrives twice is harmless. Changes to other resources are ignored.
func Apply(rows []model.Event, c realtime.Change) ([]model.Event, error) {
	if c.Resource != realtime.ResourceEvents {
		return rows, nil
	}

	out := make([]model.Event, 0, len(rows)+1)

	switch c.Op {
	case realtime.OpInsert, realtime.OpUpdate:
		var e model.Event
		if err := json.Unmarshal(c.Data, &e); err != nil {
			return rows, fmt.Errorf("decoding event change: %w", err)
		}
		replaced := false
		for _, r := range rows {
			if r.ID == e.ID {
				out = append(out, e)
				replaced = true
				continue
			}
			out = append(out, r)
		}
		if !replaced && c.Op == realtime.OpInsert {
			out = append(out, e)
		}
	case realtime.OpDelete:
		for _, r := range rows {
			if r.ID != c.ID {
				out = append(out, r)
			}
		}
	default:
		return rows, nil
	}
	return out, nil
}
