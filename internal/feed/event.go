// Package feed carries change notifications for WBS records. Delivery is
// at-least-once and unordered across tables; consumers must tolerate
// duplicates and apply events by arrival.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alexanderramin/wbs/internal/domain"
)

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

const TableWBSItems = "wbs_items"

// Event is one row change. Record is nil for deletes.
type Event struct {
	Type      EventType       `json:"event"`
	Table     string          `json:"table"`
	ProjectID string          `json:"project_id"`
	ID        string          `json:"id"`
	Record    *domain.WBSItem `json:"record,omitempty"`
	At        time.Time       `json:"at"`
}

// ItemEvent builds an insert or update event for w.
func ItemEvent(t EventType, w *domain.WBSItem) Event {
	return Event{
		Type:      t,
		Table:     TableWBSItems,
		ProjectID: w.ProjectID,
		ID:        w.ID,
		Record:    w.Clone(),
		At:        time.Now().UTC(),
	}
}

// DeleteEvent builds a delete event for id.
func DeleteEvent(projectID, id string) Event {
	return Event{
		Type:      EventDelete,
		Table:     TableWBSItems,
		ProjectID: projectID,
		ID:        id,
		At:        time.Now().UTC(),
	}
}

// Topic is the stream key for a table and project.
func Topic(table, projectID string) string {
	return table + ":" + projectID
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, table, projectID string) (Subscription, error)
}

// Subscription delivers events until closed. Overflowed reports, and
// clears, whether events were dropped because the consumer fell behind.
type Subscription interface {
	Events() <-chan Event
	Overflowed() bool
	Close() error
}

// Feed is a transport that can both publish and subscribe.
type Feed interface {
	Publisher
	Subscriber
}

func encodeEvent(ev Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", ev.Type, err)
	}
	return b, nil
}

func decodeEvent(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("decoding event: %w", err)
	}
	if ev.Record != nil {
		// The raw column is not on the wire; the decoded flag is canonical.
		ev.Record.ExpandedRaw = json.RawMessage(domain.FlagJSON(ev.Record.IsExpanded))
		if ev.Record.Predecessors == nil {
			ev.Record.Predecessors = []domain.Predecessor{}
		}
		if ev.Record.LinkedTasks == nil {
			ev.Record.LinkedTasks = []string{}
		}
	}
	return ev, nil
}

// Nop discards published events and never delivers any.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
