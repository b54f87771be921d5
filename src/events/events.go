// Package events carries row-change notifications from the services to
// subscribers (SSE clients, live metrics, Discord notifications).
package events

import (
	"context"
	"encoding/json"
	"time"
)

type ChangeType string

const (
	Insert ChangeType = "INSERT"
	Update ChangeType = "UPDATE"
	Delete ChangeType = "DELETE"
)

// Table names as exposed to subscribers.
const (
	TableProposals     = "proposals"
	TableVotes         = "votes"
	TableCitizens      = "citizens"
	TableForumPosts    = "forum_posts"
	TableActivities    = "activities"
	TableNetworkStates = "network_states"
	TableAIAnalyses    = "ai_analyses"
)

// Change is one row mutation.
type Change struct {
	Table  string          `json:"table"`
	Type   ChangeType      `json:"type"`
	ID     string          `json:"id"`
	Record json.RawMessage `json:"record,omitempty"`
	At     time.Time       `json:"at"`
}

// NewChange snapshots record as JSON. A record that cannot be marshalled is
// dropped from the change rather than failing the publish.
func NewChange(table string, typ ChangeType, id string, record any) Change {
	c := Change{Table: table, Type: typ, ID: id, At: time.Now().UTC()}
	if record != nil {
		if b, err := json.Marshal(record); err == nil {
			c.Record = b
		}
	}
	return c
}

type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Bus is a Publisher that also delivers changes to subscribers. The returned
// channel is closed when ctx is done.
type Bus interface {
	Publisher
	Subscribe(ctx context.Context, tables ...string) (<-chan Change, error)
}

func matches(tables []string, table string) bool {
	if len(tables) == 0 {
		return true
	}
	for _, t := range tables {
		if t == table {
			return true
		}
	}
	return false
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Change) error { return nil }

// Nop discards every change.
func Nop() Publisher { return nopPublisher{} }
