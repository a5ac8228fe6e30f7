// Package audit is the append-only record of every authorization state
// transition. Sinks are fire-and-forget; a slow or broken sink must never
// stall a permission check.
package audit

import (
	"sync"
	"time"
)

type EventType string

const (
	EventGranted EventType = "granted"
	EventDenied  EventType = "denied"
	EventRevoked EventType = "revoked"
	EventExpired EventType = "expired"
	EventChecked EventType = "checked"
)

// Entry is one immutable audit record. Subject is the id of the
// permission or consent the event concerns.
type Entry struct {
	Timestamp    time.Time         `json:"timestamp"`
	Event        EventType         `json:"event"`
	Kind         string            `json:"kind"` // "permission" | "consent"
	Subject      string            `json:"subject,omitempty"`
	UserID       string            `json:"user_id"`
	ActedBy      string            `json:"acted_by,omitempty"`
	ResourceType string            `json:"resource_type,omitempty"`
	Action       string            `json:"action,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	Detail       map[string]string `json:"detail,omitempty"`
}

// Sink accepts entries for delivery. Implementations must not block the
// caller and must not panic.
type Sink interface {
	Record(e Entry)
}

// Ledger is the in-memory sink backing compliance queries. Entries are
// append-only; nothing removes them.
type Ledger struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Record(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// ForUser returns every entry recorded for the user, in insertion order.
// The returned slice is a copy.
func (l *Ledger) ForUser(userID string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []Entry{}
	for _, e := range l.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// Len reports the total number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Fanout delivers each entry to every sink in order.
type Fanout []Sink

func (f Fanout) Record(e Entry) {
	for _, s := range f {
		s.Record(e)
	}
}

// Discard drops everything. Useful as a default when no sink is wired.
type Discard struct{}

func (Discard) Record(Entry) {}
