package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates master-key lifecycle transitions worth recording.
type EventType string

const (
	EventRotationInitiated EventType = "initiated"
	EventRotationSuccess   EventType = "success"
	EventRotationFailed    EventType = "failed"
	EventKeyAccess         EventType = "access"
)

// Event is one audit record. Details must stay content-free: key versions
// and counts, never submitted text or raw identities.
type Event struct {
	Type      EventType      `json:"type"`
	OrgID     uuid.UUID      `json:"org_id"`
	UserID    *uuid.UUID     `json:"user_id,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// Filter narrows a Query. Zero values match everything.
type Filter struct {
	OrgID uuid.UUID
	Type  EventType
	Since time.Time
	Limit int
}

// Trail is an append-only, bounded audit log. Implementations must be safe
// for one appender and many concurrent readers.
type Trail interface {
	Append(e Event)
	Query(f Filter) []Event
	Len() int
}

// DefaultCapacity bounds the in-memory trail; oldest entries evict first.
const DefaultCapacity = 10000

// MemoryTrail is the in-process Trail: a mutex-guarded ring buffer.
type MemoryTrail struct {
	mu    sync.RWMutex
	buf   []Event
	start int
	size  int
}

func NewMemoryTrail(capacity int) *MemoryTrail {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryTrail{buf: make([]Event, capacity)}
}

func (t *MemoryTrail) Append(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := (t.start + t.size) % len(t.buf)
	t.buf[idx] = e
	if t.size < len(t.buf) {
		t.size++
		return
	}
	// Full: the slot we just wrote was the oldest; advance past it.
	t.start = (t.start + 1) % len(t.buf)
}

// Query returns matching events oldest-first.
func (t *MemoryTrail) Query(f Filter) []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Event, 0)
	for i := 0; i < t.size; i++ {
		e := t.buf[(t.start+i)%len(t.buf)]
		if f.OrgID != uuid.Nil && e.OrgID != f.OrgID {
			continue
		}
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

func (t *MemoryTrail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// TeeTrail fans appends out to every trail and serves queries from the
// first. Used to pair the in-memory ring with a durable store.
type TeeTrail struct {
	trails []Trail
}

func NewTee(trails ...Trail) *TeeTrail {
	return &TeeTrail{trails: trails}
}

func (t *TeeTrail) Append(e Event) {
	for _, trail := range t.trails {
		trail.Append(e)
	}
}

func (t *TeeTrail) Query(f Filter) []Event {
	if len(t.trails) == 0 {
		return nil
	}
	return t.trails[0].Query(f)
}

func (t *TeeTrail) Len() int {
	if len(t.trails) == 0 {
		return 0
	}
	return t.trails[0].Len()
}
