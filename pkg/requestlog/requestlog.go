// Package requestlog records the request/response exchanges served by a stub
// service, for trace output and for assertions in tests.
package requestlog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry captures one served exchange.
type Entry struct {
	// ID is a unique identifier for the entry.
	ID string `json:"id"`

	// Timestamp is when the request was received.
	Timestamp time.Time `json:"timestamp"`

	// Method and Path describe the inbound request line.
	Method string `json:"method"`
	Path   string `json:"path"`

	// Headers are the inbound request headers (multi-value).
	Headers map[string][]string `json:"headers,omitempty"`

	// Body is the decoded request payload, empty for GET requests.
	Body string `json:"body,omitempty"`

	// MatchedRoute is the string form of the route that answered, empty on 404.
	MatchedRoute string `json:"matchedRoute,omitempty"`

	// Status is the response status code written back.
	Status int `json:"status"`

	// Duration is the total handling time, including the configured delay.
	Duration time.Duration `json:"duration"`
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Method string
	Path   string
}

// Store is a bounded, append-only log of served exchanges. Oldest entries are
// evicted first once the capacity is reached.
type Store struct {
	mu      sync.RWMutex
	entries []*Entry
	cap     int
}

// DefaultCapacity bounds a Store constructed with a non-positive capacity.
const DefaultCapacity = 1000

// NewStore creates a Store holding at most capacity entries.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		entries: make([]*Entry, 0, capacity),
		cap:     capacity,
	}
}

// Record appends an entry, assigning an ID and timestamp when unset.
func (s *Store) Record(entry *Entry) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) >= s.cap {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, entry)
}

// List returns entries in arrival order, optionally filtered.
func (s *Store) List(filter *Filter) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		if filter != nil {
			if filter.Method != "" && entry.Method != filter.Method {
				continue
			}
			if filter.Path != "" && entry.Path != filter.Path {
				continue
			}
		}
		result = append(result, entry)
	}
	return result
}

// Count returns the number of stored entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = s.entries[:0]
}
