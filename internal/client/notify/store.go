// Package notify keeps the local notification collection in sync with the
// server. Two update paths feed one store: periodic full snapshots and
// incremental push events. Whichever applies later wins for a given record.
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Notification is one user-facing activity alert.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	ActorID   string    `json:"actor_id"`
	ActorName string    `json:"actor_name,omitempty"`
	SubjectID string    `json:"subject_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}

// Store holds the ordered notification collection, newest first, unique by
// id. The unread counter is adjusted by delta on every operation and always
// equals the number of unread records.
type Store struct {
	mu      sync.RWMutex
	records []Notification
	unread  int
	lastErr error
	logger  zerolog.Logger
}

func NewStore(logger zerolog.Logger) *Store {
	return &Store{logger: logger}
}

// ApplySnapshot replaces the whole collection with the server's snapshot.
// Duplicate ids in the snapshot keep their first occurrence.
func (s *Store) ApplySnapshot(records []Notification) {
	seen := make(map[string]bool, len(records))
	fresh := make([]Notification, 0, len(records))
	unread := 0
	for _, n := range records {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		fresh = append(fresh, n)
		if !n.Read {
			unread++
		}
	}

	s.mu.Lock()
	s.records = fresh
	s.unread = unread
	s.lastErr = nil
	s.mu.Unlock()

	s.logger.Debug().Int("count", len(fresh)).Int("unread", unread).Msg("notification snapshot applied")
}

// ApplyNew prepends one pushed notification. A record already present under
// the same id is left untouched.
func (s *Store) ApplyNew(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.records {
		if existing.ID == n.ID {
			return
		}
	}
	s.records = append([]Notification{n}, s.records...)
	if !n.Read {
		s.unread++
	}
}

// MarkRead flips one record's read flag without reordering. Returns false if
// the id is unknown.
func (s *Store) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == id {
			if !s.records[i].Read {
				s.records[i].Read = true
				s.unread--
			}
			return true
		}
	}
	return false
}

// MarkAllRead flips every record's read flag. Calling it twice is a no-op
// the second time.
func (s *Store) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		s.records[i].Read = true
	}
	s.unread = 0
}

// Delete removes one record by id.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == id {
			if !s.records[i].Read {
				s.unread--
			}
			s.records = append(s.records[:i], s.records[i+1:]...)
			return true
		}
	}
	return false
}

// All returns a copy of the current collection, newest first.
func (s *Store) All() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Notification, len(s.records))
	copy(out, s.records)
	return out
}

// Unread returns the unread counter.
func (s *Store) Unread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// SetErr retains a refetch failure without touching the collection; stale
// data beats an empty screen.
func (s *Store) SetErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Err returns the retained refetch error, if any.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}
