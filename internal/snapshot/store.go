package snapshot

import (
	"sync/atomic"
	"time"

	"github.com/nerrad567/powertag-monitor/internal/powertag"
)

// Snapshot is the complete set of rows from one finished cycle.
// It is never modified after publication.
type Snapshot struct {
	Cycle     uint64
	Timestamp time.Time
	// Order lists device names in configuration order.
	Order []string
	Rows  map[string]powertag.Row
}

// Get returns the row for tag.
func (s *Snapshot) Get(tag string) (powertag.Row, bool) {
	if s == nil {
		return powertag.Row{}, false
	}
	r, ok := s.Rows[tag]
	return r, ok
}

// Store holds the latest published Snapshot.
//
// Thread Safety:
//   - Publish is called by the sampler goroutine only.
//   - Latest and ReadAll are safe from any goroutine and never observe a
//     partially built snapshot.
type Store struct {
	current atomic.Pointer[Snapshot]
	cycles  atomic.Uint64
}

// New returns an empty Store. Latest returns nil until the first Publish.
func New() *Store {
	return &Store{}
}

// Publish replaces the current snapshot with one built from rows.
//
// Parameters:
//   - ts: cycle start time
//   - rows: the cycle's rows in configuration order
//
// Returns:
//   - *Snapshot: the snapshot now visible to readers
func (s *Store) Publish(ts time.Time, rows []powertag.Row) *Snapshot {
	snap := &Snapshot{
		Cycle:     s.cycles.Add(1),
		Timestamp: ts,
		Order:     make([]string, 0, len(rows)),
		Rows:      make(map[string]powertag.Row, len(rows)),
	}
	for _, r := range rows {
		snap.Order = append(snap.Order, r.Tag)
		snap.Rows[r.Tag] = r
	}
	s.current.Store(snap)
	return snap
}

// Latest returns the most recently published snapshot, or nil.
func (s *Store) Latest() *Snapshot {
	return s.current.Load()
}

// ReadAll returns the rows of the latest snapshot keyed by device name.
// The map is shared and must not be modified. Before the first publish it
// returns an empty map.
func (s *Store) ReadAll() map[string]powertag.Row {
	snap := s.current.Load()
	if snap == nil {
		return map[string]powertag.Row{}
	}
	return snap.Rows
}
