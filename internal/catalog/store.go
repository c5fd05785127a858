// Package catalog holds the in-memory, concurrency-safe store of stations,
// areas, and programs that the relay serves lookups from. Only
// CatalogFetcher writes programs; everything else reads.
package catalog

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/arung-agamani/denpa-radio/internal/broadcastclock"
)

// Store is the single source of truth for stations, areas, and programs.
type Store struct {
	mu sync.RWMutex

	stations map[string]*Station
	areas    map[string]*Area

	programs  map[string]*Program   // keyed by ProgID
	byStation map[string][]*Program // per station, sorted ascending by Ft

	cacheMu sync.Mutex
	cache   map[string]cacheEntry // keyed by stationId
}

type cacheEntry struct {
	minute  int64
	program *Program
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		stations:  make(map[string]*Station),
		areas:     make(map[string]*Area),
		programs:  make(map[string]*Program),
		byStation: make(map[string][]*Program),
		cache:     make(map[string]cacheEntry),
	}
}

// UpsertStation adds or replaces a station record. Called only during
// catalog bootstrap/refresh.
func (s *Store) UpsertStation(st *Station) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stations[st.StationID] = st
}

// UpsertArea adds or replaces an area record.
func (s *Store) UpsertArea(a *Area) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.areas[a.AreaID] = a
}

// Station returns the station with the given id, or nil if unknown.
func (s *Store) Station(stationID string) *Station {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stations[stationID]
}

// Stations returns all known stations, order unspecified.
func (s *Store) Stations() []*Station {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Station, 0, len(s.stations))
	for _, st := range s.stations {
		result = append(result, st)
	}
	return result
}

// Area returns the area with the given id, or nil if unknown.
func (s *Store) Area(areaID string) *Area {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.areas[areaID]
}

// Areas returns all known areas, order unspecified.
func (s *Store) Areas() []*Area {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Area, 0, len(s.areas))
	for _, a := range s.areas {
		result = append(result, a)
	}
	return result
}

// UpsertProgram inserts p. A duplicate ProgID is a silent no-op. An interval
// that overlaps an existing program for the same station is logged and
// resolved by "later wins": the previous overlapping record is removed and
// p takes its place.
func (s *Store) UpsertProgram(p *Program) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.programs[p.ProgID]; exists {
		return
	}

	list := s.byStation[p.StationID]

	kept := list[:0:0]
	for _, existing := range list {
		if intervalsOverlap(existing.Ft, existing.To, p.Ft, p.To) {
			slog.Warn("catalog: overlapping program interval, later insert wins",
				"stationId", p.StationID,
				"removedProgId", existing.ProgID,
				"insertedProgId", p.ProgID,
			)
			delete(s.programs, existing.ProgID)
			continue
		}
		kept = append(kept, existing)
	}

	kept = append(kept, p)
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Ft.Equal(kept[j].Ft) {
			return kept[i].To.Before(kept[j].To)
		}
		return kept[i].Ft.Before(kept[j].Ft)
	})

	s.byStation[p.StationID] = kept
	s.programs[p.ProgID] = p

	s.invalidateCacheLocked(p.StationID)
}

func intervalsOverlap(aFt, aTo, bFt, bTo time.Time) bool {
	return aFt.Before(bTo) && bFt.Before(aTo)
}

// findLocked performs the binary search for the program containing t,
// assuming the caller holds at least a read lock.
func (s *Store) findLocked(stationID string, t time.Time) *Program {
	list := s.byStation[stationID]
	if len(list) == 0 {
		return nil
	}
	// First program whose Ft is after t.
	idx := sort.Search(len(list), func(i int) bool {
		return list[i].Ft.After(t)
	})
	if idx == 0 {
		return nil
	}
	candidate := list[idx-1]
	if candidate.Contains(t) {
		return candidate
	}
	return nil
}

// FindCurrent returns the program covering now for stationID, or nil. The
// last (stationId, now) lookup is cached at minute granularity to absorb
// repeated polling from active stream sessions; the cached value is only
// ever returned when it still contains the queried instant, so the cache
// cannot weaken the single-result invariant.
func (s *Store) FindCurrent(stationID string, now time.Time) *Program {
	minute := now.Unix() / 60

	s.cacheMu.Lock()
	if entry, ok := s.cache[stationID]; ok && entry.minute == minute && entry.program != nil && entry.program.Contains(now) {
		p := entry.program
		s.cacheMu.Unlock()
		return p
	}
	s.cacheMu.Unlock()

	s.mu.RLock()
	p := s.findLocked(stationID, now)
	s.mu.RUnlock()

	if p != nil {
		s.cacheMu.Lock()
		s.cache[stationID] = cacheEntry{minute: minute, program: p}
		s.cacheMu.Unlock()
	}
	return p
}

// FindAt returns the program covering instant t for stationID, or nil. This
// bypasses the now-cache; it is used for time-shift lookups at arbitrary
// past instants.
func (s *Store) FindAt(stationID string, t time.Time) *Program {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(stationID, t)
}

// ListForDay returns all programs for stationID whose interval intersects
// the broadcast day that starts at broadcastDate@05:00, sorted ascending by
// Ft then To.
func (s *Store) ListForDay(stationID string, broadcastDate time.Time) []*Program {
	start, end := broadcastclock.BroadcastDayBounds(broadcastDate)

	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.byStation[stationID]
	result := make([]*Program, 0, len(list))
	for _, p := range list {
		if intervalsOverlap(p.Ft, p.To, start, end) {
			result = append(result, p)
		}
	}
	return result
}

// PurgeBefore removes every program whose To is before t and returns the
// count removed. Calling it twice with the same t removes nothing the
// second time (idempotent).
func (s *Store) PurgeBefore(t time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for stationID, list := range s.byStation {
		kept := list[:0:0]
		for _, p := range list {
			if p.To.Before(t) {
				delete(s.programs, p.ProgID)
				removed++
				continue
			}
			kept = append(kept, p)
		}
		s.byStation[stationID] = kept
		s.invalidateCacheLocked(stationID)
	}
	return removed
}

// Count returns the total number of programs currently stored.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.programs)
}

// Clear removes every station, area, and program. Used during shutdown.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stations = make(map[string]*Station)
	s.areas = make(map[string]*Area)
	s.programs = make(map[string]*Program)
	s.byStation = make(map[string][]*Program)

	s.cacheMu.Lock()
	s.cache = make(map[string]cacheEntry)
	s.cacheMu.Unlock()
}

func (s *Store) invalidateCacheLocked(stationID string) {
	s.cacheMu.Lock()
	delete(s.cache, stationID)
	s.cacheMu.Unlock()
}
