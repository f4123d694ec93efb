package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"FeedsImporter/internal/domain"
	"FeedsImporter/internal/ports"
)

// Store keeps records, linkage and run state in process memory. Values are
// copied in and out so callers never share maps with the store.
type Store struct {
	mu sync.RWMutex

	nextID   int64
	nextLink int64
	records  map[int64]domain.Record
	links    map[int64]domain.Linkage // keyed by entity id
	states   map[string]domain.RunState
}

var (
	_ ports.EntityStore       = (*Store)(nil)
	_ ports.EntityFinder      = (*Store)(nil)
	_ ports.LinkageRepository = (*Store)(nil)
	_ ports.StateStore        = (*Store)(nil)
)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		records: make(map[int64]domain.Record),
		links:   make(map[int64]domain.Linkage),
		states:  make(map[string]domain.RunState),
	}
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) NewEntity(_ context.Context, entityType, bundle string) (*domain.Record, error) {
	return &domain.Record{EntityType: entityType, Bundle: bundle, Fields: map[string]any{}}, nil
}

func (s *Store) LoadEntity(_ context.Context, entityType string, id int64) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok || record.EntityType != entityType {
		return nil, nil
	}
	out := copyRecord(record)
	if link, ok := s.links[id]; ok && link.EntityType == entityType {
		out.Linkage = &link
	}
	return &out, nil
}

func (s *Store) SaveEntity(_ context.Context, record *domain.Record) error {
	if record == nil {
		return fmt.Errorf("save entity: record is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == 0 {
		s.nextID++
		record.ID = s.nextID
	} else if record.ID > s.nextID {
		s.nextID = record.ID
	}

	stored := copyRecord(*record)
	stored.Linkage = nil
	s.records[record.ID] = stored

	if record.Linkage != nil {
		record.Linkage.EntityType = record.EntityType
		record.Linkage.EntityID = record.ID
		if prev, ok := s.links[record.ID]; ok {
			record.Linkage.ID = prev.ID
		} else {
			s.nextLink++
			record.Linkage.ID = s.nextLink
		}
		s.links[record.ID] = *record.Linkage
	}
	return nil
}

func (s *Store) DeleteEntities(_ context.Context, entityType string, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if record, ok := s.records[id]; ok && record.EntityType == entityType {
			delete(s.records, id)
		}
	}
	return nil
}

func (s *Store) FindEntity(_ context.Context, entityType, field string, value any) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := fmt.Sprint(value)
	var (
		found int64
		ok    bool
	)
	for id, record := range s.records {
		if record.EntityType != entityType {
			continue
		}
		v, set := record.Fields[field]
		if !set || fmt.Sprint(v) != want {
			continue
		}
		if !ok || id < found {
			found, ok = id, true
		}
	}
	return found, ok, nil
}

func (s *Store) Count(_ context.Context, scope domain.Scope) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scoped(scope)), nil
}

func (s *Store) Query(_ context.Context, scope domain.Scope, limit int) ([]domain.Linkage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.scoped(scope)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *Store) Lookup(_ context.Context, scope domain.Scope, field, value string) (int64, bool, error) {
	if field != "url" && field != "guid" {
		return 0, false, domain.Configurationf("linkage has no %q column", field)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, link := range s.scoped(scope) {
		if (field == "url" && link.URL == value) || (field == "guid" && link.GUID == value) {
			return link.EntityID, true, nil
		}
	}
	return 0, false, nil
}

func (s *Store) Fingerprint(_ context.Context, entityType string, entityID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[entityID]
	if !ok || link.EntityType != entityType {
		return "", nil
	}
	return link.Fingerprint, nil
}

func (s *Store) Delete(_ context.Context, entityType string, entityIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range entityIDs {
		if link, ok := s.links[id]; ok && link.EntityType == entityType {
			delete(s.links, id)
		}
	}
	return nil
}

func (s *Store) LoadState(_ context.Context, key string) (*domain.RunState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[key]
	if !ok {
		return nil, false, nil
	}
	return &state, true, nil
}

func (s *Store) SaveState(_ context.Context, key string, state *domain.RunState) error {
	if state == nil {
		return fmt.Errorf("save state: state is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[key] = *state
	return nil
}

func (s *Store) DeleteState(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key)
	return nil
}

// scoped returns the linkage rows of scope in insertion order. Callers hold the lock.
func (s *Store) scoped(scope domain.Scope) []domain.Linkage {
	var rows []domain.Linkage
	for _, link := range s.links {
		if link.ProcessorID == scope.ProcessorID && link.OriginID == scope.OriginID && link.EntityType == scope.EntityType {
			rows = append(rows, link)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

func copyRecord(r domain.Record) domain.Record {
	fields := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		if list, ok := v.([]any); ok {
			v = append([]any(nil), list...)
		}
		fields[k] = v
	}
	r.Fields = fields
	return r
}
