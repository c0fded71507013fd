package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"detour/internal/provision/models"
	"detour/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded Registry for tests and single-node dev runs.
type InMemory struct {
	mu      sync.RWMutex
	records map[string]*models.Record
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[string]*models.Record)}
}

func (s *InMemory) Exists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[name]
	return ok, nil
}

func (s *InMemory) Put(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := record.Client.Name
	if _, ok := s.records[name]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.records[name] = cloneRecord(record)
	return nil
}

func (s *InMemory) Get(_ context.Context, name string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[name]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRecord(record), nil
}

func (s *InMemory) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[name]; !ok {
		return false, nil
	}
	delete(s.records, name)
	return true, nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]*models.Record, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, cloneRecord(record))
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Client.Name < records[j].Client.Name
	})
	return records, nil
}

func (s *InMemory) UpdateDocument(_ context.Context, name string, ref models.DocumentRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[name]
	if !ok {
		return sentinel.ErrNotFound
	}
	record.Document = ref
	record.Client.UpdatedAt = time.Now()
	return nil
}

// cloneRecord keeps callers from mutating stored state through returned
// pointers.
func cloneRecord(record *models.Record) *models.Record {
	client := *record.Client
	client.Regions = make(map[string]models.RemoteIdentity, len(record.Client.Regions))
	for regionID, identity := range record.Client.Regions {
		client.Regions[regionID] = identity
	}
	return &models.Record{Client: &client, Document: record.Document}
}
