package main

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"fileqa/internal/table"
)

var errDatasetNotFound = errors.New("dataset not found")

// Dataset is an uploaded CSV kept loaded for repeated questions
type Dataset struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"created_at"`
	Table     *table.Table `json:"-"`
}

// DatasetStore keeps at most max datasets; adding past the limit closes the oldest
type DatasetStore struct {
	mu    sync.Mutex
	max   int
	order []string
	items map[string]*Dataset
}

// NewDatasetStore creates a store bounded to max datasets
func NewDatasetStore(max int) *DatasetStore {
	if max <= 0 {
		max = 1
	}
	return &DatasetStore{max: max, items: make(map[string]*Dataset)}
}

// Add stores tbl under a new id
func (s *DatasetStore) Add(name string, tbl *table.Table) *Dataset {
	ds := &Dataset{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Table:     tbl,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.order) >= s.max {
		oldest := s.order[0]
		s.order = s.order[1:]
		if old, ok := s.items[oldest]; ok {
			_ = old.Table.Close()
			delete(s.items, oldest)
			if logger != nil {
				logger.Info("Evicted dataset", "id", oldest, "name", old.Name)
			}
		}
	}

	s.items[ds.ID] = ds
	s.order = append(s.order, ds.ID)
	return ds
}

// Get returns the dataset with id
func (s *DatasetStore) Get(id string) (*Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.items[id]
	if !ok {
		return nil, errDatasetNotFound
	}
	return ds, nil
}

// Delete closes and removes the dataset with id
func (s *DatasetStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, ok := s.items[id]
	if !ok {
		return errDatasetNotFound
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return ds.Table.Close()
}

// Len reports how many datasets are stored
func (s *DatasetStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Close releases every dataset
func (s *DatasetStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ds := range s.items {
		_ = ds.Table.Close()
		delete(s.items, id)
	}
	s.order = nil
}
