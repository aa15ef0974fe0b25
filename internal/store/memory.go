package store

import (
	"context"
	"slices"
	"sync"
	"time"

	apperr "github.com/abdul-hamid-achik/codeagent/internal/errors"
)

type memCollection struct {
	meta    Collection
	records map[string]Record
}

// Memory is an in-process Store used by tests and ephemeral runs.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memCollection)}
}

func (m *Memory) get(name string) (*memCollection, error) {
	c, ok := m.collections[name]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	return c, nil
}

func (m *Memory) GetCollection(_ context.Context, name string) (*Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.get(name)
	if err != nil {
		return nil, err
	}
	meta := c.meta
	return &meta, nil
}

func (m *Memory) CreateCollection(_ context.Context, name, model string, dim int) (*Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collections[name]; ok {
		meta := c.meta
		return &meta, nil
	}
	c := &memCollection{
		meta:    Collection{Name: name, Model: model, Dim: dim, CreatedAt: time.Now()},
		records: make(map[string]Record),
	}
	m.collections[name] = c
	meta := c.meta
	return &meta, nil
}

func (m *Memory) DropCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	return nil
}

func (m *Memory) ReplaceSource(_ context.Context, collection, source string, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(collection)
	if err != nil {
		return err
	}
	if err := checkDims(&c.meta, records); err != nil {
		return err
	}
	for id, r := range c.records {
		if r.Source == source {
			delete(c.records, id)
		}
	}
	for _, r := range records {
		c.records[r.ID] = cloneRecord(r)
	}
	return nil
}

func (m *Memory) Upsert(_ context.Context, collection string, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(collection)
	if err != nil {
		return err
	}
	if err := checkDims(&c.meta, records); err != nil {
		return err
	}
	for _, r := range records {
		c.records[r.ID] = cloneRecord(r)
	}
	return nil
}

func (m *Memory) DeleteSource(_ context.Context, collection, source string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(collection)
	if err != nil {
		return 0, err
	}
	n := 0
	for id, r := range c.records {
		if r.Source == source {
			delete(c.records, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Query(_ context.Context, collection string, vector []float32, k int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.get(collection)
	if err != nil {
		return nil, err
	}
	if len(c.records) == 0 {
		return nil, apperr.NoResults(collection)
	}
	matches := make([]Match, 0, len(c.records))
	for _, r := range c.records {
		matches = append(matches, Match{Record: r, Score: Cosine(vector, r.Vector)})
	}
	return rank(matches, k), nil
}

func (m *Memory) Count(_ context.Context, collection string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.get(collection)
	if err != nil {
		return 0, err
	}
	return len(c.records), nil
}

func (m *Memory) IDs(_ context.Context, collection, source string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.get(collection)
	if err != nil {
		return nil, err
	}
	var ids []string
	for id, r := range c.records {
		if source == "" || r.Source == source {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *Memory) Sources(_ context.Context, collection string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.get(collection)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var sources []string
	for _, r := range c.records {
		if !seen[r.Source] {
			seen[r.Source] = true
			sources = append(sources, r.Source)
		}
	}
	slices.Sort(sources)
	return sources, nil
}

func (m *Memory) Close() error {
	return nil
}

func cloneRecord(r Record) Record {
	r.Vector = slices.Clone(r.Vector)
	return r
}
