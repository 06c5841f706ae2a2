package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps records for the life of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[[3]string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[[3]string]Record)}
}

func (m *MemoryStore) Save(_ context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[[3]string{rec.Bot, rec.App, rec.User}] = rec
	return nil
}

func (m *MemoryStore) Get(_ context.Context, botName, app, user string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[[3]string{botName, app, user}]
	if !ok {
		return Record{}, notFound(botName, app, user)
	}
	return rec, nil
}

func (m *MemoryStore) Delete(_ context.Context, botName, app, user string) error {
	k := [3]string{botName, app, user}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[k]; !ok {
		return notFound(botName, app, user)
	}
	delete(m.records, k)
	return nil
}

func (m *MemoryStore) List(_ context.Context, botName, app string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := []string{}
	for k := range m.records {
		if k[0] == botName && k[1] == app {
			users = append(users, k[2])
		}
	}
	sort.Strings(users)
	return users, nil
}

func (m *MemoryStore) Close() error { return nil }
