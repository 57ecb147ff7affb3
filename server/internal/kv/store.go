package kv

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/playlistzip/playlist-zip/server/internal/job"
)

var ErrNotFound = errors.New("no job found for the given key")

// In-Memory Thread-Safe Key-Value Storage of the jobs of this process
type Store struct {
	table map[string]*job.Job
	mu    sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		table: make(map[string]*job.Job),
	}
}

// Get a job given its id
func (m *Store) Get(id string) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.table[id]
	if !ok {
		return nil, ErrNotFound
	}

	return entry, nil
}

// Store a job and return its id
func (m *Store) Set(j *job.Job) string {
	m.mu.Lock()
	m.table[j.GetId()] = j
	m.mu.Unlock()

	return j.GetId()
}

// Removes a job, releasing its archive if still present
func (m *Store) Delete(id string) {
	m.mu.Lock()
	j, ok := m.table[id]
	delete(m.table, id)
	m.mu.Unlock()

	if !ok {
		return
	}

	j.Expire()
	j.Detach()
}

func (m *Store) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.table))
	for id := range m.table {
		keys = append(keys, id)
	}

	return keys
}

// Returns a slice of all currently stored jobs snapshots
func (m *Store) All() []job.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]job.Snapshot, 0, len(m.table))
	for _, v := range m.table {
		all = append(all, v.Snapshot())
	}

	return all
}

// Evict removes every job finished before now-ttl.
func (m *Store) Evict(now time.Time, ttl time.Duration) int {
	var expired []string

	m.mu.RLock()
	for id, j := range m.table {
		if finished, at := j.IsFinished(); finished && now.Sub(at) > ttl {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		slog.Info("evicting job", slog.String("id", id))
		m.Delete(id)
	}

	return len(expired)
}

// Janitor periodically evicts old jobs until ctx is done. Whatever is
// still held afterwards is released by Close.
func (m *Store) Janitor(ctx context.Context, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Evict(now, ttl)
		}
	}
}

// Close releases the archives of all jobs.
func (m *Store) Close() {
	for _, id := range m.Keys() {
		m.Delete(id)
	}
	slog.Info("job store released")
}
