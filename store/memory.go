package store

import (
	"context"
	"sync"

	"github.com/hazyhaar/annot/annotation"
)

// Memory is an in-process Store. It backs tests and the per-tab
// mirror cache that survives a storage backend going briefly
// unavailable.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) List(ctx context.Context, url string, kind annotation.Kind) ([]annotation.Record, error) {
	key, err := Key(url, kind)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	data, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decodeCollection(data)
}

func (m *Memory) Replace(ctx context.Context, url string, kind annotation.Kind, recs []annotation.Record) error {
	key, err := Key(url, kind)
	if err != nil {
		return err
	}
	data, err := encodeCollection(recs)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(ctx context.Context, url string) error {
	if err := ValidateURL(url); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, kind := range []annotation.Kind{annotation.KindHighlight, annotation.KindText, annotation.KindDrawing} {
		key, err := Key(url, kind)
		if err != nil {
			return err
		}
		delete(m.data, key)
	}
	return nil
}

func (m *Memory) Close() error { return nil }
