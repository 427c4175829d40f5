package prefetch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// DataStore is the hydration bridge: an insertion-ordered key-value store
// scoped to one request/render cycle. The producing process records
// prefetched results, serializes the store at the cycle boundary and the
// consuming process merges the payload into a fresh store before any read of
// its own. There is no network or timing behavior here, only deterministic
// order-preserving transport. Safe for concurrent use within a cycle.
type DataStore struct {
	mu     sync.RWMutex
	values map[string]any
	order  []string
}

// NewDataStore creates an empty store.
func NewDataStore() *DataStore {
	return &DataStore{values: make(map[string]any)}
}

// Set records value under key. New keys append to the insertion order;
// rewriting an existing key keeps its slot and overwrites the value.
func (s *DataStore) Set(key string, value any) {
	s.mu.Lock()
	s.setLocked(key, value)
	s.mu.Unlock()
}

func (s *DataStore) setLocked(key string, value any) {
	if _, exists := s.values[key]; !exists {
		s.order = append(s.order, key)
	}
	s.values[key] = value
}

// Get returns the value stored under key.
func (s *DataStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok
}

// Has reports whether key is present.
func (s *DataStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Delete removes key and its order slot.
func (s *DataStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.values[key]; !exists {
		return
	}
	delete(s.values, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Len reports the number of stored keys.
func (s *DataStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Keys returns the keys in insertion order.
func (s *DataStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, len(s.order))
	copy(keys, s.order)
	return keys
}

// GetState returns a flat snapshot of the store.
func (s *DataStore) GetState() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := make(map[string]any, len(s.values))
	for k, v := range s.values {
		state[k] = v
	}
	return state
}

// SetState merges entries into the store, overwriting on collision. Keys are
// applied in sorted order so the merge is deterministic; transport that must
// preserve the producer's insertion order goes through MarshalJSON /
// UnmarshalJSON instead.
func (s *DataStore) SetState(state map[string]any) {
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.setLocked(k, state[k])
	}
}

// MarshalJSON serializes the store as one flat JSON object with keys in
// insertion order.
func (s *DataStore) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		value, err := json.Marshal(s.values[key])
		if err != nil {
			return nil, fmt.Errorf("marshal state key %q: %w", key, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON merges a serialized state object into the store key-by-key
// in document order. Duplicate keys resolve last-write-wins; nothing is
// dropped silently.
func (s *DataStore) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("hydration state must be a JSON object, got %v", tok)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]any)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read state key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("state key must be a string, got %v", keyTok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode state key %q: %w", key, err)
		}
		s.setLocked(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read state end: %w", err)
	}
	return nil
}
