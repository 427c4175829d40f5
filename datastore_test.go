package prefetch

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataStoreSetGetHas(t *testing.T) {
	store := NewDataStore()

	assert.False(t, store.Has("user"))
	_, ok := store.Get("user")
	assert.False(t, ok)

	store.Set("user", map[string]any{"id": 1})

	assert.True(t, store.Has("user"))
	value, ok := store.Get("user")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"id": 1}, value)
	assert.Equal(t, 1, store.Len())
}

func TestDataStoreInsertionOrderPreserved(t *testing.T) {
	store := NewDataStore()
	store.Set("c", 1)
	store.Set("a", 2)
	store.Set("b", 3)
	// Rewriting an existing key keeps its slot.
	store.Set("c", 4)

	assert.Equal(t, []string{"c", "a", "b"}, store.Keys())
	value, _ := store.Get("c")
	assert.Equal(t, 4, value)
}

func TestDataStoreMarshalKeepsInsertionOrder(t *testing.T) {
	store := NewDataStore()
	store.Set("zeta", 1)
	store.Set("alpha", 2)
	store.Set("mid", 3)

	data, err := json.Marshal(store)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":2,"mid":3}`, string(data))
}

func TestDataStoreStateRoundTrip(t *testing.T) {
	producer := NewDataStore()
	producer.Set("user", map[string]any{"id": 1})
	producer.Set("flags", []any{"a", "b"})

	data, err := json.Marshal(producer)
	require.NoError(t, err)

	consumer := NewDataStore()
	require.NoError(t, json.Unmarshal(data, consumer))

	user, ok := consumer.Get("user")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"id": float64(1)}, user)
	assert.Equal(t, producer.Keys(), consumer.Keys())
}

func TestDataStoreUnmarshalMergesLastWriteWins(t *testing.T) {
	store := NewDataStore()
	store.Set("user", "local")
	store.Set("theme", "dark")

	payload := []byte(`{"user":"remote","extra":42,"extra":43}`)
	require.NoError(t, json.Unmarshal(payload, store))

	user, _ := store.Get("user")
	assert.Equal(t, "remote", user, "incoming entries overwrite on collision")
	extra, _ := store.Get("extra")
	assert.Equal(t, float64(43), extra, "duplicate keys resolve last-write-wins")
	theme, _ := store.Get("theme")
	assert.Equal(t, "dark", theme, "unrelated keys survive the merge")
}

func TestDataStoreUnmarshalRejectsNonObject(t *testing.T) {
	store := NewDataStore()
	assert.Error(t, json.Unmarshal([]byte(`[1,2,3]`), store))
	assert.Error(t, json.Unmarshal([]byte(`"flat"`), store))
}

func TestDataStoreSetStateMerges(t *testing.T) {
	store := NewDataStore()
	store.Set("a", 1)

	store.SetState(map[string]any{"a": 10, "b": 20})

	a, _ := store.Get("a")
	assert.Equal(t, 10, a)
	b, _ := store.Get("b")
	assert.Equal(t, 20, b)
	assert.Equal(t, map[string]any{"a": 10, "b": 20}, store.GetState())
}

func TestDataStoreDelete(t *testing.T) {
	store := NewDataStore()
	store.Set("a", 1)
	store.Set("b", 2)

	store.Delete("a")

	assert.False(t, store.Has("a"))
	assert.Equal(t, []string{"b"}, store.Keys())
	// Deleting an absent key is a no-op.
	store.Delete("missing")
	assert.Equal(t, 1, store.Len())
}

func TestDataStoreConcurrentAccess(t *testing.T) {
	store := NewDataStore()
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n%4)
			for j := 0; j < 100; j++ {
				store.Set(key, j)
				store.Get(key)
				store.Has(key)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, store.Len())
}
