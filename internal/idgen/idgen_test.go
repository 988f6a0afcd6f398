package idgen

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandom_Unique(t *testing.T) {
	src := Random{}
	seen := make(map[uuid.UUID]bool)
	for i := 0; i < 1000; i++ {
		id := src.NewID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		assert.Equal(t, uuid.Version(4), id.Version())
	}
}

func TestTimeOrdered_Version(t *testing.T) {
	id := TimeOrdered{}.NewID()
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestCounter_Sequence(t *testing.T) {
	c := NewCounter(0)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", c.NewID().String())
	assert.Equal(t, "00000000-0000-0000-0000-000000000002", c.NewID().String())

	offset := NewCounter(255)
	assert.Equal(t, "00000000-0000-0000-0000-000000000100", offset.NewID().String())
}

func TestCounter_ConcurrentUnique(t *testing.T) {
	c := NewCounter(0)
	var (
		mu   sync.Mutex
		seen = make(map[uuid.UUID]bool)
		wg   sync.WaitGroup
	)
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := c.NewID()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 1000)
}

func TestFixed_InOrderThenPanics(t *testing.T) {
	a := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	b := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	src := NewFixed(a, b)

	assert.Equal(t, a, src.NewID())
	assert.Equal(t, b, src.NewID())
	assert.Panics(t, func() { src.NewID() })
}
