package dedup

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndSeen(t *testing.T) {
	c := New(10, 0)
	id := uuid.New()

	assert.False(t, c.Seen(id))
	c.Record(id)
	assert.True(t, c.Seen(id))
	assert.Equal(t, 1, c.Len())

	c.Record(id)
	assert.Equal(t, 1, c.Len())
}

func TestEvictsOldestFirst(t *testing.T) {
	c := New(3, 0)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}

	for _, id := range ids {
		c.Record(id)
	}

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Seen(ids[0]))
	for _, id := range ids[1:] {
		assert.True(t, c.Seen(id))
	}
}

func TestMemoryIsBounded(t *testing.T) {
	c := New(100, 0)
	for i := 0; i < 10000; i++ {
		c.Record(uuid.New())
	}
	assert.Equal(t, 100, c.Len())
	assert.Len(t, c.index, 100)
}

func TestCheckAndRecord(t *testing.T) {
	c := New(5, 0)
	id := uuid.New()

	assert.False(t, c.CheckAndRecord(id))
	assert.True(t, c.CheckAndRecord(id))
}

func TestMaxAge(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(10, time.Minute)
	c.now = func() time.Time { return now }

	first := uuid.New()
	c.Record(first)

	now = now.Add(30 * time.Second)
	second := uuid.New()
	c.Record(second)
	assert.True(t, c.Seen(first))

	now = now.Add(45 * time.Second)
	assert.False(t, c.Seen(first))
	assert.True(t, c.Seen(second))
	assert.Equal(t, 1, c.Len())
}

func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(0, 0).Cap())
}

func TestConcurrentUse(t *testing.T) {
	c := New(64, 0)
	id := uuid.New()

	var wg sync.WaitGroup
	dups := make(chan bool, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dups <- c.CheckAndRecord(id)
		}()
	}
	wg.Wait()
	close(dups)

	fresh := 0
	for d := range dups {
		if !d {
			fresh++
		}
	}
	require.Equal(t, 1, fresh)
}
