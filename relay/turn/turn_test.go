package turn

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginResolve(t *testing.T) {
	g := New(time.Minute)
	defer g.Stop()

	id := uuid.New()
	require.NoError(t, g.Begin(id))
	assert.Equal(t, AwaitingReply, g.State())

	assert.ErrorIs(t, g.Begin(uuid.New()), ErrBusy)

	out, ok := g.Outstanding()
	assert.True(t, ok)
	assert.Equal(t, id, out)

	assert.True(t, g.Resolve(id))
	assert.Equal(t, Idle, g.State())
}

func TestUnrelatedAnswerKeepsState(t *testing.T) {
	g := New(time.Minute)
	defer g.Stop()

	id := uuid.New()
	require.NoError(t, g.Begin(id))

	assert.False(t, g.Resolve(uuid.New()))
	assert.Equal(t, AwaitingReply, g.State())

	assert.False(t, New(time.Minute).Resolve(id))
}

func TestTimeoutReturnsToIdle(t *testing.T) {
	g := New(20 * time.Millisecond)
	expired := make(chan uuid.UUID, 1)
	g.OnTimeout = func(id uuid.UUID) { expired <- id }

	id := uuid.New()
	require.NoError(t, g.Begin(id))

	select {
	case got := <-expired:
		assert.Equal(t, id, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout callback never fired")
	}
	assert.Equal(t, Idle, g.State())
	assert.NoError(t, g.Begin(uuid.New()))
	g.Stop()
}

func TestStaleTimerDoesNotClearNewQuestion(t *testing.T) {
	g := New(time.Hour)
	defer g.Stop()

	first := uuid.New()
	require.NoError(t, g.Begin(first))
	require.True(t, g.Resolve(first))

	second := uuid.New()
	require.NoError(t, g.Begin(second))

	g.expire(first)
	out, ok := g.Outstanding()
	assert.True(t, ok)
	assert.Equal(t, second, out)
}

func TestAbort(t *testing.T) {
	g := New(time.Minute)
	id := uuid.New()
	require.NoError(t, g.Begin(id))

	g.Abort(uuid.New())
	assert.Equal(t, AwaitingReply, g.State())

	g.Abort(id)
	assert.Equal(t, Idle, g.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "awaiting_reply", AwaitingReply.String())
}
