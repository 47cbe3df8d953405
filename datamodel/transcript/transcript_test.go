package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranscript(t *testing.T) {
	tr := New("rasa_bot")
	assert.Equal(t, 0, tr.Len())

	tr.Add(SpeakerUser, "hi", "")
	tr.Add(SpeakerBot, "hello!", "")
	tr.Add(SpeakerPeer, "insight", "question")

	snap := tr.Snapshot()
	tr.Add(SpeakerBot, "more", "")

	assert.Len(t, snap.Entries, 3)
	assert.Equal(t, 4, tr.Len())
	assert.Equal(t, tr.ID, snap.ID)

	tail := tr.Tail(2)
	assert.Equal(t, []string{"insight", "more"}, []string{tail[0].Text, tail[1].Text})
	assert.Len(t, tr.Tail(0), 4)
	assert.Len(t, tr.Tail(10), 4)
}
