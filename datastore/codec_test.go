package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stamped struct {
	At   time.Time `cbor:"1,keyasint"`
	Name string    `cbor:"2,keyasint"`
}

func TestMarshalKeepsNanoseconds(t *testing.T) {
	in := stamped{At: time.Date(2025, 1, 1, 12, 0, 0, 123456789, time.UTC), Name: "x"}

	raw, err := Marshal(in)
	require.NoError(t, err)

	var out stamped
	require.NoError(t, Unmarshal(raw, &out))
	assert.True(t, in.At.Equal(out.At), "got %s", out.At.Format(time.RFC3339Nano))
	assert.Equal(t, "x", out.Name)
}
