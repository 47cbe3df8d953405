// Package datastore holds what the on-disk stores share.
package datastore

import (
	"github.com/fxamacker/cbor/v2"
)

// encMode keeps nanoseconds in timestamps; the default writes whole seconds.
var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// Marshal encodes v as stored by flatfs and leveldb.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
