package leveldb

import (
	"fmt"

	"teacher1/datamodel/exchange"
	"teacher1/datastore"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"

	log "github.com/sirupsen/logrus"
)

const (
	keyPrefixMsg = "MSG" // Journal entry indexed by message id. Followed by textual UUID
	keyPrefixSeq = "SEQ" // Journal entry indexed by local sequence number. Followed by a 16-digit hexadecimal number
)

var _ exchange.Journal = (*Journal)(nil)

type Journal struct {
	LevelDB
	seq uint64
}

func keyFromMessageID(id uuid.UUID) []byte {
	return append([]byte(keyPrefixMsg), []byte(id.String())...)
}

func keyFromSeq(seq uint64) []byte {
	return append([]byte(keyPrefixSeq), []byte(fmt.Sprintf("%016x", seq))...)
}

func seqFromKey(key []byte) (uint64, error) {
	if len(key) != len(keyPrefixSeq)+16 {
		return 0, fmt.Errorf("seqFromKey: invalid key length: %d", len(key))
	}
	if string(key[:len(keyPrefixSeq)]) != keyPrefixSeq {
		return 0, fmt.Errorf("seqFromKey: invalid key prefix: %s", string(key[:len(keyPrefixSeq)]))
	}
	var seq uint64
	if _, err := fmt.Sscanf(string(key[len(keyPrefixSeq):]), "%016x", &seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func NewJournal(path string) (*Journal, error) {
	ldb, err := initLevelDb(path)
	if err != nil {
		return nil, err
	}

	// Recover the last sequence number
	iter := ldb.NewIterator(util.BytesPrefix([]byte(keyPrefixSeq)), nil)
	defer iter.Release()

	var maxSeq uint64
	if iter.Last() {
		seq, err := seqFromKey(iter.Key())
		if err != nil {
			ldb.Close()
			return nil, err
		}
		maxSeq = seq
	}

	return &Journal{
		LevelDB: LevelDB{
			path: path,
			db:   ldb,
		},
		seq: maxSeq,
	}, nil
}

func (j *Journal) Get(id uuid.UUID) (*exchange.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	raw, err := j.db.Get(keyFromMessageID(id), nil)
	if err != nil {
		if err == errors.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	e := &exchange.Entry{}
	if err := datastore.Unmarshal(raw, e); err != nil {
		return nil, err
	}

	if e.MessageID != id {
		log.Errorf("Journal.Get: message id mismatch: %s != %s", id, e.MessageID)
		return nil, ErrCorrupted
	}

	return e, nil
}

func (j *Journal) Append(entry *exchange.Entry) (*exchange.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	key := keyFromMessageID(entry.MessageID)

	raw, err := j.db.Get(key, nil)
	if err != nil && err != errors.ErrNotFound {
		return nil, err
	}
	if err == nil {
		existing := &exchange.Entry{}
		if err := datastore.Unmarshal(raw, existing); err == nil {
			log.Debugf("Journal.Append: message %s already journaled at %d", entry.MessageID, existing.SequenceNumber)
			return existing, nil
		}
	}

	newSeq := j.seq + 1
	e := *entry
	e.SequenceNumber = newSeq

	raw, err = datastore.Marshal(&e)
	if err != nil {
		return nil, err
	}

	// id -> entry and seq -> entry are written atomically
	batch := new(leveldb.Batch)
	batch.Put(key, raw)
	batch.Put(keyFromSeq(newSeq), raw)
	if err := j.db.Write(batch, nil); err != nil {
		return nil, err
	}

	j.seq = newSeq
	return &e, nil
}

func (j *Journal) EnumerateBySeq(start uint64, end uint64) ([]*exchange.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if start > end {
		return nil, fmt.Errorf("EnumerateBySeq: invalid range: start (%d) > end (%d)", start, end)
	}

	iter := j.db.NewIterator(&util.Range{Start: keyFromSeq(start), Limit: keyFromSeq(end)}, nil)
	defer iter.Release()

	var results []*exchange.Entry
	for iter.Next() {
		e := &exchange.Entry{}
		if err := datastore.Unmarshal(iter.Value(), e); err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, iter.Error()
}

func (j *Journal) GetSeq() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}
