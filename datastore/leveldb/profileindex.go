package leveldb

import (
	"strings"

	"teacher1/datamodel/student"
	"teacher1/datastore"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"

	log "github.com/sirupsen/logrus"
)

const (
	keyPrefixProfile = "PRF" // Profile indexed by id. Followed by textual UUID
	keyPrefixName    = "NAM" // Profile id indexed by lower-cased name
)

var _ student.ProfileIndex = (*ProfileIndex)(nil)

type ProfileIndex struct {
	LevelDB
}

func keyFromProfileID(id uuid.UUID) []byte {
	return append([]byte(keyPrefixProfile), []byte(id.String())...)
}

func keyFromName(name string) []byte {
	return append([]byte(keyPrefixName), []byte(strings.ToLower(strings.TrimSpace(name)))...)
}

func NewProfileIndex(path string) (*ProfileIndex, error) {
	ldb, err := initLevelDb(path)
	if err != nil {
		return nil, err
	}

	return &ProfileIndex{
		LevelDB: LevelDB{
			path: path,
			db:   ldb,
		},
	}, nil
}

func (l *ProfileIndex) Get(id uuid.UUID) (*student.Profile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(id)
}

func (l *ProfileIndex) get(id uuid.UUID) (*student.Profile, error) {
	raw, err := l.db.Get(keyFromProfileID(id), nil)
	if err != nil {
		if err == errors.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	p := &student.Profile{}
	if err := datastore.Unmarshal(raw, p); err != nil {
		return nil, err
	}

	// Compare the id just in case
	if p.ID != id {
		log.Errorf("ProfileIndex.Get: id mismatch: %s != %s", id, p.ID)
		return nil, ErrCorrupted
	}

	return p, nil
}

func (l *ProfileIndex) GetByName(name string) (*student.Profile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := l.db.Get(keyFromName(name), nil)
	if err != nil {
		if err == errors.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	id, err := uuid.ParseBytes(raw)
	if err != nil {
		return nil, ErrCorrupted
	}
	return l.get(id)
}

func (l *ProfileIndex) Put(p *student.Profile) (*student.Profile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := datastore.Marshal(p)
	if err != nil {
		return nil, err
	}

	batch := new(leveldb.Batch)

	// drop the name entry if the profile was renamed
	if prev, err := l.get(p.ID); err == nil && !strings.EqualFold(prev.Name, p.Name) {
		batch.Delete(keyFromName(prev.Name))
	}

	batch.Put(keyFromProfileID(p.ID), raw)
	batch.Put(keyFromName(p.Name), []byte(p.ID.String()))

	if err := l.db.Write(batch, nil); err != nil {
		return nil, err
	}
	return p, nil
}

func (l *ProfileIndex) Enumerate() ([]*student.Profile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var results []*student.Profile

	iter := l.db.NewIterator(util.BytesPrefix([]byte(keyPrefixProfile)), nil)
	defer iter.Release()

	for iter.Next() {
		p := &student.Profile{}
		if err := datastore.Unmarshal(iter.Value(), p); err != nil {
			return nil, err
		}
		results = append(results, p)
	}

	return results, iter.Error()
}
