// Package flatfs implements the transcript/Store interface
package flatfs

import (
	"errors"
	"os"
	"path/filepath"

	"teacher1/datamodel/transcript"
	"teacher1/datastore"

	"github.com/google/uuid"

	log "github.com/sirupsen/logrus"
)

var _ transcript.Store = (*FlatFS)(nil)

// FlatFS keeps one CBOR file per transcript, named by the transcript UUID.
// The first 4 characters of the UUID are used as a shard subdirectory.
type FlatFS struct {
	basePath string
}

func New(basePath string) (*FlatFS, error) {
	basePath = filepath.Clean(basePath)

	if err := ensureDir(basePath); err != nil {
		return nil, err
	}

	log.Infof("Opened FlatFS at %s", basePath)

	return &FlatFS{basePath: basePath}, nil
}

func ensureDir(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(path, 0755)
		}
		return err
	}
	if !stat.IsDir() {
		return &os.PathError{Op: "ensureDir", Path: path, Err: os.ErrExist}
	}
	return nil
}

func (f *FlatFS) Path() string {
	return f.basePath
}

// Enumerate lists the ids of all archived transcripts. Entries that don't
// look like transcripts are skipped with a warning.
func (f *FlatFS) Enumerate() ([]uuid.UUID, error) {
	var ids []uuid.UUID

	shards, err := os.ReadDir(f.basePath)
	if err != nil {
		return nil, err
	}

	for _, shard := range shards {
		if !shard.IsDir() {
			log.Warnf("Skipping non-directory entry in FlatFS base path: %s", shard.Name())
			continue
		}

		shardPath := filepath.Join(f.basePath, shard.Name())
		files, err := os.ReadDir(shardPath)
		if err != nil {
			return nil, err
		}

		for _, file := range files {
			if file.IsDir() {
				log.Warnf("Skipping unexpected subdirectory in shard %s: %s", shardPath, file.Name())
				continue
			}
			id, err := uuid.Parse(file.Name())
			if err != nil {
				log.Warnf("Skipping %s in shard %s, not a transcript id: %v", file.Name(), shardPath, err)
				continue
			}
			ids = append(ids, id)
		}
	}

	return ids, nil
}

func (f *FlatFS) Close() error {
	return nil
}

func (f *FlatFS) idToPath(id uuid.UUID) (dirPath string, filePath string) {
	s := id.String()
	dirPath = filepath.Join(f.basePath, s[:4])
	filePath = filepath.Join(dirPath, s)
	return dirPath, filePath
}

func (f *FlatFS) Get(id uuid.UUID) (*transcript.Transcript, error) {
	_, filePath := f.idToPath(id)

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	t := &transcript.Transcript{}
	if err := datastore.Unmarshal(data, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (f *FlatFS) Has(id uuid.UUID) (bool, error) {
	_, filePath := f.idToPath(id)
	stat, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !stat.IsDir(), nil
}

// Put writes the transcript, replacing an earlier version with the same id.
// The file is written under a temporary name and renamed into place.
func (f *FlatFS) Put(t *transcript.Transcript) error {
	if t == nil {
		return os.ErrInvalid
	}
	snap := t.Snapshot()

	data, err := datastore.Marshal(snap)
	if err != nil {
		return err
	}

	dirPath, filePath := f.idToPath(snap.ID)
	if err := ensureDir(dirPath); err != nil {
		return err
	}

	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}

func (f *FlatFS) Delete(id uuid.UUID) error {
	_, filePath := f.idToPath(id)

	err := os.Remove(filePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
