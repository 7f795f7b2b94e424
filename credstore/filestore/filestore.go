// Package filestore persists credstore values as a JSON document on disk.
// It is the production analogue of the browser's local storage for CLI and
// daemon clients: a single file, owner-readable only, rewritten atomically on
// every mutation.
package filestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/vulnwatch/vulnwatch-client/credstore"
)

const fileMode = 0o600

var _ credstore.Store = (*FileStore)(nil)

type FileStore struct {
	path   string
	values map[string]string
	lock   sync.Mutex
}

// New loads the store at path, creating parent directories as needed. A
// missing file is an empty store; a corrupt file is an error rather than a
// silent reset.
func New(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("[filestore.New] path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "[filestore.New] create store directory")
	}

	fs := &FileStore{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fs, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[filestore.New] read store file")
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &fs.values); err != nil {
			return nil, errors.Wrap(err, "[filestore.New] decode store file")
		}
	}
	return fs, nil
}

func (fs *FileStore) Get(key string) (string, bool) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	value, ok := fs.values[key]
	return value, ok
}

func (fs *FileStore) Set(key, value string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.values[key] = value
	if err := fs.persist(); err != nil {
		return errors.Wrap(err, "[FileStore.Set] persist")
	}
	return nil
}

func (fs *FileStore) Remove(key string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if _, ok := fs.values[key]; !ok {
		return nil
	}
	delete(fs.values, key)
	if err := fs.persist(); err != nil {
		return errors.Wrap(err, "[FileStore.Remove] persist")
	}
	return nil
}

// persist writes through a temp file and renames so readers never observe a
// partially written store. Caller holds the lock.
func (fs *FileStore) persist() error {
	data, err := json.MarshalIndent(fs.values, "", "  ")
	if err != nil {
		return err
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, fileMode); err != nil {
		return err
	}
	return os.Rename(tmp, fs.path)
}
