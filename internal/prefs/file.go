package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/banshee-data/lighthouse/internal/fsutil"
)

var _ Store = (*FileStore)(nil)

// filePerm keeps preference files private to the user.
const filePerm = 0600

// FileStore keeps every key in one JSON object on disk. Commit rewrites the
// whole file atomically.
type FileStore struct {
	fs        fsutil.FileSystem
	path      string
	committed map[string]string
	staged    staging
	closed    bool
}

// fileDocument is the on-disk layout. Keys are written sorted.
type fileDocument struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values"`
}

const fileDocumentVersion = 1

// OpenFileStore reads path through fsys, creating its directory if needed. A
// missing file is an empty store.
func OpenFileStore(fsys fsutil.FileSystem, path string) (*FileStore, error) {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	path = filepath.Clean(path)
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return nil, unavailable("open", path, err)
		}
	}

	s := &FileStore{
		fs:        fsys,
		path:      path,
		committed: make(map[string]string),
		staged:    make(staging),
	}

	data, err := fsys.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, unavailable("open", path, err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, unavailable("open", path, fmt.Errorf("corrupt preference file: %w", err))
	}
	if doc.Version > fileDocumentVersion {
		return nil, unavailable("open", path, fmt.Errorf("unsupported preference file version %d", doc.Version))
	}
	for k, v := range doc.Values {
		s.committed[k] = v
	}
	return s, nil
}

// Path returns the file backing the store.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the value for key.
func (s *FileStore) Get(key string) (string, bool, error) {
	if s.closed {
		return "", false, unavailable("get", key, errClosed)
	}
	if v, ok, staged := s.staged.lookup(key); staged {
		return v, ok, nil
	}
	v, ok := s.committed[key]
	return v, ok, nil
}

// Set stages value under key.
func (s *FileStore) Set(key, value string) error {
	if s.closed {
		return unavailable("set", key, errClosed)
	}
	s.staged.set(key, value)
	return nil
}

// Has reports whether key exists.
func (s *FileStore) Has(key string) (bool, error) {
	_, ok, err := s.Get(key)
	return ok, err
}

// Delete stages removal of key.
func (s *FileStore) Delete(key string) error {
	if s.closed {
		return unavailable("delete", key, errClosed)
	}
	s.staged.delete(key)
	return nil
}

// Commit writes the merged key set to disk and fsyncs it. On failure the
// staged changes are kept so a later Commit can retry them.
func (s *FileStore) Commit() error {
	if s.closed {
		return unavailable("commit", "", errClosed)
	}
	if len(s.staged) == 0 {
		return nil
	}

	next := make(map[string]string, len(s.committed)+len(s.staged))
	for k, v := range s.committed {
		next[k] = v
	}
	for k, v := range s.staged {
		if v == nil {
			delete(next, k)
			continue
		}
		next[k] = *v
	}

	data, err := encodeFileDocument(next)
	if err != nil {
		return unavailable("commit", "", err)
	}
	if err := s.fs.WriteFileSync(s.path, data, filePerm); err != nil {
		return unavailable("commit", s.path, err)
	}

	s.committed = next
	s.staged.reset()
	return nil
}

// Close drops staged changes.
func (s *FileStore) Close() error {
	s.closed = true
	s.staged.reset()
	return nil
}

// Keys returns the committed keys in sorted order.
func (s *FileStore) Keys() []string {
	keys := make([]string, 0, len(s.committed))
	for k := range s.committed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func encodeFileDocument(values map[string]string) ([]byte, error) {
	// encoding/json sorts map keys, which keeps the file diff-friendly.
	return json.MarshalIndent(fileDocument{Version: fileDocumentVersion, Values: values}, "", "\t")
}
