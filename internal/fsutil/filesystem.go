// Package fsutil is the filesystem seam under config loading and snapshot
// export. OSFileSystem is the real disk; MemoryFileSystem backs tests.
package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileSystem is the set of file operations the viewer performs.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
	Stat(name string) (fs.FileInfo, error)
	MkdirAll(path string, perm fs.FileMode) error
	// WriteFile replaces name with data in one step: readers see either the
	// old contents or the new, never a partial file.
	WriteFile(name string, data []byte, perm fs.FileMode) error
	// ReadDir lists a directory sorted by name.
	ReadDir(name string) ([]fs.DirEntry, error)
	Exists(name string) bool
}

// OSFileSystem is FileSystem on the local disk.
type OSFileSystem struct{}

func (OSFileSystem) ReadFile(name string) ([]byte, error)       { return os.ReadFile(name) }
func (OSFileSystem) Stat(name string) (fs.FileInfo, error)      { return os.Stat(name) }
func (OSFileSystem) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }

func (OSFileSystem) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (OSFileSystem) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// WriteFile writes to a temporary file beside name and renames it into
// place.
func (OSFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), name)
}

// MemoryFileSystem is an in-memory FileSystem. Writing a file creates its
// parent directories.
type MemoryFileSystem struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
}

type memEntry struct {
	data    []byte
	mode    fs.FileMode
	modTime time.Time
}

func (e *memEntry) isDir() bool { return e.mode.IsDir() }

// NewMemoryFileSystem returns an empty filesystem holding only the roots.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{entries: map[string]*memEntry{
		".":                        {mode: fs.ModeDir | 0o755},
		string(filepath.Separator): {mode: fs.ModeDir | 0o755},
	}}
}

func (m *MemoryFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name = filepath.Clean(name)
	e, ok := m.entries[name]
	switch {
	case !ok:
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	case e.isDir():
		return nil, &fs.PathError{Op: "read", Path: name, Err: errors.New("is a directory")}
	}
	return append([]byte(nil), e.data...), nil
}

func (m *MemoryFileSystem) Stat(name string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name = filepath.Clean(name)
	e, ok := m.entries[name]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return memInfo{name: filepath.Base(name), entry: *e}, nil
}

func (m *MemoryFileSystem) MkdirAll(path string, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mkdirAllLocked(filepath.Clean(path), perm)
}

func (m *MemoryFileSystem) mkdirAllLocked(path string, perm fs.FileMode) error {
	if e, ok := m.entries[path]; ok {
		if e.isDir() {
			return nil
		}
		return &fs.PathError{Op: "mkdir", Path: path, Err: fs.ErrExist}
	}
	if parent := filepath.Dir(path); parent != path {
		if err := m.mkdirAllLocked(parent, perm); err != nil {
			return err
		}
	}
	m.entries[path] = &memEntry{mode: fs.ModeDir | perm.Perm()}
	return nil
}

func (m *MemoryFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = filepath.Clean(name)
	if e, ok := m.entries[name]; ok && e.isDir() {
		return &fs.PathError{Op: "write", Path: name, Err: errors.New("is a directory")}
	}
	if err := m.mkdirAllLocked(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	m.entries[name] = &memEntry{
		data:    append([]byte(nil), data...),
		mode:    perm.Perm(),
		modTime: time.Now(),
	}
	return nil
}

func (m *MemoryFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name = filepath.Clean(name)
	if e, ok := m.entries[name]; !ok || !e.isDir() {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	var out []fs.DirEntry
	for path, e := range m.entries {
		if path != name && filepath.Dir(path) == name {
			out = append(out, fs.FileInfoToDirEntry(memInfo{name: filepath.Base(path), entry: *e}))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

func (m *MemoryFileSystem) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[filepath.Clean(name)]
	return ok
}

type memInfo struct {
	name  string
	entry memEntry
}

func (i memInfo) Name() string       { return i.name }
func (i memInfo) Size() int64        { return int64(len(i.entry.data)) }
func (i memInfo) Mode() fs.FileMode  { return i.entry.mode }
func (i memInfo) ModTime() time.Time { return i.entry.modTime }
func (i memInfo) IsDir() bool        { return i.entry.isDir() }
func (i memInfo) Sys() any           { return nil }
