package binc

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// memFileSystem is an in-memory FileSystemInterface, used so tests can
// exercise Store without touching local disk.
type memFileSystem struct {
	mu      sync.Mutex
	files   map[string][]byte
	locks   map[string]chan struct{}
	touched bool
}

func newMemFileSystem() *memFileSystem {
	return &memFileSystem{files: map[string][]byte{}, locks: map[string]chan struct{}{}}
}

type memFileHandle struct {
	fs   *memFileSystem
	name string
}

func (m *memFileSystem) Open(name string, mode OpenMode) (FileHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched = true
	if _, ok := m.files[name]; !ok {
		if mode == OpenModeRead {
			return nil, ErrFileNotFound
		}
		m.files[name] = nil
	}
	return &memFileHandle{fs: m, name: name}, nil
}

func (m *memFileSystem) Close(handle FileHandle) error {
	if _, ok := handle.(*memFileHandle); !ok {
		return ErrFileNotOpen
	}
	return nil
}

func (m *memFileSystem) ReadAt(handle FileHandle, offset int64, length int) ([]byte, error) {
	h, ok := handle.(*memFileHandle)
	if !ok {
		return nil, ErrFileNotOpen
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data := m.files[h.name]
	if offset >= int64(len(data)) {
		return nil, nil
	}
	end := offset + int64(length)
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return append([]byte(nil), data[offset:end]...), nil
}

func (m *memFileSystem) WriteAt(handle FileHandle, offset int64, data []byte) error {
	h, ok := handle.(*memFileHandle)
	if !ok {
		return ErrFileNotOpen
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := m.files[h.name]
	need := int(offset) + len(data)
	if need > len(existing) {
		grown := make([]byte, need)
		copy(grown, existing)
		existing = grown
	}
	copy(existing[offset:], data)
	m.files[h.name] = existing
	return nil
}

func (m *memFileSystem) Size(handle FileHandle) (int64, error) {
	h, ok := handle.(*memFileHandle)
	if !ok {
		return 0, ErrFileNotOpen
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.files[h.name])), nil
}

func (m *memFileSystem) WriteFile(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched = true
	m.files[name] = append([]byte(nil), data...)
	return nil
}

func (m *memFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	if !ok {
		return nil, ErrFileNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *memFileSystem) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[name]
	return ok
}

func (m *memFileSystem) MkdirAll(path string) error { return nil }

func (m *memFileSystem) ListDir(path string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(path, "/") + "/"
	var names []string
	for name := range m.files {
		if strings.HasPrefix(name, prefix) && !strings.Contains(strings.TrimPrefix(name, prefix), "/") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Lock grants exclusive access to name, blocking until ctx is done or no
// other caller holds it.
func (m *memFileSystem) Lock(ctx context.Context, name string) (func() error, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m.mu.Lock()
		ch, busy := m.locks[name]
		if !busy {
			m.locks[name] = make(chan struct{})
			m.mu.Unlock()
			return func() error {
				m.mu.Lock()
				close(m.locks[name])
				delete(m.locks, name)
				m.mu.Unlock()
				return nil
			}, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ch:
		}
	}
}

func TestMemFileSystemIsolatesFromDisk(t *testing.T) {
	ctx := context.Background()
	fs := newMemFileSystem()

	unlock, err := fs.Lock(ctx, "/store/a.binc")
	require.NoError(t, err)
	require.NoError(t, fs.WriteFile("/store/a.binc", []byte("hello")))
	require.NoError(t, unlock())

	require.True(t, fs.Exists("/store/a.binc"))
	data, err := fs.ReadFile("/store/a.binc")
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	names, err := fs.ListDir("/store")
	require.NoError(t, err)
	require.Equal(t, []string{"/store/a.binc"}, names)
}

func TestMemFileSystemLockHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fs := newMemFileSystem()
	_, err := fs.Lock(ctx, "/store/a.binc")
	require.ErrorIs(t, err, context.Canceled)
}
