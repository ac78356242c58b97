package binc

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// OpenMode specifies how a file should be opened.
type OpenMode int

const (
	// OpenModeRead opens the file for reading only.
	OpenModeRead OpenMode = iota

	// OpenModeWrite opens the file for writing only.
	OpenModeWrite

	// OpenModeReadWrite opens the file for reading and writing.
	OpenModeReadWrite
)

// FileHandle represents an open file.
type FileHandle interface{}

// FileSystemInterface abstracts the file operations the Store needs, so that
// a Store can be pointed at something other than the local disk (an
// in-memory filesystem in tests, for instance).
type FileSystemInterface interface {
	Open(name string, mode OpenMode) (FileHandle, error)
	Close(handle FileHandle) error

	ReadAt(handle FileHandle, offset int64, length int) ([]byte, error)
	WriteAt(handle FileHandle, offset int64, data []byte) error
	Size(handle FileHandle) (int64, error)

	WriteFile(name string, data []byte) error
	ReadFile(name string) ([]byte, error)
	Exists(name string) bool

	MkdirAll(path string) error
	ListDir(path string) ([]string, error)

	// Lock acquires an exclusive, cross-process lock associated with name,
	// blocking until it is acquired or ctx is done. The returned func
	// releases it.
	Lock(ctx context.Context, name string) (unlock func() error, err error)
}

// localFileHandle wraps an os.File for the local file system.
type localFileHandle struct {
	file *os.File
}

// localFileSystem implements FileSystemInterface over the local disk.
type localFileSystem struct{}

func newLocalFileSystem() *localFileSystem { return &localFileSystem{} }

func (fs *localFileSystem) Open(name string, mode OpenMode) (FileHandle, error) {
	var flag int
	switch mode {
	case OpenModeRead:
		flag = os.O_RDONLY
	case OpenModeWrite:
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case OpenModeReadWrite:
		flag = os.O_RDWR | os.O_CREATE
	}

	f, err := os.OpenFile(name, flag, 0644)
	if err != nil {
		return nil, err
	}
	return &localFileHandle{file: f}, nil
}

func (fs *localFileSystem) Close(handle FileHandle) error {
	h, ok := handle.(*localFileHandle)
	if !ok {
		return ErrFileNotOpen
	}
	return h.file.Close()
}

func (fs *localFileSystem) ReadAt(handle FileHandle, offset int64, length int) ([]byte, error) {
	h, ok := handle.(*localFileHandle)
	if !ok {
		return nil, ErrFileNotOpen
	}
	data := make([]byte, length)
	n, err := h.file.ReadAt(data, offset)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return data[:n], nil
}

func (fs *localFileSystem) WriteAt(handle FileHandle, offset int64, data []byte) error {
	h, ok := handle.(*localFileHandle)
	if !ok {
		return ErrFileNotOpen
	}
	_, err := h.file.WriteAt(data, offset)
	return err
}

func (fs *localFileSystem) Size(handle FileHandle) (int64, error) {
	h, ok := handle.(*localFileHandle)
	if !ok {
		return 0, ErrFileNotOpen
	}
	info, err := h.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (fs *localFileSystem) WriteFile(name string, data []byte) error {
	return os.WriteFile(name, data, 0644)
}

func (fs *localFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (fs *localFileSystem) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

func (fs *localFileSystem) MkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func (fs *localFileSystem) ListDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, filepath.Join(path, e.Name()))
	}
	return names, nil
}

// Lock uses a sibling ".lock" file and gofrs/flock so the lock is visible to
// (and respected by) any other process touching the same directory.
func (fs *localFileSystem) Lock(ctx context.Context, name string) (func() error, error) {
	lock := flock.New(name + ".lock")
	ok, err := lock.TryLockContext(ctx, 25*time.Millisecond)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ctx.Err()
	}
	return lock.Unlock, nil
}
