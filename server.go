package binc

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Store is a directory of repository files served over the sync protocol.
// Every file is a self-contained Repository container; AppendFile and
// CreateFile take an exclusive lock for the duration of the write so that
// concurrent clients cannot interleave writes to the same file. All file
// access goes through a FileSystemInterface so a Store can be pointed at
// something other than local disk, such as an in-memory fake in tests.
type Store struct {
	rootDir string
	fs      FileSystemInterface
}

// NewStore returns a Store rooted at dir, backed by the local disk. The
// directory must already exist.
func NewStore(dir string) *Store {
	return NewStoreWithFS(dir, newLocalFileSystem())
}

// NewStoreWithFS returns a Store rooted at dir, backed by fs.
func NewStoreWithFS(dir string, fs FileSystemInterface) *Store {
	return &Store{rootDir: dir, fs: fs}
}

func (s *Store) translatePath(path string) string {
	return filepath.Join(s.rootDir, path)
}

// ListFiles lists the repository files directly under the store's root.
func (s *Store) ListFiles() ([]string, error) {
	entries, err := s.fs.ListDir(s.rootDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		// Skip the sibling ".lock" files left behind by FileSystemInterface.Lock.
		if strings.HasSuffix(e, ".lock") {
			continue
		}
		names = append(names, filepath.Base(e))
	}
	return names, nil
}

// CreateFile creates a new, empty repository file. It fails with
// ErrFileExists if the file is already present. It honors ctx.Done() while
// waiting to acquire the file's write lock.
func (s *Store) CreateFile(ctx context.Context, path string) error {
	full := s.translatePath(path)

	unlock, err := s.fs.Lock(ctx, full)
	if err != nil {
		return err
	}
	defer unlock()

	if s.fs.Exists(full) {
		return ErrFileExists
	}

	var buf bytes.Buffer
	if err := NewRepository().Write(&buf); err != nil {
		return err
	}
	return s.fs.WriteFile(full, buf.Bytes())
}

// GetFileData returns the raw revision bytes in path from fromRevision to the
// file's current revision count, along with that count.
func (s *Store) GetFileData(ctx context.Context, path string, fromRevision int) (toRevision int, data []byte, err error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	full := s.translatePath(path)
	if !s.fs.Exists(full) {
		return 0, nil, ErrFileNotFound
	}
	raw, err := s.fs.ReadFile(full)
	if err != nil {
		return 0, nil, err
	}

	repo, err := ReadRepository(bytes.NewReader(raw), ReadRevisionOptions{})
	if err != nil {
		return 0, nil, err
	}
	toRevision = len(repo.Revisions)
	if fromRevision > toRevision {
		return 0, nil, ErrRevisionRange
	}

	var out fileBuffer
	if err := repo.WriteRange(&out, fromRevision, toRevision); err != nil {
		return 0, nil, err
	}
	return toRevision, out.Bytes(), nil
}

// AppendFile appends data (a sequence of bare revisions) to path, enforcing
// optimistic concurrency: fromRevision must match the file's current
// revision count. It honors ctx.Done() while waiting to acquire the file's
// write lock.
func (s *Store) AppendFile(ctx context.Context, path string, fromRevision, toRevision int, data []byte) error {
	full := s.translatePath(path)

	unlock, err := s.fs.Lock(ctx, full)
	if err != nil {
		return err
	}
	defer unlock()

	if !s.fs.Exists(full) {
		return ErrFileNotFound
	}
	raw, err := s.fs.ReadFile(full)
	if err != nil {
		return err
	}

	repo, err := ReadRepository(bytes.NewReader(raw), ReadRevisionOptions{})
	if err != nil {
		return err
	}
	if fromRevision != len(repo.Revisions) {
		return ErrRevisionMismatch
	}

	return s.fs.WriteFile(full, append(raw, data...))
}

// fileBuffer is a minimal growable byte sink satisfying writer without
// pulling in bytes.Buffer's full surface where only Bytes() is needed back.
type fileBuffer struct {
	buf []byte
}

func (b *fileBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *fileBuffer) Bytes() []byte { return b.buf }

// Server accepts sync protocol connections and dispatches each request
// against a Store, one goroutine per connection.
type Server struct {
	store *Store
	log   *zap.SugaredLogger
}

// NewServer returns a Server backed by store, logging through log (a no-op
// logger is used if log is nil).
func NewServer(store *Store, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{store: store, log: log}
}

// ListenAndServe binds addr and serves connections until ctx is done, the
// listener is closed, or Accept returns a fatal error.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer listener.Close()
	s.log.Infow("server listening", "addr", addr)

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	s.log.Infow("connection established", "remote", conn.RemoteAddr())

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		if err := ctx.Err(); err != nil {
			s.log.Infow("connection closed", "remote", conn.RemoteAddr(), "error", err)
			return
		}

		req, err := ReadRequest(conn)
		if err != nil {
			s.log.Infow("connection closed", "remote", conn.RemoteAddr(), "error", err)
			return
		}

		resp, disconnect := s.dispatch(ctx, req)
		if disconnect {
			return
		}
		if err := WriteResponse(conn, resp); err != nil {
			s.log.Warnw("failed writing response", "error", err)
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) (resp Response, disconnect bool) {
	switch req.Kind {
	case ReqDisconnect:
		return Response{}, true

	case ReqListFiles:
		files, err := s.store.ListFiles()
		if err != nil {
			s.log.Warnw("list files failed", "error", err)
			return ListFilesResponse(nil), false
		}
		return ListFilesResponse(files), false

	case ReqGetFileData:
		to, data, err := s.store.GetFileData(ctx, req.Path, req.FromRevision)
		if err != nil {
			s.log.Warnw("get file data failed", "path", req.Path, "error", err)
			return GetFileDataResponse(req.FromRevision, req.FromRevision, nil), false
		}
		return GetFileDataResponse(req.FromRevision, to, data), false

	case ReqCreateFile:
		if err := s.store.CreateFile(ctx, req.Path); err != nil {
			return CreateFileError(err.Error()), false
		}
		return CreateFileOK(), false

	case ReqAppendFile:
		if err := s.store.AppendFile(ctx, req.Path, req.FromRevision, req.ToRevision, req.Bytes); err != nil {
			return AppendFileError(err.Error()), false
		}
		return AppendFileOK(), false

	default:
		return Response{}, false
	}
}
