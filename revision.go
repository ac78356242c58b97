package binc

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"lukechampine.com/blake3"
)

const revisionMagic = "Chng"

// Revision is an atomic commit group: a set of operations plus metadata and
// a content hash. Once appended to a Repository it is immutable.
type Revision struct {
	ID           uuid.UUID
	ParentIDs    []uuid.UUID
	Date         string // RFC-3339
	UserName     string
	Message      string
	Tags         []string
	Operations   []Operation
	ContentHash  [32]byte
}

// NewRevision builds a revision following the given parent, stamped with the
// current time and the supplied user name.
func NewRevision(parent *Revision, userName, message string, tags []string, ops []Operation) *Revision {
	var parents []uuid.UUID
	if parent != nil {
		parents = []uuid.UUID{parent.ID}
	}
	return &Revision{
		ID:         uuid.New(),
		ParentIDs:  parents,
		Date:       time.Now().UTC().Format(time.RFC3339),
		UserName:   userName,
		Message:    message,
		Tags:       tags,
		Operations: ops,
	}
}

// writeContent serializes the hashed portion of the revision (everything
// before the trailing hash) to w.
func (rev *Revision) writeContent(w writer) error {
	if err := writeAll(w, []byte(revisionMagic)); err != nil {
		return err
	}
	if err := writeUUID(w, rev.ID); err != nil {
		return err
	}
	if err := writeUUIDArray(w, rev.ParentIDs); err != nil {
		return err
	}
	if err := writeString(w, rev.Date); err != nil {
		return err
	}
	if err := writeString(w, rev.UserName); err != nil {
		return err
	}
	if err := writeString(w, rev.Message); err != nil {
		return err
	}
	if err := writeStringArray(w, rev.Tags); err != nil {
		return err
	}
	if err := writeLength(w, len(rev.Operations)); err != nil {
		return err
	}
	for _, op := range rev.Operations {
		if err := writeOperation(w, op); err != nil {
			return err
		}
	}
	return nil
}

// Write serializes the revision, computing and appending its BLAKE3 content hash.
func (rev *Revision) Write(w writer) error {
	var content bytes.Buffer
	if err := rev.writeContent(&content); err != nil {
		return err
	}
	hash := blake3.Sum256(content.Bytes())
	rev.ContentHash = hash
	if err := writeAll(w, content.Bytes()); err != nil {
		return err
	}
	return writeHash(w, hash)
}

// ReadRevisionOptions controls hash verification on load.
type ReadRevisionOptions struct {
	// AllowHashMismatch, when true, tolerates a revision whose recomputed
	// content hash does not match the stored one (needed to load
	// repositories written by implementations with stale hash logic).
	AllowHashMismatch bool
}

// ReadRevision decodes one revision from r, verifying its content hash unless
// opts.AllowHashMismatch is set.
func ReadRevision(r reader, opts ReadRevisionOptions) (*Revision, error) {
	var magic [4]byte
	if err := readFull(r, magic[:]); err != nil {
		return nil, err
	}
	if string(magic[:]) != revisionMagic {
		return nil, ErrBadMagic
	}

	var content bytes.Buffer
	content.Write(magic[:])
	tr := &teeReader{r: r, w: &content}

	id, err := readUUID(tr)
	if err != nil {
		return nil, err
	}
	parents, err := readUUIDArray(tr)
	if err != nil {
		return nil, err
	}
	date, err := readString(tr)
	if err != nil {
		return nil, err
	}
	user, err := readString(tr)
	if err != nil {
		return nil, err
	}
	message, err := readString(tr)
	if err != nil {
		return nil, err
	}
	tags, err := readStringArray(tr)
	if err != nil {
		return nil, err
	}
	count, err := readLength(tr)
	if err != nil {
		return nil, err
	}
	ops := make([]Operation, 0, count)
	for i := 0; i < count; i++ {
		op, err := readOperation(tr)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}

	storedHash, err := readHash(r)
	if err != nil {
		return nil, err
	}
	actualHash := blake3.Sum256(content.Bytes())
	if storedHash != actualHash && !opts.AllowHashMismatch {
		return nil, ErrHashMismatch
	}

	return &Revision{
		ID:          id,
		ParentIDs:   parents,
		Date:        date,
		UserName:    user,
		Message:     message,
		Tags:        tags,
		Operations:  ops,
		ContentHash: storedHash,
	}, nil
}

// teeReader reads from r while also copying everything read into w, used to
// recover the exact content bytes a revision was hashed over while decoding
// it field-by-field.
type teeReader struct {
	r reader
	w writer
}

func (t *teeReader) Read(b []byte) (int, error) {
	n, err := t.r.Read(b)
	if n > 0 {
		t.w.Write(b[:n])
	}
	return n, err
}
