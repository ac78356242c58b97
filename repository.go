package binc

const repositoryMagic = "BINC"
const repositoryVersion uint32 = 1

// Repository is an append-only container of revisions, framed by a fixed
// magic header and version. Once a revision is written, it is immutable.
type Repository struct {
	Revisions []*Revision
}

// NewRepository returns an empty repository.
func NewRepository() *Repository {
	return &Repository{}
}

// Append adds rev to the repository. Callers must not mutate rev afterward.
func (repo *Repository) Append(rev *Revision) {
	repo.Revisions = append(repo.Revisions, rev)
}

// Write serializes the full repository (header plus every revision) to w.
func (repo *Repository) Write(w writer) error {
	if err := writeAll(w, []byte(repositoryMagic)); err != nil {
		return err
	}
	if err := writeU32(w, repositoryVersion); err != nil {
		return err
	}
	for _, rev := range repo.Revisions {
		if err := rev.Write(w); err != nil {
			return err
		}
	}
	return nil
}

// WriteRange serializes only revisions [from, to) in their wire form, with
// no repository header — used to produce the raw bytes GetFileData and
// AppendFile transfer over the sync protocol.
func (repo *Repository) WriteRange(w writer, from, to int) error {
	if from < 0 || to > len(repo.Revisions) || from > to {
		return ErrRevisionRange
	}
	for _, rev := range repo.Revisions[from:to] {
		if err := rev.Write(w); err != nil {
			return err
		}
	}
	return nil
}

// ReadRepository decodes a full repository (header plus revisions until EOF).
// A partial revision at the tail is a fatal decoding error.
func ReadRepository(r reader, opts ReadRevisionOptions) (*Repository, error) {
	var magic [4]byte
	if err := readFull(r, magic[:]); err != nil {
		return nil, err
	}
	if string(magic[:]) != repositoryMagic {
		return nil, ErrBadMagic
	}
	version, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if version != repositoryVersion {
		return nil, ErrUnsupportedVersion
	}

	repo := &Repository{}
	for {
		rev, err := readRevisionOrEOF(r, opts)
		if err != nil {
			return nil, err
		}
		if rev == nil {
			break
		}
		repo.Revisions = append(repo.Revisions, rev)
	}
	return repo, nil
}

// ReadRevisions decodes a bare sequence of revisions (no repository header),
// the form transferred by GetFileData/AppendFile, until EOF.
func ReadRevisions(r reader, opts ReadRevisionOptions) ([]*Revision, error) {
	var out []*Revision
	for {
		rev, err := readRevisionOrEOF(r, opts)
		if err != nil {
			return nil, err
		}
		if rev == nil {
			break
		}
		out = append(out, rev)
	}
	return out, nil
}

func readRevisionOrEOF(r reader, opts ReadRevisionOptions) (*Revision, error) {
	probe := make([]byte, 1)
	n, _ := r.Read(probe)
	if n == 0 {
		return nil, nil
	}
	pr := &prefixedReader{prefix: probe[:n], r: r}
	return ReadRevision(pr, opts)
}
