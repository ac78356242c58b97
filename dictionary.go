package binc

// NameDictionary is a sparse, index-addressable table interning names used
// for node types, attribute keys, and tags. Index 0 is reserved: it is never
// handed out by GetOrCreateIndex for a new name.
type NameDictionary struct {
	names []*string
}

// NewNameDictionary returns an empty dictionary.
func NewNameDictionary() *NameDictionary {
	return &NameDictionary{}
}

// Len returns the sparse length of the dictionary (one past the highest
// index ever written).
func (d *NameDictionary) Len() int {
	return len(d.names)
}

// Insert grows the dictionary to index+1 if needed and sets the name at index,
// overwriting any previous value there.
func (d *NameDictionary) Insert(index int, name string) {
	d.grow(index + 1)
	d.names[index] = &name
}

func (d *NameDictionary) grow(n int) {
	for len(d.names) < n {
		d.names = append(d.names, nil)
	}
}

// Get returns the name at index, and whether it was present.
func (d *NameDictionary) Get(index int) (string, bool) {
	if index < 0 || index >= len(d.names) || d.names[index] == nil {
		return "", false
	}
	return *d.names[index], true
}

// GetIndex finds the index holding name via a linear scan, acceptable for the
// sub-1000-distinct-name dictionaries this format targets.
func (d *NameDictionary) GetIndex(name string) (int, bool) {
	for i, n := range d.names {
		if n != nil && *n == name {
			return i, true
		}
	}
	return 0, false
}

// GetOrCreateIndex returns the existing index for name, or allocates a new
// one (never index 0, which is reserved) and inserts it.
func (d *NameDictionary) GetOrCreateIndex(name string) (index int, existed bool) {
	if i, ok := d.GetIndex(name); ok {
		return i, true
	}
	idx := len(d.names)
	if idx < 1 {
		idx = 1
	}
	d.Insert(idx, name)
	return idx, false
}
