package binc

// NodeID is a dense non-negative integer identifying a node within a Document.
type NodeID uint64

const (
	// RootNode is always present and has no parent.
	RootNode NodeID = 0

	// NoNode is the sentinel for "absent node".
	NoNode NodeID = ^NodeID(0)
)

func writeNodeID(w writer, id NodeID) error { return writeVarint(w, uint64(id)) }

func readNodeID(r reader) (NodeID, error) {
	v, err := readVarint(r)
	if err != nil {
		return 0, err
	}
	return NodeID(v), nil
}
