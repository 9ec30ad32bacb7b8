package address

const (
	// RootID is the id of the synthetic root node of every dataset.
	RootID uint32 = 0

	// NoCoordinate marks a node without a representative point.
	NoCoordinate float32 = 999.9

	// Noname is the display name of placeholder oaza nodes. It must
	// sort before digits so it stays at the head of a sibling chain.
	Noname = "."

	// RootName is the display name stored on the root record.
	RootName = "_root_"
)

// Node is one element of an address, read from the node store.
//
// ID is dense and assigned in depth-first order by the dataset build,
// so a subtree occupies the contiguous id range [ID, SiblingID). It is
// stable within one dataset build only and must never be used as a
// durable key across builds.
type Node struct {
	ID        uint32  `json:"id"`
	Name      string  `json:"name"`
	NameIndex string  `json:"name_index"`
	X         float32 `json:"x"` // longitude
	Y         float32 `json:"y"` // latitude
	Level     Level   `json:"level"`
	Priority  uint8   `json:"priority"`
	Note      string  `json:"note"`
	ParentID  uint32  `json:"parent_id"`
	SiblingID uint32  `json:"sibling_id"`
}

// Root returns the synthetic root record.
func Root() Node {
	return Node{
		ID:       RootID,
		Name:     RootName,
		X:        NoCoordinate,
		Y:        NoCoordinate,
		Level:    0,
		ParentID: RootID,
	}
}

// IsRoot reports whether n is the dataset root.
func (n Node) IsRoot() bool {
	return n.ID == RootID
}

// HasChildren reports whether n has at least one child. A childless
// node is recognized by its sibling link pointing directly past it.
func (n Node) HasChildren() bool {
	return n.SiblingID != n.ID+1
}

// HasValidCoordinates reports whether both coordinates are inside the
// valid lon/lat range (the sentinel 999.9 is not).
func (n Node) HasValidCoordinates() bool {
	return n.X >= -180.0 && n.X <= 180.0 && n.Y >= -90.0 && n.Y <= 90.0
}

// DisplayName returns the node name, or alt for placeholder nodes.
func (n Node) DisplayName(alt string) string {
	if n.Name == Noname {
		return alt
	}
	return n.Name
}

// Notes parses the annotation bag of the node.
func (n Node) Notes() Notes {
	return ParseNotes(n.Note)
}
