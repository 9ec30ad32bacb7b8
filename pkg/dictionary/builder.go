package dictionary

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banchi-geo/banchi/pkg/address"
	"github.com/banchi-geo/banchi/pkg/itaiji"
	"github.com/banchi-geo/banchi/pkg/storage/mmap"
	"github.com/banchi-geo/banchi/pkg/trie"
)

// Element is one step of an address path handed to the Builder.
type Element struct {
	Level address.Level
	Name  string
}

// Builder assembles a dictionary in memory and writes it out as one
// directory. Addresses are added as full paths from the prefecture
// down; shared leading elements are merged into one node each.
//
// The zero value is not usable, call NewBuilder.
type Builder struct {
	dir      string
	conv     *itaiji.Converter
	root     *buildNode
	aza      *azaMaster
	datasets []Dataset
	readme   string
	version  string
	finished bool
}

type buildNode struct {
	name      string
	nameIndex string
	x, y      float32
	level     address.Level
	priority  uint8
	note      string
	added     bool // set once a dataset wrote this node directly

	children []*buildNode
	byName   map[childKey]*buildNode

	id        uint32
	siblingID uint32
}

type childKey struct {
	level address.Level
	name  string
}

// NewBuilder prepares a builder that will write into dir.
func NewBuilder(dir string) *Builder {
	return &Builder{
		dir:  dir,
		conv: itaiji.Default,
		root: &buildNode{
			name: address.RootName,
			x:    address.NoCoordinate,
			y:    address.NoCoordinate,
		},
		aza: &azaMaster{},
	}
}

// AddAddress merges one address path into the tree. The last element
// receives the coordinates, the annotations and the priority; elements
// created on the way are placeholders until a dataset adds them
// directly. When the last element already exists, a smaller priority
// replaces its attributes, and coordinates fill in when missing.
func (b *Builder) AddAddress(elements []Element, x, y float64, note string, priority uint8) error {
	if len(elements) == 0 {
		return fmt.Errorf("empty address path")
	}

	cur := b.root
	for i, elem := range elements {
		if elem.Name == "" {
			return fmt.Errorf("element %d has an empty name", i)
		}
		if !elem.Level.Valid() {
			return fmt.Errorf("element %d (%s): invalid level %d", i, elem.Name, elem.Level)
		}
		child := cur.child(elem.Level, elem.Name)
		if child == nil {
			child = &buildNode{
				name:      elem.Name,
				nameIndex: b.conv.Standardize(elem.Name, false),
				x:         address.NoCoordinate,
				y:         address.NoCoordinate,
				level:     elem.Level,
				priority:  priority,
			}
			cur.addChild(child)
		}
		cur = child
	}

	leaf := cur
	switch {
	case !leaf.added || priority < leaf.priority:
		leaf.x, leaf.y = float32(x), float32(y)
		leaf.note = note
		leaf.priority = priority
		leaf.added = true
	case !(address.Node{X: leaf.x, Y: leaf.y}).HasValidCoordinates():
		leaf.x, leaf.y = float32(x), float32(y)
	}
	return nil
}

func (n *buildNode) child(level address.Level, name string) *buildNode {
	if n.byName == nil {
		return nil
	}
	return n.byName[childKey{level, name}]
}

func (n *buildNode) addChild(c *buildNode) {
	if n.byName == nil {
		n.byName = make(map[childKey]*buildNode)
	}
	n.byName[childKey{c.level, c.name}] = c
	n.children = append(n.children, c)
}

// AddAzaRecord registers a machiaza master record. lgCode is the
// 6-digit local-government code of the municipality, azaID the
// 7-digit machiaza id; together they form the 12-digit record code.
// The check digit of lgCode is verified against the JIS X 0402 rule.
func (b *Builder) AddAzaRecord(lgCode, azaID string, rec AzaRecord) error {
	if len(lgCode) != 6 || !allDigits(lgCode) {
		return fmt.Errorf("local government code must be 6 digits, got %q", lgCode)
	}
	want, err := address.LocalAuthorityCode(lgCode[:5])
	if err != nil {
		return err
	}
	if want != lgCode {
		return fmt.Errorf("local government code %q has a wrong check digit, want %q", lgCode, want)
	}
	if len(azaID) != 7 || !allDigits(azaID) {
		return fmt.Errorf("machiaza id must be 7 digits, got %q", azaID)
	}

	rec.Code = lgCode[:5] + azaID
	if rec.NamesIndex == "" {
		rec.NamesIndex = StandardizeAzaName(rec.Names)
	}
	b.aza.put(rec)
	return nil
}

// SetDatasets records the source dataset catalog.
func (b *Builder) SetDatasets(datasets []Dataset) { b.datasets = datasets }

// SetReadme records the README contents written alongside the data.
func (b *Builder) SetReadme(readme string) { b.readme = readme }

// SetVersion records the dictionary version string.
func (b *Builder) SetVersion(version string) { b.version = version }

// Finish writes the dictionary directory.
//
// It performs the following actions:
//  1. Sorts siblings by standardized notation and assigns depth-first
//     ids, so each subtree becomes one contiguous id range.
//  2. Writes the node and string arenas.
//  3. Builds and saves the notation trie and the annotation index.
//  4. Saves the machiaza master, the dataset catalog and the metadata.
func (b *Builder) Finish() error {
	if b.finished {
		return fmt.Errorf("builder already finished")
	}
	b.finished = true

	// 1. Sibling order and id assignment. The placeholder name "."
	// sorts before digits, keeping fallback nodes at the head of
	// their sibling chain.
	sortChildren(b.root)
	count := assignIDs(b.root, 0)

	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return fmt.Errorf("failed to create dictionary dir: %w", err)
	}

	// 2. Node records and strings.
	nodes, err := mmap.NewRecordArena(b.dir, nodesPrefix, RecordSize, 0)
	if err != nil {
		return err
	}
	defer nodes.Close()
	strs, err := mmap.NewBlobArena(b.dir, stringsPrefix, 0)
	if err != nil {
		return err
	}
	defer strs.Close()

	w := &dictWriter{
		nodes: nodes,
		strs:  strs,
		blobs: make(map[string]blobRef),
		trie:  trie.New(),
		notes: &noteIndex{},
		conv:  b.conv,
	}
	if err := w.writeTree(b.root, address.RootID, nil); err != nil {
		return err
	}
	if err := nodes.SetCount(uint64(count)); err != nil {
		return err
	}
	if err := nodes.Sync(); err != nil {
		return err
	}
	if err := strs.Sync(); err != nil {
		return err
	}

	// 3. Secondary indexes.
	if err := w.trie.Save(filepath.Join(b.dir, trieFile)); err != nil {
		return err
	}
	if err := w.notes.save(filepath.Join(b.dir, noteIndexFile)); err != nil {
		return err
	}

	// 4. Machiaza master, catalog and metadata.
	if err := b.aza.save(filepath.Join(b.dir, azaMasterFile)); err != nil {
		return err
	}
	if len(b.datasets) > 0 {
		if err := saveDatasets(filepath.Join(b.dir, datasetsFile), b.datasets); err != nil {
			return err
		}
	}
	if b.readme != "" {
		if err := os.WriteFile(filepath.Join(b.dir, readmeFile), []byte(b.readme), 0644); err != nil {
			return err
		}
	}
	if b.version != "" {
		meta := fmt.Sprintf("%s\nrecords=%d\n", b.version, count)
		if err := os.WriteFile(filepath.Join(b.dir, metadataFile), []byte(meta), 0644); err != nil {
			return err
		}
	}
	return nil
}

func sortChildren(n *buildNode) {
	sort.SliceStable(n.children, func(i, j int) bool {
		a, b := n.children[i], n.children[j]
		if a.nameIndex != b.nameIndex {
			return a.nameIndex < b.nameIndex
		}
		return a.name < b.name
	})
	for _, c := range n.children {
		sortChildren(c)
	}
}

// assignIDs numbers the subtree rooted at n starting from id and
// returns the first id past the subtree, which is also n's sibling
// link.
func assignIDs(n *buildNode, id uint32) uint32 {
	n.id = id
	id++
	for _, c := range n.children {
		id = assignIDs(c, id)
	}
	n.siblingID = id
	return id
}

// dictWriter carries the state of one Finish pass over the tree.
type dictWriter struct {
	nodes *mmap.RecordArena
	strs  *mmap.BlobArena
	blobs map[string]blobRef
	trie  *trie.Trie
	notes *noteIndex
	conv  *itaiji.Converter
}

// writeTree writes the record of n and recurses into its children.
// prefixes holds the standardized notations from the prefecture down
// to n's parent and feeds the trie labels.
func (w *dictWriter) writeTree(n *buildNode, parentID uint32, prefixes []string) error {
	if err := w.writeRecord(n, parentID); err != nil {
		return err
	}
	w.indexNotes(n)

	// Every suffix of the notation path down to the oaza level
	// becomes a trie key for this node, so a query can start at any
	// element: 新宿区西新宿 is reachable without the 東京都. Deeper
	// levels are resolved by walking the tree, not the trie.
	if n.id != address.RootID && n.level <= address.LevelOaza {
		prefixes = append(prefixes, n.nameIndex)
		for i := range prefixes {
			w.trie.Insert(strings.Join(prefixes[i:], ""), n.id)
		}
		// Notation variants with optional runes removed, so 霞ガ関
		// is also reachable as 霞関.
		for _, variant := range w.conv.StandardizedCandidates(n.nameIndex) {
			w.trie.Insert(variant, n.id)
		}
	}

	for _, c := range n.children {
		if err := w.writeTree(c, n.id, prefixes); err != nil {
			return err
		}
	}
	return nil
}

func (w *dictWriter) writeRecord(n *buildNode, parentID uint32) error {
	rec := nodeRecord{
		parentID:  parentID,
		siblingID: n.siblingID,
		x:         n.x,
		y:         n.y,
		level:     n.level,
		priority:  n.priority,
	}
	var err error
	if rec.name, err = w.alloc(n.name); err != nil {
		return fmt.Errorf("node %d name: %w", n.id, err)
	}
	if rec.nameIndex, err = w.alloc(n.nameIndex); err != nil {
		return fmt.Errorf("node %d name index: %w", n.id, err)
	}
	if rec.note, err = w.alloc(n.note); err != nil {
		return fmt.Errorf("node %d note: %w", n.id, err)
	}

	raw, err := w.nodes.Record(n.id)
	if err != nil {
		return err
	}
	encodeRecord(raw, rec)
	return nil
}

// alloc stores s in the string arena once and hands out the same
// reference for every repetition. Element names repeat massively
// (every 一丁目, every 1番地), so the cache shrinks the string table
// by an order of magnitude.
func (w *dictWriter) alloc(s string) (blobRef, error) {
	if s == "" {
		return blobRef{}, nil
	}
	if len(s) > 65535 {
		return blobRef{}, fmt.Errorf("string of %d bytes exceeds the record limit", len(s))
	}
	if ref, ok := w.blobs[s]; ok {
		return ref, nil
	}
	off, err := w.strs.Alloc([]byte(s))
	if err != nil {
		return blobRef{}, err
	}
	ref := blobRef{off: off, n: uint16(len(s))}
	w.blobs[s] = ref
	return ref, nil
}

// indexNotes registers the annotations of n in the inverted index.
// Only levels down to the aza are indexed, and the ref and
// geoshape_city_id keys stay out: redirects read the node itself, and
// neither key serves a code lookup.
func (w *dictWriter) indexNotes(n *buildNode) {
	if n.note == "" || n.level > address.LevelAza {
		return
	}
	for _, kv := range address.ParseNotes(n.note) {
		if kv.Key == "" || kv.Key == address.NoteKeyRef || kv.Key == address.NoteKeyCityID {
			continue
		}
		for _, v := range strings.Split(kv.Value, "|") {
			if v != "" {
				w.notes.add(kv.Key, v, n.id)
			}
		}
	}
}
