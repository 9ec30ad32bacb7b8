// Package dictionary implements the on-disk address dictionary: a
// memory-mapped node table holding the address hierarchy as one
// depth-first array, a prefix trie from standardized notations to node
// ids, an annotation index, the machiaza master records and the source
// dataset catalog.
//
// A dictionary directory is produced by a Builder and opened read only
// by any number of Store instances, which share the page cache through
// mmap. Node ids are dense and depth-first, so the subtree of node n is
// exactly the id range [n.ID, n.SiblingID).
package dictionary

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/banchi-geo/banchi/pkg/address"
	"github.com/banchi-geo/banchi/pkg/itaiji"
	"github.com/banchi-geo/banchi/pkg/storage/mmap"
	"github.com/banchi-geo/banchi/pkg/trie"
)

// File names inside a dictionary directory.
const (
	nodesPrefix   = "nodes"
	stringsPrefix = "strings"
	trieFile      = "trie.idx"
	noteIndexFile = "noteindex.idx"
	azaMasterFile = "azamaster.idx"
	datasetsFile  = "datasets.yaml"
	metadataFile  = "metadata.txt"
	readmeFile    = "README.md"
)

// Store is a read-only view of one dictionary directory. It is safe
// for concurrent use.
type Store struct {
	dir      string
	nodes    *mmap.RecordArena
	strs     *mmap.BlobArena
	trie     *trie.Trie
	notes    *noteIndex
	aza      *azaMaster
	datasets []Dataset
	version  string
	readme   string
}

// Open maps the dictionary stored in dir.
//
// It performs the following actions:
//  1. Maps the node and string arenas.
//  2. Loads the notation trie.
//  3. Loads the annotation index and the machiaza master.
//  4. Reads the dataset catalog and the version metadata.
func Open(dir string) (*Store, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("dictionary not installed in %s: %w", dir, err)
	}

	s := &Store{dir: dir}

	// 1. Map the arenas. The node arena carries the record count.
	var err error
	s.nodes, err = mmap.OpenRecordArena(dir, nodesPrefix, RecordSize, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open node table: %w", err)
	}
	s.strs, err = mmap.OpenBlobArena(dir, stringsPrefix, 0)
	if err != nil {
		s.nodes.Close()
		return nil, fmt.Errorf("failed to open string table: %w", err)
	}

	// 2. Load the notation trie.
	s.trie, err = trie.Load(filepath.Join(dir, trieFile))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to load trie: %w", err)
	}

	// 3. Load the secondary indexes. A missing annotation index is
	// rebuilt from the node table; a missing trie means a broken
	// installation.
	s.notes, err = loadNoteIndex(filepath.Join(dir, noteIndexFile))
	if os.IsNotExist(err) {
		err = s.BuildNoteIndex()
	}
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to load annotation index: %w", err)
	}
	s.aza, err = loadAzaMaster(filepath.Join(dir, azaMasterFile))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to load machiaza master: %w", err)
	}

	// 4. Dataset catalog and version metadata. Both are optional; a
	// dictionary without them still resolves addresses.
	s.datasets, err = loadDatasets(filepath.Join(dir, datasetsFile))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to load dataset catalog: %w", err)
	}
	if b, err := os.ReadFile(filepath.Join(dir, readmeFile)); err == nil {
		s.readme = string(b)
	}
	s.version = readVersion(dir)

	return s, nil
}

// Close unmaps the dictionary files.
func (s *Store) Close() error {
	var firstErr error
	if s.nodes != nil {
		if err := s.nodes.Close(); err != nil {
			firstErr = err
		}
		s.nodes = nil
	}
	if s.strs != nil {
		if err := s.strs.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.strs = nil
	}
	return firstErr
}

// Dir returns the dictionary directory.
func (s *Store) Dir() string { return s.dir }

// Count returns the number of node records.
func (s *Store) Count() uint64 { return s.nodes.Count() }

// Version returns the installed dictionary version string.
func (s *Store) Version() string { return s.version }

// Readme returns the dictionary README contents, or "".
func (s *Store) Readme() string { return s.readme }

// Signature identifies the dictionary contents. Clients cache node
// records under this value and drop the cache when it changes.
func (s *Store) Signature() string {
	return fmt.Sprintf("%s:%d", s.version, s.Count())
}

// Trie returns the notation trie.
func (s *Store) Trie() *trie.Trie { return s.trie }

// Datasets returns the source dataset catalog ordered by id.
func (s *Store) Datasets() []Dataset { return s.datasets }

// Dataset returns the dataset with the given id. A node's priority is
// the id of the dataset it came from.
func (s *Store) Dataset(id uint8) (Dataset, bool) {
	for _, ds := range s.datasets {
		if ds.ID == id {
			return ds, true
		}
	}
	return Dataset{}, false
}

// --- NODE ACCESS ---

// Node reads the record with the given id.
func (s *Store) Node(id uint32) (address.Node, error) {
	if uint64(id) >= s.Count() {
		return address.Node{}, fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	raw, err := s.nodes.Record(id)
	if err != nil {
		return address.Node{}, err
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return address.Node{}, fmt.Errorf("node %d: %w", id, err)
	}

	n := address.Node{
		ID:        id,
		X:         rec.x,
		Y:         rec.y,
		Level:     rec.level,
		Priority:  rec.priority,
		ParentID:  rec.parentID,
		SiblingID: rec.siblingID,
	}
	if n.Name, err = s.blobString(rec.name); err != nil {
		return address.Node{}, fmt.Errorf("node %d name: %w", id, err)
	}
	if n.NameIndex, err = s.blobString(rec.nameIndex); err != nil {
		return address.Node{}, fmt.Errorf("node %d name index: %w", id, err)
	}
	if n.Note, err = s.blobString(rec.note); err != nil {
		return address.Node{}, fmt.Errorf("node %d note: %w", id, err)
	}
	return n, nil
}

func (s *Store) blobString(ref blobRef) (string, error) {
	if ref.n == 0 {
		return "", nil
	}
	b, err := s.strs.Bytes(ref.off, int(ref.n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Root returns the synthetic root record.
func (s *Store) Root() (address.Node, error) {
	return s.Node(address.RootID)
}

// Parent returns the parent of n. For nodes directly under the root,
// and for the root itself, ok is false.
func (s *Store) Parent(n address.Node) (address.Node, bool, error) {
	if n.ParentID == address.RootID {
		return address.Node{}, false, nil
	}
	parent, err := s.Node(n.ParentID)
	if err != nil {
		return address.Node{}, false, err
	}
	return parent, true, nil
}

// Children calls fn for each direct child of n in id order, stopping
// early when fn returns false.
//
// Children are stored depth first right after their parent, so the
// iteration hops from sibling to sibling: any record inside the range
// that does not belong to n is the head of a deeper subtree, which is
// skipped as a whole via its parent's sibling link.
func (s *Store) Children(n address.Node, fn func(address.Node) bool) error {
	pos := n.ID + 1
	for pos < n.SiblingID {
		child, err := s.Node(pos)
		if err != nil {
			return err
		}
		if child.ParentID == n.ID {
			if !fn(child) {
				return nil
			}
			pos = child.SiblingID
			continue
		}
		owner, err := s.Node(child.ParentID)
		if err != nil {
			return err
		}
		pos = owner.SiblingID
	}
	return nil
}

// ParentList returns the chain from the prefecture down to n itself.
// The root record is not part of the chain.
func (s *Store) ParentList(n address.Node) ([]address.Node, error) {
	chain := []address.Node{n}
	cur := n
	for cur.ParentID != address.RootID {
		parent, err := s.Node(cur.ParentID)
		if err != nil {
			return nil, err
		}
		chain = append(chain, parent)
		cur = parent
	}
	// Reverse into prefecture-first order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// FullName returns the element names from the prefecture down to n.
// Placeholder names are replaced by alt.
func (s *Store) FullName(n address.Node, alt string) ([]string, error) {
	chain, err := s.ParentList(n)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(chain))
	for i, node := range chain {
		names[i] = node.DisplayName(alt)
	}
	return names, nil
}

// NodesByLevel buckets the chain of n by address level. Index i of the
// result holds the chain nodes at level i, upper nodes first, or nil
// when the chain has no element at that level.
func (s *Store) NodesByLevel(n address.Node) ([][]address.Node, error) {
	chain, err := s.ParentList(n)
	if err != nil {
		return nil, err
	}
	buckets := make([][]address.Node, int(n.Level)+1)
	for _, node := range chain {
		buckets[node.Level] = append(buckets[node.Level], node)
	}
	return buckets, nil
}

// UpperNode climbs from n towards the root and returns the first node
// whose level is one of levels. ok is false when no such node exists.
func (s *Store) UpperNode(n address.Node, levels ...address.Level) (address.Node, bool, error) {
	cur := n
	for {
		for _, l := range levels {
			if cur.Level == l {
				return cur, true, nil
			}
		}
		if cur.ID == address.RootID {
			return address.Node{}, false, nil
		}
		parent, err := s.Node(cur.ParentID)
		if err != nil {
			return address.Node{}, false, err
		}
		cur = parent
	}
}

// PrefName returns the name of the prefecture containing n, or "".
func (s *Store) PrefName(n address.Node) (string, error) {
	pref, ok, err := s.UpperNode(n, address.LevelPref)
	if err != nil || !ok {
		return "", err
	}
	return pref.Name, nil
}

// CityName returns the name of the city or ward containing n, or "".
func (s *Store) CityName(n address.Node) (string, error) {
	city, ok, err := s.UpperNode(n, address.LevelCity, address.LevelWard)
	if err != nil || !ok {
		return "", err
	}
	return city.Name, nil
}

// --- CODES ---

// PrefCode returns the 2-digit JIS X 0401 prefecture code of the
// prefecture containing n, or "".
func (s *Store) PrefCode(n address.Node) (string, error) {
	pref, ok, err := s.UpperNode(n, address.LevelPref)
	if err != nil || !ok {
		return "", err
	}
	return noteCode(pref, address.NoteKeyPrefCode, 2), nil
}

// CityCode returns the 5-digit JIS X 0402 code of the city or ward
// containing n, or "".
func (s *Store) CityCode(n address.Node) (string, error) {
	city, ok, err := s.UpperNode(n, address.LevelCity, address.LevelWard)
	if err != nil || !ok {
		return "", err
	}
	return noteCode(city, address.NoteKeyCityCode, 5), nil
}

// AzaID returns the 7-digit machiaza id recorded on n or its nearest
// annotated ancestor, or "".
func (s *Store) AzaID(n address.Node) (string, error) {
	cur := n
	for {
		if id := noteCode(cur, address.NoteKeyAzaID, 7); id != "" {
			return id, nil
		}
		if cur.ID == address.RootID {
			return "", nil
		}
		parent, err := s.Node(cur.ParentID)
		if err != nil {
			return "", err
		}
		cur = parent
	}
}

// AzaCode returns the 12-digit machiaza code (city code + aza id), or
// "" when n has no aza id.
func (s *Store) AzaCode(n address.Node) (string, error) {
	azaID, err := s.AzaID(n)
	if err != nil || azaID == "" {
		return "", err
	}
	cityCode, err := s.CityCode(n)
	if err != nil {
		return "", err
	}
	return cityCode + azaID, nil
}

// Postcode returns the 7-digit postal code of n or its nearest
// annotated ancestor above the county level, or "".
func (s *Store) Postcode(n address.Node) (string, error) {
	cur := n
	for cur.Level > address.LevelCounty {
		if pc := noteCode(cur, address.NoteKeyPostcode, 7); pc != "" {
			return pc, nil
		}
		if cur.ID == address.RootID {
			break
		}
		parent, err := s.Node(cur.ParentID)
		if err != nil {
			return "", err
		}
		cur = parent
	}
	return "", nil
}

// LocalAuthorityCode returns the 6-digit local government code of the
// city or ward containing n, or "".
func (s *Store) LocalAuthorityCode(n address.Node) (string, error) {
	cityCode, err := s.CityCode(n)
	if err != nil || cityCode == "" {
		return "", err
	}
	return address.LocalAuthorityCode(cityCode)
}

// IsInside reports whether n lies inside the area given as a
// prefecture code, a city code or an element name. It returns 1 when
// inside, 0 when outside and -1 when the node alone cannot decide
// (a prefecture node against a city code of the same prefecture).
func (s *Store) IsInside(n address.Node, area string) (int, error) {
	if hasDigitPrefix(area, 2) {
		prefCode, err := s.PrefCode(n)
		if err != nil {
			return 0, err
		}
		if prefCode == area {
			return 1, nil
		}
	}

	if hasDigitPrefix(area, 5) {
		cityCode, err := s.CityCode(n)
		if err != nil {
			return 0, err
		}
		if cityCode == area {
			return 1, nil
		}
		if cityCode != "" {
			return 0, nil
		}
		prefCode, err := s.PrefCode(n)
		if err != nil {
			return 0, err
		}
		if prefCode != area[:2] {
			return 0, nil
		}
		return -1, nil
	}

	// Compare the standardized notation with the chain down to n.
	chain, err := s.ParentList(n)
	if err != nil {
		return 0, err
	}
	areaIndex := itaiji.Default.Standardize(area, false)
	for _, node := range chain {
		if node.NameIndex == areaIndex {
			return 1, nil
		}
	}
	return 0, nil
}

// --- SECONDARY INDEXES ---

// IDsByNote returns the ids of every node annotated with key:value.
func (s *Store) IDsByNote(key, value string) []uint32 {
	return s.notes.get(key, value)
}

// NodesByNote reads the nodes annotated with key:value.
func (s *Store) NodesByNote(key, value string) ([]address.Node, error) {
	ids := s.notes.get(key, value)
	nodes := make([]address.Node, 0, len(ids))
	for _, id := range ids {
		n, err := s.Node(id)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// BuildNoteIndex rebuilds the annotation index from the node table,
// with the same keying the builder uses, and saves it next to the
// dictionary files. Open runs it when the index file is missing; it
// must not run concurrently with readers of the same store.
func (s *Store) BuildNoteIndex() error {
	ni := &noteIndex{}
	count := uint32(s.Count())
	for id := address.RootID; id < count; id++ {
		n, err := s.Node(id)
		if err != nil {
			return err
		}
		if n.Note == "" || n.Level > address.LevelAza {
			continue
		}
		for _, kv := range address.ParseNotes(n.Note) {
			if kv.Key == "" || kv.Key == address.NoteKeyRef || kv.Key == address.NoteKeyCityID {
				continue
			}
			for _, v := range strings.Split(kv.Value, "|") {
				if v != "" {
					ni.add(kv.Key, v, id)
				}
			}
		}
	}
	s.notes = ni
	return ni.save(filepath.Join(s.dir, noteIndexFile))
}

// AzaRecordByCode returns the machiaza master record for a 12-digit
// machiaza code. A 13-digit local-government form (city code with
// check digit) is folded to 12 digits first.
func (s *Store) AzaRecordByCode(code string) (AzaRecord, error) {
	if len(code) == 13 {
		code = code[:5] + code[6:]
	}
	rec, ok := s.aza.get(code)
	if !ok {
		return AzaRecord{}, fmt.Errorf("machiaza code %q: %w", code, ErrNotFound)
	}
	return rec, nil
}

// EachAzaPrefix calls fn for every machiaza master record whose code
// starts with prefix, in code order, stopping early when fn returns
// false.
func (s *Store) EachAzaPrefix(prefix string, fn func(AzaRecord) bool) {
	s.aza.scanPrefix(prefix, fn)
}

// --- HELPERS ---

// noteCode extracts a fixed-width digit code stored under key in the
// node annotations.
func noteCode(n address.Node, key string, width int) string {
	for _, v := range n.Notes().Values(key) {
		if len(v) >= width && allDigits(v[:width]) {
			return v[:width]
		}
	}
	return ""
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func hasDigitPrefix(s string, width int) bool {
	return len(s) >= width && allDigits(s[:width])
}

// readVersion resolves the dictionary version: the first line of
// metadata.txt, else the README modification date, else a placeholder.
func readVersion(dir string) string {
	if b, err := os.ReadFile(filepath.Join(dir, metadataFile)); err == nil {
		line, _, _ := strings.Cut(string(b), "\n")
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	if info, err := os.Stat(filepath.Join(dir, readmeFile)); err == nil {
		return info.ModTime().Format("20060102")
	}
	return "(unknown)"
}
