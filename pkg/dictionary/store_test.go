package dictionary

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/banchi-geo/banchi/pkg/address"
)

// buildTestDict writes a small two-prefecture dictionary into a temp
// directory and returns its path.
//
//	岐阜県 関ケ原町
//	東京都 多摩市 落合 一丁目 15番地
//	東京都 新宿区 西新宿 二丁目 8番 1号
func buildTestDict(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	b := NewBuilder(dir)
	add := func(note string, x, y float64, priority uint8, elems ...Element) {
		t.Helper()
		if err := b.AddAddress(elems, x, y, note, priority); err != nil {
			t.Fatalf("AddAddress() error = %v", err)
		}
	}

	add("jisx0401:13", 139.6917, 35.6896, 1,
		Element{address.LevelPref, "東京都"})
	add("geoshape_city_id:13224A1971/jisx0402:13224/postcode:2060000", 139.4463, 35.6369, 1,
		Element{address.LevelPref, "東京都"},
		Element{address.LevelCity, "多摩市"})
	add("", 139.4270, 35.6248, 2,
		Element{address.LevelPref, "東京都"},
		Element{address.LevelCity, "多摩市"},
		Element{address.LevelOaza, "落合"})
	add("aza_id:0010001/postcode:2060033", 139.4270, 35.6248, 2,
		Element{address.LevelPref, "東京都"},
		Element{address.LevelCity, "多摩市"},
		Element{address.LevelOaza, "落合"},
		Element{address.LevelAza, "一丁目"})
	add("", 139.4289, 35.6257, 3,
		Element{address.LevelPref, "東京都"},
		Element{address.LevelCity, "多摩市"},
		Element{address.LevelOaza, "落合"},
		Element{address.LevelAza, "一丁目"},
		Element{address.LevelBlock, "15番地"})

	add("jisx0402:13104", 139.7034, 35.6938, 1,
		Element{address.LevelPref, "東京都"},
		Element{address.LevelCity, "新宿区"})
	add("postcode:1600023", 139.6946, 35.6891, 1,
		Element{address.LevelPref, "東京都"},
		Element{address.LevelCity, "新宿区"},
		Element{address.LevelOaza, "西新宿"})
	add("aza_id:0023002", 139.6917, 35.6896, 1,
		Element{address.LevelPref, "東京都"},
		Element{address.LevelCity, "新宿区"},
		Element{address.LevelOaza, "西新宿"},
		Element{address.LevelAza, "二丁目"})
	add("", 139.6921, 35.6895, 1,
		Element{address.LevelPref, "東京都"},
		Element{address.LevelCity, "新宿区"},
		Element{address.LevelOaza, "西新宿"},
		Element{address.LevelAza, "二丁目"},
		Element{address.LevelBlock, "8番"})
	add("", 139.6922, 35.6894, 1,
		Element{address.LevelPref, "東京都"},
		Element{address.LevelCity, "新宿区"},
		Element{address.LevelOaza, "西新宿"},
		Element{address.LevelAza, "二丁目"},
		Element{address.LevelBlock, "8番"},
		Element{address.LevelBld, "1号"})

	add("jisx0401:21", 136.7223, 35.3912, 1,
		Element{address.LevelPref, "岐阜県"})
	add("jisx0402:21362", 136.4703, 35.3628, 1,
		Element{address.LevelPref, "岐阜県"},
		Element{address.LevelCity, "関ケ原町"})

	azaErr := b.AddAzaRecord("131041", "0023002", AzaRecord{
		Names: []AzaName{
			{Level: address.LevelPref, Kanji: "東京都", Kana: "トウキョウト", Roma: "Tokyo", Code: "13"},
			{Level: address.LevelCity, Kanji: "新宿区", Kana: "シンジュクク", Roma: "Shinjuku-ku", Code: "131"},
			{Level: address.LevelOaza, Kanji: "西新宿", Kana: "ニシシンジュク", Roma: "Nishishinjuku", Code: "131040023"},
			{Level: address.LevelAza, Kanji: "二丁目", Kana: "２チョウメ", Roma: "2chome", Code: "131040023002"},
		},
		AzaClass:       AzaClassChome,
		IsJukyo:        true,
		StartCountType: StartCountNumbered,
		Postcodes:      []string{"1600023"},
	})
	if azaErr != nil {
		t.Fatalf("AddAzaRecord() error = %v", azaErr)
	}
	azaErr = b.AddAzaRecord("132241", "0010001", AzaRecord{
		Names: []AzaName{
			{Level: address.LevelPref, Kanji: "東京都", Kana: "トウキョウト", Roma: "Tokyo", Code: "13"},
			{Level: address.LevelCity, Kanji: "多摩市", Kana: "タマシ", Roma: "Tama-shi", Code: "13224"},
			{Level: address.LevelOaza, Kanji: "落合", Kana: "オチアイ", Roma: "Ochiai", Code: "132240010"},
			{Level: address.LevelAza, Kanji: "一丁目", Kana: "１チョウメ", Roma: "1chome", Code: "132240010001"},
		},
		AzaClass:       AzaClassChome,
		StartCountType: StartCountNumbered,
		Postcodes:      []string{"2060033"},
	})
	if azaErr != nil {
		t.Fatalf("AddAzaRecord() error = %v", azaErr)
	}

	b.SetDatasets([]Dataset{
		{ID: 3, Title: "Geolonia 住所データ", URL: "https://geolonia.github.io/japanese-addresses/"},
		{ID: 1, Title: "住居表示住所", URL: "https://www.geospatial.jp/ckan/dataset/aist-jukyohyoji"},
	})
	b.SetReadme("test dictionary\n")
	b.SetVersion("20240820")

	if err := b.Finish(); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	return dir
}

// child walks one step down from n by element name.
func child(t *testing.T, s *Store, n address.Node, name string) address.Node {
	t.Helper()
	var found address.Node
	var ok bool
	err := s.Children(n, func(c address.Node) bool {
		if c.Name == name {
			found, ok = c, true
			return false
		}
		return true
	})
	if err != nil {
		t.Fatalf("Children(%s) error = %v", n.Name, err)
	}
	if !ok {
		t.Fatalf("node %q has no child %q", n.Name, name)
	}
	return found
}

// walk descends from the root through the named elements.
func walk(t *testing.T, s *Store, names ...string) address.Node {
	t.Helper()
	n, err := s.Root()
	if err != nil {
		t.Fatalf("Root() error = %v", err)
	}
	for _, name := range names {
		n = child(t, s, n, name)
	}
	return n
}

func TestStoreOpen(t *testing.T) {
	dir := buildTestDict(t)

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	// 1. 13 records: root + 12 elements.
	if got := s.Count(); got != 13 {
		t.Errorf("Count() = %d, want 13", got)
	}

	// 2. Version comes from metadata.txt.
	if got := s.Version(); got != "20240820" {
		t.Errorf("Version() = %q, want 20240820", got)
	}
	if got := s.Signature(); got != "20240820:13" {
		t.Errorf("Signature() = %q", got)
	}
	if got := s.Readme(); got != "test dictionary\n" {
		t.Errorf("Readme() = %q", got)
	}

	// 3. Dataset catalog is ordered by id.
	datasets := s.Datasets()
	if len(datasets) != 2 || datasets[0].ID != 1 || datasets[1].ID != 3 {
		t.Fatalf("Datasets() = %+v", datasets)
	}
	if ds, ok := s.Dataset(3); !ok || ds.Title != "Geolonia 住所データ" {
		t.Errorf("Dataset(3) = %+v, %v", ds, ok)
	}

	// 4. Opening an empty directory fails.
	if _, err := Open(t.TempDir()); err == nil {
		t.Error("Open() on an empty dir should fail")
	}
}

func TestStoreTreeStructure(t *testing.T) {
	dir := buildTestDict(t)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	// 1. Root children are ordered by standardized notation.
	root, err := s.Root()
	if err != nil {
		t.Fatalf("Root() error = %v", err)
	}
	var prefs []string
	if err := s.Children(root, func(c address.Node) bool {
		prefs = append(prefs, c.Name)
		return true
	}); err != nil {
		t.Fatalf("Children() error = %v", err)
	}
	if len(prefs) != 2 || prefs[0] != "岐阜県" || prefs[1] != "東京都" {
		t.Fatalf("root children = %v, want [岐阜県 東京都]", prefs)
	}

	// 2. A subtree is one contiguous id range.
	tokyo := child(t, s, root, "東京都")
	if tokyo.SiblingID != uint32(s.Count()) {
		t.Errorf("東京都 sibling = %d, want %d", tokyo.SiblingID, s.Count())
	}
	tama := child(t, s, tokyo, "多摩市")
	shinjuku := child(t, s, tokyo, "新宿区")
	if tama.SiblingID != shinjuku.ID {
		t.Errorf("多摩市 sibling = %d, 新宿区 id = %d", tama.SiblingID, shinjuku.ID)
	}

	// 3. Name indexes are standardized at build time.
	chome := walk(t, s, "東京都", "新宿区", "西新宿", "二丁目")
	if chome.NameIndex != "2.丁目" {
		t.Errorf("二丁目 name index = %q, want 2.丁目", chome.NameIndex)
	}
	if chome.Level != address.LevelAza {
		t.Errorf("二丁目 level = %d", chome.Level)
	}

	// 4. Parent links climb back up.
	parent, ok, err := s.Parent(chome)
	if err != nil || !ok || parent.Name != "西新宿" {
		t.Errorf("Parent(二丁目) = %v, %v, %v", parent.Name, ok, err)
	}
	pref := walk(t, s, "東京都")
	if _, ok, _ := s.Parent(pref); ok {
		t.Error("Parent(東京都) should report no parent")
	}

	// 5. FullName joins the chain, leaf included.
	bld := walk(t, s, "東京都", "新宿区", "西新宿", "二丁目", "8番", "1号")
	names, err := s.FullName(bld, "")
	if err != nil {
		t.Fatalf("FullName() error = %v", err)
	}
	want := []string{"東京都", "新宿区", "西新宿", "二丁目", "8番", "1号"}
	if len(names) != len(want) {
		t.Fatalf("FullName() = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("FullName() = %v, want %v", names, want)
		}
	}

	// 6. NodesByLevel buckets the chain, leaving gaps for skipped levels.
	block := walk(t, s, "東京都", "多摩市", "落合", "一丁目", "15番地")
	byLevel, err := s.NodesByLevel(block)
	if err != nil {
		t.Fatalf("NodesByLevel() error = %v", err)
	}
	if len(byLevel) != int(address.LevelBlock)+1 {
		t.Fatalf("NodesByLevel() returned %d buckets", len(byLevel))
	}
	for _, l := range []address.Level{0, address.LevelCounty, address.LevelWard} {
		if byLevel[l] != nil {
			t.Errorf("NodesByLevel()[%d] = %v, want nil", l, byLevel[l])
		}
	}
	for l, name := range map[address.Level]string{
		address.LevelPref:  "東京都",
		address.LevelCity:  "多摩市",
		address.LevelOaza:  "落合",
		address.LevelAza:   "一丁目",
		address.LevelBlock: "15番地",
	} {
		if len(byLevel[l]) != 1 || byLevel[l][0].Name != name {
			t.Errorf("NodesByLevel()[%d] = %v, want [%s]", l, byLevel[l], name)
		}
	}

	// 7. Out-of-range ids are not found.
	if _, err := s.Node(uint32(s.Count())); !errors.Is(err, ErrNotFound) {
		t.Errorf("Node(out of range) error = %v, want ErrNotFound", err)
	}
}

func TestStoreParentChainsBounded(t *testing.T) {
	dir := buildTestDict(t)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	// Ids are assigned depth-first, so every parent precedes its
	// children and each chain reaches the root within the eight
	// address levels. Walk with a step cap so a broken chain fails
	// instead of spinning.
	for id := address.RootID + 1; id < uint32(s.Count()); id++ {
		cur, err := s.Node(id)
		if err != nil {
			t.Fatalf("Node(%d) error = %v", id, err)
		}
		for steps := 0; cur.ParentID != address.RootID; steps++ {
			if steps >= int(address.LevelBld) {
				t.Fatalf("node %d: chain does not reach the root in %d steps", id, steps)
			}
			parent, err := s.Node(cur.ParentID)
			if err != nil {
				t.Fatalf("Node(%d) error = %v", cur.ParentID, err)
			}
			if parent.ID >= cur.ID {
				t.Fatalf("node %d: parent %d does not precede child %d", id, parent.ID, cur.ID)
			}
			cur = parent
		}
	}
}

func TestStoreCodes(t *testing.T) {
	dir := buildTestDict(t)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	block := walk(t, s, "東京都", "多摩市", "落合", "一丁目", "15番地")

	// 1. Codes are collected from annotated ancestors.
	if got, _ := s.PrefCode(block); got != "13" {
		t.Errorf("PrefCode() = %q, want 13", got)
	}
	if got, _ := s.CityCode(block); got != "13224" {
		t.Errorf("CityCode() = %q, want 13224", got)
	}
	if got, _ := s.AzaID(block); got != "0010001" {
		t.Errorf("AzaID() = %q, want 0010001", got)
	}
	if got, _ := s.AzaCode(block); got != "132240010001" {
		t.Errorf("AzaCode() = %q, want 132240010001", got)
	}
	if got, _ := s.LocalAuthorityCode(block); got != "132241" {
		t.Errorf("LocalAuthorityCode() = %q, want 132241", got)
	}

	// 2. The postcode climb stops above the city level.
	bld := walk(t, s, "東京都", "新宿区", "西新宿", "二丁目", "8番", "1号")
	if got, _ := s.Postcode(bld); got != "1600023" {
		t.Errorf("Postcode(1号) = %q, want 1600023", got)
	}
	pref := walk(t, s, "東京都")
	if got, _ := s.Postcode(pref); got != "" {
		t.Errorf("Postcode(東京都) = %q, want empty", got)
	}

	// 3. UpperNode returns the first ancestor at a target level.
	oaza, ok, err := s.UpperNode(bld, address.LevelOaza)
	if err != nil || !ok || oaza.Name != "西新宿" {
		t.Errorf("UpperNode(1号, oaza) = %v, %v, %v", oaza.Name, ok, err)
	}

	// 4. Name climbers resolve through wards as well as cities.
	if got, _ := s.PrefName(bld); got != "東京都" {
		t.Errorf("PrefName() = %q, want 東京都", got)
	}
	if got, _ := s.CityName(bld); got != "新宿区" {
		t.Errorf("CityName() = %q, want 新宿区", got)
	}
	if got, _ := s.CityName(pref); got != "" {
		t.Errorf("CityName(東京都) = %q, want empty", got)
	}
}

func TestStoreIsInside(t *testing.T) {
	dir := buildTestDict(t)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	block := walk(t, s, "東京都", "多摩市", "落合", "一丁目", "15番地")
	pref := walk(t, s, "東京都")

	tests := []struct {
		name string
		node address.Node
		area string
		want int
	}{
		{"pref code match", block, "13", 1},
		{"pref code mismatch", block, "14", 0},
		{"city code match", block, "13224", 1},
		{"city code mismatch", block, "13104", 0},
		{"name match", block, "多摩市", 1},
		{"name mismatch", block, "新宿区", 0},
		{"own name", block, "15番地", 1},
		{"pref node with city code of same pref", pref, "13104", -1},
		{"pref node with city code of other pref", pref, "14104", 0},
	}
	for _, tt := range tests {
		got, err := s.IsInside(tt.node, tt.area)
		if err != nil {
			t.Fatalf("%s: IsInside() error = %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: IsInside(%s, %q) = %d, want %d",
				tt.name, tt.node.Name, tt.area, got, tt.want)
		}
	}
}

func TestStoreTrieKeys(t *testing.T) {
	dir := buildTestDict(t)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	// 1. Every suffix of the notation path is a key: a query can
	// start at the prefecture, the city or the oaza.
	ochiai := walk(t, s, "東京都", "多摩市", "落合")
	keys := s.Trie().CommonPrefixes("東京都多摩市落合1.15.")
	if len(keys) != 3 {
		t.Fatalf("CommonPrefixes() keys = %v, want 3", keys)
	}
	ids, ok := keys["東京都多摩市落合"]
	if !ok {
		t.Fatalf("key 東京都多摩市落合 missing: %v", keys)
	}
	if len(ids) != 1 || ids[0] != ochiai.ID {
		t.Errorf("key 東京都多摩市落合 ids = %v, want [%d]", ids, ochiai.ID)
	}
	if _, ok := s.Trie().CommonPrefixes("多摩市落合")["多摩市落合"]; !ok {
		t.Error("suffix key 多摩市落合 missing")
	}

	// 2. Variant keys with optional runes removed are registered:
	// 関ケ原町 standardizes to 関ガ原町 and is also keyed as 関原町.
	sekigahara := walk(t, s, "岐阜県", "関ケ原町")
	ids, ok = s.Trie().CommonPrefixes("関原町")["関原町"]
	if !ok {
		t.Fatal("variant key 関原町 missing")
	}
	if len(ids) != 1 || ids[0] != sekigahara.ID {
		t.Errorf("variant key ids = %v, want [%d]", ids, sekigahara.ID)
	}

	// 3. Levels below oaza are not keyed.
	if got := s.Trie().CommonPrefixes("東京都多摩市落合1.丁目"); len(got) != 3 {
		t.Errorf("aza level leaked into the trie: %v", got)
	}
}

func TestStoreNotesAndAzaMaster(t *testing.T) {
	dir := buildTestDict(t)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	// 1. Nodes are reachable through their annotations.
	nodes, err := s.NodesByNote(address.NoteKeyCityCode, "13224")
	if err != nil {
		t.Fatalf("NodesByNote() error = %v", err)
	}
	if len(nodes) != 1 || nodes[0].Name != "多摩市" {
		t.Fatalf("NodesByNote(jisx0402, 13224) = %+v", nodes)
	}
	if ids := s.IDsByNote(address.NoteKeyPostcode, "2060033"); len(ids) != 1 {
		t.Errorf("IDsByNote(postcode, 2060033) = %v", ids)
	}
	if ids := s.IDsByNote(address.NoteKeyPostcode, "0000000"); len(ids) != 0 {
		t.Errorf("IDsByNote(postcode, 0000000) = %v, want none", ids)
	}

	// 2. Machiaza records resolve by 12- and 13-digit codes.
	rec, err := s.AzaRecordByCode("131040023002")
	if err != nil {
		t.Fatalf("AzaRecordByCode() error = %v", err)
	}
	if rec.AzaClass != AzaClassChome || !rec.IsJukyo || rec.StartCountType != StartCountNumbered {
		t.Errorf("record flags = %+v", rec)
	}
	if rec.NamesIndex != "東京都新宿区西新宿2.丁目" {
		t.Errorf("NamesIndex = %q", rec.NamesIndex)
	}
	rec13, err := s.AzaRecordByCode("1310400023002")
	if err != nil || rec13.Code != rec.Code {
		t.Errorf("13-digit lookup = %+v, %v", rec13, err)
	}
	if _, err := s.AzaRecordByCode("999990000000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing code error = %v, want ErrNotFound", err)
	}

	// 3. Prefix scans run in code order.
	var codes []string
	s.EachAzaPrefix("13", func(r AzaRecord) bool {
		codes = append(codes, r.Code)
		return true
	})
	if len(codes) != 2 || codes[0] != "131040023002" || codes[1] != "132240010001" {
		t.Errorf("EachAzaPrefix(13) = %v", codes)
	}
	codes = codes[:0]
	s.EachAzaPrefix("13224", func(r AzaRecord) bool {
		codes = append(codes, r.Code)
		return true
	})
	if len(codes) != 1 || codes[0] != "132240010001" {
		t.Errorf("EachAzaPrefix(13224) = %v", codes)
	}
}

func TestStoreRebuildsNoteIndex(t *testing.T) {
	dir := buildTestDict(t)
	if err := os.Remove(filepath.Join(dir, noteIndexFile)); err != nil {
		t.Fatal(err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	// 1. The rebuilt index serves lookups again.
	nodes, err := s.NodesByNote(address.NoteKeyCityCode, "13224")
	if err != nil || len(nodes) != 1 || nodes[0].Name != "多摩市" {
		t.Fatalf("NodesByNote after rebuild = %+v, %v", nodes, err)
	}

	// 2. Excluded keys stay out of it.
	if ids := s.IDsByNote(address.NoteKeyCityID, "13224A1971"); len(ids) != 0 {
		t.Errorf("geoshape_city_id leaked into the index: %v", ids)
	}

	// 3. The index file was written back for the next open.
	if _, err := os.Stat(filepath.Join(dir, noteIndexFile)); err != nil {
		t.Errorf("index file not rewritten: %v", err)
	}
}
