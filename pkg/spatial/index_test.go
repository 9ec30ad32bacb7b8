package spatial

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/banchi-geo/banchi/pkg/address"
	"github.com/banchi-geo/banchi/pkg/dictionary"
)

// buildReverseDict writes a one-ward dictionary into a temp directory:
//
//	東京都 新宿区 西新宿 一丁目 1番 {1号 2号}
//	東京都 新宿区 西新宿 一丁目 2番
//	東京都 新宿区 西新宿 二丁目 8番 1号
//
// 1番 has two numbered buildings and becomes a rectangle, 2番 is a
// plain point and 8番 collapses to a degenerate rectangle around its
// single building.
func buildReverseDict(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	b := dictionary.NewBuilder(dir)
	add := func(note string, x, y float64, elems ...dictionary.Element) {
		t.Helper()
		if err := b.AddAddress(elems, x, y, note, 1); err != nil {
			t.Fatalf("AddAddress() error = %v", err)
		}
	}

	add("jisx0401:13", 139.6917, 35.6896,
		dictionary.Element{Level: address.LevelPref, Name: "東京都"})
	add("jisx0402:13104", 139.7034, 35.6938,
		dictionary.Element{Level: address.LevelPref, Name: "東京都"},
		dictionary.Element{Level: address.LevelCity, Name: "新宿区"})
	add("", 139.6946, 35.6891,
		dictionary.Element{Level: address.LevelPref, Name: "東京都"},
		dictionary.Element{Level: address.LevelCity, Name: "新宿区"},
		dictionary.Element{Level: address.LevelOaza, Name: "西新宿"})
	add("aza_id:0023001", 139.6980, 35.6930,
		dictionary.Element{Level: address.LevelPref, Name: "東京都"},
		dictionary.Element{Level: address.LevelCity, Name: "新宿区"},
		dictionary.Element{Level: address.LevelOaza, Name: "西新宿"},
		dictionary.Element{Level: address.LevelAza, Name: "一丁目"})
	add("", 139.6975, 35.6935,
		dictionary.Element{Level: address.LevelPref, Name: "東京都"},
		dictionary.Element{Level: address.LevelCity, Name: "新宿区"},
		dictionary.Element{Level: address.LevelOaza, Name: "西新宿"},
		dictionary.Element{Level: address.LevelAza, Name: "一丁目"},
		dictionary.Element{Level: address.LevelBlock, Name: "1番"})
	add("", 139.6973, 35.6937,
		dictionary.Element{Level: address.LevelPref, Name: "東京都"},
		dictionary.Element{Level: address.LevelCity, Name: "新宿区"},
		dictionary.Element{Level: address.LevelOaza, Name: "西新宿"},
		dictionary.Element{Level: address.LevelAza, Name: "一丁目"},
		dictionary.Element{Level: address.LevelBlock, Name: "1番"},
		dictionary.Element{Level: address.LevelBld, Name: "1号"})
	add("", 139.6978, 35.6933,
		dictionary.Element{Level: address.LevelPref, Name: "東京都"},
		dictionary.Element{Level: address.LevelCity, Name: "新宿区"},
		dictionary.Element{Level: address.LevelOaza, Name: "西新宿"},
		dictionary.Element{Level: address.LevelAza, Name: "一丁目"},
		dictionary.Element{Level: address.LevelBlock, Name: "1番"},
		dictionary.Element{Level: address.LevelBld, Name: "2号"})
	add("", 139.6985, 35.6925,
		dictionary.Element{Level: address.LevelPref, Name: "東京都"},
		dictionary.Element{Level: address.LevelCity, Name: "新宿区"},
		dictionary.Element{Level: address.LevelOaza, Name: "西新宿"},
		dictionary.Element{Level: address.LevelAza, Name: "一丁目"},
		dictionary.Element{Level: address.LevelBlock, Name: "2番"})
	add("aza_id:0023002", 139.6917, 35.6896,
		dictionary.Element{Level: address.LevelPref, Name: "東京都"},
		dictionary.Element{Level: address.LevelCity, Name: "新宿区"},
		dictionary.Element{Level: address.LevelOaza, Name: "西新宿"},
		dictionary.Element{Level: address.LevelAza, Name: "二丁目"})
	add("", 139.6921, 35.6895,
		dictionary.Element{Level: address.LevelPref, Name: "東京都"},
		dictionary.Element{Level: address.LevelCity, Name: "新宿区"},
		dictionary.Element{Level: address.LevelOaza, Name: "西新宿"},
		dictionary.Element{Level: address.LevelAza, Name: "二丁目"},
		dictionary.Element{Level: address.LevelBlock, Name: "8番"})
	add("", 139.6917, 35.6896,
		dictionary.Element{Level: address.LevelPref, Name: "東京都"},
		dictionary.Element{Level: address.LevelCity, Name: "新宿区"},
		dictionary.Element{Level: address.LevelOaza, Name: "西新宿"},
		dictionary.Element{Level: address.LevelAza, Name: "二丁目"},
		dictionary.Element{Level: address.LevelBlock, Name: "8番"},
		dictionary.Element{Level: address.LevelBld, Name: "1号"})

	b.SetVersion("20240820")
	if err := b.Finish(); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	return dir
}

// buildDuplicatePointsDict writes a two-city dictionary where several
// leaves share one coordinate pair:
//
//	東京都 新宿区 西新宿 一丁目 {1番 {1号 2号} 2番 3番 4番}
//	東京都 多摩市 落合 一丁目 15番地
//
// 2番, 3番 and 15番地 all sit on the same point; 4番 carries no
// coordinates at all.
func buildDuplicatePointsDict(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	b := dictionary.NewBuilder(dir)
	add := func(x, y float64, elems ...dictionary.Element) {
		t.Helper()
		if err := b.AddAddress(elems, x, y, "", 1); err != nil {
			t.Fatalf("AddAddress() error = %v", err)
		}
	}
	shinjuku := []dictionary.Element{
		{Level: address.LevelPref, Name: "東京都"},
		{Level: address.LevelCity, Name: "新宿区"},
		{Level: address.LevelOaza, Name: "西新宿"},
		{Level: address.LevelAza, Name: "一丁目"},
	}
	tama := []dictionary.Element{
		{Level: address.LevelPref, Name: "東京都"},
		{Level: address.LevelCity, Name: "多摩市"},
		{Level: address.LevelOaza, Name: "落合"},
		{Level: address.LevelAza, Name: "一丁目"},
	}
	block := func(path []dictionary.Element, name string) []dictionary.Element {
		return append(append([]dictionary.Element{}, path...),
			dictionary.Element{Level: address.LevelBlock, Name: name})
	}
	bld := func(path []dictionary.Element, name string) []dictionary.Element {
		return append(append([]dictionary.Element{}, path...),
			dictionary.Element{Level: address.LevelBld, Name: name})
	}

	ichiban := block(shinjuku, "1番")
	add(139.6975, 35.6935, ichiban...)
	add(139.6973, 35.6937, bld(ichiban, "1号")...)
	add(139.6978, 35.6933, bld(ichiban, "2号")...)
	add(139.6985, 35.6925, block(shinjuku, "2番")...)
	add(139.6985, 35.6925, block(shinjuku, "3番")...)
	add(float64(address.NoCoordinate), float64(address.NoCoordinate), block(shinjuku, "4番")...)
	add(139.6985, 35.6925, block(tama, "15番地")...)

	b.SetVersion("20240820")
	if err := b.Finish(); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	return dir
}

func openStore(t *testing.T, dir string) *dictionary.Store {
	t.Helper()
	s, err := dictionary.Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// walk descends from the root through the named elements.
func walk(t *testing.T, s *dictionary.Store, names ...string) address.Node {
	t.Helper()
	n, err := s.Root()
	if err != nil {
		t.Fatalf("Root() error = %v", err)
	}
	for _, name := range names {
		var found address.Node
		ok := false
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
		n = found
	}
	return n
}

func TestIndexBuildEntries(t *testing.T) {
	dir := buildDuplicatePointsDict(t)
	s := openStore(t, dir)
	ix := NewIndex(s)

	ents, err := ix.buildEntries()
	if err != nil {
		t.Fatalf("buildEntries() error = %v", err)
	}

	// 1. One point per distinct coordinate pair within a city, one
	// rectangle per block with children. 3番 duplicates 2番 and 4番
	// has no coordinates, so neither is indexed.
	if len(ents) != 3 {
		t.Fatalf("buildEntries() returned %d entries, want 3", len(ents))
	}

	fifteen := walk(t, s, "東京都", "多摩市", "落合", "一丁目", "15番地")
	ichiban := walk(t, s, "東京都", "新宿区", "西新宿", "一丁目", "1番")
	niban := walk(t, s, "東京都", "新宿区", "西新宿", "一丁目", "2番")

	if ents[0].ID != fifteen.ID || !ents[0].IsPoint() {
		t.Errorf("entry 0 = %+v, want a point for 15番地 (id %d)", ents[0], fifteen.ID)
	}
	if ents[1].ID != ichiban.ID || ents[1].IsPoint() {
		t.Errorf("entry 1 = %+v, want a rectangle for 1番 (id %d)", ents[1], ichiban.ID)
	}

	// 2. 2番 shares its point with 15番地 but sits in another city,
	// so it is indexed anyway.
	if ents[2].ID != niban.ID || !ents[2].IsPoint() {
		t.Errorf("entry 2 = %+v, want a point for 2番 (id %d)", ents[2], niban.ID)
	}

	// 3. The rectangle spans both numbered buildings of 1番.
	rect := ents[1]
	for _, c := range []struct {
		name      string
		got, want float64
	}{
		{"MinX", rect.MinX, 139.6973},
		{"MinY", rect.MinY, 35.6933},
		{"MaxX", rect.MaxX, 139.6978},
		{"MaxY", rect.MaxY, 35.6937},
	} {
		if math.Abs(c.got-c.want) > 1e-4 {
			t.Errorf("rect %s = %f, want %f", c.name, c.got, c.want)
		}
	}
}

func TestIndexNearestAtKnownPoint(t *testing.T) {
	dir := buildReverseDict(t)
	s := openStore(t, dir)
	ix := NewIndex(s)

	// Querying at the stored coordinates of 1号 must return it first
	// at distance zero, with its block rectangle expanded into the
	// numbered buildings.
	target := walk(t, s, "東京都", "新宿区", "西新宿", "一丁目", "1番", "1号")
	res, err := ix.Nearest(float64(target.X), float64(target.Y), address.LevelBld)
	if err != nil {
		t.Fatalf("Nearest() error = %v", err)
	}
	if len(res) != 3 {
		t.Fatalf("Nearest() returned %d candidates, want 3", len(res))
	}
	if res[0].Node.ID != target.ID || res[0].Dist >= 1e-2 {
		t.Errorf("first candidate = %s at %.3fm, want 1号 at 0m", res[0].Node.Name, res[0].Dist)
	}
	if res[1].Node.Name != "2号" || res[1].Dist < 40 || res[1].Dist > 90 {
		t.Errorf("second candidate = %s at %.1fm, want 2号 around 63m", res[1].Node.Name, res[1].Dist)
	}
	if res[2].Node.Name != "2番" || res[2].Dist < 140 || res[2].Dist > 210 {
		t.Errorf("third candidate = %s at %.1fm, want 2番 around 172m", res[2].Node.Name, res[2].Dist)
	}
}

func TestIndexNearestClimbsAndDedupes(t *testing.T) {
	dir := buildReverseDict(t)
	s := openStore(t, dir)
	ix := NewIndex(s)

	target := walk(t, s, "東京都", "新宿区", "西新宿", "一丁目", "1番", "1号")

	// 1. All three nearest candidates sit under 一丁目, so at the aza
	// level they collapse into a single result.
	res, err := ix.Nearest(float64(target.X), float64(target.Y), address.LevelAza)
	if err != nil {
		t.Fatalf("Nearest() error = %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("Nearest() at aza level returned %d candidates, want 1", len(res))
	}
	if res[0].Node.Name != "一丁目" || res[0].Dist >= 1e-2 {
		t.Errorf("aza candidate = %s at %.3fm, want 一丁目 at 0m", res[0].Node.Name, res[0].Dist)
	}

	// 2. One more level up everything belongs to 西新宿.
	res, err = ix.Nearest(float64(target.X), float64(target.Y), address.LevelOaza)
	if err != nil {
		t.Fatalf("Nearest() error = %v", err)
	}
	if len(res) != 1 || res[0].Node.Name != "西新宿" {
		t.Fatalf("oaza candidates = %+v, want just 西新宿", res)
	}
}

func TestIndexNearestOutsideHull(t *testing.T) {
	dir := buildReverseDict(t)
	s := openStore(t, dir)
	ix := NewIndex(s)

	// 8番 wraps its single building in a degenerate rectangle, so the
	// block node itself is the candidate. The query point lies west
	// of every candidate; no triangle surrounds it and only the two
	// nearest are returned.
	res, err := ix.Nearest(139.6917, 35.6896, address.LevelBld)
	if err != nil {
		t.Fatalf("Nearest() error = %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("Nearest() returned %d candidates, want 2", len(res))
	}
	if res[0].Node.Name != "8番" || res[0].Dist < 30 || res[0].Dist > 45 {
		t.Errorf("first candidate = %s at %.1fm, want 8番 around 38m", res[0].Node.Name, res[0].Dist)
	}
	if res[1].Node.Name != "1号" || res[1].Node.Level != address.LevelBld {
		t.Errorf("second candidate = %s (level %d), want 1号 under 1番", res[1].Node.Name, res[1].Node.Level)
	}
}

func TestIndexPersistence(t *testing.T) {
	dir := buildReverseDict(t)
	s := openStore(t, dir)

	// 1. The first build persists the index next to the dictionary.
	ix := NewIndex(s)
	if err := ix.Ensure(); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	path := filepath.Join(dir, indexFile)
	ents, err := loadEntries(path, s.Signature())
	if err != nil {
		t.Fatalf("loadEntries() error = %v", err)
	}
	if len(ents) != 3 {
		t.Errorf("persisted entries = %d, want 3", len(ents))
	}

	// 2. A corrupt file is discarded, rebuilt and rewritten.
	if err := os.WriteFile(path, []byte("not a gob stream"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	ix = NewIndex(s)
	if err := ix.Ensure(); err != nil {
		t.Fatalf("Ensure() after corruption error = %v", err)
	}
	if _, err := loadEntries(path, s.Signature()); err != nil {
		t.Errorf("index was not rewritten after corruption: %v", err)
	}

	// 3. An index built for another dictionary is rebuilt as well.
	if err := saveEntries(path, "stale:0", nil); err != nil {
		t.Fatalf("saveEntries() error = %v", err)
	}
	ix = NewIndex(s)
	res, err := ix.Nearest(139.6917, 35.6896, address.LevelBlock)
	if err != nil {
		t.Fatalf("Nearest() after signature change error = %v", err)
	}
	if len(res) == 0 {
		t.Fatal("Nearest() returned no candidates after rebuild")
	}
	if ents, err := loadEntries(path, s.Signature()); err != nil || len(ents) != 3 {
		t.Errorf("rebuilt index not persisted: %d entries, err = %v", len(ents), err)
	}
}
