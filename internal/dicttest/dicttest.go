// Package dicttest builds small address dictionaries for tests.
//
// Build writes a fixed fixture spanning four prefectures:
//
//	東京都 新宿区 {. 5番 3号} {西新宿 一丁目 {1番 {1号 2号} 2番} 二丁目 8番 三丁目} 淀橋
//	東京都 多摩市 落合 一丁目 {1番 15番 2号}
//	東京都 檜原村 本宿 654番地
//	東京都 {八王子市 立川市} 本町 1番 1号
//	北海道 札幌市 中央区 北三条 西一丁目
//	京都府 京都市 中京区 上本能寺前町 488番地
//
// 淀橋 redirects to 西新宿二丁目 and 三丁目 carries no coordinates.
// The machiaza master knows 本宿 as an aza whose blocks are numbered
// through, and 落合 as one whose blocks are not.
package dicttest

import (
	"testing"

	"github.com/banchi-geo/banchi/pkg/address"
	"github.com/banchi-geo/banchi/pkg/dictionary"
)

// Build writes the fixture dictionary into a temp directory and
// returns the directory.
func Build(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	b := dictionary.NewBuilder(dir)

	add := func(note string, x, y float64, elems ...dictionary.Element) {
		t.Helper()
		if err := b.AddAddress(elems, x, y, note, 1); err != nil {
			t.Fatalf("AddAddress() error = %v", err)
		}
	}
	sub := func(path []dictionary.Element, level address.Level, name string) []dictionary.Element {
		return append(append([]dictionary.Element{}, path...),
			dictionary.Element{Level: level, Name: name})
	}

	tokyo := []dictionary.Element{{Level: address.LevelPref, Name: "東京都"}}
	add("jisx0401:13", 139.6917, 35.6896, tokyo...)

	// 新宿区: a regular ward of Tokyo with a placeholder oaza for
	// addresses written without one, and the moved-away 淀橋.
	shinjuku := sub(tokyo, address.LevelCity, "新宿区")
	add("jisx0402:13104", 139.7034, 35.6938, shinjuku...)

	noname := sub(shinjuku, address.LevelOaza, address.Noname)
	add("", 139.7000, 35.6900, noname...)
	add("", 139.7001, 35.6901, sub(noname, address.LevelBlock, "5番")...)
	add("", 139.7002, 35.6902,
		sub(sub(noname, address.LevelBlock, "5番"), address.LevelBld, "3号")...)

	nishi := sub(shinjuku, address.LevelOaza, "西新宿")
	add("", 139.6946, 35.6891, nishi...)
	chome1 := sub(nishi, address.LevelAza, "一丁目")
	add("aza_id:0023001/postcode:1600023", 139.6980, 35.6930, chome1...)
	block1 := sub(chome1, address.LevelBlock, "1番")
	add("", 139.6975, 35.6935, block1...)
	add("", 139.6973, 35.6937, sub(block1, address.LevelBld, "1号")...)
	add("", 139.6978, 35.6933, sub(block1, address.LevelBld, "2号")...)
	add("", 139.6985, 35.6925, sub(chome1, address.LevelBlock, "2番")...)
	chome2 := sub(nishi, address.LevelAza, "二丁目")
	add("aza_id:0023002/postcode:1600023", 139.6917, 35.6896, chome2...)
	add("", 139.6921, 35.6895, sub(chome2, address.LevelBlock, "8番")...)
	add("aza_id:0023003", float64(address.NoCoordinate), float64(address.NoCoordinate),
		sub(nishi, address.LevelAza, "三丁目")...)

	add("ref:新宿区西新宿二丁目", 139.6950, 35.6920,
		sub(shinjuku, address.LevelOaza, "淀橋")...)

	// 多摩市: blocks below 落合一丁目 for notations that skip the
	// chome or carry an unofficial koaza.
	tama := sub(tokyo, address.LevelCity, "多摩市")
	add("jisx0402:13224", 139.4463, 35.6368, tama...)
	ochiai := sub(tama, address.LevelOaza, "落合")
	add("aza_id:0010000", 139.4270, 35.6240, ochiai...)
	ochiai1 := sub(ochiai, address.LevelAza, "一丁目")
	add("aza_id:0010001/postcode:2060033", 139.4275, 35.6245, ochiai1...)
	add("", 139.4271, 35.6241, sub(ochiai1, address.LevelBlock, "1番")...)
	block15 := sub(ochiai1, address.LevelBlock, "15番")
	add("", 139.4280, 35.6250, block15...)
	add("", 139.4282, 35.6252, sub(block15, address.LevelBld, "2号")...)

	// 檜原村: parcels numbered directly under the oaza, former koazas
	// collapsed away.
	hinohara := sub(tokyo, address.LevelCity, "檜原村")
	add("jisx0402:13307", 139.1497, 35.7276, hinohara...)
	motoshuku := sub(hinohara, address.LevelOaza, "本宿")
	add("aza_id:0001000/postcode:1900200", 139.1488, 35.7270, motoshuku...)
	add("", 139.1490, 35.7272, sub(motoshuku, address.LevelBlock, "654番地")...)

	// 本町 exists in two cities to exercise area filtering and
	// multi-candidate answers.
	for _, c := range []struct {
		name, code string
		x, y       float64
	}{
		{"八王子市", "13201", 139.3160, 35.6664},
		{"立川市", "13202", 139.4138, 35.6942},
	} {
		cityPath := sub(tokyo, address.LevelCity, c.name)
		add("jisx0402:"+c.code, c.x, c.y, cityPath...)
		honcho := sub(cityPath, address.LevelOaza, "本町")
		add("", c.x+0.002, c.y+0.002, honcho...)
		b1 := sub(honcho, address.LevelBlock, "1番")
		add("", c.x+0.0021, c.y+0.0021, b1...)
		add("", c.x+0.0022, c.y+0.0022, sub(b1, address.LevelBld, "1号")...)
	}

	// 札幌市: compass-and-jo notations such as 北3西1.
	hokkaido := []dictionary.Element{{Level: address.LevelPref, Name: "北海道"}}
	add("jisx0401:01", 141.3469, 43.0646, hokkaido...)
	sapporo := sub(hokkaido, address.LevelCity, "札幌市")
	add("jisx0402:01100", 141.3469, 43.0646, sapporo...)
	chuo := sub(sapporo, address.LevelWard, "中央区")
	add("jisx0402:01101", 141.3541, 43.0554, chuo...)
	kita3 := sub(chuo, address.LevelOaza, "北三条")
	add("", 141.3544, 43.0616, kita3...)
	add("", 141.3530, 43.0618, sub(kita3, address.LevelAza, "西一丁目")...)

	// 京都市: street names written before the official oaza.
	kyotofu := []dictionary.Element{{Level: address.LevelPref, Name: "京都府"}}
	add("jisx0401:26", 135.7556, 35.0211, kyotofu...)
	kyoto := sub(kyotofu, address.LevelCity, "京都市")
	add("jisx0402:26100", 135.7556, 35.0211, kyoto...)
	nakagyo := sub(kyoto, address.LevelWard, "中京区")
	add("jisx0402:26104", 135.7513, 35.0116, nakagyo...)
	honnoji := sub(nakagyo, address.LevelOaza, "上本能寺前町")
	add("", 135.7671, 35.0117, honnoji...)
	add("", 135.7673, 35.0118, sub(honnoji, address.LevelBlock, "488番地")...)

	addRec := func(lgCode, azaID string, rec dictionary.AzaRecord) {
		t.Helper()
		if err := b.AddAzaRecord(lgCode, azaID, rec); err != nil {
			t.Fatalf("AddAzaRecord(%s, %s) error = %v", lgCode, azaID, err)
		}
	}
	addRec("131041", "0023001", dictionary.AzaRecord{
		Names: []dictionary.AzaName{
			{Level: address.LevelOaza, Kanji: "西新宿", Kana: "にししんじゅく", Roma: "nishishinjuku"},
			{Level: address.LevelAza, Kanji: "一丁目", Kana: "１ちょうめ", Roma: "1chome"},
		},
		AzaClass:       2,
		IsJukyo:        true,
		StartCountType: 1,
		Postcodes:      []string{"1600023"},
	})
	addRec("131041", "0023002", dictionary.AzaRecord{
		Names: []dictionary.AzaName{
			{Level: address.LevelOaza, Kanji: "西新宿", Kana: "にししんじゅく", Roma: "nishishinjuku"},
			{Level: address.LevelAza, Kanji: "二丁目", Kana: "２ちょうめ", Roma: "2chome"},
		},
		AzaClass:       2,
		IsJukyo:        true,
		StartCountType: 1,
		Postcodes:      []string{"1600023"},
	})
	addRec("132241", "0010000", dictionary.AzaRecord{
		Names: []dictionary.AzaName{
			{Level: address.LevelOaza, Kanji: "落合", Kana: "おちあい", Roma: "ochiai"},
		},
		AzaClass:       1,
		StartCountType: 2,
	})
	addRec("132241", "0010001", dictionary.AzaRecord{
		Names: []dictionary.AzaName{
			{Level: address.LevelOaza, Kanji: "落合", Kana: "おちあい", Roma: "ochiai"},
			{Level: address.LevelAza, Kanji: "一丁目", Kana: "１ちょうめ", Roma: "1chome"},
		},
		AzaClass:       2,
		IsJukyo:        true,
		StartCountType: 1,
		Postcodes:      []string{"2060033"},
	})
	addRec("133078", "0001000", dictionary.AzaRecord{
		Names: []dictionary.AzaName{
			{Level: address.LevelOaza, Kanji: "本宿", Kana: "もとしゅく", Roma: "motoshuku"},
		},
		AzaClass:       1,
		StartCountType: 1,
		Postcodes:      []string{"1900200"},
	})

	b.SetDatasets([]dictionary.Dataset{
		{ID: 1, Title: "住居表示住所", URL: "https://example.com/jukyo"},
		{ID: 2, Title: "地番住所", URL: "https://example.com/chiban"},
	})
	b.SetVersion("20240820")
	b.SetReadme("テスト用の住所辞書です。\n")
	if err := b.Finish(); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	return dir
}

// Open builds the fixture and opens it, closing the store when the
// test ends.
func Open(t *testing.T) *dictionary.Store {
	t.Helper()
	s, err := dictionary.Open(Build(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Walk descends from the root through the named elements.
func Walk(t *testing.T, s *dictionary.Store, names ...string) address.Node {
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
