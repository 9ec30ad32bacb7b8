package dictionary

import (
	"encoding/gob"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/btree"

	"github.com/banchi-geo/banchi/pkg/address"
	"github.com/banchi-geo/banchi/pkg/itaiji"
)

// Machiaza class codes from the address-base registry (町字区分).
const (
	AzaClassOaza  uint8 = 1 // 大字・町
	AzaClassChome uint8 = 2 // 丁目
	AzaClassKoaza uint8 = 3 // 小字
	AzaClassNone  uint8 = 4
	AzaClassRoad  uint8 = 5 // 道路方式の道路名
)

// Lot numbering flags from the registry (起番フラグ).
const (
	StartCountUnknown    uint8 = 0 // not in the registry
	StartCountNumbered   uint8 = 1 // 起番
	StartCountUnnumbered uint8 = 2 // 非起番
)

// AzaName is one notation element of a machiaza master record.
type AzaName struct {
	Level address.Level
	Kanji string
	Kana  string
	Roma  string
	Code  string // code prefix identifying the element
}

// AzaRecord is the master record of one machiaza from the address-base
// registry. Records are keyed by the 12-digit machiaza code: the first
// five digits of the local-government code plus the 7-digit aza id.
type AzaRecord struct {
	Code           string
	Names          []AzaName
	NamesIndex     string // standardized retrieval key
	AzaClass       uint8
	IsJukyo        bool // 住居表示実施
	StartCountType uint8
	Postcodes      []string
}

// StandardizeAzaName builds the retrieval key of a machiaza record
// from its notation elements. Each element name is standardized,
// stripped of aza prefixes, and cleared of the connecting runes that
// written addresses drop freely, except in head or tail position where
// they are part of the name proper.
func StandardizeAzaName(names []AzaName) string {
	var b strings.Builder
	for _, element := range names {
		name := []rune(itaiji.Default.Standardize(element.Kanji, false))
		name = name[itaiji.Default.CheckOptionalPrefixes(name):]

		var head, body, tail []rune
		if len(name) > 1 {
			head, body, tail = name[0:1], name[1:len(name)-1], name[len(name)-1:]
		} else {
			head = name
		}

		b.WriteString(string(head))
		for i := 0; i < len(body); i++ {
			r := body[i]
			if strings.ContainsRune("ケヶガツッノ字", r) {
				continue
			}
			if (r == '大' || r == '小') && i+1 < len(body) && body[i+1] == '字' {
				i++
				continue
			}
			b.WriteRune(r)
		}
		b.WriteString(string(tail))
	}
	return b.String()
}

// azaMaster holds the machiaza records ordered by code.
type azaMaster struct {
	m btree.Map[string, AzaRecord]
}

func (am *azaMaster) get(code string) (AzaRecord, bool) {
	return am.m.Get(code)
}

func (am *azaMaster) scanPrefix(prefix string, fn func(AzaRecord) bool) {
	am.m.Ascend(prefix, func(code string, rec AzaRecord) bool {
		if !strings.HasPrefix(code, prefix) {
			return false
		}
		return fn(rec)
	})
}

func (am *azaMaster) put(rec AzaRecord) {
	am.m.Set(rec.Code, rec)
}

func (am *azaMaster) len() int {
	return am.m.Len()
}

// --- PERSISTENCE ---

const azaMasterFileVersion = 1

type savedAzaMaster struct {
	Version uint32
	Records []AzaRecord
}

func (am *azaMaster) save(path string) error {
	saved := savedAzaMaster{
		Version: azaMasterFileVersion,
		Records: make([]AzaRecord, 0, am.m.Len()),
	}
	am.m.Scan(func(code string, rec AzaRecord) bool {
		saved.Records = append(saved.Records, rec)
		return true
	})
	return writeGob(path, &saved)
}

func loadAzaMaster(path string) (*azaMaster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var saved savedAzaMaster
	if err := gob.NewDecoder(f).Decode(&saved); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if saved.Version != azaMasterFileVersion {
		return nil, fmt.Errorf("unsupported machiaza master version %d", saved.Version)
	}

	am := &azaMaster{}
	for _, rec := range saved.Records {
		// Records were saved in ascending code order.
		am.m.Load(rec.Code, rec)
	}
	return am, nil
}
