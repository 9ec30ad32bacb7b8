package dictionary

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/btree"
)

// noteIndex maps key:value annotations to the ids of the nodes that
// carry them, so code lookups (jisx0402, postcode, aza_id) run without
// scanning the node table.
type noteIndex struct {
	m btree.Map[string, []uint32]
}

// noteKey joins key and value with a separator that cannot appear in
// either.
func noteKey(key, value string) string {
	return key + "\x00" + value
}

func (ni *noteIndex) get(key, value string) []uint32 {
	ids, _ := ni.m.Get(noteKey(key, value))
	return ids
}

func (ni *noteIndex) add(key, value string, id uint32) {
	k := noteKey(key, value)
	ids, _ := ni.m.Get(k)
	if n := len(ids); n > 0 && ids[n-1] == id {
		return
	}
	ni.m.Set(k, append(ids, id))
}

func (ni *noteIndex) len() int {
	return ni.m.Len()
}

// --- PERSISTENCE ---

const noteIndexFileVersion = 1

type notePair struct {
	Key string
	IDs []uint32
}

type savedNoteIndex struct {
	Version uint32
	Pairs   []notePair
}

func (ni *noteIndex) save(path string) error {
	saved := savedNoteIndex{
		Version: noteIndexFileVersion,
		Pairs:   make([]notePair, 0, ni.m.Len()),
	}
	ni.m.Scan(func(key string, ids []uint32) bool {
		saved.Pairs = append(saved.Pairs, notePair{Key: key, IDs: ids})
		return true
	})
	return writeGob(path, &saved)
}

func loadNoteIndex(path string) (*noteIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var saved savedNoteIndex
	if err := gob.NewDecoder(f).Decode(&saved); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if saved.Version != noteIndexFileVersion {
		return nil, fmt.Errorf("unsupported annotation index version %d", saved.Version)
	}

	ni := &noteIndex{}
	for _, pair := range saved.Pairs {
		// Pairs were saved in ascending key order.
		ni.m.Load(pair.Key, pair.IDs)
	}
	return ni, nil
}

// writeGob encodes v to path atomically via a temporary file renamed
// over the target once fully written.
func writeGob(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
