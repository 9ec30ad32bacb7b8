// Package trie implements the prefix index that maps standardized
// address notations to dictionary node IDs. Searches walk the index
// with the head of the query and receive every registered notation
// that prefixes it, longest match included, in a single pass.
package trie

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// node is a radix tree node. An edge holds the byte string shared by
// everything below it; splitting happens lazily on insert. Fields are
// exported for gob.
type node struct {
	Prefix   string
	Children []*node
	HasValue bool
	IDs      []uint32
}

// Trie maps registered keys to lists of dictionary node IDs.
type Trie struct {
	root *node
	keys int
}

// New returns an empty trie.
func New() *Trie {
	return &Trie{root: &node{}}
}

// Len returns the number of distinct registered keys.
func (t *Trie) Len() int {
	return t.keys
}

// Insert registers a key for the given node ID. Inserting the same
// pair twice is a no-op; one key can map to several IDs.
func (t *Trie) Insert(key string, id uint32) {
	if key == "" {
		return
	}
	cur := t.root
	rest := key
	for {
		var next *node
		for _, c := range cur.Children {
			if c.Prefix[0] == rest[0] {
				next = c
				break
			}
		}
		if next == nil {
			cur.Children = append(cur.Children, &node{
				Prefix:   rest,
				HasValue: true,
				IDs:      []uint32{id},
			})
			t.keys++
			return
		}

		lcp := longestCommonPrefix(next.Prefix, rest)
		if lcp == len(next.Prefix) {
			rest = rest[lcp:]
			if rest == "" {
				if !next.HasValue {
					next.HasValue = true
					t.keys++
				}
				next.IDs = appendID(next.IDs, id)
				return
			}
			cur = next
			continue
		}

		// Split the edge at the divergence point.
		child := &node{
			Prefix:   next.Prefix[lcp:],
			Children: next.Children,
			HasValue: next.HasValue,
			IDs:      next.IDs,
		}
		next.Prefix = next.Prefix[:lcp]
		next.Children = []*node{child}
		next.HasValue = false
		next.IDs = nil

		rest = rest[lcp:]
		if rest == "" {
			next.HasValue = true
			next.IDs = []uint32{id}
		} else {
			next.Children = append(next.Children, &node{
				Prefix:   rest,
				HasValue: true,
				IDs:      []uint32{id},
			})
		}
		t.keys++
		return
	}
}

// CommonPrefixes returns every registered key that is a prefix of the
// query, the query itself included, mapped to its node IDs. The ID
// slices are shared with the trie and must not be modified.
func (t *Trie) CommonPrefixes(query string) map[string][]uint32 {
	out := make(map[string][]uint32)
	cur := t.root
	depth := 0
	for {
		if cur.HasValue {
			out[query[:depth]] = cur.IDs
		}
		if depth >= len(query) {
			break
		}
		var next *node
		for _, c := range cur.Children {
			if c.Prefix[0] == query[depth] {
				next = c
				break
			}
		}
		if next == nil || !strings.HasPrefix(query[depth:], next.Prefix) {
			break
		}
		depth += len(next.Prefix)
		cur = next
	}
	return out
}

// Predict returns every registered key that extends the query, the
// query itself included, mapped to its node IDs. The ID slices are
// shared with the trie and must not be modified.
func (t *Trie) Predict(query string) map[string][]uint32 {
	out := make(map[string][]uint32)
	cur := t.root
	acc := ""
	rest := query
	for rest != "" {
		var next *node
		for _, c := range cur.Children {
			if c.Prefix[0] == rest[0] {
				next = c
				break
			}
		}
		if next == nil {
			return out
		}
		if len(next.Prefix) < len(rest) {
			if next.Prefix != rest[:len(next.Prefix)] {
				return out
			}
			rest = rest[len(next.Prefix):]
		} else {
			// The query may end inside this edge.
			if !strings.HasPrefix(next.Prefix, rest) {
				return out
			}
			rest = ""
		}
		acc += next.Prefix
		cur = next
	}
	cur.collect(acc, out)
	return out
}

func (n *node) collect(key string, out map[string][]uint32) {
	if n.HasValue {
		out[key] = n.IDs
	}
	for _, c := range n.Children {
		c.collect(key+c.Prefix, out)
	}
}

func longestCommonPrefix(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func appendID(ids []uint32, id uint32) []uint32 {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}

// --- PERSISTENCE ---

const fileVersion = 1

// savedTrie is the gob envelope written to disk.
type savedTrie struct {
	Version uint32
	Keys    int
	Root    *node
}

// Save writes the trie to path atomically: the data goes to a
// temporary file in the same directory which is renamed over the
// target once fully written.
func (t *Trie) Save(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := gob.NewEncoder(tmp)
	if err := enc.Encode(savedTrie{Version: fileVersion, Keys: t.keys, Root: t.root}); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode trie: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads a trie written by Save.
func Load(path string) (*Trie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var saved savedTrie
	if err := gob.NewDecoder(f).Decode(&saved); err != nil {
		return nil, fmt.Errorf("failed to decode trie %s: %w", path, err)
	}
	if saved.Version != fileVersion {
		return nil, fmt.Errorf("trie %s has unsupported version %d", path, saved.Version)
	}
	if saved.Root == nil {
		saved.Root = &node{}
	}
	return &Trie{root: saved.Root, keys: saved.Keys}, nil
}
