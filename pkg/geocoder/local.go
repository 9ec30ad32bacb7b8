package geocoder

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/banchi-geo/banchi/pkg/address"
	"github.com/banchi-geo/banchi/pkg/dictionary"
	"github.com/banchi-geo/banchi/pkg/itaiji"
	"github.com/banchi-geo/banchi/pkg/spatial"
)

// LocalTree answers geocoding queries from a dictionary on the local
// filesystem.
type LocalTree struct {
	store   *dictionary.Store
	conv    *itaiji.Converter
	spatial *spatial.Index

	mu  sync.RWMutex
	cfg Config
}

var _ Tree = (*LocalTree)(nil)

// Open maps the dictionary under dir and returns a tree with the
// default search configuration. An empty dir is resolved through
// DBDir.
func Open(dir string) (*LocalTree, error) {
	dir, err := DBDir(dir)
	if err != nil {
		return nil, err
	}
	store, err := dictionary.Open(dir)
	if err != nil {
		return nil, err
	}
	return New(store), nil
}

// New wraps an already opened dictionary store. Closing the tree
// closes the store.
func New(store *dictionary.Store) *LocalTree {
	return &LocalTree{
		store:   store,
		conv:    itaiji.Default,
		spatial: spatial.NewIndex(store),
		cfg:     DefaultConfig(),
	}
}

func (l *LocalTree) Close() error { return l.store.Close() }

// Store exposes the underlying dictionary.
func (l *LocalTree) Store() *dictionary.Store { return l.store }

// Signature identifies the dictionary contents for client caches.
func (l *LocalTree) Signature() string { return l.store.Signature() }

// SpatialBuildDuration reports the cost of the last spatial index
// build in this process. Zero until a reverse query builds one, or
// when a saved index could be loaded instead.
func (l *LocalTree) SpatialBuildDuration() time.Duration {
	return l.spatial.BuildDuration()
}

// Config returns a copy of the current search configuration.
func (l *LocalTree) Config() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cfg := l.cfg
	cfg.TargetArea = append([]string(nil), l.cfg.TargetArea...)
	return cfg
}

// SetConfig validates cfg against the dictionary and installs it.
// Beyond JIS codes, target areas may name prefectures and cities as
// long as the dictionary knows them.
func (l *LocalTree) SetConfig(cfg Config) error {
	if err := l.validateTargetArea(cfg); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg = cfg
	l.cfg.TargetArea = append([]string(nil), cfg.TargetArea...)
	return nil
}

func (l *LocalTree) validateTargetArea(cfg Config) error {
	for _, v := range cfg.TargetArea {
		if hasDigitPrefix(v, 2) {
			continue
		}
		ok, err := l.knowsAreaName(v)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %q is not a valid value for %s", ErrConfig, v, KeyTargetArea)
		}
	}
	return nil
}

// knowsAreaName reports whether some node of the dictionary is named
// exactly v.
func (l *LocalTree) knowsAreaName(v string) (bool, error) {
	std := l.conv.Standardize(v, false)
	ids, ok := l.store.Trie().CommonPrefixes(std)[std]
	if !ok {
		return false, nil
	}
	for _, id := range ids {
		n, err := l.store.Node(id)
		if err != nil {
			return false, err
		}
		if n.Name == v {
			return true, nil
		}
	}
	return false, nil
}

// SearchNode returns the nodes matching the longest part of query,
// each with the verbatim substring of the input that produced it. The
// candidate set and its order follow the configured search options.
func (l *LocalTree) SearchNode(ctx context.Context, query string) ([]address.Result, error) {
	return l.SearchNodeWithConfig(ctx, query, l.Config())
}

// SearchNodeWithConfig runs one search under cfg without touching the
// tree configuration, so concurrent callers can search the same
// dictionary under different settings. cfg is validated first, the
// same way SetConfig validates it.
func (l *LocalTree) SearchNodeWithConfig(ctx context.Context, query string, cfg Config) ([]address.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.validateTargetArea(cfg); err != nil {
		return nil, err
	}
	s := &searcher{
		ctx:       ctx,
		tree:      l,
		cfg:       cfg,
		processed: make(map[uint32]bool),
	}
	hits, err := s.searchByTrie(query)
	if err != nil {
		return nil, err
	}

	values := hits.values()
	sort.SliceStable(values, func(i, j int) bool {
		return len(values[i].matched) > len(values[j].matched)
	})

	// The traversal works on standardized text. Map each distinct
	// matched string back to the substring of the query it covered.
	recovered := make(map[string]string)
	results := make([]address.Result, 0, len(values))
	for _, v := range values {
		key := string(v.matched)
		matched, ok := recovered[key]
		if !ok {
			matched, err = l.matchedSubstring(query, v.node, v.matched)
			if err != nil {
				return nil, err
			}
			recovered[key] = matched
		}
		results = append(results, address.Result{Node: v.node, Matched: matched})
	}

	// Longer matches first, dataset priority breaking ties.
	sort.SliceStable(results, func(i, j int) bool {
		ri := utf8.RuneCountInString(results[i].Matched)*-100 + int(results[i].Node.Priority)
		rj := utf8.RuneCountInString(results[j].Matched)*-100 + int(results[j].Node.Priority)
		return ri < rj
	})
	return results, nil
}

// matchedSubstring finds the prefix of query whose standardized form
// is matched. Standardization never reorders text, so the prefix
// length can be found by bisection from the matched length.
func (l *LocalTree) matchedSubstring(query string, node address.Node, matched []rune) (string, error) {
	q := []rune(query)
	lResult := len(matched)
	pos := lResult
	if pos > len(q) {
		pos = len(q)
	}
	start := pos
	recovered := ""

	for {
		substr := string(q[:pos])
		ls := utf8.RuneCountInString(l.conv.Standardize(substr, true))
		if ls == lResult {
			recovered = substr
			break
		}
		if ls <= lResult {
			pos++
		} else {
			pos--
		}
		if pos < 0 || pos > len(q) {
			break
		}
		if pos == start {
			return "", fmt.Errorf("cannot recover the matched part %q from %q", string(matched), query)
		}
	}

	if pos < len(q) && node.Name != "" {
		nameRunes := []rune(node.Name)
		last := nameRunes[len(nameRunes)-1]
		switch {
		case q[pos] == last &&
			utf8.RuneCountInString(l.conv.Standardize(string(q[:pos+1]), false)) == lResult:
			// The final rune of the name was absorbed by
			// standardization. 関ケ原 for 関ケ原町 ends this way.
			recovered = string(q[:pos+1])
		case len(q) >= 2 && (string(q[len(q)-2:]) == "通り" || string(q[len(q)-2:]) == "通リ"):
			recovered = string(q[:pos+1])
		}
	}
	return recovered, nil
}

// Reverse returns up to three addresses enclosing or nearest to the
// point (x, y), in longitude and latitude degrees, with geodesic
// distances in meters. Candidates are reported at the given level; a
// zero level means the aza level, and any other value outside the
// defined range is rejected with ErrConfig before the index is read.
func (l *LocalTree) Reverse(ctx context.Context, x, y float64, level address.Level) ([]address.ReverseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if level == 0 {
		level = address.LevelAza
	}
	if !level.Valid() {
		return nil, fmt.Errorf("%w: level %d is not a defined address level", ErrConfig, level)
	}
	cands, err := l.spatial.Nearest(x, y, level)
	if err != nil {
		return nil, err
	}
	out := make([]address.ReverseResult, 0, len(cands))
	for _, c := range cands {
		out = append(out, address.ReverseResult{Candidate: c.Node, Dist: c.Dist})
	}
	return out, nil
}

// Node reads one dictionary record by id.
func (l *LocalTree) Node(ctx context.Context, id uint32) (address.Node, error) {
	return l.store.Node(id)
}

// CountRecords returns the number of records in the dictionary.
func (l *LocalTree) CountRecords(ctx context.Context) (uint64, error) {
	return l.store.Count(), nil
}

// Datasets returns the catalog of source datasets.
func (l *LocalTree) Datasets(ctx context.Context) ([]dictionary.Dataset, error) {
	return l.store.Datasets(), nil
}

// AzaRecordByCode returns the machiaza master record for a code.
func (l *LocalTree) AzaRecordByCode(ctx context.Context, code string) (dictionary.AzaRecord, error) {
	return l.store.AzaRecordByCode(code)
}

// DictionaryVersion returns the version of the installed dictionary.
func (l *LocalTree) DictionaryVersion(ctx context.Context) (string, error) {
	return l.store.Version(), nil
}

// DictionaryReadme returns the README distributed with the
// dictionary.
func (l *LocalTree) DictionaryReadme(ctx context.Context) (string, error) {
	if r := l.store.Readme(); r != "" {
		return r, nil
	}
	return "(no README information)", nil
}
