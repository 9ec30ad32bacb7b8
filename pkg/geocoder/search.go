package geocoder

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/banchi-geo/banchi/pkg/address"
	"github.com/banchi-geo/banchi/pkg/dictionary"
	"github.com/banchi-geo/banchi/pkg/itaiji"
)

// searcher carries the state of one forward search. The configuration
// is a private copy: the traversal toggles aza skipping and redirect
// following on and off while it descends, which must never leak into
// the tree or into concurrent searches.
type searcher struct {
	ctx       context.Context
	tree      *LocalTree
	cfg       Config
	processed map[uint32]bool
}

// result is one match produced by the recursive descent: the terminal
// node, the standardized substring it consumed with numbers kept, and
// the fully standardized length that consumption amounts to. A result
// with an empty matched string marks a node whose subtree was visited
// without consuming anything.
type result struct {
	node    address.Node
	matched []rune
	nchars  int
}

// trieHits accumulates search results keyed by node id in insertion
// order, mirroring the ordered map the candidate selection depends on.
type trieHits struct {
	order []uint32
	byID  map[uint32]result
}

func newTrieHits() *trieHits {
	return &trieHits{byID: make(map[uint32]result)}
}

func (h *trieHits) add(id uint32, r result) {
	if _, ok := h.byID[id]; !ok {
		h.order = append(h.order, id)
	}
	h.byID[id] = r
}

func (h *trieHits) has(id uint32) bool {
	_, ok := h.byID[id]
	return ok
}

func (h *trieHits) reset() {
	h.order = h.order[:0]
	clear(h.byID)
}

func (h *trieHits) values() []result {
	out := make([]result, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.byID[id])
	}
	return out
}

// searchByTrie resolves a query to candidate nodes. Keys of the
// notation trie that prefix the standardized query give the nodes to
// start from; from each, the descent consumes the remaining query.
// Under BestOnly only the candidates with the longest standardized
// match survive, with ties broken toward the shortest kept-numbers
// spelling.
func (s *searcher) searchByTrie(query string) (*trieHits, error) {
	conv := s.tree.conv
	index := []rune(conv.Standardize(query, true))
	indexForTrie := conv.Standardize(query, false)
	prefixes := s.tree.store.Trie().CommonPrefixes(indexForTrie)

	keys := make([]string, 0, len(prefixes))
	for k := range prefixes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return utf8.RuneCountInString(keys[i]) > utf8.RuneCountInString(keys[j])
	})
	slog.Debug("trie prefixes", "query", query, "keys", keys)

	results := newTrieHits()
	maxLen := 0
	minPart := -1
	minKey := ""
	resolved := make(map[uint32]bool)

	for _, k := range keys {
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}
		if utf8.RuneCountInString(k) < utf8.RuneCountInString(minKey) {
			continue
		}
		offset := conv.MatchLen(index, []rune(k))
		key := index[:offset]
		rest := index[offset:]

		for _, nodeID := range prefixes[k] {
			node, err := s.tree.store.Node(nodeID)
			if err != nil {
				return nil, err
			}
			if !node.HasValidCoordinates() && s.cfg.RequireCoordinates {
				node = s.dummyCoordinates(node)
			}
			// Once a node at ward level or above is found, keys that
			// spell less than it cannot win.
			if minKey == "" && node.Level <= address.LevelWard {
				minKey = k
			}
			if s.processed[nodeID] {
				continue
			}
			if len(s.cfg.TargetArea) > 0 {
				inside := 0
				for _, area := range s.cfg.TargetArea {
					inside, err = s.tree.store.IsInside(node, area)
					if err != nil {
						return nil, err
					}
					if inside == 1 || inside == -1 {
						break
					}
				}
				if inside == 0 {
					continue
				}
			}

			resultsByNode, err := s.searchRecursive(node, rest)
			if err != nil {
				return nil, err
			}
			s.processed[nodeID] = true

			if len(resultsByNode[0].matched) == 0 &&
				node.Level == address.LevelCity &&
				!startsWithNoname(rest) {
				appended, err := s.searchNonameOaza(node, key, rest, results)
				if err != nil {
					return nil, err
				}
				resultsByNode = append(resultsByNode, appended...)
			}

			for _, cand := range resultsByNode {
				cnode := cand.node
				if len(s.cfg.TargetArea) > 0 {
					inside := 0
					for _, area := range s.cfg.TargetArea {
						inside, err = s.tree.store.IsInside(cnode, area)
						if err != nil {
							return nil, err
						}
						if inside == 1 {
							break
						}
					}
					if inside != 1 {
						continue
					}
				}
				if s.cfg.RequireCoordinates && !cnode.HasValidCoordinates() {
					continue
				}

				matchedLen := offset + cand.nchars
				matchedPart := offset + len(cand.matched)
				if s.cfg.BestOnly {
					if matchedLen > maxLen {
						results.reset()
						results.add(cnode.ID, result{node: cnode, matched: joinRunes(key, cand.matched)})
						maxLen = matchedLen
						minPart = matchedPart
					} else if matchedLen == maxLen && !results.has(cnode.ID) &&
						(minPart < 0 || matchedPart <= minPart) {
						results.add(cnode.ID, result{node: cnode, matched: joinRunes(key, cand.matched)})
						minPart = matchedPart
					}
					continue
				}

				// Keep every candidate, but suppress the ancestors of
				// nodes already collected.
				if resolved[cnode.ID] {
					continue
				}
				cur := cnode
				for {
					parent, ok, err := s.tree.store.Parent(cur)
					if err != nil {
						return nil, err
					}
					if !ok {
						break
					}
					resolved[parent.ID] = true
					cur = parent
				}
				results.add(cnode.ID, result{node: cnode, matched: joinRunes(key, cand.matched)})
				if matchedLen > maxLen {
					maxLen = matchedLen
				}
				if minPart < 0 || matchedPart < minPart {
					minPart = matchedPart
				}
			}
		}
	}
	return results, nil
}

// searchNonameOaza retries a city that consumed nothing through its
// placeholder oaza child, so that notations jumping straight from the
// city to a block keep resolving. Skipping aza names is suppressed
// while other candidates already extend past the city name.
func (s *searcher) searchNonameOaza(city address.Node, key, rest []rune, collected *trieHits) ([]result, error) {
	savedSkip := s.cfg.AzaSkip
	for _, id := range collected.order {
		prev := collected.byID[id]
		if runesHavePrefix(prev.matched, key) && len(prev.matched) > len(key) {
			s.cfg.AzaSkip = AzaSkipOff
			break
		}
	}
	defer func() { s.cfg.AzaSkip = savedSkip }()

	childID := city.ID + 1
	if uint64(childID) >= s.tree.store.Count() {
		return nil, nil
	}
	child, err := s.tree.store.Node(childID)
	if err != nil {
		return nil, err
	}
	if child.Name != address.Noname || s.processed[childID] {
		return nil, nil
	}
	s.processed[childID] = true

	sub, err := s.searchRecursive(child, rest)
	if err != nil {
		return nil, err
	}
	var out []result
	for _, r := range sub {
		if len(r.matched) > 0 {
			out = append(out, r)
		}
	}
	return out, nil
}

// searchRecursive consumes index starting below node n and returns
// the matches found in its subtree. The returned slice is never empty:
// a node that consumed nothing still reports itself with an empty
// matched string.
func (s *searcher) searchRecursive(n address.Node, index []rune) ([]result, error) {
	conv := s.tree.conv
	lop := conv.CheckOptionalPrefixes(index)
	optionalPrefix := index[:lop]
	index = index[lop:]

	if len(index) == 0 {
		s.processed[n.ID] = true
		return []result{{node: n}}, nil
	}
	if !n.HasChildren() {
		cands, err := s.checkRedirect(n, index)
		if err != nil {
			return nil, err
		}
		if len(cands) == 0 {
			cands = []result{{node: n}}
		}
		return cands, nil
	}

	// Pick the children that can consume the head of the index: an
	// exact value match for a number, a first-rune match otherwise.
	var prefix string
	if num, consumed := itaiji.GetNumber(index, 0); consumed > 0 {
		prefix = strconv.Itoa(num) + "."
	} else {
		prefix = string(index[:1])
	}
	maxLevel := address.LevelUndefined
	if containsRune(optionalPrefix, '字') {
		maxLevel = address.LevelAza
	}
	children, err := s.childrenMatching(n, prefix, maxLevel)
	if err != nil {
		return nil, err
	}

	if len(children) == 0 && conv.IsExtraCharacter(index[0]) {
		// The head of the index may be a connecting rune that the
		// dictionary does not spell. Drop it and retry.
		sub, err := s.searchRecursive(n, index[1:])
		if err != nil {
			return nil, err
		}
		if len(sub) == 0 {
			return nil, nil
		}
		out := make([]result, 0, len(sub)+1)
		for _, cand := range sub {
			if cand.node.ID == n.ID {
				out = append(out, cand)
				continue
			}
			out = append(out, result{
				node:    cand.node,
				matched: joinRunes(index[:1], cand.matched),
				nchars:  lop + cand.nchars,
			})
		}
		out = append(out, result{node: n})
		return out, nil
	}

	var candidates []result
	for _, child := range children {
		if s.processed[child.ID] {
			continue
		}
		sub, err := s.getCandidates(child, index, optionalPrefix)
		if err != nil {
			return nil, err
		}
		if len(sub) > 0 {
			candidates = append(candidates, sub...)
			candidates = append(candidates, result{node: n})
		}
	}

	kyoto, err := s.searchKyotoStreet(n, index, optionalPrefix)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, kyoto...)

	redirected, err := s.checkRedirect(n, index)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, redirected...)

	if len(candidates) == 0 || len(index)-len(candidates[0].matched) > 2 {
		skipped, err := s.searchWithAzaSkip(n, index, optionalPrefix)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, skipped...)
	}

	if len(candidates) == 0 {
		candidates = []result{{node: n}}
	}
	return candidates, nil
}

// childrenMatching returns the children of n whose name index starts
// with prefix, in sibling order. Children without coordinates borrow
// them from their own first child carrying any.
func (s *searcher) childrenMatching(n address.Node, prefix string, maxLevel address.Level) ([]address.Node, error) {
	var out []address.Node
	err := s.tree.store.Children(n, func(c address.Node) bool {
		if !strings.HasPrefix(c.NameIndex, prefix) {
			return true
		}
		if maxLevel != address.LevelUndefined && c.Level > maxLevel {
			return true
		}
		if !c.HasValidCoordinates() {
			c = s.dummyCoordinates(c)
		}
		out = append(out, c)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *searcher) dummyCoordinates(n address.Node) address.Node {
	_ = s.tree.store.Children(n, func(c address.Node) bool {
		if c.HasValidCoordinates() {
			n.X, n.Y = c.X, c.Y
			return false
		}
		return true
	})
	return n
}

// getCandidates matches the name of child against the head of index
// and, on success, continues the descent on the remainder.
func (s *searcher) getCandidates(child address.Node, index, optionalPrefix []rune) ([]result, error) {
	conv := s.tree.conv
	nameIndex := []rune(child.NameIndex)

	matchLen := conv.MatchLen(index, nameIndex)
	if matchLen == 0 {
		if lpost := conv.CheckOptionalPostfixes(nameIndex, child.Level); lpost > 0 {
			// The name may appear with its counting postfix dropped,
			// as in 2-8 for 2番-8号.
			alt := nameIndex[:len(nameIndex)-lpost]
			matchLen = conv.MatchLenWithPostfix(index, alt)
			if conv.CheckTrailingString(index[matchLen:], child.Level) {
				matchLen = 0
			} else if matchLen < len(index) && (index[matchLen] == '-' || index[matchLen] == 'ノ') {
				matchLen++
			}
		}
	}
	if matchLen == 0 && strings.HasSuffix(child.NameIndex, ".条") {
		// 北3西1 for 北3条西1丁目, as written in Sapporo.
		alt := []rune(strings.Replace(child.NameIndex, "条", "", 1))
		matchLen = conv.MatchLen(index, alt)
	}
	if matchLen == 0 {
		return nil, nil
	}

	sub, err := s.searchRecursive(child, index[matchLen:])
	if err != nil {
		return nil, err
	}
	out := make([]result, 0, len(sub))
	for _, cand := range sub {
		out = append(out, result{
			node:    cand.node,
			matched: joinRunes(optionalPrefix, index[:matchLen], cand.matched),
			nchars:  len(optionalPrefix) + matchLen + cand.nchars,
		})
	}
	return out, nil
}

// searchKyotoStreet resolves the street-name notations used inside
// Kyoto City, where a ward is followed by a street path before the
// official oaza name. When the name of a child appears later in the
// index, everything before it is consumed as the street part.
func (s *searcher) searchKyotoStreet(n address.Node, index, optionalPrefix []rune) ([]result, error) {
	if n.Level != address.LevelWard {
		return nil, nil
	}
	parent, ok, err := s.tree.store.Parent(n)
	if err != nil {
		return nil, err
	}
	if !ok || parent.Name != "京都市" {
		return nil, nil
	}

	var children []address.Node
	if err := s.tree.store.Children(n, func(c address.Node) bool {
		children = append(children, c)
		return true
	}); err != nil {
		return nil, err
	}

	var candidates []result
	for _, child := range children {
		nameIndex := []rune(child.NameIndex)
		pos := runeLastIndex(index, nameIndex)
		if pos <= 0 {
			continue
		}
		offset := pos + len(nameIndex)
		s.processed[child.ID] = true
		sub, err := s.searchRecursive(child, index[offset:])
		if err != nil {
			return nil, err
		}
		for _, cand := range sub {
			candidates = append(candidates, result{
				node:    cand.node,
				matched: joinRunes(optionalPrefix, index[:offset], cand.matched),
				nchars:  len(optionalPrefix) + len(nameIndex) + len(cand.matched),
			})
		}
		if len(sub) > 0 {
			candidates = append(candidates, result{node: n})
		}
	}
	return candidates, nil
}

// searchWithAzaSkip retries the descent with the query's leading aza
// name dropped, when the machiaza master allows the omission.
func (s *searcher) searchWithAzaSkip(n address.Node, index, optionalPrefix []rune) ([]result, error) {
	var omissible string
	var err error
	switch s.cfg.AzaSkip {
	case AzaSkipOff:
		return nil, nil
	case AzaSkipAuto:
		omissible, err = s.omissibleIndex(n, index, true)
	case AzaSkipOn:
		omissible, err = s.omissibleIndex(n, index, false)
	}
	if err != nil {
		return nil, err
	}
	if omissible == "" {
		return nil, nil
	}

	azaLen := 0
	if positions := s.tree.conv.OptionalAzaPositions(index, 0); len(positions) > 0 {
		azaLen = positions[0]
	}
	if azaLen > utf8.RuneCountInString(omissible) {
		azaLen = 0
	}
	if azaLen == 0 {
		return nil, nil
	}
	slog.Debug("skipping omissible aza name",
		"skipped", string(index[:azaLen]), "index", string(index))

	savedSkip := s.cfg.AzaSkip
	s.cfg.AzaSkip = AzaSkipOff
	sub, err := s.searchRecursive(n, index[azaLen:])
	s.cfg.AzaSkip = savedSkip
	if err != nil {
		return nil, err
	}
	if len(sub) == 0 || len(sub[0].matched) == 0 {
		return nil, nil
	}

	var out []result
	for _, cand := range sub {
		// Below the block level only chiban heads may follow a
		// skipped aza name.
		if cand.node.Level < address.LevelBlock && !s.tree.conv.IsChibanHeadName(cand.node.NameIndex) {
			continue
		}
		out = append(out, result{
			node:    cand.node,
			matched: joinRunes(optionalPrefix, index[:azaLen], cand.matched),
			nchars:  len(optionalPrefix) + cand.nchars,
		})
	}
	if len(out) > 0 {
		out = append(out, result{node: n})
	}
	return out, nil
}

// omissibleIndex returns the leading part of index that may be
// dropped as an omitted aza name under n. In strict mode the machiaza
// master must confirm that block numbering continues across the aza
// boundary; otherwise everything up to the first name the master knows
// is considered omissible.
func (s *searcher) omissibleIndex(n address.Node, index []rune, strict bool) (string, error) {
	if n.Level < address.LevelCity || n.Level > address.LevelAza {
		return "", nil
	}
	for id := range s.processed {
		pn, err := s.tree.store.Node(id)
		if err != nil {
			return "", err
		}
		if pn.ParentID == n.ParentID && pn.NameIndex != n.NameIndex {
			// A sibling was already selected.
			return "", nil
		}
		if pn.ParentID == n.ID {
			// A child of this node was already selected.
			return "", nil
		}
	}

	var prefix string
	var err error
	if n.Level < address.LevelOaza {
		prefix, err = s.tree.store.CityCode(n)
	} else {
		var code string
		code, err = s.tree.store.AzaCode(n)
		prefix = strings.TrimRight(code, "0")
	}
	if err != nil {
		return "", err
	}
	if prefix == "" {
		// Without a city or aza code nothing constrains the omission.
		return string(index), nil
	}

	if !strict {
		omissible := index
		s.tree.store.EachAzaPrefix(prefix, func(rec dictionary.AzaRecord) bool {
			if (rec.AzaClass == 3 && rec.StartCountType == 1) || rec.AzaClass == 1 {
				name := s.lastAzaName(rec)
				if len(name) == 0 {
					return true
				}
				pos := runeIndex(omissible, name)
				if pos >= 0 {
					omissible = omissible[:pos]
					if pos == 0 {
						return false
					}
				}
			}
			return true
		})
		return string(omissible), nil
	}

	var omissible []rune
	s.tree.store.EachAzaPrefix(prefix, func(rec dictionary.AzaRecord) bool {
		if rec.StartCountType == 1 {
			if string(s.lastAzaName(rec)) == n.NameIndex {
				omissible = index
				return false
			}
		}
		if rec.StartCountType == 2 {
			name := s.lastAzaName(rec)
			pos := runeIndex(index, name)
			if pos > len(omissible) {
				omissible = index[:pos]
			}
			if pos == len(index) {
				return false
			}
		}
		return true
	})
	return string(omissible), nil
}

func (s *searcher) lastAzaName(rec dictionary.AzaRecord) []rune {
	if len(rec.Names) == 0 {
		return nil
	}
	return []rune(s.tree.conv.Standardize(rec.Names[len(rec.Names)-1].Kanji, false))
}

// checkRedirect follows the ref annotations of moved or renamed
// addresses: the referenced notation is resolved with a fresh search
// and the descent continues below whatever it finds.
func (s *searcher) checkRedirect(n address.Node, index []rune) ([]result, error) {
	if !s.cfg.AutoRedirect {
		return nil, nil
	}

	var candidates []result
	for _, ref := range n.Notes().Values(address.NoteKeyRef) {
		slog.Debug("redirecting", "node", n.Name, "ref", ref)
		s.processed[n.ID] = true

		savedRedirect := s.cfg.AutoRedirect
		savedRequire := s.cfg.RequireCoordinates
		outerProcessed := s.processed
		s.cfg.AutoRedirect = false
		s.cfg.RequireCoordinates = false
		s.processed = make(map[uint32]bool)
		redirected, err := s.searchByTrie(ref)
		s.cfg.AutoRedirect = savedRedirect
		s.cfg.RequireCoordinates = savedRequire
		s.processed = outerProcessed
		if err != nil {
			return nil, err
		}

		for _, id := range redirected.order {
			if s.processed[id] {
				continue
			}
			sub, err := s.searchRecursive(redirected.byID[id].node, index)
			if err != nil {
				return nil, err
			}
			for _, cand := range sub {
				if len(cand.matched) > 0 {
					candidates = append(candidates, cand)
				}
			}
		}
	}
	return candidates, nil
}

func startsWithNoname(index []rune) bool {
	return len(index) > 0 && string(index[:1]) == address.Noname
}

func containsRune(runes []rune, r rune) bool {
	for _, c := range runes {
		if c == r {
			return true
		}
	}
	return false
}

func runesHavePrefix(runes, prefix []rune) bool {
	if len(runes) < len(prefix) {
		return false
	}
	for i, r := range prefix {
		if runes[i] != r {
			return false
		}
	}
	return true
}

// joinRunes concatenates rune slices into a freshly allocated slice.
func joinRunes(parts ...[]rune) []rune {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]rune, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// runeIndex returns the rune offset of the first occurrence of needle
// in haystack, or -1. UTF-8 self-synchronization guarantees the byte
// match sits on a rune boundary.
func runeIndex(haystack, needle []rune) int {
	if len(needle) == 0 {
		return 0
	}
	h := string(haystack)
	b := strings.Index(h, string(needle))
	if b < 0 {
		return -1
	}
	return utf8.RuneCountInString(h[:b])
}

// runeLastIndex is runeIndex for the last occurrence.
func runeLastIndex(haystack, needle []rune) int {
	if len(needle) == 0 {
		return len(haystack)
	}
	h := string(haystack)
	b := strings.LastIndex(h, string(needle))
	if b < 0 {
		return -1
	}
	return utf8.RuneCountInString(h[:b])
}
