// Package geocoder resolves Japanese address notations to nodes of an
// address dictionary and back. A LocalTree searches a dictionary
// opened from disk; remote implementations forward the same interface
// over the wire. Forward search walks the notation trie and then the
// node hierarchy with the fuzzy matcher from pkg/itaiji, reverse
// search delegates to the spatial index in pkg/spatial.
package geocoder

import (
	"context"
	"sort"
	"unicode/utf8"

	"github.com/banchi-geo/banchi/pkg/address"
	"github.com/banchi-geo/banchi/pkg/dictionary"
)

// Tree is the common surface of local and remote address trees.
// Search configuration is client-side state: implementations carry it
// along with every request that needs it, so two trees pointed at the
// same dictionary can search under different settings.
type Tree interface {
	// SearchNode resolves an address notation to its deepest matching
	// nodes, longest match first.
	SearchNode(ctx context.Context, query string) ([]address.Result, error)

	// Reverse returns up to three address nodes of the given level
	// surrounding the point, nearest first. A zero level searches down
	// to the aza level; any other undefined level is an ErrConfig.
	Reverse(ctx context.Context, x, y float64, level address.Level) ([]address.ReverseResult, error)

	// Node returns the node with the given id.
	Node(ctx context.Context, id uint32) (address.Node, error)

	// CountRecords returns the number of nodes in the dictionary.
	CountRecords(ctx context.Context) (uint64, error)

	// SearchByMachiazaID finds the nodes carrying a machiaza id of the
	// address base registry. A 12-character id is taken as a JIS X 0402
	// code plus the 7-digit id, a 13-character id as a local government
	// code plus the id, anything else as a bare id searched nationwide.
	SearchByMachiazaID(ctx context.Context, id string) ([]address.Node, error)

	// SearchByPostcode finds the nodes with a 7-digit postal code.
	SearchByPostcode(ctx context.Context, code string) ([]address.Node, error)

	// SearchByPrefcode finds the prefecture nodes for a JIS X 0401 code
	// or a 6-digit local government code.
	SearchByPrefcode(ctx context.Context, code string) ([]address.Node, error)

	// SearchByCitycode finds the city nodes for a JIS X 0402 code or a
	// 6-digit local government code.
	SearchByCitycode(ctx context.Context, code string) ([]address.Node, error)

	// AzaRecordByCode returns the machiaza master record for a
	// 12-digit machiaza code.
	AzaRecordByCode(ctx context.Context, code string) (dictionary.AzaRecord, error)

	// Datasets lists the source datasets of the dictionary.
	Datasets(ctx context.Context) ([]dictionary.Dataset, error)

	// DictionaryVersion returns the dictionary version string.
	DictionaryVersion(ctx context.Context) (string, error)

	// DictionaryReadme returns the README text of the dictionary.
	DictionaryReadme(ctx context.Context) (string, error)

	// Config returns the current search configuration.
	Config() Config

	// SetConfig validates and replaces the search configuration.
	SetConfig(cfg Config) error

	Close() error
}

// SetOption coerces value to the type of the named parameter and
// applies it to the tree's configuration.
func SetOption(t Tree, key string, value any) error {
	cfg := t.Config()
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	return t.SetConfig(cfg)
}

// Option returns the named configuration parameter in its wire form.
func Option(t Tree, key string) (any, error) {
	return t.Config().Get(key)
}

// FullName returns the element names from the prefecture down to n,
// fetched through the tree. Placeholder names are replaced by alt.
func FullName(ctx context.Context, t Tree, n address.Node, alt string) ([]string, error) {
	if n.IsRoot() {
		return nil, nil
	}
	var chain []string
	for cur := n; ; {
		chain = append(chain, cur.DisplayName(alt))
		if cur.ParentID == address.RootID {
			break
		}
		parent, err := t.Node(ctx, cur.ParentID)
		if err != nil {
			return nil, err
		}
		cur = parent
	}
	// Reverse into prefecture-first order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// SearchResponse groups the candidate nodes sharing one matched
// substring of the query.
type SearchResponse struct {
	Matched    string         `json:"matched"`
	Candidates []address.Node `json:"candidates"`
}

// Search resolves a notation and groups the results by their matched
// substring, longest first. Under BestOnly the slice holds exactly one
// group, possibly empty.
func Search(ctx context.Context, t Tree, query string) ([]SearchResponse, error) {
	results, err := t.SearchNode(ctx, query)
	if err != nil {
		return nil, err
	}

	if t.Config().BestOnly {
		resp := SearchResponse{Candidates: []address.Node{}}
		if len(results) > 0 {
			resp.Matched = results[0].Matched
			for _, r := range results {
				resp.Candidates = append(resp.Candidates, r.Node)
			}
		}
		return []SearchResponse{resp}, nil
	}

	var out []SearchResponse
	byMatched := make(map[string]int)
	for _, r := range results {
		i, ok := byMatched[r.Matched]
		if !ok {
			i = len(out)
			byMatched[r.Matched] = i
			out = append(out, SearchResponse{Matched: r.Matched})
		}
		out[i].Candidates = append(out[i].Candidates, r.Node)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return utf8.RuneCountInString(out[i].Matched) > utf8.RuneCountInString(out[j].Matched)
	})
	return out, nil
}
