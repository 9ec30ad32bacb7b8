// Package client implements the address tree served by a remote
// banchi server. RemoteTree speaks JSON-RPC 2.0 over HTTP POST and
// satisfies geocoder.Tree, so a program switches between a dictionary
// on disk and a server by swapping the constructor.
//
// Node records fetched from the server are kept in a small LRU cache.
// The cache is tied to the server signature: before every search the
// tree asks the server for its signature and drops the cache when the
// server switched to another dictionary in the meantime.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banchi-geo/banchi/internal/jsonrpc"
	"github.com/banchi-geo/banchi/pkg/address"
	"github.com/banchi-geo/banchi/pkg/dictionary"
	"github.com/banchi-geo/banchi/pkg/geocoder"
	"github.com/banchi-geo/banchi/pkg/metrics"
)

// TransportError reports a failed exchange with the server: a broken
// connection, a timeout, a non-2xx HTTP reply, a malformed body or an
// error response from the RPC endpoint. The wrapped error is a
// *jsonrpc.Error when the server answered with one.
type TransportError struct {
	Op  string // RPC method that failed
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Options tunes a RemoteTree beyond its defaults.
type Options struct {
	// Timeout bounds each call including connection setup and body
	// read. Zero disables the limit.
	Timeout time.Duration

	// AuthToken is sent as a bearer token when the server requires
	// authentication.
	AuthToken string

	// CacheSize is the capacity of the node cache.
	CacheSize int

	// HTTPClient replaces the default client. Timeout is ignored when
	// it is set.
	HTTPClient *http.Client
}

// DefaultOptions returns the options New applies.
func DefaultOptions() Options {
	return Options{
		Timeout:   10 * time.Second,
		CacheSize: 512,
	}
}

// RemoteTree is an address tree answered by a banchi server. The
// search configuration lives on the client and rides along with every
// search request, so several trees pointed at one server can search
// under different settings.
type RemoteTree struct {
	url        string
	authToken  string
	httpClient *http.Client

	mu        sync.Mutex
	cfg       geocoder.Config
	signature string
	cache     *nodeCache
	datasets  []dictionary.Dataset
}

var _ geocoder.Tree = (*RemoteTree)(nil)

// New returns a tree talking to the RPC endpoint at url, usually of
// the form http://host:port/jsonrpc.
func New(url string) *RemoteTree {
	return NewWithOptions(url, DefaultOptions())
}

// NewWithOptions returns a tree talking to the RPC endpoint at url
// with the given options.
func NewWithOptions(url string, opts Options) *RemoteTree {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultOptions().CacheSize
	}
	return &RemoteTree{
		url:        url,
		authToken:  opts.AuthToken,
		httpClient: hc,
		cfg:        geocoder.DefaultConfig(),
		cache:      newNodeCache(size),
	}
}

// URL returns the RPC endpoint this tree talks to.
func (r *RemoteTree) URL() string { return r.url }

// call performs one JSON-RPC exchange and decodes the result into
// result when it is non-nil. Every failure comes back as a
// *TransportError.
func (r *RemoteTree) call(ctx context.Context, method string, params, result any) error {
	req := jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		Method:  method,
	}
	id, err := json.Marshal(uuid.NewString())
	if err != nil {
		return &TransportError{Op: method, Err: err}
	}
	req.ID = id
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return &TransportError{Op: method, Err: fmt.Errorf("marshal params: %w", err)}
		}
		req.Params = raw
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return &TransportError{Op: method, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Op: method, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if r.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.authToken)
	}

	httpResp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return &TransportError{Op: method, Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return &TransportError{Op: method, Err: fmt.Errorf("read response: %w", err)}
	}
	if httpResp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(body))
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return &TransportError{Op: method, Err: fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, msg)}
	}

	var resp jsonrpc.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return &TransportError{Op: method, Err: fmt.Errorf("malformed response: %w", err)}
	}
	if resp.Error != nil {
		return &TransportError{Op: method, Err: resp.Error}
	}
	if result != nil {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return &TransportError{Op: method, Err: fmt.Errorf("malformed result: %w", err)}
		}
	}
	return nil
}

// ServerSignature returns the identity of the dictionary the server
// currently serves. When it differs from the last seen signature the
// cached nodes belong to a dictionary that is gone, so the cache is
// dropped.
func (r *RemoteTree) ServerSignature(ctx context.Context) (string, error) {
	var sig string
	if err := r.call(ctx, "server.signature", nil, &sig); err != nil {
		return "", err
	}
	r.mu.Lock()
	if sig != r.signature {
		r.cache.clear()
		r.datasets = nil
		r.signature = sig
	}
	r.mu.Unlock()
	return sig, nil
}

func (r *RemoteTree) updateSignature(ctx context.Context) error {
	_, err := r.ServerSignature(ctx)
	return err
}

func (r *RemoteTree) cacheNode(n address.Node) {
	r.mu.Lock()
	r.cache.put(n)
	r.mu.Unlock()
}

// SearchNode resolves an address notation on the server under this
// tree's search configuration.
func (r *RemoteTree) SearchNode(ctx context.Context, query string) ([]address.Result, error) {
	if err := r.updateSignature(ctx); err != nil {
		return nil, err
	}
	params := struct {
		Query  string          `json:"query"`
		Config geocoder.Config `json:"config"`
	}{Query: query, Config: r.Config()}
	var results []address.Result
	if err := r.call(ctx, "tree.searchNode", params, &results); err != nil {
		return nil, err
	}
	for _, res := range results {
		r.cacheNode(res.Node)
	}
	return results, nil
}

// Reverse looks up the nodes surrounding a point on the server. A zero
// level searches down to the aza level; any other level outside the
// defined range is rejected with geocoder.ErrConfig before the request
// is sent.
func (r *RemoteTree) Reverse(ctx context.Context, x, y float64, level address.Level) ([]address.ReverseResult, error) {
	if level == 0 {
		level = address.LevelAza
	}
	if !level.Valid() {
		return nil, fmt.Errorf("%w: level %d is not a defined address level", geocoder.ErrConfig, level)
	}
	if err := r.updateSignature(ctx); err != nil {
		return nil, err
	}
	params := struct {
		X     float64       `json:"x"`
		Y     float64       `json:"y"`
		Level address.Level `json:"level"`
	}{X: x, Y: y, Level: level}
	var results []address.ReverseResult
	if err := r.call(ctx, "tree.reverse", params, &results); err != nil {
		return nil, err
	}
	for _, res := range results {
		r.cacheNode(res.Candidate)
	}
	return results, nil
}

// Node returns the node with the given id, from the cache when it was
// fetched before under the current server signature.
func (r *RemoteTree) Node(ctx context.Context, id uint32) (address.Node, error) {
	r.mu.Lock()
	n, ok := r.cache.get(id)
	r.mu.Unlock()
	if ok {
		metrics.RemoteCacheLookups.WithLabelValues("hit").Inc()
		return n, nil
	}
	metrics.RemoteCacheLookups.WithLabelValues("miss").Inc()

	params := struct {
		ID uint32 `json:"id"`
	}{ID: id}
	if err := r.call(ctx, "node.get", params, &n); err != nil {
		return address.Node{}, err
	}
	r.cacheNode(n)
	return n, nil
}

// CountRecords returns the number of nodes in the server's dictionary.
func (r *RemoteTree) CountRecords(ctx context.Context) (uint64, error) {
	var count uint64
	if err := r.call(ctx, "node.count", nil, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *RemoteTree) nodesByAttr(ctx context.Context, attr, value string) ([]address.Node, error) {
	params := struct {
		Attr  string `json:"attr"`
		Value string `json:"value"`
	}{Attr: attr, Value: value}
	var nodes []address.Node
	if err := r.call(ctx, "node.searchByAttr", params, &nodes); err != nil {
		return nil, err
	}
	for _, n := range nodes {
		r.cacheNode(n)
	}
	return nodes, nil
}

// SearchByMachiazaID finds the nodes carrying a machiaza id, scoped
// to the city named by a 12- or 13-character id.
func (r *RemoteTree) SearchByMachiazaID(ctx context.Context, id string) ([]address.Node, error) {
	if err := r.updateSignature(ctx); err != nil {
		return nil, err
	}
	id = address.CleanNumeric(id)
	var citycode string
	switch len(id) {
	case 12:
		citycode = id[:5]
	case 13:
		citycode = id[:5] // local-government code starts with the JIS X 0402 code
	default:
		return r.nodesByAttr(ctx, address.NoteKeyAzaID, id)
	}
	cities, err := r.nodesByAttr(ctx, address.NoteKeyCityCode, citycode)
	if err != nil {
		return nil, err
	}
	if len(cities) == 0 {
		return nil, nil
	}
	city := cities[0]
	candidates, err := r.nodesByAttr(ctx, address.NoteKeyAzaID, id[len(id)-7:])
	if err != nil {
		return nil, err
	}
	var out []address.Node
	for _, n := range candidates {
		if n.ID >= city.ID && n.ID < city.SiblingID {
			out = append(out, n)
		}
	}
	return out, nil
}

// SearchByPostcode finds the nodes annotated with a 7-digit postal
// code.
func (r *RemoteTree) SearchByPostcode(ctx context.Context, code string) ([]address.Node, error) {
	if err := r.updateSignature(ctx); err != nil {
		return nil, err
	}
	code = address.CleanNumeric(code)
	if len(code) != 7 {
		return nil, nil
	}
	return r.nodesByAttr(ctx, address.NoteKeyPostcode, code)
}

// SearchByPrefcode finds the prefecture nodes for a JIS X 0401 code
// in its bare 2-digit or 6-digit local-government form.
func (r *RemoteTree) SearchByPrefcode(ctx context.Context, code string) ([]address.Node, error) {
	if err := r.updateSignature(ctx); err != nil {
		return nil, err
	}
	code = address.CleanNumeric(code)
	switch len(code) {
	case 2:
	case 6:
		code = code[:2]
	default:
		return nil, nil
	}
	return r.nodesByAttr(ctx, address.NoteKeyPrefCode, code)
}

// SearchByCitycode finds the city nodes for a JIS X 0402 code in its
// bare 5-digit or 6-digit local-government form.
func (r *RemoteTree) SearchByCitycode(ctx context.Context, code string) ([]address.Node, error) {
	if err := r.updateSignature(ctx); err != nil {
		return nil, err
	}
	code = address.CleanNumeric(code)
	switch len(code) {
	case 5:
	case 6:
		code = code[:5]
	default:
		return nil, nil
	}
	return r.nodesByAttr(ctx, address.NoteKeyCityCode, code)
}

// AzaRecordByCode returns the machiaza master record for a 12-digit
// machiaza code.
func (r *RemoteTree) AzaRecordByCode(ctx context.Context, code string) (dictionary.AzaRecord, error) {
	params := struct {
		Code string `json:"code"`
	}{Code: code}
	var rec dictionary.AzaRecord
	if err := r.call(ctx, "azaMaster.searchByCode", params, &rec); err != nil {
		return dictionary.AzaRecord{}, err
	}
	return rec, nil
}

// AzaRecordsByPrefix returns the machiaza master records whose code
// starts with prefix, in code order.
func (r *RemoteTree) AzaRecordsByPrefix(ctx context.Context, prefix string) ([]dictionary.AzaRecord, error) {
	params := struct {
		Prefix string `json:"prefix"`
	}{Prefix: prefix}
	var recs []dictionary.AzaRecord
	if err := r.call(ctx, "azaMaster.scanPrefix", params, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Datasets lists the source datasets of the server's dictionary. The
// list is fetched once and kept until the server signature changes.
func (r *RemoteTree) Datasets(ctx context.Context) ([]dictionary.Dataset, error) {
	r.mu.Lock()
	cached := r.datasets
	r.mu.Unlock()
	if cached != nil {
		return cached, nil
	}
	var sets []dictionary.Dataset
	if err := r.call(ctx, "dataset.getAll", nil, &sets); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.datasets = sets
	r.mu.Unlock()
	return sets, nil
}

// Dataset returns one source dataset by its id.
func (r *RemoteTree) Dataset(ctx context.Context, id uint8) (dictionary.Dataset, error) {
	params := struct {
		ID uint8 `json:"id"`
	}{ID: id}
	var ds dictionary.Dataset
	if err := r.call(ctx, "dataset.get", params, &ds); err != nil {
		return dictionary.Dataset{}, err
	}
	return ds, nil
}

// DictionaryVersion returns the version string of the server's
// dictionary.
func (r *RemoteTree) DictionaryVersion(ctx context.Context) (string, error) {
	var v string
	if err := r.call(ctx, "dictionary.version", nil, &v); err != nil {
		return "", err
	}
	return v, nil
}

// DictionaryReadme returns the README text of the server's
// dictionary.
func (r *RemoteTree) DictionaryReadme(ctx context.Context) (string, error) {
	var v string
	if err := r.call(ctx, "dictionary.readme", nil, &v); err != nil {
		return "", err
	}
	return v, nil
}

// Config returns the current search configuration.
func (r *RemoteTree) Config() geocoder.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// SetConfig replaces the search configuration. Target areas are not
// checked here: the server verifies them against its dictionary on
// each search.
func (r *RemoteTree) SetConfig(cfg geocoder.Config) error {
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
	return nil
}

// Close releases idle connections. The tree is unusable afterwards.
func (r *RemoteTree) Close() error {
	r.httpClient.CloseIdleConnections()
	return nil
}
