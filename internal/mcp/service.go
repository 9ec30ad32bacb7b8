package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/banchi-geo/banchi/pkg/address"
	"github.com/banchi-geo/banchi/pkg/geocoder"
)

// Service exposes a geocoder tree to LLM agents. It works over any
// Tree provider, so one binary can serve a local dictionary or relay
// to a remote server.
type Service struct {
	tree geocoder.Tree
}

func NewService(tree geocoder.Tree) *Service {
	return &Service{tree: tree}
}

// candidate flattens a node into the wire shape shared by both tools.
func (s *Service) candidate(ctx context.Context, n address.Node) (Candidate, error) {
	fullname, err := geocoder.FullName(ctx, s.tree, n, "")
	if err != nil {
		return Candidate{}, fmt.Errorf("resolving parents of node %d: %w", n.ID, err)
	}
	c := Candidate{
		ID:        n.ID,
		Fullname:  fullname,
		Longitude: float64(n.X),
		Latitude:  float64(n.Y),
		Level:     int(n.Level),
		LevelName: n.Level.Name(),
	}
	if pc, ok := n.Notes().Get(address.NoteKeyPostcode); ok {
		c.Postcode = pc
	}
	return c, nil
}

// --- Tool Handlers ---

func (s *Service) SearchAddress(ctx context.Context, req *mcp.CallToolRequest, args SearchAddressArgs) (*mcp.CallToolResult, SearchAddressResult, error) {
	results, err := s.tree.SearchNode(ctx, args.Query)
	if err != nil {
		return nil, SearchAddressResult{}, err
	}

	out := SearchAddressResult{Candidates: []Candidate{}}
	for _, r := range results {
		if len(r.Matched) > len(out.Matched) {
			out.Matched = r.Matched
		}
		c, err := s.candidate(ctx, r.Node)
		if err != nil {
			return nil, SearchAddressResult{}, err
		}
		out.Candidates = append(out.Candidates, c)
	}
	return nil, out, nil
}

func (s *Service) ReverseGeocode(ctx context.Context, req *mcp.CallToolRequest, args ReverseGeocodeArgs) (*mcp.CallToolResult, ReverseGeocodeResult, error) {
	results, err := s.tree.Reverse(ctx, args.Longitude, args.Latitude, address.Level(args.Level))
	if err != nil {
		return nil, ReverseGeocodeResult{}, err
	}

	out := ReverseGeocodeResult{Candidates: []ReverseCandidate{}}
	for _, r := range results {
		c, err := s.candidate(ctx, r.Candidate)
		if err != nil {
			return nil, ReverseGeocodeResult{}, err
		}
		out.Candidates = append(out.Candidates, ReverseCandidate{Candidate: c, Distance: r.Dist})
	}
	return nil, out, nil
}

func (s *Service) DictionaryInfo(ctx context.Context, req *mcp.CallToolRequest, args DictionaryInfoArgs) (*mcp.CallToolResult, DictionaryInfoResult, error) {
	version, err := s.tree.DictionaryVersion(ctx)
	if err != nil {
		return nil, DictionaryInfoResult{}, err
	}
	count, err := s.tree.CountRecords(ctx)
	if err != nil {
		return nil, DictionaryInfoResult{}, err
	}
	datasets, err := s.tree.Datasets(ctx)
	if err != nil {
		return nil, DictionaryInfoResult{}, err
	}
	return nil, DictionaryInfoResult{Version: version, Records: count, Datasets: datasets}, nil
}
