package mcp

import "github.com/banchi-geo/banchi/pkg/dictionary"

// --- Tool Arguments ---

type SearchAddressArgs struct {
	Query string `json:"query" jsonschema:"The Japanese address notation to resolve (e.g. '新宿区西新宿2-8-1'),required"`
}

// Candidate is one resolved address element, shared by the forward and
// reverse tools.
type Candidate struct {
	ID        uint32   `json:"id"`
	Fullname  []string `json:"fullname"`
	Longitude float64  `json:"longitude"`
	Latitude  float64  `json:"latitude"`
	Level     int      `json:"level"`
	LevelName string   `json:"level_name"`
	Postcode  string   `json:"postcode,omitempty"`
}

type SearchAddressResult struct {
	Matched    string      `json:"matched"`
	Candidates []Candidate `json:"candidates"`
}

type ReverseGeocodeArgs struct {
	Longitude float64 `json:"longitude" jsonschema:"Longitude of the point in decimal degrees,required"`
	Latitude  float64 `json:"latitude" jsonschema:"Latitude of the point in decimal degrees,required"`
	Level     int     `json:"level,omitempty" jsonschema:"Address level to resolve to, 1 (prefecture) to 8 (building). Defaults to 6 (aza)"`
}

type ReverseCandidate struct {
	Candidate Candidate `json:"candidate"`
	Distance  float64   `json:"distance_m"`
}

type ReverseGeocodeResult struct {
	Candidates []ReverseCandidate `json:"candidates"`
}

type DictionaryInfoArgs struct{}

type DictionaryInfoResult struct {
	Version  string               `json:"version"`
	Records  uint64               `json:"records"`
	Datasets []dictionary.Dataset `json:"datasets"`
}
