// Package mcp exposes the geocoder over the Model Context Protocol so
// LLM agents can resolve Japanese addresses as tool calls.
package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/banchi-geo/banchi/pkg/geocoder"
)

func NewMCPServer(tree geocoder.Tree, version string) *mcp.Server {
	service := NewService(tree)

	s := mcp.NewServer(&mcp.Implementation{
		Name:    "Banchi Geocoder",
		Version: version,
	}, nil) // Options can be nil for default

	// Register Tools using the Generic AddTool which inspects structs!

	mcp.AddTool(s, &mcp.Tool{
		Name:        "search_address",
		Description: "Resolve a Japanese address notation (kanji, kana or mixed numerals) to dictionary entries with coordinates.",
	}, service.SearchAddress)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "reverse_geocode",
		Description: "Find the registered addresses surrounding a longitude/latitude point, nearest first.",
	}, service.ReverseGeocode)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "dictionary_info",
		Description: "Report the version, record count and source datasets of the loaded address dictionary.",
	}, service.DictionaryInfo)

	return s
}
