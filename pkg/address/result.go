package address

// Result is one forward-geocoding match: the terminal node of a parse
// and the substring of the query it consumed.
type Result struct {
	Node    Node   `json:"node"`
	Matched string `json:"matched"`

	// NChars counts the standardized characters consumed during the
	// recursive descent. It drives intermediate bookkeeping only and
	// is not part of the result payload.
	NChars int `json:"-"`
}

// ReverseResult is one reverse-geocoding candidate with its geodesic
// distance in meters from the query point.
type ReverseResult struct {
	Candidate Node    `json:"candidate"`
	Dist      float64 `json:"dist"`
}
