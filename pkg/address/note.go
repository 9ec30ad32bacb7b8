package address

import "strings"

// NoteKV is a single key:value annotation.
type NoteKV struct {
	Key   string
	Value string
}

// Notes is the parsed form of a node's annotation field. The raw field
// holds key:value pairs joined by '/', with ':' and '/' inside keys or
// values escaped by a backslash.
type Notes []NoteKV

// Annotation keys recognized by the engine.
const (
	NoteKeyPostcode = "postcode"
	NoteKeyPrefCode = "jisx0401"
	NoteKeyCityCode = "jisx0402"
	NoteKeyAzaID    = "aza_id"
	NoteKeyRef      = "ref"
	NoteKeyCityID   = "geoshape_city_id"
)

// ParseNotes splits a raw annotation field into key/value pairs.
// A segment without an unescaped ':' becomes a pair with an empty key.
func ParseNotes(raw string) Notes {
	if raw == "" {
		return Notes{{Key: "", Value: ""}}
	}
	var notes Notes
	for _, attr := range splitUnescaped(raw, '/') {
		k, v, found := cutUnescaped(attr, ':')
		if !found {
			k, v = "", attr
		}
		notes = append(notes, NoteKV{Key: unescapeNote(k), Value: unescapeNote(v)})
	}
	return notes
}

// String reassembles the raw annotation field, escaping ':' and '/'.
func (ns Notes) String() string {
	parts := make([]string, 0, len(ns))
	for _, kv := range ns {
		parts = append(parts, escapeNote(kv.Key)+":"+escapeNote(kv.Value))
	}
	return strings.Join(parts, "/")
}

// Get returns the first value stored under key.
func (ns Notes) Get(key string) (string, bool) {
	for _, kv := range ns {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Values returns every value stored under key, splitting multi-valued
// entries on '|'.
func (ns Notes) Values(key string) []string {
	var values []string
	for _, kv := range ns {
		if kv.Key != key {
			continue
		}
		for _, v := range strings.Split(kv.Value, "|") {
			if v != "" {
				values = append(values, v)
			}
		}
	}
	return values
}

// Add appends a key/value pair.
func (ns Notes) Add(key, value string) Notes {
	return append(ns, NoteKV{Key: key, Value: value})
}

func splitUnescaped(s string, sep byte) []string {
	var parts []string
	start := 0
	escaped := false
	for i := 0; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func cutUnescaped(s string, sep byte) (before, after string, found bool) {
	escaped := false
	for i := 0; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == sep:
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

func unescapeNote(s string) string {
	s = strings.ReplaceAll(s, `\:`, ":")
	return strings.ReplaceAll(s, `\/`, "/")
}

func escapeNote(s string) string {
	s = strings.ReplaceAll(s, ":", `\:`)
	return strings.ReplaceAll(s, "/", `\/`)
}
