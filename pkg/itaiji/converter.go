// Package itaiji standardizes Japanese address notations so that
// variant spellings of the same place compare equal, and provides the
// fuzzy prefix matcher the dictionary search is built on.
//
// Standardization folds variant kanji, converts full-width ASCII to
// half-width, upper-cases, converts hiragana to katakana, unifies
// hyphen-like runes to '-' and rewrites numbers in any script to
// decimal followed by a period, so 一丁目, １丁目 and 一ツ目 all
// compare against the same indexed form. All positions and lengths in
// this package are rune counts, never byte offsets.
package itaiji

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/banchi-geo/banchi/pkg/address"
)

// maxMatchLoops aborts pathological pattern matches. A legitimate
// match advances at least one position every few iterations, so an
// address notation never comes close to this bound.
const maxMatchLoops = 256

// Converter standardizes notations and matches standardized name
// patterns against query strings.
type Converter struct {
	// Prefixes such as 大字 that notations add or omit freely.
	optionalPrefixes []string
	// Single runes that may be inserted into or dropped from the
	// middle of a name.
	middleLetters string
	// Multi-rune strings with the same property.
	middleStrings []string
	// Runes that may trail a matched name without belonging to it.
	extraCharacters string
	// Runes that can begin a chiban (parcel number) designation.
	chibanHeads string
	// Upper bound on the length of an omitted aza name.
	maxSkipAzaname int
	// Removable postfixes per address level.
	postfixes map[address.Level][]string
}

// Default is the converter the dictionary is built and searched with.
// Name indexes and queries must be standardized by the same instance
// or lookups will miss.
var Default = New()

// New returns a converter tuned for Japanese address notations.
func New() *Converter {
	return &Converter{
		optionalPrefixes: []string{"字", "大字", "小字"},
		middleLetters:    "ケヶガツッノ区町",
		middleStrings:    []string{"大字", "小字", "字"},
		extraCharacters:  "-ノ区町",
		chibanHeads:      chibanHeads,
		maxSkipAzaname:   5,
		postfixes: map[address.Level][]string{
			address.LevelCity:  {"市", "区", "町", "村"},
			address.LevelWard:  {"区"},
			address.LevelOaza:  {"番丁", "番町", "丁目", "町", "条", "線", "丁", "区", "番", "号"},
			address.LevelAza:   {"丁目", "町", "条", "線", "丁", "区", "番", "号"},
			address.LevelBlock: {"番地", "番", "号", "地"},
			address.LevelBld:   {"番地", "号"},
		},
	}
}

// Standardize returns the standardized form of an address notation.
// With keepNumbers the numeric rewrite is skipped so that positions in
// the result can be mapped back to the input; every other fold still
// applies.
func (c *Converter) Standardize(notation string, keepNumbers bool) string {
	if notation == "" {
		return notation
	}

	runes := []rune(notation)
	runes = runes[c.CheckOptionalPrefixes(runes):]

	folded := strings.Map(func(r rune) rune {
		r = foldItaiji(r)
		r = foldWidth(r)
		r = unicode.ToUpper(r)
		return foldKana(r)
	}, string(runes))
	folded = strings.ReplaceAll(folded, "通リ", "通")
	runes = []rune(folded)

	var out []rune
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case IsHyphen(r):
			out = append(out, '-')
			i++
		case !keepNumbers && IsNumeric(r):
			n, consumed := GetNumber(runes[i:], 0)
			out = append(out, []rune(strconv.Itoa(n))...)
			out = append(out, '.')
			i += consumed
			// Collapse a period that already followed the number.
			if i < len(runes) && runes[i] == '.' {
				i++
			}
		default:
			out = append(out, r)
			i++
		}
	}
	return string(out)
}

// CheckOptionalPrefixes returns the rune length of an optional prefix
// (字, 大字 or 小字) at the head of the notation, or 0.
func (c *Converter) CheckOptionalPrefixes(notation []rune) int {
	if len(notation) >= 2 {
		switch string(notation[:2]) {
		case "大字", "小字":
			return 2
		}
	}
	if len(notation) >= 1 && notation[0] == '字' {
		return 1
	}
	return 0
}

// CheckOptionalPostfixes returns the rune length of a removable
// postfix of the notation at the given address level, or 0. A block
// level 1番地 can drop 番地, a building level 15号 can drop 号.
func (c *Converter) CheckOptionalPostfixes(notation []rune, level address.Level) int {
	for _, pf := range c.postfixes[level] {
		p := []rune(pf)
		if len(notation) >= len(p) && string(notation[len(notation)-len(p):]) == pf {
			return len(p)
		}
	}
	return 0
}

// CheckTrailingString reports whether the string remaining after a
// postfix-removed match starts with a different removable postfix of
// the same level. 1番 abbreviated to 1 may continue with a hyphen or a
// counting ノ, but when the query goes on with 号 or 地 it denotes a
// sibling element and the match must be rejected.
func (c *Converter) CheckTrailingString(notation []rune, level address.Level) bool {
	for _, pf := range c.postfixes[level] {
		p := []rune(pf)
		if len(notation) >= len(p) && string(notation[:len(p)]) == pf {
			return true
		}
	}
	return false
}

// IsExtraCharacter reports whether r may trail a matched name without
// being part of it, such as the hyphen in 西新宿2-.
func (c *Converter) IsExtraCharacter(r rune) bool {
	return strings.ContainsRune(c.extraCharacters, r)
}

// IsChibanHeadName reports whether a name index consists of chiban
// head runes, such as the イ in イ2513番地.
func (c *Converter) IsChibanHeadName(nameIndex string) bool {
	return nameIndex != "" && strings.Contains(c.chibanHeads, nameIndex)
}

// MatchLen returns the number of runes at the head of s that match the
// standardized pattern, or 0 if the pattern does not match exactly.
// s may be standardized with numbers kept.
func (c *Converter) MatchLen(s, pattern []rune) int {
	return c.matchLen(s, pattern, false)
}

// MatchLenWithPostfix behaves like MatchLen for a pattern whose
// removable postfix was cut off before matching. The match is only
// accepted when the query abbreviates the postfix with a hyphen or a
// counting ノ, so that 1番地 matches 1- but not plain 1 glued to an
// unrelated continuation.
func (c *Converter) MatchLenWithPostfix(s, pattern []rune) int {
	return c.matchLen(s, pattern, true)
}

func (c *Converter) matchLen(str, pattern []rune, removedPostfix bool) int {
	nloops := 0
	checkedString, checkedPattern := -1, -1
	var azaPositions []int
	patternPos, stringPos := 0, 0
	// Optional runes provisionally skipped on either side. A skip is
	// confirmed once a later rune matches and may be rewound or
	// discounted until then.
	pendingSlen, pendingPlen := 0, 0
	pc, sc := 'x', 'x'
	for patternPos < len(pattern) {
		nloops++
		if nloops > maxMatchLoops {
			return 0
		}
		if stringPos >= len(str) {
			return 0
		}

		preC, preS := pc, sc
		pc = pattern[patternPos]
		sc = str[stringPos]
		if pc >= '0' && pc <= '9' {
			// The pattern expects a number. Find its terminating
			// period, then compare the value parsed from the query
			// with the expected value.
			periodPos := -1
			for i := patternPos; i < len(pattern); i++ {
				if pattern[i] == '.' {
					periodPos = i
					break
				}
			}
			if periodPos < 0 {
				// Malformed pattern, cannot match.
				return 0
			}
			if slen := c.OptionalStrLen(str, stringPos); slen > 0 {
				stringPos += slen
				pendingSlen = slen
				continue
			}
			expected, err := strconv.Atoi(string(pattern[patternPos:periodPos]))
			if err != nil {
				return 0
			}
			n, consumed := GetNumber(str[stringPos:], expected)
			if n != expected || consumed == 0 {
				return 0
			}
			patternPos = periodPos + 1
			stringPos += consumed
			pendingSlen = 0
			continue
		}

		if pc == sc {
			patternPos++
			stringPos++
			pendingSlen = 0
			continue
		}

		// The runes differ. Try the vaguenesses address notations
		// allow, in order, before giving up.

		// An optional string straddles the last matched rune of the
		// query: back the pattern up and skip it.
		if c.isMiddleString(string([]rune{preS, sc})) {
			stringPos++
			patternPos--
			pendingSlen = 2
			continue
		}
		// Same on the pattern side.
		if c.isMiddleString(string([]rune{preC, pc})) {
			stringPos--
			patternPos++
			pendingPlen = 2
			continue
		}
		// An optional string starts here in the query.
		if slen := c.OptionalStrLen(str, stringPos); slen > 0 {
			skipped := string(str[stringPos : stringPos+slen])
			if c.isMiddleString(skipped) || (pendingSlen == 0 && pendingPlen == 0) {
				stringPos += slen
				pendingSlen = slen
				continue
			}
		}
		// An optional string starts here in the pattern.
		if plen := c.OptionalStrLen(pattern, patternPos); plen > 0 {
			skipped := string(pattern[patternPos : patternPos+plen])
			if c.isMiddleString(skipped) || (pendingPlen == 0 && !removedPostfix) {
				patternPos += plen
				pendingPlen = plen
				continue
			}
		}
		// Both sides skipped optional runes and still diverged:
		// rewind the query skip once and retry from there.
		if pendingSlen > 0 && pendingPlen > 0 &&
			(checkedString != stringPos || checkedPattern != patternPos) {
			checkedString, checkedPattern = stringPos, patternPos
			stringPos -= pendingSlen
			pendingSlen = 0
			continue
		}
		// The query may contain an omitted aza name before the next
		// chiban or number. Jump over each candidate in turn.
		if len(azaPositions) == 0 {
			azaPositions = c.OptionalAzaPositions(str, stringPos)
		}
		if len(azaPositions) > 0 {
			if azaPositions[0] <= stringPos {
				azaPositions = azaPositions[1:]
				continue
			}
			stringPos = azaPositions[0]
			azaPositions = azaPositions[1:]
			pendingSlen = 0
			continue
		}
		return 0
	}

	if removedPostfix {
		if c.abbreviatedPostfix(str, stringPos) < 0 {
			return 0
		}
	}
	stringPos -= pendingSlen
	return stringPos
}

// OptionalStrLen returns the rune length of the optional letter or
// string at the given position, or 0.
func (c *Converter) OptionalStrLen(s []rune, pos int) int {
	if pos >= len(s) {
		return 0
	}
	if strings.ContainsRune(c.middleLetters, s[pos]) {
		return 1
	}
	for _, ms := range c.middleStrings {
		mr := []rune(ms)
		if pos+len(mr) <= len(s) && string(s[pos:pos+len(mr)]) == ms {
			return len(mr)
		}
	}
	return 0
}

// OptionalAzaPositions returns the positions just after each aza name
// candidate that may be omitted at pos: every chiban head within
// maxSkipAzaname runes, and the first digit, which also ends the scan.
// A digit directly at pos yields no candidates.
func (c *Converter) OptionalAzaPositions(s []rune, pos int) []int {
	if pos >= len(s) || isArabicDigit(s[pos]) {
		return nil
	}
	var candidates []int
	for i := 1; i <= c.maxSkipAzaname; i++ {
		if pos+i >= len(s) {
			break
		}
		r := s[pos+i]
		if strings.ContainsRune(c.chibanHeads, r) {
			candidates = append(candidates, pos+i)
		} else if isArabicDigit(r) {
			candidates = append(candidates, pos+i)
			break
		}
	}
	return candidates
}

// abbreviatedPostfix checks whether the query abbreviates a removed
// postfix at pos. 1 means an abbreviation is present (a hyphen, or a
// counting ノ followed by a chiban head or number), 0 means the query
// ended, -1 means the continuation contradicts the abbreviation.
func (c *Converter) abbreviatedPostfix(s []rune, pos int) int {
	if pos >= len(s) {
		return 0
	}
	r := s[pos]
	if IsHyphen(r) {
		return 1
	}
	if r != 'ノ' || pos+1 >= len(s) {
		return 0
	}
	nc := s[pos+1]
	if strings.ContainsRune(c.chibanHeads, nc) {
		return 1
	}
	if v, ok := numericValue(nc); ok && v != 0 {
		return 1
	}
	return -1
}

func (c *Converter) isMiddleString(s string) bool {
	for _, ms := range c.middleStrings {
		if s == ms {
			return true
		}
	}
	return false
}

// StandardizedCandidates enumerates the spelling variants of a
// standardized notation produced by dropping optional letters and
// strings, including the notation itself. The dictionary builder
// registers every variant in the trie so queries that omit them still
// hit.
func (c *Converter) StandardizedCandidates(s string) []string {
	return c.candidates(s, 0)
}

func (c *Converter) candidates(s string, fromPos int) []string {
	out := []string{s}
	letters := []rune(c.middleLetters)
	for pos := fromPos; pos < len(c.middleStrings)+len(letters); pos++ {
		var substr string
		if pos < len(c.middleStrings) {
			substr = c.middleStrings[pos]
		} else {
			substr = string(letters[pos-len(c.middleStrings)])
		}
		if strings.Contains(s, substr) {
			out = append(out, c.candidates(strings.ReplaceAll(s, substr, ""), pos+1)...)
		}
	}
	return out
}
