package itaiji

import "strings"

// numericValue returns the numeric value of a single rune, covering
// ASCII digits, full-width digits, kansuji digits and the positional
// multipliers 十, 百, 千, 万. ok is false for non-numeric runes.
func numericValue(r rune) (val int, ok bool) {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0'), true
	case r >= '０' && r <= '９':
		return int(r - '０'), true
	}
	if i := strings.IndexRune(kansujiDigits, r); i >= 0 {
		// kansujiDigits is ordered 〇一二...九, three bytes per rune.
		return i / 3, true
	}
	switch r {
	case '十':
		return 10, true
	case '百':
		return 100, true
	case '千':
		return 1000, true
	case '万':
		return 10000, true
	}
	return 0, false
}

func isArabicDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= '０' && r <= '９')
}

func isKansujiDigit(r rune) bool {
	return strings.ContainsRune(kansujiDigits, r)
}

func isMultiplier(r rune) bool {
	return r == '十' || r == '百' || r == '千' || r == '万'
}

// IsNumeric reports whether r can start a number token: an arabic digit
// in either width, a kansuji digit or a positional multiplier.
func IsNumeric(r rune) bool {
	_, ok := numericValue(r)
	return ok
}

// IsHyphen reports whether r is one of the separator runes folded to
// '-' during standardization.
func IsHyphen(r rune) bool {
	return strings.ContainsRune(hyphens, r)
}

// IsChibanHead reports whether r can begin a chiban designation.
func IsChibanHead(r rune) bool {
	return strings.ContainsRune(chibanHeads, r)
}

// GetNumber parses a number written in arabic digits, kansuji or a mix
// of both from the head of s. It returns the parsed value and the
// number of runes consumed; consumed is 0 when s does not start with a
// number.
//
// When expected is positive, parsing stops once the accumulated value
// reaches expected, but never inside a run of arabic digits. Kansuji
// numbers can stop at a place-value boundary: 二十四 against an
// expected 2 yields 2 after a single rune, while 24 always parses as
// 24 whatever the caller expects.
func GetNumber(s []rune, expected int) (n int, consumed int) {
	total := 0
	curval := 0
	// mode tracks the script of the digits seen so far:
	// -1 undecided, 0 arabic, 1 kansuji.
	mode := -1
	pos := 0
	preArabic := false
loop:
	for pos < len(s) {
		r := s[pos]
		arabic := isArabicDigit(r)
		if (!arabic || !preArabic) && expected > 0 && total+curval >= expected {
			break
		}
		k, _ := numericValue(r)
		switch {
		case arabic && mode != 1:
			curval = curval*10 + k
			mode = 0
		case isMultiplier(r):
			if curval == 0 {
				curval = 1
			}
			if total%k > 0 {
				// 二千四十五万 reads as (2045)万, so the
				// accumulated total shifts as a whole.
				total *= k
			}
			total += curval * k
			curval = 0
		case mode == 0:
			// Arabic digits followed by anything else end the number.
			break loop
		case isKansujiDigit(r):
			if total+curval == 0 && k == 0 {
				// A lone 〇 is a number on its own.
				pos++
				break loop
			}
			curval = curval*10 + k
			mode = 1
		default:
			break loop
		}
		pos++
		preArabic = arabic
	}
	return total + curval, pos
}
