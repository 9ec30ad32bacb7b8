package address

import (
	"fmt"
	"strconv"
	"strings"
)

// CleanNumeric folds full-width digits to ASCII and strips every
// non-digit rune. Code-based lookups accept sloppy input this way.
func CleanNumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= '０' && r <= '９':
			b.WriteRune('0' + (r - '０'))
		}
	}
	return b.String()
}

// LocalAuthorityCode appends the check digit to a 5-digit JIS X 0402
// municipality code, producing the local-government code. The check
// digit is 11 minus the weighted digit sum modulo 11, weights running
// 6 down to 2, keeping only the last digit when the sum reaches 11.
func LocalAuthorityCode(jisCode string) (string, error) {
	if len(jisCode) != 5 {
		return "", fmt.Errorf("jis code must be a 5-digit string, got %q", jisCode)
	}
	sum := 0
	for i := 0; i < 5; i++ {
		d := int(jisCode[i] - '0')
		if d < 0 || d > 9 {
			return "", fmt.Errorf("jis code must be numeric, got %q", jisCode)
		}
		sum += d * (6 - i)
	}
	var check string
	if sum < 11 {
		check = strconv.Itoa(11 - sum)
	} else {
		check = strconv.Itoa((11 - sum%11) % 10)
	}
	return jisCode + check, nil
}
