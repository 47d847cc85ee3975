package util

import (
	"cmp"
	"slices"
	"strings"
)

// naturalTokens splits s into alternating non-digit and digit runs.
// The first token is always a (possibly empty) non-digit run, and a string
// ending in digits gets a trailing empty token, so tokens at the same index
// of two strings always have the same kind.
func naturalTokens(s string) []string {
	tokens := make([]string, 0, 4)
	start := 0
	inDigits := false
	for i := 0; i < len(s); i++ {
		digit := isDigit(s[i])
		if digit != inDigits {
			tokens = append(tokens, s[start:i])
			start = i
			inDigits = digit
		}
	}
	tokens = append(tokens, s[start:])
	if inDigits {
		tokens = append(tokens, "")
	}
	return tokens
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isNumericToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

// compareDigits compares two digit runs by value without overflowing.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// compareNaturalTokens orders two differing tokens. When only one of them is
// numeric the result is -1 if it is the first operand and 0 otherwise; callers
// rely on that fixed direction for stable file ordering.
func compareNaturalTokens(x, y string) int {
	xNum, yNum := isNumericToken(x), isNumericToken(y)
	switch {
	case xNum && yNum:
		if c := compareDigits(x, y); c != 0 {
			return c
		}
		// "01" and "1" have the same value
		return strings.Compare(x, y)
	case !xNum && !yNum:
		return strings.Compare(x, y)
	case xNum:
		return -1
	default:
		return 0
	}
}

// CompareNatural orders strings so that embedded numbers compare by value:
// "file2" sorts before "file12".
func CompareNatural(a, b string) int {
	ta, tb := naturalTokens(a), naturalTokens(b)
	n := max(len(ta), len(tb))
	for i := 0; i < n; i++ {
		if i >= len(ta) || i >= len(tb) {
			return cmp.Compare(len(ta), len(tb))
		}
		if ta[i] == tb[i] {
			continue
		}
		return compareNaturalTokens(ta[i], tb[i])
	}
	return 0
}

// SortNatural sorts names in place using CompareNatural. Equal names keep
// their relative order.
func SortNatural(names []string) {
	slices.SortStableFunc(names, CompareNatural)
}
