package util

import (
	"regexp"
	"strconv"
	"strings"
)

var nameTokenizer = regexp.MustCompile(`(\d+|\D+)`)

type nameToken struct {
	str   string
	num   uint64
	isNum bool
}

func tokenizeName(s string) []nameToken {
	parts := nameTokenizer.FindAllString(s, -1)
	tokens := make([]nameToken, len(parts))
	for i, p := range parts {
		if num, err := strconv.ParseUint(p, 10, 64); err == nil {
			tokens[i] = nameToken{num: num, isNum: true}
		} else {
			tokens[i] = nameToken{str: strings.ToLower(p)}
		}
	}
	return tokens
}

// NaturalCompare orders names case-insensitively with embedded numbers
// compared by value, so "patch 2" sorts before "patch 10".
// Returns -1, 0 or 1. Names that differ only in case compare equal.
func NaturalCompare(s1, s2 string) int {
	t1 := tokenizeName(s1)
	t2 := tokenizeName(s2)

	for i := 0; i < min(len(t1), len(t2)); i++ {
		a, b := t1[i], t2[i]
		switch {
		case a.isNum && !b.isNum:
			return -1
		case !a.isNum && b.isNum:
			return 1
		case a.isNum:
			if a.num != b.num {
				if a.num < b.num {
					return -1
				}
				return 1
			}
		default:
			if c := strings.Compare(a.str, b.str); c != 0 {
				return c
			}
		}
	}

	switch {
	case len(t1) < len(t2):
		return -1
	case len(t1) > len(t2):
		return 1
	}
	return 0
}
