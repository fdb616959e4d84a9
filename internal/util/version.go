package util

import (
	"regexp"
	"strconv"
)

var versionSegment = regexp.MustCompile(`\d+`)

// versionSegments splits a free-form version string into its numeric
// segments. Runs of non-digits are separators; a segment that does not fit
// in a uint64 counts as 0.
func versionSegments(v string) []uint64 {
	parts := versionSegment.FindAllString(v, -1)
	segs := make([]uint64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			n = 0
		}
		segs[i] = n
	}
	return segs
}

// CompareVersions compares two loosely structured version strings segment
// by segment, padding the shorter one with zeros.
// Returns -1 if v1 < v2, 0 if they are equal, 1 if v1 > v2.
func CompareVersions(v1, v2 string) int {
	if v1 == v2 {
		return 0
	}
	a, b := versionSegments(v1), versionSegments(v2)
	n := max(len(a), len(b))
	for i := 0; i < n; i++ {
		var x, y uint64
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			if x > y {
				return 1
			}
			return -1
		}
	}
	return 0
}

// IsNewer reports whether candidate is strictly newer than baseline.
// A missing version on either side never counts as newer.
func IsNewer(candidate, baseline string) bool {
	if candidate == "" || baseline == "" {
		return false
	}
	return CompareVersions(candidate, baseline) > 0
}
