package track

import (
	"regexp"
	"strconv"
	"strings"
)

var digitRuns = regexp.MustCompile(`\d+`)

// ParseVersion tokenizes a version string into its integer components.
// Every run of decimal digits becomes one component; everything between
// runs is treated as a separator. "1.2.3" -> [1 2 3], "1.2-rc3" -> [1 2 3].
// A string with no digits parses as [0].
func ParseVersion(v string) []int {
	runs := digitRuns.FindAllString(v, -1)
	if len(runs) == 0 {
		return []int{0}
	}
	parts := make([]int, 0, len(runs))
	for _, run := range runs {
		n, err := strconv.Atoi(run)
		if err != nil {
			// Absurdly long digit run; skip it rather than fail.
			continue
		}
		parts = append(parts, n)
	}
	if len(parts) == 0 {
		return []int{0}
	}
	return parts
}

// CompareVersions compares two version strings element-wise over their
// integer components, zero-padding the shorter sequence. Returns -1, 0 or 1.
//
// This is a deliberate simplification, not semantic-version precedence:
// pre-release qualifiers and build metadata are ignored. "1.9" < "1.10",
// and "2.0" == "2.0.0".
func CompareVersions(a, b string) int {
	pa, pb := ParseVersion(a), ParseVersion(b)
	n := len(pa)
	if len(pb) > n {
		n = len(pb)
	}
	for i := 0; i < n; i++ {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		if x < y {
			return -1
		}
		if x > y {
			return 1
		}
	}
	return 0
}

// UpdateAvailable reports whether latest is strictly newer than installed.
// Ties favor "no update"; missing data never counts as an update.
func UpdateAvailable(installed, latest string) bool {
	if installed == "" || latest == "" {
		return false
	}
	return CompareVersions(installed, latest) < 0
}

// NormalizeVersion trims whitespace and strips a leading "v"/"V" marker
// (release tags are commonly published as "v1.2.3").
func NormalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > 0 && (v[0] == 'v' || v[0] == 'V') {
		v = v[1:]
	}
	return v
}
