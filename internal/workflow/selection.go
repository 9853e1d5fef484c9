package workflow

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	selectionShape = regexp.MustCompile(`^[\d\s,]+$`)
	digitRuns      = regexp.MustCompile(`\d+`)
)

// IsSelection reports whether a message is a numeric selection: after
// trimming it holds only digits, commas and spaces, with at least one digit.
// Any letter keeps free text out of this path.
func IsSelection(text string) bool {
	cleaned := strings.TrimSpace(text)
	return cleaned != "" &&
		selectionShape.MatchString(cleaned) &&
		strings.ContainsAny(cleaned, "0123456789")
}

// ParseSelection extracts the distinct 1-based indices mentioned in text,
// ascending, dropping anything outside [1, batchSize]. Duplicates collapse.
func ParseSelection(text string, batchSize int) []int {
	seen := map[int]struct{}{}
	for _, run := range digitRuns.FindAllString(text, -1) {
		n, err := strconv.Atoi(run)
		if err != nil || n < 1 || n > batchSize {
			continue
		}
		seen[n] = struct{}{}
	}

	indices := make([]int, 0, len(seen))
	for n := range seen {
		indices = append(indices, n)
	}
	sort.Ints(indices)
	return indices
}
