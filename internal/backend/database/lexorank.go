package database

import "strings"

const (
	// Alphabet bounds used to compute ranks lexicographically.
	minChar = '0'
	maxChar = 'z'
	// Rank given to the very first image.
	midChar = 'U'
)

// NextRank returns a rank that sorts after prev. The last character is bumped while
// it has room below maxChar; otherwise midChar is appended, so ranks grow slowly
// when images are appended in creation order.
func NextRank(prev string) string {
	if prev == "" {
		return string(midChar)
	}
	r := []rune(prev)
	last := r[len(r)-1]
	if last < maxChar {
		r[len(r)-1] = last + 1
		return string(r)
	}
	return prev + string(midChar)
}

// isBetween reports whether rank lies strictly between prev and next.
// Empty bounds are open; with both bounds empty it returns false.
func isBetween(prev, rank, next string) bool {
	if prev == "" && next == "" {
		return false
	}
	if prev == "" {
		return strings.Compare(rank, next) < 0
	}
	if next == "" {
		return strings.Compare(prev, rank) < 0
	}
	return strings.Compare(prev, rank) < 0 && strings.Compare(rank, next) < 0
}

// BetweenRanks computes a rank strictly between prev and next. An empty next means
// "no upper bound" and an empty prev "no lower bound".
//
// It walks both bounds character by character and picks a midpoint as soon as there
// is room; where there is none it copies the lower bound character and descends.
func BetweenRanks(prev, next string) string {
	if next == "" {
		return NextRank(prev)
	}

	p := []rune(prev)
	n := []rune(next)

	var out []rune
	for i := 0; ; i++ {
		lo := rune(minChar)
		if i < len(p) {
			lo = p[i]
		}
		hi := rune(maxChar)
		if i < len(n) {
			hi = n[i]
		}

		if lo == hi {
			out = append(out, lo)
			continue
		}
		if lo+1 < hi {
			out = append(out, lo+(hi-lo)/2)
			return string(out)
		}
		out = append(out, lo)
	}
}

// Reorder returns the minimal set of rank changes that puts the ids in the given
// order. existing maps id to its current rank; only ids whose rank must change are
// present in the result.
func Reorder(existing map[string]string, order []string) map[string]string {
	updates := make(map[string]string, len(order))

	rankOf := func(id string) string {
		if id == "" {
			return ""
		}
		if r, ok := updates[id]; ok {
			return r
		}
		return existing[id]
	}

	for i, id := range order {
		var prevID, nextID string
		if i > 0 {
			prevID = order[i-1]
		}
		if i < len(order)-1 {
			nextID = order[i+1]
		}

		prevRank := rankOf(prevID)
		nextRank := rankOf(nextID)
		if cur := existing[id]; cur != "" && isBetween(prevRank, cur, nextRank) {
			continue
		}
		updates[id] = BetweenRanks(prevRank, nextRank)
	}

	return updates
}
