// Package quiz selects the next correct/incorrect image pair of a quiz cycle.
//
// A cycle shows min(correct, incorrect) pairs without repeating an image. The
// shown-ids record grows by exactly two ids per pair and is emptied when the cycle
// is exhausted, which callers receive as a reset rather than an error.
package quiz

import "errors"

// ErrInsufficientData is returned when there is not at least one correct and one
// incorrect image to build a pair from.
var ErrInsufficientData = errors.New("not enough images: need at least one correct and one incorrect image")

// Item is the part of an image the selector looks at.
type Item struct {
	ID        string
	IsCorrect bool
}

// Selection is the outcome of one Select call.
type Selection struct {
	// Reset is set when the cycle was exhausted; Shown is then empty and no pair is set.
	Reset bool

	Correct   Item
	Incorrect Item

	// Shown is the shown-ids record to persist after this call.
	Shown []string

	TotalPairs       int
	RemainingPairs   int
	CurrentPairIndex int
}

// TotalPairs returns min(correct, incorrect) over items.
func TotalPairs(items []Item) int {
	correct, incorrect := 0, 0
	for _, item := range items {
		if item.IsCorrect {
			correct++
		} else {
			incorrect++
		}
	}
	return min(correct, incorrect)
}

// Select picks the first correct and the first incorrect item, in input order, that
// are not in shown. It never modifies shown.
//
// A cycle is reset when every pair has been shown, and also when either kind has no
// unshown item left although pairs exist; the latter covers records made stale by a
// correctness flag edit mid-cycle. The whole cycle restarts in both cases.
func Select(items []Item, shown []string) (Selection, error) {
	total := TotalPairs(items)
	reset := Selection{Reset: true, Shown: []string{}, TotalPairs: total, RemainingPairs: total}

	if total > 0 && len(shown) >= total*2 {
		return reset, nil
	}

	seen := make(map[string]struct{}, len(shown))
	for _, id := range shown {
		seen[id] = struct{}{}
	}

	var correct, incorrect *Item
	for i := range items {
		if _, ok := seen[items[i].ID]; ok {
			continue
		}
		if items[i].IsCorrect && correct == nil {
			correct = &items[i]
		}
		if !items[i].IsCorrect && incorrect == nil {
			incorrect = &items[i]
		}
		if correct != nil && incorrect != nil {
			break
		}
	}

	if correct == nil || incorrect == nil {
		if total > 0 {
			return reset, nil
		}
		return Selection{}, ErrInsufficientData
	}

	next := make([]string, 0, len(shown)+2)
	next = append(next, shown...)
	next = append(next, correct.ID, incorrect.ID)

	current := len(next) / 2
	return Selection{
		Correct:          *correct,
		Incorrect:        *incorrect,
		Shown:            next,
		TotalPairs:       total,
		RemainingPairs:   total - current,
		CurrentPairIndex: current,
	}, nil
}
