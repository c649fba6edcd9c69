// Package daily picks the bias of the day.
//
// Selection is deterministic for a given date string so every device shows
// the same bias on the same day. [Personalized] additionally favors biases
// the learner has not seen or has not reviewed recently, and
// [BalancedRecommendation] steers toward the least explored category.
package daily

import (
	"cmp"
	"errors"
	"slices"
	"time"
	"unicode/utf16"

	"github.com/jonwraymond/biasdaily/content"
	"github.com/jonwraymond/biasdaily/progress"
)

// ErrNoBiases is returned when there is nothing to choose from.
var ErrNoBiases = errors.New("no biases available")

const (
	maxCandidates = 5
	day           = 24 * time.Hour
)

// HashString is a 31-multiplier string hash over UTF-16 code units,
// wrapped to 32 bits and made non-negative.
func HashString(s string) uint32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	if h < 0 {
		return uint32(-int64(h))
	}
	return uint32(h)
}

// Today returns the calendar date of now in loc as YYYY-MM-DD.
// A nil loc means UTC.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(progress.DateLayout)
}

// Pick returns the bias for date using only the date hash.
func Pick(biases []content.Bias, date string) (content.Bias, error) {
	if len(biases) == 0 {
		return content.Bias{}, ErrNoBiases
	}
	return biases[HashString(date)%uint32(len(biases))], nil
}

type candidate struct {
	bias  content.Bias
	score int
}

// Personalized returns a bias for date weighted by the learner's history.
//
// Unseen biases are strongly preferred. Unmastered biases become more
// likely the longer they go unviewed and are suppressed for a day after a
// view. Mastered biases resurface only after two weeks. The top five
// candidates are then chosen between by the date hash, so the result is
// stable for a given date and history.
func Personalized(biases []content.Bias, history []progress.BiasProgress, date string, now time.Time) (content.Bias, error) {
	if len(biases) == 0 {
		return content.Bias{}, ErrNoBiases
	}

	byID := make(map[string]progress.BiasProgress, len(history))
	for _, p := range history {
		byID[p.BiasID] = p
	}

	candidates := make([]candidate, len(biases))
	for i, b := range biases {
		score := 100
		if p, seen := byID[b.ID]; !seen {
			score += 500
		} else {
			daysSince := now.Sub(time.UnixMilli(p.ViewedAt)).Hours() / 24
			if p.Mastered {
				score -= 200
				if daysSince > 14 {
					score += 50
				}
			} else {
				score += 100
				switch {
				case daysSince > 7:
					score += 150
				case daysSince > 3:
					score += 75
				case daysSince < 1:
					score -= 300
				}
			}
			if p.ViewCount > 5 {
				score -= p.ViewCount * 10
			}
		}

		// -50..+49 jitter so equally ranked biases rotate across days.
		score += int(HashString(date+b.ID)%100) - 50
		candidates[i] = candidate{bias: b, score: score}
	}

	slices.SortStableFunc(candidates, func(a, b candidate) int {
		return cmp.Compare(b.score, a.score)
	})

	top := candidates[:min(maxCandidates, len(candidates))]
	return top[HashString(date)%uint32(len(top))].bias, nil
}

// CategoryDistribution counts viewed biases per category. Every known
// category is present in the result.
func CategoryDistribution(biases []content.Bias, history []progress.BiasProgress) map[content.Category]int {
	dist := make(map[content.Category]int, len(content.Categories()))
	for _, c := range content.Categories() {
		dist[c] = 0
	}

	viewed := viewedSet(history)
	for _, b := range biases {
		if viewed[b.ID] {
			dist[b.Category]++
		}
	}
	return dist
}

// BalancedRecommendation suggests the first unviewed bias in the least
// explored category, falling back to any unviewed bias. It reports false
// when everything has been viewed.
func BalancedRecommendation(biases []content.Bias, history []progress.BiasProgress) (content.Bias, bool) {
	dist := CategoryDistribution(biases, history)
	viewed := viewedSet(history)

	least := content.Categories()[0]
	for _, c := range content.Categories()[1:] {
		if dist[c] < dist[least] {
			least = c
		}
	}

	for _, b := range biases {
		if b.Category == least && !viewed[b.ID] {
			return b, true
		}
	}
	for _, b := range biases {
		if !viewed[b.ID] {
			return b, true
		}
	}
	return content.Bias{}, false
}

func viewedSet(history []progress.BiasProgress) map[string]bool {
	viewed := make(map[string]bool, len(history))
	for _, p := range history {
		viewed[p.BiasID] = true
	}
	return viewed
}
