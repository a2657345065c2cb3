// Package review implements the study workflow: due-card selection and
// Leitner-box scheduling.
package review

import (
	"time"

	"flashdeck/internal/core"
)

// Grade is the learner's self-assessment of one card review.
type Grade string

const (
	GradeAgain Grade = "again"
	GradeHard  Grade = "hard"
	GradeGood  Grade = "good"
	GradeEasy  Grade = "easy"
)

// ParseGrade validates a grade string from the API.
func ParseGrade(s string) (Grade, error) {
	switch Grade(s) {
	case GradeAgain, GradeHard, GradeGood, GradeEasy:
		return Grade(s), nil
	default:
		return "", core.NewValidationError("invalid grade: " + s + " (valid: again, hard, good, easy)")
	}
}

// boxIntervals maps a Leitner box to the wait before the next review.
// Box N doubles box N-1, so well-known cards drop out of the daily queue.
var boxIntervals = map[int]time.Duration{
	1: 24 * time.Hour,
	2: 2 * 24 * time.Hour,
	3: 4 * 24 * time.Hour,
	4: 8 * 24 * time.Hour,
	5: 16 * 24 * time.Hour,
}

// Apply moves a card through the boxes according to the grade and stamps the
// next due date. A failed card falls back to box 1 and counts as a lapse.
func Apply(card *core.Card, grade Grade, now time.Time) {
	switch grade {
	case GradeAgain:
		if card.Box > core.MinBox {
			card.Lapses++
		}
		card.Box = core.MinBox
	case GradeHard:
		// stay in place
	case GradeGood:
		card.Box = clampBox(card.Box + 1)
	case GradeEasy:
		card.Box = clampBox(card.Box + 2)
	}

	card.Reviews++
	card.DueAt = now.Add(boxIntervals[card.Box]).UTC()
	card.UpdatedAt = now.UTC()
}

func clampBox(box int) int {
	if box < core.MinBox {
		return core.MinBox
	}
	if box > core.MaxBox {
		return core.MaxBox
	}
	return box
}
