/*
grade.go - Derived attendance grades

PURPOSE:
  Recomputes attendance percentage and letter grade from ledger counts.
  The GradeSummary row is a denormalized cache: recomputed on every read,
  upserted every time, never a source of truth. Concurrent ledger writes
  during a recomputation can make the cached value slightly stale; the
  next read recomputes it.

PRECISION:
  Percentage is decimal arithmetic, not float64, so threshold comparisons
  (90/80/70/60/50) are exact. Zero attendance days yields percentage 0 and
  grade F, not an error.

SEE ALSO:
  - store.go: CountAttendance, GradeStore
*/
package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// gradeThresholds maps minimum percentage to letter, highest first.
var gradeThresholds = []struct {
	min    decimal.Decimal
	letter string
}{
	{decimal.NewFromInt(90), "A"},
	{decimal.NewFromInt(80), "B"},
	{decimal.NewFromInt(70), "C"},
	{decimal.NewFromInt(60), "D"},
	{decimal.NewFromInt(50), "E"},
}

// LetterFor returns the letter grade for a percentage.
func LetterFor(pct decimal.Decimal) string {
	for _, t := range gradeThresholds {
		if pct.GreaterThanOrEqual(t.min) {
			return t.letter
		}
	}
	return "F"
}

// Grader recomputes and caches grade summaries.
type Grader struct {
	attendance AttendanceStore
	grades     GradeStore
	clock      Clock
}

func NewGrader(attendance AttendanceStore, grades GradeStore, clock Clock) *Grader {
	return &Grader{attendance: attendance, grades: grades, clock: clock}
}

// Compute recomputes the summary for one person from ledger counts and
// upserts the cache. A person with no attendance records grades F at 0%.
func (g *Grader) Compute(ctx context.Context, personID string) (*GradeSummary, error) {
	counts, err := g.attendance.CountAttendance(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("count attendance: %w", err)
	}

	pct := decimal.Zero
	if counts.Total > 0 {
		pct = decimal.NewFromInt(int64(counts.Present)).
			Div(decimal.NewFromInt(int64(counts.Total))).
			Mul(hundred)
	}

	summary := GradeSummary{
		PersonID:     personID,
		TotalDays:    counts.Total,
		TotalPresent: counts.Present,
		TotalAbsent:  counts.Absent,
		TotalLeave:   counts.Leave,
		Percentage:   pct,
		Letter:       LetterFor(pct),
		UpdatedAt:    g.clock.Now(),
	}
	if err := g.grades.UpsertGrade(ctx, summary); err != nil {
		return nil, fmt.Errorf("upsert grade: %w", err)
	}
	return &summary, nil
}

// ComputeFailure records one person whose recomputation failed during a
// batch run.
type ComputeFailure struct {
	PersonID string
	Err      error
}

// ComputeAll applies Compute to each person independently: a failure for
// one person is recorded and logged but never aborts the rest.
func (g *Grader) ComputeAll(ctx context.Context, personIDs []string) ([]GradeSummary, []ComputeFailure) {
	var (
		summaries []GradeSummary
		failures  []ComputeFailure
	)
	for _, id := range personIDs {
		s, err := g.Compute(ctx, id)
		if err != nil {
			log.Printf("[Grade] compute for %s: %v", id, err)
			failures = append(failures, ComputeFailure{PersonID: id, Err: err})
			continue
		}
		summaries = append(summaries, *s)
	}
	return summaries, failures
}
