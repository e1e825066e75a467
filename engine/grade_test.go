package engine_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/engine"
	"github.com/warp/attendance-engine/engine/store"
)

// =============================================================================
// LETTER THRESHOLDS
// =============================================================================

func TestLetterFor_Thresholds(t *testing.T) {
	// GIVEN: The 90/80/70/60/50 grade boundaries
	// WHEN: Grading percentages on and around each boundary
	// THEN: Boundaries are inclusive for the higher grade

	cases := []struct {
		pct    string
		letter string
	}{
		{"100", "A"},
		{"90", "A"},
		{"89.99", "B"},
		{"80", "B"},
		{"79.99", "C"},
		{"70", "C"},
		{"60", "D"},
		{"50", "E"},
		{"49.99", "F"},
		{"0", "F"},
	}
	for _, tc := range cases {
		pct, err := decimal.NewFromString(tc.pct)
		require.NoError(t, err)
		assert.Equal(t, tc.letter, engine.LetterFor(pct), "pct %s", tc.pct)
	}
}

// =============================================================================
// COMPUTE
// =============================================================================

func newTestGrader(t *testing.T) (*engine.Grader, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return engine.NewGrader(mem, mem, testClock()), mem
}

func TestGrader_Compute_CountsAndPercentage(t *testing.T) {
	// GIVEN: 3 present, 1 absent, 1 leave day
	// WHEN: Computing the grade
	// THEN: 60% presence grades D, and the summary is cached

	grader, mem := newTestGrader(t)
	ctx := context.Background()

	seedAttendance(t, mem, "u1", "2024-06-01", engine.StatusPresent)
	seedAttendance(t, mem, "u1", "2024-06-02", engine.StatusPresent)
	seedAttendance(t, mem, "u1", "2024-06-03", engine.StatusPresent)
	seedAttendance(t, mem, "u1", "2024-06-04", engine.StatusAbsent)
	seedAttendance(t, mem, "u1", "2024-06-05", engine.StatusLeave)

	summary, err := grader.Compute(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, 5, summary.TotalDays)
	assert.Equal(t, 3, summary.TotalPresent)
	assert.Equal(t, 1, summary.TotalAbsent)
	assert.Equal(t, 1, summary.TotalLeave)
	assert.True(t, summary.Percentage.Equal(decimal.NewFromInt(60)),
		"got %s", summary.Percentage)
	assert.Equal(t, "D", summary.Letter)

	cached, err := mem.GetGrade(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "D", cached.Letter)
}

func TestGrader_Compute_ExactBoundary(t *testing.T) {
	// GIVEN: 9 of 10 days present
	// WHEN: Computing the grade
	// THEN: Exactly 90% grades A, not B

	grader, mem := newTestGrader(t)

	for i := 1; i <= 9; i++ {
		seedAttendance(t, mem, "u1", fmt.Sprintf("2024-06-%02d", i), engine.StatusPresent)
	}
	seedAttendance(t, mem, "u1", "2024-06-10", engine.StatusAbsent)

	summary, err := grader.Compute(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, summary.Percentage.Equal(decimal.NewFromInt(90)))
	assert.Equal(t, "A", summary.Letter)
}

func TestGrader_Compute_NonTerminatingDivision(t *testing.T) {
	// GIVEN: 1 of 3 days present
	// WHEN: Computing the grade
	// THEN: The repeating fraction stays above zero and below 50, grading F

	grader, mem := newTestGrader(t)

	seedAttendance(t, mem, "u1", "2024-06-01", engine.StatusPresent)
	seedAttendance(t, mem, "u1", "2024-06-02", engine.StatusAbsent)
	seedAttendance(t, mem, "u1", "2024-06-03", engine.StatusAbsent)

	summary, err := grader.Compute(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, summary.Percentage.GreaterThan(decimal.NewFromInt(33)))
	assert.True(t, summary.Percentage.LessThan(decimal.NewFromInt(34)))
	assert.Equal(t, "F", summary.Letter)
}

func TestGrader_Compute_NoRecords_ZeroPercentF(t *testing.T) {
	// GIVEN: A person with no attendance records at all
	// WHEN: Computing the grade
	// THEN: 0% and F, not an error

	grader, _ := newTestGrader(t)

	summary, err := grader.Compute(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalDays)
	assert.True(t, summary.Percentage.IsZero())
	assert.Equal(t, "F", summary.Letter)
}

func TestGrader_Compute_RecomputesAfterLedgerChange(t *testing.T) {
	// GIVEN: A cached grade from one present day
	// WHEN: An absent day lands and the grade is recomputed
	// THEN: The cache reflects the new counts

	grader, mem := newTestGrader(t)
	ctx := context.Background()

	seedAttendance(t, mem, "u1", "2024-06-01", engine.StatusPresent)
	first, err := grader.Compute(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "A", first.Letter)

	seedAttendance(t, mem, "u1", "2024-06-02", engine.StatusAbsent)
	second, err := grader.Compute(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, second.TotalDays)
	assert.True(t, second.Percentage.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "E", second.Letter)
}

// =============================================================================
// COMPUTE ALL
// =============================================================================

// failingCounter wraps the memory store and fails CountAttendance for one
// person, to exercise per-person isolation.
type failingCounter struct {
	*store.Memory
	failFor string
}

func (f *failingCounter) CountAttendance(ctx context.Context, personID string) (engine.AttendanceCounts, error) {
	if personID == f.failFor {
		return engine.AttendanceCounts{}, fmt.Errorf("storage offline for %s", personID)
	}
	return f.Memory.CountAttendance(ctx, personID)
}

func TestGrader_ComputeAll_IsolatesFailures(t *testing.T) {
	// GIVEN: Three people, the middle one's counts unreadable
	// WHEN: Computing all grades
	// THEN: Two summaries and one recorded failure; the batch never aborts

	mem := store.NewMemory()
	seedAttendance(t, mem, "u1", "2024-06-01", engine.StatusPresent)
	seedAttendance(t, mem, "u3", "2024-06-01", engine.StatusAbsent)

	grader := engine.NewGrader(&failingCounter{Memory: mem, failFor: "u2"}, mem, testClock())

	summaries, failures := grader.ComputeAll(context.Background(), []string{"u1", "u2", "u3"})
	require.Len(t, summaries, 2)
	require.Len(t, failures, 1)
	assert.Equal(t, "u2", failures[0].PersonID)
	assert.Error(t, failures[0].Err)
}
