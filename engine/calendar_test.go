package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/engine"
)

// =============================================================================
// DAY BOUNDARIES
// =============================================================================

func TestDayOf_UsesConfiguredLocation(t *testing.T) {
	// GIVEN: An instant that is June 10 23:00 UTC
	// WHEN: Resolving the calendar day in UTC and in a UTC+5 zone
	// THEN: The same instant falls on different calendar days

	karachi, err := time.LoadLocation("Asia/Karachi")
	require.NoError(t, err)

	instant := time.Date(2024, time.June, 10, 23, 0, 0, 0, time.UTC)

	assert.True(t, engine.DayOf(instant, time.UTC).Equal(engine.MustParseDay("2024-06-10")))
	assert.True(t, engine.DayOf(instant, karachi).Equal(engine.MustParseDay("2024-06-11")))
}

func TestDay_ParseAndString_RoundTrip(t *testing.T) {
	d, err := engine.ParseDay("2024-06-10")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10", d.String())

	_, err = engine.ParseDay("10/06/2024")
	assert.Error(t, err)
}

func TestDay_Arithmetic(t *testing.T) {
	d := engine.MustParseDay("2024-06-10")

	assert.True(t, d.AddDays(1).Equal(engine.MustParseDay("2024-06-11")))
	assert.True(t, d.AddDays(-10).Equal(engine.MustParseDay("2024-05-31")))
	assert.True(t, d.AddMonths(-1).Equal(engine.MustParseDay("2024-05-10")))
	assert.True(t, d.AddYears(-1).Equal(engine.MustParseDay("2023-06-10")))
}

// =============================================================================
// TIME OF DAY
// =============================================================================

func TestTimeOfDay_Parse(t *testing.T) {
	td, err := engine.ParseTimeOfDay("07:00")
	require.NoError(t, err)
	assert.Equal(t, engine.TimeOfDay{Hour: 7}, td)

	td, err = engine.ParseTimeOfDay("23:55")
	require.NoError(t, err)
	assert.Equal(t, engine.TimeOfDay{Hour: 23, Minute: 55}, td)

	_, err = engine.ParseTimeOfDay("24:00")
	assert.Error(t, err)
	_, err = engine.ParseTimeOfDay("noon")
	assert.Error(t, err)
}

func TestTimeOfDay_On_ProducesLocalInstant(t *testing.T) {
	// GIVEN: The 07:00 cutoff and a calendar day
	// WHEN: Resolving the instant in a UTC+5 zone
	// THEN: The instant is 07:00 local, 02:00 UTC

	karachi, err := time.LoadLocation("Asia/Karachi")
	require.NoError(t, err)

	cutoff := engine.TimeOfDay{Hour: 7}
	at := cutoff.On(engine.MustParseDay("2024-06-10"), karachi)

	assert.Equal(t, time.Date(2024, time.June, 10, 7, 0, 0, 0, karachi).Unix(), at.Unix())
	assert.Equal(t, 2, at.UTC().Hour())
}

func TestTimeOfDay_CronSpec(t *testing.T) {
	assert.Equal(t, "0 8 * * *", engine.TimeOfDay{Hour: 8}.CronSpec())
	assert.Equal(t, "55 23 * * *", engine.TimeOfDay{Hour: 23, Minute: 55}.CronSpec())
}
