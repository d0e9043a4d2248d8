package statistics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int          { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestEstimateOneRepMax(t *testing.T) {
	assert.InDelta(t, 116.666, EstimateOneRepMax(100, 5), 0.001)
	assert.InDelta(t, 100, EstimateOneRepMax(100, 0), 0.001)
	assert.InDelta(t, 133.333, EstimateOneRepMax(100, 10), 0.001)
}

func TestParseTimeframe(t *testing.T) {
	for _, valid := range []string{"4weeks", "8weeks", "12weeks", "1year"} {
		tf, err := ParseTimeframe(valid)
		require.NoError(t, err)
		assert.Equal(t, Timeframe(valid), tf)
	}

	tf, err := ParseTimeframe("")
	require.NoError(t, err)
	assert.Equal(t, TimeframeTwelveWeeks, tf)

	_, err = ParseTimeframe("2days")
	assert.Error(t, err)
}

func TestTimeframeRangeFor(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	start, end := TimeframeFourWeeks.RangeFor(now)
	assert.Equal(t, time.Date(2025, 5, 18, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 6, 15, 23, 59, 59, 0, time.UTC), end)

	start, _ = TimeframeOneYear.RangeFor(now)
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), start)
}

func TestOneRepMaxProgression(t *testing.T) {
	day1 := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 5, 18, 0, 0, 0, time.UTC)

	sets := []SetSample{
		{SessionStartedAt: day1, Completed: true, Reps: intPtr(5), WeightKg: floatPtr(100)},
		{SessionStartedAt: day1, Completed: true, Reps: intPtr(8), WeightKg: floatPtr(90)},
		{SessionStartedAt: day2, Completed: true, Reps: intPtr(3), WeightKg: floatPtr(110)},
		// Incomplete and weightless sets must not contribute.
		{SessionStartedAt: day2, Completed: false, Reps: intPtr(1), WeightKg: floatPtr(200)},
		{SessionStartedAt: day2, Completed: true, Reps: intPtr(12)},
	}

	points := OneRepMaxProgression(sets)
	require.Len(t, points, 2)

	assert.Equal(t, "2025-03-03", points[0].Date)
	// 100x(1+5/30)=116.67 beats 90x(1+8/30)=114.0 on the same day.
	assert.Equal(t, 116.7, points[0].OneRepMax)

	assert.Equal(t, "2025-03-05", points[1].Date)
	assert.Equal(t, 121.0, points[1].OneRepMax)
}

func TestOneRepMaxProgressionEmptyInput(t *testing.T) {
	assert.Empty(t, OneRepMaxProgression(nil))
	assert.Empty(t, OneRepMaxProgression([]SetSample{
		{SessionStartedAt: time.Now(), Completed: false},
	}))
}

func TestSetVolume(t *testing.T) {
	v, ok := SetVolume(SetSample{Reps: intPtr(10), WeightKg: floatPtr(50)})
	require.True(t, ok)
	assert.Equal(t, 500.0, v)

	v, ok = SetVolume(SetSample{Reps: intPtr(12)})
	require.True(t, ok)
	assert.Equal(t, 12.0, v)

	v, ok = SetVolume(SetSample{DurationSeconds: intPtr(60)})
	require.True(t, ok)
	assert.Equal(t, 60.0, v)

	_, ok = SetVolume(SetSample{})
	assert.False(t, ok)
}

func TestWeeklyVolume(t *testing.T) {
	// Wednesday and Friday of ISO week 2025-W23, Monday of W24.
	wed := time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)
	fri := time.Date(2025, 6, 6, 17, 0, 0, 0, time.UTC)
	nextMon := time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC)

	sets := []SetSample{
		{SessionStartedAt: wed, Completed: true, Reps: intPtr(10), WeightKg: floatPtr(50)},
		{SessionStartedAt: fri, Completed: true, Reps: intPtr(12)},
		{SessionStartedAt: fri, Completed: true, DurationSeconds: intPtr(60)},
		{SessionStartedAt: nextMon, Completed: true, Reps: intPtr(5), WeightKg: floatPtr(80)},
		// Excluded: incomplete, and completed with no measurable value.
		{SessionStartedAt: wed, Completed: false, Reps: intPtr(10), WeightKg: floatPtr(100)},
		{SessionStartedAt: wed, Completed: true},
	}

	points := WeeklyVolume(sets)
	require.Len(t, points, 2)

	assert.Equal(t, "2025-W23", points[0].Week)
	assert.Equal(t, "2025-06-02", points[0].WeekStart)
	assert.Equal(t, 572.0, points[0].TotalVolume)
	assert.Equal(t, 3, points[0].SetCount)

	assert.Equal(t, "2025-W24", points[1].Week)
	assert.Equal(t, "2025-06-09", points[1].WeekStart)
	assert.Equal(t, 400.0, points[1].TotalVolume)
	assert.Equal(t, 1, points[1].SetCount)
}

func TestWeeklyVolumeSundayBelongsToPrecedingMonday(t *testing.T) {
	sun := time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)
	points := WeeklyVolume([]SetSample{
		{SessionStartedAt: sun, Completed: true, Reps: intPtr(10), WeightKg: floatPtr(40)},
	})
	require.Len(t, points, 1)
	assert.Equal(t, "2025-06-02", points[0].WeekStart)
	assert.Equal(t, "2025-W23", points[0].Week)
}
