// Package statistics computes training aggregates from raw workout-set data.
// All functions are pure single-pass computations: a malformed set is skipped,
// never an error, so the result is at worst empty.
package statistics

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const (
	// CacheKeyOneRepMax and CacheKeyVolume are formatted with
	// (userID, exerciseID, timeframe).
	CacheKeyOneRepMax = "statistics:1rm:%d:%d:%s"
	CacheKeyVolume    = "statistics:volume:%d:%d:%s"
	CacheExpiration   = 10 * time.Minute
)

// Timeframe selects the window a statistics query covers.
type Timeframe string

const (
	TimeframeFourWeeks   Timeframe = "4weeks"
	TimeframeEightWeeks  Timeframe = "8weeks"
	TimeframeTwelveWeeks Timeframe = "12weeks"
	TimeframeOneYear     Timeframe = "1year"
)

// ParseTimeframe validates a query-string timeframe. The empty string
// defaults to twelve weeks.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case TimeframeFourWeeks, TimeframeEightWeeks, TimeframeTwelveWeeks, TimeframeOneYear:
		return Timeframe(s), nil
	case "":
		return TimeframeTwelveWeeks, nil
	default:
		return "", fmt.Errorf("invalid timeframe %q", s)
	}
}

// RangeFor returns the UTC [start, end] window the timeframe covers, ending
// at the end of the reference day.
func (tf Timeframe) RangeFor(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, time.UTC)
	var start time.Time
	switch tf {
	case TimeframeFourWeeks:
		start = end.AddDate(0, 0, -28)
	case TimeframeEightWeeks:
		start = end.AddDate(0, 0, -56)
	case TimeframeOneYear:
		start = end.AddDate(-1, 0, 0)
	default:
		start = end.AddDate(0, 0, -84)
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	return start, end
}

// SetSample is one recorded set with its session's start time. Nil fields
// mean the client never captured the value.
type SetSample struct {
	SessionStartedAt time.Time
	Completed        bool
	Reps             *int
	WeightKg         *float64
	DurationSeconds  *int
}

// OneRepMaxPoint is the best estimated single-rep weight on one training day.
type OneRepMaxPoint struct {
	Date      string  `json:"date"`
	OneRepMax float64 `json:"oneRepMax"`
}

// WeeklyVolumePoint is the summed training volume of one ISO week.
type WeeklyVolumePoint struct {
	Week        string  `json:"week"`
	WeekStart   string  `json:"weekStart"`
	TotalVolume float64 `json:"totalVolume"`
	SetCount    int     `json:"setCount"`
}

// EstimateOneRepMax applies the Lombardi formula: weight x (1 + reps/30).
func EstimateOneRepMax(weightKg float64, reps int) float64 {
	return weightKg * (1 + float64(reps)/30)
}

// OneRepMaxProgression reduces sets to the best estimated 1RM per
// session-day, sorted ascending by date and rounded to one decimal. Sets
// that are incomplete or lack a weight or rep count do not contribute.
func OneRepMaxProgression(sets []SetSample) []OneRepMaxPoint {
	best := map[string]float64{}
	for _, set := range sets {
		if !set.Completed || set.WeightKg == nil || set.Reps == nil || *set.Reps <= 0 {
			continue
		}
		oneRM := EstimateOneRepMax(*set.WeightKg, *set.Reps)
		day := set.SessionStartedAt.UTC().Format("2006-01-02")
		if oneRM > best[day] {
			best[day] = oneRM
		}
	}

	points := make([]OneRepMaxPoint, 0, len(best))
	for day, oneRM := range best {
		points = append(points, OneRepMaxPoint{Date: day, OneRepMax: round1(oneRM)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points
}

// SetVolume is the volume contribution of one completed set: reps x weight
// when both are present, bare reps for bodyweight work, elapsed seconds for
// timed work. The second return is false for a set with none of these.
func SetVolume(set SetSample) (float64, bool) {
	switch {
	case set.Reps != nil && set.WeightKg != nil:
		return float64(*set.Reps) * *set.WeightKg, true
	case set.Reps != nil:
		return float64(*set.Reps), true
	case set.DurationSeconds != nil:
		return float64(*set.DurationSeconds), true
	default:
		return 0, false
	}
}

// WeeklyVolume buckets completed sets into ISO weeks (Monday start, UTC) by
// their session's start date and sums their volume, sorted ascending by week.
func WeeklyVolume(sets []SetSample) []WeeklyVolumePoint {
	type bucket struct {
		start  time.Time
		volume float64
		count  int
	}
	buckets := map[string]*bucket{}

	for _, set := range sets {
		if !set.Completed {
			continue
		}
		volume, ok := SetVolume(set)
		if !ok {
			continue
		}
		start := isoWeekStart(set.SessionStartedAt.UTC())
		year, week := start.ISOWeek()
		key := fmt.Sprintf("%d-W%02d", year, week)
		b, exists := buckets[key]
		if !exists {
			b = &bucket{start: start}
			buckets[key] = b
		}
		b.volume += volume
		b.count++
	}

	points := make([]WeeklyVolumePoint, 0, len(buckets))
	for key, b := range buckets {
		points = append(points, WeeklyVolumePoint{
			Week:        key,
			WeekStart:   b.start.Format("2006-01-02"),
			TotalVolume: round1(b.volume),
			SetCount:    b.count,
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].WeekStart < points[j].WeekStart })
	return points
}

// isoWeekStart returns midnight UTC of the Monday beginning t's ISO week.
func isoWeekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return day.AddDate(0, 0, 1-weekday)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
