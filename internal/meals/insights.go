package meals

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidWindow marks an insights request with a lookback outside the
// accepted range.
var ErrInvalidWindow = errors.New("meals: lookback window must be between 1 and 365 days")

const (
	dateKeyLayout = "2006-01-02"
	topPlacesCap  = 5
	// maxWindowDays bounds the lookback; the day buckets are allocated up
	// front, so the window length caps the allocation.
	maxWindowDays = 365
)

// DailySummary is one calendar-day bucket of the insights window.
type DailySummary struct {
	Date          string `json:"date"`
	TotalCalories int64  `json:"totalCalories"`
	MealCount     int64  `json:"mealCount"`
	HomeCount     int64  `json:"homeCount"`
	OutCount      int64  `json:"outCount"`
}

// LocationBreakdown splits the whole fetched window into home and away meals.
type LocationBreakdown struct {
	Home  int64 `json:"home"`
	Out   int64 `json:"out"`
	Total int64 `json:"total"`
}

// PlaceRanking pairs a representative place snapshot with its entry count.
type PlaceRanking struct {
	Place PlaceSnapshot `json:"place"`
	Count int64         `json:"count"`
}

// PeriodStats aggregates the whole window. AvgCaloriesPerDay divides by the
// requested window length, not by the number of days that had entries, so
// sparse logging deliberately deflates the average.
type PeriodStats struct {
	TotalCalories     int64 `json:"totalCalories"`
	TotalMeals        int64 `json:"totalMeals"`
	AvgCaloriesPerDay int64 `json:"avgCaloriesPerDay"`
}

// InsightsSummary is the day-bucketed output of the aggregation engine.
type InsightsSummary struct {
	TodaySummary      DailySummary      `json:"todaySummary"`
	DailyData         []DailySummary    `json:"dailyData"`
	LocationBreakdown LocationBreakdown `json:"locationBreakdown"`
	TopPlaces         []PlaceRanking    `json:"topPlaces"`
	PeriodStats       PeriodStats       `json:"periodStats"`
}

// ComputeInsights fetches the user's entries for the last `days` local
// calendar days and reduces them into day buckets, a location breakdown, a
// top-places ranking and period statistics. Zero entries yield an all-zero
// structure, never an error.
func (s *Service) ComputeInsights(ctx context.Context, userID UserID, days int) (InsightsSummary, error) {
	if days < 1 || days > maxWindowDays {
		return InsightsSummary{}, newServiceError(opComputeInsights, "invalid_window",
			fmt.Errorf("%w: got %d", ErrInvalidWindow, days))
	}

	now := s.clock().In(s.location)
	windowStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location).
		AddDate(0, 0, -(days - 1))

	entries, err := s.store.ListEntries(ctx, userID, ListEntriesOptions{Start: &windowStart})
	if err != nil {
		s.logError(opComputeInsights, "query_failed", err, zap.String("user_id", userID.String()))
		return InsightsSummary{}, newServiceError(opComputeInsights, "query_failed", err)
	}

	summary, err := summarizeEntries(entries, now, windowStart, days, s.location)
	if err != nil {
		s.logError(opComputeInsights, "aggregate_failed", err, zap.String("user_id", userID.String()))
		return InsightsSummary{}, newServiceError(opComputeInsights, "aggregate_failed", err)
	}
	return summary, nil
}

// summarizeEntries is the pure aggregation pass over an already-fetched
// window. Entries whose local date precedes the window start match no bucket
// and are silently absent from the day-bucketed output while still counting
// toward the window-level aggregates.
func summarizeEntries(entries []Entry, now, windowStart time.Time, days int, location *time.Location) (InsightsSummary, error) {
	dailyData := make([]DailySummary, days)
	bucketIndex := make(map[string]int, days)
	for day := 0; day < days; day++ {
		key := windowStart.AddDate(0, 0, day).Format(dateKeyLayout)
		dailyData[day] = DailySummary{Date: key}
		bucketIndex[key] = day
	}

	var breakdown LocationBreakdown
	var stats PeriodStats
	placeCounts := make(map[string]*PlaceRanking)

	for _, entry := range entries {
		place, err := entry.Place()
		if err != nil {
			return InsightsSummary{}, err
		}

		var calories int64
		if entry.Calories != nil {
			calories = *entry.Calories
		}

		// Bucket classification uses the local calendar date of the
		// eaten-at instant, never the UTC date.
		key := entry.EatenAt().In(location).Format(dateKeyLayout)
		if index, ok := bucketIndex[key]; ok {
			dailyData[index].MealCount++
			dailyData[index].TotalCalories += calories
			if place.IsHome {
				dailyData[index].HomeCount++
			} else {
				dailyData[index].OutCount++
			}
		}

		breakdown.Total++
		if place.IsHome {
			breakdown.Home++
		} else {
			breakdown.Out++
		}
		stats.TotalCalories += calories
		stats.TotalMeals++

		if ranking, ok := placeCounts[place.ID]; ok {
			ranking.Count++
		} else {
			placeCounts[place.ID] = &PlaceRanking{Place: place, Count: 1}
		}
	}

	if stats.TotalMeals > 0 {
		stats.AvgCaloriesPerDay = stats.TotalCalories / int64(days)
	}

	todayKey := now.Format(dateKeyLayout)
	todaySummary := DailySummary{Date: todayKey}
	if index, ok := bucketIndex[todayKey]; ok {
		todaySummary = dailyData[index]
	}

	return InsightsSummary{
		TodaySummary:      todaySummary,
		DailyData:         dailyData,
		LocationBreakdown: breakdown,
		TopPlaces:         rankPlaces(placeCounts),
		PeriodStats:       stats,
	}, nil
}

// rankPlaces orders groups by count descending with name then id as
// deterministic tie-breaks, truncated to the top five.
func rankPlaces(placeCounts map[string]*PlaceRanking) []PlaceRanking {
	ranked := make([]PlaceRanking, 0, len(placeCounts))
	for _, ranking := range placeCounts {
		ranked = append(ranked, *ranking)
	}
	sort.Slice(ranked, func(first, second int) bool {
		if ranked[first].Count != ranked[second].Count {
			return ranked[first].Count > ranked[second].Count
		}
		if ranked[first].Place.Name != ranked[second].Place.Name {
			return ranked[first].Place.Name < ranked[second].Place.Name
		}
		return ranked[first].Place.ID < ranked[second].Place.ID
	})
	if len(ranked) > topPlacesCap {
		ranked = ranked[:topPlacesCap]
	}
	return ranked
}
