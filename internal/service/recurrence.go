package service

import (
	"sort"
	"time"

	"github.com/noah-isme/liveclass-api/internal/models"
)

// RecurrenceRequest asks for a weekly pattern starting at StartDate.
type RecurrenceRequest struct {
	StartDate    string         `json:"start_date" validate:"required"`
	Weekdays     []time.Weekday `json:"weekdays" validate:"omitempty,dive,min=0,max=6"`
	HorizonWeeks int            `json:"horizon_weeks" validate:"omitempty,min=1"`
}

// ExpandRecurrence returns the dates matching weekdays over horizonWeeks weeks,
// counted from the Sunday-started week containing start. Dates before start
// are dropped. The result is sorted and free of duplicates. An empty weekday
// set means the weekday of start.
func ExpandRecurrence(start time.Time, weekdays []time.Weekday, horizonWeeks int) []time.Time {
	if horizonWeeks <= 0 {
		return nil
	}
	start = models.DateOnly(start)
	if len(weekdays) == 0 {
		weekdays = []time.Weekday{start.Weekday()}
	}

	weekStart := start.AddDate(0, 0, -int(start.Weekday()))
	seen := make(map[time.Time]struct{}, len(weekdays)*horizonWeeks)
	dates := make([]time.Time, 0, len(weekdays)*horizonWeeks)
	for week := 0; week < horizonWeeks; week++ {
		for _, wd := range weekdays {
			if wd < time.Sunday || wd > time.Saturday {
				continue
			}
			date := weekStart.AddDate(0, 0, week*7+int(wd))
			if date.Before(start) {
				continue
			}
			if _, ok := seen[date]; ok {
				continue
			}
			seen[date] = struct{}{}
			dates = append(dates, date)
		}
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
