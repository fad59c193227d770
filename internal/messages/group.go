package messages

import (
	"sort"
	"time"
)

// LatestByLead collapses msgs into one representative per lead: the most
// recent message. Results are ordered by descending creation time, ties
// broken by id descending so repeated calls over the same input are
// identical. Used to render an inbox where each lead appears once.
func LatestByLead(msgs []Message) []Message {
	sorted := make([]Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() > sorted[j].ID.String()
	})

	seen := make(map[string]struct{}, len(sorted))
	out := make([]Message, 0, len(sorted))
	for _, m := range sorted {
		if _, ok := seen[m.LeadID]; ok {
			continue
		}
		seen[m.LeadID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// DayBucket holds one calendar day's messages in chronological order.
type DayBucket struct {
	Date     string    `json:"date"` // YYYY-MM-DD in the grouping location
	Day      time.Time `json:"day"`
	Messages []Message `json:"messages"`
}

// ByDay partitions msgs into calendar-day buckets in loc, most recent day
// first, each bucket chronological with the stable id tie-break. Used to
// render a single lead's full thread.
func ByDay(msgs []Message, loc *time.Location) []DayBucket {
	if loc == nil {
		loc = time.Local
	}

	byDate := make(map[string][]Message)
	days := make(map[string]time.Time)
	for _, m := range msgs {
		local := m.CreatedAt.In(loc)
		key := local.Format("2006-01-02")
		byDate[key] = append(byDate[key], m)
		if _, ok := days[key]; !ok {
			days[key] = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		}
	}

	keys := make([]string, 0, len(byDate))
	for key := range byDate {
		keys = append(keys, key)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	out := make([]DayBucket, 0, len(keys))
	for _, key := range keys {
		bucket := byDate[key]
		sort.SliceStable(bucket, func(i, j int) bool {
			if !bucket[i].CreatedAt.Equal(bucket[j].CreatedAt) {
				return bucket[i].CreatedAt.Before(bucket[j].CreatedAt)
			}
			return bucket[i].ID.String() < bucket[j].ID.String()
		})
		out = append(out, DayBucket{Date: key, Day: days[key], Messages: bucket})
	}
	return out
}
