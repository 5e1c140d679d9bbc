// Package analytics computes the dashboard's derived statistics. Everything
// here is a pure function of realtime snapshots: group rows by a key, count,
// normalize to percentages, truncate to a top-N. Results are recomputed on
// every snapshot change and never stored.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/clinicore/clinicore/internal/platform/supabase"
)

// Bucket is one aggregation group: a key, its count, and its share.
type Bucket struct {
	Key     string  `json:"key"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Percent returns part/total as a percentage rounded to one decimal place.
// A zero total yields 0 rather than dividing by zero.
func Percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

// CountBy groups rows by the string value of a column and returns buckets
// sorted by count descending. Equal counts order by ascending key so the
// result is deterministic. Rows with a missing or nil column are skipped.
func CountBy(rows []supabase.Row, column string) []Bucket {
	counts := make(map[string]int)
	for _, row := range rows {
		v, ok := row[column]
		if !ok || v == nil {
			continue
		}
		counts[fmt.Sprint(v)]++
	}

	buckets := make([]Bucket, 0, len(counts))
	for key, count := range counts {
		buckets = append(buckets, Bucket{Key: key, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Key < buckets[j].Key
	})
	return buckets
}

// WithPercentOfTotal fills each bucket's share of the summed counts.
func WithPercentOfTotal(buckets []Bucket) []Bucket {
	total := 0
	for _, b := range buckets {
		total += b.Count
	}
	for i := range buckets {
		buckets[i].Percent = Percent(buckets[i].Count, total)
	}
	return buckets
}

// WithPercentOfMax normalizes each bucket against the largest bucket, the
// scale bar charts use.
func WithPercentOfMax(buckets []Bucket) []Bucket {
	max := 0
	for _, b := range buckets {
		if b.Count > max {
			max = b.Count
		}
	}
	for i := range buckets {
		buckets[i].Percent = Percent(buckets[i].Count, max)
	}
	return buckets
}

// TopN truncates a sorted bucket list to at most n entries.
func TopN(buckets []Bucket, n int) []Bucket {
	if n < 0 {
		n = 0
	}
	if n > len(buckets) {
		n = len(buckets)
	}
	return buckets[:n]
}

// CountByHour buckets rows into the 24 hours of day by a timestamp column.
func CountByHour(rows []supabase.Row, column string) [24]int {
	var out [24]int
	for _, row := range rows {
		if t, ok := parseTime(row[column]); ok {
			out[t.Hour()]++
		}
	}
	return out
}

// CountByWeekday buckets rows into weekdays (Sunday = 0) by a timestamp column.
func CountByWeekday(rows []supabase.Row, column string) [7]int {
	var out [7]int
	for _, row := range rows {
		if t, ok := parseTime(row[column]); ok {
			out[int(t.Weekday())]++
		}
	}
	return out
}

// timeLayouts are the timestamp shapes the hosted backend emits.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(v interface{}) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		if t, isTime := v.(time.Time); isTime {
			return t, true
		}
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Occupancy returns booked slots over schedule capacity as a percentage.
// Zero or negative capacity yields 0; overbooking can exceed 100.
func Occupancy(booked, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	return Percent(booked, capacity)
}

// ConversationMessage is the minimal message shape response-time metrics need.
type ConversationMessage struct {
	Type string // "human" (inbound) or "ai" (outbound)
	At   time.Time
}

// AverageResponseTime returns the mean delay between each inbound message and
// the next outbound reply. Messages must be in chronological order. Zero is
// returned when no human→ai pair exists.
func AverageResponseTime(messages []ConversationMessage) time.Duration {
	var total time.Duration
	pairs := 0
	for i, msg := range messages {
		if msg.Type != "human" {
			continue
		}
		for _, next := range messages[i+1:] {
			if next.Type == "ai" {
				total += next.At.Sub(msg.At)
				pairs++
				break
			}
		}
	}
	if pairs == 0 {
		return 0
	}
	return total / time.Duration(pairs)
}
