package services

import (
	"sort"
	"time"

	"github.com/tetuya0525/dialogue-index-builder/internal/models"
)

// The grouping timezone is a business rule (the audience's local calendar),
// not an environment property, so it is a fixed offset rather than the host zone.
var jst = time.FixedZone("JST", 9*60*60)

const dateLayout = "2006-01-02"

// GroupLogsByDate partitions dialogue logs into per-date buckets keyed by the
// JST civil date of each log's creation timestamp. Logs without a timestamp are
// skipped. Fetch order is preserved within each bucket, so the first entry of a
// bucket is always the earliest-fetched log for that date.
func GroupLogsByDate(logs []models.DialogueLog) map[string]models.DateBucket {
	buckets := make(map[string]models.DateBucket)

	for _, dialogueLog := range logs {
		if dialogueLog.CreatedAt == nil {
			continue
		}

		dateStr := dialogueLog.CreatedAt.In(jst).Format(dateLayout)

		bucket, ok := buckets[dateStr]
		if !ok {
			bucket = models.DateBucket{Date: dateStr}
		}
		bucket.Logs = append(bucket.Logs, dialogueLog)
		buckets[dateStr] = bucket
	}

	return buckets
}

// SortedBucketDates returns the bucket keys in ascending date order. Map
// iteration order is random; processing dates in a stable order keeps run logs
// comparable across reruns.
func SortedBucketDates(buckets map[string]models.DateBucket) []string {
	dates := make([]string, 0, len(buckets))
	for date := range buckets {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// CivilDateUTC anchors a YYYY-MM-DD date string to UTC midnight for storage.
func CivilDateUTC(dateStr string) (time.Time, error) {
	return time.Parse(dateLayout, dateStr)
}
