package search

import (
	"time"

	"forarchives/internal/archive"
	"forarchives/internal/query"
)

type Statistics struct {
	Total    int `json:"total"`
	Matching int `json:"matching"`
	// Percentage of posts matching, 0 when there are no posts.
	Percentage float64 `json:"percentage"`
	// MeanTime is the mean date of the posts that carry a timestamp.
	MeanTime time.Time      `json:"mean_time"`
	PerBoard map[string]int `json:"per_board"`
}

// Stats summarizes posts, counting those whose comment matches text.
func Stats(posts []archive.Post, text string, opts query.Options) Statistics {
	matcher := query.Compile(text, opts)
	stats := Statistics{
		Total:    len(posts),
		PerBoard: map[string]int{},
	}

	var (
		sum   int64
		dated int64
	)
	for _, p := range posts {
		stats.PerBoard[p.BoardName()]++
		if matcher.Test(p.Comment) {
			stats.Matching++
		}
		if p.Timestamp != 0 {
			sum += p.Timestamp
			dated++
		}
	}
	if stats.Total > 0 {
		stats.Percentage = float64(stats.Matching) / float64(stats.Total) * 100
	}
	if dated > 0 {
		stats.MeanTime = time.Unix(sum/dated, 0).UTC()
	}
	return stats
}
