package ingest

import "time"

// Report summarizes one ingestion cycle. It is returned even when the cycle
// stops early, with the counts reached so far.
type Report struct {
	CycleID      string         `json:"cycle_id"`
	Workspace    int64          `json:"workspace"`
	Fetched      int            `json:"fetched"`
	Inserted     int            `json:"inserted"`
	Skipped      int            `json:"skipped"`
	Duplicates   int            `json:"duplicates"`
	DateFiltered int            `json:"date_filtered"`
	ImageSources map[string]int `json:"image_sources"`
	Swept        int            `json:"swept"`
	FeedErrors   int            `json:"feed_errors"`
	Notices      []string       `json:"notices,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	Duration     time.Duration  `json:"duration"`
}

func (r *Report) notice(msg string) {
	r.Notices = append(r.Notices, msg)
}
