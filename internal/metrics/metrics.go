package metrics

import (
	"maps"
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	CyclesRun          int64
	ItemsFetched       int64
	EntriesInserted    int64
	DuplicatesFiltered int64
	DateFiltered       int64
	FeedErrors         int64
	EntriesSwept       int64
	AIAttempts         int64
	AIHits             int64
	ImageMethods       map[string]int64
	ImageTiers         map[string]int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = New()

func New() *Metrics {
	return &Metrics{
		IsHealthy:    true,
		ImageMethods: make(map[string]int64),
		ImageTiers:   make(map[string]int64),
	}
}

// CycleCounts is what one ingestion cycle adds to the counters.
type CycleCounts struct {
	Fetched      int
	Inserted     int
	Duplicates   int
	DateFiltered int
	FeedErrors   int
	Swept        int
}

func (m *Metrics) RecordCycle(c CycleCounts) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CyclesRun++
	m.ItemsFetched += int64(c.Fetched)
	m.EntriesInserted += int64(c.Inserted)
	m.DuplicatesFiltered += int64(c.Duplicates)
	m.DateFiltered += int64(c.DateFiltered)
	m.FeedErrors += int64(c.FeedErrors)
	m.EntriesSwept += int64(c.Swept)
}

// RecordImage counts a resolved image by method label and tier.
func (m *Metrics) RecordImage(tier, method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ImageMethods[method]++
	m.ImageTiers[tier]++
}

func (m *Metrics) IncrementAIAttempts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AIAttempts++
}

func (m *Metrics) IncrementAIHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AIHits++
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++

	if m.ProcessingCount > 0 {
		m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
	}
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"cycles_run":                 m.CyclesRun,
		"items_fetched":              m.ItemsFetched,
		"entries_inserted":           m.EntriesInserted,
		"duplicates_filtered":        m.DuplicatesFiltered,
		"date_filtered":              m.DateFiltered,
		"feed_errors":                m.FeedErrors,
		"entries_swept":              m.EntriesSwept,
		"ai_attempts":                m.AIAttempts,
		"ai_hits":                    m.AIHits,
		"image_methods":              maps.Clone(m.ImageMethods),
		"image_tiers":                maps.Clone(m.ImageTiers),
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_time":              m.LastRunTime.Format(time.RFC3339),
		"last_error_time":            m.LastErrorTime.Format(time.RFC3339),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
}
