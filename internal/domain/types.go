package domain

import "time"

// Screenshot is a single Creator Search Insights capture loaded from disk.
// Immutable once loaded; Index preserves the filename ordering of the batch.
type Screenshot struct {
	Path     string
	MIMEType string
	Data     []byte
	Index    int
}

// TrendRecord is one trending search topic extracted from a model response.
// Fields the parser could not locate are left at their zero value;
// GrowthPercent is a pointer so "not reported" and "0%" stay distinct.
type TrendRecord struct {
	Name          string
	Category      string
	GrowthPercent *float64
	ContentGap    bool
	Audience      string
	Notes         string
	Opportunities []OpportunityRecord
}

// OpportunityRecord is a business suggestion derived from one trend.
type OpportunityRecord struct {
	BusinessModel string
	RevenueRange  string
	Effort        string
}

// Report is the final artifact of an extraction run.
type Report struct {
	GeneratedAt time.Time
	Model       string
	Screenshots int
	Skipped     int
	Dropped     int
	Warnings    []string
	Trends      []TrendRecord
}

// Opportunities counts opportunity records across all trends.
func (r *Report) Opportunities() int {
	n := 0
	for _, t := range r.Trends {
		n += len(t.Opportunities)
	}
	return n
}

// Run is the persisted history record for one extraction run.
type Run struct {
	ID          string
	Backend     string
	Model       string
	Screenshots int
	Skipped     int
	Trends      int
	Dropped     int
	ReportPath  string
	CreatedAt   time.Time
}
