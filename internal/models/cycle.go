package models

import "time"

// CategoryResult is the outcome of one category within an export cycle.
type CategoryResult struct {
	Category Category
	Rows     int
	Err      string
}

// Failed reports whether the category's fetch or append went wrong.
func (r CategoryResult) Failed() bool {
	return r.Err != ""
}

// ExportCycle is one invocation of the export orchestrator.
type ExportCycle struct {
	ID         int64
	Date       time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Categories []CategoryResult
	Success    bool
}

// TotalRows sums appended rows across all categories.
func (c *ExportCycle) TotalRows() int {
	total := 0
	for _, cr := range c.Categories {
		total += cr.Rows
	}
	return total
}

// FailedCategories lists the categories that did not complete cleanly.
func (c *ExportCycle) FailedCategories() []Category {
	var failed []Category
	for _, cr := range c.Categories {
		if cr.Failed() {
			failed = append(failed, cr.Category)
		}
	}
	return failed
}

// SalesSummary is the aggregation behind the stat_today command.
type SalesSummary struct {
	Count         int
	TotalAmount   float64
	AverageCheck  float64
	ReturnsCount  int
	ReturnsAmount float64
}

const (
	// DefaultScheduleTime is used when no schedule has been persisted yet.
	DefaultScheduleTime = "23:00"

	// DateLayout is the provider's calendar date format.
	DateLayout = "2006-01-02"
)
