package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type ScrapeRun struct {
	ID                  int64      `json:"id" db:"id"`
	SiteID              string     `json:"site_id" db:"site_id"`
	StartedAt           time.Time  `json:"started_at" db:"started_at"`
	FinishedAt          *time.Time `json:"finished_at" db:"finished_at"`
	Status              RunStatus  `json:"status" db:"status"`
	ListingsFound       int        `json:"listings_found" db:"listings_found"`
	ListingsInserted    int        `json:"listings_inserted" db:"listings_inserted"`
	ListingsUpdated     int        `json:"listings_updated" db:"listings_updated"`
	ListingsRejected    int        `json:"listings_rejected" db:"listings_rejected"`
	ListingsFiltered    int        `json:"listings_filtered" db:"listings_filtered"`
	CollectionsResolved int        `json:"collections_resolved" db:"collections_resolved"`
	ErrorsCount         int        `json:"errors_count" db:"errors_count"`
}

type SiteStats struct {
	SiteID            string     `json:"site_id" db:"site_id"`
	LastRunAt         *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus     string     `json:"last_run_status" db:"last_run_status"`
	TotalInserted     int        `json:"total_inserted" db:"total_inserted"`
	TotalRejected     int        `json:"total_rejected" db:"total_rejected"`
	SuccessRate       float64    `json:"success_rate" db:"success_rate"`
	AvgRunDurationSec int        `json:"avg_run_duration_sec" db:"avg_run_duration_sec"`
}
