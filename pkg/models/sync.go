package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus is the lifecycle state of a sync job.
type SyncStatus string

const (
	SyncStatusQueued     SyncStatus = "queued"
	SyncStatusInProgress SyncStatus = "in_progress"
	SyncStatusCompleted  SyncStatus = "completed"
	SyncStatusFailed     SyncStatus = "failed"
	SyncStatusCancelled  SyncStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s SyncStatus) IsTerminal() bool {
	return s == SyncStatusCompleted || s == SyncStatusFailed || s == SyncStatusCancelled
}

// EstimatedSyncDuration is the fixed offset used for estimatedCompletionTime.
const EstimatedSyncDuration = 30 * time.Minute

// DataSourceSync is a sync job record.
type DataSourceSync struct {
	ID                      uuid.UUID  `json:"id"`
	DataSourceID            uuid.UUID  `json:"dataSourceId"`
	Status                  SyncStatus `json:"status"`
	Progress                int        `json:"progress"`
	FullSync                bool       `json:"fullSync"`
	Tables                  []string   `json:"tables,omitempty"`
	TablesProcessed         int        `json:"tablesProcessed"`
	TotalTables             int        `json:"totalTables"`
	RecordsProcessed        int64      `json:"recordsProcessed"`
	StartTime               *time.Time `json:"startTime"`
	EndTime                 *time.Time `json:"endTime"`
	EstimatedCompletionTime *time.Time `json:"estimatedCompletionTime"`
	Error                   *string    `json:"error,omitempty"`
	CreatedAt               time.Time  `json:"createdAt"`
	UpdatedAt               time.Time  `json:"updatedAt"`
}

// SyncRequest starts a sync job.
type SyncRequest struct {
	FullSync bool     `json:"fullSync"`
	Tables   []string `json:"tables,omitempty"`
}
