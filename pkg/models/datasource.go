package models

import (
	"time"

	"github.com/google/uuid"
)

// DataSourceType identifies the kind of system or file a data source points at.
type DataSourceType string

const (
	DataSourceTypePostgreSQL DataSourceType = "postgresql"
	DataSourceTypeMySQL      DataSourceType = "mysql"
	DataSourceTypeMSSQL      DataSourceType = "mssql"
	DataSourceTypeSQLite     DataSourceType = "sqlite"
	DataSourceTypeMongoDB    DataSourceType = "mongodb"
	DataSourceTypeCSV        DataSourceType = "csv"
	DataSourceTypeExcel      DataSourceType = "excel"
	DataSourceTypeJSON       DataSourceType = "json"
	DataSourceTypeAPI        DataSourceType = "api"
)

// AllDataSourceTypes lists every supported type in display order.
var AllDataSourceTypes = []DataSourceType{
	DataSourceTypePostgreSQL,
	DataSourceTypeMySQL,
	DataSourceTypeMSSQL,
	DataSourceTypeSQLite,
	DataSourceTypeMongoDB,
	DataSourceTypeCSV,
	DataSourceTypeExcel,
	DataSourceTypeJSON,
	DataSourceTypeAPI,
}

// IsValid reports whether t is a known data source type.
func (t DataSourceType) IsValid() bool {
	for _, known := range AllDataSourceTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsFile reports whether the type is backed by an uploaded file.
func (t DataSourceType) IsFile() bool {
	return t == DataSourceTypeCSV || t == DataSourceTypeExcel || t == DataSourceTypeJSON
}

// IsRelational reports whether the type is a SQL database.
func (t DataSourceType) IsRelational() bool {
	switch t {
	case DataSourceTypePostgreSQL, DataSourceTypeMySQL, DataSourceTypeMSSQL, DataSourceTypeSQLite:
		return true
	}
	return false
}

// DataSourceStatus is the connection state of a data source.
type DataSourceStatus string

const (
	DataSourceStatusConnecting   DataSourceStatus = "connecting"
	DataSourceStatusConnected    DataSourceStatus = "connected"
	DataSourceStatusDisconnected DataSourceStatus = "disconnected"
	DataSourceStatusError        DataSourceStatus = "error"
)

// IsValid reports whether s is a known status.
func (s DataSourceStatus) IsValid() bool {
	switch s {
	case DataSourceStatusConnecting, DataSourceStatusConnected, DataSourceStatusDisconnected, DataSourceStatusError:
		return true
	}
	return false
}

// SyncFrequency controls how often a scheduled sync runs.
type SyncFrequency string

const (
	SyncFrequencyHourly  SyncFrequency = "hourly"
	SyncFrequencyDaily   SyncFrequency = "daily"
	SyncFrequencyWeekly  SyncFrequency = "weekly"
	SyncFrequencyMonthly SyncFrequency = "monthly"
	SyncFrequencyNever   SyncFrequency = "never"
)

// IsValid reports whether f is a known frequency.
func (f SyncFrequency) IsValid() bool {
	switch f {
	case SyncFrequencyHourly, SyncFrequencyDaily, SyncFrequencyWeekly, SyncFrequencyMonthly, SyncFrequencyNever:
		return true
	}
	return false
}

// SyncSchedule configures recurring syncs for a data source.
// LastRun and NextRun are maintained by the scheduler.
type SyncSchedule struct {
	Frequency SyncFrequency `json:"frequency"`
	Time      string        `json:"time,omitempty"`     // HH:MM or HH:MM:SS
	Timezone  string        `json:"timezone,omitempty"` // IANA name, default UTC
	LastRun   *time.Time    `json:"lastRun,omitempty"`
	NextRun   *time.Time    `json:"nextRun,omitempty"`
}

// DataSource is a configured external system or uploaded file.
// ConnectionDetails holds the decrypted details; the repository stores them encrypted.
type DataSource struct {
	ID                uuid.UUID                `json:"id"`
	Name              string                   `json:"name"`
	Description       *string                  `json:"description,omitempty"`
	Type              DataSourceType           `json:"type"`
	Status            DataSourceStatus         `json:"status"`
	ConnectionDetails map[string]any           `json:"connectionDetails"`
	LastSync          *time.Time               `json:"lastSync"`
	RecordCount       int64                    `json:"recordCount"`
	Error             *string                  `json:"error,omitempty"`
	SyncSchedule      *SyncSchedule            `json:"syncSchedule,omitempty"`
	CreatedBy         string                   `json:"createdBy"`
	CreatedAt         time.Time                `json:"createdAt"`
	UpdatedAt         time.Time                `json:"updatedAt"`
	Tables            []DataSourceTable        `json:"tables,omitempty"`
	Relationships     []DataSourceRelationship `json:"relationships,omitempty"`
	SyncHistory       []DataSourceSync         `json:"syncHistory,omitempty"`
}

// DataSourceTable is an introspected table owned by a data source.
type DataSourceTable struct {
	ID           uuid.UUID          `json:"id"`
	DataSourceID uuid.UUID          `json:"dataSourceId"`
	Name         string             `json:"name"`
	RowCount     *int64             `json:"rowCount"`
	Columns      []DataSourceColumn `json:"columns"`
}

// DataSourceColumn is an introspected column of a table.
type DataSourceColumn struct {
	ID          uuid.UUID `json:"id"`
	TableID     uuid.UUID `json:"tableId"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	IsPrimary   bool      `json:"isPrimary"`
	IsNullable  bool      `json:"isNullable"`
	Description *string   `json:"description,omitempty"`
	Position    int       `json:"-"`
}

// DataSourceRelationship is a foreign-key-like edge between two table columns.
type DataSourceRelationship struct {
	ID            uuid.UUID `json:"id"`
	DataSourceID  uuid.UUID `json:"dataSourceId"`
	Name          string    `json:"name"`
	SourceTableID uuid.UUID `json:"sourceTableId"`
	SourceTable   string    `json:"sourceTable"`
	SourceColumn  string    `json:"sourceColumn"`
	TargetTableID uuid.UUID `json:"targetTableId"`
	TargetTable   string    `json:"targetTable"`
	TargetColumn  string    `json:"targetColumn"`
}

// DataSourceFilter narrows and orders a data source listing.
type DataSourceFilter struct {
	Search    string
	Status    DataSourceStatus
	Type      DataSourceType
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// DataSourceSortColumns maps API sort keys to database columns.
var DataSourceSortColumns = map[string]string{
	"name":        "name",
	"type":        "type",
	"status":      "status",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"lastSync":    "last_sync",
	"recordCount": "record_count",
}

// CreateDataSourceRequest is the body of a create call. FileID may be given
// at the top level for file types; it is merged into the connection details.
type CreateDataSourceRequest struct {
	Name              string         `json:"name"`
	Description       *string        `json:"description,omitempty"`
	Type              DataSourceType `json:"type"`
	ConnectionDetails map[string]any `json:"connectionDetails"`
	FileID            string         `json:"fileId,omitempty"`
	SyncSchedule      *SyncSchedule  `json:"syncSchedule,omitempty"`
	CreatedBy         string         `json:"-"`
}

// UpdateDataSourceRequest is a partial update; nil fields are left unchanged.
type UpdateDataSourceRequest struct {
	Name              *string        `json:"name,omitempty"`
	Description       *string        `json:"description,omitempty"`
	ConnectionDetails map[string]any `json:"connectionDetails,omitempty"`
	SyncSchedule      *SyncSchedule  `json:"syncSchedule,omitempty"`
}

// DeleteResponse acknowledges a delete.
type DeleteResponse struct {
	Message string    `json:"message"`
	ID      uuid.UUID `json:"id"`
}
