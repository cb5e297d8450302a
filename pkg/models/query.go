package models

import (
	"time"

	"github.com/google/uuid"
)

// QueryType distinguishes natural-language questions from literal SQL.
type QueryType string

const (
	QueryTypeNaturalLanguage QueryType = "natural_language"
	QueryTypeSQL             QueryType = "sql"
)

// IsValid reports whether t is a known query type.
func (t QueryType) IsValid() bool {
	return t == QueryTypeNaturalLanguage || t == QueryTypeSQL
}

// QueryStatus is the execution state of a query.
type QueryStatus string

const (
	QueryStatusPending   QueryStatus = "pending"
	QueryStatusRunning   QueryStatus = "running"
	QueryStatusCompleted QueryStatus = "completed"
	QueryStatusFailed    QueryStatus = "failed"
	QueryStatusCancelled QueryStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s QueryStatus) IsTerminal() bool {
	return s == QueryStatusCompleted || s == QueryStatusFailed || s == QueryStatusCancelled
}

// Query is a user-issued question against a data source.
type Query struct {
	ID            uuid.UUID   `json:"id"`
	Text          string      `json:"text"`
	Type          QueryType   `json:"type"`
	SQL           *string     `json:"sql"`
	Status        QueryStatus `json:"status"`
	DataSourceID  uuid.UUID   `json:"dataSourceId"`
	Error         *string     `json:"error,omitempty"`
	IsSaved       bool        `json:"isSaved"`
	Name          *string     `json:"name,omitempty"`
	Description   *string     `json:"description,omitempty"`
	ExecutionTime *int64      `json:"executionTime"` // milliseconds
	RowCount      *int        `json:"rowCount"`
	CreatedBy     string      `json:"createdBy"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// QueryStatusView is the lightweight status poll response.
type QueryStatusView struct {
	Status QueryStatus `json:"status"`
	Error  string      `json:"error,omitempty"`
}

// ResultColumn describes a column of a query result.
type ResultColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// InsightType classifies the tone of an insight.
type InsightType string

const (
	InsightTypeInfo     InsightType = "info"
	InsightTypePositive InsightType = "positive"
	InsightTypeNegative InsightType = "negative"
	InsightTypeNeutral  InsightType = "neutral"
)

// IsValid reports whether t is a known insight type.
func (t InsightType) IsValid() bool {
	switch t {
	case InsightTypeInfo, InsightTypePositive, InsightTypeNegative, InsightTypeNeutral:
		return true
	}
	return false
}

// Insight is a short generated observation about a result set.
type Insight struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Type        InsightType `json:"type"`
}

// VisualizationType is a suggested chart kind.
type VisualizationType string

const (
	VisualizationBar     VisualizationType = "bar"
	VisualizationLine    VisualizationType = "line"
	VisualizationPie     VisualizationType = "pie"
	VisualizationScatter VisualizationType = "scatter"
	VisualizationTable   VisualizationType = "table"
)

// IsValid reports whether t is a known visualization type.
func (t VisualizationType) IsValid() bool {
	switch t {
	case VisualizationBar, VisualizationLine, VisualizationPie, VisualizationScatter, VisualizationTable:
		return true
	}
	return false
}

// VisualizationSuggestion is a generated chart recommendation.
type VisualizationSuggestion struct {
	Type        VisualizationType `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
}

// QueryResult is the immutable outcome of one query execution.
type QueryResult struct {
	ID             uuid.UUID                 `json:"id"`
	QueryID        uuid.UUID                 `json:"queryId"`
	Data           []map[string]any          `json:"data"`
	Columns        []ResultColumn            `json:"columns"`
	Insights       []Insight                 `json:"insights"`
	Visualizations []VisualizationSuggestion `json:"visualizations"`
	ExecutionTime  int64                     `json:"executionTime"`
	CreatedAt      time.Time                 `json:"createdAt"`
}

// ExecuteQueryRequest submits a question against a data source.
type ExecuteQueryRequest struct {
	Text         string    `json:"text"`
	DataSourceID uuid.UUID `json:"dataSourceId"`
	Type         QueryType `json:"type,omitempty"`
	CreatedBy    string    `json:"-"`
}

// SaveQueryRequest names a completed query.
type SaveQueryRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}
