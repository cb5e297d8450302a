package models

import (
	"time"

	"github.com/google/uuid"
)

// WidgetType is the visual kind of a dashboard widget.
type WidgetType string

const (
	WidgetTypeChart  WidgetType = "chart"
	WidgetTypeTable  WidgetType = "table"
	WidgetTypeMetric WidgetType = "metric"
	WidgetTypeText   WidgetType = "text"
)

// IsValid reports whether t is a known widget type.
func (t WidgetType) IsValid() bool {
	switch t {
	case WidgetTypeChart, WidgetTypeTable, WidgetTypeMetric, WidgetTypeText:
		return true
	}
	return false
}

// ChartTypes lists the chart kinds accepted in a widget config.
var ChartTypes = []string{"bar", "line", "pie", "scatter", "area"}

// WidgetPosition is a widget's rectangle on the dashboard grid.
type WidgetPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Dashboard is a named collection of positioned widgets.
type Dashboard struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	Layout      map[string]any `json:"layout,omitempty"`
	CreatedBy   string         `json:"createdBy"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Widgets     []Widget       `json:"widgets"`
}

// Widget is a single visual element on a dashboard.
// Config is free-form; chartType, xAxis, yAxis, colors and showLegend are the known keys.
type Widget struct {
	ID          uuid.UUID       `json:"id"`
	DashboardID uuid.UUID       `json:"dashboardId"`
	Title       string          `json:"title"`
	Type        WidgetType      `json:"type"`
	QueryID     *uuid.UUID      `json:"queryId,omitempty"`
	Config      map[string]any  `json:"config,omitempty"`
	Position    *WidgetPosition `json:"position,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// WidgetInput is a widget as submitted by clients; ids are assigned on insert.
type WidgetInput struct {
	Title    string          `json:"title"`
	Type     WidgetType      `json:"type,omitempty"`
	QueryID  *uuid.UUID      `json:"queryId,omitempty"`
	Config   map[string]any  `json:"config,omitempty"`
	Position *WidgetPosition `json:"position,omitempty"`
}

// CreateDashboardRequest is the body of a create call.
type CreateDashboardRequest struct {
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	Layout      map[string]any `json:"layout,omitempty"`
	Widgets     []WidgetInput  `json:"widgets,omitempty"`
	CreatedBy   string         `json:"-"`
}

// UpdateDashboardRequest is a partial update. A present Widgets list, even
// an empty one, replaces all widgets; a nil one leaves them untouched.
type UpdateDashboardRequest struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Layout      map[string]any `json:"layout,omitempty"`
	Widgets     *[]WidgetInput `json:"widgets,omitempty"`
}
