package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ekaya-inc/genbi-engine/pkg/apperrors"
	"github.com/ekaya-inc/genbi-engine/pkg/jsonutil"
)

// MissingConnectionDetailsMessage is the message returned when required
// connection fields are absent.
const MissingConnectionDetailsMessage = "Missing required connection details"

// ConnectionDetails is the typed form of a data source's connectionDetails
// object. Each data source type decodes into exactly one variant.
type ConnectionDetails interface {
	// MissingFields returns the names of required fields that are empty.
	MissingFields() []string
}

// RelationalConnection covers postgresql, mysql and mssql.
type RelationalConnection struct {
	Host     string               `json:"host"`
	Port     jsonutil.FlexibleInt `json:"port,omitempty"`
	Database string               `json:"database"`
	Username string               `json:"username"`
	Password string               `json:"password,omitempty"`
	SSL      bool                 `json:"ssl,omitempty"`
	Schema   string               `json:"schema,omitempty"`
}

func (c *RelationalConnection) MissingFields() []string {
	return missing(map[string]string{"host": c.Host, "database": c.Database, "username": c.Username}, "host", "database", "username")
}

// SQLiteConnection points at a database file.
type SQLiteConnection struct {
	Database string `json:"database"`
}

func (c *SQLiteConnection) MissingFields() []string {
	return missing(map[string]string{"database": c.Database}, "database")
}

// DocumentConnection covers mongodb.
type DocumentConnection struct {
	URI      string `json:"uri"`
	Database string `json:"database"`
}

func (c *DocumentConnection) MissingFields() []string {
	return missing(map[string]string{"uri": c.URI, "database": c.Database}, "uri", "database")
}

// FileConnection covers csv, excel and json uploads. No field is required.
type FileConnection struct {
	FileID    string `json:"fileId,omitempty"`
	Delimiter string `json:"delimiter,omitempty"`
	Sheet     string `json:"sheet,omitempty"`
	DataPath  string `json:"dataPath,omitempty"`
}

func (c *FileConnection) MissingFields() []string { return nil }

// APIConnection is an HTTP JSON endpoint.
type APIConnection struct {
	URL       string            `json:"url"`
	Method    string            `json:"method,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	AuthToken string            `json:"authToken,omitempty"`
	DataPath  string            `json:"dataPath,omitempty"`
}

func (c *APIConnection) MissingFields() []string {
	return missing(map[string]string{"url": c.URL}, "url")
}

func missing(values map[string]string, order ...string) []string {
	var out []string
	for _, name := range order {
		if strings.TrimSpace(values[name]) == "" {
			out = append(out, name)
		}
	}
	return out
}

// DecodeConnectionDetails decodes raw details into the variant for t.
// It does not check required fields; use ValidateConnectionDetails for that.
func DecodeConnectionDetails(t DataSourceType, raw map[string]any) (ConnectionDetails, error) {
	var target ConnectionDetails
	switch t {
	case DataSourceTypePostgreSQL, DataSourceTypeMySQL, DataSourceTypeMSSQL:
		target = &RelationalConnection{}
	case DataSourceTypeSQLite:
		target = &SQLiteConnection{}
	case DataSourceTypeMongoDB:
		target = &DocumentConnection{}
	case DataSourceTypeCSV, DataSourceTypeExcel, DataSourceTypeJSON:
		target = &FileConnection{}
	case DataSourceTypeAPI:
		target = &APIConnection{}
	default:
		return nil, apperrors.Validationf("Unsupported data source type: %s", t)
	}

	if raw == nil {
		return target, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode connection details: %w", err)
	}
	if err := json.Unmarshal(b, target); err != nil {
		return nil, apperrors.Validationf("Invalid connection details: %v", err)
	}
	if api, ok := target.(*APIConnection); ok && api.Method == "" {
		api.Method = "GET"
	}
	return target, nil
}

// ValidateConnectionDetails decodes raw details and checks required fields.
func ValidateConnectionDetails(t DataSourceType, raw map[string]any) (ConnectionDetails, error) {
	details, err := DecodeConnectionDetails(t, raw)
	if err != nil {
		return nil, err
	}
	if fields := details.MissingFields(); len(fields) > 0 {
		return nil, apperrors.Validationf("%s: %s", MissingConnectionDetailsMessage, strings.Join(fields, ", "))
	}
	return details, nil
}

// ConnectionTestRequest is the body of a connection test.
type ConnectionTestRequest struct {
	Type              DataSourceType `json:"type"`
	ConnectionDetails map[string]any `json:"connectionDetails"`
}

// ConnectionTestError is the failure payload of a connection test.
type ConnectionTestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Connection test error codes.
const (
	ConnectionErrorValidation  = "VALIDATION_ERROR"
	ConnectionErrorUnsupported = "UNSUPPORTED_TYPE"
	ConnectionErrorConnection  = "CONNECTION_ERROR"
	ConnectionErrorUnknown     = "UNKNOWN_ERROR"
)

// ConnectionTestResult is always returned by a connection test, success or not.
type ConnectionTestResult struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Details map[string]any       `json:"details,omitempty"`
	Error   *ConnectionTestError `json:"error,omitempty"`
}

// DataSourceTypeInfo describes a registered connector kind.
type DataSourceTypeInfo struct {
	Type        DataSourceType `json:"type"`
	DisplayName string         `json:"displayName"`
	Description string         `json:"description"`
	Icon        string         `json:"icon"`
	Live        bool           `json:"live"`
}
