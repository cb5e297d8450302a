package models

import "time"

// FileType is the format of an uploaded data file.
type FileType string

const (
	FileTypeCSV   FileType = "csv"
	FileTypeExcel FileType = "excel"
	FileTypeJSON  FileType = "json"
)

// UploadedFile is the durable registry entry for an uploaded file.
type UploadedFile struct {
	FileID       string    `json:"fileId"`
	Name         string    `json:"name"`
	OriginalName string    `json:"originalName"`
	Type         FileType  `json:"type"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	Checksum     string    `json:"checksum"`
	Storage      string    `json:"storage"`
	StorageKey   string    `json:"-"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// FilePreview is the first rows of an uploaded file with inferred column types.
type FilePreview struct {
	FileID    string           `json:"fileId"`
	Name      string           `json:"name"`
	Type      FileType         `json:"type"`
	Columns   []ResultColumn   `json:"columns"`
	Data      []map[string]any `json:"data"`
	TotalRows int              `json:"totalRows"`
}
