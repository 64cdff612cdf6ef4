package models

import (
	"time"
)

// Document is the stored-file metadata row recorded after handing an archived
// CSV or rendered export to the blob store.
type Document struct {
	ID            int       `gorm:"primary_key" json:"id"`
	ObjectKey     string    `gorm:"size:512;not null;index" json:"object_key"`
	DocumentUrl   string    `gorm:"size:1024" json:"document_url"`
	FileName      string    `gorm:"size:512" json:"file_name"`
	SizeBytes     int64     `gorm:"not null;default:0" json:"size_bytes"`
	ReferenceType string    `gorm:"size:32;index:idx_document_ref,priority:1" json:"reference_type"`
	ReferenceID   int       `gorm:"index:idx_document_ref,priority:2" json:"reference_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

const (
	DocumentReferenceImportBatch = "ImportBatch"
	DocumentReferenceBaseReport  = "BaseReport"
	DocumentReferenceUserReport  = "UserReport"
)
