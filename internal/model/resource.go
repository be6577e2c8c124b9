package model

import "time"

// Resource is the slice of an uploaded study resource the gate needs.
type Resource struct {
	ID         string         `db:"id" json:"id"`
	UploaderID string         `db:"uploader_id" json:"uploader_id"`
	Title      string         `db:"title" json:"title"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	Files      []ResourceFile `json:"files,omitempty"`
}

// ResourceFile is one stored object attached to a resource.
type ResourceFile struct {
	ID               string `db:"id" json:"id"`
	ResourceID       string `db:"resource_id" json:"resource_id"`
	StoragePath      string `db:"storage_path" json:"storage_path"`
	OriginalFilename string `db:"original_filename" json:"original_filename"`
	Mime             string `db:"mime" json:"mime"`
}
