package dto

import "time"

// ContentFileDTO is one signed file download.
type ContentFileDTO struct {
	FileID           string    `json:"file_id"`
	OriginalFilename string    `json:"original_filename"`
	Mime             string    `json:"mime"`
	URL              string    `json:"url"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// ResourceContentResponseDTO is returned once the gate lets the user in.
type ResourceContentResponseDTO struct {
	ResourceID string                    `json:"resource_id"`
	Access     AccessDecisionResponseDTO `json:"access"`
	Files      []ContentFileDTO          `json:"files"`
}
