package models

import (
	"time"

	"gorm.io/gorm"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "QUEUED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// BulkGenerationJob tracks one bulk production run. It references its
// template by id but does not own it: deleting the template later must
// not invalidate an already-produced archive, so the archive path is
// recorded on the job itself.
type BulkGenerationJob struct {
	ID               string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	TemplateID       string         `gorm:"type:varchar(36);not null;index" json:"template_id"`
	TemplateName     string         `gorm:"not null" json:"template_name"`
	TotalRecords     int            `gorm:"not null" json:"total_records"`
	ProcessedRecords int            `gorm:"not null" json:"processed_records"`
	Status           JobStatus      `gorm:"type:varchar(16);not null;default:'QUEUED'" json:"status"`
	ArchivePath      string         `json:"-"`
	DownloadURL      string         `gorm:"-" json:"download_url,omitempty"`
	Error            string         `json:"error,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (BulkGenerationJob) TableName() string {
	return "bulk_generation_jobs"
}
