package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"DF-FIDELITY/internal/errs"
	"DF-FIDELITY/internal/generator"
	"DF-FIDELITY/internal/models"
	"DF-FIDELITY/internal/render"
	"DF-FIDELITY/internal/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"k8s.io/klog/v2"
)

const downloadURLTTL = 24 * time.Hour

// BulkService runs bulk generation jobs and tracks their lifecycle.
// Rows inside a job are processed strictly sequentially; only distinct
// jobs run concurrently.
type BulkService struct {
	db        *gorm.DB
	gcs       *storage.GCSClient
	templates *TemplateService
	renderer  *render.Renderer
}

func NewBulkService(db *gorm.DB, gcs *storage.GCSClient, templates *TemplateService, renderer *render.Renderer) *BulkService {
	return &BulkService{db: db, gcs: gcs, templates: templates, renderer: renderer}
}

// BulkModels returns the GORM models this service migrates.
func BulkModels() []any {
	return []any{&models.BulkGenerationJob{}}
}

// Start creates a job in QUEUED and runs the pipeline on a background
// goroutine. The template is snapshotted here: concurrent edits or even
// deletion of the template cannot affect this run or its archive.
func (s *BulkService) Start(ctx context.Context, templateID string, dataset *generator.Dataset, mapping map[string]string) (*models.BulkGenerationJob, error) {
	tmpl, err := s.templates.Get(templateID)
	if err != nil {
		return nil, err
	}

	var masterPNG []byte
	if tmpl.Content == "" {
		masterPNG, err = s.templates.MasterImage(ctx, tmpl, 0)
		if err != nil {
			return nil, fmt.Errorf("template has no text body and its master image is unavailable: %w", err)
		}
	}

	job := &models.BulkGenerationJob{
		ID:           "job-" + uuid.New().String(),
		TemplateID:   tmpl.ID,
		TemplateName: tmpl.Name,
		TotalRecords: len(dataset.Rows),
		Status:       models.JobStatusQueued,
	}
	if err := s.db.Create(job).Error; err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	// Detached from the request context so a dropped connection
	// cannot kill a running job.
	go s.run(context.Background(), job, tmpl, dataset, mapping, masterPNG)

	return job, nil
}

func (s *BulkService) run(ctx context.Context, job *models.BulkGenerationJob, tmpl *models.DocumentTemplate, dataset *generator.Dataset, mapping map[string]string, masterPNG []byte) {
	s.setStatus(job.ID, models.JobStatusProcessing, "")

	archive, err := generator.RunBulk(ctx, generator.BulkInput{
		Template:  tmpl,
		Dataset:   dataset,
		Mapping:   mapping,
		MasterPNG: masterPNG,
	}, s.renderer, func(processed int) {
		// The only externally observable mid-flight state. processed is
		// monotonic and lands on TotalRecords exactly once.
		if err := s.db.Model(&models.BulkGenerationJob{}).Where("id = ?", job.ID).
			UpdateColumn("processed_records", processed).Error; err != nil {
			klog.Warningf("job %s: failed to record progress: %v", job.ID, err)
		}
	})
	if err != nil {
		// Partial output has been discarded; the processed count stays
		// frozen at the last completed batch boundary.
		var batchErr *errs.BatchError
		msg := err.Error()
		if errors.As(err, &batchErr) {
			msg = batchErr.Error()
		}
		klog.Errorf("job %s failed: %v", job.ID, err)
		s.setStatus(job.ID, models.JobStatusFailed, msg)
		return
	}

	object := storage.ArchiveObjectName(job.ID)
	if _, err := s.gcs.UploadBytes(ctx, archive, object, "application/zip"); err != nil {
		klog.Errorf("job %s: archive upload failed: %v", job.ID, err)
		s.setStatus(job.ID, models.JobStatusFailed, "failed to store the export archive")
		return
	}

	updates := map[string]any{
		"status":       models.JobStatusCompleted,
		"archive_path": object,
		"error":        "",
	}
	if err := s.db.Model(&models.BulkGenerationJob{}).Where("id = ?", job.ID).Updates(updates).Error; err != nil {
		klog.Errorf("job %s: failed to record completion: %v", job.ID, err)
		return
	}

	if err := s.templates.IncrementUsage(tmpl.ID); err != nil {
		klog.Warningf("job %s: failed to bump template usage: %v", job.ID, err)
	}
	klog.V(2).Infof("job %s completed: %d records archived to %s", job.ID, job.TotalRecords, object)
}

// Get returns a job with its download URL resolved when completed.
func (s *BulkService) Get(id string) (*models.BulkGenerationJob, error) {
	var job models.BulkGenerationJob
	if err := s.db.First(&job, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("job not found: %w", err)
	}

	if job.Status == models.JobStatusCompleted && job.ArchivePath != "" {
		url, err := s.gcs.GetSignedURL(job.ArchivePath, downloadURLTTL)
		if err != nil {
			klog.Warningf("job %s: failed to sign download URL: %v", id, err)
		} else {
			job.DownloadURL = url
		}
	}
	return &job, nil
}

func (s *BulkService) List(templateID string) ([]models.BulkGenerationJob, error) {
	var jobs []models.BulkGenerationJob
	query := s.db.Order("created_at DESC")
	if templateID != "" {
		query = query.Where("template_id = ?", templateID)
	}
	if err := query.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// Archive streams a completed job's archive for download.
func (s *BulkService) Archive(ctx context.Context, id string) ([]byte, string, error) {
	job, err := s.Get(id)
	if err != nil {
		return nil, "", err
	}
	if job.Status != models.JobStatusCompleted || job.ArchivePath == "" {
		return nil, "", fmt.Errorf("job %s has no archive (status %s)", id, job.Status)
	}

	reader, err := s.gcs.ReadFile(ctx, job.ArchivePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read archive: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read archive: %w", err)
	}
	return data, fmt.Sprintf("%s_bulk_export.zip", job.TemplateName), nil
}

func (s *BulkService) setStatus(id string, status models.JobStatus, errMsg string) {
	updates := map[string]any{"status": status}
	if errMsg != "" {
		updates["error"] = errMsg
	}
	if err := s.db.Model(&models.BulkGenerationJob{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		klog.Warningf("job %s: failed to set status %s: %v", id, status, err)
	}
}
