package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"DF-FIDELITY/internal/models"
	"DF-FIDELITY/internal/raster"
	"DF-FIDELITY/internal/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"k8s.io/klog/v2"
)

// templateRow is the persisted shape of a DocumentTemplate. Fields,
// history, and tags are JSON document columns; fidelity blobs live in
// object storage and the row keeps references only.
type templateRow struct {
	ID             string `gorm:"type:varchar(64);primaryKey"`
	WorkspaceID    string `gorm:"type:varchar(64);not null;index"`
	Name           string `gorm:"not null"`
	Description    string `gorm:"type:text"`
	Category       string
	SubCategory    string
	Tags           string `gorm:"type:json"`
	Content        string `gorm:"type:longtext"`
	FidelityImage  string
	FidelityMaster string
	Fields         string `gorm:"type:json"`
	History        string `gorm:"type:json"`
	Version        int    `gorm:"not null;default:1"`
	UsageCount     int    `gorm:"not null;default:0"`
	IsFavorite     bool   `gorm:"not null;default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (templateRow) TableName() string { return "document_templates" }

type categoryRow struct {
	ID            string `gorm:"type:varchar(64);primaryKey"`
	WorkspaceID   string `gorm:"type:varchar(64);not null;index"`
	Name          string `gorm:"not null"`
	SubCategories string `gorm:"type:json"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (categoryRow) TableName() string { return "template_categories" }

// TemplateService owns template persistence, versioning, and category
// bookkeeping. The database handle is injected; there is no package
// global.
type TemplateService struct {
	db  *gorm.DB
	gcs *storage.GCSClient
}

func NewTemplateService(db *gorm.DB, gcs *storage.GCSClient) *TemplateService {
	return &TemplateService{db: db, gcs: gcs}
}

// TemplateModels returns the GORM models this service migrates.
func TemplateModels() []any {
	return []any{&templateRow{}, &categoryRow{}}
}

// Create persists a freshly authored template: page masters and the
// original source go to object storage, the metadata row to the
// database. A storage failure before the row exists leaves nothing
// behind; a database failure rolls the uploaded objects back.
func (s *TemplateService) Create(ctx context.Context, tmpl *models.DocumentTemplate, pages []raster.Page, source []byte, sourceMime string) error {
	if err := tmpl.Validate(); err != nil {
		return err
	}

	var uploaded []string
	cleanup := func() {
		for _, object := range uploaded {
			if err := s.gcs.DeleteFile(ctx, object); err != nil {
				klog.Warningf("failed to roll back object %s: %v", object, err)
			}
		}
	}

	for i, page := range pages {
		object := storage.MasterObjectName(tmpl.ID, i)
		if _, err := s.gcs.UploadBytes(ctx, page.MasterPNG, object, "image/png"); err != nil {
			cleanup()
			return fmt.Errorf("failed to upload master page %d: %w", i, err)
		}
		uploaded = append(uploaded, object)
	}
	if len(pages) > 0 {
		tmpl.FidelityImage = storage.MasterObjectName(tmpl.ID, 0)
	}

	if source != nil {
		object := storage.SourceObjectName(tmpl.ID)
		if _, err := s.gcs.UploadBytes(ctx, source, object, sourceMime); err != nil {
			cleanup()
			return fmt.Errorf("failed to upload fidelity master: %w", err)
		}
		uploaded = append(uploaded, object)
		tmpl.FidelityMaster = object
	}

	row, err := encodeTemplate(tmpl)
	if err != nil {
		cleanup()
		return err
	}
	if err := s.db.Create(row).Error; err != nil {
		cleanup()
		return fmt.Errorf("failed to save template metadata: %w", err)
	}

	s.ensureCategory(tmpl.WorkspaceID, tmpl.Category, tmpl.SubCategory)
	klog.V(4).Infof("template %s saved at version %d with %d fields", tmpl.ID, tmpl.Version, len(tmpl.Fields))
	return nil
}

func (s *TemplateService) Get(id string) (*models.DocumentTemplate, error) {
	var row templateRow
	if err := s.db.First(&row, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("template not found: %w", err)
	}
	return decodeTemplate(&row)
}

func (s *TemplateService) List(workspaceID string) ([]models.DocumentTemplate, error) {
	var rows []templateRow
	if err := s.db.Where("workspace_id = ?", workspaceID).Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	templates := make([]models.DocumentTemplate, 0, len(rows))
	for i := range rows {
		tmpl, err := decodeTemplate(&rows[i])
		if err != nil {
			return nil, err
		}
		templates = append(templates, *tmpl)
	}
	return templates, nil
}

// Update applies a content-affecting change: the integer version is
// bumped and a history entry is appended. History is append-only; the
// stored entries are never rewritten.
func (s *TemplateService) Update(tmpl *models.DocumentTemplate, author, changes string) error {
	if err := tmpl.Validate(); err != nil {
		return err
	}

	existing, err := s.Get(tmpl.ID)
	if err != nil {
		return err
	}

	tmpl.CreatedAt = existing.CreatedAt
	tmpl.Version = existing.Version + 1
	tmpl.UpdatedAt = time.Now().UTC()
	tmpl.History = append(append([]models.VersionHistoryEntry(nil), existing.History...), models.VersionHistoryEntry{
		ID:      fmt.Sprintf("v%d-%s", tmpl.Version, uuid.New().String()[:8]),
		Version: fmt.Sprintf("%d.0.0", tmpl.Version),
		Date:    tmpl.UpdatedAt,
		Author:  author,
		Changes: changes,
	})

	row, err := encodeTemplate(tmpl)
	if err != nil {
		return err
	}
	if err := s.db.Save(row).Error; err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}

	s.ensureCategory(tmpl.WorkspaceID, tmpl.Category, tmpl.SubCategory)
	return nil
}

func (s *TemplateService) Delete(ctx context.Context, id string) error {
	tmpl, err := s.Get(id)
	if err != nil {
		return err
	}

	for _, object := range []string{tmpl.FidelityImage, tmpl.FidelityMaster} {
		if object == "" {
			continue
		}
		if err := s.gcs.DeleteFile(ctx, object); err != nil {
			klog.Warningf("failed to delete object %s: %v", object, err)
		}
	}

	return s.db.Delete(&templateRow{}, "id = ?", id).Error
}

func (s *TemplateService) IncrementUsage(id string) error {
	return s.db.Model(&templateRow{}).Where("id = ?", id).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error
}

func (s *TemplateService) SetFavorite(id string, favorite bool) error {
	return s.db.Model(&templateRow{}).Where("id = ?", id).
		UpdateColumn("is_favorite", favorite).Error
}

// MasterImage fetches one page's master PNG from object storage.
func (s *TemplateService) MasterImage(ctx context.Context, tmpl *models.DocumentTemplate, pageIndex int) ([]byte, error) {
	object := storage.MasterObjectName(tmpl.ID, pageIndex)
	reader, err := s.gcs.ReadFile(ctx, object)
	if err != nil {
		return nil, fmt.Errorf("failed to read master image %s: %w", object, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read master image %s: %w", object, err)
	}
	return data, nil
}

func (s *TemplateService) Categories(workspaceID string) ([]models.Category, error) {
	var rows []categoryRow
	if err := s.db.Where("workspace_id = ?", workspaceID).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	categories := make([]models.Category, 0, len(rows))
	for _, row := range rows {
		var subs []string
		if row.SubCategories != "" {
			if err := json.Unmarshal([]byte(row.SubCategories), &subs); err != nil {
				return nil, fmt.Errorf("failed to decode subcategories: %w", err)
			}
		}
		categories = append(categories, models.Category{
			ID:            row.ID,
			WorkspaceID:   row.WorkspaceID,
			Name:          row.Name,
			SubCategories: subs,
		})
	}
	return categories, nil
}

// RemoveSubCategory is the one authorized mutation of the otherwise
// append-only subcategory set.
func (s *TemplateService) RemoveSubCategory(workspaceID, category, subCategory string) error {
	var row categoryRow
	if err := s.db.First(&row, "workspace_id = ? AND name = ?", workspaceID, category).Error; err != nil {
		return fmt.Errorf("category not found: %w", err)
	}

	var subs []string
	if row.SubCategories != "" {
		if err := json.Unmarshal([]byte(row.SubCategories), &subs); err != nil {
			return fmt.Errorf("failed to decode subcategories: %w", err)
		}
	}
	kept := subs[:0]
	for _, sub := range subs {
		if sub != subCategory {
			kept = append(kept, sub)
		}
	}

	encoded, err := json.Marshal(kept)
	if err != nil {
		return fmt.Errorf("failed to encode subcategories: %w", err)
	}
	return s.db.Model(&row).UpdateColumn("sub_categories", string(encoded)).Error
}

// ensureCategory registers the category and subcategory if new.
// Append-only: existing entries are never disturbed. Failures are
// logged, not surfaced; category bookkeeping must not block a save.
func (s *TemplateService) ensureCategory(workspaceID, name, subCategory string) {
	if name == "" {
		return
	}

	var row categoryRow
	err := s.db.First(&row, "workspace_id = ? AND name = ?", workspaceID, name).Error
	if err != nil {
		subs := []string{}
		if subCategory != "" {
			subs = append(subs, subCategory)
		}
		encoded, _ := json.Marshal(subs)
		row = categoryRow{
			ID:            "cat-" + uuid.New().String(),
			WorkspaceID:   workspaceID,
			Name:          name,
			SubCategories: string(encoded),
		}
		if err := s.db.Create(&row).Error; err != nil {
			klog.Warningf("failed to create category %q: %v", name, err)
		}
		return
	}

	if subCategory == "" {
		return
	}
	var subs []string
	if row.SubCategories != "" {
		if err := json.Unmarshal([]byte(row.SubCategories), &subs); err != nil {
			klog.Warningf("failed to decode subcategories for %q: %v", name, err)
			return
		}
	}
	for _, sub := range subs {
		if sub == subCategory {
			return
		}
	}
	encoded, _ := json.Marshal(append(subs, subCategory))
	if err := s.db.Model(&row).UpdateColumn("sub_categories", string(encoded)).Error; err != nil {
		klog.Warningf("failed to append subcategory %q: %v", subCategory, err)
	}
}

func encodeTemplate(tmpl *models.DocumentTemplate) (*templateRow, error) {
	fields, err := json.Marshal(tmpl.Fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}
	history, err := json.Marshal(tmpl.History)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}
	tags, err := json.Marshal(tmpl.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}

	return &templateRow{
		ID:             tmpl.ID,
		WorkspaceID:    tmpl.WorkspaceID,
		Name:           tmpl.Name,
		Description:    tmpl.Description,
		Category:       tmpl.Category,
		SubCategory:    tmpl.SubCategory,
		Tags:           string(tags),
		Content:        tmpl.Content,
		FidelityImage:  tmpl.FidelityImage,
		FidelityMaster: tmpl.FidelityMaster,
		Fields:         string(fields),
		History:        string(history),
		Version:        tmpl.Version,
		UsageCount:     tmpl.UsageCount,
		IsFavorite:     tmpl.IsFavorite,
		CreatedAt:      tmpl.CreatedAt,
		UpdatedAt:      tmpl.UpdatedAt,
	}, nil
}

func decodeTemplate(row *templateRow) (*models.DocumentTemplate, error) {
	tmpl := &models.DocumentTemplate{
		ID:             row.ID,
		WorkspaceID:    row.WorkspaceID,
		Name:           row.Name,
		Description:    row.Description,
		Category:       row.Category,
		SubCategory:    row.SubCategory,
		Content:        row.Content,
		FidelityImage:  row.FidelityImage,
		FidelityMaster: row.FidelityMaster,
		Version:        row.Version,
		UsageCount:     row.UsageCount,
		IsFavorite:     row.IsFavorite,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}

	if err := json.Unmarshal([]byte(row.Fields), &tmpl.Fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}
	if err := json.Unmarshal([]byte(row.History), &tmpl.History); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	if err := json.Unmarshal([]byte(row.Tags), &tmpl.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	return tmpl, nil
}
