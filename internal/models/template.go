package models

import (
	"fmt"
	"strings"
	"time"
)

type FieldType string

const (
	FieldTypeText     FieldType = "TEXT"
	FieldTypeNumber   FieldType = "NUMBER"
	FieldTypeDate     FieldType = "DATE"
	FieldTypeDropdown FieldType = "DROPDOWN"
)

type FieldCategory string

const (
	FieldCategoryDynamic  FieldCategory = "DYNAMIC"
	FieldCategoryBranding FieldCategory = "BRANDING"
)

// BoundingBox is a rectangle in the normalized 1000x1000 detection space,
// independent of the source document's pixel dimensions.
type BoundingBox struct {
	YMin int `json:"ymin"`
	XMin int `json:"xmin"`
	YMax int `json:"ymax"`
	XMax int `json:"xmax"`
}

func (b BoundingBox) Validate() error {
	if b.XMin < 0 || b.YMin < 0 || b.XMax > 1000 || b.YMax > 1000 {
		return fmt.Errorf("bounding box out of 0-1000 range: %+v", b)
	}
	if b.XMin >= b.XMax || b.YMin >= b.YMax {
		return fmt.Errorf("bounding box has non-positive extent: %+v", b)
	}
	return nil
}

// FieldStyle captures the typography surrounding a detected field so
// overlaid values visually match the master design. All members are
// optional; the renderer supplies defaults.
type FieldStyle struct {
	Color      string `json:"color,omitempty"`
	FontSize   string `json:"fontSize,omitempty"`
	FontWeight string `json:"fontWeight,omitempty"`
	FontFamily string `json:"fontFamily,omitempty"`
	TextAlign  string `json:"textAlign,omitempty"`
}

// TemplateField is a named, typed data slot. A field without a Rect is a
// logical field usable only in text-substitution mode.
type TemplateField struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Type         FieldType     `json:"type"`
	Category     FieldCategory `json:"category"`
	Required     bool          `json:"required"`
	DefaultValue string        `json:"defaultValue,omitempty"`
	Options      []string      `json:"options,omitempty"`
	Rect         *BoundingBox  `json:"rect,omitempty"`
	Style        *FieldStyle   `json:"style,omitempty"`
	PageIndex    int           `json:"pageIndex"`
}

func (f TemplateField) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("field %q has an empty name", f.ID)
	}
	if f.Rect != nil {
		if err := f.Rect.Validate(); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return nil
}

type VersionHistoryEntry struct {
	ID      string    `json:"id"`
	Version string    `json:"version"`
	Date    time.Time `json:"date"`
	Author  string    `json:"author"`
	Changes string    `json:"changes"`
}

// DocumentTemplate is a reusable branded document definition plus its
// dynamic fields. FidelityImage and FidelityMaster hold storage object
// references, never inline bytes.
type DocumentTemplate struct {
	ID             string                `json:"id"`
	WorkspaceID    string                `json:"workspaceId"`
	Name           string                `json:"name"`
	Description    string                `json:"description"`
	Category       string                `json:"category"`
	SubCategory    string                `json:"subCategory,omitempty"`
	Tags           []string              `json:"tags"`
	Content        string                `json:"content"`
	FidelityImage  string                `json:"fidelityImage,omitempty"`
	FidelityMaster string                `json:"fidelityMaster,omitempty"`
	Fields         []TemplateField       `json:"fields"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
	Version        int                   `json:"version"`
	History        []VersionHistoryEntry `json:"history"`
	UsageCount     int                   `json:"usageCount"`
	IsFavorite     bool                  `json:"isFavorite"`
}

// FieldIndex returns the template's fields keyed by name. Name
// uniqueness is enforced here structurally rather than by convention.
func (t *DocumentTemplate) FieldIndex() (map[string]TemplateField, error) {
	index := make(map[string]TemplateField, len(t.Fields))
	for _, f := range t.Fields {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if _, dup := index[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field name %q", f.Name)
		}
		index[f.Name] = f
	}
	return index, nil
}

func (t *DocumentTemplate) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("template name is empty")
	}
	_, err := t.FieldIndex()
	return err
}

// FieldNames returns the field names in declaration order.
func (t *DocumentTemplate) FieldNames() []string {
	names := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		names = append(names, f.Name)
	}
	return names
}

// DynamicFieldNames returns the names of DYNAMIC-category fields, the
// only ones exposed to the AI fill assistant.
func (t *DocumentTemplate) DynamicFieldNames() []string {
	var names []string
	for _, f := range t.Fields {
		if f.Category == FieldCategoryDynamic {
			names = append(names, f.Name)
		}
	}
	return names
}
