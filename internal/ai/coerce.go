package ai

import (
	"fmt"
	"strings"

	"DF-FIDELITY/internal/models"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// The recognition service returns loosely-typed JSON: coordinates may be
// floats, field names may arrive under several keys, and the type
// vocabulary drifts between model revisions. Everything is validated
// and coerced into the strict model shapes here; entries that cannot be
// repaired are rejected rather than propagated.

type rawDetectionResponse struct {
	SuggestedTitle string     `json:"suggestedTitle"`
	Fields         []rawField `json:"fields"`
}

type rawField struct {
	Name         string    `json:"name"`
	VariableName string    `json:"variableName"`
	Label        string    `json:"label"`
	Type         string    `json:"type"`
	Rect         *rawRect  `json:"rect"`
	Style        *rawStyle `json:"style"`
}

type rawRect struct {
	YMin float64 `json:"ymin"`
	XMin float64 `json:"xmin"`
	YMax float64 `json:"ymax"`
	XMax float64 `json:"xmax"`
}

type rawStyle struct {
	Color      string `json:"color"`
	FontSize   string `json:"fontSize"`
	FontWeight string `json:"fontWeight"`
	FontFamily string `json:"fontFamily"`
	TextAlign  string `json:"textAlign"`
}

func coerceDetection(raw *rawDetectionResponse) *DetectionResult {
	result := &DetectionResult{
		SuggestedTitle: strings.TrimSpace(raw.SuggestedTitle),
		Fields:         []models.TemplateField{},
	}
	if result.SuggestedTitle == "" {
		result.SuggestedTitle = "Untitled"
	}

	for i, rf := range raw.Fields {
		name := firstNonEmpty(rf.Name, rf.VariableName, rf.Label)
		if strings.TrimSpace(name) == "" {
			klog.V(4).Infof("dropping detected field %d: no usable name", i)
			continue
		}

		field := models.TemplateField{
			ID:        fmt.Sprintf("field-%d-%s", i, uuid.New().String()[:8]),
			Name:      strings.TrimSpace(name),
			Type:      coerceType(rf.Type),
			Category:  models.FieldCategoryDynamic,
			Required:  true,
			PageIndex: 0,
		}

		if rf.Rect != nil {
			box := coerceRect(*rf.Rect)
			if err := box.Validate(); err != nil {
				klog.V(4).Infof("dropping detected field %q: %v", field.Name, err)
				continue
			}
			field.Rect = &box
		}

		if rf.Style != nil {
			field.Style = &models.FieldStyle{
				Color:      rf.Style.Color,
				FontSize:   rf.Style.FontSize,
				FontWeight: rf.Style.FontWeight,
				FontFamily: rf.Style.FontFamily,
				TextAlign:  coerceAlign(rf.Style.TextAlign),
			}
		}

		result.Fields = append(result.Fields, field)
	}
	return result
}

func coerceRect(r rawRect) models.BoundingBox {
	return models.BoundingBox{
		YMin: clamp(int(r.YMin + 0.5)),
		XMin: clamp(int(r.XMin + 0.5)),
		YMax: clamp(int(r.YMax + 0.5)),
		XMax: clamp(int(r.XMax + 0.5)),
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 1000 {
		return 1000
	}
	return v
}

func coerceType(s string) models.FieldType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TEXT", "STRING":
		return models.FieldTypeText
	case "NUMBER", "CURRENCY":
		return models.FieldTypeNumber
	case "DATE":
		return models.FieldTypeDate
	case "DROPDOWN":
		return models.FieldTypeDropdown
	default:
		return models.FieldTypeText
	}
}

func coerceAlign(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "center", "right":
		return strings.ToLower(strings.TrimSpace(s))
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
