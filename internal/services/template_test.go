package services

import (
	"context"
	"testing"
	"time"

	"DF-FIDELITY/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&templateRow{}, &categoryRow{}, &models.BulkGenerationJob{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func storedTemplate() *models.DocumentTemplate {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.DocumentTemplate{
		ID:          "tmpl-test-1",
		WorkspaceID: "ws-1",
		Name:        "Purchase Order",
		Description: "Standard PO form",
		Category:    "Finance",
		SubCategory: "Procurement",
		Tags:        []string{"finance", "po"},
		Content:     "<p>Order for {{Client Name}}</p>",
		Fields: []models.TemplateField{
			{
				ID: "f1", Name: "Client Name", Type: models.FieldTypeText,
				Category: models.FieldCategoryDynamic, Required: true,
				Rect:  &models.BoundingBox{YMin: 100, XMin: 100, YMax: 150, XMax: 600},
				Style: &models.FieldStyle{Color: "#0f172a", FontSize: "1.8vw", TextAlign: "left"},
			},
			{
				ID: "f2", Name: "Amount", Type: models.FieldTypeNumber,
				Category: models.FieldCategoryDynamic, Required: false,
				DefaultValue: "0.00",
			},
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		History: []models.VersionHistoryEntry{
			{ID: "v1-a", Version: "1.0.0", Date: now, Author: "pat", Changes: "initial creation"},
		},
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	svc := NewTemplateService(testDB(t), nil)
	tmpl := storedTemplate()

	if err := svc.Create(context.Background(), tmpl, nil, nil, ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.Get(tmpl.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got.Name != tmpl.Name || got.Content != tmpl.Content {
		t.Fatalf("metadata mismatch: %+v", got)
	}
	if len(got.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(got.Fields))
	}
	if got.Fields[0].Rect == nil || *got.Fields[0].Rect != *tmpl.Fields[0].Rect {
		t.Fatalf("rect did not survive the round trip: %+v", got.Fields[0].Rect)
	}
	if got.Fields[0].Style == nil || got.Fields[0].Style.FontSize != "1.8vw" {
		t.Fatalf("style did not survive the round trip: %+v", got.Fields[0].Style)
	}
	if got.Fields[1].DefaultValue != "0.00" {
		t.Fatalf("default value lost: %+v", got.Fields[1])
	}
	if len(got.Tags) != 2 || got.Tags[0] != "finance" {
		t.Fatalf("tags mismatch: %v", got.Tags)
	}
	if len(got.History) != 1 || got.History[0].Changes != "initial creation" {
		t.Fatalf("history mismatch: %+v", got.History)
	}
}

func TestTemplateCreateRejectsInvalid(t *testing.T) {
	svc := NewTemplateService(testDB(t), nil)

	tmpl := storedTemplate()
	tmpl.Name = "  "
	if err := svc.Create(context.Background(), tmpl, nil, nil, ""); err == nil {
		t.Fatal("expected empty name to be rejected")
	}

	tmpl = storedTemplate()
	tmpl.Fields = append(tmpl.Fields, tmpl.Fields[0])
	if err := svc.Create(context.Background(), tmpl, nil, nil, ""); err == nil {
		t.Fatal("expected duplicate field names to be rejected")
	}
}

func TestTemplateUpdateBumpsVersionAndAppendsHistory(t *testing.T) {
	svc := NewTemplateService(testDB(t), nil)
	tmpl := storedTemplate()
	if err := svc.Create(context.Background(), tmpl, nil, nil, ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	edited, err := svc.Get(tmpl.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	edited.Description = "Updated PO form"
	if err := svc.Update(edited, "sam", "reworded description"); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := svc.Get(tmpl.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("expected version 2, got %d", got.Version)
	}
	if len(got.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(got.History))
	}
	if got.History[0].Changes != "initial creation" {
		t.Fatalf("history order not preserved: %+v", got.History)
	}
	last := got.History[1]
	if last.Version != "2.0.0" || last.Author != "sam" || last.Changes != "reworded description" {
		t.Fatalf("unexpected appended entry: %+v", last)
	}
	if !got.CreatedAt.Equal(tmpl.CreatedAt) {
		t.Fatalf("creation time must be preserved: %v vs %v", got.CreatedAt, tmpl.CreatedAt)
	}
}

func TestTemplateListScopedToWorkspace(t *testing.T) {
	svc := NewTemplateService(testDB(t), nil)

	a := storedTemplate()
	if err := svc.Create(context.Background(), a, nil, nil, ""); err != nil {
		t.Fatalf("create a: %v", err)
	}
	b := storedTemplate()
	b.ID = "tmpl-test-2"
	b.WorkspaceID = "ws-2"
	if err := svc.Create(context.Background(), b, nil, nil, ""); err != nil {
		t.Fatalf("create b: %v", err)
	}

	templates, err := svc.List("ws-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(templates) != 1 || templates[0].ID != "tmpl-test-1" {
		t.Fatalf("expected only ws-1 templates, got %+v", templates)
	}
}

func TestIncrementUsageAndFavorite(t *testing.T) {
	svc := NewTemplateService(testDB(t), nil)
	tmpl := storedTemplate()
	if err := svc.Create(context.Background(), tmpl, nil, nil, ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := svc.IncrementUsage(tmpl.ID); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if err := svc.SetFavorite(tmpl.ID, true); err != nil {
		t.Fatalf("favorite: %v", err)
	}

	got, err := svc.Get(tmpl.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UsageCount != 3 || !got.IsFavorite {
		t.Fatalf("expected usage 3 favorite true, got %d %v", got.UsageCount, got.IsFavorite)
	}
}

func TestCategoriesAccumulate(t *testing.T) {
	svc := NewTemplateService(testDB(t), nil)

	a := storedTemplate()
	if err := svc.Create(context.Background(), a, nil, nil, ""); err != nil {
		t.Fatalf("create a: %v", err)
	}
	b := storedTemplate()
	b.ID = "tmpl-test-2"
	b.Name = "Invoice"
	b.SubCategory = "Billing"
	if err := svc.Create(context.Background(), b, nil, nil, ""); err != nil {
		t.Fatalf("create b: %v", err)
	}

	categories, err := svc.Categories("ws-1")
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(categories) != 1 {
		t.Fatalf("expected one category, got %+v", categories)
	}
	cat := categories[0]
	if cat.Name != "Finance" || len(cat.SubCategories) != 2 {
		t.Fatalf("expected Finance with both subcategories, got %+v", cat)
	}
}

func TestRemoveSubCategory(t *testing.T) {
	svc := NewTemplateService(testDB(t), nil)
	tmpl := storedTemplate()
	if err := svc.Create(context.Background(), tmpl, nil, nil, ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.RemoveSubCategory("ws-1", "Finance", "Procurement"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	categories, err := svc.Categories("ws-1")
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(categories) != 1 || len(categories[0].SubCategories) != 0 {
		t.Fatalf("expected empty subcategory set, got %+v", categories)
	}
}
