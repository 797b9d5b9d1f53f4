package handlers

import (
	"encoding/json"
	"net/http"

	"DF-FIDELITY/internal/generator"
	"DF-FIDELITY/internal/services"

	"github.com/gin-gonic/gin"
)

// BulkHandler serves the CSV-driven bulk generation flow: dataset
// inspection, mapping suggestion, job start, job tracking, archive
// download.
type BulkHandler struct {
	bulk      *services.BulkService
	templates *services.TemplateService
	mapping   *generator.MappingAssistant
}

func NewBulkHandler(bulk *services.BulkService, templates *services.TemplateService, mapping *generator.MappingAssistant) *BulkHandler {
	return &BulkHandler{bulk: bulk, templates: templates, mapping: mapping}
}

func (h *BulkHandler) dataset(c *gin.Context) (*generator.Dataset, bool) {
	file, _, err := c.Request.FormFile("csv")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No CSV file uploaded"})
		return nil, false
	}
	defer file.Close()

	dataset, err := generator.ParseCSV(file)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return dataset, true
}

// ParseDataset inspects an uploaded CSV: headers, row count, and a
// short sample for the mapping screen.
func (h *BulkHandler) ParseDataset(c *gin.Context) {
	dataset, ok := h.dataset(c)
	if !ok {
		return
	}

	sample := dataset.Rows
	if len(sample) > 5 {
		sample = sample[:5]
	}
	c.JSON(http.StatusOK, gin.H{
		"headers":   dataset.Headers,
		"row_count": len(dataset.Rows),
		"sample":    sample,
	})
}

// SuggestMapping proposes a field-to-header mapping for the template's
// dynamic fields. Every field appears in the result; "" means unmapped.
func (h *BulkHandler) SuggestMapping(c *gin.Context) {
	tmpl, err := h.templates.Get(c.Param("templateId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		return
	}

	dataset, ok := h.dataset(c)
	if !ok {
		return
	}

	mapping := h.mapping.Suggest(c.Request.Context(), tmpl.DynamicFieldNames(), dataset.Headers)
	c.JSON(http.StatusOK, gin.H{"mapping": mapping, "headers": dataset.Headers})
}

// StartJob launches a bulk generation run. The CSV and the confirmed
// mapping ride in the same multipart request; the mapping is a JSON
// object in the "mapping" form value.
func (h *BulkHandler) StartJob(c *gin.Context) {
	dataset, ok := h.dataset(c)
	if !ok {
		return
	}

	mapping := map[string]string{}
	if raw := c.PostForm("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mapping JSON"})
			return
		}
	}

	job, err := h.bulk.Start(c.Request.Context(), c.Param("templateId"), dataset, mapping)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (h *BulkHandler) GetJob(c *gin.Context) {
	job, err := h.bulk.Get(c.Param("jobId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *BulkHandler) ListJobs(c *gin.Context) {
	jobs, err := h.bulk.List(c.Query("template_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "total": len(jobs)})
}

// DownloadArchive streams a completed job's zip archive.
func (h *BulkHandler) DownloadArchive(c *gin.Context) {
	data, filename, err := h.bulk.Archive(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/zip", data)
}
