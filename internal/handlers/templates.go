package handlers

import (
	"net/http"
	"strconv"

	"DF-FIDELITY/internal/models"
	"DF-FIDELITY/internal/services"

	"github.com/gin-gonic/gin"
)

type TemplatesHandler struct {
	templates *services.TemplateService
}

func NewTemplatesHandler(templates *services.TemplateService) *TemplatesHandler {
	return &TemplatesHandler{templates: templates}
}

func (h *TemplatesHandler) List(c *gin.Context) {
	templates, err := h.templates.List(c.GetHeader("X-Workspace-ID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates, "total": len(templates)})
}

func (h *TemplatesHandler) Get(c *gin.Context) {
	tmpl, err := h.templates.Get(c.Param("templateId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

type UpdateTemplateRequest struct {
	Template models.DocumentTemplate `json:"template"`
	Author   string                  `json:"author"`
	Changes  string                  `json:"changes"`
}

// Update saves an edited template, bumping its version and appending a
// history entry.
func (h *TemplatesHandler) Update(c *gin.Context) {
	var req UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	req.Template.ID = c.Param("templateId")

	if err := h.templates.Update(&req.Template, req.Author, req.Changes); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req.Template)
}

func (h *TemplatesHandler) Delete(c *gin.Context) {
	if err := h.templates.Delete(c.Request.Context(), c.Param("templateId")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted"})
}

func (h *TemplatesHandler) SetFavorite(c *gin.Context) {
	var req struct {
		Favorite bool `json:"favorite"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	if err := h.templates.SetFavorite(c.Param("templateId"), req.Favorite); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorite": req.Favorite})
}

// MasterImage streams a stored page master for on-screen display.
func (h *TemplatesHandler) MasterImage(c *gin.Context) {
	tmpl, err := h.templates.Get(c.Param("templateId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		return
	}

	pageIndex := 0
	if raw := c.Query("page"); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil || idx < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page index"})
			return
		}
		pageIndex = idx
	}

	data, err := h.templates.MasterImage(c.Request.Context(), tmpl, pageIndex)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

func (h *TemplatesHandler) Categories(c *gin.Context) {
	categories, err := h.templates.Categories(c.GetHeader("X-Workspace-ID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *TemplatesHandler) RemoveSubCategory(c *gin.Context) {
	err := h.templates.RemoveSubCategory(
		c.GetHeader("X-Workspace-ID"),
		c.Param("category"),
		c.Param("subCategory"),
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sub-category removed"})
}
