package handlers

import (
	"io"
	"net/http"
	"strconv"

	"DF-FIDELITY/internal/authoring"
	"DF-FIDELITY/internal/models"
	"DF-FIDELITY/internal/render"
	"DF-FIDELITY/internal/services"

	"github.com/gin-gonic/gin"
)

// maxUploadBytes caps source uploads before rasterization.
const maxUploadBytes = 50 << 20

type AuthoringHandler struct {
	manager   *authoring.Manager
	templates *services.TemplateService
	renderer  *render.Renderer
}

func NewAuthoringHandler(manager *authoring.Manager, templates *services.TemplateService, renderer *render.Renderer) *AuthoringHandler {
	return &AuthoringHandler{manager: manager, templates: templates, renderer: renderer}
}

type SessionResponse struct {
	ID        string                 `json:"id"`
	State     authoring.State        `json:"state"`
	Name      string                 `json:"name"`
	LastError string                 `json:"last_error,omitempty"`
	Fields    []models.TemplateField `json:"fields"`
	PageCount int                    `json:"page_count"`
	PageIndex int                    `json:"page_index"`
}

func sessionResponse(s *authoring.Session) SessionResponse {
	state, name, fields, pages, pageIndex := s.Snapshot()
	return SessionResponse{
		ID:        s.ID,
		State:     state,
		Name:      name,
		LastError: s.LastError(),
		Fields:    fields,
		PageCount: len(pages),
		PageIndex: pageIndex,
	}
}

func (h *AuthoringHandler) CreateSession(c *gin.Context) {
	session := h.manager.Create(c.GetHeader("X-Workspace-ID"))
	c.JSON(http.StatusCreated, sessionResponse(session))
}

func (h *AuthoringHandler) GetSession(c *gin.Context) {
	session, err := h.manager.Get(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sessionResponse(session))
}

func (h *AuthoringHandler) CancelSession(c *gin.Context) {
	h.manager.Drop(c.Param("sessionId"))
	c.JSON(http.StatusOK, gin.H{"message": "Session discarded"})
}

// UploadSource accepts the initial template source file and rasterizes
// it into page images.
func (h *AuthoringHandler) UploadSource(c *gin.Context) {
	session, err := h.manager.Get(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	source, mimeType, ok := readUpload(c, "source")
	if !ok {
		return
	}

	if err := session.Upload(source, mimeType); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(session))
}

// AddPages appends pages from an additional source file.
func (h *AuthoringHandler) AddPages(c *gin.Context) {
	session, err := h.manager.Get(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	source, mimeType, ok := readUpload(c, "source")
	if !ok {
		return
	}

	if err := session.AddPages(source, mimeType); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(session))
}

func (h *AuthoringHandler) SelectPage(c *gin.Context) {
	session, err := h.manager.Get(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		Index int `json:"index"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	if err := session.SelectPage(req.Index); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(session))
}

// Analyze runs field detection on the current page. The session reports
// SCANNING while the call is in flight.
func (h *AuthoringHandler) Analyze(c *gin.Context) {
	session, err := h.manager.Get(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	if err := session.Analyze(c.Request.Context(), h.manager.Detector()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(session))
}

func (h *AuthoringHandler) BeginRefine(c *gin.Context) {
	session, err := h.manager.Get(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	if err := session.BeginRefine(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(session))
}

func (h *AuthoringHandler) AddField(c *gin.Context) {
	session, err := h.manager.Get(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var field models.TemplateField
	if err := c.ShouldBindJSON(&field); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	added, err := session.AddField(field)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, added)
}

func (h *AuthoringHandler) UpdateField(c *gin.Context) {
	session, err := h.manager.Get(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var field models.TemplateField
	if err := c.ShouldBindJSON(&field); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	field.ID = c.Param("fieldId")

	if err := session.UpdateField(field); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, field)
}

func (h *AuthoringHandler) RemoveField(c *gin.Context) {
	session, err := h.manager.Get(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	if err := session.RemoveField(c.Param("fieldId")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Field removed"})
}

func (h *AuthoringHandler) SetName(c *gin.Context) {
	session, err := h.manager.Get(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	if err := session.SetName(req.Name); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(session))
}

// Preview renders the current page with placeholder overlays, optionally
// highlighting one field.
func (h *AuthoringHandler) Preview(c *gin.Context) {
	session, err := h.manager.Get(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	_, _, fields, pages, pageIndex := session.Snapshot()
	if len(pages) == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "No source uploaded yet"})
		return
	}
	if raw := c.Query("page"); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil || idx < 0 || idx >= len(pages) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page index"})
			return
		}
		pageIndex = idx
	}

	png, err := h.renderer.Overlay(pages[pageIndex].MasterPNG, fields, nil, render.Options{
		PageIndex:    pageIndex,
		FocusedField: c.Query("focus"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

type SaveRequest struct {
	Description string   `json:"description"`
	Category    string   `json:"category"`
	SubCategory string   `json:"sub_category"`
	Tags        []string `json:"tags"`
	Content     string   `json:"content"`
	Author      string   `json:"author"`
}

// Save materializes the session as a version-1 template and persists it.
func (h *AuthoringHandler) Save(c *gin.Context) {
	session, err := h.manager.Get(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	tmpl, pages, err := session.Save(authoring.SaveInput{
		Description: req.Description,
		Category:    req.Category,
		SubCategory: req.SubCategory,
		Tags:        req.Tags,
		Content:     req.Content,
		Author:      req.Author,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	source, sourceMime := session.Source()
	if err := h.templates.Create(c.Request.Context(), tmpl, pages, source, sourceMime); err != nil {
		writeError(c, err)
		return
	}

	h.manager.Drop(session.ID)
	c.JSON(http.StatusCreated, tmpl)
}

// readUpload pulls a multipart file field and reports its declared MIME
// type. Responds with an error itself when the upload is unusable.
func readUpload(c *gin.Context, field string) ([]byte, string, bool) {
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return nil, "", false
	}
	defer file.Close()

	if header.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return nil, "", false
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return nil, "", false
	}
	if len(data) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return nil, "", false
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, true
}
