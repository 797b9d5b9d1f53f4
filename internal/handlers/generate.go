package handlers

import (
	"fmt"
	"net/http"

	"DF-FIDELITY/internal/generator"
	"DF-FIDELITY/internal/render"
	"DF-FIDELITY/internal/services"

	"github.com/gin-gonic/gin"
)

// GenerateHandler serves single-document generation: previews, AI form
// fill, and export in image, Word-compatible, or PDF form. Each request
// works on its own template snapshot.
type GenerateHandler struct {
	templates *services.TemplateService
	renderer  *render.Renderer
	filler    generator.FormFiller
	pdf       *services.PDFService
}

func NewGenerateHandler(templates *services.TemplateService, renderer *render.Renderer, filler generator.FormFiller, pdf *services.PDFService) *GenerateHandler {
	return &GenerateHandler{templates: templates, renderer: renderer, filler: filler, pdf: pdf}
}

type GenerateRequest struct {
	Values map[string]string `json:"values"`
	Page   int               `json:"page"`
	Focus  string            `json:"focus,omitempty"`
	// Format selects the export artifact: "png", "doc" or "pdf".
	Format string `json:"format,omitempty"`
}

func (h *GenerateHandler) session(c *gin.Context, values map[string]string) (*generator.Session, bool) {
	tmpl, err := h.templates.Get(c.Param("templateId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
		return nil, false
	}

	session, err := generator.NewSession(tmpl, h.renderer)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	for name, value := range values {
		if err := session.SetValue(name, value); err != nil {
			writeError(c, err)
			return nil, false
		}
	}
	return session, true
}

// Preview renders the filled template with unfilled fields shown as
// bracketed placeholders.
func (h *GenerateHandler) Preview(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	session, ok := h.session(c, req.Values)
	if !ok {
		return
	}

	master, err := h.templates.MasterImage(c.Request.Context(), session.Template(), req.Page)
	if err != nil {
		writeError(c, err)
		return
	}

	png, err := session.Preview(master, req.Page, req.Focus)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

type AIFillRequest struct {
	Values      map[string]string `json:"values"`
	Instruction string            `json:"instruction"`
}

// AIFill asks the assistant for values and merges suggestions for known
// fields over the current ones. Unavailable assistance degrades to no
// change.
func (h *GenerateHandler) AIFill(c *gin.Context) {
	var req AIFillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	session, ok := h.session(c, req.Values)
	if !ok {
		return
	}

	session.AIFill(c.Request.Context(), h.filler, req.Instruction)
	c.JSON(http.StatusOK, gin.H{"values": session.Values()})
}

// Export produces the final artifact. Required fields must all carry
// values; violations list the missing names.
func (h *GenerateHandler) Export(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	session, ok := h.session(c, req.Values)
	if !ok {
		return
	}
	tmpl := session.Template()

	switch req.Format {
	case "", "png":
		master, err := h.templates.MasterImage(c.Request.Context(), tmpl, req.Page)
		if err != nil {
			writeError(c, err)
			return
		}
		png, err := session.Export(master, req.Page)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.png", tmpl.Name))
		c.Data(http.StatusOK, "image/png", png)

	case "doc":
		doc, err := session.ExportDoc()
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.doc", tmpl.Name))
		c.Data(http.StatusOK, "application/msword", []byte(doc))

	case "pdf":
		doc, err := session.ExportDoc()
		if err != nil {
			writeError(c, err)
			return
		}
		pdf, err := h.pdf.ConvertDocToPDF(c.Request.Context(), []byte(doc), tmpl.Name+".doc")
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", tmpl.Name))
		c.Data(http.StatusOK, "application/pdf", pdf)

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unsupported format %q", req.Format)})
	}
}
