package handlers

import (
	"errors"
	"net/http"

	"DF-FIDELITY/internal/errs"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// writeError maps service errors onto HTTP statuses. Typed errors carry
// their own code and detail; everything else is a plain 500.
func writeError(c *gin.Context, err error) {
	var validationErr *errs.ValidationError
	if errors.As(err, &validationErr) {
		body := gin.H{"error": validationErr.Message}
		if len(validationErr.Fields) > 0 {
			body["fields"] = validationErr.Fields
		}
		c.JSON(http.StatusBadRequest, body)
		return
	}

	var serviceErr *errs.ExternalServiceError
	if errors.As(err, &serviceErr) {
		status := http.StatusBadGateway
		switch serviceErr.Code {
		case errs.CodePayloadTooLarge:
			status = http.StatusRequestEntityTooLarge
		case errs.CodeAIUnavailable:
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": serviceErr.Message, "code": string(serviceErr.Code)})
		return
	}

	var renderErr *errs.RenderError
	if errors.As(err, &renderErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": renderErr.Error()})
		return
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
