package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stackit/internal/apperr"
)

// Error writes a domain error as a structured JSON response. Errors
// without a known kind are masked as a plain 500.
func Error(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == "" {
		c.JSON(http.StatusInternalServerError, gin.H{
			"kind":  "internal",
			"error": "internal server error",
		})
		return
	}
	c.JSON(apperr.HTTPStatus(err), gin.H{
		"kind":  string(kind),
		"error": err.Error(),
	})
}
