package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tarsy-labs/deepresearch/pkg/store"
)

// writeEngineError maps an error coming back from an engine.Engine call to
// an HTTP response. A *store.ErrSessionNotFound is the only typed error the
// engine surfaces to this layer; anything else is a programming/infra
// failure.
func writeEngineError(c *gin.Context, err error) {
	var notFound *store.ErrSessionNotFound
	if errors.As(err, &notFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
