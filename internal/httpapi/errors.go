package httpapi

import (
	"net/http"

	"github.com/Makazone/howhappy-api/internal/apperr"
	"github.com/Makazone/howhappy-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError is the single mapping from service errors to HTTP responses.
func writeError(c *gin.Context, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		logger.Error("Unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	status := http.StatusInternalServerError
	switch ae.Code {
	case apperr.CodeInvalid:
		status = http.StatusBadRequest
	case apperr.CodeUnauthorized:
		status = http.StatusUnauthorized
	case apperr.CodeForbidden:
		status = http.StatusForbidden
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeConflict:
		status = http.StatusConflict
	case apperr.CodePrecondition:
		status = http.StatusPreconditionFailed
	case apperr.CodeInternal:
		logger.Error("Internal error", zap.String("path", c.FullPath()), zap.Error(err))
	}

	c.JSON(status, gin.H{"error": ae.Message})
}
