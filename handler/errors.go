package handler

import (
	"errors"
	"net/http"

	"github.com/Daniromero1410/Sistema-Positiva/model"
	"github.com/Daniromero1410/Sistema-Positiva/pkg/logger"
	"github.com/Daniromero1410/Sistema-Positiva/service"
	"github.com/gin-gonic/gin"
)

// respondError translates client and validation failures into the shell's JSON errors.
func respondError(c *gin.Context, err error) {
	status, body := errorResponse(c, err)
	c.JSON(status, body)
}

func errorResponse(c *gin.Context, err error) (int, gin.H) {
	var vErr *model.ValidationError
	var tErr *service.TransportError

	switch {
	case errors.As(err, &vErr):
		return http.StatusUnprocessableEntity, gin.H{
			"error": vErr.Message,
			"field": vErr.Field,
		}
	case errors.As(err, &tErr) && tErr.StatusCode == http.StatusNotFound:
		return http.StatusNotFound, gin.H{"error": tErr.Detail()}
	case errors.As(err, &tErr):
		logger.Warn(c.Request.Context(), "backend request failed",
			"op", tErr.Op,
			"backend_status", tErr.StatusCode,
			"error", err,
		)
		body := gin.H{
			"error":  "Backend request failed",
			"detail": tErr.Detail(),
		}
		if tErr.StatusCode != 0 {
			body["backend_status"] = tErr.StatusCode
		} else if tErr.Err != nil {
			body["detail"] = tErr.Err.Error()
		}
		return http.StatusBadGateway, body
	default:
		logger.Error(c.Request.Context(), "request failed", "error", err)
		return http.StatusInternalServerError, gin.H{"error": "Internal server error"}
	}
}
