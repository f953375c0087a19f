package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/Daniromero1410/Sistema-Positiva/service"
	"github.com/gin-gonic/gin"
)

// CatalogHandler passes the backend's read-only endpoints through unchanged.
type CatalogHandler struct {
	client *service.Client
}

func NewCatalogHandler(client *service.Client) *CatalogHandler {
	return &CatalogHandler{client: client}
}

func writeRaw(c *gin.Context, body []byte) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// Proxy forwards a GET with its query string to backendPath.
func (h *CatalogHandler) Proxy(backendPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := h.client.GetRaw(c.Request.Context(), backendPath, c.Request.URL.Query())
		if err != nil {
			respondError(c, err)
			return
		}
		writeRaw(c, body)
	}
}

// ServiceDetail forwards /consulta/detalle/:id
func (h *CatalogHandler) ServiceDetail(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid service id"})
		return
	}

	body, err := h.client.GetRaw(c.Request.Context(), "/api/consulta/detalle/"+strconv.Itoa(id), nil)
	if err != nil {
		respondError(c, err)
		return
	}
	writeRaw(c, body)
}

// FTPDownload forwards the JSON body of a download request
func (h *CatalogHandler) FTPDownload(c *gin.Context) {
	reqBody, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	body, err := h.client.PostRaw(c.Request.Context(), "/api/ftp/download", reqBody)
	if err != nil {
		respondError(c, err)
		return
	}
	writeRaw(c, body)
}

// DashboardSummary returns the four dashboard resources in one response
func (h *CatalogHandler) DashboardSummary(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	summary, err := h.client.DashboardSummary(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Search validates the term locally before asking the backend
func (h *CatalogHandler) Search(c *gin.Context) {
	if len([]rune(c.Query("q"))) < 2 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "search term needs at least 2 characters", "field": "q"})
		return
	}
	h.Proxy("/api/consulta/search")(c)
}

// Health reports the shell and, when reachable, the backend
func (h *CatalogHandler) Health(c *gin.Context) {
	backend, err := h.client.Health(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "degraded",
			"backend": gin.H{"url": h.client.BaseURL(), "error": err.Error()},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"backend": backend,
	})
}
