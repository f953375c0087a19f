package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/Daniromero1410/Sistema-Positiva/middleware"
	"github.com/Daniromero1410/Sistema-Positiva/model"
	"github.com/Daniromero1410/Sistema-Positiva/pkg/logger"
	"github.com/Daniromero1410/Sistema-Positiva/service"
	"github.com/Daniromero1410/Sistema-Positiva/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MasterObjectHeader names the archived copy of an uploaded master file.
const MasterObjectHeader = "X-Master-Object"

const adminRole = "admin"

type ConsolidadorHandler struct {
	client  *service.Client
	tracker *service.RunTracker
	archive service.MasterArchive // nil when no object store is configured
	hub     *websocket.Hub
	retry   service.RetryPolicy
}

func NewConsolidadorHandler(client *service.Client, tracker *service.RunTracker, archive service.MasterArchive, hub *websocket.Hub, retry service.RetryPolicy) *ConsolidadorHandler {
	return &ConsolidadorHandler{
		client:  client,
		tracker: tracker,
		archive: archive,
		hub:     hub,
		retry:   retry,
	}
}

// readMaster pulls the "file" part out of the form. It writes the error response itself.
func readMaster(c *gin.Context) (*multipart.FileHeader, []byte, bool) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return nil, nil, false
	}
	if err := model.ValidateMasterFilename(header.Filename); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Solo se permiten archivos Excel (.xlsx, .xls)"})
		return nil, nil, false
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return nil, nil, false
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return nil, nil, false
	}
	return header, content, true
}

// archiveMaster keeps a copy of a master file the backend accepted. A failing
// store never fails the request.
func (h *ConsolidadorHandler) archiveMaster(c *gin.Context, key, filename string, content []byte) string {
	if h.archive == nil {
		return ""
	}
	objectName := service.MasterObjectName(middleware.GetUsername(c), key, filename)
	if err := h.archive.Put(c.Request.Context(), objectName, bytes.NewReader(content), int64(len(content))); err != nil {
		logger.Warn(c.Request.Context(), "failed to archive master file", "object", objectName, "error", err)
		return ""
	}
	return objectName
}

// UploadMaster forwards the master spreadsheet to the backend
func (h *ConsolidadorHandler) UploadMaster(c *gin.Context) {
	header, content, ok := readMaster(c)
	if !ok {
		return
	}

	upload, err := h.client.UploadMaster(c.Request.Context(), model.MasterFile{
		Filename: header.Filename,
		Content:  bytes.NewReader(content),
		Size:     int64(len(content)),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if objectName := h.archiveMaster(c, uuid.New().String(), header.Filename, content); objectName != "" {
		c.Header(MasterObjectHeader, objectName)
	}
	c.JSON(http.StatusOK, upload)
}

// Start starts a run on a previously uploaded master file
func (h *ConsolidadorHandler) Start(c *gin.Context) {
	var cfg model.ConsolidationConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	handle, err := h.client.StartRun(c.Request.Context(), cfg)
	if err != nil {
		respondError(c, err)
		return
	}

	h.tracker.Track(&model.RunRecord{
		ID:     handle.RunID,
		Owner:  middleware.GetUsername(c),
		Config: cfg,
	})
	logger.Info(logger.WithRunID(c.Request.Context(), handle.RunID), "run started", "modo", cfg.Modo)

	c.JSON(http.StatusOK, handle)
}

// Execute uploads the master file and starts the run as one tagged submission.
// Resending the same X-Idempotency-Key lets the backend collapse duplicates.
func (h *ConsolidadorHandler) Execute(c *gin.Context) {
	var cfg model.ConsolidationConfig
	if err := json.Unmarshal([]byte(c.PostForm("config")), &cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid config"})
		return
	}
	if err := cfg.Validate(); err != nil {
		respondError(c, err)
		return
	}

	header, content, ok := readMaster(c)
	if !ok {
		return
	}

	key := c.GetHeader(service.IdempotencyHeader)
	if key == "" {
		key = uuid.New().String()
	}
	c.Header(service.IdempotencyHeader, key)

	sub, err := h.client.Submit(c.Request.Context(), model.MasterFile{
		Filename: header.Filename,
		Content:  bytes.NewReader(content),
		Size:     int64(len(content)),
	}, cfg, service.SubmitOptions{IdempotencyKey: key, Retry: h.retry})
	if err != nil && sub != nil {
		// The master reached the backend; resending with the same key only retries the start.
		status, body := errorResponse(c, err)
		body["idempotency_key"] = key
		body["maestra"] = sub.Upload
		c.JSON(status, body)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	objectName := h.archiveMaster(c, key, header.Filename, content)

	h.tracker.Track(&model.RunRecord{
		ID:             sub.Handle.RunID,
		Owner:          middleware.GetUsername(c),
		Config:         cfg,
		MasterFile:     header.Filename,
		MasterObject:   objectName,
		IdempotencyKey: key,
	})
	logger.Info(logger.WithRunID(c.Request.Context(), sub.Handle.RunID), "run submitted",
		"modo", cfg.Modo,
		"master_file", header.Filename,
		"idempotency_key", key,
	)

	c.JSON(http.StatusOK, gin.H{
		"ejecucion_id":    sub.Handle.RunID,
		"status":          sub.Handle.Status,
		"message":         sub.Handle.Message,
		"idempotency_key": key,
		"maestra":         sub.Upload,
	})
}

func runID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run id"})
		return 0, false
	}
	return id, true
}

// Progress reads the run's progress through the backend. Runs tracked by this
// shell report the clamped observation so the dashboard never sees a regression.
func (h *ConsolidadorHandler) Progress(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}

	progress, err := h.client.PollProgress(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	if reported, tracked := h.tracker.Store().ApplyProgress(id, *progress); tracked {
		c.JSON(http.StatusOK, reported)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// Cancel asks the backend to cancel; the state change shows up in later polls
func (h *ConsolidadorHandler) Cancel(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}

	if err := h.client.CancelRun(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	logger.Info(logger.WithRunID(c.Request.Context(), id), "run cancellation requested")
	c.JSON(http.StatusOK, gin.H{"message": "Cancelación solicitada", "ejecucion_id": id})
}

func (h *ConsolidadorHandler) Results(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}

	results, err := h.client.Results(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// visible reports whether the caller may see rec. Admins see every run.
func visible(c *gin.Context, rec model.RunRecord) bool {
	return middleware.GetRole(c) == adminRole || rec.Owner == middleware.GetUsername(c)
}

// ListRuns returns the runs started through this shell, newest first
func (h *ConsolidadorHandler) ListRuns(c *gin.Context) {
	owner := middleware.GetUsername(c)
	if middleware.GetRole(c) == adminRole {
		owner = ""
	}
	runs := h.tracker.Store().List(owner)

	result := make([]gin.H, len(runs))
	for i, r := range runs {
		result[i] = gin.H{
			"ejecucion_id": r.ID,
			"owner":        r.Owner,
			"modo":         r.Config.Modo,
			"master_file":  r.MasterFile,
			"estado":       r.Progress.State,
			"progreso":     r.Progress.Percent,
			"error_msg":    r.ErrorMsg,
			"created_at":   r.CreatedAt.Format(time.RFC3339),
			"updated_at":   r.UpdatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{"ejecuciones": result})
}

// GetRun returns a tracked run with its configuration
func (h *ConsolidadorHandler) GetRun(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}

	rec, found := h.tracker.Store().Get(id)
	if !found || !visible(c, rec) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// DeleteRun forgets a finished run. Active runs stay until they end.
func (h *ConsolidadorHandler) DeleteRun(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}

	rec, found := h.tracker.Store().Get(id)
	if !found || !visible(c, rec) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	if !rec.Progress.State.IsTerminal() && rec.ErrorMsg == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "Run is still in progress"})
		return
	}

	h.tracker.Store().Delete(id)
	c.JSON(http.StatusOK, gin.H{"message": "Run deleted"})
}

// MasterDownload redirects to a short-lived link to the archived master file
func (h *ConsolidadorHandler) MasterDownload(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}

	rec, found := h.tracker.Store().Get(id)
	if !found || !visible(c, rec) || rec.MasterObject == "" || h.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Master file not archived"})
		return
	}

	url, err := h.archive.URL(c.Request.Context(), rec.MasterObject)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to sign master file URL", "object", rec.MasterObject, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate URL"})
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, url)
}

// Download redirects the browser to the backend's copy of a run output
func (h *ConsolidadorHandler) Download(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}

	url, err := h.client.DownloadURL(id, c.Param("tipo"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, url)
}

// DownloadFile redirects to a file from the backend's output listing
func (h *ConsolidadorHandler) DownloadFile(c *gin.Context) {
	url, err := h.client.FileDownloadURL(c.Param("filename"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, url)
}

// Events upgrades to a websocket that receives every progress observation
func (h *ConsolidadorHandler) Events(c *gin.Context) {
	h.hub.ServeWs(c.Writer, c.Request)
}
