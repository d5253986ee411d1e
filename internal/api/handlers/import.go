package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/services"
)

type ImportHandler struct {
	baseCtx  context.Context
	importer *services.ImportService
	logger   *zap.Logger

	mu       sync.Mutex
	progress *services.ImportProgressEvent
}

// NewImportHandler starts background imports under ctx, so cancelling it
// stops a running import.
func NewImportHandler(ctx context.Context, importer *services.ImportService, logger *zap.Logger) *ImportHandler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ImportHandler{baseCtx: ctx, importer: importer, logger: logger}
}

type importStatusResponse struct {
	Running    bool                          `json:"running"`
	Progress   *services.ImportProgressEvent `json:"progress"`
	LastResult *services.ImportResult        `json:"last_result"`
	LastError  *string                       `json:"last_error"`
}

// StartImport launches a background import. The body is optional; an empty
// body imports every set.
func (h *ImportHandler) StartImport(c *gin.Context) {
	var opts services.ImportOptions
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&opts); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if opts.BatchSize < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch_size must not be negative"})
		return
	}

	opts.OnStart = func() { h.setProgress(nil) }
	opts.OnProgress = func(event services.ImportProgressEvent) {
		h.setProgress(&event)
	}

	// The run outlives this request
	err := h.importer.Start(h.baseCtx, opts)
	if errors.Is(err, services.ErrImportRunning) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		internalError(c, h.logger, "start import", err)
		return
	}

	h.logger.Info("Import started via API",
		zap.Strings("set_ids", opts.SetIDs), zap.Bool("dry_run", opts.DryRun), zap.Bool("quick", opts.Quick))
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// GetImportStatus reports the running flag, latest progress and last result
func (h *ImportHandler) GetImportStatus(c *gin.Context) {
	result, err := h.importer.LastResult()
	resp := importStatusResponse{
		Running:    h.importer.IsRunning(),
		Progress:   h.currentProgress(),
		LastResult: result,
	}
	if err != nil {
		msg := err.Error()
		resp.LastError = &msg
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ImportHandler) setProgress(event *services.ImportProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.progress = event
}

func (h *ImportHandler) currentProgress() *services.ImportProgressEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.progress == nil {
		return nil
	}
	event := *h.progress
	return &event
}
