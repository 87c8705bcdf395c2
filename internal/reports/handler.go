package reports

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gathering-portal/backend/internal/attendance"
	"github.com/gathering-portal/backend/internal/middleware"
	"github.com/gathering-portal/backend/pkg/queue"
	"github.com/gathering-portal/backend/pkg/response"
	"github.com/gathering-portal/backend/pkg/storage"
)

// CreateRequest is the body for POST /attendance/reports.
type CreateRequest struct {
	Date     string `json:"date" binding:"required"`
	Category string `json:"category"`
}

// Enqueuer schedules report jobs.
type Enqueuer interface {
	EnqueueReport(ctx context.Context, payload queue.ReportPayload) (string, error)
}

// Presigner issues download URLs for stored reports.
type Presigner interface {
	PresignReportDownload(ctx context.Context, key string) (string, time.Time, error)
}

// FilterNormalizer validates report filters.
type FilterNormalizer interface {
	NormalizeFilter(date, category string) (attendance.Filter, error)
}

// Handler handles report HTTP endpoints.
type Handler struct {
	filters FilterNormalizer
	queue   Enqueuer
	store   Presigner
	logger  *zap.Logger
}

// NewHandler creates a reports handler. store may be nil when S3 is not configured.
func NewHandler(filters FilterNormalizer, q Enqueuer, store Presigner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{filters: filters, queue: q, store: store, logger: logger}
}

// Create handles POST /attendance/reports (auditor roles). The report is built by the worker.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	f, err := h.filters.NormalizeFilter(req.Date, req.Category)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	userID, _ := middleware.UserID(c)

	jobID, err := h.queue.EnqueueReport(c.Request.Context(), queue.ReportPayload{
		Date:        f.Date,
		Category:    string(f.Category),
		RequestedBy: userID,
	})
	if err != nil {
		h.logger.Error("enqueue report failed", zap.Error(err), zap.String("date", f.Date))
		response.Internal(c, "failed to schedule report")
		return
	}
	response.Accepted(c, gin.H{"jobId": jobID, "key": storage.ReportKey(f.Date, string(f.Category))})
}

// DownloadURL handles GET /attendance/reports/download-url?date&category (auditor roles).
func (h *Handler) DownloadURL(c *gin.Context) {
	if h.store == nil {
		response.ServiceUnavailable(c, "report storage not configured")
		return
	}
	f, err := h.filters.NormalizeFilter(c.Query("date"), c.Query("category"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if f.Date == "" {
		response.BadRequest(c, "date is required")
		return
	}

	key := storage.ReportKey(f.Date, string(f.Category))
	url, expiresAt, err := h.store.PresignReportDownload(c.Request.Context(), key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		response.NotFound(c, "report not generated yet")
		return
	}
	if err != nil {
		h.logger.Error("presign report download failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to generate download URL")
		return
	}
	response.OK(c, gin.H{"url": url, "expiresAt": expiresAt, "key": key})
}
