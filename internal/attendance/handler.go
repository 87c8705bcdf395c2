package attendance

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gathering-portal/backend/internal/clock"
	"github.com/gathering-portal/backend/internal/middleware"
	"github.com/gathering-portal/backend/internal/models"
	"github.com/gathering-portal/backend/pkg/response"
)

// IssueRequest is the body for POST /attendance/tokens.
type IssueRequest struct {
	Category string `json:"category" binding:"required"`
}

// IssueResponse is returned to the presenter screen for QR rendering.
type IssueResponse struct {
	Token     string    `json:"token"`
	Category  string    `json:"category"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CheckInRequest is the body for POST /attendance/check-ins.
type CheckInRequest struct {
	Token    string `json:"token" binding:"required"`
	Category string `json:"category"`
}

// FollowUpStore lists and resolves follow-ups.
type FollowUpStore interface {
	ListPendingFollowUps(ctx context.Context, category models.Category, limit int) ([]models.AttendanceFollowUp, error)
	ResolveFollowUp(ctx context.Context, id, resolvedBy uuid.UUID, at time.Time) (*models.AttendanceFollowUp, error)
}

// Handler handles attendance HTTP endpoints.
type Handler struct {
	issuer    *Issuer
	processor *Processor
	query     *QueryService
	followUps FollowUpStore
	clock     clock.Clock
	logger    *zap.Logger
}

// NewHandler creates an attendance handler. followUps may be nil, which
// disables the follow-up endpoints.
func NewHandler(issuer *Issuer, processor *Processor, query *QueryService, followUps FollowUpStore, clk clock.Clock, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{issuer: issuer, processor: processor, query: query, followUps: followUps, clock: clk, logger: logger}
}

// IssueToken handles POST /attendance/tokens (presenter roles).
func (h *Handler) IssueToken(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	t, err := h.issuer.IssueToken(c.Request.Context(), userID, middleware.UserRoles(c), req.Category)
	if err != nil {
		h.writeError(c, "issue token", err)
		return
	}
	response.Created(c, IssueResponse{Token: t.Value, Category: string(t.Category), ExpiresAt: t.ExpiresAt})
}

// CheckIn handles POST /attendance/check-ins (any authenticated subject).
// A repeated check-in is a 200 with alreadyChecked set.
func (h *Handler) CheckIn(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	out, err := h.processor.CheckIn(c.Request.Context(), userID, middleware.UserRoles(c), req.Token, req.Category)
	if err != nil {
		h.writeError(c, "check in", err)
		return
	}
	response.OK(c, out)
}

// ListRecords handles GET /attendance/records?date&category&page&pageSize (auditor roles).
func (h *Handler) ListRecords(c *gin.Context) {
	f, err := h.query.NormalizeFilter(c.Query("date"), c.Query("category"))
	if err != nil {
		h.writeError(c, "list records", err)
		return
	}
	page, err1 := queryInt(c, "page", 1)
	pageSize, err2 := queryInt(c, "pageSize", DefaultPageSize)
	if err1 != nil || err2 != nil {
		response.BadRequest(c, "page and pageSize must be integers")
		return
	}

	p, err := h.query.ListAttendance(c.Request.Context(), f, page, pageSize)
	if err != nil {
		h.writeError(c, "list records", err)
		return
	}
	response.Paginated(c, p.Rows, p.Pagination)
}

// ListFollowUps handles GET /attendance/follow-ups?category&limit (auditor roles).
func (h *Handler) ListFollowUps(c *gin.Context) {
	if h.followUps == nil {
		response.ServiceUnavailable(c, "follow-ups not configured")
		return
	}
	var cat models.Category
	if c.Query("category") != "" {
		cp, err := h.query.policy.Category(c.Query("category"))
		if err != nil {
			h.writeError(c, "list follow-ups", err)
			return
		}
		cat = cp.Category
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil || limit < 1 || limit > 500 {
		response.BadRequest(c, "limit must be between 1 and 500")
		return
	}

	list, err := h.followUps.ListPendingFollowUps(c.Request.Context(), cat, limit)
	if err != nil {
		h.writeError(c, "list follow-ups", storageError("list follow-ups", err))
		return
	}
	response.OK(c, list)
}

// ResolveFollowUp handles POST /attendance/follow-ups/:id/resolve (auditor roles).
func (h *Handler) ResolveFollowUp(c *gin.Context) {
	if h.followUps == nil {
		response.ServiceUnavailable(c, "follow-ups not configured")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid follow-up id")
		return
	}
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}

	f, err := h.followUps.ResolveFollowUp(c.Request.Context(), id, userID, h.clock.Now())
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "follow-up not found")
		return
	}
	if err != nil {
		h.writeError(c, "resolve follow-up", storageError("resolve follow-up", err))
		return
	}
	response.OK(c, f)
}

// writeError maps domain errors to HTTP statuses.
func (h *Handler) writeError(c *gin.Context, op string, err error) {
	var fe *ForbiddenError
	switch {
	case errors.As(err, &fe):
		response.ForbiddenReason(c, fe.Error(), fe.Reason)
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrCategoryClosed):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrExpiredToken), errors.Is(err, ErrValidation):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error(op+" failed", zap.Error(err), zap.String("path", c.FullPath()))
		response.Internal(c, "temporary failure, please retry")
	}
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
