package files

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"filetrack-backend/internal/lifecycle"
	"filetrack-backend/internal/shared/apperr"
	"filetrack-backend/internal/shared/server/middleware"
	"filetrack-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/files", h.list)
	rg.GET("/files/:id", h.get)
	rg.GET("/files/cnr/:cnr", h.getByCNR)
	rg.GET("/files/transaction/:trx", h.getByTransaction)
	rg.GET("/files/:id/history", h.history)
	rg.GET("/files/:id/handovers", h.handovers)
	rg.GET("/lifecycle-events/recent", h.recent)

	edit := rg.Group("", middleware.RequireEdit())
	edit.POST("/files", h.receive)
	edit.PATCH("/files/:id", h.update)
	edit.POST("/files/:id/handover", h.handover)
	edit.POST("/handovers", h.handover)
	edit.POST("/files/:id/transitions", h.transition)
	edit.POST("/lifecycle-events", h.transition)
}

func (h *Handler) receive(c *gin.Context) {
	var req ReceiveInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if req.ReceivedByID == 0 {
		req.ReceivedByID = middleware.UserIDFromContext(c)
	}
	res, err := h.Svc.Receive(c.Request.Context(), req)
	if err != nil {
		respond.FromError(c, err, "failed to receive file")
		return
	}
	setFileContext(c, res.File)
	c.Set(middleware.StatusTransitionKey, "->"+string(res.File.Status))
	respond.Created(c, res)
}

func (h *Handler) list(c *gin.Context) {
	filter, err := h.parseFilter(c)
	if err != nil {
		respond.FromError(c, err, "invalid filter")
		return
	}
	items, total, applied, err := h.Svc.List(c.Request.Context(), filter)
	if err != nil {
		respond.FromError(c, err, "failed to list files")
		return
	}
	respond.OK(c, respond.Page{Items: items, Total: total, Limit: applied.Limit, Offset: applied.Offset})
}

func (h *Handler) parseFilter(c *gin.Context) (ReceiptFilter, error) {
	var verr apperr.ValidationError
	filter := ReceiptFilter{
		Status:   lifecycle.Status(strings.ToLower(strings.TrimSpace(c.Query("status")))),
		CaseType: CaseType(strings.ToLower(strings.TrimSpace(c.Query("caseType")))),
		Priority: Priority(strings.ToLower(strings.TrimSpace(c.Query("priority")))),
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			verr.Add("limit", "must be a non-negative integer")
		}
		filter.Limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			verr.Add("offset", "must be a non-negative integer")
		}
		filter.Offset = n
	}
	loc := h.Svc.location()
	if raw := c.Query("from"); raw != "" {
		t, _, err := parseBound(raw, loc)
		if err != nil {
			verr.Add("from", "must be YYYY-MM-DD or RFC3339")
		}
		filter.ReceivedFrom = t
	}
	if raw := c.Query("to"); raw != "" {
		t, dateOnly, err := parseBound(raw, loc)
		if err != nil {
			verr.Add("to", "must be YYYY-MM-DD or RFC3339")
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		filter.ReceivedTo = t
	}
	return filter, verr.OrNil()
}

// parseBound accepts a calendar date in loc or an RFC3339 instant.
func parseBound(raw string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	return t, false, err
}

func (h *Handler) get(c *gin.Context) {
	id, ok := fileID(c)
	if !ok {
		return
	}
	receipt, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		respond.FromError(c, err, "failed to load file")
		return
	}
	setFileContext(c, receipt)
	respond.OK(c, receipt)
}

func (h *Handler) getByCNR(c *gin.Context) {
	receipt, err := h.Svc.GetByCNR(c.Request.Context(), c.Param("cnr"))
	if err != nil {
		respond.FromError(c, err, "failed to load file")
		return
	}
	setFileContext(c, receipt)
	respond.OK(c, receipt)
}

func (h *Handler) getByTransaction(c *gin.Context) {
	receipt, err := h.Svc.GetByTransactionID(c.Request.Context(), c.Param("trx"))
	if err != nil {
		respond.FromError(c, err, "failed to load file")
		return
	}
	setFileContext(c, receipt)
	respond.OK(c, receipt)
}

func (h *Handler) update(c *gin.Context) {
	id, ok := fileID(c)
	if !ok {
		return
	}
	var patch DetailsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	receipt, err := h.Svc.UpdateDetails(c.Request.Context(), id, patch)
	if err != nil {
		respond.FromError(c, err, "failed to update file")
		return
	}
	setFileContext(c, receipt)
	respond.OK(c, receipt)
}

func (h *Handler) handover(c *gin.Context) {
	var req HandoverInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if c.Param("id") != "" {
		id, ok := fileID(c)
		if !ok {
			return
		}
		req.FileID = id
	}
	if req.FromUserID == 0 {
		req.FromUserID = middleware.UserIDFromContext(c)
	}
	req.RequestID = middleware.RequestIDFromContext(c)
	c.Set(middleware.FileIDKey, req.FileID)

	res, err := h.Svc.Handover(c.Request.Context(), req)
	if err != nil {
		respond.FromError(c, err, "failed to hand over file")
		return
	}
	setFileContext(c, res.File)
	c.Set(middleware.StatusTransitionKey, string(lifecycle.PendingHandover)+"->"+string(res.Event.Status))
	respond.Created(c, res)
}

func (h *Handler) transition(c *gin.Context) {
	var req TransitionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if c.Param("id") != "" {
		id, ok := fileID(c)
		if !ok {
			return
		}
		req.FileID = id
	}
	// Transitions are always attributed to the caller.
	req.UserID = middleware.UserIDFromContext(c)
	req.RequestID = middleware.RequestIDFromContext(c)
	c.Set(middleware.FileIDKey, req.FileID)

	res, err := h.Svc.RecordTransition(c.Request.Context(), req)
	if err != nil {
		respond.FromError(c, err, "failed to record transition")
		return
	}
	setFileContext(c, res.File)
	c.Set(middleware.StatusTransitionKey, "->"+string(res.Event.Status))
	respond.Created(c, res)
}

func (h *Handler) history(c *gin.Context) {
	id, ok := fileID(c)
	if !ok {
		return
	}
	c.Set(middleware.FileIDKey, id)
	events, err := h.Svc.History(c.Request.Context(), id)
	if err != nil {
		respond.FromError(c, err, "failed to load history")
		return
	}
	respond.OK(c, gin.H{"items": events})
}

func (h *Handler) handovers(c *gin.Context) {
	id, ok := fileID(c)
	if !ok {
		return
	}
	c.Set(middleware.FileIDKey, id)
	items, err := h.Svc.Handovers(c.Request.Context(), id)
	if err != nil {
		respond.FromError(c, err, "failed to load handovers")
		return
	}
	respond.OK(c, gin.H{"items": items})
}

func (h *Handler) recent(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "limit must be a positive integer", nil)
			return
		}
		limit = n
	}
	events, err := h.Svc.RecentActivity(c.Request.Context(), limit)
	if err != nil {
		respond.FromError(c, err, "failed to load recent activity")
		return
	}
	respond.OK(c, gin.H{"items": events})
}

func fileID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

func setFileContext(c *gin.Context, receipt FileReceipt) {
	c.Set(middleware.FileIDKey, receipt.ID)
	c.Set(middleware.TransactionIDKey, receipt.TransactionID)
}
