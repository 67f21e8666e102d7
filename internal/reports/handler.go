package reports

import (
	"time"

	"github.com/gin-gonic/gin"

	"filetrack-backend/internal/shared/apperr"
	"filetrack-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/reports/status-counts", h.statusCounts)
	rg.GET("/reports/today", h.today)
	rg.GET("/reports/daily", h.daily)
	rg.GET("/dashboard/stats", h.stats)
	rg.GET("/dashboard/summary", h.summary)
	rg.GET("/stats/inventory", h.inventory)
}

func (h *Handler) statusCounts(c *gin.Context) {
	counts, err := h.Svc.CountByStatus(c.Request.Context())
	if err != nil {
		respond.FromError(c, err, "failed to count files")
		return
	}
	respond.OK(c, gin.H{"items": counts})
}

func (h *Handler) today(c *gin.Context) {
	n, err := h.Svc.CountToday(c.Request.Context())
	if err != nil {
		respond.FromError(c, err, "failed to count files")
		return
	}
	respond.OK(c, gin.H{"count": n})
}

// daily defaults to the last seven days when start or end is omitted.
func (h *Handler) daily(c *gin.Context) {
	loc := h.Svc.location()
	var verr apperr.ValidationError

	end := h.Svc.now().In(loc)
	if raw := c.Query("end"); raw != "" {
		t, err := time.ParseInLocation(time.DateOnly, raw, loc)
		if err != nil {
			verr.Add("end", "must be YYYY-MM-DD")
		}
		end = t
	}
	start := end.AddDate(0, 0, -(activityDays - 1))
	if raw := c.Query("start"); raw != "" {
		t, err := time.ParseInLocation(time.DateOnly, raw, loc)
		if err != nil {
			verr.Add("start", "must be YYYY-MM-DD")
		}
		start = t
	}
	if err := verr.OrNil(); err != nil {
		respond.FromError(c, err, "invalid date range")
		return
	}

	days, err := h.Svc.CountByDateRange(c.Request.Context(), start, end)
	if err != nil {
		respond.FromError(c, err, "failed to count files")
		return
	}
	respond.OK(c, gin.H{"items": days})
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.Svc.DashboardStats(c.Request.Context())
	if err != nil {
		respond.FromError(c, err, "failed to load dashboard stats")
		return
	}
	respond.OK(c, stats)
}

func (h *Handler) summary(c *gin.Context) {
	summary, err := h.Svc.Summary(c.Request.Context())
	if err != nil {
		respond.FromError(c, err, "failed to load dashboard summary")
		return
	}
	respond.OK(c, summary)
}

func (h *Handler) inventory(c *gin.Context) {
	inv, err := h.Svc.Inventory(c.Request.Context())
	if err != nil {
		respond.FromError(c, err, "failed to load inventory")
		return
	}
	respond.OK(c, inv)
}
