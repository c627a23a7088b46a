// Reporting HTTP handlers.
//
// This file exposes the read-only reporting API:
//   - GET  /stats                       (application summary)
//   - POST /stats/recompute             (rebuild the aggregate row)
//   - GET  /reports/user-growth         (joins per day, cumulative)
//   - GET  /reports/task-completion     (completed/pending split)
//   - GET  /reports/activity            (last-active users per day, 30 days)
//   - GET  /reports/partnerships        (partnered/unpartnered split)
//   - GET  /reports/task-timeline       (tasks created/completed per day)
//   - GET  /reports/productivity        (one user or the top 10)
//   - GET  /push/status                 (web push integration status)
//
// Handlers are transport-thin: they validate input, call application services
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-taskbuddy/internal/domain"
	"github.com/tbourn/go-taskbuddy/internal/services"
	"github.com/tbourn/go-taskbuddy/internal/utils"
)

//
// Service contracts (context-aware)
//

// StatsService exposes the statistics aggregator.
type StatsService interface {
	// Summary returns the application view, computing the aggregate on first use.
	Summary(ctx context.Context) (*services.Summary, error)
	// Recompute rebuilds and stores the aggregate from scratch.
	Recompute(ctx context.Context) (*domain.AppStats, error)
}

// ReportService produces chart datasets.
type ReportService interface {
	UserGrowth(ctx context.Context) ([]services.DayCount, error)
	TaskCompletion(ctx context.Context) (*services.CompletionSplit, error)
	Activity(ctx context.Context) ([]services.DayCount, error)
	Partnerships(ctx context.Context) (*services.PartnershipSplit, error)
	TaskTimeline(ctx context.Context) ([]services.TimelinePoint, error)
	UserProductivity(ctx context.Context, telegramID int64) (*services.Productivity, error)
	TopProductivity(ctx context.Context) ([]services.Productivity, error)
}

// PushService reports on the web push integration.
type PushService interface {
	Status(ctx context.Context) *services.PushStatus
}

//
// Handler wiring
//

// Handlers groups the reporting endpoints.
type Handlers struct {
	statsSvc  StatsService
	reportSvc ReportService
	pushSvc   PushService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(statsSvc StatsService, reportSvc ReportService, pushSvc PushService) *Handlers {
	return &Handlers{statsSvc: statsSvc, reportSvc: reportSvc, pushSvc: pushSvc}
}

//
// DTOs
//

// DayCountsResponse wraps a per-day series.
type DayCountsResponse struct {
	Days []services.DayCount `json:"days"`
}

// TimelineResponse wraps the task timeline series.
type TimelineResponse struct {
	Days []services.TimelinePoint `json:"days"`
}

// ProductivityResponse wraps the productivity ranking.
type ProductivityResponse struct {
	Users []services.Productivity `json:"users"`
}

//
// Handlers
//

// GetStats godoc
// @ID          getStats
// @Summary     Application statistics
// @Description Returns the stored aggregate plus completion and partner rates.
// @Tags        Stats
// @Produce     json
// @Success     200  {object}  services.Summary
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Security    ApiKeyAuth
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid API key"
// @Router      /stats [get]
func (h *Handlers) GetStats(c *gin.Context) {
	sum, err := h.statsSvc.Summary(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, sum)
}

// RecomputeStats godoc
// @ID          recomputeStats
// @Summary     Recompute application statistics
// @Description Rebuilds the aggregate row from the users and tasks tables.
// @Tags        Stats
// @Produce     json
// @Success     200  {object}  domain.AppStats
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Security    ApiKeyAuth
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid API key"
// @Router      /stats/recompute [post]
func (h *Handlers) RecomputeStats(c *gin.Context) {
	st, err := h.statsSvc.Recompute(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}

// UserGrowth godoc
// @ID          reportUserGrowth
// @Summary     User growth
// @Description New users per join day with a running total.
// @Tags        Reports
// @Produce     json
// @Success     200  {object}  handlers.DayCountsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Security    ApiKeyAuth
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid API key"
// @Router      /reports/user-growth [get]
func (h *Handlers) UserGrowth(c *gin.Context) {
	days, err := h.reportSvc.UserGrowth(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeReportFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, DayCountsResponse{Days: days})
}

// TaskCompletion godoc
// @ID          reportTaskCompletion
// @Summary     Task completion split
// @Tags        Reports
// @Produce     json
// @Success     200  {object}  services.CompletionSplit
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Security    ApiKeyAuth
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid API key"
// @Router      /reports/task-completion [get]
func (h *Handlers) TaskCompletion(c *gin.Context) {
	split, err := h.reportSvc.TaskCompletion(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeReportFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, split)
}

// Activity godoc
// @ID          reportActivity
// @Summary     User activity
// @Description Users by last-active day over the trailing 30 days, zero-filled.
// @Tags        Reports
// @Produce     json
// @Success     200  {object}  handlers.DayCountsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Security    ApiKeyAuth
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid API key"
// @Router      /reports/activity [get]
func (h *Handlers) Activity(c *gin.Context) {
	days, err := h.reportSvc.Activity(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeReportFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, DayCountsResponse{Days: days})
}

// Partnerships godoc
// @ID          reportPartnerships
// @Summary     Partnership split
// @Tags        Reports
// @Produce     json
// @Success     200  {object}  services.PartnershipSplit
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Security    ApiKeyAuth
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid API key"
// @Router      /reports/partnerships [get]
func (h *Handlers) Partnerships(c *gin.Context) {
	split, err := h.reportSvc.Partnerships(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeReportFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, split)
}

// TaskTimeline godoc
// @ID          reportTaskTimeline
// @Summary     Task timeline
// @Description Tasks created per day and how many of them are completed.
// @Tags        Reports
// @Produce     json
// @Success     200  {object}  handlers.TimelineResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Security    ApiKeyAuth
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid API key"
// @Router      /reports/task-timeline [get]
func (h *Handlers) TaskTimeline(c *gin.Context) {
	days, err := h.reportSvc.TaskTimeline(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeReportFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, TimelineResponse{Days: days})
}

// Productivity godoc
// @ID          reportProductivity
// @Summary     Productivity
// @Description With telegram_id returns that user's counters, otherwise the top 10 users by created plus completed tasks.
// @Tags        Reports
// @Produce     json
// @Param       telegram_id  query  int  false  "Telegram user id"
// @Success     200  {object}  handlers.ProductivityResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown user"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Security    ApiKeyAuth
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid API key"
// @Router      /reports/productivity [get]
func (h *Handlers) Productivity(c *gin.Context) {
	ctx := c.Request.Context()

	raw, present := c.GetQuery("telegram_id")
	if !present {
		users, err := h.reportSvc.TopProductivity(ctx)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeReportFailed, err.Error())
			return
		}
		ok(c, http.StatusOK, ProductivityResponse{Users: users})
		return
	}

	tgID, err := utils.ParseInt64(raw)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "telegram_id must be an integer")
		return
	}
	p, err := h.reportSvc.UserProductivity(ctx, tgID)
	switch {
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeReportFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ProductivityResponse{Users: []services.Productivity{*p}})
}

// PushStatus godoc
// @ID          pushStatus
// @Summary     Web push status
// @Description Reports whether web push is configured and the provider's app description.
// @Tags        Push
// @Produce     json
// @Success     200  {object}  services.PushStatus
// @Security    ApiKeyAuth
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid API key"
// @Router      /push/status [get]
func (h *Handlers) PushStatus(c *gin.Context) {
	ok(c, http.StatusOK, h.pushSvc.Status(c.Request.Context()))
}
