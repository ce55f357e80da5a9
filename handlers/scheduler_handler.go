package handlers

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/curodigital/whatsapp-billing-relay/internal/scheduler"
	"github.com/curodigital/whatsapp-billing-relay/pkg/response"
)

type SchedulerHandler struct {
	scheduler *scheduler.Scheduler
	ctx       context.Context
}

func NewSchedulerHandler(sched *scheduler.Scheduler, ctx context.Context) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: sched,
		ctx:       ctx,
	}
}

// StartScheduler godoc
// @Summary Start the validation scheduler
// @Tags scheduler
// @Produce json
// @Param x-relay-auth-key header string true "Scheduler API key"
// @Success 200 {object} response.SuccessResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/scheduler/start [post]
func (h *SchedulerHandler) StartScheduler(c echo.Context) error {
	if err := h.scheduler.Start(h.ctx); err != nil {
		return response.InternalServerError(c, err)
	}

	return response.OkWithMessage(c, "Validation scheduler started", h.scheduler.GetStatus())
}

// StopScheduler godoc
// @Summary Stop the validation scheduler
// @Tags scheduler
// @Produce json
// @Param x-relay-auth-key header string true "Scheduler API key"
// @Success 200 {object} response.SuccessResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/scheduler/stop [post]
func (h *SchedulerHandler) StopScheduler(c echo.Context) error {
	if err := h.scheduler.Stop(); err != nil {
		return response.InternalServerError(c, err)
	}

	return response.OkWithMessage(c, "Validation scheduler stopped", h.scheduler.GetStatus())
}

// GetSchedulerStatus godoc
// @Summary Validation scheduler status
// @Tags scheduler
// @Produce json
// @Param x-relay-auth-key header string true "Scheduler API key"
// @Success 200 {object} response.SuccessResponse
// @Router /api/v1/scheduler/status [get]
func (h *SchedulerHandler) GetSchedulerStatus(c echo.Context) error {
	return response.Ok(c, h.scheduler.GetStatus())
}
