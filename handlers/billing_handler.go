package handlers

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/curodigital/whatsapp-billing-relay/internal/service"
	"github.com/curodigital/whatsapp-billing-relay/pkg/response"
)

type BillingHandler struct {
	reports *service.ReportService
}

func NewBillingHandler(reports *service.ReportService) *BillingHandler {
	return &BillingHandler{reports: reports}
}

// GetStats godoc
// @Summary Month-to-date billing statistics
// @Description Recomputes session, MAU and cost totals for the current month
// @Tags billing
// @Produce json
// @Param x-relay-auth-key header string true "Billing API key"
// @Success 200 {object} response.SuccessResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/billing/stats [get]
func (h *BillingHandler) GetStats(c echo.Context) error {
	report, err := h.reports.MonthToDate(c.Request().Context())
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, report.BillingSummary)
}

// GetReport godoc
// @Summary Billing report
// @Description Full billing report for a calendar month (defaults to month-to-date)
// @Tags billing
// @Produce json
// @Param x-relay-auth-key header string true "Billing API key"
// @Param year query int false "Report year (with month)"
// @Param month query int false "Report month 1-12 (with year)"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/billing/report [get]
func (h *BillingHandler) GetReport(c echo.Context) error {
	yearStr := c.QueryParam("year")
	monthStr := c.QueryParam("month")

	if yearStr == "" && monthStr == "" {
		report, err := h.reports.MonthToDate(c.Request().Context())
		if err != nil {
			return response.InternalServerError(c, err)
		}
		return response.Ok(c, report)
	}

	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 2000 {
		return response.BadRequestWithMessage(c, "year must be a valid four-digit year")
	}

	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return response.BadRequestWithMessage(c, "month must be between 1 and 12")
	}

	report, err := h.reports.MonthReport(c.Request().Context(), year, time.Month(month))
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, report)
}

// Validate godoc
// @Summary Validate the month's billing ledger
// @Description Cross-checks billing invariants and lists discrepancies
// @Tags billing
// @Produce json
// @Param x-relay-auth-key header string true "Billing API key"
// @Success 200 {object} response.SuccessResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/billing/validate [get]
func (h *BillingHandler) Validate(c echo.Context) error {
	issues, err := h.reports.ValidateCurrentMonth(c.Request().Context())
	if err != nil {
		return response.InternalServerError(c, err)
	}

	if issues == nil {
		issues = []string{}
	}

	return response.Ok(c, map[string]any{
		"valid":  len(issues) == 0,
		"issues": issues,
	})
}
