package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dekont-api/internal/dto"
	"github.com/noah-isme/dekont-api/internal/models"
	"github.com/noah-isme/dekont-api/internal/service"
	appErrors "github.com/noah-isme/dekont-api/pkg/errors"
	"github.com/noah-isme/dekont-api/pkg/response"
)

type reconciliationService interface {
	Missing(ctx context.Context, actor service.Actor) (*models.ReconciliationReport, error)
	Scan(ctx context.Context) (*models.ReconciliationReport, error)
	Compliance(ctx context.Context, internshipID string, actor service.Actor) (*models.InternshipCompliance, error)
	Export(ctx context.Context, format string, actor service.Actor) (*service.ExportFile, error)
}

// ReminderDispatcher queues reminders for a report. Nil disables the endpoint.
type ReminderDispatcher interface {
	Dispatch(ctx context.Context, report *models.ReconciliationReport) (*dto.ReminderDispatchResult, error)
}

// ReconciliationHandler exposes missing-receipt reporting.
type ReconciliationHandler struct {
	service   reconciliationService
	reminders ReminderDispatcher
}

// NewReconciliationHandler builds a new handler.
func NewReconciliationHandler(service reconciliationService, reminders ReminderDispatcher) *ReconciliationHandler {
	return &ReconciliationHandler{service: service, reminders: reminders}
}

// Missing godoc
// @Summary List internships missing last month's receipt
// @Description Teachers only see internships they coordinate. The report carries the current urgency tier.
// @Tags Reconciliation
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reconciliation/missing [get]
func (h *ReconciliationHandler) Missing(c *gin.Context) {
	report, err := h.service.Missing(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil, map[string]interface{}{"total": len(report.Missing)})
}

// Export godoc
// @Summary Export the missing-receipt list
// @Tags Reconciliation
// @Produce octet-stream
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /reconciliation/missing/export [get]
func (h *ReconciliationHandler) Export(c *gin.Context) {
	file, err := h.service.Export(c.Request.Context(), c.DefaultQuery("format", "csv"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

// Reminders godoc
// @Summary Queue reminders for every missing receipt
// @Description Rescans without the cache and queues one reminder per internship. Reruns on the same day do not duplicate reminders.
// @Tags Reconciliation
// @Produce json
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /reconciliation/reminders [post]
func (h *ReconciliationHandler) Reminders(c *gin.Context) {
	if h.reminders == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrRemindersDisabled, ""))
		return
	}
	report, err := h.service.Scan(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.reminders.Dispatch(c.Request.Context(), report)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, result, nil)
}

// Compliance godoc
// @Summary Show every closed period an internship still owes
// @Tags Reconciliation
// @Produce json
// @Param id path string true "Internship ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /internships/{id}/compliance [get]
func (h *ReconciliationHandler) Compliance(c *gin.Context) {
	result, err := h.service.Compliance(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
