package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dekont-api/internal/dto"
	"github.com/noah-isme/dekont-api/internal/models"
	"github.com/noah-isme/dekont-api/internal/service"
	appErrors "github.com/noah-isme/dekont-api/pkg/errors"
	"github.com/noah-isme/dekont-api/pkg/response"
)

type receiptService interface {
	Submit(ctx context.Context, req dto.SubmitReceiptRequest, actor service.Actor) (*models.Receipt, error)
	Get(ctx context.Context, id string, actor service.Actor) (*models.Receipt, error)
	List(ctx context.Context, query dto.ReceiptQuery, actor service.Actor) ([]models.Receipt, *models.Pagination, error)
	Update(ctx context.Context, id string, req dto.UpdateReceiptRequest, actor service.Actor) (*models.Receipt, error)
	Approve(ctx context.Context, id string, actor service.Actor) (*models.Receipt, error)
	Reject(ctx context.Context, id string, reason string, actor service.Actor) (*models.Receipt, error)
	Delete(ctx context.Context, id string, actor service.Actor) error
}

// ReceiptHandler exposes the receipt lifecycle endpoints.
type ReceiptHandler struct {
	service receiptService
}

// NewReceiptHandler builds a new handler.
func NewReceiptHandler(service receiptService) *ReceiptHandler {
	return &ReceiptHandler{service: service}
}

// Submit godoc
// @Summary Submit a monthly receipt
// @Description Records a receipt for a closed month. Returns 409 with priorCount when the period already has receipts and confirmed_supplementary is not set.
// @Tags Receipts
// @Accept json
// @Produce json
// @Param payload body dto.SubmitReceiptRequest true "Receipt payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /receipts [post]
func (h *ReceiptHandler) Submit(c *gin.Context) {
	var req dto.SubmitReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid receipt payload"))
		return
	}
	receipt, err := h.service.Submit(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, receipt)
}

// List godoc
// @Summary List receipts
// @Tags Receipts
// @Produce json
// @Param internshipId query string false "Internship ID"
// @Param status query string false "PENDING, APPROVED or REJECTED"
// @Param month query int false "Period month"
// @Param year query int false "Period year"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /receipts [get]
func (h *ReceiptHandler) List(c *gin.Context) {
	query := dto.ReceiptQuery{
		InternshipID: c.Query("internshipId"),
		Status:       models.ReceiptStatus(c.Query("status")),
	}
	var err error
	if query.Month, err = intQuery(c, "month"); err != nil {
		response.Error(c, err)
		return
	}
	if query.Year, err = intQuery(c, "year"); err != nil {
		response.Error(c, err)
		return
	}
	if query.Page, err = intQuery(c, "page"); err != nil {
		response.Error(c, err)
		return
	}
	if query.PageSize, err = intQuery(c, "pageSize"); err != nil {
		response.Error(c, err)
		return
	}

	receipts, pagination, err := h.service.List(c.Request.Context(), query, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipts, pagination)
}

// Get godoc
// @Summary Get a receipt
// @Tags Receipts
// @Produce json
// @Param id path string true "Receipt ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /receipts/{id} [get]
func (h *ReceiptHandler) Get(c *gin.Context) {
	receipt, err := h.service.Get(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt, nil)
}

// Update godoc
// @Summary Edit a pending receipt
// @Tags Receipts
// @Accept json
// @Produce json
// @Param id path string true "Receipt ID"
// @Param payload body dto.UpdateReceiptRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /receipts/{id} [patch]
func (h *ReceiptHandler) Update(c *gin.Context) {
	var req dto.UpdateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid receipt payload"))
		return
	}
	receipt, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt, nil)
}

// Approve godoc
// @Summary Approve a pending receipt
// @Tags Receipts
// @Produce json
// @Param id path string true "Receipt ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /receipts/{id}/approve [post]
func (h *ReceiptHandler) Approve(c *gin.Context) {
	receipt, err := h.service.Approve(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt, nil)
}

// Reject godoc
// @Summary Reject a pending receipt
// @Tags Receipts
// @Accept json
// @Produce json
// @Param id path string true "Receipt ID"
// @Param payload body dto.RejectReceiptRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /receipts/{id}/reject [post]
func (h *ReceiptHandler) Reject(c *gin.Context) {
	var req dto.RejectReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrMissingReason, ""))
		return
	}
	receipt, err := h.service.Reject(c.Request.Context(), c.Param("id"), req.Reason, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt, nil)
}

// Delete godoc
// @Summary Delete a receipt
// @Tags Receipts
// @Param id path string true "Receipt ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /receipts/{id} [delete]
func (h *ReceiptHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be a number")
	}
	return v, nil
}
