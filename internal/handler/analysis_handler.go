package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dekont-api/internal/dto"
	"github.com/noah-isme/dekont-api/internal/models"
	"github.com/noah-isme/dekont-api/internal/service"
	appErrors "github.com/noah-isme/dekont-api/pkg/errors"
	"github.com/noah-isme/dekont-api/pkg/response"
)

type analysisGateway interface {
	Analyze(ctx context.Context, id string, actor service.Actor) (*models.Receipt, error)
}

type batchRunner interface {
	RunBatch(ctx context.Context, ids []string, actor service.Actor) (*models.BatchSummary, error)
}

// AnalysisHandler exposes single and batch receipt analysis.
type AnalysisHandler struct {
	gateway analysisGateway
	batch   batchRunner
}

// NewAnalysisHandler builds a new handler.
func NewAnalysisHandler(gateway analysisGateway, batch batchRunner) *AnalysisHandler {
	return &AnalysisHandler{gateway: gateway, batch: batch}
}

// Analyze godoc
// @Summary Analyze one receipt image
// @Description Sends the receipt image to the analysis provider and stores the verdict. PDFs are refused with 415.
// @Tags Analysis
// @Produce json
// @Param id path string true "Receipt ID"
// @Success 200 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /receipts/{id}/analyze [post]
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	receipt, err := h.gateway.Analyze(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt, nil)
}

// Batch godoc
// @Summary Analyze up to 20 receipts
// @Description Runs analysis with bounded parallelism. Individual failures are reported per item.
// @Tags Analysis
// @Accept json
// @Produce json
// @Param payload body dto.BatchAnalysisRequest true "Receipt IDs"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /receipts/analyze/batch [post]
func (h *AnalysisHandler) Batch(c *gin.Context) {
	var req dto.BatchAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	summary, err := h.batch.RunBatch(c.Request.Context(), req.ReceiptIDs, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
