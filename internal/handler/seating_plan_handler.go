package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-seating-api/internal/dto"
	"github.com/noah-isme/exam-seating-api/internal/middleware"
	"github.com/noah-isme/exam-seating-api/internal/models"
	appErrors "github.com/noah-isme/exam-seating-api/pkg/errors"
	"github.com/noah-isme/exam-seating-api/pkg/response"
)

var exportContentTypes = map[string]string{
	".csv": "text/csv; charset=utf-8",
	".pdf": "application/pdf",
}

type seatingPlanService interface {
	Generate(ctx context.Context, req dto.GenerateSeatingPlanRequest) (*models.SeatingPlan, error)
	Get(ctx context.Context, id string) (*models.SeatingPlan, bool, error)
	List(ctx context.Context, query dto.SeatingPlanQuery) ([]models.SeatingPlanSummary, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateSeatingPlanStatusRequest) (*models.SeatingPlan, error)
	Swap(ctx context.Context, id string, req dto.SwapSeatsRequest) (*dto.SwapSeatsResponse, error)
	UpdateAllocations(ctx context.Context, id string, req dto.UpdateSeatingPlanRequest) (*models.SeatingPlan, error)
	Delete(ctx context.Context, id string) error
	Export(ctx context.Context, id string, req dto.ExportSeatingPlanRequest) (*dto.ExportResponse, error)
	OpenExport(token string) (*os.File, error)
}

// SeatingPlanHandler exposes seating plan generation, editing and export endpoints.
type SeatingPlanHandler struct {
	plans seatingPlanService
}

// NewSeatingPlanHandler constructs a SeatingPlanHandler.
func NewSeatingPlanHandler(plans seatingPlanService) *SeatingPlanHandler {
	return &SeatingPlanHandler{plans: plans}
}

// Generate godoc
// @Summary Generate a seating plan
// @Description Allocates every candidate of the exam into the classrooms, filled in the given order.
// @Tags Seating Plans
// @Accept json
// @Produce json
// @Param payload body dto.GenerateSeatingPlanRequest true "Exam and classrooms"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /seating-plans/generate [post]
func (h *SeatingPlanHandler) Generate(c *gin.Context) {
	var req dto.GenerateSeatingPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid seating plan request"))
		return
	}
	plan, err := h.plans.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, plan)
}

// List godoc
// @Summary List seating plans
// @Tags Seating Plans
// @Produce json
// @Param exam_id query string false "Exam ID"
// @Param status query string false "draft, finalized or published"
// @Success 200 {object} response.Envelope
// @Router /seating-plans [get]
func (h *SeatingPlanHandler) List(c *gin.Context) {
	var query dto.SeatingPlanQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid seating plan filter"))
		return
	}
	plans, err := h.plans.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans)
}

// Get godoc
// @Summary Get seating plan
// @Tags Seating Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /seating-plans/{id} [get]
func (h *SeatingPlanHandler) Get(c *gin.Context) {
	plan, hit, err := h.plans.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, plan, middleware.ExtractMeta(c))
}

// UpdateStatus godoc
// @Summary Change seating plan status
// @Tags Seating Plans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param payload body dto.UpdateSeatingPlanStatusRequest true "New status"
// @Success 200 {object} response.Envelope
// @Router /seating-plans/{id}/status [patch]
func (h *SeatingPlanHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateSeatingPlanStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	plan, err := h.plans.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan)
}

// Swap godoc
// @Summary Swap the candidates of two seats
// @Tags Seating Plans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param payload body dto.SwapSeatsRequest true "Seats to swap"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /seating-plans/{id}/swap [post]
func (h *SeatingPlanHandler) Swap(c *gin.Context) {
	var req dto.SwapSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid swap payload"))
		return
	}
	result, err := h.plans.Swap(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Update godoc
// @Summary Replace edited seat matrices
// @Tags Seating Plans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param payload body dto.UpdateSeatingPlanRequest true "Edited allocations"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /seating-plans/{id} [patch]
func (h *SeatingPlanHandler) Update(c *gin.Context) {
	var req dto.UpdateSeatingPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid seating plan payload"))
		return
	}
	plan, err := h.plans.UpdateAllocations(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan)
}

// Delete godoc
// @Summary Delete seating plan
// @Tags Seating Plans
// @Param id path string true "Plan ID"
// @Success 204
// @Router /seating-plans/{id} [delete]
func (h *SeatingPlanHandler) Delete(c *gin.Context) {
	if err := h.plans.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export seating plan
// @Tags Seating Plans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param payload body dto.ExportSeatingPlanRequest true "Export format"
// @Success 201 {object} response.Envelope
// @Router /seating-plans/{id}/export [post]
func (h *SeatingPlanHandler) Export(c *gin.Context) {
	var req dto.ExportSeatingPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	result, err := h.plans.Export(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download a rendered export
// @Tags Seating Plans
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200
// @Failure 410 {object} response.Envelope
// @Router /seating-plans/download/{token} [get]
func (h *SeatingPlanHandler) Download(c *gin.Context) {
	file, err := h.plans.OpenExport(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	name := filepath.Base(file.Name())
	contentType, ok := exportContentTypes[filepath.Ext(name)]
	if !ok {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
	})
}
