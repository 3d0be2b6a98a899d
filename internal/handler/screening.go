package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/uma-arai/sbcntr-counseling/internal/model"
	"github.com/uma-arai/sbcntr-counseling/internal/service/screening"
)

type ScreeningController struct {
	BaseController
	evaluator *screening.Evaluator
}

func NewScreeningController(evaluator *screening.Evaluator) *ScreeningController {
	return &ScreeningController{evaluator: evaluator}
}

// Questions GET /api/v1/screening/questions
func (h *ScreeningController) Questions(c echo.Context) error {
	return h.Success(c, http.StatusOK, h.evaluator.Questions(), "Success")
}

// Evaluate POST /api/v1/screening
func (h *ScreeningController) Evaluate(c echo.Context) error {
	var sub model.ScreeningSubmission
	if err := c.Bind(&sub); err != nil {
		return h.BadRequest(c, CodeBadRequest, "invalid request body")
	}

	result, err := h.evaluator.Evaluate(c.Request().Context(), sub)
	if err != nil {
		return h.Fail(c, err)
	}
	return h.Success(c, http.StatusCreated, result, "Screening evaluated")
}

// Latest GET /api/v1/screening/:user_id
func (h *ScreeningController) Latest(c echo.Context) error {
	result, err := h.evaluator.Latest(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		return h.Fail(c, err)
	}
	return h.Success(c, http.StatusOK, result, "Success")
}
