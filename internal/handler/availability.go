package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/uma-arai/sbcntr-counseling/internal/model"
	"github.com/uma-arai/sbcntr-counseling/internal/service/availability"
)

type AvailabilityController struct {
	BaseController
	service *availability.Service
}

func NewAvailabilityController(service *availability.Service) *AvailabilityController {
	return &AvailabilityController{service: service}
}

// ListAvailable GET /api/v1/availability
func (h *AvailabilityController) ListAvailable(c echo.Context) error {
	start, end, err := parseRange(c)
	if err != nil {
		return h.BadRequest(c, CodeInvalidTime, err.Error())
	}

	filter := model.SlotFilter{RangeStart: start, RangeEnd: end}
	if id := c.QueryParam("counselor_id"); id != "" {
		filter.CounselorID = &id
	}

	slots, err := h.service.ListAvailable(c.Request().Context(), filter)
	if err != nil {
		return h.Fail(c, err)
	}
	return h.Success(c, http.StatusOK, slots, "Success")
}

// ListCounselorAvailability GET /api/v1/counselors/:id/availability
func (h *AvailabilityController) ListCounselorAvailability(c echo.Context) error {
	start, end, err := parseRange(c)
	if err != nil {
		return h.BadRequest(c, CodeInvalidTime, err.Error())
	}

	slots, err := h.service.ListCounselorAvailability(c.Request().Context(), c.Param("id"), start, end)
	if err != nil {
		return h.Fail(c, err)
	}
	return h.Success(c, http.StatusOK, slots, "Success")
}

// parseRange はstart_date, end_dateをRFC3339として読み取ります。未指定はnilです
func parseRange(c echo.Context) (start, end *time.Time, err error) {
	if start, err = parseTimeParam(c, "start_date"); err != nil {
		return nil, nil, err
	}
	if end, err = parseTimeParam(c, "end_date"); err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

func parseTimeParam(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be RFC3339: %q", name, raw)
	}
	t = t.UTC()
	return &t, nil
}
