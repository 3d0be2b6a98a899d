package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/uma-arai/sbcntr-counseling/internal/service/appointment"
)

type AppointmentController struct {
	BaseController
	service *appointment.Service
}

func NewAppointmentController(service *appointment.Service) *AppointmentController {
	return &AppointmentController{service: service}
}

type bookSlotRequest struct {
	ClientID    string    `json:"client_id"`
	CounselorID string    `json:"counselor_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

type immediateCallRequest struct {
	ClientID    string `json:"client_id"`
	CounselorID string `json:"counselor_id"`
}

// BookSlot POST /api/v1/appointments
func (h *AppointmentController) BookSlot(c echo.Context) error {
	var req bookSlotRequest
	if err := c.Bind(&req); err != nil {
		return h.BadRequest(c, CodeBadRequest, "invalid request body")
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		return h.BadRequest(c, CodeInvalidTime, "start_time and end_time are required")
	}

	appt, err := h.service.BookSlot(c.Request().Context(),
		req.ClientID, req.CounselorID, req.StartTime.UTC(), req.EndTime.UTC())
	if err != nil {
		return h.Fail(c, err)
	}
	return h.Success(c, http.StatusCreated, appt, "Appointment booked")
}

// Get GET /api/v1/appointments/:id
func (h *AppointmentController) Get(c echo.Context) error {
	appt, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.Fail(c, err)
	}
	return h.Success(c, http.StatusOK, appt, "Success")
}

// Cancel POST /api/v1/appointments/:id/cancel
func (h *AppointmentController) Cancel(c echo.Context) error {
	appt, err := h.service.Cancel(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.Fail(c, err)
	}
	return h.Success(c, http.StatusOK, appt, "Appointment cancelled")
}

// Complete POST /api/v1/appointments/:id/complete
func (h *AppointmentController) Complete(c echo.Context) error {
	appt, err := h.service.Complete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.Fail(c, err)
	}
	return h.Success(c, http.StatusOK, appt, "Appointment completed")
}

// ListByUser GET /api/v1/appointments/user/:user_id
func (h *AppointmentController) ListByUser(c echo.Context) error {
	appts, err := h.service.ListByUser(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		return h.Fail(c, err)
	}
	return h.Success(c, http.StatusOK, appts, "Success")
}

// StartImmediateCall POST /api/v1/calls
func (h *AppointmentController) StartImmediateCall(c echo.Context) error {
	var req immediateCallRequest
	if err := c.Bind(&req); err != nil {
		return h.BadRequest(c, CodeBadRequest, "invalid request body")
	}

	appt, err := h.service.StartImmediateCall(c.Request().Context(), req.ClientID, req.CounselorID)
	if err != nil {
		return h.Fail(c, err)
	}
	return h.Success(c, http.StatusCreated, appt, "Call started")
}
