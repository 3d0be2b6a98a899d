package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/uma-arai/sbcntr-counseling/internal/model"
	"github.com/uma-arai/sbcntr-counseling/internal/service/directory"
)

// DirectoryController はユーザーとカウンセラーの参照・登録を扱います
type DirectoryController struct {
	BaseController
	service *directory.Service
}

func NewDirectoryController(service *directory.Service) *DirectoryController {
	return &DirectoryController{service: service}
}

func (h *DirectoryController) ListUsers(c echo.Context) error {
	users, err := h.service.ListUsers(c.Request().Context())
	if err != nil {
		return h.Fail(c, err)
	}
	return h.Success(c, http.StatusOK, users, "Success")
}

func (h *DirectoryController) GetUser(c echo.Context) error {
	user, err := h.service.GetUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.Fail(c, err)
	}
	return h.Success(c, http.StatusOK, user, "Success")
}

func (h *DirectoryController) CreateUser(c echo.Context) error {
	var in directory.CreateUserInput
	if err := c.Bind(&in); err != nil {
		return h.BadRequest(c, CodeBadRequest, "invalid request body")
	}

	user, err := h.service.CreateUser(c.Request().Context(), in)
	if err != nil {
		return h.Fail(c, err)
	}
	return h.Success(c, http.StatusCreated, user, "User created")
}

// ListCounselors GET /api/v1/counselors?specialty=
func (h *DirectoryController) ListCounselors(c echo.Context) error {
	specialty := model.Specialty(c.QueryParam("specialty"))
	if specialty != "" && !specialty.Valid() {
		return h.BadRequest(c, CodeBadRequest, "unknown specialty: "+string(specialty))
	}

	counselors, err := h.service.ListCounselors(c.Request().Context(), specialty)
	if err != nil {
		return h.Fail(c, err)
	}
	return h.Success(c, http.StatusOK, counselors, "Success")
}

func (h *DirectoryController) GetCounselor(c echo.Context) error {
	counselor, err := h.service.GetCounselor(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.Fail(c, err)
	}
	return h.Success(c, http.StatusOK, counselor, "Success")
}

// ListNotifications GET /api/v1/users/:id/notifications
func (h *DirectoryController) ListNotifications(c echo.Context) error {
	records, err := h.service.ListNotifications(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.Fail(c, err)
	}
	return h.Success(c, http.StatusOK, records, "Success")
}

// MarkNotificationRead POST /api/v1/notifications/:id/read
func (h *DirectoryController) MarkNotificationRead(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return h.BadRequest(c, CodeBadRequest, "notification id must be an integer")
	}
	if err := h.service.MarkNotificationRead(c.Request().Context(), id); err != nil {
		return h.Fail(c, err)
	}
	return h.Success(c, http.StatusOK, nil, "Notification marked as read")
}
