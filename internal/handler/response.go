package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/uma-arai/sbcntr-counseling/internal/common/logger"
	"github.com/uma-arai/sbcntr-counseling/internal/model"
	"go.uber.org/zap"
)

// SuccessResponse は成功時の共通レスポンスです
type SuccessResponse struct {
	Status    int         `json:"status"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorResponse はエラー時の共通レスポンスです
type ErrorResponse struct {
	Status    string    `json:"status"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// アプリケーションのエラーコード
const (
	CodeBadRequest           = "BAD_REQUEST"
	CodeInvalidTime          = "INVALID_TIME"
	CodeInvalidUser          = "INVALID_USER"
	CodeInvalidSlot          = "INVALID_SLOT"
	CodeIncompleteSubmission = "INCOMPLETE_SUBMISSION"
	CodeQuotaExceeded        = "PROFESSIONAL_QUOTA_EXCEEDED"
	CodeNotFound             = "NOT_FOUND"
	CodeCounselorNotFound    = "COUNSELOR_NOT_FOUND"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeAppointmentNotFound  = "APPOINTMENT_NOT_FOUND"
	CodeUnknownUser          = "UNKNOWN_USER"
	CodeNotificationNotFound = "NOTIFICATION_NOT_FOUND"
	CodeSlotUnavailable      = "SLOT_UNAVAILABLE"
	CodeInvalidTransition    = "INVALID_STATUS_TRANSITION"
	CodeRateLimited          = "RATE_LIMITED"
	CodeInternal             = "INTERNAL_ERROR"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{model.ErrSlotUnavailable, http.StatusConflict, CodeSlotUnavailable},
	{model.ErrInvalidStatusTransition, http.StatusConflict, CodeInvalidTransition},
	{model.ErrCounselorNotFound, http.StatusNotFound, CodeCounselorNotFound},
	{model.ErrUserNotFound, http.StatusNotFound, CodeUserNotFound},
	{model.ErrAppointmentNotFound, http.StatusNotFound, CodeAppointmentNotFound},
	{model.ErrUnknownUser, http.StatusNotFound, CodeUnknownUser},
	{model.ErrNotificationNotFound, http.StatusNotFound, CodeNotificationNotFound},
	{model.ErrIncompleteSubmission, http.StatusBadRequest, CodeIncompleteSubmission},
	{model.ErrProfessionalQuotaExceeded, http.StatusBadRequest, CodeQuotaExceeded},
	{model.ErrInvalidUser, http.StatusBadRequest, CodeInvalidUser},
	{model.ErrInvalidSlot, http.StatusBadRequest, CodeInvalidSlot},
}

// BaseController は各コントローラーが埋め込む共通処理です
type BaseController struct{}

// Success は成功レスポンスを返します
func (BaseController) Success(c echo.Context, status int, data interface{}, message string) error {
	return c.JSON(status, SuccessResponse{
		Status:    status,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// Fail はドメインエラーをHTTPステータスとエラーコードに変換して返します
// 対応するものがないエラーは500としてログに出力します
func (BaseController) Fail(c echo.Context, err error) error {
	return writeError(c, err)
}

// BadRequest は入力エラーを返します
func (BaseController) BadRequest(c echo.Context, code, message string) error {
	return c.JSON(http.StatusBadRequest, newErrorResponse(code, message))
}

func newErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Status:    "error",
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

func writeError(c echo.Context, err error) error {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return c.JSON(m.status, newErrorResponse(m.code, err.Error()))
		}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		return c.JSON(he.Code, newErrorResponse(codeForStatus(he.Code), msg))
	}

	logger.L().Error("unhandled error",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.JSON(http.StatusInternalServerError, newErrorResponse(CodeInternal, "internal server error"))
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusTooManyRequests:
		return CodeRateLimited
	}
	if status >= http.StatusInternalServerError {
		return CodeInternal
	}
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}

// ErrorHandler はechoが生成したエラー（ルート未定義、バインド失敗など）も共通形式で返します
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if werr := writeError(c, err); werr != nil {
		logger.L().Error("failed to write error response", zap.Error(werr))
	}
}
