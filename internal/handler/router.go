package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// HealthChecker は依存先の疎通確認です
type HealthChecker func(ctx context.Context) error

// Router はAPIのルーティングを保持します
type Router struct {
	Availability *AvailabilityController
	Appointments *AppointmentController
	Screening    *ScreeningController
	Directory    *DirectoryController

	Logger      *zap.Logger
	RateLimiter *IPRateLimiter
	// 空の場合はトレースしません
	TracingName string
	Health      HealthChecker
}

// NewEcho は共通のエラーハンドラーとミドルウェアを設定したechoを返します
func (r *Router) NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = ErrorHandler

	if r.TracingName != "" {
		e.Use(Tracing(r.TracingName))
	}
	e.Use(middleware.Recover())
	if r.Logger != nil {
		e.Use(RequestLogger(r.Logger))
	}

	r.Setup(e)
	return e
}

// Setup はルートを登録します
func (r *Router) Setup(e *echo.Echo) {
	e.GET("/healthz", r.healthz)

	v1 := e.Group("/api/v1")
	if r.RateLimiter != nil {
		v1.Use(r.RateLimiter.Middleware(r.logger()))
	}

	v1.GET("/availability", r.Availability.ListAvailable)

	counselors := v1.Group("/counselors")
	counselors.GET("", r.Directory.ListCounselors)
	counselors.GET("/:id", r.Directory.GetCounselor)
	counselors.GET("/:id/availability", r.Availability.ListCounselorAvailability)

	appointments := v1.Group("/appointments")
	appointments.POST("", r.Appointments.BookSlot)
	appointments.GET("/:id", r.Appointments.Get)
	appointments.POST("/:id/cancel", r.Appointments.Cancel)
	appointments.POST("/:id/complete", r.Appointments.Complete)
	appointments.GET("/user/:user_id", r.Appointments.ListByUser)

	v1.POST("/calls", r.Appointments.StartImmediateCall)

	screening := v1.Group("/screening")
	screening.GET("/questions", r.Screening.Questions)
	screening.POST("", r.Screening.Evaluate)
	screening.GET("/:user_id", r.Screening.Latest)

	users := v1.Group("/users")
	users.GET("", r.Directory.ListUsers)
	users.POST("", r.Directory.CreateUser)
	users.GET("/:id", r.Directory.GetUser)
	users.GET("/:id/notifications", r.Directory.ListNotifications)

	v1.POST("/notifications/:id/read", r.Directory.MarkNotificationRead)
}

func (r *Router) healthz(c echo.Context) error {
	if r.Health != nil {
		if err := r.Health(c.Request().Context()); err != nil {
			r.logger().Warn("health check failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
