package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RequestLogger はリクエストごとにメソッド、パス、ステータス、処理時間を出力します
func RequestLogger(l *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// ステータスを確定させるため先にエラーレスポンスを書き込む
				c.Error(err)
			}

			req := c.Request()
			l.Info("request",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()))
			return nil
		}
	}
}

// IPRateLimiter はクライアントIPごとのトークンバケットを保持します
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewIPRateLimiter は1分あたりperMinuteリクエストを許可するリミッターを作成します
func NewIPRateLimiter(perMinute int) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (s *IPRateLimiter) get(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(s.limit, s.burst)
		s.limiters[ip] = limiter
	}
	return limiter
}

// Middleware は上限を超えたリクエストに429を返します
func (s *IPRateLimiter) Middleware(l *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !s.get(ip).Allow() {
				l.Warn("Rate limit exceeded", zap.String("ip", ip))
				return c.JSON(http.StatusTooManyRequests,
					newErrorResponse(CodeRateLimited, "Rate limit exceeded. Try again later."))
			}
			return next(c)
		}
	}
}

// Tracing はリクエストごとにX-Rayのセグメントを開始します
func Tracing(name string) echo.MiddlewareFunc {
	return echo.WrapMiddleware(func(next http.Handler) http.Handler {
		return xray.Handler(xray.NewFixedSegmentNamer(name), next)
	})
}
