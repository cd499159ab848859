package logging

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

const loggerKey = "logger"

// RequestID ensures every request carries an id, generating a UUID when the
// client did not send one, and echoes it on the response.
func RequestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			c.Request().Header.Set(RequestIDHeader, id)
		}
		c.Response().Header().Set(RequestIDHeader, id)
		c.Set(RequestIDHeader, id)
		return next(c)
	}
}

// Middleware logs one line per request with method, path, status, latency and
// request id, and stores a request-scoped logger on the context.
func Middleware(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID, _ := c.Get(RequestIDHeader).(string)
			if requestID == "" {
				requestID = c.Request().Header.Get(RequestIDHeader)
			}
			reqLogger := logger.With(zap.String("request_id", requestID))
			c.Set(loggerKey, reqLogger)

			err := next(c)
			if err != nil {
				// Let echo resolve the final status before it is logged.
				c.Error(err)
			}

			fields := []zapcore.Field{
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
			}
			switch {
			case err != nil:
				reqLogger.Error("HTTP request failed", append(fields, zap.Error(err))...)
			case c.Response().Status >= 500:
				reqLogger.Error("HTTP request failed", fields...)
			default:
				reqLogger.Info("HTTP request completed", fields...)
			}
			return nil
		}
	}
}

// FromContext returns the request-scoped logger stored by Middleware, or
// fallback when none is present.
func FromContext(c echo.Context, fallback *zap.Logger) *zap.Logger {
	if logger, ok := c.Get(loggerKey).(*zap.Logger); ok {
		return logger
	}
	if fallback == nil {
		return zap.NewNop()
	}
	return fallback
}
