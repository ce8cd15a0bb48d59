package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const loggerCtxKey = "logger"

// RequestLogger assigns every request an id (honouring an incoming
// X-Request-ID) and logs one line per request once it completes.  Handlers
// reach the request-scoped entry through Logger(c).
func RequestLogger(base *logrus.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			entry := base.WithField("request_id", id)
			c.Set(loggerCtxKey, entry)

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			fields := logrus.Fields{
				"method":  req.Method,
				"path":    req.URL.Path,
				"status":  c.Response().Status,
				"latency": time.Since(start).String(),
				"ip":      c.RealIP(),
			}
			switch status := c.Response().Status; {
			case status >= 500:
				entry.WithFields(fields).Error("request")
			case status >= 400:
				entry.WithFields(fields).Warn("request")
			default:
				entry.WithFields(fields).Info("request")
			}
			return nil
		}
	}
}

// Logger returns the request-scoped log entry, or the standard logger when
// RequestLogger is not installed.
func Logger(c echo.Context) *logrus.Entry {
	if e, ok := c.Get(loggerCtxKey).(*logrus.Entry); ok {
		return e
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
