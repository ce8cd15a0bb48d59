package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/society-voting/internal/middleware"
	"github.com/iliyamo/society-voting/internal/service"
)

// ProofLayout renders proof-of-vote timestamps, e.g.
// "05-03-2025 04:30:00 PM IST".
const ProofLayout = "02-01-2006 03:04:05 PM MST"

// fail writes err as a JSON rejection.  Infrastructure failures are logged
// with their cause; the client only sees a generic message.
func fail(c echo.Context, err error) error {
	e := service.AsError(err)
	if e.Kind == service.KindInternal {
		middleware.Logger(c).WithError(e.Err).Error("request failed")
	}
	return c.JSON(e.Status(), echo.Map{
		"success": false,
		"error":   e.Code,
		"message": e.Message,
	})
}

// proofTime formats t in loc, or returns nil for a nil time.
func proofTime(t *time.Time, loc *time.Location) interface{} {
	if t == nil {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(ProofLayout)
}
