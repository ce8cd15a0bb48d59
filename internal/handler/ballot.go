package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/society-voting/internal/middleware"
	"github.com/iliyamo/society-voting/internal/service"
)

// BallotHandler serves the ballot of the session household, accepts its
// submission and ends the session on logout.  All routes sit behind
// middleware.SessionAuth.
type BallotHandler struct {
	Engine   *service.BallotEngine
	Sessions service.SessionRevoker // optional
	Location *time.Location
}

func clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// noStore keeps browsers from showing a stale ballot after the vote.
func noStore(c echo.Context) {
	h := c.Response().Header()
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}

// Ballot handles GET /api/ballot.
func (h *BallotHandler) Ballot(c echo.Context) error {
	sess, ok := middleware.Session(c)
	if !ok {
		return fail(c, service.ErrSessionRequired)
	}
	noStore(c)
	sheet, err := h.Engine.Sheet(c.Request().Context(), sess)
	if err != nil {
		if service.AsError(err).Code == service.ErrAlreadyVoted.Code {
			clearSessionCookie(c)
		}
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":        true,
		"society_name":   sheet.Society,
		"tower":          sheet.Tower,
		"max_selections": sheet.MaxSelections,
		"contestants":    sheet.Candidates,
	})
}

type submitReq struct {
	Contestants []string `json:"contestants"`
}

// Submit handles POST /api/submit_vote with {"contestants": [...]}.
func (h *BallotHandler) Submit(c echo.Context) error {
	sess, ok := middleware.Session(c)
	if !ok {
		return fail(c, service.ErrSessionRequired)
	}
	var req submitReq
	if err := c.Bind(&req); err != nil {
		return fail(c, service.ErrNoSelection)
	}
	rec, err := h.Engine.Submit(c.Request().Context(), sess, req.Contestants)
	if err != nil {
		if service.AsError(err).Code == service.ErrAlreadyVoted.Code {
			clearSessionCookie(c)
		}
		return fail(c, err)
	}
	clearSessionCookie(c)
	return c.JSON(http.StatusOK, echo.Map{
		"success":  true,
		"message":  "Vote successfully cast!",
		"voted_at": proofTime(&rec.VotedAt, h.Location),
	})
}

// Logout handles POST /api/logout.  The session is revoked and its cookie
// cleared.
func (h *BallotHandler) Logout(c echo.Context) error {
	if sess, ok := middleware.Session(c); ok && h.Sessions != nil {
		if err := h.Sessions.Revoke(c.Request().Context(), sess); err != nil {
			middleware.Logger(c).WithError(err).Warn("logout: revoke failed")
		}
	}
	clearSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}
