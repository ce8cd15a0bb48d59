package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/society-voting/internal/model"
	"github.com/iliyamo/society-voting/internal/utils"
)

// SessionCookie is the cookie carrying the voter session token.
const SessionCookie = "voter_session"

const sessionCtxKey = "voter_session"

// RevocationChecker reports whether a session id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// SessionAuth requires a valid, unrevoked voter session.  The token is read
// from the voter_session cookie or from a Bearer Authorization header.  On
// success the session is available to handlers through Session(c).
func SessionAuth(secret string, revoked RevocationChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, ok := liveSession(c, secret, revoked)
			if !ok {
				return unauthorized(c)
			}
			c.Set(sessionCtxKey, sess)
			return next(c)
		}
	}
}

// OptionalSession stores the voter session when the request carries a
// valid one and lets every request through.
func OptionalSession(secret string, revoked RevocationChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if sess, ok := liveSession(c, secret, revoked); ok {
				c.Set(sessionCtxKey, sess)
			}
			return next(c)
		}
	}
}

// liveSession parses the request's token and checks it against the
// revocation list.  A failed lookup is logged and the session accepted.
func liveSession(c echo.Context, secret string, revoked RevocationChecker) (model.Session, bool) {
	raw := sessionToken(c)
	if raw == "" {
		return model.Session{}, false
	}
	sess, err := utils.ParseSessionToken(secret, raw)
	if err != nil {
		return model.Session{}, false
	}
	if revoked != nil {
		gone, err := revoked.IsRevoked(c.Request().Context(), sess.ID)
		if err != nil {
			Logger(c).WithError(err).Warn("session revocation lookup failed")
		} else if gone {
			return model.Session{}, false
		}
	}
	return sess, true
}

func sessionToken(c echo.Context) string {
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if ck, err := c.Cookie(SessionCookie); err == nil {
		return ck.Value
	}
	return ""
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"success": false,
		"error":   "session_expired",
		"message": "Session expired, please verify again",
	})
}

// Session returns the voter session stored by SessionAuth.
func Session(c echo.Context) (model.Session, bool) {
	sess, ok := c.Get(sessionCtxKey).(model.Session)
	return sess, ok
}
