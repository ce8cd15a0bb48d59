// Package utils issues and parses the signed voter session tokens.
package utils

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/society-voting/internal/model"
)

// ErrInvalidSession is returned for tokens that are malformed, forged or
// expired.
var ErrInvalidSession = errors.New("invalid session token")

// SessionClaims are the claims of a voter session token.  The subject is
// the household id, soc the society and jti the session id used for
// revocation.
type SessionClaims struct {
	Society string `json:"soc"`
	jwt.RegisteredClaims
}

// SessionToken is a signed token together with the session it encodes.
type SessionToken struct {
	Token   string
	Session model.Session
}

// NewSessionToken signs an HS256 session token for a household valid for
// ttl from now.
func NewSessionToken(secret string, householdID uint64, society string, ttl time.Duration, now time.Time) (SessionToken, error) {
	now = now.UTC()
	exp := now.Add(ttl)
	sess := model.Session{
		ID:          uuid.NewString(),
		HouseholdID: householdID,
		SocietyName: society,
		ExpiresAt:   exp,
	}
	claims := SessionClaims{
		Society: society,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   strconv.FormatUint(householdID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, Session: sess}, nil
}

// ParseSessionToken verifies the signature and expiry of raw and returns
// the session it carries.
func ParseSessionToken(secret, raw string) (model.Session, error) {
	var claims SessionClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSession
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return model.Session{}, ErrInvalidSession
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 || claims.Society == "" || claims.ID == "" {
		return model.Session{}, ErrInvalidSession
	}
	return model.Session{
		ID:          claims.ID,
		HouseholdID: id,
		SocietyName: claims.Society,
		ExpiresAt:   claims.ExpiresAt.Time.UTC(),
	}, nil
}
