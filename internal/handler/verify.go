package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/society-voting/internal/middleware"
	"github.com/iliyamo/society-voting/internal/service"
	"github.com/iliyamo/society-voting/internal/utils"
)

// VerifyHandler exposes the two verification strategies and issues the
// voter session on success.
type VerifyHandler struct {
	Verifier     *service.Verifier
	Code         service.Strategy
	Face         service.Strategy
	Secret       string         // session signing key
	TTL          time.Duration  // session lifetime
	Location     *time.Location // display zone of proof-of-vote timestamps
	SecureCookie bool
	Now          func() time.Time
}

type addressReq struct {
	Society string `json:"society"`
	Tower   string `json:"tower"`
	Flat    string `json:"flat"`
	Lane    string `json:"lane"`
	House   string `json:"house"`
	Mode    string `json:"mode"`
}

func (r addressReq) toRequest(proof string) service.VerifyRequest {
	return service.VerifyRequest{
		Society: r.Society,
		Address: service.AddressQuery{Tower: r.Tower, Flat: r.Flat, Lane: r.Lane, House: r.House},
		Proof:   proof,
		Mode:    service.ParseMode(r.Mode),
	}
}

type verifyCodeReq struct {
	addressReq
	SecretCode string `json:"secret_code"`
}

type verifyFaceReq struct {
	addressReq
	ImageData string `json:"image_data"`
}

// VerifyCode handles POST /api/verify_code.
func (h *VerifyHandler) VerifyCode(c echo.Context) error {
	var req verifyCodeReq
	if err := c.Bind(&req); err != nil {
		return fail(c, service.ErrMissingFields)
	}
	return h.verify(c, h.Code, req.toRequest(req.SecretCode))
}

// VerifyFace handles POST /api/verify_face.
func (h *VerifyHandler) VerifyFace(c echo.Context) error {
	var req verifyFaceReq
	if err := c.Bind(&req); err != nil {
		return fail(c, service.ErrMissingFields)
	}
	return h.verify(c, h.Face, req.toRequest(req.ImageData))
}

func (h *VerifyHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *VerifyHandler) verify(c echo.Context, s service.Strategy, req service.VerifyRequest) error {
	res, err := h.Verifier.Verify(c.Request().Context(), s, req)
	if err != nil {
		return fail(c, err)
	}
	body := echo.Map{
		"success":  true,
		"verified": true,
		"voted_at": proofTime(res.VotedAt, h.Location),
	}
	if res.VotedAt != nil {
		// nothing left to vote on; no session is issued
		body["message"] = "Verified. Your vote has already been recorded"
		return c.JSON(http.StatusOK, body)
	}

	hh := res.Household
	tok, err := utils.NewSessionToken(h.Secret, hh.ID, hh.SocietyName, h.TTL, h.now())
	if err != nil {
		return fail(c, err)
	}
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    tok.Token,
		Path:     "/",
		Expires:  tok.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	body["message"] = "Verification successful"
	body["session_token"] = tok.Token
	body["expires_at"] = tok.Session.ExpiresAt.Format(time.RFC3339)
	return c.JSON(http.StatusOK, body)
}
