package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/society-voting/internal/service"
)

// SocietyHandler serves the address directory used to fill the address
// pickers before verification.
type SocietyHandler struct {
	Directory *service.Directory
}

func NewSocietyHandler(d *service.Directory) *SocietyHandler {
	return &SocietyHandler{Directory: d}
}

type societyReq struct {
	Society string `json:"society"`
}

// Details handles POST /api/get_society_details with a {"society": ...}
// body.
func (h *SocietyHandler) Details(c echo.Context) error {
	var req societyReq
	if err := c.Bind(&req); err != nil {
		return fail(c, service.ErrMissingSociety)
	}
	return h.render(c, req.Society)
}

// DetailsByName handles GET /api/societies/:society/details.
func (h *SocietyHandler) DetailsByName(c echo.Context) error {
	return h.render(c, c.Param("society"))
}

func (h *SocietyHandler) render(c echo.Context, society string) error {
	layout, err := h.Directory.Layout(c.Request().Context(), society)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":        true,
		"community_type": layout.CommunityType,
		"community_data": layout.Data,
	})
}
