package activity

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the dashboard feed; every authenticated role may
// read it.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/activity", h.Recent)
}

func (h *Handler) Recent(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	entries, err := h.svc.Recent(c.Request().Context(), Filter{
		Limit:      limit,
		Role:       c.QueryParam("role"),
		EntityType: c.QueryParam("entityType"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}
