package appointment

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/platform/apierr"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/appointments")
	read.GET("", h.List)
	read.GET("/:id", h.Get)

	write := api.Group("/appointments", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist))
	write.POST("", h.Create)
	write.PATCH("/:id", h.Update)
	write.DELETE("/:id", h.Delete)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), ListFilter{
		PatientID:  c.QueryParam("patientId"),
		ProviderID: c.QueryParam("providerId"),
		Date:       c.QueryParam("date"),
		Status:     c.QueryParam("status"),
		Limit:      pg.Limit,
		Offset:     pg.Offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	a, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := apierr.Bind(c, &req); err != nil {
		return err
	}
	a, err := h.svc.Create(c.Request().Context(), &req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Update(c echo.Context) error {
	var req UpdateRequest
	if err := apierr.Bind(c, &req); err != nil {
		return err
	}
	a, err := h.svc.Update(c.Request().Context(), c.Param("id"), &req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return apierr.NotFound("appointment not found")
	case errors.Is(err, ErrSlotTaken):
		return apierr.Conflict(ErrSlotTaken.Error())
	case errors.Is(err, ErrInvalidTransition):
		return apierr.Conflict(err.Error())
	}
	return err
}
