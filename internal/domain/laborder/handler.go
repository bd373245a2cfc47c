package laborder

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
	read := api.Group("/lab-orders")
	read.GET("", h.List)
	read.GET("/:id", h.Get)

	order := api.Group("/lab-orders", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	order.POST("", h.Create)
	order.DELETE("/:id", h.Delete)

	lab := api.Group("/lab-orders", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleLabTechnician))
	lab.PATCH("/:id", h.Update)
	lab.PUT("/:id/results", h.RecordResults)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), ListFilter{
		PatientID: c.QueryParam("patientId"),
		Status:    c.QueryParam("status"),
		Priority:  c.QueryParam("priority"),
		Limit:     pg.Limit,
		Offset:    pg.Offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	o, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := apierr.Bind(c, &req); err != nil {
		return err
	}
	o, err := h.svc.Create(c.Request().Context(), &req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) Update(c echo.Context) error {
	var req UpdateRequest
	if err := apierr.Bind(c, &req); err != nil {
		return err
	}
	o, err := h.svc.Update(c.Request().Context(), c.Param("id"), &req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) RecordResults(c echo.Context) error {
	var req ResultsRequest
	if err := apierr.Bind(c, &req); err != nil {
		return err
	}
	o, err := h.svc.RecordResults(c.Request().Context(), c.Param("id"), &req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, o)
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
		return apierr.NotFound("lab order not found")
	case errors.Is(err, ErrCancelled), errors.Is(err, ErrTestsLocked):
		return apierr.Conflict(err.Error())
	}
	return err
}
