package invoice

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
	read := api.Group("/invoices", auth.RequireRole(auth.RoleAccountant, auth.RoleReceptionist, auth.RoleDoctor, auth.RolePharmacist))
	read.GET("", h.List)
	read.GET("/:id", h.Get)

	write := api.Group("/invoices", auth.RequireRole(auth.RoleAccountant, auth.RoleReceptionist))
	write.POST("", h.Create)
	write.PATCH("/:id", h.Update)

	admin := api.Group("/invoices", auth.RequireRole(auth.RoleAccountant))
	admin.DELETE("/:id", h.Delete)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), ListFilter{
		PatientID: c.QueryParam("patientId"),
		Status:    c.QueryParam("status"),
		Limit:     pg.Limit,
		Offset:    pg.Offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	inv, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := apierr.Bind(c, &req); err != nil {
		return err
	}
	inv, err := h.svc.Create(c.Request().Context(), &req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) Update(c echo.Context) error {
	var req UpdateRequest
	if err := apierr.Bind(c, &req); err != nil {
		return err
	}
	inv, err := h.svc.Update(c.Request().Context(), c.Param("id"), &req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func mapError(err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return apierr.NotFound("invoice not found")
	}
	return err
}
