package ward

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/platform/apierr"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/lock"
	"github.com/clinicdesk/clinicdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/wards")
	read.GET("", h.List)
	read.GET("/:id", h.Get)

	beds := api.Group("/wards", auth.RequireRole(auth.RoleNurse))
	beds.PATCH("/:id/beds/:number", h.UpdateBed)

	admin := api.Group("/wards", auth.RequireRole(auth.RoleAdmin))
	admin.POST("", h.Create)
	admin.PATCH("/:id", h.Update)
	admin.DELETE("/:id", h.Delete)
	admin.POST("/:id/beds", h.AddBed)
	admin.DELETE("/:id/beds/:number", h.RemoveBed)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), ListFilter{
		Type:   c.QueryParam("type"),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	w, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := apierr.Bind(c, &req); err != nil {
		return err
	}
	w, err := h.svc.Create(c.Request().Context(), &req)
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) Update(c echo.Context) error {
	var req UpdateRequest
	if err := apierr.Bind(c, &req); err != nil {
		return err
	}
	w, err := h.svc.Update(c.Request().Context(), c.Param("id"), &req)
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return MapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AddBed(c echo.Context) error {
	var in BedInput
	if err := apierr.Bind(c, &in); err != nil {
		return err
	}
	w, err := h.svc.AddBed(c.Request().Context(), c.Param("id"), &in)
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) UpdateBed(c echo.Context) error {
	var patch BedPatch
	if err := apierr.Bind(c, &patch); err != nil {
		return err
	}
	w, err := h.svc.UpdateBed(c.Request().Context(), c.Param("id"), c.Param("number"), &patch)
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) RemoveBed(c echo.Context) error {
	w, err := h.svc.RemoveBed(c.Request().Context(), c.Param("id"), c.Param("number"))
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusOK, w)
}

// MapError translates ward and bed errors. Admissions reuse it.
func MapError(err error) error {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return apierr.NotFound("ward not found")
	case errors.Is(err, ErrBedNotFound):
		return apierr.NotFound(ErrBedNotFound.Error())
	case errors.Is(err, ErrWardOccupied), errors.Is(err, ErrBedOccupied), errors.Is(err, ErrBedUnavailable):
		return apierr.Conflict(err.Error())
	case errors.Is(err, lock.ErrNotAcquired):
		return apierr.Conflict("ward is being updated, try again")
	}
	return err
}
