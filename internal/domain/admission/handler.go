package admission

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/domain/ward"
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
	read := api.Group("/admissions")
	read.GET("", h.List)
	read.GET("/:id", h.Get)

	write := api.Group("/admissions", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	write.POST("", h.Admit)
	write.POST("/:id/discharge", h.Discharge)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), ListFilter{
		PatientID: c.QueryParam("patientId"),
		WardID:    c.QueryParam("wardId"),
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
	a, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Admit(c echo.Context) error {
	var req AdmitRequest
	if err := apierr.Bind(c, &req); err != nil {
		return err
	}
	a, err := h.svc.Admit(c.Request().Context(), &req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Discharge(c echo.Context) error {
	var req DischargeRequest
	if c.Request().ContentLength != 0 {
		if err := apierr.Bind(c, &req); err != nil {
			return err
		}
	}
	a, err := h.svc.Discharge(c.Request().Context(), c.Param("id"), &req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return apierr.NotFound("admission not found")
	case errors.Is(err, ErrAlreadyAdmitted), errors.Is(err, ErrAlreadyDischarged), errors.Is(err, ErrBedBusy),
		errors.Is(err, ErrPatientBusy):
		return apierr.Conflict(err.Error())
	}
	return ward.MapError(err)
}
