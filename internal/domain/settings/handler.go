package settings

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/platform/apierr"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/blobstore"
)

// LogoPath is the upload route. The server raises the body limit for it.
const LogoPath = "/api/admin/settings/logo"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/settings", h.GetApp)
	api.GET("/settings/logo", h.GetLogo)

	admin := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/settings", h.GetApp)
	admin.PATCH("/settings", h.UpdateApp)
	admin.POST("/settings/logo", h.UploadLogo)

	pricing := api.Group("/admin/pricing", auth.RequireRole(auth.RoleAdmin, auth.RoleAccountant))
	pricing.GET("/general-fees", h.GetFees)
	pricing.POST("/general-fees", h.UpdateFees)
}

func (h *Handler) GetApp(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.App())
}

func (h *Handler) UpdateApp(c echo.Context) error {
	var patch AppPatch
	if err := apierr.Bind(c, &patch); err != nil {
		return err
	}
	s, err := h.svc.UpdateApp(c.Request().Context(), &patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) GetFees(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Fees())
}

func (h *Handler) UpdateFees(c echo.Context) error {
	var patch FeesPatch
	if err := apierr.Bind(c, &patch); err != nil {
		return err
	}
	f, err := h.svc.UpdateFees(c.Request().Context(), &patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

// UploadLogo takes a multipart form with the image in the "logo" field.
func (h *Handler) UploadLogo(c echo.Context) error {
	fh, err := c.FormFile("logo")
	if err != nil {
		return apierr.Field("logo", "is required")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	s, err := h.svc.UploadLogo(c.Request().Context(), f, fh.Header.Get(echo.HeaderContentType))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) GetLogo(c echo.Context) error {
	info, body, err := h.svc.OpenLogo(c.Request().Context())
	if errors.Is(err, ErrNoLogo) || errors.Is(err, blobstore.ErrNotFound) {
		return apierr.NotFound(ErrNoLogo.Error())
	}
	if err != nil {
		return err
	}
	defer body.Close()

	res := c.Response()
	if info.ETag != "" {
		res.Header().Set("ETag", info.ETag)
		if c.Request().Header.Get("If-None-Match") == info.ETag {
			return c.NoContent(http.StatusNotModified)
		}
	}
	res.Header().Set("Cache-Control", "public, max-age=300")
	if info.Size > 0 {
		res.Header().Set(echo.HeaderContentLength, strconv.FormatInt(info.Size, 10))
	}
	return c.Stream(http.StatusOK, info.ContentType, body)
}
