package main

import (
	"context"
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/clinicdesk/clinicdesk/internal/domain/activity"
	"github.com/clinicdesk/clinicdesk/internal/domain/admission"
	"github.com/clinicdesk/clinicdesk/internal/domain/appointment"
	"github.com/clinicdesk/clinicdesk/internal/domain/cascade"
	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	"github.com/clinicdesk/clinicdesk/internal/domain/laborder"
	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
	"github.com/clinicdesk/clinicdesk/internal/domain/settings"
	"github.com/clinicdesk/clinicdesk/internal/domain/user"
	"github.com/clinicdesk/clinicdesk/internal/domain/ward"
	"github.com/clinicdesk/clinicdesk/internal/platform/apierr"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/middleware"
	"github.com/clinicdesk/clinicdesk/internal/platform/websocket"
)

type services struct {
	activity     *activity.Service
	patients     *patient.Service
	users        *user.Service
	appointments *appointment.Service
	labOrders    *laborder.Service
	invoices     *invoice.Service
	wards        *ward.Service
	admissions   *admission.Service
	settings     *settings.Service
	cascade      *cascade.Worker
	hub          *websocket.Hub
}

func newServices(in *infra) *services {
	s := &services{}
	s.activity = activity.NewService(activity.NewDocRepo(in.store), in.logger, in.metrics)
	s.patients = patient.NewService(patient.NewDocRepo(in.store), s.activity)
	s.users = user.NewService(user.NewDocRepo(in.store), in.locker, s.activity)
	s.appointments = appointment.NewService(appointment.NewDocRepo(in.store),
		s.patients, s.users, in.locker, s.activity, in.metrics)
	s.labOrders = laborder.NewService(laborder.NewDocRepo(in.store), s.patients, s.activity)
	s.invoices = invoice.NewService(invoice.NewDocRepo(in.store), s.patients,
		invoiceLinks{appointments: s.appointments, labOrders: s.labOrders}, s.activity)
	s.wards = ward.NewService(ward.NewDocRepo(in.store), in.locker, s.activity, in.metrics)
	s.admissions = admission.NewService(admission.NewDocRepo(in.store), s.patients, s.wards,
		in.locker, s.activity, in.metrics, in.logger)
	s.settings = settings.NewService(in.store, in.blobs, s.activity, in.logger, in.cfg.MaxLogoBytes)
	s.cascade = cascade.NewWorker(in.store, s.wards, in.logger, in.metrics)
	s.hub = websocket.NewHub(in.logger, in.metrics)
	return s
}

// invoiceLinks tells the invoice service who an appointment or lab order
// belongs to.
type invoiceLinks struct {
	appointments *appointment.Service
	labOrders    *laborder.Service
}

func (l invoiceLinks) AppointmentPatient(ctx context.Context, id string) (string, error) {
	a, err := l.appointments.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return a.PatientID, nil
}

func (l invoiceLinks) LabOrderPatient(ctx context.Context, id string) (string, error) {
	o, err := l.labOrders.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return o.PatientID, nil
}

// presenters renders store documents for websocket clients, one per topic.
// Settings are not relayed; clients reread /api/settings.
var presenters = map[string]websocket.Presenter{
	activity.Collection:    activity.Present,
	patient.Collection:     patient.Present,
	appointment.Collection: appointment.Present,
	laborder.Collection:    laborder.Present,
	invoice.Collection:     invoice.Present,
	ward.Collection:        ward.Present,
	admission.Collection:   admission.Present,
	user.Collection:        user.Present,
}

// topicReaders limits live topics to the roles that may read the matching
// REST routes. Topics missing here are open to every signed-in role.
var topicReaders = map[string][]string{
	invoice.Collection: {auth.RoleAccountant, auth.RoleReceptionist, auth.RoleDoctor, auth.RolePharmacist},
	user.Collection:    {},
}

func authorizeTopic(roles []string, topic string) bool {
	if _, known := presenters[topic]; !known {
		return false
	}
	if slices.Contains(roles, auth.RoleAdmin) {
		return true
	}
	allowed, restricted := topicReaders[topic]
	if !restricted {
		return len(roles) > 0
	}
	for _, r := range roles {
		if slices.Contains(allowed, r) {
			return true
		}
	}
	return false
}

func newServer(in *infra, s *services) *echo.Echo {
	cfg := in.cfg
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apierr.HTTPErrorHandler(in.logger)

	e.Use(middleware.Recovery(in.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(in.logger))
	e.Use(in.metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "If-None-Match"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.MaxLogoBytes+64<<10, settings.LogoPath))

	if cfg.ResolvedAuthMode() == "development" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
			Skipper:  auth.AuthSkipper,
		}))
	}

	h := newHealth(in)
	e.GET("/health", h.live)
	e.GET("/health/ready", h.ready)
	e.GET("/metrics", in.metrics.Handler())

	api := e.Group("/api")
	activity.NewHandler(s.activity).RegisterRoutes(api)
	patient.NewHandler(s.patients).RegisterRoutes(api)
	appointment.NewHandler(s.appointments).RegisterRoutes(api)
	laborder.NewHandler(s.labOrders).RegisterRoutes(api)
	invoice.NewHandler(s.invoices).RegisterRoutes(api)
	ward.NewHandler(s.wards).RegisterRoutes(api)
	admission.NewHandler(s.admissions).RegisterRoutes(api)
	user.NewHandler(s.users).RegisterRoutes(api)
	settings.NewHandler(s.settings).RegisterRoutes(api)

	websocket.NewHandler(s.hub,
		websocket.WithAllowedOrigins(cfg.CORSOrigins),
		websocket.WithTopicAuthorizer(auth.RolesFromContext, authorizeTopic),
	).RegisterRoutes(api)

	return e
}

// startWorkers runs the change feed consumers until ctx ends: the websocket
// relay, the denormalized-field cascade and the settings refresher.
func startWorkers(ctx context.Context, in *infra, s *services) {
	go s.hub.Relay(ctx, in.feed.Subscribe(0), presenters)
	go s.cascade.Run(ctx, in.feed.Subscribe(0))
	go s.settings.Watch(ctx, in.feed.Subscribe(16))
}
