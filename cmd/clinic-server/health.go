package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/platform/db"
)

type health struct {
	in      *infra
	started time.Time
}

func newHealth(in *infra) *health {
	return &health{in: in, started: time.Now()}
}

func (h *health) live(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// ready checks every dependency a request may touch. Pool statistics are
// included for the postgres driver.
func (h *health) ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true
	record := func(name string, err error) {
		if err != nil {
			checks[name] = err.Error()
			healthy = false
			return
		}
		checks[name] = "ok"
	}

	record("docstore", h.in.raw.Ping(ctx))
	if h.in.redis != nil {
		record("redis", h.in.redis.Ping(ctx).Err())
	}

	body := map[string]any{"checks": checks, "driver": h.in.cfg.DocstoreDriver}
	if s, ok := h.in.raw.(interface{ Stats() *db.PoolStats }); ok {
		body["pool"] = s.Stats()
	}
	status := http.StatusOK
	body["status"] = "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
	}
	return c.JSON(status, body)
}
