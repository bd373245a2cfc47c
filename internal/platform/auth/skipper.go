package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication: probes and the metrics scrape.
var publicPaths = map[string]bool{
	"/health":       true,
	"/health/ready": true,
	"/metrics":      true,
}

// AuthSkipper matches on the route template.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}
