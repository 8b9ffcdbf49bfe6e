package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Register mounts the Prometheus exposition endpoint at path. Callers
// gate this behind metrics.enabled in config; Register itself performs
// no gating so it stays trivial to test.
func Register(e *echo.Echo, path string) {
	e.GET(path, echo.WrapHandler(promhttp.Handler()))
}
