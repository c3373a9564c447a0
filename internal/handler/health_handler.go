package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kevinjam/farmkeeper-sub001/prometheus"
)

// HealthCheck returns the service health status
func HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "ok",
		"service": "farmkeeper",
	})
}

// MetricsHandler exposes the Prometheus metrics endpoint
func MetricsHandler(c echo.Context) error {
	h := prometheus.GetPrometheusHandler()
	h.ServeHTTP(c.Response(), c.Request())
	return nil
}
