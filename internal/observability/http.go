package observability

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes the Prometheus scrape endpoint on the inspector app.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}

// ObserveRESTCall records the outcome of one REST collaborator call. A zero status means the
// request never produced a response.
func ObserveRESTCall(operation string, status int, started time.Time) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	RESTRequests().WithLabelValues(operation, label).Inc()
	RESTLatency().WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
