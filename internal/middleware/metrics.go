package middleware

import (
	"net/http"

	"github.com/shopstack/storefront/internal/app/metrics"
)

// Metrics wraps the handler chain with Prometheus HTTP instrumentation.
func Metrics(next http.Handler) http.Handler {
	return metrics.InstrumentHandler(next)
}
