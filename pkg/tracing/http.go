package tracing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

var untracedPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// traceRequest keeps probes and scrapes out of the trace stream.
func traceRequest(r *http.Request) bool {
	return !untracedPaths[r.URL.Path]
}

// GinMiddleware traces every request except health checks and metric
// scrapes.
func GinMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName, otelgin.WithFilter(traceRequest))
}
