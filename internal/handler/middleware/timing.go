package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/email-gateway-api/internal/metrics"
)

// timingWriter injects the X-Process-Time header just before the status
// line is written. Setting it after c.Next() would be too late: gin has
// already flushed the headers by then.
type timingWriter struct {
	gin.ResponseWriter
	start time.Time
}

func (w *timingWriter) WriteHeader(code int) {
	elapsed := time.Since(w.start).Seconds()
	w.Header().Set("X-Process-Time", strconv.FormatFloat(elapsed, 'f', 6, 64))
	w.ResponseWriter.WriteHeader(code)
}

// TimingMiddleware measures wall time per request, exposes it in the
// X-Process-Time response header and feeds the request counter.
func TimingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer = &timingWriter{ResponseWriter: c.Writer, start: time.Now()}
		c.Next()
		metrics.RequestsTotal.WithLabelValues(
			c.Request.Method,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
	}
}
