// Package handler provides HTTP handlers for platform-level endpoints.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Check probes one dependency, such as the ledger database.
type Check func(ctx context.Context) error

// Health returns the /healthz handler. Every check must pass within two
// seconds for a 200; otherwise the failing names are reported with a 503.
func Health(checks map[string]Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		// never cache
		c.Header("Cache-Control", "no-store")

		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		failed := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}

		status := http.StatusOK
		if len(failed) > 0 {
			status = http.StatusServiceUnavailable
		}
		if c.Request.Method == http.MethodHead {
			c.Status(status)
			return
		}
		if len(failed) > 0 {
			c.JSON(status, gin.H{"status": "degraded", "failed": failed})
			return
		}
		c.JSON(status, gin.H{"status": "ok"})
	}
}
