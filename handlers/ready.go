package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Readiness records which optional backends came up at startup.
type Readiness struct {
	Records bool
	Objects bool
	Model   bool
	Events  bool
	Started time.Time
}

// RegisterReadiness mounts GET /ready. Only the record store gates readiness;
// the other backends are reported but their absence is served around.
func RegisterReadiness(r gin.IRouter, rd Readiness) {
	r.GET("/ready", func(c *gin.Context) {
		deps := gin.H{
			"records": rd.Records,
			"objects": rd.Objects,
			"model":   rd.Model,
			"events":  rd.Events,
		}
		uptime := time.Since(rd.Started).Round(time.Second).String()
		if !rd.Records {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": uptime})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": uptime})
	})
}
