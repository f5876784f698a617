package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Pinger func() error

type HealthHandler struct {
	pings map[string]Pinger
}

// NewHealthHandler takes named dependency pings (db, redis). nil pings are
// skipped so the worker-less dev setup still reports ready.
func NewHealthHandler(pings map[string]Pinger) *HealthHandler {
	return &HealthHandler{pings: pings}
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(ctx *gin.Context) {
	failed := map[string]string{}

	for name, ping := range h.pings {
		if ping == nil {
			continue
		}

		if err := ping(); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"failed": failed,
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}
