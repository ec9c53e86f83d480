package handlers

import (
	"github.com/fasthttp/router"
	xhttp "github.com/ikimina/tontine-gateway/pkg/http"
)

type HealthHandler struct {
	appName string
}

func NewHealthHandler(appName string) *HealthHandler {
	return &HealthHandler{appName: appName}
}

func RegisterHealthRoutes(r *router.Router, h *HealthHandler) {
	r.GET("/health", h.Health)
}

func (h *HealthHandler) Health(ctx *xhttp.RequestCtx) {
	writeJSON(ctx, xhttp.StatusOK, map[string]string{
		"status": "healthy",
		"app":    h.appName,
	})
}
