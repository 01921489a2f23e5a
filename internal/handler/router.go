package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	relayhandler "github.com/mbaig/relay/internal/handler/relay"
	middlewarePkg "github.com/mbaig/relay/internal/middleware"
	"github.com/mbaig/relay/pkg/utils"
)

// Pinger reports broker connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter wires HTTP routes to the gateway and the health probe.
func NewRouter(gateway *relayhandler.Handler, health Pinger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	gateway.RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]string{"status": "ok", "broker": "up"}
		if health == nil {
			status["broker"] = "disabled"
		} else {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := health.Ping(ctx); err != nil {
				status["broker"] = "down"
			}
		}
		utils.RespondJSON(w, http.StatusOK, status)
	})

	return r
}
