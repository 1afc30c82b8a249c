package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the booking API routes onto a chi mux. requestTimeout
// bounds every handler, including the external calendar call inside
// booking creation.
func NewRouter(svc bookingsService, requestTimeout time.Duration, log *slog.Logger) *chi.Mux {
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	NewBookingsHandler(svc, log).Register(r)
	return r
}
