package launcher

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// MuxOptions configures the launcher's HTTP surface.
type MuxOptions struct {
	Log zerolog.Logger
	// Ready reports whether the embedded UI server is accepting requests.
	Ready func() bool
	// UIURL is reported on /status so the desktop shell knows where to point
	// its webview.
	UIURL   string
	Version string
	// AllowedOrigins defaults to localhost-only when empty.
	AllowedOrigins []string
}

// NewMux builds the launcher's API router: health and readiness gates for
// the container HEALTHCHECK and the desktop shell, a status document, and
// Prometheus metrics.
func NewMux(opts MuxOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
		MaxAge:         300,
	}))

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	// Healthz godoc
	// @Summary  Liveness probe
	// @Produce  plain
	// @Success  200 {string} string "ok"
	// @Router   /healthz [get]
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Readyz godoc
	// @Summary  Readiness of the embedded UI server
	// @Produce  plain
	// @Success  200 {string} string "ready"
	// @Failure  503 {string} string "starting"
	// @Router   /readyz [get]
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if opts.Ready != nil && opts.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("starting"))
	})

	// Status godoc
	// @Summary  Launcher status document
	// @Produce  json
	// @Success  200 {object} map[string]any
	// @Router   /status [get]
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ready := opts.Ready != nil && opts.Ready()
		if err := json.NewEncoder(w).Encode(map[string]any{
			"version": opts.Version,
			"ui_url":  opts.UIURL,
			"ready":   ready,
		}); err != nil {
			opts.Log.Error().Err(err).Msg("encode status response")
		}
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}
