// Package handlers manages the different versions of the API.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"go.uber.org/zap"

	v1 "github.com/adamwoolhether/virtualnode/app/services/node/handlers/v1"
	"github.com/adamwoolhether/virtualnode/business/sys/metrics"
	"github.com/adamwoolhether/virtualnode/business/web/v1/mid"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/state"
	"github.com/adamwoolhether/virtualnode/foundation/events"
	"github.com/adamwoolhether/virtualnode/foundation/web"
)

// MuxConfig contains all mandatory systems required by handlers.
type MuxConfig struct {
	Shutdown chan os.Signal
	Log      *zap.SugaredLogger
	State    *state.State
	Evts     *events.Events
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

// PublicMux constructs a http.Handler with all application routes defined.
func PublicMux(cfg MuxConfig) http.Handler {
	// Construct the web.App which holds all routes as well as common Middleware.
	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Metrics(cfg.Metrics),
		mid.Cors("*"),
		mid.Panics(),
	)

	// Accept CORS 'OPTIONS' preflight requests from browser wallets.
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return nil
	}
	app.Handle(http.MethodOptions, "", "/*", h, mid.Cors("*"))

	// Load the v1 routes.
	v1.PublicRoutes(app, v1.Config{
		Log:     cfg.Log,
		State:   cfg.State,
		Evts:    cfg.Evts,
		Metrics: cfg.Metrics,
		Now:     cfg.Now,
	})

	return app
}

// DebugMux registers the profiling, metrics and health endpoints.
func DebugMux(cfg MuxConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", cfg.Metrics.Handler())

	// Readiness tracks the published state, liveness only the process.
	mux.HandleFunc("/debug/readiness", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if _, err := cfg.State.Snapshot(); err != nil {
			status, code = cfg.State.Status().String(), http.StatusServiceUnavailable
		}
		writeHealth(w, cfg.Log, code, status)
	})
	mux.HandleFunc("/debug/liveness", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, cfg.Log, http.StatusOK, "up")
	})

	return mux
}

func writeHealth(w http.ResponseWriter, log *zap.SugaredLogger, code int, status string) {
	host, _ := os.Hostname()

	data := struct {
		Status string `json:"status"`
		Host   string `json:"host"`
	}{
		Status: status,
		Host:   host,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Errorw("health", "ERROR", err)
	}
}
