// Package v1 contains the full set of handler functions and
// routes supported by the v1 web api.
package v1

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/adamwoolhether/virtualnode/app/services/node/handlers/v1/public"
	"github.com/adamwoolhether/virtualnode/business/sys/metrics"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/state"
	"github.com/adamwoolhether/virtualnode/foundation/events"
	"github.com/adamwoolhether/virtualnode/foundation/rpc"
	"github.com/adamwoolhether/virtualnode/foundation/web"
)

const version = "v1"

// Config contains all mandatory systems required by handlers
type Config struct {
	Log     *zap.SugaredLogger
	State   *state.State
	Evts    *events.Events
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// PublicRoutes binds all version 1 public routes. Legacy wallets dial the
// node root, so the JSON-RPC endpoints live outside the version group.
func PublicRoutes(app *web.App, cfg Config) *rpc.Server {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		Evts:  cfg.Evts,
		Now:   cfg.Now,
	}

	rpcCfg := rpc.Config{
		Log:   cfg.Log,
		Ready: pbl.Ready,
	}
	if cfg.Metrics != nil {
		rpcCfg.Observe = cfg.Metrics.ObserveCall
	}

	pbl.RPC = rpc.NewServer(rpcCfg)
	pbl.RegisterMethods(pbl.RPC)

	app.Handle(http.MethodGet, "", "/", pbl.Serve)
	app.Handle(http.MethodGet, "", "/ws", pbl.Serve)
	app.Handle(http.MethodPost, "", "/", pbl.Call)
	app.Handle(http.MethodPost, "", "/rpc", pbl.Call)

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/status", pbl.Status)
	app.Handle(http.MethodGet, version, "/genesis", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/block/:num", pbl.Block)

	return pbl.RPC
}
