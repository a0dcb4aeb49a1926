package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"go.uber.org/zap"

	"github.com/adamwoolhether/virtualnode/app/services/node/handlers"
	"github.com/adamwoolhether/virtualnode/business/sys/metrics"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/genesis"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/state"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/worker"
	"github.com/adamwoolhether/virtualnode/foundation/events"
	"github.com/adamwoolhether/virtualnode/foundation/logger"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {
	level := os.Getenv("NODE_LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	// Construct app logger.
	log, err := logger.New("NODE", level)
	if err != nil {
		fmt.Fprint(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	// /////////////////////////////////////////////////////////////////////////////////////////////////////////////////
	// Configuration
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			PublicHost      string        `conf:"default:0.0.0.0:8090"`
			DebugHost       string        `conf:"default:0.0.0.0:4090"`
		}
		Chain struct {
			DataDir          string        `conf:"default:zblock/witness_node_data_dir"`
			GenesisPath      string        `conf:"help:genesis yaml file, the compiled in genesis is used when empty"`
			CacheSize        int           `conf:"default:1024"`
			PrefetchDepth    int           `conf:"default:64"`
			ProgressInterval uint64        `conf:"default:100000"`
			PollInterval     time.Duration `conf:"default:30s"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "virtual witness node for legacy wallets",
		},
	}

	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}

		return fmt.Errorf("parsing config: %w", err)
	}

	// /////////////////////////////////////////////////////////////////////////////////////////////////////////////////
	// App Starting
	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// /////////////////////////////////////////////////////////////////////////////////////////////////////////////////
	// Blockchain Support
	gen, err := genesis.Load(cfg.Chain.GenesisPath)
	if err != nil {
		return fmt.Errorf("unable to load genesis: %w", err)
	}

	log.Infow("startup", "status", "genesis", "chain_id", gen.ChainID, "accounts", len(gen.Accounts), "assets", len(gen.Assets))

	// Every state event is logged and fanned out to the event websockets.
	evts := events.New()
	ev := logger.NewEvent(log, evts.Send)

	st, err := state.New(state.Config{
		DataDir:          cfg.Chain.DataDir,
		Genesis:          gen,
		CacheSize:        cfg.Chain.CacheSize,
		PrefetchDepth:    cfg.Chain.PrefetchDepth,
		ProgressInterval: cfg.Chain.ProgressInterval,
		EvHandler:        ev,
	})
	if err != nil {
		return err
	}

	m := metrics.New()
	m.RegisterReplay(st)

	// The replay runs in the background, calls are answered with a not
	// loaded error until the first snapshot is published.
	loadCtx, cancelLoad := context.WithCancel(context.Background())
	var loadWG sync.WaitGroup
	replayErrors := startReplay(loadCtx, &loadWG, st, cfg.Chain.PollInterval, ev)

	defer func() {
		cancelLoad()
		loadWG.Wait()
		evts.Shutdown()
		if err := st.Shutdown(); err != nil {
			log.Errorw("shutdown", "status", "closing state", "ERROR", err)
		}
	}()

	// /////////////////////////////////////////////////////////////////////////////////////////////////////////////////
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminal signal
	// from the OS. Signal package requires a buffered channel.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// User a buffered channel to listen for errors from listener. A buffered
	// channel is used so goroutine can exit if the error isn't collected.
	serverErrors := make(chan error, 1)

	muxCfg := handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Evts:     evts,
		Metrics:  m,
	}

	// /////////////////////////////////////////////////////////////////////////////////////////////////////////////////
	// Start Debug Service
	log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)

	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, handlers.DebugMux(muxCfg)); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// /////////////////////////////////////////////////////////////////////////////////////////////////////////////////
	// Start Public Service
	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct a server to service the requests against the Mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      handlers.PublicMux(muxCfg),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// /////////////////////////////////////////////////////////////////////////////////////////////////////////////////
	// Shutdown

	// Block main waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server errors: %w", err)
	case err := <-replayErrors:
		return err
	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Give a requests deadline for completion
		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		// Ask listener to shutdown and shed load
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("couldn't stop public service gracefully: %w", err)
		}
	}

	return nil
}

// startReplay performs the first replay in the background and then starts
// the worker. A failed replay is sent on the returned channel, a cancelled
// one is not.
func startReplay(ctx context.Context, wg *sync.WaitGroup, st *state.State, pollInterval time.Duration, ev state.EventHandler) <-chan error {
	replayErrors := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		if err := st.Load(ctx); err != nil {
			if ctx.Err() == nil {
				replayErrors <- fmt.Errorf("replay: %w", err)
			}
			return
		}

		worker.Run(st, pollInterval, ev)
	}()

	return replayErrors
}
