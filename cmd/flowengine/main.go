// Command flowengine wires the execution core's collaborators together
// behind a minimal HTTP trigger endpoint, grounded on mbflow's own
// cmd/server/main.go (flag-overridable config, BunStore wiring, graceful
// shutdown over SIGINT/SIGTERM).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flowcore/engine/internal/catalog"
	"github.com/flowcore/engine/internal/catalog/builtin"
	"github.com/flowcore/engine/internal/config"
	"github.com/flowcore/engine/internal/credit"
	"github.com/flowcore/engine/internal/durablestep"
	"github.com/flowcore/engine/internal/executor"
	"github.com/flowcore/engine/internal/monitor"
	"github.com/flowcore/engine/internal/objectstore"
	"github.com/flowcore/engine/internal/store"
	"github.com/flowcore/engine/internal/store/bunstore"
	"github.com/flowcore/engine/internal/store/memstore"
	"github.com/flowcore/engine/pkg/workflow"
)

func main() {
	var (
		port        = flag.String("port", "", "HTTP port (overrides config)")
		useBunStore = flag.Bool("postgres", false, "persist execution records to Postgres instead of memory")
	)
	flag.Parse()

	cfg := config.Load()
	if *port != "" {
		cfg.Port = *port
	}

	setupLogger(cfg.LogLevel)
	log.Info().Str("port", cfg.Port).Int("max_parallel_nodes", cfg.MaxParallelNodes).Msg("starting flowengine")

	reg := newCatalog(cfg)

	var execStore store.ExecutionStore
	if *useBunStore {
		bs := bunstore.NewBunStore(bunstore.DefaultConfig(cfg.DatabaseDSN))
		if err := bs.InitSchema(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to initialize execution_records schema")
			os.Exit(1)
		}
		defer bs.Close()
		execStore = bs
		log.Info().Msg("using bunstore (Postgres) for execution records")
	} else {
		execStore = memstore.NewMemoryStore()
		log.Info().Msg("using in-memory execution store")
	}

	hub := monitor.NewHub()
	eventSink := monitor.NewBatchedMemorySink(20, func(batch []*executor.Record) {
		log.Debug().Int("batch_size", len(batch)).Msg("flushing execution event batch")
	})
	monitorSvc := &monitor.Multi{Services: []monitor.Service{monitor.NewConsoleService(), hub, monitor.NewSinkService(eventSink)}}
	creditSvc := credit.NewInMemoryService(credit.Account{OrganizationID: "default", Balance: 1000, OverageLimit: cfg.CreditOverage})

	invoker := executor.NewInvoker(reg, objectstore.NewMemoryStore(), catalog.Capabilities{}, nil)
	invoker.Breaker = executor.NewBreaker(5, time.Minute, 30*time.Second)
	scheduler := executor.NewScheduler(invoker, durablestep.NewStore(), monitorSvc, cfg.MaxParallelNodes)
	driver := executor.NewDriver(scheduler, durablestep.NewStore(), creditSvc, execStore, monitorSvc)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/executions", executeHandler(driver))
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session")
		if _, err := hub.Upgrade(w, r, sessionID); err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
		}
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", httpServer.Addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}
	log.Info().Msg("exited gracefully")
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func newCatalog(cfg *config.Config) *catalog.Registry {
	reg := catalog.NewRegistry()
	register := func(d *catalog.TypeDescriptor, f catalog.Factory) {
		if err := reg.Register(d, f); err != nil {
			log.Fatal().Err(err).Str("type", d.TypeID).Msg("failed to register node type")
		}
	}
	register(builtin.NumDescriptor(), builtin.NewNumFactory())
	register(builtin.AddDescriptor(), builtin.NewAddFactory())
	register(builtin.SubDescriptor(), builtin.NewSubFactory())
	register(builtin.MulDescriptor(), builtin.NewMulFactory())
	register(builtin.DivDescriptor(), builtin.NewDivFactory())
	register(builtin.ForkDescriptor(), builtin.NewForkFactory())
	register(builtin.JoinDescriptor(), builtin.NewJoinFactory())
	register(builtin.ConditionalRouterDescriptor(), builtin.NewConditionalRouterFactory())
	register(builtin.OpenAICompletionDescriptor(), builtin.NewOpenAICompletionFactory(cfg.OpenAIAPIKey))
	return reg
}

type executionRequest struct {
	Workflow       *workflow.Workflow `json:"workflow"`
	OrganizationID string             `json:"organizationId"`
	DeploymentID   string             `json:"deploymentId"`
	Trigger        any                `json:"trigger"`
	CostEstimate   float64            `json:"costEstimate"`
}

func executeHandler(driver *executor.Driver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req executionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.Workflow == nil {
			http.Error(w, "workflow is required", http.StatusBadRequest)
			return
		}

		record, err := driver.Run(r.Context(), req.Workflow, req.OrganizationID, req.DeploymentID, req.Trigger, req.CostEstimate)
		if err != nil {
			log.Error().Err(err).Str("workflow_id", req.Workflow.ID).Msg("execution failed")
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(record); err != nil {
			log.Error().Err(err).Msg("failed to encode execution record")
		}
	}
}
