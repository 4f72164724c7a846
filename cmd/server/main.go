package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	accesshandler "custody/internal/access/handler"
	accessservice "custody/internal/access/service"
	jwttoken "custody/internal/jwt_token"
	ledgerhandler "custody/internal/ledger/handler"
	"custody/internal/platform/config"
	"custody/internal/platform/httpserver"
	"custody/internal/platform/logger"
	"custody/internal/platform/metrics"
	"custody/internal/platform/telemetry"
	vestinghandler "custody/internal/vesting/handler"
	vestingmetrics "custody/internal/vesting/metrics"
	vestingservice "custody/internal/vesting/service"
	id "custody/pkg/domain"
	"custody/pkg/platform/audit/publishers/compliance"
	"custody/pkg/platform/audit/publishers/ops"
	"custody/pkg/platform/middleware/metadata"
	"custody/pkg/platform/middleware/request"
)

var version = "dev"

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	configPath := flag.String("config", "", "optional config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing.Enabled, "custody", version, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		_ = shutdownTracing(context.Background())
	}()

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	auditPublisher := compliance.New(b.auditStore,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics()),
	)
	defer auditPublisher.Close()

	// Role administration must not stall on audit outages, so it publishes
	// best-effort. Movements of funds stay fail-closed.
	roleEvents := ops.New(b.auditStore,
		ops.WithLogger(log),
		ops.WithMetrics(ops.NewMetrics()),
	)
	roles := accessservice.New(b.roleStore,
		accessservice.WithLogger(log),
		accessservice.WithAuditPublisher(roleEvents),
	)
	vestingOpts := []vestingservice.Option{
		vestingservice.WithLogger(log),
		vestingservice.WithAuditPublisher(auditPublisher),
		vestingservice.WithMetrics(vestingmetrics.New()),
	}
	if b.tx != nil {
		vestingOpts = append(vestingOpts, vestingservice.WithTx(b.tx))
	}
	vesting := vestingservice.New(b.custodians, b.ledger, roles, vestingOpts...)

	tokens := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	validator := jwttoken.NewJWTServiceAdapter(tokens)

	var issuer id.AccountID
	if cfg.Server.IssuerAccount != "" {
		if issuer, err = id.ParseAccountID(cfg.Server.IssuerAccount); err != nil {
			return fmt.Errorf("server.issuer_account: %w", err)
		}
	}

	router := chi.NewRouter()
	router.Use(request.RequestID)
	router.Use(request.Recovery(log))
	router.Use(request.RequestTime)
	router.Use(metadata.ClientMetadata)
	router.Use(request.Logger(log))
	router.Use(metrics.New().Middleware)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := b.Health(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	vestinghandler.New(vesting, log, validator).Register(router)
	accesshandler.New(roles, log, validator).Register(router)
	ledgerhandler.New(b.ledger, issuer, log, validator).Register(router)

	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting custody", "addr", cfg.Server.Addr, "storage", cfg.Storage.Backend, "version", version)
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout)
	})
	if b.relay != nil {
		g.Go(func() error {
			log.Info("starting audit outbox relay", "topic", cfg.Kafka.Topic)
			return b.relay.Run(gctx)
		})
	}
	return g.Wait()
}
