// Package app wires configuration, storage, domain services and the HTTP
// server of the café API.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cafe-ordering/internal/domain/auth"
	"github.com/xenking/cafe-ordering/internal/domain/coupon"
	"github.com/xenking/cafe-ordering/internal/domain/order"
	"github.com/xenking/cafe-ordering/internal/handler"
	"github.com/xenking/cafe-ordering/pkg/health"
	"github.com/xenking/cafe-ordering/pkg/httpmiddleware"
)

const serviceName = "cafe-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m httpmiddleware.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
	)

	store, err := OpenStorage(ctx, lg, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	menuRepo, rdb, err := cachedMenu(lg, cfg.Redis, store.Menu)
	if err != nil {
		return errors.Wrap(err, "menu cache")
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck(cfg.Storage.Driver, 5*time.Second, store.Ping, health.StartUnhealthy())
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Domain services.
	validator := coupon.NewValidator(store.Coupons)
	orderService, err := order.NewService(menuRepo, validator, store.Orders, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	tokens := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TTL)

	h := handler.NewHandler(menuRepo, coupon.NewService(store.Coupons), validator, orderService, tokens)

	// Router: health endpoints and API routes on one mux.
	router := chi.NewRouter()
	router.NotFound(handler.NotFound)
	router.MethodNotAllowed(handler.MethodNotAllowed)
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	h.Routes(router)

	routeFinder := httpmiddleware.MakeRouteFinder(router)
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Policies: []httpmiddleware.RateLimitPolicy{{
					Name:   "coupons",
					Max:    cfg.RateLimit.CouponMax,
					Window: cfg.RateLimit.Window,
					Match:  isCouponCheck,
				}},
				Skip: isProbe,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.Instrument(serviceName, routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// isProbe exempts health probes from rate limiting.
func isProbe(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz"
}

func isCouponCheck(r *http.Request) bool {
	return r.Method == http.MethodPost &&
		(r.URL.Path == "/api/coupons/validate" || r.URL.Path == "/api/coupons/apply")
}
