package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cartsync"
	"github.com/angelmondragon/storefront-backend/internal/comments"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/session"
	"github.com/angelmondragon/storefront-backend/pkg/airtable"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/emailjs"
	"github.com/angelmondragon/storefront-backend/pkg/gotrue"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var (
		redisClient *redis.Client
		redisPinger controllers.Pinger
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		redisPinger = redisClient
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	strategy, err := cartsync.ParseStrategy(cfg.Cart.SyncStrategy)
	if err != nil {
		return err
	}
	syncer, err := cartsync.NewService(
		cartsync.NewGormTable(dbClient.DB()),
		strategy,
		logg,
		cartsync.WithMetrics(metrics.NewCartSyncMetrics(reg)),
	)
	if err != nil {
		return err
	}
	sessions := session.NewRegistry(syncer, logg, session.Options{
		IdleTTL:  cfg.Cart.SessionIdleTTL,
		LoadWait: cfg.Cart.LoadWaitTimeout,
	})

	airtableClient, err := airtable.NewClient(cfg.Airtable.APIKey, cfg.Airtable.BaseID,
		airtable.WithBaseURL(cfg.Airtable.APIURL),
		airtable.WithHTTPClient(&http.Client{Timeout: cfg.Airtable.Timeout}),
	)
	if err != nil {
		return err
	}
	catalog, err := products.NewCatalog(airtableClient, cfg.Airtable.ProductsTable, logg)
	if err != nil {
		return err
	}
	commentStore, err := comments.NewStore(airtableClient, cfg.Airtable.CommentsTable, logg)
	if err != nil {
		return err
	}

	authProvider, err := gotrue.NewClient(cfg.Auth.URL, cfg.Auth.AnonKey)
	if err != nil {
		return err
	}
	authService, err := auth.NewService(authProvider, logg)
	if err != nil {
		return err
	}

	mailer, err := emailjs.NewClient(cfg.EmailJS.ServiceID, cfg.EmailJS.PublicKey,
		emailjs.WithBaseURL(cfg.EmailJS.APIURL),
		emailjs.WithPrivateKey(cfg.EmailJS.PrivateKey),
		emailjs.WithHTTPClient(&http.Client{Timeout: cfg.EmailJS.Timeout}),
	)
	if err != nil {
		return err
	}
	notifier, err := notifications.NewOrderNotifier(notifications.NotifierParams{
		Sender:             mailer,
		CustomerTemplateID: cfg.EmailJS.CustomerTemplateID,
		OperatorTemplateID: cfg.EmailJS.OperatorTemplateID,
		Logger:             logg,
	})
	if err != nil {
		return err
	}

	var guard orders.InFlightGuard = orders.NewLocalGuard()
	if cfg.Orders.UsesRedis() {
		guard = orders.NewRedisGuard(redisClient, cfg.Orders.GuardTTL)
	}
	coordinator := orders.NewCoordinator(
		orders.NewGormLedger(dbClient.DB()),
		notifier,
		guard,
		logg,
		orders.WithMetrics(metrics.NewOrderMetrics(reg)),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":            cfg.App.Env,
		"addr":           addr,
		"sync_strategy":  string(strategy),
		"guard_backend":  cfg.Orders.GuardBackend,
		"redis_enabled":  cfg.Redis.Enabled(),
		"products_table": cfg.Airtable.ProductsTable,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:      cfg,
			Logger:      logg,
			DBPinger:    dbClient,
			RedisPinger: redisPinger,
			Gatherer:    reg,
			HTTPMetrics: metrics.NewHTTPMetrics(reg),
			Sessions:    sessions,
			Auth:        authService,
			Catalog:     catalog,
			Comments:    commentStore,
			Orders:      coordinator,
		}),
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.App.ShutdownTimeout)
	defer cancel()
	return multierr.Append(server.Shutdown(shutdownCtx), <-serveErr)
}
