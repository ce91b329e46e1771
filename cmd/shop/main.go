package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/audit"
	"github.com/Skotchmaster/marketplace/internal/events"
	"github.com/Skotchmaster/marketplace/internal/gateway"
	"github.com/Skotchmaster/marketplace/internal/httpserver"
	"github.com/Skotchmaster/marketplace/internal/idempotency"
	"github.com/Skotchmaster/marketplace/internal/invoice"
	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/service"
	"github.com/Skotchmaster/marketplace/pkg/authclient"
	"github.com/Skotchmaster/marketplace/pkg/config"
	"github.com/Skotchmaster/marketplace/pkg/db"
	"github.com/Skotchmaster/marketplace/pkg/logging"
	"github.com/Skotchmaster/marketplace/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/marketplace/pkg/middleware/logging"
)

func main() {
	cfg := config.MustLoad()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("shop_exit", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			logger.Error("db_close_failed", "error", err)
		}
	}()
	if err := db.Migrate(initCtx, gdb, models.All()...); err != nil {
		return err
	}
	r := &repo.GormRepo{DB: gdb}

	var publishers events.Fanout

	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers)
		if err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Error("kafka_close_failed", "error", err)
			}
		}()
		publishers = append(publishers, kp)
	} else {
		logger.Warn("kafka_disabled", "reason", "KAFKA_BROKERS not set")
	}

	var history service.HistoryReader
	if cfg.ESURL != "" {
		es, err := audit.NewClient(initCtx, audit.Options{
			Addresses: []string{cfg.ESURL},
			Username:  cfg.ESUser,
			Password:  cfg.ESPassword,
		})
		if err != nil {
			logger.Warn("audit_disabled", "reason", "elasticsearch unreachable", "error", err)
		} else {
			idx := audit.NewIndex(es, cfg.AuditIndex)
			if err := idx.EnsureIndex(initCtx); err != nil {
				return err
			}
			publishers = append(publishers, idx)
			history = idx
		}
	}

	var dedup idempotency.Store
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = idempotency.Connect(initCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		dedup = idempotency.NewRedisStore(rdb, cfg.WebhookDedupTTL)
	} else {
		logger.Warn("redis_disabled", "reason", "REDIS_ADDR not set, webhook dedup kept in memory")
		dedup = idempotency.NewMemoryStore(cfg.WebhookDedupTTL)
	}

	var renderer invoice.Renderer = invoice.TextRenderer{StoreName: cfg.StoreName}
	if cfg.InvoiceRendererURL != "" {
		renderer = invoice.NewHTTPRenderer(cfg.InvoiceRendererURL, cfg.StoreName)
	}

	gw := gateway.NewClient(gateway.Config{
		BaseURL:       cfg.Gateway.BaseURL,
		KeyID:         cfg.Gateway.KeyID,
		KeySecret:     cfg.Gateway.KeySecret,
		WebhookSecret: cfg.Gateway.WebhookSecret,
		Timeout:       cfg.Gateway.Timeout,
	})

	var authClient *authclient.Client
	if cfg.AuthHTTPURL != "" {
		authClient = authclient.NewClient(cfg.AuthHTTPURL)
	}

	orders := &service.OrderService{Repo: r, Events: publishers, Invoices: renderer, History: history}
	payments := &service.PaymentService{
		Repo:           r,
		Gateway:        gw,
		Dedup:          dedup,
		Events:         publishers,
		Currency:       cfg.Gateway.Currency,
		StoreName:      cfg.StoreName,
		GatewayTimeout: cfg.Gateway.Timeout,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover(), echomw.RequestID(), loggingmw.RequestLogger(logger), echomw.Secure(), echomw.BodyLimit("2M"), echomw.CORS())
	e.Use(csrf.Middleware(csrf.Config{
		Secure:       cfg.CookieSecure,
		SkipPrefixes: []string{"/api/v1/payments/webhook", "/health/"},
	}))

	httpserver.Register(e, &httpserver.Deps{
		OrderHandler:   &httpserver.OrderHTTP{Svc: orders},
		PaymentHandler: &httpserver.PaymentHTTP{Svc: payments},
		CartHandler:    &httpserver.CartHTTP{Svc: &service.CartService{Repo: r}},
		CatalogHandler: &httpserver.CatalogHTTP{Svc: &service.CatalogService{Repo: r}},
		JWTSecret:      cfg.JWTAccessSecret,
		AuthClient:     authClient,
		Ready:          readiness(gdb, rdb),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http_listen", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown_complete")
	return nil
}

func readiness(gdb *gorm.DB, rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("db: %w", err)
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
}
