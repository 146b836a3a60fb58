// Command jobsculpt runs the job board API server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	jobsculpt "github.com/goliatone/go-jobsculpt"
	"github.com/goliatone/go-jobsculpt/activitymap"
	"github.com/goliatone/go-jobsculpt/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := jobsculpt.NewZapLogger(jobsculpt.LoggerConfig{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *jobsculpt.ZapLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := jobsculpt.OpenDB(jobsculpt.DBConfig{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := jobsculpt.CreateSchema(ctx, db); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	logger.Info("database ready", "driver", cfg.Database.Driver)

	repo := jobsculpt.NewRepositoryManager(db)

	var revocations jobsculpt.RevocationStore = jobsculpt.NewMemoryRevocationStore()
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		revocations = jobsculpt.NewRedisRevocationStore(rdb)
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	notifier := jobsculpt.NewAsyncNotifier(
		jobsculpt.NewEmailNotifier(newMailer(cfg.Mail, logger.Named("mail"))),
		logger.Named("notifier"),
	)
	defer notifier.Close()

	httpClient := &http.Client{Timeout: 10 * time.Second}

	devices := jobsculpt.NewDeviceResolver(
		jobsculpt.NewHTTPGeoLocator(cfg.Geo.BaseURL, httpClient),
		jobsculpt.WithGeoTimeout(cfg.Geo.Timeout),
		jobsculpt.WithDeviceLogger(logger.Named("device")),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := jobsculpt.NewMetrics(registry, "jobsculpt")

	activity := jobsculpt.MultiActivitySink{
		activitymap.NewLogSink(logger.Named("activity")),
		metrics,
	}

	auther := jobsculpt.NewAuthenticator(repo, cfg).
		WithLogger(logger.Named("auth")).
		WithActivitySink(activity).
		WithPasswordHasher(jobsculpt.BcryptHasher{Cost: cfg.Auth.BcryptCost}).
		WithRevocationStore(revocations).
		WithDeviceResolver(devices).
		WithNotifier(notifier).
		WithTokenVerifier(jobsculpt.NewGoogleTokenVerifier(cfg.Google.TokenInfoURL, cfg.Google.ClientID, httpClient))

	if cfg.Google.Enabled() {
		auther = auther.WithCodeExchanger(jobsculpt.NewGoogleCodeExchanger(jobsculpt.GoogleOAuthConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.CallbackURL,
		}))
	} else {
		logger.Warn("google redirect flow disabled, client id or secret missing")
	}

	jobs := jobsculpt.NewJobBoard(repo).
		WithLogger(logger.Named("jobs")).
		WithActivitySink(activity)

	app := jobsculpt.NewApp(jobsculpt.ServerConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ProxyHeader:    cfg.Server.ProxyHeader,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
	}, logger.Named("http"),
		jobsculpt.WithAppMetrics(metrics, registry),
		jobsculpt.WithHealthCheck(func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
			if rdb != nil {
				return rdb.Ping(ctx).Err()
			}
			return nil
		}),
	)

	limiter := jobsculpt.NewIPRateLimiter(jobsculpt.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		IdleTTL:           10 * time.Minute,
	})

	jobsculpt.RegisterRoutes(app, auther,
		jobsculpt.WithControllerLogger(logger.Named("controller")),
		jobsculpt.WithJobBoard(jobs),
		jobsculpt.WithStateSigner(jobsculpt.NewStateSigner([]byte(cfg.Auth.SigningKey), cfg.Auth.OAuthStateTimeout)),
		jobsculpt.WithRateLimiter(limiter),
		jobsculpt.WithSecureCookies(cfg.Server.SecureCookies),
	)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		errCh <- app.Listen(cfg.Server.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func newMailer(cfg config.MailConfig, logger jobsculpt.Logger) jobsculpt.Mailer {
	switch cfg.Driver {
	case jobsculpt.MailDriverSendGrid:
		return jobsculpt.NewSendGridMailer(cfg.SendGridKey, cfg.FromName, cfg.From, cfg.SendGridHost)
	case jobsculpt.MailDriverSMTP:
		return jobsculpt.NewSMTPMailer(jobsculpt.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.From,
		})
	default:
		return jobsculpt.NewLogMailer(logger)
	}
}
