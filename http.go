package jobsculpt

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	goerrors "github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerConfig configures the fiber application
type ServerConfig struct {
	AllowedOrigins []string
	// ProxyHeader is trusted for the client IP, e.g. X-Forwarded-For
	ProxyHeader  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// AppOption customizes NewApp
type AppOption func(*appOptions)

type appOptions struct {
	metrics  *Metrics
	gatherer prometheus.Gatherer
	health   HealthCheck
}

// WithAppMetrics records request metrics and exposes /metrics from gatherer
func WithAppMetrics(m *Metrics, gatherer prometheus.Gatherer) AppOption {
	return func(o *appOptions) {
		o.metrics = m
		o.gatherer = gatherer
	}
}

// WithHealthCheck makes /health fail with 503 when check fails
func WithHealthCheck(check HealthCheck) AppOption {
	return func(o *appOptions) {
		o.health = check
	}
}

// NewApp returns a fiber app with the common middleware stack: panic
// recovery, access log, CORS and optional metrics. Routes are added with
// RegisterRoutes.
func NewApp(cfg ServerConfig, logger Logger, opts ...AppOption) *fiber.App {
	if logger == nil {
		logger = defLogger{}
	}

	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}

	app := fiber.New(fiber.Config{
		AppName:               "jobsculpt",
		DisableStartupMessage: true,
		ProxyHeader:           cfg.ProxyHeader,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		ErrorHandler:          ErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(AccessLog(logger))
	app.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	if o.metrics != nil {
		app.Use(o.metrics.Middleware())
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		if o.health != nil {
			if err := o.health(c.UserContext()); err != nil {
				logger.Error("health check failed", "error", err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	if o.gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{})))
	}

	return app
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, x-auth-token",
	}

	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}

	if len(allowed) == 0 {
		cfg.AllowOrigins = "*"
		return cfg
	}

	cfg.AllowOrigins = strings.Join(allowed, ",")
	cfg.AllowCredentials = true
	return cfg
}

// ErrorHandler writes every error as a {msg} envelope with the error's
// status. Internal errors are logged and reported without their cause.
func ErrorHandler(logger Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"msg": fe.Message})
		}

		richErr := AsError(err)

		switch richErr.Category {
		case goerrors.CategoryInternal:
			logger.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"error", err,
			)
			return c.Status(richErr.Code).JSON(fiber.Map{"msg": "Server error"})
		case goerrors.CategoryExternal:
			logger.Warn("upstream failure",
				"method", c.Method(),
				"path", c.Path(),
				"error", err,
			)
		}

		return c.Status(richErr.Code).JSON(fiber.Map{"msg": richErr.Message})
	}
}

// AccessLog logs one line per request
func AccessLog(logger Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = AsError(err).Code
			}
		}

		logger.Info("http request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", time.Since(start).String(),
			"ip", c.IP(),
		)

		return err
	}
}
