package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/odan-platform/sentinel/analytics"
	"github.com/odan-platform/sentinel/moderation"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	slogecho "github.com/samber/slog-echo"
	"golang.org/x/time/rate"
)

type Config struct {
	Logger          *slog.Logger
	AnalyticsAPIKey string
	RatePerMinute   int
	WindowDays      int
	Timezone        string
	SinkConfigured  bool
	StoreConfigured bool

	// Registerer overrides the default prometheus registry, mostly for tests.
	Registerer prometheus.Registerer

	TextNSFWModel      string
	TextOffensiveModel string
	ImageNSFWModel     string
}

type Server struct {
	echo    *echo.Echo
	httpd   *http.Server
	logger  *slog.Logger
	engine  *moderation.Engine
	buckets analytics.BucketSource
	cfg     Config
}

func NewServer(engine *moderation.Engine, buckets analytics.BucketSource, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true

	srv := &Server{
		echo:    e,
		logger:  logger,
		engine:  engine,
		buckets: buckets,
		cfg:     cfg,
	}

	httpTimeout := 5 * time.Minute
	srv.httpd = &http.Server{
		Handler:        e,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: 1 * (1024 * 1024),
	}

	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("16M"))
	registerer := cfg.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "sentinel",
		Registerer: registerer,
	}))
	e.HTTPErrorHandler = srv.errorHandler

	e.GET("/health", srv.handleHealthCheck)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/analytics/tickets/hourly", srv.handleHourlyStats)

	mod := e.Group("/moderate")
	if cfg.RatePerMinute > 0 {
		mod.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(
			rate.Limit(float64(cfg.RatePerMinute) / 60.0),
		)))
	}
	mod.POST("/text", srv.handleModerateText)
	mod.POST("/image", srv.handleModerateImage)
	mod.POST("/batch", srv.handleModerateBatch)

	return srv
}

// RunAPI serves the HTTP API until an OS exit signal arrives, then shuts
// down gracefully.
func (srv *Server) RunAPI(ctx context.Context, listen string) error {
	srv.logger.Info("starting API server", "bind", listen)
	srv.httpd.Addr = listen
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				srv.logger.Error("HTTP server shutting down unexpectedly", "err", err)
			}
		}
	}()

	quit := make(chan struct{})
	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-exitSignals
		srv.logger.Info("received OS exit signal", "signal", sig)
		if err := srv.Shutdown(); err != nil {
			srv.logger.Error("HTTP server shutdown error", "err", err)
		}
		close(quit)
	}()
	<-quit
	srv.logger.Info("graceful shutdown complete")
	return nil
}

func (srv *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.httpd.Shutdown(ctx)
}

// errorHandler converts anything that escapes a handler into a safe-by-default
// response: a moderation error must never manifest as blocked content.
func (srv *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
	}
	if code >= 500 {
		srv.logger.Warn("sentinel-http-internal-error", "err", err, "path", c.Path())
	}
	if c.Response().Committed {
		return
	}
	if code >= 500 {
		c.JSON(code, map[string]any{
			"isSafe":     true,
			"confidence": 0.0,
			"error":      err.Error(),
		})
		return
	}
	c.JSON(code, map[string]any{"error": err.Error()})
}
