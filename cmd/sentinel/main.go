package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/odan-platform/sentinel/analytics"
	"github.com/odan-platform/sentinel/moderation"
	"github.com/odan-platform/sentinel/moderation/hfapi"
	"github.com/odan-platform/sentinel/moderation/local"
	"github.com/odan-platform/sentinel/moderation/verdictcache"
	"github.com/odan-platform/sentinel/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "sentinel",
		Usage:   "content moderation service for the ODAN platform",
		Version: versioninfo.Short(),
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":8000",
			EnvVars: []string{"SENTINEL_BIND"},
		},
		&cli.StringFlag{
			Name:    "hf-api-url",
			Usage:   "base URL of the hosted inference API",
			Value:   "https://api-inference.huggingface.co/models",
			EnvVars: []string{"HUGGINGFACE_API_URL"},
		},
		&cli.StringFlag{
			Name:    "hf-api-token",
			Usage:   "bearer token for the hosted inference API; empty disables the remote path",
			EnvVars: []string{"HUGGINGFACE_API_TOKEN"},
		},
		&cli.BoolFlag{
			Name:    "use-local-fallback",
			Usage:   "run local models when the remote path is unavailable",
			Value:   true,
			EnvVars: []string{"USE_LOCAL_FALLBACK"},
		},
		&cli.StringFlag{
			Name:    "models-dir",
			Value:   "./models",
			EnvVars: []string{"MODELS_DIR"},
		},
		&cli.StringFlag{
			Name:    "text-nsfw-model",
			Value:   "eliasalbouzidi/distilbert-nsfw-text-classifier",
			EnvVars: []string{"TEXT_NSFW_MODEL"},
		},
		&cli.StringFlag{
			Name:    "text-nsfw-fallback-model",
			Value:   "distilbert-base-uncased-finetuned-sst-2-english",
			EnvVars: []string{"TEXT_NSFW_FALLBACK_MODEL"},
		},
		&cli.StringFlag{
			Name:    "text-offensive-model",
			Value:   "Falconsai/offensive_speech_detection",
			EnvVars: []string{"TEXT_OFFENSIVE_MODEL"},
		},
		&cli.StringFlag{
			Name:    "image-nsfw-model",
			Value:   "Falconsai/nsfw_image_detection",
			EnvVars: []string{"IMAGE_NSFW_MODEL"},
		},
		&cli.Float64Flag{
			Name:    "nsfw-threshold",
			Value:   0.7,
			EnvVars: []string{"NSFW_THRESHOLD"},
		},
		&cli.Float64Flag{
			Name:    "offensive-threshold",
			Value:   0.6,
			EnvVars: []string{"OFFENSIVE_THRESHOLD"},
		},
		&cli.IntFlag{
			Name:    "api-rate-limit-per-minute",
			Value:   60,
			EnvVars: []string{"API_RATE_LIMIT_PER_MINUTE"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "event store connection for ticket analytics; empty disables aggregation",
			EnvVars: []string{"AI_SERVICE_DATABASE_URL", "DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			Value:   40,
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
		},
		&cli.IntFlag{
			Name:    "ticket-stats-window-days",
			Value:   30,
			EnvVars: []string{"TICKET_STATS_WINDOW_DAYS"},
		},
		&cli.StringFlag{
			Name:    "ticket-stats-timezone",
			Value:   "UTC",
			EnvVars: []string{"TICKET_STATS_TIMEZONE"},
		},
		&cli.StringFlag{
			Name:    "analytics-api-key",
			Usage:   "key required in X-Analytics-Key for analytics endpoints; empty disables the check",
			EnvVars: []string{"ANALYTICS_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "carto-api-url",
			Usage:   "analytics sink ingest endpoint; empty disables the export scheduler",
			EnvVars: []string{"CARTO_API_URL"},
		},
		&cli.StringFlag{
			Name:    "carto-api-key",
			EnvVars: []string{"CARTO_API_KEY"},
		},
		&cli.IntFlag{
			Name:    "carto-send-interval-minutes",
			Value:   60,
			EnvVars: []string{"CARTO_SEND_INTERVAL_MINUTES"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "optional redis connection for the verdict cache",
			EnvVars: []string{"REDIS_URL"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		// Enable OTLP HTTP exporter
		// For relevant environment variables:
		// https://pkg.go.dev/go.opentelemetry.io/otel/exporters/otlp/otlptrace#readme-environment-variables
		if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
			slog.Info("setting up trace exporter", "endpoint", ep)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			exp, err := otlptracehttp.New(ctx)
			if err != nil {
				log.Fatal("failed to create trace exporter", "error", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := exp.Shutdown(ctx); err != nil {
					slog.Error("failed to shutdown trace exporter", "error", err)
				}
			}()

			tp := tracesdk.NewTracerProvider(
				tracesdk.WithBatcher(exp),
				tracesdk.WithResource(resource.NewWithAttributes(
					semconv.SchemaURL,
					semconv.ServiceNameKey.String("sentinel"),
					attribute.String("env", os.Getenv("ENVIRONMENT")),
					attribute.String("environment", os.Getenv("ENVIRONMENT")),
					attribute.Int64("ID", 1),
				)),
			)
			otel.SetTracerProvider(tp)
		}

		logger.Info("starting sentinel",
			"version", versioninfo.Short(),
			"remoteInference", cctx.String("hf-api-token") != "",
			"localFallback", cctx.Bool("use-local-fallback"),
		)

		var remote moderation.RemoteClassifier
		if cctx.String("hf-api-token") != "" {
			remote = hfapi.NewClient(cctx.String("hf-api-url"), cctx.String("hf-api-token"))
		}

		var localProvider *local.Provider
		var localClassifier moderation.LocalClassifier
		if cctx.Bool("use-local-fallback") {
			localProvider = local.NewProvider(logger.With("component", "local"), local.Config{
				ModelsDir:             cctx.String("models-dir"),
				TextNSFWModel:         cctx.String("text-nsfw-model"),
				TextNSFWFallbackModel: cctx.String("text-nsfw-fallback-model"),
				TextOffensiveModel:    cctx.String("text-offensive-model"),
				ImageNSFWModel:        cctx.String("image-nsfw-model"),
			})
			defer localProvider.Close()
			localClassifier = localProvider
		}

		var cache verdictcache.Store
		if redisURL := cctx.String("redis-url"); redisURL != "" {
			rc, err := verdictcache.NewRedisStore(redisURL, 30*time.Minute)
			if err != nil {
				return err
			}
			cache = rc
		} else {
			cache = verdictcache.NewMemStore(5_000, 30*time.Minute)
		}

		engine := &moderation.Engine{
			Logger: logger.With("component", "moderation"),
			Remote: remote,
			Local:  localClassifier,
			Cache:  cache,
			Config: moderation.EngineConfig{
				TextNSFWModel:      cctx.String("text-nsfw-model"),
				TextOffensiveModel: cctx.String("text-offensive-model"),
				ImageNSFWModel:     cctx.String("image-nsfw-model"),
				NSFWThreshold:      cctx.Float64("nsfw-threshold"),
				OffensiveThreshold: cctx.Float64("offensive-threshold"),
			},
		}

		aggregator := &analytics.Aggregator{
			WindowDays: cctx.Int("ticket-stats-window-days"),
			Timezone:   cctx.String("ticket-stats-timezone"),
			Logger:     logger.With("component", "analytics"),
		}
		if dburl := cctx.String("database-url"); dburl != "" {
			db, err := cliutil.SetupDatabase(dburl, cctx.Int("max-db-connections"))
			if err != nil {
				return err
			}
			aggregator.DB = db
		}

		var sink analytics.Sink
		if cctx.String("carto-api-url") != "" {
			sink = analytics.NewCartoClient(cctx.String("carto-api-url"), cctx.String("carto-api-key"))
		}
		exporter := &analytics.Exporter{
			Source:     aggregator,
			Sink:       sink,
			Interval:   time.Duration(cctx.Int("carto-send-interval-minutes")) * time.Minute,
			WindowDays: cctx.Int("ticket-stats-window-days"),
			Timezone:   cctx.String("ticket-stats-timezone"),
			Logger:     logger.With("component", "exporter"),
		}

		srv := NewServer(engine, aggregator, Config{
			Logger:             logger,
			AnalyticsAPIKey:    cctx.String("analytics-api-key"),
			RatePerMinute:      cctx.Int("api-rate-limit-per-minute"),
			WindowDays:         cctx.Int("ticket-stats-window-days"),
			Timezone:           cctx.String("ticket-stats-timezone"),
			SinkConfigured:     sink != nil,
			StoreConfigured:    aggregator.DB != nil,
			TextNSFWModel:      cctx.String("text-nsfw-model"),
			TextOffensiveModel: cctx.String("text-offensive-model"),
			ImageNSFWModel:     cctx.String("image-nsfw-model"),
		})

		exporter.Start()
		defer exporter.Shutdown()

		return srv.RunAPI(ctx, cctx.String("bind"))
	},
}
