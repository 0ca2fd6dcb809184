package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chat-relay/internal/database"
	"chat-relay/internal/inference"
	"chat-relay/internal/metrics"
	"chat-relay/internal/middleware"
	"chat-relay/internal/relay"
	"chat-relay/internal/routers"
	"chat-relay/internal/shared"
	"chat-relay/internal/usage"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	emw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/manifold-inc/manifold-sdk/lib/eflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// .env is optional; real environment wins
	_ = godotenv.Load()

	// Flags / ENV Variables
	listenAddr := flag.String("listen-addr", ":80", "Address to serve on")
	debug := flag.Bool("debug", false, "Debug enabled")
	cfAccountID := flag.String("cf-account-id", "", "Cloudflare account id")
	cfAPIToken := flag.String("cf-api-token", "", "Cloudflare Workers AI api token")
	inferenceBaseURL := flag.String("inference-base-url", shared.DefaultInferenceBaseURL, "Inference API base url")
	defaultModel := flag.String("default-model", "@cf/meta/llama-3.1-8b-instruct", "Model preselected in the UI")
	maxAttempts := flag.Int("max-attempts", shared.DefaultMaxAttempts, "Inference attempts per request")
	retryBackoff := flag.Duration("retry-backoff", 0, "Base backoff between inference attempts, 0 retries immediately")
	retryMaxBackoff := flag.Duration("retry-max-backoff", shared.DefaultRetryMaxBackoff, "Backoff cap")
	skipSchemaErrors := flag.Bool("skip-schema-errors", false, "Skip stream events without a response instead of aborting")
	settingsSidebar := flag.Bool("settings-sidebar", false, "Render the settings sidebar in the UI")
	redisAddr := flag.String("redis-addr", "", "Redis host:port for the model catalog cache")
	dsn := flag.String("dsn", "", "MySQL DSN for usage stats")
	metricsAPIKey := flag.String("metrics-api-key", "", "Metrics api key")
	rateLimit := flag.Float64("rate-limit", shared.DefaultRateLimit, "Chat requests per second per client ip, 0 disables")

	err := eflag.SetFlagsFromEnvironment()
	if err != nil {
		panic(err)
	}
	flag.Parse()

	var logger *zap.Logger
	if !*debug {
		logger, err = zap.NewProduction()
		if err != nil {
			panic("Failed init logger")
		}
	}
	if *debug {
		logger, err = zap.NewDevelopment()
		if err != nil {
			panic("Failed init logger")
		}
	}
	log := logger.Sugar()
	defer func() {
		_ = log.Sync()
	}()

	// Load Redis connection
	var redisClient *redis.Client
	if *redisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     *redisAddr,
			Password: "",
			DB:       0,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			panic(fmt.Sprintf("failed ping to redis db: %s", err))
		}
	}

	// Usage stats db
	var usageCache *usage.Cache
	var db *sql.DB
	if *dsn != "" {
		db, err = sql.Open("mysql", *dsn)
		if err != nil {
			panic(fmt.Sprintf("failed initializing sqlClient: %s", err))
		}
		err = db.Ping()
		if err != nil {
			panic(fmt.Sprintf("failed ping to sql db: %s", err))
		}
		usageCache = usage.NewCache(log, database.NewStatsStore(db))
	}

	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		if db != nil {
			_ = db.Close()
		}
	}()

	workersAI, err := inference.NewWorkersAI(inference.WorkersAIConfig{
		BaseURL:   *inferenceBaseURL,
		AccountID: *cfAccountID,
		APIToken:  *cfAPIToken,
	}, log)
	if err != nil {
		panic(err)
	}
	invoker := inference.NewInvoker(workersAI, inference.RetryPolicy{
		MaxAttempts: *maxAttempts,
		Backoff:     *retryBackoff,
		MaxBackoff:  *retryMaxBackoff,
	}, log)

	var transcoderOpts []relay.Option
	if *skipSchemaErrors {
		transcoderOpts = append(transcoderOpts, relay.WithSkipSchemaErrors(func(err error) {
			log.Warnw("Skipping stream event", "error", err)
			metrics.ErrorCount.WithLabelValues("unknown", shared.MetricsCode(err)).Inc()
		}))
	}

	e := echo.New()
	e.HideBanner = true
	e.GET(("/ping"), func(c echo.Context) error {
		return c.String(200, "")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.RequireAPIKey(*metricsAPIKey))

	base := e.Group("")
	base.Use(emw.CORS())
	base.Use(middleware.NewRecoverMiddleware(log))
	base.Use(middleware.NewTrackMiddleware(log))

	// Register routes
	err = routers.RegisterPageRoutes(base, routers.PageConfig{
		DefaultModel:    *defaultModel,
		SettingsSidebar: *settingsSidebar,
	})
	if err != nil {
		panic(err)
	}
	err = routers.RegisterChatRoutes(base, routers.ChatRouterConfig{
		Invoker:    invoker,
		Transcoder: relay.NewTranscoder(transcoderOpts...),
		Catalog:    inference.NewCatalog(workersAI, redisClient, log),
		Usage:      usageCache,
		RateLimit:  *rateLimit,
	})
	if err != nil {
		panic(err)
	}

	go func() {
		log.Infow("Starting server", "addr", *listenAddr, "max_attempts", *maxAttempts, "skip_schema_errors", *skipSchemaErrors)
		if err := e.Start(*listenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalw("shutting down the server", "error", err)
		}
	}()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), shared.DefaultShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Errorw("Failed graceful shutdown", "error", err)
	}
	if usageCache != nil {
		usageCache.Shutdown()
	}
}
