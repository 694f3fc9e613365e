package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/thriftkids/marketplace/handlers"
	"github.com/thriftkids/marketplace/internal/config"
	"github.com/thriftkids/marketplace/internal/database"
	"github.com/thriftkids/marketplace/internal/events"
	"github.com/thriftkids/marketplace/internal/genai"
	"github.com/thriftkids/marketplace/internal/listing/handler"
	"github.com/thriftkids/marketplace/internal/listing/repository"
	"github.com/thriftkids/marketplace/internal/listing/service"
	"github.com/thriftkids/marketplace/internal/storage"
	"github.com/thriftkids/marketplace/pkg/logger"
	"github.com/thriftkids/marketplace/pkg/metrics"
	"github.com/thriftkids/marketplace/pkg/middleware"
	"github.com/thriftkids/marketplace/pkg/tracing"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.Infof("config loaded: mongo=%v bucket=%v redis=%v generation=%v",
		cfg.MongoDB.URI != "", cfg.Storage.Bucket != "", cfg.Redis.Host != "", cfg.Model.GenerationEnabled())

	ctx := context.Background()

	shutdownTracing := setupTracing(ctx, cfg)
	defer shutdownTracing()

	redisClient := setupRedis(ctx, cfg)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	records, closeRecords := setupRecords(ctx, cfg)
	defer closeRecords()

	opts := service.Options{
		Local:        storage.NewLocalStore(cfg.Storage.LocalDir),
		UseAgent:     cfg.Model.UseAgent,
		ModelTimeout: cfg.Model.Timeout,
	}
	ready := handlers.Readiness{Started: startTime}

	if records != nil {
		opts.Records = records
		ready.Records = true
	}
	if objects := setupObjects(cfg); objects != nil {
		opts.Objects = objects
		ready.Objects = true
	}
	if cfg.Model.APIKey != "" {
		model := genai.NewClient(genai.Config{
			APIKey:   cfg.Model.APIKey,
			Endpoint: cfg.Model.Endpoint,
			Model:    cfg.Model.Name,
			Timeout:  cfg.Model.Timeout,
		})
		opts.Model = model
		opts.ModelTimeout = model.Timeout()
		ready.Model = true
		logger.Infof("model client %s ready: timeout=%s", cfg.Model.Name, model.Timeout())
	} else {
		logger.Infof("VERTEX_API_KEY not set; descriptions fall back to the template")
	}
	if redisClient != nil {
		sink := events.NewRedisSink(redisClient, cfg.Analytics.Stream())
		opts.Events = sink
		ready.Events = true
		logger.Infof("analytics events go to redis stream %s", sink.Stream())
	}

	svc := service.New(opts)
	logger.Infof("listing workflow ready: generation_enabled=%v", svc.GenerationEnabled())

	r := gin.New()
	r.Use(middleware.CORS())
	r.Use(gin.Logger(), gin.Recovery())
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
		logger.Infof("rate limiter enabled: rps=%v burst=%d redis=%v", cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.UseRedis && redisClient != nil)
	}

	handler.RegisterListingRoutes(r, svc)
	handlers.RegisterReadiness(r, ready)
	handlers.RegisterSwagger(r)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting thriftkids api on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	waitForShutdown(server)
}

func setupTracing(ctx context.Context, cfg *config.Config) func() {
	if cfg.Tracing.Endpoint == "" {
		return func() {}
	}
	tp, err := tracing.Init(ctx, cfg.Tracing.ServiceName, cfg.Server.Environment, cfg.Tracing.Endpoint)
	if err != nil {
		logger.Warnf("tracing disabled: %v", err)
		return func() {}
	}
	logger.Infof("tracing to %s", cfg.Tracing.Endpoint)
	return func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Errorf("failed to shut down tracer provider: %v", err)
		}
	}
}

// setupRedis returns nil when Redis is not configured or unreachable.
func setupRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	addr := cfg.Redis.Addr()
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnf("failed to connect to Redis (%s), events disabled: %v", addr, err)
		_ = client.Close()
		return nil
	}
	logger.Infof("connected to Redis: %s", addr)
	return client
}

// setupRecords returns nil when no record store is reachable.
func setupRecords(ctx context.Context, cfg *config.Config) (repository.Repository, func()) {
	if cfg.MongoDB.Backend == "memory" {
		logger.Warnf("STORE_BACKEND=memory: listings are kept in process memory only")
		return repository.NewMemoryRepo(), func() {}
	}
	if cfg.MongoDB.URI == "" {
		logger.Warnf("MONGODB_URI not set; listings will not be persisted")
		return nil, func() {}
	}
	client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
	if err != nil {
		logger.Warnf("record store unavailable: %v", err)
		return nil, func() {}
	}
	repo := repository.NewMongoRepo(client.Database(cfg.MongoDB.Database).Collection(repository.CollectionName))
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Warnf("failed to create listing indexes: %v", err)
	}
	logger.Infof("connected to MongoDB database %s", cfg.MongoDB.Database)
	return repo, func() { _ = client.Disconnect(context.Background()) }
}

// setupObjects returns nil when no bucket is configured; images then go to
// the local fallback directory.
func setupObjects(cfg *config.Config) *storage.MinIOStorage {
	mcfg := storage.MinIOConfigFrom(cfg.Storage)
	if !mcfg.Configured() {
		logger.Warnf("object store not configured; images are written locally")
		return nil
	}
	s, err := storage.NewMinIOStorage(mcfg)
	if err != nil {
		logger.Warnf("object store unavailable, images are written locally: %v", err)
		return nil
	}
	logger.Infof("images go to bucket %s", s.Bucket())
	return s
}

func waitForShutdown(server *http.Server) {
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	<-shutdownCh
	logger.Infof("shutdown signal received, shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("server forced to shutdown: %v", err)
	}
}
