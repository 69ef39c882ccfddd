package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/pos_ledger/config"
	"github.com/mmdatafocus/pos_ledger/models"
	"github.com/mmdatafocus/pos_ledger/utils"
	"github.com/mmdatafocus/pos_ledger/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("pos-ledger")

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func newRouter(s *ledgerServer, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), cid)
		if site := strings.TrimSpace(os.Getenv("LEDGER_SITE_ID")); site != "" {
			ctx = utils.SetSiteIdInContext(ctx, site)
		}
		ctx = utils.SetTerminalHostInContext(ctx, s.sys.Host)
		c.Request = c.Request.WithContext(ctx)
		c.Header("x-correlation-id", cid)
		c.Next()
	})

	corsConfig := cors.DefaultConfig()
	// In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length", "x-correlation-id")
	r.Use(cors.New(corsConfig))

	// Optional rate limiting of operator actions.
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		if client := config.GetRedisDB(); client != nil {
			limit := int64(600)
			if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
				if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
					limit = n
				}
			}
			windowSec := int64(60)
			if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
				if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
					windowSec = n
				}
			}
			r.Use(NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second).RateLimitMiddleware)
		} else {
			logger.WithFields(logrus.Fields{"field": "rateLimit"}).Warn("RATE_LIMIT_ENABLED but redis is not connected; rate limiting disabled")
		}
	}

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/archives", s.listArchivesHandler())
	r.GET("/archives/:id", s.getArchiveHandler())
	r.POST("/archives/seal", s.sealArchiveHandler())
	r.GET("/drawers", s.listDrawersHandler())
	r.GET("/drawers/report.xlsx", s.drawerReportHandler())
	r.POST("/drawers/:serial/pull", s.pullDrawerHandler())
	r.POST("/drawers/:serial/balance", s.balanceDrawerHandler())
	r.POST("/drawers/:serial/merge-server-banks", s.mergeServerBanksHandler())
	r.GET("/settings", s.getSettingsHandler())
	r.PUT("/settings", s.putSettingsHandler())
	r.NoRoute(customNotFoundHandler)
	return r
}

func main() {
	logger := config.GetLogger()

	cfg, err := config.LoadLedgerConfig()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "config"}).Fatal(err.Error())
	}

	// Shutdown coordination.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// The writer lock must be held before the data dir is read.
	var writerLock *workflow.WriterLock
	if cfg.RedisAddress != "" {
		connectCtx, cancel := context.WithTimeout(sigCtx, 2*time.Minute)
		err := config.ConnectRedisWithRetry(connectCtx)
		cancel()
		if err != nil {
			logger.WithFields(logrus.Fields{"field": "redis"}).Fatal("redis not reachable: " + err.Error())
		}
		writerLock, err = workflow.AcquireWriterLock(sigCtx, cfg.Host, cfg.DataDir)
		if err != nil {
			logger.WithFields(logrus.Fields{"field": "writerLock", "data_dir": cfg.DataDir}).Fatal(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "writerLock"}).Warn("REDIS_ADDRESS not set; running without the writer lock")
	}

	sys := models.NewSystem(cfg.DataDir, models.NewSettings(),
		models.WithReporter(models.NewLogrusReporter(logger)),
		models.WithHost(cfg.Host),
		models.WithArchiveDir(cfg.ArchiveDir),
		models.WithMaxLoadedArchives(cfg.MaxLoadedArchives),
	)
	if err := sys.LoadLive(); err != nil {
		logger.WithFields(logrus.Fields{"field": "LoadLive", "data_dir": cfg.DataDir}).Fatal(err.Error())
	}

	rollover := workflow.NewArchiveRollover(sys, logger)
	rollover.Tracer = tracer
	if config.ColdStorageEnabled() {
		rollover.Cold = workflow.GCSColdStore{Bucket: cfg.ColdStorageBucket}
	}
	if cfg.PubSubTopic != "" {
		rollover.Publisher = workflow.PubSubPublisher{Topic: cfg.PubSubTopic}
	}
	s := newLedgerServer(sys, rollover, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: newRouter(s, logger),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// The catalog is optional; connect it after the port is open.
	if config.CatalogEnabled() {
		go func() {
			if err := config.ConnectDatabaseWithRetry(sigCtx); err != nil {
				logger.WithFields(logrus.Fields{"field": "catalog"}).Error("catalog database not connected: " + err.Error())
				return
			}
			catalog := workflow.NewGormArchiveCatalog(config.GetDB())
			if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
				if err := catalog.Migrate(); err != nil {
					logger.WithFields(logrus.Fields{"field": "migrations"}).Error("catalog migration failed: " + err.Error())
					return
				}
			}
			s.setCatalog(catalog)
		}()
	}

	logger.WithFields(logrus.Fields{
		"field":    "server",
		"host":     cfg.Host,
		"data_dir": cfg.DataDir,
		"archives": sys.Archives.Len(),
	}).Info("ledger listening on :" + cfg.Port)

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if err := s.close(); err != nil {
		config.LogError(logger, "server.go", "main", "close ledger", nil, err)
	}
	if writerLock != nil {
		if err := writerLock.Release(shutdownCtx); err != nil {
			config.LogError(logger, "server.go", "main", "release writer lock", nil, err)
		}
	}
	_ = config.ClosePubSub()
	_ = config.CloseRedis()
	if db := config.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits. Reads are never limited.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodOptions {
		c.Next()
		return
	}
	key := "ratelimit:" + c.ClientIP()

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if count == 1 {
		if err := rl.client.Expire(c.Request.Context(), key, rl.window).Err(); err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
