package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/handlers"
	"bitbucket.org/mmdatafocus/commerce_backend/middlewares"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"bitbucket.org/mmdatafocus/commerce_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const defaultPort = "8080"

var tracer = otel.Tracer("commerce-backend")

// PushEnvelope is the body Pub/Sub push subscriptions POST to /pubsub.
type PushEnvelope struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func eventPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var envelope PushEnvelope
		logger := config.GetLogger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server.go", "eventPushHandler", "io.ReadAll", nil, err)
			// malformed bodies are acked; a retry would fail the same way
			c.Status(http.StatusNoContent)
			return
		}
		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &envelope); err != nil {
			config.LogError(logger, "server.go", "eventPushHandler", "Unmarshal body", string(body), err)
			c.Status(http.StatusNoContent)
			return
		}
		var m config.EventMessage
		if err := json.Unmarshal(envelope.Message.Data, &m); err != nil {
			config.LogError(logger, "server.go", "eventPushHandler", "Unmarshal event message", string(envelope.Message.Data), err)
			c.Status(http.StatusNoContent)
			return
		}
		if m.StoreId == "" || m.EventType == "" {
			config.LogError(logger, "server.go", "eventPushHandler", "Invalid event message", m, fmt.Errorf("store_id/event_type required"))
			c.Status(http.StatusNoContent)
			return
		}
		if m.CorrelationId == "" {
			m.CorrelationId = envelope.Message.ID
		}

		ctx, span := tracer.Start(c.Request.Context(), "pubsub.push")
		span.SetAttributes(
			attribute.String("store_id", m.StoreId),
			attribute.String("event_type", m.EventType),
			attribute.Int("record_id", m.ID),
		)
		defer span.End()

		release := workflow.LockStore(ctx, logger, m.StoreId)
		defer release()

		if err := workflow.ProcessMessage(ctx, logger, m); err != nil {
			span.RecordError(err)
			logger.WithFields(logrus.Fields{
				"field":          "eventPushHandler",
				"store_id":       m.StoreId,
				"event_type":     m.EventType,
				"reference_type": m.ReferenceType,
				"reference_id":   m.ReferenceId,
				"message_id":     envelope.Message.ID,
				"correlation_id": m.CorrelationId,
			}).Error("pubsub processing failed: " + err.Error())
			// non-2xx makes Pub/Sub redeliver
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// The port opens before dependencies connect; app routes answer 503 until the DB is up.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("x-correlation-id", cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// redis is optional; caches and locks degrade without it
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
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
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "X-Store-Id", "X-Session-Id")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins

	r.Use(cors.New(corsConfig))

	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
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
		r.Use(middlewares.NewRateLimiter("global", limit, time.Duration(windowSec)*time.Second, nil).Middleware())
	}

	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.LoaderMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())
	r.POST("/pubsub", eventPushHandler())
	if err := handlers.Register(r, handlers.Options{}); err != nil {
		logger.WithFields(logrus.Fields{"field": "routes"}).Fatal("register routes: " + err.Error())
	}
	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate DDL can block tables; run it as a separate job with SKIP_MIGRATIONS=true.
	if !config.SkipMigrations() {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	if config.PubSubTopic() != "" {
		go workflow.NewOutboxDispatcher(db, logger).Run(workerCtx)
	}
	if workflow.PubSubSubscription() != "" {
		if err := workflow.RunSubscriber(workerCtx, logger); err != nil {
			config.LogError(logger, "server.go", "main", "start pubsub subscriber", nil, err)
		}
	}
	if config.OutboxDirectProcessing() {
		go workflow.NewDirectProcessor(db, logger).Run(workerCtx)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers before draining requests.
	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
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
