package server

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/beenthere/btdt-api/internal/app/middleware"
	"github.com/beenthere/btdt-api/internal/app/response"
	"github.com/beenthere/btdt-api/internal/observability/metrics"
	"github.com/beenthere/btdt-api/internal/pkg/config"
	"github.com/beenthere/btdt-api/internal/routes"
)

// SetupRouter configures and returns the Gin router with all middleware and routes
func SetupRouter(db *mongo.Database, cfg *config.Config, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(ginzap.GinzapWithConfig(logger, &ginzap.Config{
		UTC:        true,
		TimeFormat: time.RFC3339,
		Context:    zapContextFunc(),
	}))
	r.Use(ginzap.RecoveryWithZap(logger, true))
	r.Use(middleware.OTELGinMiddleware("btdt-api"))
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.SecurityMiddleware())
	r.Use(requestCounter())

	// Outermost response stage: handlers stage their JSON envelope and this
	// serializes it after the auth middleware has had a chance to attach a
	// renewed token.
	r.Use(response.Flush())

	routes.Setup(r, db, cfg, logger)

	return r
}

// requestCounter counts completed requests by method and status.
func requestCounter() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		metrics.Get().HTTPRequestsTotal.Add(c.Request.Context(), 1,
			metric.WithAttributes(
				attribute.String("method", c.Request.Method),
				attribute.Int("status", c.Writer.Status()),
			))
	}
}

// zapContextFunc returns the Zap context function for logging. Request
// bodies are deliberately not captured; they carry credentials.
func zapContextFunc() ginzap.Fn {
	return func(c *gin.Context) []zapcore.Field {
		fields := []zapcore.Field{}

		if requestID := c.Writer.Header().Get("X-Request-Id"); requestID != "" {
			fields = append(fields, zap.String("request_id", requestID))
		}

		if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().IsValid() {
			fields = append(fields,
				zap.String("trace_id", span.SpanContext().TraceID().String()),
				zap.String("span_id", span.SpanContext().SpanID().String()),
			)
		}

		return fields
	}
}
