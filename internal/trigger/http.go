package trigger

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/example/hotel-call-scheduler/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pinger reports backend health for /healthz; nil means always healthy.
type Pinger func(ctx context.Context) error

func NewRouter(runner *Runner, checker *auth.Checker, ping Pinger, log *zap.Logger) *gin.Engine {
	log = log.Named("http")
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("X-Correlation-Id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("X-Correlation-Id", cid)
		c.Set("correlation_id", cid)
		c.Next()
	})
	r.Use(requestLogger(log))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/trigger", requireBearer(checker))
	h := triggerHandler(runner)
	api.POST("/:op", h)
	// hosted cron services commonly only issue GETs
	api.GET("/:op", h)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

func requireBearer(checker *auth.Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := checker.CheckHeader(c.GetHeader("Authorization")); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func triggerHandler(runner *Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		sum, err := runner.Run(c.Request.Context(), Request{Op: c.Param("op"), CallType: c.Query("call_type")})
		switch {
		case errors.Is(err, ErrBadRequest):
			c.JSON(http.StatusBadRequest, sum)
		case sum.Error != "":
			c.JSON(http.StatusInternalServerError, sum)
		default:
			c.JSON(http.StatusOK, sum)
		}
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Duration("latency", time.Since(start)),
			zap.String("correlation_id", c.GetString("correlation_id")))
	}
}
