package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RegisterRoutes registers every route on router. metrics may be nil.
func RegisterRoutes(router *gin.Engine, api *API, metrics http.Handler) {
	router.POST("/node/heartbeat", api.HeartbeatHandler)
	router.GET("/task", api.ClaimTaskHandler)
	router.POST("/task-result", api.SubmitResultHandler)
	router.GET("/tasks/:id", api.GetTaskHandler)
	router.GET("/status", api.StatusHandler)
	router.GET("/summary", api.SummaryHandler)
	router.POST("/edge-feedback", api.EdgeFeedbackHandler)
	router.GET("/health", api.HealthHandler)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
}

// NewRouter builds a gin engine with recovery, request logging and all
// routes registered.
func NewRouter(api *API, metrics http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(api.log))
	RegisterRoutes(router, api, metrics)
	return router
}

// RequestLogger logs each request at debug level, and at warn level when
// the response is a server error.
func RequestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
			"client":   c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request handled")
	}
}
