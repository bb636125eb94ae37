package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewRouter builds the gin engine with logging, recovery and all API routes.
func NewRouter(h *APIHandler) *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(h.Log), gin.Recovery())
	RegisterRoutes(router, h)
	return router
}

// RegisterRoutes mounts the API under /api.
func RegisterRoutes(router *gin.Engine, h *APIHandler) {
	api := router.Group("/api")
	{
		api.GET("/ping", PingHandler)

		// Model and course metadata for building the entry form
		api.GET("/schema", h.GetSchema)
		api.GET("/courses", h.GetCourses)
		api.GET("/courses/:course/years/:year/sections", h.GetSections)

		// Predictions
		api.POST("/predict", h.PredictManual)
		api.POST("/predict/batch", h.PredictBatch)

		// Stored results
		api.GET("/batches", h.GetBatches)
		api.GET("/batches/:batchId/download", h.DownloadBatch)
		api.GET("/predictions/recent", h.GetRecentPredictions)
	}
}

// RequestLogger logs one line per request through logrus.
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if c.Writer.Status() >= 500 {
			entry.Error("Request")
			return
		}
		entry.Info("Request")
	}
}
