// Package httpapi exposes the catalog cache over HTTP.
package httpapi

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with every catalog route.
func NewRouter(controller *CatalogController) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	api := r.Group("/api")
	{
		catalog := api.Group("/catalog")
		{
			catalog.GET("", controller.ListCatalog)
			catalog.GET("/details/*name", controller.GetDetails)
			catalog.POST("/sweep", controller.RunSweep)
			catalog.GET("/sweep/last", controller.LastSweep)
		}
	}
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("HTTPAPI: request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
