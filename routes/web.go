package routes

import (
	"net/http"

	"github.com/address-geocoder/app/controllers"
	"github.com/gin-gonic/gin"
)

// SetupWebRoutes thiết lập web routes
func SetupWebRoutes(router *gin.Engine) {
	web := router.Group("/")
	{
		web.GET("/", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"message": "Address Geocoder Service",
				"version": controllers.Version,
				"docs":    "/docs",
			})
		})

		web.GET("/docs", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"api":       "Address Geocoder API v1",
				"endpoints": map[string]string{
					"create_job":  "POST /v1/jobs",
					"list_jobs":   "GET /v1/jobs",
					"job_status":  "GET /v1/jobs/:jobID/status",
					"job_results": "GET /v1/jobs/:jobID/results?format=ndjson&gzip=1",
					"job_report":  "GET /v1/jobs/:jobID/report",
					"job_points":  "GET /v1/jobs/:jobID/points?q=&limit=",
					"cancel_job":  "POST /v1/jobs/:jobID/cancel",
					"delete_job":  "DELETE /v1/jobs/:jobID",
					"download":    "GET /v1/files/:filename",
					"detect":      "POST /v1/detect",
					"normalize":   "POST /v1/normalize",
					"cache_stats": "GET /v1/cache/stats",
					"cache_clear": "POST /v1/cache/clear",
					"health":      "GET /health",
					"metrics":     "GET /metrics",
				},
			})
		})
	}
}
