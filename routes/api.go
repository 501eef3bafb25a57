package routes

import (
	"github.com/gin-gonic/gin"
)

// SetupAPIRoutes thiết lập tất cả API routes
func SetupAPIRoutes(router *gin.Engine, ctrl Controllers) {
	v1 := router.Group("/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", ctrl.Jobs.CreateJob)
			jobs.GET("", ctrl.Jobs.ListJobs)
			jobs.GET("/:jobID/status", ctrl.Jobs.GetJobStatus)
			jobs.GET("/:jobID/results", ctrl.Jobs.GetJobResults)
			jobs.GET("/:jobID/report", ctrl.Jobs.GetJobReport)
			jobs.GET("/:jobID/points", ctrl.Jobs.GetJobPoints)
			jobs.POST("/:jobID/cancel", ctrl.Jobs.CancelJob)
			jobs.DELETE("/:jobID", ctrl.Jobs.DeleteJob)
		}

		if ctrl.Files != nil {
			v1.GET("/files/:filename", ctrl.Files.Download)
		}

		v1.POST("/detect", ctrl.Admin.DetectColumn)
		v1.POST("/normalize", ctrl.Admin.Normalize)

		cache := v1.Group("/cache")
		{
			cache.GET("/stats", ctrl.Admin.GetCacheStats)
			cache.POST("/clear", ctrl.Admin.ClearCache)
		}

		v1.GET("/health", ctrl.Admin.HealthCheck)
	}
}
