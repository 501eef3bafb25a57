package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/address-geocoder/app/requests"
	"github.com/address-geocoder/app/responses"
	"github.com/address-geocoder/app/services"
	"github.com/address-geocoder/internal/detect"
	"github.com/address-geocoder/internal/dispatcher"
	"github.com/address-geocoder/internal/geocode"
	"github.com/address-geocoder/internal/normalizer"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version phiên bản service
const Version = "1.0.0"

// GeocodeAdmin thống kê và quản lý cache của geocode client
type GeocodeAdmin interface {
	CacheStats() geocode.CacheStats
	DispatcherStats() dispatcher.Stats
	ClearCache(ctx context.Context) error
}

// AdminController controller xử lý các request admin, công cụ và health
type AdminController struct {
	geocoder     GeocodeAdmin
	cacheService services.ICacheService
	store        *services.JobStore
	normalizer   *normalizer.Normalizer
	startTime    time.Time
	logger       *zap.Logger
}

// NewAdminController tạo mới AdminController. cacheService có thể nil khi
// geocode client chạy không cache.
func NewAdminController(geocoder GeocodeAdmin, cacheService services.ICacheService, store *services.JobStore, n *normalizer.Normalizer, logger *zap.Logger) *AdminController {
	return &AdminController{
		geocoder:     geocoder,
		cacheService: cacheService,
		store:        store,
		normalizer:   n,
		startTime:    time.Now(),
		logger:       logger,
	}
}

// GetCacheStats thống kê cache, hàng đợi gọi API và số job
func (ac *AdminController) GetCacheStats(c *gin.Context) {
	resp := responses.CacheStatsResponse{
		Client:     ac.geocoder.CacheStats(),
		Dispatcher: ac.geocoder.DispatcherStats(),
		Jobs:       ac.store.Len(),
	}

	if ac.cacheService != nil {
		stats, err := ac.cacheService.GetStats(c.Request.Context())
		if err != nil {
			ac.logger.Error("Lỗi lấy thống kê cache", zap.Error(err))
			c.JSON(http.StatusInternalServerError, responses.ErrorResponse{
				Error:   "STATS_ERROR",
				Message: "Lỗi lấy thống kê cache: " + err.Error(),
			})
			return
		}
		resp.Cache = stats
	}

	c.JSON(http.StatusOK, resp)
}

// ClearCache xóa toàn bộ cache geocode
func (ac *AdminController) ClearCache(c *gin.Context) {
	if err := ac.geocoder.ClearCache(c.Request.Context()); err != nil {
		ac.logger.Error("Lỗi xóa cache", zap.Error(err))
		c.JSON(http.StatusInternalServerError, responses.ErrorResponse{
			Error:   "CACHE_CLEAR_ERROR",
			Message: "Lỗi xóa cache: " + err.Error(),
		})
		return
	}

	ac.logger.Info("Đã xóa cache geocode")
	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success:   true,
		Message:   "Đã xóa cache",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// DetectColumn phát hiện cột địa chỉ trong dữ liệu bảng
func (ac *AdminController) DetectColumn(c *gin.Context) {
	var req requests.DetectColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, responses.ErrorResponse{
			Error:   "INVALID_REQUEST",
			Message: "Request không hợp lệ: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, responses.DetectColumnResponse{
		Detection:  detect.Detect(req.Headers, req.Rows),
		Candidates: detect.Candidates(req.Headers, req.Rows),
	})
}

// Normalize chuẩn hóa địa chỉ mà không gọi geocode
func (ac *AdminController) Normalize(c *gin.Context) {
	var req requests.NormalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, responses.ErrorResponse{
			Error:   "INVALID_REQUEST",
			Message: "Request không hợp lệ: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, responses.NormalizeResponse{
		Results: ac.normalizer.NormalizeBatch(req.Addresses),
	})
}

// HealthCheck kiểm tra sức khỏe service
func (ac *AdminController) HealthCheck(c *gin.Context) {
	deps := map[string]string{
		"jobs":       "healthy",
		"dispatcher": "healthy",
		"cache":      "disabled",
	}
	status := "healthy"

	if ac.cacheService != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if _, err := ac.cacheService.GetStats(ctx); err != nil {
			ac.logger.Warn("Cache không phản hồi", zap.Error(err))
			deps["cache"] = "unhealthy"
			status = "degraded"
		} else {
			deps["cache"] = "healthy"
		}
	}

	c.JSON(http.StatusOK, responses.HealthCheckResponse{
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(ac.startTime).Round(time.Second).String(),
		Version:   Version,
		Services:  deps,
	})
}

// Live liveness probe
func (ac *AdminController) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
