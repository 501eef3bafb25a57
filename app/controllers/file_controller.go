package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/address-geocoder/app/responses"
	"github.com/address-geocoder/internal/artifact"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileController phục vụ file kết quả từ artifact store
type FileController struct {
	store  artifact.Store
	logger *zap.Logger
}

// NewFileController tạo mới FileController
func NewFileController(store artifact.Store, logger *zap.Logger) *FileController {
	return &FileController{store: store, logger: logger}
}

// Download tải một file kết quả theo tên
func (fc *FileController) Download(c *gin.Context) {
	name := c.Param("filename")
	if err := artifact.ValidateName(name); err != nil {
		c.JSON(http.StatusBadRequest, responses.ErrorResponse{
			Error:   "INVALID_FILENAME",
			Message: "Tên file không hợp lệ",
		})
		return
	}

	rc, err := fc.store.Open(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			c.JSON(http.StatusNotFound, responses.ErrorResponse{
				Error:   "FILE_NOT_FOUND",
				Message: "Không tìm thấy file: " + name,
			})
			return
		}
		fc.logger.Error("Lỗi mở file kết quả", zap.String("file", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, responses.ErrorResponse{
			Error:   "FILE_READ_ERROR",
			Message: "Lỗi đọc file: " + err.Error(),
		})
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, artifact.ContentType(name), rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
	})
}
