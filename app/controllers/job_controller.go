package controllers

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/address-geocoder/app/models"
	"github.com/address-geocoder/app/requests"
	"github.com/address-geocoder/app/responses"
	"github.com/address-geocoder/app/services"
	"github.com/address-geocoder/helpers/utils"
	"github.com/address-geocoder/internal/artifact"
	"github.com/address-geocoder/internal/detect"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultPointLimit = 1000
	maxPointLimit     = 10000
)

// PointSearcher tìm tọa độ của job theo từ khóa
type PointSearcher interface {
	Search(ctx context.Context, jobID, query string, limit int) ([]models.Point, error)
}

// JobController controller xử lý batch job
type JobController struct {
	batch  *services.BatchService
	files  artifact.Store
	points PointSearcher
	logger *zap.Logger
}

// NewJobController tạo mới JobController. files và points có thể nil.
func NewJobController(batch *services.BatchService, files artifact.Store, points PointSearcher, logger *zap.Logger) *JobController {
	return &JobController{
		batch:  batch,
		files:  files,
		points: points,
		logger: logger,
	}
}

// CreateJob tạo batch job và xử lý nền
func (jc *JobController) CreateJob(c *gin.Context) {
	var req requests.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, responses.ErrorResponse{
			Error:   "INVALID_REQUEST",
			Message: "Request không hợp lệ: " + err.Error(),
		})
		return
	}

	addresses := req.Addresses
	column := ""
	if req.IsTabular() {
		var candidates []detect.Candidate
		column, candidates = resolveColumn(req)
		if column == "" {
			c.JSON(http.StatusBadRequest, responses.ErrorResponse{
				Error:   "UNKNOWN_COLUMN",
				Message: "Không xác định được cột địa chỉ",
				Details: gin.H{"address_column": req.AddressColumn, "candidates": candidates},
			})
			return
		}
		addresses = detect.Column(req.Rows, column)
	}

	jobID, err := jc.batch.Submit(c.Request.Context(), addresses)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoAddresses):
			c.JSON(http.StatusBadRequest, responses.ErrorResponse{
				Error:   "NO_ADDRESSES",
				Message: "Không có địa chỉ nào để xử lý",
			})
		case errors.Is(err, services.ErrTooManyRows):
			c.JSON(http.StatusBadRequest, responses.ErrorResponse{
				Error:   "TOO_MANY_ADDRESSES",
				Message: err.Error(),
			})
		default:
			jc.logger.Error("Lỗi tạo batch job", zap.Error(err))
			c.JSON(http.StatusInternalServerError, responses.ErrorResponse{
				Error:   "JOB_CREATE_ERROR",
				Message: "Không thể tạo job: " + err.Error(),
			})
		}
		return
	}

	jc.logger.Info("Đã tạo batch job",
		zap.String("job_id", jobID),
		zap.Int("total", len(addresses)),
		zap.String("address_column", column))

	c.JSON(http.StatusAccepted, responses.CreateJobResponse{
		JobID:            jobID,
		Total:            len(addresses),
		EstimatedSeconds: jc.batch.EstimateProcessingSeconds(len(addresses)),
		AddressColumn:    column,
		Message:          "Job đã được tạo và đang xử lý",
	})
}

// resolveColumn chọn cột địa chỉ: cột client chỉ định nếu tồn tại, ngược lại
// cột tự phát hiện khi đủ tin cậy. Trả về "" kèm các ứng viên nếu không chọn được.
func resolveColumn(req requests.CreateJobRequest) (string, []detect.Candidate) {
	if req.AddressColumn != "" {
		if detect.HasColumn(req.Headers, req.AddressColumn) {
			return req.AddressColumn, nil
		}
		return "", detect.Candidates(req.Headers, req.Rows)
	}

	det := detect.Detect(req.Headers, req.Rows)
	if det == nil || !det.Auto {
		return "", detect.Candidates(req.Headers, req.Rows)
	}
	return det.Column, nil
}

// ListJobs danh sách job trong bộ nhớ
func (jc *JobController) ListJobs(c *gin.Context) {
	ids := jc.batch.Store().ListJobIDs()
	c.JSON(http.StatusOK, responses.JobListResponse{Jobs: ids, Total: len(ids)})
}

// GetJobStatus lấy tiến độ job
func (jc *JobController) GetJobStatus(c *gin.Context) {
	job, ok := jc.findJob(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, services.BuildProgress(job, time.Now()))
}

// GetJobResults lấy kết quả job với hỗ trợ NDJSON + gzip streaming
func (jc *JobController) GetJobResults(c *gin.Context) {
	job, ok := jc.finishedJob(c)
	if !ok {
		return
	}

	if c.Query("format") == "ndjson" {
		jc.streamNDJSONResults(c, job, c.Query("gzip") == "1")
		return
	}

	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success: true,
		Message: "Lấy kết quả thành công",
		Data: responses.JobResultsResponse{
			JobID:   job.ID,
			Status:  job.Status,
			Total:   len(job.Results),
			Results: job.Results,
		},
	})
}

// GetJobReport trả về Markdown report đã ghi của job
func (jc *JobController) GetJobReport(c *gin.Context) {
	job, ok := jc.completedJob(c)
	if !ok {
		return
	}
	if jc.files == nil {
		c.JSON(http.StatusNotFound, responses.ErrorResponse{
			Error:   "REPORT_NOT_FOUND",
			Message: "Không có nơi lưu file kết quả",
		})
		return
	}

	name := artifact.ReportName(job.ID)
	rc, err := jc.files.Open(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			c.JSON(http.StatusNotFound, responses.ErrorResponse{
				Error:   "REPORT_NOT_FOUND",
				Message: "Report chưa được ghi",
				Details: job.Artifacts,
			})
			return
		}
		jc.logger.Error("Lỗi đọc report", zap.String("job_id", job.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, responses.ErrorResponse{
			Error:   "REPORT_READ_ERROR",
			Message: "Lỗi đọc report: " + err.Error(),
		})
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, artifact.ContentType(name), rc, nil)
}

// GetJobPoints trả về tọa độ thành công cho viewer. Có q thì tìm qua point
// index nếu được cấu hình, không thì lọc trên kết quả trong bộ nhớ.
func (jc *JobController) GetJobPoints(c *gin.Context) {
	job, ok := jc.completedJob(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPointLimit)))
	if err != nil || limit <= 0 || limit > maxPointLimit {
		c.JSON(http.StatusBadRequest, responses.ErrorResponse{
			Error:   "INVALID_LIMIT",
			Message: "limit phải nằm trong khoảng 1-" + strconv.Itoa(maxPointLimit),
		})
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	var points []models.Point
	if query != "" && jc.points != nil {
		points, err = jc.points.Search(c.Request.Context(), job.ID, query, limit)
		if err != nil {
			jc.logger.Error("Lỗi tìm point index", zap.String("job_id", job.ID), zap.Error(err))
			c.JSON(http.StatusBadGateway, responses.ErrorResponse{
				Error:   "SEARCH_ERROR",
				Message: "Lỗi tìm kiếm: " + err.Error(),
			})
			return
		}
	} else {
		points = filterPoints(models.PointsFromResults(job.Results), query, limit)
	}

	c.JSON(http.StatusOK, responses.PointsResponse{
		JobID:  job.ID,
		Query:  query,
		Count:  len(points),
		Points: points,
	})
}

// CancelJob hủy job đang chạy
func (jc *JobController) CancelJob(c *gin.Context) {
	jobID, ok := jc.jobID(c)
	if !ok {
		return
	}
	if !jc.batch.Cancel(jobID) {
		c.JSON(http.StatusConflict, responses.ErrorResponse{
			Error:   "JOB_NOT_RUNNING",
			Message: "Job không chạy",
		})
		return
	}
	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success: true,
		Message: "Đã gửi yêu cầu hủy job",
		Data:    gin.H{"job_id": jobID},
	})
}

// DeleteJob hủy (nếu đang chạy) và xóa job
func (jc *JobController) DeleteJob(c *gin.Context) {
	jobID, ok := jc.jobID(c)
	if !ok {
		return
	}
	if !jc.batch.Evict(c.Request.Context(), jobID) {
		c.JSON(http.StatusNotFound, responses.ErrorResponse{
			Error:   "JOB_NOT_FOUND",
			Message: "Không tìm thấy job",
		})
		return
	}
	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success:   true,
		Message:   "Đã xóa job",
		Data:      gin.H{"job_id": jobID},
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (jc *JobController) jobID(c *gin.Context) (string, bool) {
	jobID := c.Param("jobID")
	if !utils.IsValidJobID(jobID) {
		c.JSON(http.StatusBadRequest, responses.ErrorResponse{
			Error:   "INVALID_JOB_ID",
			Message: "Job ID không hợp lệ",
		})
		return "", false
	}
	return jobID, true
}

func (jc *JobController) findJob(c *gin.Context) (models.Job, bool) {
	jobID, ok := jc.jobID(c)
	if !ok {
		return models.Job{}, false
	}

	job, err := jc.batch.FindJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, responses.ErrorResponse{
				Error:   "JOB_NOT_FOUND",
				Message: "Không tìm thấy job",
			})
			return models.Job{}, false
		}
		jc.logger.Error("Lỗi đọc job", zap.String("job_id", jobID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, responses.ErrorResponse{
			Error:   "JOB_READ_ERROR",
			Message: "Lỗi đọc job: " + err.Error(),
		})
		return models.Job{}, false
	}
	return job, true
}

func (jc *JobController) completedJob(c *gin.Context) (models.Job, bool) {
	job, ok := jc.findJob(c)
	if !ok {
		return models.Job{}, false
	}
	if job.Status != models.JobStatusCompleted {
		c.JSON(http.StatusConflict, responses.ErrorResponse{
			Error:   "JOB_NOT_COMPLETED",
			Message: "Job chưa hoàn thành",
			Details: gin.H{"status": job.Status, "error": job.Error},
		})
		return models.Job{}, false
	}
	return job, true
}

// finishedJob job đã kết thúc: completed, hoặc failed kèm các dòng đã xử lý
// trước khi dừng
func (jc *JobController) finishedJob(c *gin.Context) (models.Job, bool) {
	job, ok := jc.findJob(c)
	if !ok {
		return models.Job{}, false
	}
	if !job.Status.IsTerminal() {
		c.JSON(http.StatusConflict, responses.ErrorResponse{
			Error:   "JOB_NOT_COMPLETED",
			Message: "Job chưa kết thúc",
			Details: gin.H{"status": job.Status},
		})
		return models.Job{}, false
	}
	return job, true
}

// streamNDJSONResults stream kết quả theo format NDJSON với hỗ trợ gzip
func (jc *JobController) streamNDJSONResults(c *gin.Context, job models.Job, gzipEnabled bool) {
	c.Header("Content-Type", "application/x-ndjson")

	var writer io.Writer = c.Writer
	if gzipEnabled {
		c.Header("Content-Encoding", "gzip")
		gzWriter := gzip.NewWriter(c.Writer)
		defer gzWriter.Close()
		writer = &gzipResponseWriter{
			ResponseWriter: c.Writer,
			gzWriter:       gzWriter,
		}
	}
	c.Status(http.StatusOK)

	encoder := json.NewEncoder(writer)
	for result := range jc.batch.ResultsStream(c.Request.Context(), job) {
		if err := encoder.Encode(result); err != nil {
			jc.logger.Error("Lỗi encode NDJSON", zap.String("job_id", job.ID), zap.Error(err))
			break
		}

		if flusher, ok := writer.(http.Flusher); ok {
			flusher.Flush()
		}
	}
}

// filterPoints lọc theo từ khóa trên địa chỉ chuẩn hóa hoặc địa chỉ gốc
func filterPoints(points []models.Point, query string, limit int) []models.Point {
	out := make([]models.Point, 0, min(len(points), limit))
	for _, p := range points {
		if len(out) == limit {
			break
		}
		if query == "" || strings.Contains(p.Address, query) || strings.Contains(p.Original, query) {
			out = append(out, p)
		}
	}
	return out
}

// gzipResponseWriter wrapper cho gzip writer
type gzipResponseWriter struct {
	gin.ResponseWriter
	gzWriter *gzip.Writer
}

func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	return w.gzWriter.Write(data)
}

func (w *gzipResponseWriter) Flush() {
	w.gzWriter.Flush()
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
