package controllers

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/address-geocoder/app/models"
	"github.com/address-geocoder/app/responses"
	"github.com/address-geocoder/app/services"
	"github.com/address-geocoder/helpers/utils"
	"github.com/address-geocoder/internal/artifact"
	"github.com/address-geocoder/internal/dispatcher"
	"github.com/address-geocoder/internal/geocode"
	"github.com/address-geocoder/internal/normalizer"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// seoulGeocoder chỉ tìm được địa chỉ ở Seoul
type seoulGeocoder struct{}

func (seoulGeocoder) Geocode(_ context.Context, address string) (*models.GeocodeResult, error) {
	if !strings.Contains(address, "서울") {
		return &models.GeocodeResult{Address: address, Status: models.GeocodeStatusFailed, Error: services.MsgNoResult}, nil
	}
	lat, lng := 37.5665, 126.978
	return &models.GeocodeResult{
		Address:     address,
		Lat:         &lat,
		Lng:         &lng,
		Status:      models.GeocodeStatusSuccess,
		Confidence:  90,
		RoadAddress: address,
	}, nil
}

type fakeSearcher struct {
	points []models.Point
	err    error
	query  string
}

func (f *fakeSearcher) Search(_ context.Context, _ string, query string, _ int) ([]models.Point, error) {
	f.query = query
	return f.points, f.err
}

type fakeGeocodeAdmin struct {
	cleared bool
	err     error
}

func (f *fakeGeocodeAdmin) CacheStats() geocode.CacheStats {
	return geocode.CacheStats{Hits: 3, Misses: 1, HitRate: 0.75}
}

func (f *fakeGeocodeAdmin) DispatcherStats() dispatcher.Stats {
	return dispatcher.Stats{Queued: 2, Active: 1, MinIntervalMs: 100}
}

func (f *fakeGeocodeAdmin) ClearCache(context.Context) error {
	f.cleared = true
	return f.err
}

type testServer struct {
	router *gin.Engine
	batch  *services.BatchService
	files  *artifact.LocalStore
	admin  *fakeGeocodeAdmin
	cache  *services.CacheService
	points *fakeSearcher
}

func newTestServer(t *testing.T, withSearcher bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	store := services.NewJobStore(10, logger)
	files := artifact.NewLocalStore(t.TempDir())
	batch := services.NewBatchService(store, normalizer.MustNew(), seoulGeocoder{}, artifact.NewWriter(files, 20, logger),
		services.BatchOptions{Workers: 1, MaxRows: 100, RequestsPerSecond: 10}, logger)
	t.Cleanup(func() { _ = batch.Shutdown(context.Background()) })

	ts := &testServer{
		batch: batch,
		files: files,
		admin: &fakeGeocodeAdmin{},
		cache: services.NewCacheService(time.Hour),
	}

	var searcher PointSearcher
	if withSearcher {
		ts.points = &fakeSearcher{}
		searcher = ts.points
	}

	jobs := NewJobController(batch, files, searcher, logger)
	fileCtrl := NewFileController(files, logger)
	admin := NewAdminController(ts.admin, ts.cache, store, normalizer.MustNew(), logger)

	r := gin.New()
	v1 := r.Group("/v1")
	v1.POST("/jobs", jobs.CreateJob)
	v1.GET("/jobs", jobs.ListJobs)
	v1.GET("/jobs/:jobID/status", jobs.GetJobStatus)
	v1.GET("/jobs/:jobID/results", jobs.GetJobResults)
	v1.GET("/jobs/:jobID/report", jobs.GetJobReport)
	v1.GET("/jobs/:jobID/points", jobs.GetJobPoints)
	v1.POST("/jobs/:jobID/cancel", jobs.CancelJob)
	v1.DELETE("/jobs/:jobID", jobs.DeleteJob)
	v1.GET("/files/:filename", fileCtrl.Download)
	v1.POST("/detect", admin.DetectColumn)
	v1.POST("/normalize", admin.Normalize)
	v1.GET("/cache/stats", admin.GetCacheStats)
	v1.POST("/cache/clear", admin.ClearCache)
	r.GET("/health", admin.HealthCheck)
	ts.router = r
	return ts
}

func (ts *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// completedJob tạo và xử lý đồng bộ một job
func (ts *testServer) completedJob(t *testing.T, addresses []string) string {
	t.Helper()
	jobID := utils.NewJobID()
	_, err := ts.batch.Store().CreateJob(jobID, len(addresses))
	require.NoError(t, err)
	_, err = ts.batch.Process(context.Background(), jobID, addresses)
	require.NoError(t, err)
	return jobID
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestCreateJob_Addresses(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(http.MethodPost, "/v1/jobs", gin.H{"addresses": []string{"서울 중구 세종대로 110", "부산 해운대구 우동"}})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	resp := decode[responses.CreateJobResponse](t, w)
	assert.True(t, utils.IsValidJobID(resp.JobID))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 1, resp.EstimatedSeconds)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ts.batch.Wait(ctx))

	status := decode[models.JobProgress](t, ts.do(http.MethodGet, "/v1/jobs/"+resp.JobID+"/status", nil))
	assert.Equal(t, models.JobStatusCompleted, status.Status)
	assert.Equal(t, 2, status.ProcessedCount)
	assert.Equal(t, 1, status.SuccessCount)
	assert.Equal(t, 1, status.FailedCount)
	assert.Equal(t, 100, status.ProgressPercent)
	assert.True(t, status.Artifacts.Written)

	list := decode[responses.JobListResponse](t, ts.do(http.MethodGet, "/v1/jobs", nil))
	assert.Equal(t, []string{resp.JobID}, list.Jobs)
}

func TestCreateJob_Validation(t *testing.T) {
	ts := newTestServer(t, false)

	testCases := []struct {
		name string
		body interface{}
		code string
	}{
		{"malformed", "not-an-object", "INVALID_REQUEST"},
		{"empty", gin.H{"addresses": []string{}}, "NO_ADDRESSES"},
		{"too many", gin.H{"addresses": make([]string, 101)}, "TOO_MANY_ADDRESSES"},
		{
			"unknown explicit column",
			gin.H{
				"headers":        []string{"이름", "주소"},
				"rows":           []map[string]string{{"이름": "a", "주소": "서울특별시 중구"}},
				"address_column": "없는컬럼",
			},
			"UNKNOWN_COLUMN",
		},
		{
			"no detectable column",
			gin.H{
				"headers": []string{"name", "phone"},
				"rows":    []map[string]string{{"name": "kim", "phone": "010-1234-5678"}},
			},
			"UNKNOWN_COLUMN",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/v1/jobs", tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, tc.code, decode[responses.ErrorResponse](t, w).Error)
		})
	}

	assert.Zero(t, ts.batch.Store().Len())
}

func TestCreateJob_TabularDetectsColumn(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(http.MethodPost, "/v1/jobs", gin.H{
		"headers": []string{"이름", "주소"},
		"rows": []map[string]string{
			{"이름": "홍길동", "주소": "서울특별시 중구 세종대로 110"},
			{"이름": "김철수", "주소": "서울특별시 강남구 테헤란로 152"},
		},
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	resp := decode[responses.CreateJobResponse](t, w)
	assert.Equal(t, "주소", resp.AddressColumn)
	assert.Equal(t, 2, resp.Total)
}

func TestGetJobResults(t *testing.T) {
	ts := newTestServer(t, false)
	jobID := ts.completedJob(t, []string{"서울 중구 세종대로 110", "대전 서구 둔산로 100", "서울 중구 세종대로 110"})

	t.Run("json", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/v1/jobs/"+jobID+"/results", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data responses.JobResultsResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Data.Results, 3)
		assert.Equal(t, models.ProcessedSuccess, resp.Data.Results[0].Status)
		assert.Equal(t, models.ProcessedFailed, resp.Data.Results[1].Status)
		assert.True(t, resp.Data.Results[2].Reused)
	})

	t.Run("ndjson gzip", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/v1/jobs/"+jobID+"/results?format=ndjson&gzip=1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
		assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

		gz, err := gzip.NewReader(w.Body)
		require.NoError(t, err)
		var rows []models.ProcessedAddress
		scanner := bufio.NewScanner(gz)
		for scanner.Scan() {
			var row models.ProcessedAddress
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &row))
			rows = append(rows, row)
		}
		require.Len(t, rows, 3)
		for i, row := range rows {
			assert.Equal(t, i, row.Index)
		}
	})

	t.Run("not completed", func(t *testing.T) {
		pending := utils.NewJobID()
		_, err := ts.batch.Store().CreateJob(pending, 1)
		require.NoError(t, err)

		w := ts.do(http.MethodGet, "/v1/jobs/"+pending+"/results", nil)
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "JOB_NOT_COMPLETED", decode[responses.ErrorResponse](t, w).Error)
	})

	t.Run("failed job keeps processed rows", func(t *testing.T) {
		canceled := utils.NewJobID()
		store := ts.batch.Store()
		_, err := store.CreateJob(canceled, 3)
		require.NoError(t, err)

		failed := models.JobStatusFailed
		msg := services.MsgCanceled
		require.True(t, store.UpdateJob(canceled, services.JobUpdate{
			Status:  &failed,
			Error:   &msg,
			Results: []models.ProcessedAddress{{Index: 0, OriginalAddress: "서울 중구", Status: models.ProcessedSuccess}},
		}))

		w := ts.do(http.MethodGet, "/v1/jobs/"+canceled+"/results", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data responses.JobResultsResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, models.JobStatusFailed, resp.Data.Status)
		require.Len(t, resp.Data.Results, 1)
		assert.Equal(t, "서울 중구", resp.Data.Results[0].OriginalAddress)
	})

	t.Run("invalid and missing id", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/v1/jobs/abc/results", nil).Code)
		assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/v1/jobs/"+utils.NewJobID()+"/status", nil).Code)
	})
}

func TestGetJobReportAndFiles(t *testing.T) {
	ts := newTestServer(t, false)
	jobID := ts.completedJob(t, []string{"서울 중구 세종대로 110", "대전 서구 둔산로 100"})

	w := ts.do(http.MethodGet, "/v1/jobs/"+jobID+"/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# 주소 지오코딩 분석 리포트")

	w = ts.do(http.MethodGet, "/v1/files/"+artifact.ResultsName(jobID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, artifact.ContentTypeCSV, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), artifact.ResultsName(jobID))
	assert.Contains(t, w.Body.String(), "원본주소,정규화된주소,위도,경도,신뢰도,도로명주소,지번주소")

	w = ts.do(http.MethodGet, "/v1/files/"+artifact.ErrorsName(jobID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/v1/files/results_missing.csv", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/v1/files/a..csv", nil).Code)
}

func TestGetJobPoints(t *testing.T) {
	t.Run("from results", func(t *testing.T) {
		ts := newTestServer(t, false)
		jobID := ts.completedJob(t, []string{"서울 중구 세종대로 110", "서울 강남구 테헤란로 152", "대전 서구 둔산로 100"})

		resp := decode[responses.PointsResponse](t, ts.do(http.MethodGet, "/v1/jobs/"+jobID+"/points", nil))
		assert.Equal(t, 2, resp.Count)

		resp = decode[responses.PointsResponse](t, ts.do(http.MethodGet, "/v1/jobs/"+jobID+"/points?q=테헤란로", nil))
		require.Equal(t, 1, resp.Count)
		assert.Contains(t, resp.Points[0].Original, "테헤란로")

		resp = decode[responses.PointsResponse](t, ts.do(http.MethodGet, "/v1/jobs/"+jobID+"/points?limit=1", nil))
		assert.Equal(t, 1, resp.Count)

		assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/v1/jobs/"+jobID+"/points?limit=0", nil).Code)
	})

	t.Run("through searcher", func(t *testing.T) {
		ts := newTestServer(t, true)
		jobID := ts.completedJob(t, []string{"서울 중구 세종대로 110"})
		ts.points.points = []models.Point{{Lat: 1, Lng: 2, Address: "found"}}

		resp := decode[responses.PointsResponse](t, ts.do(http.MethodGet, "/v1/jobs/"+jobID+"/points?q=세종대로", nil))
		assert.Equal(t, "세종대로", ts.points.query)
		require.Equal(t, 1, resp.Count)
		assert.Equal(t, "found", resp.Points[0].Address)

		ts.points.err = errors.New("meili down")
		assert.Equal(t, http.StatusBadGateway, ts.do(http.MethodGet, "/v1/jobs/"+jobID+"/points?q=x", nil).Code)
	})
}

func TestDeleteAndCancelJob(t *testing.T) {
	ts := newTestServer(t, false)
	jobID := ts.completedJob(t, []string{"서울 중구 세종대로 110"})

	assert.Equal(t, http.StatusConflict, ts.do(http.MethodPost, "/v1/jobs/"+jobID+"/cancel", nil).Code)

	require.Equal(t, http.StatusOK, ts.do(http.MethodDelete, "/v1/jobs/"+jobID, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, "/v1/jobs/"+jobID, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/v1/jobs/"+jobID+"/status", nil).Code)
}

func TestAdminController(t *testing.T) {
	ts := newTestServer(t, false)

	t.Run("cache stats", func(t *testing.T) {
		require.NoError(t, ts.cache.Set(context.Background(), "서울특별시 중구", &models.GeocodeResult{Status: models.GeocodeStatusSuccess}))

		resp := decode[responses.CacheStatsResponse](t, ts.do(http.MethodGet, "/v1/cache/stats", nil))
		require.NotNil(t, resp.Cache)
		assert.Equal(t, int64(1), resp.Cache.TotalItems)
		assert.Equal(t, int64(3), resp.Client.Hits)
		assert.Equal(t, int64(2), resp.Dispatcher.Queued)
		assert.Equal(t, int64(100), resp.Dispatcher.MinIntervalMs)
	})

	t.Run("clear cache", func(t *testing.T) {
		require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/v1/cache/clear", nil).Code)
		assert.True(t, ts.admin.cleared)

		ts.admin.err = errors.New("redis down")
		w := ts.do(http.MethodPost, "/v1/cache/clear", nil)
		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "CACHE_CLEAR_ERROR", decode[responses.ErrorResponse](t, w).Error)
	})

	t.Run("detect", func(t *testing.T) {
		w := ts.do(http.MethodPost, "/v1/detect", gin.H{
			"headers": []string{"이름", "배송지"},
			"rows":    []map[string]string{{"이름": "홍길동", "배송지": "서울특별시 강남구 테헤란로 152"}},
		})
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[responses.DetectColumnResponse](t, w)
		require.NotNil(t, resp.Detection)
		assert.Equal(t, "배송지", resp.Detection.Column)
		assert.NotEmpty(t, resp.Candidates)

		assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/v1/detect", gin.H{}).Code)
	})

	t.Run("normalize", func(t *testing.T) {
		w := ts.do(http.MethodPost, "/v1/normalize", gin.H{"addresses": []string{"서울 중구 세종대로 110"}})
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[responses.NormalizeResponse](t, w)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "서울 중구 세종대로 110", resp.Results[0].Original)
		assert.NotEmpty(t, resp.Results[0].Normalized)
	})

	t.Run("health", func(t *testing.T) {
		resp := decode[responses.HealthCheckResponse](t, ts.do(http.MethodGet, "/health", nil))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "healthy", resp.Services["cache"])
		assert.Equal(t, Version, resp.Version)
	})
}
