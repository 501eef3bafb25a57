package artifact

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/address-geocoder/app/models"
	"github.com/address-geocoder/internal/aggregate"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ptr(v float64) *float64 { return &v }

func sampleResults() []models.ProcessedAddress {
	return []models.ProcessedAddress{
		{
			Index: 0, OriginalAddress: "서울 강남구 테헤란로 152", NormalizedAddress: "서울특별시 강남구 테헤란로 152",
			Lat: ptr(37.5000776), Lng: ptr(127.0363149), Confidence: 95, Status: models.ProcessedSuccess,
			RoadAddress: "서울특별시 강남구 테헤란로 152", JibunAddress: "서울특별시 강남구 역삼동 737",
		},
		{Index: 1, OriginalAddress: "abc, \"x\"", NormalizedAddress: "abc, \"x\"", Status: models.ProcessedFailed, Error: "주소를 찾을 수 없습니다."},
		{Index: 2, OriginalAddress: "", Status: models.ProcessedFailed},
	}
}

func parseCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	require.True(t, bytes.HasPrefix(data, utf8BOM))
	records, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	return records
}

func TestResultsCSV(t *testing.T) {
	data, err := ResultsCSV(sampleResults())
	require.NoError(t, err)

	records := parseCSV(t, data)
	require.Len(t, records, 2)
	assert.Equal(t, resultsHeader, records[0])
	assert.Equal(t, []string{
		"서울 강남구 테헤란로 152", "서울특별시 강남구 테헤란로 152",
		"37.5000776", "127.0363149", "95",
		"서울특별시 강남구 테헤란로 152", "서울특별시 강남구 역삼동 737",
	}, records[1])
}

func TestErrorsCSV(t *testing.T) {
	data, err := ErrorsCSV(sampleResults())
	require.NoError(t, err)

	records := parseCSV(t, data)
	require.Len(t, records, 3)
	assert.Equal(t, errorsHeader, records[0])
	assert.Equal(t, []string{"abc, \"x\"", "주소를 찾을 수 없습니다."}, records[1])
	assert.Equal(t, []string{"", unknownError}, records[2])
}

func TestAggregateCSVs(t *testing.T) {
	addr, err := AddressCountsCSV([]aggregate.AddressCount{{Address: "서울특별시 중구", Count: 2, Percentage: 66.666}})
	require.NoError(t, err)
	assert.Equal(t, [][]string{addressCountsHeader, {"1", "서울특별시 중구", "2", "66.7"}}, parseCSV(t, addr))

	region, err := RegionCountsCSV([]aggregate.RegionCount{{Province: "세종특별자치시", FullName: "세종특별자치시", Count: 1, Percentage: 100}})
	require.NoError(t, err)
	assert.Equal(t, [][]string{regionCountsHeader, {"1", "세종특별자치시", "", "세종특별자치시", "1", "100.0"}}, parseCSV(t, region))
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"results_job_1.csv", "report_job_1.md", "a.b"} {
		assert.NoError(t, ValidateName(name), name)
	}
	for _, name := range []string{"", ".", "../etc/passwd", "a/b.csv", `a\b.csv`, "..", "x..y"} {
		assert.ErrorIs(t, ValidateName(name), ErrInvalidName, name)
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, ContentTypeCSV, ContentType("a.CSV"))
	assert.Equal(t, ContentTypeMarkdown, ContentType("report.md"))
	assert.Equal(t, ContentTypeBinary, ContentType("blob"))
}

func TestLocalStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	store := NewLocalStore(dir)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a.csv", []byte("hello"), ContentTypeCSV))
	require.NoError(t, store.Put(ctx, "a.csv", []byte("world"), ContentTypeCSV))

	rc, err := store.Open(ctx, "a.csv")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "world", string(body))

	// không còn file tạm
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = store.Open(ctx, "missing.csv")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Put(ctx, "../escape.csv", nil, ""), ErrInvalidName)
	_, err = store.Open(ctx, "../escape.csv")
	assert.ErrorIs(t, err, ErrInvalidName)
}

// memStore Store trong bộ nhớ, có thể cấu hình lỗi theo tên file
type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
	fail  map[string]error
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte), fail: make(map[string]error)}
}

func (m *memStore) Put(_ context.Context, name string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[name]; err != nil {
		return err
	}
	m.files[name] = data
	return nil
}

func (m *memStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func completedJob(results []models.ProcessedAddress) models.Job {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Second)
	return models.Job{ID: "job_w", Status: models.JobStatusCompleted, StartTime: start, EndTime: &end, Results: results}
}

func TestWriter_WritesAllArtifacts(t *testing.T) {
	store := newMemStore()
	w := NewWriter(store, 0, zap.NewNop())

	files, err := w.WriteJobArtifacts(context.Background(), completedJob(sampleResults()))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"results_job_w.csv",
		"errors_job_w.csv",
		"report_job_w.md",
		"address_counts_job_w.csv",
		"region_counts_job_w.csv",
	}, files)

	report := string(store.files["report_job_w.md"])
	assert.Contains(t, report, "**원본 파일:** processed_job_w")
	assert.Contains(t, report, "- **처리 시간:** 3.0초")
	assert.Contains(t, report, "| 1 | 서울특별시 강남구 | 1 | 100.0% |")
}

func TestWriter_SkipsErrorsCSVWithoutFailures(t *testing.T) {
	store := newMemStore()
	w := NewWriter(store, 5, zap.NewNop())

	files, err := w.WriteJobArtifacts(context.Background(), completedJob(sampleResults()[:1]))
	require.NoError(t, err)
	assert.NotContains(t, files, "errors_job_w.csv")
	assert.Len(t, files, 4)
}

func TestWriter_PartialFailure(t *testing.T) {
	store := newMemStore()
	store.fail["report_job_w.md"] = errors.New("disk full")
	w := NewWriter(store, 5, zap.NewNop())

	files, err := w.WriteJobArtifacts(context.Background(), completedJob(sampleResults()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, files, 4)
	assert.NotContains(t, files, "report_job_w.md")
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	f.types[*in.Key] = *in.ContentType
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Store(t *testing.T) {
	client := &fakeS3{objects: make(map[string][]byte), types: make(map[string]string)}
	store := newS3Store(client, "bucket", "geocoder/", zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a.csv", []byte("x"), ContentTypeCSV))
	assert.Equal(t, []byte("x"), client.objects["bucket/geocoder/a.csv"])
	assert.Equal(t, ContentTypeCSV, client.types["geocoder/a.csv"])

	rc, err := store.Open(ctx, "a.csv")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "x", string(body))

	_, err = store.Open(ctx, "missing.csv")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Put(ctx, "a/b", nil, ""), ErrInvalidName)
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "http://localhost:9000", endpointURL("localhost:9000", false))
	assert.Equal(t, "https://s3.example.com", endpointURL("s3.example.com/", true))
	assert.Equal(t, "https://r2.example.com", endpointURL("https://r2.example.com", false))
}
