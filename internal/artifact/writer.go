package artifact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/address-geocoder/app/models"
	"github.com/address-geocoder/internal/aggregate"
	"github.com/address-geocoder/internal/report"
	"go.uber.org/zap"
)

// Writer dựng và lưu toàn bộ file kết quả của một job
type Writer struct {
	store  Store
	topN   int
	now    func() time.Time
	logger *zap.Logger
}

// NewWriter tạo mới Writer. topN <= 0 dùng aggregate.DefaultTopN.
func NewWriter(store Store, topN int, logger *zap.Logger) *Writer {
	if topN <= 0 {
		topN = aggregate.DefaultTopN
	}
	return &Writer{store: store, topN: topN, now: time.Now, logger: logger}
}

// Store nơi lưu file
func (w *Writer) Store() Store {
	return w.store
}

type artifactFile struct {
	name        string
	contentType string
	render      func() ([]byte, error)
}

// WriteJobArtifacts ghi results CSV, errors CSV (khi có dòng thất bại), báo cáo
// Markdown và hai file thống kê. Một file lỗi không chặn các file còn lại;
// trả về tên các file đã ghi và lỗi gộp.
func (w *Writer) WriteJobArtifacts(ctx context.Context, job models.Job) ([]string, error) {
	successful := aggregate.SuccessfulAddresses(job.Results)

	files := []artifactFile{
		{ResultsName(job.ID), ContentTypeCSV, func() ([]byte, error) { return ResultsCSV(job.Results) }},
	}
	if HasFailures(job.Results) {
		files = append(files, artifactFile{ErrorsName(job.ID), ContentTypeCSV, func() ([]byte, error) { return ErrorsCSV(job.Results) }})
	}
	files = append(files,
		artifactFile{ReportName(job.ID), ContentTypeMarkdown, func() ([]byte, error) {
			return []byte(report.Generate(w.reportData(job), report.Options{TopN: w.topN, IncludeErrors: true})), nil
		}},
		artifactFile{AddressCountsName(job.ID), ContentTypeCSV, func() ([]byte, error) {
			return AddressCountsCSV(aggregate.Addresses(successful, w.topN).Top)
		}},
		artifactFile{RegionCountsName(job.ID), ContentTypeCSV, func() ([]byte, error) {
			return RegionCountsCSV(aggregate.Regions(successful, w.topN).Top)
		}},
	)

	var written []string
	var errs []error
	for _, f := range files {
		data, err := f.render()
		if err != nil {
			errs = append(errs, fmt.Errorf("lỗi dựng %s: %w", f.name, err))
			continue
		}
		if err := w.store.Put(ctx, f.name, data, f.contentType); err != nil {
			errs = append(errs, err)
			continue
		}
		written = append(written, f.name)
	}

	if len(errs) > 0 {
		return written, errors.Join(errs...)
	}

	w.logger.Info("Đã lưu file kết quả",
		zap.String("job_id", job.ID),
		zap.Strings("files", written))
	return written, nil
}

func (w *Writer) reportData(job models.Job) report.Data {
	success, failed := 0, 0
	for _, r := range job.Results {
		if r.IsSuccess() {
			success++
		} else {
			failed++
		}
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	}

	return report.Data{
		JobID:          job.ID,
		Source:         fmt.Sprintf("processed_%s", job.ID),
		GeneratedAt:    w.now(),
		Results:        job.Results,
		TotalCount:     len(job.Results),
		SuccessCount:   success,
		FailedCount:    failed,
		ProcessingTime: elapsed,
	}
}
