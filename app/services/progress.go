package services

import (
	"math"
	"time"

	"github.com/address-geocoder/app/models"
)

// BuildProgress dựng dữ liệu tiến độ cho client polling. Không bao giờ chia
// cho 0: total 0 cho percent 0, elapsed <= 0 cho speed 0 và không có ETA.
func BuildProgress(job models.Job, now time.Time) models.JobProgress {
	progress := models.JobProgress{
		JobID:          job.ID,
		Status:         job.Status,
		TotalCount:     job.TotalCount,
		ProcessedCount: job.ProcessedCount,
		SuccessCount:   job.SuccessCount,
		FailedCount:    job.FailedCount,
		SkippedCount:   job.SkippedCount,
		CurrentAddress: job.CurrentAddress,
		StartTime:      job.StartTime,
		EndTime:        job.EndTime,
		Error:          job.Error,
		Checkpoints:    len(job.Checkpoints),
		Artifacts:      job.Artifacts,
	}

	if job.TotalCount > 0 {
		progress.ProgressPercent = int(math.Round(float64(job.ProcessedCount) / float64(job.TotalCount) * 100))
	}

	// job đã kết thúc thì tốc độ tính tới EndTime
	end := now
	if job.EndTime != nil {
		end = *job.EndTime
	}
	elapsed := end.Sub(job.StartTime).Seconds()
	if elapsed > 0 {
		progress.ProcessingSpeed = float64(job.ProcessedCount) / elapsed
	}

	if progress.ProcessingSpeed > 0 {
		remaining := float64(job.TotalCount-job.ProcessedCount) / progress.ProcessingSpeed
		progress.EstimatedTimeRemaining = &remaining
	}

	return progress
}
