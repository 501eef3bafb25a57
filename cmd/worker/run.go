package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/address-geocoder/app/bootstrap"
	"github.com/address-geocoder/app/config"
	"github.com/address-geocoder/app/models"
	"github.com/address-geocoder/app/services"
	"github.com/address-geocoder/helpers/utils"
	"github.com/address-geocoder/internal/aggregate"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	progressInterval = 2 * time.Second
	summaryTopN      = 5
)

type runOptions struct {
	input   string
	column  string
	workers int
	output  string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Chạy một batch geocode từ file CSV hoặc text",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "file input (.csv có header hoặc text mỗi dòng một địa chỉ)")
	cmd.Flags().StringVarP(&opts.column, "column", "c", "", "tên cột địa chỉ trong CSV (tự phát hiện nếu bỏ trống)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "số worker song song (mặc định theo config)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "thư mục ghi file kết quả (ghi đè artifacts.output_dir)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runBatch(ctx context.Context, cmd *cobra.Command, opts *runOptions) error {
	cfg, warnings, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Batch.Workers = opts.workers
	}
	if opts.output != "" {
		cfg.Artifacts.Driver = config.ArtifactLocal
		cfg.Artifacts.OutputDir = opts.output
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()
	for _, w := range warnings {
		logger.Debug(w)
	}

	in, err := readInputFile(opts.input, opts.column)
	if err != nil {
		return err
	}
	if in.Column != "" {
		logger.Info("Cột địa chỉ", zap.String("column", in.Column), zap.Int("rows", len(in.Addresses)))
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	if err := app.Batch.Validate(in.Addresses); err != nil {
		return err
	}

	jobID := utils.NewJobID()
	if _, err := app.Jobs.CreateJob(jobID, len(in.Addresses)); err != nil {
		return err
	}
	logger.Info("Bắt đầu batch job",
		zap.String("job_id", jobID),
		zap.Int("total", len(in.Addresses)),
		zap.Int("estimated_seconds", app.Batch.EstimateProcessingSeconds(len(in.Addresses))))

	done := make(chan struct{})
	go logProgress(app.Jobs, jobID, logger, done)

	results, procErr := app.Batch.Process(ctx, jobID, in.Addresses)
	close(done)
	if services.IsCanceled(procErr) {
		logger.Warn("Job bị hủy, tổng kết theo các dòng đã xử lý", zap.String("job_id", jobID), zap.Int("rows", len(results)))
	}

	job, ok := app.Jobs.GetJob(jobID)
	if !ok {
		return fmt.Errorf("job %s không còn trong store", jobID)
	}
	if err := printSummary(cmd.OutOrStdout(), job, results, time.Now()); err != nil {
		return err
	}
	return procErr
}

// logProgress log tiến độ định kỳ tới khi done đóng
func logProgress(store *services.JobStore, jobID string, logger *zap.Logger, done <-chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			job, ok := store.GetJob(jobID)
			if !ok {
				return
			}
			p := services.BuildProgress(job, now)
			fields := []zap.Field{
				zap.Int("processed", p.ProcessedCount),
				zap.Int("total", p.TotalCount),
				zap.Int("percent", p.ProgressPercent),
				zap.Float64("speed", p.ProcessingSpeed),
			}
			if p.EstimatedTimeRemaining != nil {
				fields = append(fields, zap.Float64("eta_seconds", *p.EstimatedTimeRemaining))
			}
			logger.Info("Tiến độ", fields...)
		}
	}
}

// printSummary in bảng tổng kết job và top khu vực
func printSummary(w io.Writer, job models.Job, results []models.ProcessedAddress, now time.Time) error {
	p := services.BuildProgress(job, now)

	table := tablewriter.NewWriter(w)
	table.Header("항목", "값")
	rows := [][]string{
		{"작업 ID", job.ID},
		{"상태", string(job.Status)},
		{"전체", strconv.Itoa(job.TotalCount)},
		{"성공", strconv.Itoa(job.SuccessCount)},
		{"실패", strconv.Itoa(job.FailedCount)},
		{"중복 재사용", strconv.Itoa(job.SkippedCount)},
		{"처리 속도", fmt.Sprintf("%.2f건/초", p.ProcessingSpeed)},
	}
	if job.EndTime != nil {
		rows = append(rows, []string{"소요 시간", job.EndTime.Sub(job.StartTime).Round(time.Millisecond).String()})
	}
	if job.Error != "" {
		rows = append(rows, []string{"오류", job.Error})
	}
	if len(job.Artifacts.Files) > 0 {
		rows = append(rows, []string{"파일", strings.Join(job.Artifacts.Files, "\n")})
	}
	if job.Artifacts.Error != "" {
		rows = append(rows, []string{"파일 오류", job.Artifacts.Error})
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	regions := aggregate.Regions(aggregate.SuccessfulAddresses(results), summaryTopN)
	if len(regions.Top) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	regionTable := tablewriter.NewWriter(w)
	regionTable.Header("지역", "건수", "비율")
	for _, r := range regions.Top {
		if err := regionTable.Append([]string{r.FullName, strconv.Itoa(r.Count), fmt.Sprintf("%.1f%%", r.Percentage)}); err != nil {
			return err
		}
	}
	return regionTable.Render()
}
