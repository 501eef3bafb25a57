package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/address-geocoder/app/bootstrap"
	"github.com/address-geocoder/app/config"
	"github.com/address-geocoder/app/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newReindexCmd index lại tọa độ của job đã archive vào Meilisearch
func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex <job-id...>",
		Short: "Index lại tọa độ của job đã archive vào Meilisearch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.Load()
			if err != nil {
				return err
			}
			cfg.Archive.Enabled = true
			cfg.Search.Enabled = true

			logger, err := bootstrap.NewLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			app, err := bootstrap.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			if app.Points == nil {
				return errors.New("meilisearch không khả dụng")
			}

			var errs []error
			for _, jobID := range args {
				job, err := app.Batch.FindJob(ctx, jobID)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", jobID, err))
					continue
				}
				if job.Status != models.JobStatusCompleted {
					errs = append(errs, fmt.Errorf("%s: job ở trạng thái %s", jobID, job.Status))
					continue
				}
				if err := app.Points.DeleteJob(ctx, jobID); err != nil {
					logger.Warn("Lỗi xóa point cũ", zap.String("job_id", jobID), zap.Error(err))
				}
				if err := app.Points.IndexJob(ctx, jobID, job.Results); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", jobID, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d điểm\n", jobID, len(models.PointsFromResults(job.Results)))
			}
			return errors.Join(errs...)
		},
	}
}
