package main

import (
	"context"
	"io"
	"strconv"
	"os"
	"os/signal"
	"syscall"

	"github.com/address-geocoder/app/bootstrap"
	"github.com/address-geocoder/app/config"
	"github.com/address-geocoder/app/models"
	"github.com/address-geocoder/internal/normalizer"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newGeocodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geocode <address...>",
		Short: "Chuẩn hóa và geocode trực tiếp vài địa chỉ (không tạo job)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return geocodeAddresses(cmd.Context(), cmd.OutOrStdout(), args)
		},
	}
}

func geocodeAddresses(ctx context.Context, w io.Writer, addresses []string) error {
	cfg, warnings, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()
	for _, msg := range warnings {
		logger.Debug(msg)
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

	normalized := app.Normalizer.NormalizeBatch(addresses)
	queries := make([]string, len(normalized))
	for i, na := range normalized {
		queries[i] = na.Normalized
	}

	results, geoErr := app.Geocoder.GeocodeBatch(ctx, queries, func(processed, total int) {
		logger.Debug("Tiến độ geocode", zap.Int("processed", processed), zap.Int("total", total))
	})
	if err := printGeocodeTable(w, normalized, results); err != nil {
		return err
	}
	return geoErr
}

// printGeocodeTable in kết quả theo thứ tự input. results có thể ngắn hơn
// normalized khi bị hủy giữa chừng.
func printGeocodeTable(w io.Writer, normalized []normalizer.NormalizedAddress, results []*models.GeocodeResult) error {
	table := tablewriter.NewWriter(w)
	table.Header("원본주소", "정규화된주소", "상태", "위도", "경도", "신뢰도", "도로명주소/오류")
	for i, res := range results {
		if i >= len(normalized) || res == nil {
			break
		}
		detail := res.RoadAddress
		if !res.IsSuccess() {
			detail = res.Error
		}
		if err := table.Append([]string{
			normalized[i].Original,
			normalized[i].Normalized,
			string(res.Status),
			formatCoord(res.Lat),
			formatCoord(res.Lng),
			formatConfidence(res.Confidence),
			detail,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 6, 64)
}

func formatConfidence(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
