package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/address-geocoder/app/bootstrap"
	"github.com/address-geocoder/app/config"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, warnings, err := config.Load()
	if err != nil {
		log.Fatalf("Cấu hình không hợp lệ: %v", err)
	}

	logger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Không thể khởi tạo logger: %v", err)
	}
	defer logger.Sync()

	for _, w := range warnings {
		logger.Warn(w)
	}
	logger.Info("Starting Address Geocoder Service...")

	app, err := bootstrap.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Khởi tạo service thất bại", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown lỗi", zap.Error(err))
	}
	// hủy các job đang chạy, đợi chúng ghi trạng thái failed
	if err := app.Close(ctx); err != nil {
		logger.Error("Lỗi đóng tài nguyên", zap.Error(err))
	}

	logger.Info("Server exited")
}
