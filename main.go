package main

import (
	"context"
	"log"

	"github.com/address-geocoder/app/bootstrap"
	"github.com/address-geocoder/app/config"
	"go.uber.org/zap"
)

func main() {
	// 1. Load configuration
	cfg, warnings, err := config.Load()
	if err != nil {
		log.Fatalf("Cấu hình không hợp lệ: %v", err)
	}

	// 2. Khởi tạo logger
	logger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Không thể khởi tạo logger: %v", err)
	}
	defer logger.Sync()

	for _, w := range warnings {
		logger.Warn(w)
	}
	logger.Info("Starting Address Geocoder Service")

	// 3. Khởi tạo stores, geocode client và batch service
	app, err := bootstrap.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Khởi tạo service thất bại", zap.Error(err))
	}
	defer app.Close(context.Background())

	// 4. Khởi động server
	router := app.Router()
	logger.Info("Address Geocoder Service starting", zap.String("port", cfg.App.Port))
	if err := router.Run(":" + cfg.App.Port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
