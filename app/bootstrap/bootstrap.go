// Package bootstrap dựng toàn bộ dependency của service từ Config, dùng chung
// cho HTTP server và worker CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/address-geocoder/app/config"
	"github.com/address-geocoder/app/controllers"
	"github.com/address-geocoder/app/services"
	"github.com/address-geocoder/internal/artifact"
	"github.com/address-geocoder/internal/dispatcher"
	"github.com/address-geocoder/internal/geocode"
	"github.com/address-geocoder/internal/metrics"
	"github.com/address-geocoder/internal/normalizer"
	"github.com/address-geocoder/internal/search"
	"github.com/address-geocoder/routes"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const cacheCleanupInterval = 10 * time.Minute

// App các thành phần đã khởi tạo
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Normalizer *normalizer.Normalizer
	Cache      services.ICacheService
	Geocoder   *geocode.Client
	Jobs       *services.JobStore
	Batch      *services.BatchService
	Files      artifact.Store
	Points     *search.PointIndex // nil khi tắt search

	mongoClient *mongo.Client
	stopCleanup context.CancelFunc
}

// NewLogger khởi tạo structured logger theo môi trường và log level
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level không hợp lệ %q: %w", cfg.Log.Level, err)
	}
	zcfg.Level = level

	return zcfg.Build()
}

// New khởi tạo cache, geocode client, job store, artifact store, point index
// và BatchService theo cfg
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{
		Config:     cfg,
		Logger:     logger,
		Metrics:    metrics.New(),
		Normalizer: normalizer.MustNew(),
	}

	var db *mongo.Database
	if cfg.NeedsMongo() {
		client, err := initMongoDB(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, err
		}
		app.mongoClient = client
		db = client.Database(cfg.Mongo.Database)
	}

	cache, err := app.initCache(ctx, db)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}
	app.Cache = cache

	provider := geocode.NewNaverProvider(geocode.NaverConfig{
		BaseURL:      cfg.Geocode.BaseURL,
		ClientID:     cfg.Geocode.ClientID,
		ClientSecret: cfg.Geocode.ClientSecret,
		Timeout:      cfg.Geocode.Timeout,
	}, logger)
	d := dispatcher.New(dispatcher.Config{
		RequestsPerSecond: cfg.Dispatcher.RequestsPerSecond,
		MaxConcurrency:    cfg.Dispatcher.MaxConcurrency,
	}, app.Metrics, logger)
	app.Geocoder = geocode.NewClient(provider, d, cache, geocode.RetryConfig{
		MaxRetries:  cfg.Geocode.MaxRetries,
		BaseBackoff: cfg.Geocode.RetryBackoffBase,
		MaxBackoff:  cfg.Geocode.MaxBackoff,
	}, app.Metrics, logger)

	files, err := newArtifactStore(ctx, cfg.Artifacts, logger)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}
	app.Files = files

	batchOpts := []services.BatchOption{services.WithMetrics(app.Metrics)}

	if cfg.Search.Enabled {
		client, err := search.NewClient(search.Config{
			Host:      cfg.Search.Host,
			APIKey:    cfg.Search.APIKey,
			IndexName: cfg.Search.Index,
		}, logger)
		if err != nil {
			logger.Warn("Tắt point index do không kết nối được Meilisearch", zap.Error(err))
		} else {
			points := search.NewPointIndex(client, cfg.Search.Index, logger)
			if err := points.EnsureIndex(); err != nil {
				logger.Warn("Không thể cấu hình point index", zap.Error(err))
			}
			app.Points = points
			batchOpts = append(batchOpts, services.WithPointIndexer(points))
		}
	}

	if cfg.Archive.Enabled {
		batchOpts = append(batchOpts, services.WithJobArchive(services.NewMongoJobArchive(db, logger)))
	}

	app.Jobs = services.NewJobStore(cfg.Batch.CheckpointInterval, logger)
	app.Batch = services.NewBatchService(
		app.Jobs,
		app.Normalizer,
		app.Geocoder,
		artifact.NewWriter(files, cfg.Batch.TopN, logger),
		services.BatchOptions{
			Workers:           cfg.Batch.Workers,
			MaxRows:           cfg.Batch.MaxRows,
			RequestsPerSecond: cfg.Dispatcher.RequestsPerSecond,
		},
		logger,
		batchOpts...,
	)

	logger.Info("Đã khởi tạo service",
		zap.String("env", cfg.App.Env),
		zap.String("cache_driver", cfg.Cache.Driver),
		zap.String("artifact_driver", cfg.Artifacts.Driver),
		zap.Bool("search", app.Points != nil),
		zap.Bool("archive", cfg.Archive.Enabled),
		zap.Int("workers", cfg.Batch.Workers))

	return app, nil
}

// Router dựng gin router với tất cả routes
func (a *App) Router() *gin.Engine {
	if a.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// tránh interface non-nil chứa con trỏ nil
	var points controllers.PointSearcher
	if a.Points != nil {
		points = a.Points
	}

	routes.SetupAllRoutes(router, routes.Controllers{
		Jobs:  controllers.NewJobController(a.Batch, a.Files, points, a.Logger),
		Files: controllers.NewFileController(a.Files, a.Logger),
		Admin: controllers.NewAdminController(a.Geocoder, a.Cache, a.Jobs, a.Normalizer, a.Logger),
	}, a.Metrics, a.Logger)
	return router
}

// Close dừng job, đóng cache và ngắt MongoDB
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Batch != nil {
		if err := a.Batch.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("dừng batch job: %w", err))
		}
	}
	if a.stopCleanup != nil {
		a.stopCleanup()
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("đóng cache: %w", err))
		}
	}
	if a.mongoClient != nil {
		if err := a.mongoClient.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("ngắt MongoDB: %w", err))
		}
	}
	return errors.Join(errs...)
}

// initCache chọn cache theo cache.driver. hybrid = Redis L1 + MongoDB L2.
func (a *App) initCache(ctx context.Context, db *mongo.Database) (services.ICacheService, error) {
	cfg := a.Config.Cache

	switch cfg.Driver {
	case config.CacheRedis:
		return services.NewRedisCacheService(cfg.RedisURL, cfg.TTL, a.Logger)

	case config.CacheMongo:
		mongoCache, err := services.NewMongoCacheService(db, cfg.L1Size, cfg.TTL, a.Logger)
		if err != nil {
			return nil, err
		}
		a.warmUp(ctx, mongoCache)
		return mongoCache, nil

	case config.CacheHybrid:
		redisCache, err := services.NewRedisCacheService(cfg.RedisURL, cfg.TTL, a.Logger)
		if err != nil {
			return nil, err
		}
		mongoCache, err := services.NewMongoCacheService(db, cfg.L1Size, cfg.TTL, a.Logger)
		if err != nil {
			redisCache.Close()
			return nil, err
		}
		a.warmUp(ctx, mongoCache)
		return services.NewHybridCacheService(redisCache, mongoCache, a.Logger), nil

	default:
		memory := services.NewCacheService(cfg.TTL)
		cleanupCtx, stop := context.WithCancel(context.Background())
		a.stopCleanup = stop
		memory.StartCleanupWorker(cleanupCtx, cacheCleanupInterval)
		return memory, nil
	}
}

func (a *App) warmUp(ctx context.Context, mongoCache *services.MongoCacheService) {
	loaded, err := mongoCache.WarmUp(ctx, a.Config.Cache.L1Size/2)
	if err != nil {
		a.Logger.Warn("Không thể warm up cache", zap.Error(err))
		return
	}
	a.Logger.Info("Đã warm up cache", zap.Int("loaded", loaded))
}

// newArtifactStore chọn nơi lưu file kết quả theo artifacts.driver
func newArtifactStore(ctx context.Context, cfg config.ArtifactsCfg, logger *zap.Logger) (artifact.Store, error) {
	if cfg.Driver != config.ArtifactS3 {
		return artifact.NewLocalStore(cfg.OutputDir), nil
	}
	return artifact.NewS3Store(ctx, artifact.S3Config{
		Endpoint:  cfg.S3.Endpoint,
		Bucket:    cfg.S3.Bucket,
		Prefix:    cfg.S3.Prefix,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Region:    cfg.S3.Region,
		UseSSL:    cfg.S3.UseSSL,
	}, logger)
}

// initMongoDB khởi tạo kết nối MongoDB
func initMongoDB(ctx context.Context, cfg config.MongoCfg, logger *zap.Logger) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("không thể kết nối MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("không thể ping MongoDB: %w", err)
	}

	logger.Info("Kết nối MongoDB thành công", zap.String("database", cfg.Database))
	return client, nil
}
