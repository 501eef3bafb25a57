package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/address-geocoder/app/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// JobsCollection tên collection lưu snapshot job
const JobsCollection = "jobs"

// JobArchive lưu snapshot job đã kết thúc để tra cứu sau khi process khởi động lại
type JobArchive interface {
	Save(ctx context.Context, job models.Job) error
	Load(ctx context.Context, id string) (*models.Job, error)
	Delete(ctx context.Context, id string) error
}

// MongoJobArchive JobArchive trên MongoDB
type MongoJobArchive struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMongoJobArchive tạo mới MongoJobArchive và index theo job_id
func NewMongoJobArchive(db *mongo.Database, logger *zap.Logger) *MongoJobArchive {
	collection := db.Collection(JobsCollection)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "job_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{bson.E{Key: "status", Value: 1}}},
		{Keys: bson.D{bson.E{Key: "start_time", Value: -1}}},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		logger.Warn("Không thể tạo indexes cho jobs", zap.Error(err))
	}

	return &MongoJobArchive{collection: collection, logger: logger}
}

// Save upsert snapshot theo job_id
func (a *MongoJobArchive) Save(ctx context.Context, job models.Job) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := a.collection.ReplaceOne(ctx, bson.M{"job_id": job.ID}, job, opts); err != nil {
		return fmt.Errorf("lỗi lưu job vào MongoDB: %w", err)
	}

	a.logger.Debug("Đã archive job",
		zap.String("job_id", job.ID),
		zap.String("status", string(job.Status)),
		zap.Int("results", len(job.Results)))
	return nil
}

// Load đọc snapshot, trả ErrJobNotFound khi không có
func (a *MongoJobArchive) Load(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := a.collection.FindOne(ctx, bson.M{"job_id": id}).Decode(&job); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("lỗi đọc job từ MongoDB: %w", err)
	}
	return &job, nil
}

// Delete xóa snapshot
func (a *MongoJobArchive) Delete(ctx context.Context, id string) error {
	if _, err := a.collection.DeleteOne(ctx, bson.M{"job_id": id}); err != nil {
		return fmt.Errorf("lỗi xóa job khỏi MongoDB: %w", err)
	}
	return nil
}
