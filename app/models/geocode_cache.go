package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GeocodeCache document cache kết quả geocode trong MongoDB
type GeocodeCache struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	KeyFingerprint    string             `bson:"key_fingerprint" json:"key_fingerprint"`       // sha256 của địa chỉ đã chuẩn hóa
	NormalizedAddress string             `bson:"normalized_address" json:"normalized_address"` // Cache key gốc
	Result            GeocodeResult      `bson:"result" json:"result"`                         // Kết quả geocode
	Status            GeocodeStatus      `bson:"status" json:"status"`                         // Trạng thái (để lọc/thống kê)
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	LastAccessed      time.Time          `bson:"last_accessed" json:"last_accessed"`
	AccessCount       int                `bson:"access_count" json:"access_count"`
}

// NewGeocodeCache tạo mới một GeocodeCache
func NewGeocodeCache(fingerprint, normalizedAddress string, result GeocodeResult) *GeocodeCache {
	now := time.Now()
	return &GeocodeCache{
		KeyFingerprint:    fingerprint,
		NormalizedAddress: normalizedAddress,
		Result:            result,
		Status:            result.Status,
		CreatedAt:         now,
		LastAccessed:      now,
		AccessCount:       1,
	}
}

// IsExpired kiểm tra cache có hết hạn không (ttl <= 0 nghĩa là không hết hạn)
func (gc *GeocodeCache) IsExpired(ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return time.Since(gc.CreatedAt) > ttl
}
