package utils

import (
	"strings"

	"github.com/google/uuid"
)

// JobIDPrefix prefix của job ID
const JobIDPrefix = "job_"

// GenerateUUID tạo UUID v4
func GenerateUUID() string {
	return uuid.NewString()
}

// NewJobID tạo job ID dạng job_<uuid không gạch ngang>
func NewJobID() string {
	return JobIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsValidJobID kiểm tra ID có đúng định dạng NewJobID (an toàn để dùng trong tên file)
func IsValidJobID(id string) bool {
	raw, ok := strings.CutPrefix(id, JobIDPrefix)
	if !ok || len(raw) != 32 {
		return false
	}
	_, err := uuid.Parse(raw)
	return err == nil
}
