package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store nơi lưu file kết quả, khóa bằng tên file đơn
type Store interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// LocalStore lưu file trong một thư mục trên đĩa
type LocalStore struct {
	dir  string
	once sync.Once
	err  error
}

// NewLocalStore tạo mới LocalStore. Thư mục được tạo ở lần ghi đầu tiên.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Dir thư mục gốc
func (s *LocalStore) Dir() string {
	return s.dir
}

// Put ghi file qua file tạm rồi rename để reader không thấy file ghi dở
func (s *LocalStore) Put(ctx context.Context, name string, data []byte, _ string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.once.Do(func() { s.err = os.MkdirAll(s.dir, 0o755) })
	if s.err != nil {
		return fmt.Errorf("không thể tạo thư mục output: %w", s.err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("không thể tạo file tạm: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("lỗi ghi file %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("lỗi đóng file %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("lỗi rename file %s: %w", name, err)
	}
	return nil
}

// Open mở file để đọc, ErrNotFound khi không tồn tại
func (s *LocalStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	return f, nil
}
