package blob

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Store 二进制文件存储边界。
// Delete 为尽力而为：底层文件已不存在或删除失败都不应阻断元数据删除，
// 由调用方决定是否记录日志。
type Store interface {
	Put(ctx context.Context, data []byte, suggestedName string) (ref string, err error)
	Delete(ctx context.Context, ref string) error
}

// LocalStore 本地磁盘实现：文件落在 dir 下，引用形如 /uploads/<name>。
type LocalStore struct {
	dir    string
	prefix string
}

// NewLocalStore 创建本地存储，确保目录存在。
func NewLocalStore(dir string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("upload dir is empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, prefix: "/uploads/"}, nil
}

func (s *LocalStore) Put(ctx context.Context, data []byte, suggestedName string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("store is nil")
	}
	name := sanitizeName(suggestedName)
	if name == "" {
		return "", fmt.Errorf("suggested name is empty")
	}
	out := filepath.Join(s.dir, name)
	if err := os.WriteFile(out, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write blob %s: %w", name, err)
	}
	return s.prefix + name, nil
}

func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	name := sanitizeName(strings.TrimPrefix(ref, s.prefix))
	if name == "" {
		return fmt.Errorf("invalid blob ref %q", ref)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove blob %s: %w", name, err)
	}
	return nil
}

// sanitizeName 只保留基础文件名，防止路径穿越。
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = path.Base(filepath.ToSlash(name))
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}
