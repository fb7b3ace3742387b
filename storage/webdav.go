package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/studio-b12/gowebdav"
)

// WebDAVSystemName WebDAV 存储提供者名称
const WebDAVSystemName = "MediaStorage.WebDAV"

// WebDAVConfig WebDAV 配置
type WebDAVConfig struct {
	URL      string
	Username string
	Password string
	RootPath string
	Timeout  time.Duration
}

// NewWebDAVProvider 创建 WebDAV 存储提供者并验证连接
func NewWebDAVProvider(cfg WebDAVConfig, opts PathOptions) (*PathProvider, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webdav URL is required")
	}

	client := gowebdav.NewClient(cfg.URL, cfg.Username, cfg.Password)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	store := &webdavStore{client: client, rootPath: normalizeRootPath(cfg.RootPath)}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.ensureRoot(ctx); err != nil {
		return nil, fmt.Errorf("webdav connection test failed: %w", err)
	}

	return newPathProvider(WebDAVSystemName, store, opts), nil
}

// normalizeRootPath 统一为 "/a/b" 或空字符串
func normalizeRootPath(root string) string {
	root = strings.Trim(root, "/")
	if root == "" {
		return ""
	}
	return "/" + root
}

// webdavStore gowebdav 不支持 context，调用放到协程中执行
type webdavStore struct {
	client   *gowebdav.Client
	rootPath string
}

// fullPath 生成完整的 WebDAV 路径
func (s *webdavStore) fullPath(p string) string {
	return s.rootPath + "/" + strings.TrimLeft(p, "/")
}

// withContext 在 ctx 取消时提前返回
func withContext(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (s *webdavStore) ensureRoot(ctx context.Context) error {
	return withContext(ctx, func() error {
		if s.rootPath == "" {
			_, err := s.client.ReadDir("/")
			return err
		}
		return s.client.MkdirAll(s.rootPath, 0o755)
	})
}

func (s *webdavStore) Exists(ctx context.Context, p string) (bool, error) {
	var exists bool
	err := withContext(ctx, func() error {
		_, err := s.client.Stat(s.fullPath(p))
		if err == nil {
			exists = true
			return nil
		}
		if gowebdav.IsErrNotFound(err) {
			return nil
		}
		return err
	})
	return exists, err
}

func (s *webdavStore) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := withContext(ctx, func() error {
		r, err := s.client.ReadStream(s.fullPath(p))
		if err != nil {
			if gowebdav.IsErrNotFound(err) {
				return errObjectNotFound
			}
			return err
		}
		rc = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// Write 先上传到临时名称再 MOVE 到目标路径
func (s *webdavStore) Write(ctx context.Context, p string, r io.Reader) error {
	full := s.fullPath(p)
	tmp := path.Join(path.Dir(full), "."+path.Base(full)+"."+uuid.NewString()+".tmp")

	return withContext(ctx, func() error {
		if err := s.client.MkdirAll(path.Dir(full), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for '%s': %w", p, err)
		}
		if err := s.client.WriteStream(tmp, r, os.FileMode(0o644)); err != nil {
			_ = s.client.Remove(tmp)
			return fmt.Errorf("failed to upload '%s': %w", p, err)
		}
		if err := s.client.Rename(tmp, full, true); err != nil {
			_ = s.client.Remove(tmp)
			return fmt.Errorf("failed to move '%s' into place: %w", p, err)
		}
		return nil
	})
}

func (s *webdavStore) Delete(ctx context.Context, p string) error {
	return withContext(ctx, func() error {
		err := s.client.Remove(s.fullPath(p))
		if err != nil && !gowebdav.IsErrNotFound(err) {
			return err
		}
		return nil
	})
}
