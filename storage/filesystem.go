package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/spf13/afero"

	"github.com/anoixa/mediastore/utils/pool"
)

// FileSystemSystemName 文件系统存储提供者名称
const FileSystemSystemName = "MediaStorage.FileSystem"

// NewFileSystemProvider 在 fs 上创建文件系统存储提供者
func NewFileSystemProvider(fs afero.Fs, opts PathOptions) *PathProvider {
	return newPathProvider(FileSystemSystemName, &fsStore{fs: fs}, opts)
}

// NewLocalFileSystemProvider 以 root 为根目录创建本地文件系统存储提供者
func NewLocalFileSystemProvider(root string, opts PathOptions) (*PathProvider, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media root '%s': %w", root, err)
	}
	return NewFileSystemProvider(afero.NewBasePathFs(osFs, root), opts), nil
}

// fsStore 基于 afero 的对象存储
type fsStore struct {
	fs afero.Fs
}

func (s *fsStore) Exists(_ context.Context, p string) (bool, error) {
	return afero.Exists(s.fs, p)
}

func (s *fsStore) Open(_ context.Context, p string) (io.ReadCloser, error) {
	f, err := s.fs.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errObjectNotFound
		}
		return nil, err
	}
	return f, nil
}

// Write 先写入同目录下的临时文件，完成后重命名
func (s *fsStore) Write(ctx context.Context, p string, r io.Reader) error {
	dir := path.Dir(p)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+path.Base(p)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in '%s': %w", dir, err)
	}
	tmpName := tmp.Name()

	bufPtr := pool.SharedBufferPool.Get().(*[]byte)
	defer pool.SharedBufferPool.Put(bufPtr)

	_, err = io.CopyBuffer(tmp, &ctxReader{ctx: ctx, r: r}, *bufPtr)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = s.fs.Rename(tmpName, p)
	}
	if err != nil {
		_ = s.fs.Remove(tmpName)
		return err
	}
	return nil
}

func (s *fsStore) Delete(_ context.Context, p string) error {
	if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
