package storage

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

// MinioSystemName MinIO 存储提供者名称
const MinioSystemName = "MediaStorage.Minio"

// MinioConfig MinIO 连接配置
type MinioConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
	// Prefix 对象名前缀
	Prefix string
}

// NewMinioProvider 创建 MinIO 存储提供者，桶不存在时自动创建
func NewMinioProvider(cfg MinioConfig, opts PathOptions) (*PathProvider, error) {
	if cfg.Endpoint == "" || cfg.BucketName == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}

	client, err := newMinioClient(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket '%s' exists: %w", cfg.BucketName, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket '%s': %w", cfg.BucketName, err)
		}
		log.Infof("Created bucket: %s", cfg.BucketName)
	}

	store := &minioStore{
		client: client,
		bucket: cfg.BucketName,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}
	return newPathProvider(MinioSystemName, store, opts), nil
}

// mustGetSystemCertPool 获取系统证书池
func mustGetSystemCertPool() *x509.CertPool {
	pool, err := x509.SystemCertPool()
	if err != nil {
		log.Warnf("Failed to load system cert pool: %v", err)
		return x509.NewCertPool()
	}
	return pool
}

func newMinioClient(cfg MinioConfig) (*minio.Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       time.Minute,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 10 * time.Second,
		DisableCompression:    true,
	}

	if cfg.UseSSL {
		transport.TLSClientConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
		if f := os.Getenv("SSL_CERT_FILE"); f != "" {
			rootCAs := mustGetSystemCertPool()
			if data, err := os.ReadFile(f); err == nil {
				rootCAs.AppendCertsFromPEM(data)
			}
			transport.TLSClientConfig.RootCAs = rootCAs
		}
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:    cfg.UseSSL,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}
	return client, nil
}

// minioStore 以对象名保存载荷
type minioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

func (s *minioStore) objectName(p string) string {
	if s.prefix == "" {
		return p
	}
	return s.prefix + "/" + p
}

// isNoSuchKey 对象不存在
func isNoSuchKey(err error) bool {
	if err == nil {
		return false
	}
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}

func (s *minioStore) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, s.objectName(p), minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object '%s': %w", p, err)
	}
	return true, nil
}

func (s *minioStore) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectName(p), minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, errObjectNotFound
		}
		return nil, fmt.Errorf("failed to get object '%s': %w", p, err)
	}

	// GetObject 不会立即请求，Stat 用来确认对象存在
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if isNoSuchKey(err) {
			return nil, errObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat object '%s': %w", p, err)
	}
	return obj, nil
}

// Write PutObject 完成前对象不可见
func (s *minioStore) Write(ctx context.Context, p string, r io.Reader) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.objectName(p), r, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("failed to upload object '%s': %w", p, err)
	}
	return nil
}

func (s *minioStore) Delete(ctx context.Context, p string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.objectName(p), minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("failed to remove object '%s': %w", p, err)
	}
	return nil
}
