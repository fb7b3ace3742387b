package storage

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestIsNoSuchKey(t *testing.T) {
	assert.False(t, isNoSuchKey(nil))
	assert.False(t, isNoSuchKey(errors.New("connection refused")))
	assert.True(t, isNoSuchKey(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.False(t, isNoSuchKey(minio.ErrorResponse{Code: "AccessDenied"}))
}

func TestMinioStore_ObjectName(t *testing.T) {
	s := &minioStore{}
	assert.Equal(t, "pictures/0000/0000001-0.jpg", s.objectName("pictures/0000/0000001-0.jpg"))

	s = &minioStore{prefix: "media"}
	assert.Equal(t, "media/pictures/0000/0000001-0.jpg", s.objectName("pictures/0000/0000001-0.jpg"))
}

func TestNewMinioProvider_RequiresEndpointAndBucket(t *testing.T) {
	_, err := NewMinioProvider(MinioConfig{Endpoint: "localhost:9000"}, PathOptions{})
	assert.Error(t, err)

	_, err = NewMinioProvider(MinioConfig{BucketName: "media"}, PathOptions{})
	assert.Error(t, err)
}
