package services

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/basicfont"

	"github.com/mobatt/mobatt-backend/internal/logger"
)

type fakeBucket struct {
	uploads []string
	deletes []string
	failKey string
}

func (f *fakeBucket) UploadFile(_ context.Context, key string, _ io.Reader) error {
	if f.failKey != "" && key == f.failKey {
		return errors.New("upload failed")
	}
	f.uploads = append(f.uploads, key)
	return nil
}

func (f *fakeBucket) DeleteFile(_ context.Context, key string) error {
	f.deletes = append(f.deletes, key)
	return nil
}

func (f *fakeBucket) GetPublicURL(key string) string { return "https://cdn.example/" + key }

func newTestImageService(t *testing.T, bucket BucketService) *blogImageService {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	face := basicfont.Face7x13
	return &blogImageService{
		log:           log.With("service", "BlogImageService"),
		bucketService: bucket,
		titleFace:     face,
		subtitleFace:  face,
		thumbFace:     face,
	}
}

func TestRenderAndUploadReturnsBothURLs(t *testing.T) {
	bucket := &fakeBucket{}
	svc := newTestImageService(t, bucket)

	ogURL, thumbURL, err := svc.RenderAndUpload(context.Background(), "anker-10000", "Anker PowerCore", "軽量モデル")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/og/blogs/anker-10000.png", ogURL)
	assert.Equal(t, "https://cdn.example/thumbnails/blogs/anker-10000.png", thumbURL)
	assert.Equal(t, []string{OGImageKey("anker-10000"), ThumbnailKey("anker-10000")}, bucket.uploads)
	assert.Empty(t, bucket.deletes)
}

func TestRenderAndUploadRemovesOGImageOnThumbnailFailure(t *testing.T) {
	bucket := &fakeBucket{failKey: ThumbnailKey("anker-10000")}
	svc := newTestImageService(t, bucket)

	_, _, err := svc.RenderAndUpload(context.Background(), "anker-10000", "Anker PowerCore", "")
	require.Error(t, err)
	assert.Equal(t, []string{OGImageKey("anker-10000")}, bucket.deletes)
}
