package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/forum-chat/internal/apperr"
	"github.com/yourorg/forum-chat/internal/models"
)

type fakeStore struct {
	failures int
	calls    int
}

func (f *fakeStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("transient network error")
	}
	return "https://store.local/" + key, nil
}

func (f *fakeStore) PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://store.local/signed/" + key, nil
}

type fakeRecorder struct {
	inserted []*models.Attachment
}

func (f *fakeRecorder) Insert(ctx context.Context, a *models.Attachment) error {
	f.inserted = append(f.inserted, a)
	return nil
}

func (f *fakeRecorder) GetByID(ctx context.Context, id string) (*models.Attachment, error) {
	for _, a := range f.inserted {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func newTestPipeline(store ObjectStore, repo AttachmentRecorder) *Pipeline {
	return NewPipeline(store, repo, Options{
		MaxBytes:     1024,
		MaxDimension: 400,
		Retries:      2,
		Backoff:      time.Millisecond,
		Timeout:      time.Second,
		PresignTTL:   time.Minute,
	}, zap.NewNop().Sugar())
}

func TestPipelineStoresAfterTransientFailures(t *testing.T) {
	store := &fakeStore{failures: 2}
	repo := &fakeRecorder{}
	p := newTestPipeline(store, repo)

	a, err := p.Process(context.Background(), "user-1", "notes.txt", "text/plain", []byte("hello"))
	require.NoError(t, err)
	require.NotNil(t, a)

	assert.Equal(t, 3, store.calls)
	assert.Equal(t, int64(5), a.Size)
	assert.Equal(t, "text/plain", a.MimeType)
	require.Len(t, repo.inserted, 1, "metadata persisted exactly once, after the blob")
	assert.Equal(t, a.ID, repo.inserted[0].ID)
}

func TestPipelineSurfacesUploadFailure(t *testing.T) {
	store := &fakeStore{failures: 100}
	repo := &fakeRecorder{}
	p := newTestPipeline(store, repo)

	_, err := p.Process(context.Background(), "user-1", "notes.txt", "text/plain", []byte("hello"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUploadFailed)
	assert.Empty(t, repo.inserted, "no metadata row for a blob that never landed")
}

func TestPipelineRejectsBeforeUploading(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(store, &fakeRecorder{})

	_, err := p.Process(context.Background(), "user-1", "big.bin", "application/pdf", make([]byte, 2048))
	assert.ErrorIs(t, err, apperr.ErrFileTooLarge)
	assert.Zero(t, store.calls)

	_, err = p.Process(context.Background(), "user-1", "run.exe", "application/x-msdownload", []byte("MZ"))
	assert.ErrorIs(t, err, apperr.ErrUnsupportedType)
	assert.Zero(t, store.calls)
}

func TestPipelineURLForPresignsPrivateObjects(t *testing.T) {
	store := &fakeStore{}
	repo := &fakeRecorder{inserted: []*models.Attachment{{ID: "a1", Key: "user-1/a1_f.txt"}}}
	p := newTestPipeline(store, repo)

	url, err := p.URLFor(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "https://store.local/signed/user-1/a1_f.txt", url)

	_, err = p.URLFor(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
