package media

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/yourorg/forum-chat/internal/apperr"
	"github.com/yourorg/forum-chat/internal/metrics"
	"github.com/yourorg/forum-chat/internal/models"
)

// ObjectStore is the durable blob backend (S3 in production).
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// AttachmentRecorder persists attachment metadata after the blob exists.
type AttachmentRecorder interface {
	Insert(ctx context.Context, a *models.Attachment) error
	GetByID(ctx context.Context, id string) (*models.Attachment, error)
}

type Options struct {
	MaxBytes     int64
	MaxDimension int
	Retries      int
	Backoff      time.Duration
	Timeout      time.Duration
	PresignTTL   time.Duration
}

// Pipeline validates, compresses and durably stores uploads. A message of
// type FILE is only ever created against an attachment this pipeline has
// finished storing.
type Pipeline struct {
	store   ObjectStore
	repo    AttachmentRecorder
	opts    Options
	breaker *gobreaker.CircuitBreaker
	logger  *zap.SugaredLogger
}

func NewPipeline(store ObjectStore, repo AttachmentRecorder, opts Options, logger *zap.SugaredLogger) *Pipeline {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "attachment-store",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})
	return &Pipeline{store: store, repo: repo, opts: opts, breaker: cb, logger: logger}
}

// Process runs the full pipeline and returns the stable attachment
// reference. It blocks until the object is durable; a failed upload aborts
// cleanly with no metadata row.
func (p *Pipeline) Process(ctx context.Context, uploaderID, filename, mimeType string, data []byte) (*models.Attachment, error) {
	if err := Validate(mimeType, int64(len(data)), p.opts.MaxBytes); err != nil {
		return nil, err
	}

	data, mimeType = Compress(data, mimeType, p.opts.MaxDimension)

	id := uuid.NewString()
	key := uploaderID + "/" + id + "_" + filename

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	url, err := p.upload(ctx, key, mimeType, data)
	if err != nil {
		metrics.UploadFailures.Inc()
		return nil, fmt.Errorf("%w: %v", apperr.ErrUploadFailed, err)
	}

	a := &models.Attachment{
		ID:         id,
		Key:        key,
		URL:        url,
		Filename:   filename,
		MimeType:   mimeType,
		Size:       int64(len(data)),
		UploaderID: uploaderID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := p.repo.Insert(ctx, a); err != nil {
		return nil, fmt.Errorf("%w: record metadata: %v", apperr.ErrUploadFailed, err)
	}
	return a, nil
}

// upload retries transient failures a bounded number of times with
// backoff, behind a breaker so a dead store fails fast.
func (p *Pipeline) upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= p.opts.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(p.opts.Backoff * time.Duration(attempt)):
			}
		}
		res, err := p.breaker.Execute(func() (interface{}, error) {
			return p.store.Upload(ctx, key, contentType, data)
		})
		if err == nil {
			return res.(string), nil
		}
		lastErr = err
		p.logger.Warnw("attachment upload attempt failed", "key", key, "attempt", attempt, "err", err)
		if err == gobreaker.ErrOpenState {
			break
		}
	}
	return "", lastErr
}

// URLFor returns a time-limited download URL for a stored attachment.
func (p *Pipeline) URLFor(ctx context.Context, attachmentID string) (string, error) {
	a, err := p.repo.GetByID(ctx, attachmentID)
	if err != nil {
		return "", err
	}
	if a.URL != "" {
		return a.URL, nil
	}
	return p.store.PresignURL(ctx, a.Key, p.opts.PresignTTL)
}
