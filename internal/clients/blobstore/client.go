package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdfpilot/pdfpilot-backend/internal/logger"
	"github.com/pdfpilot/pdfpilot-backend/internal/pkg/ctxutil"
	"github.com/pdfpilot/pdfpilot-backend/internal/pkg/httpx"
)

// Fetcher pulls uploaded document bytes from the object storage service.
// The stored URL is the whole contract: stable, directly fetchable, no
// extra auth on this side.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Config struct {
	Timeout    time.Duration
	MaxBytes   int64
	MaxRetries int
}

type fetcher struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

func NewFetcher(log *logger.Logger, cfg Config) (Fetcher, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		// Matches the upload service's PDF size cap with headroom.
		cfg.MaxBytes = 32 << 20
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &fetcher{
		log:  log.With("client", "BlobFetcher"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type blobHTTPError struct {
	StatusCode int
}

func (e *blobHTTPError) Error() string {
	return fmt.Sprintf("blob fetch http %d", e.StatusCode)
}

func (e *blobHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (f *fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	ctx = ctxutil.Default(ctx)

	backoff := 1 * time.Second
	var lastErr error

	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		raw, err := f.fetchOnce(ctx, url)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if !httpx.IsRetryableError(err) || attempt == f.cfg.MaxRetries {
			return nil, err
		}

		sleepFor := httpx.JitterSleep(backoff)
		f.log.Warn("Blob fetch retrying",
			"attempt", attempt+1,
			"max_retries", f.cfg.MaxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}
	return nil, lastErr
}

func (f *fetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &blobHTTPError{StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > f.cfg.MaxBytes {
		return nil, fmt.Errorf("blob exceeds %d byte limit", f.cfg.MaxBytes)
	}
	return raw, nil
}
