package aggregates

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/openmedicaid/claimlens/internal/logger"
	"github.com/openmedicaid/claimlens/internal/models"
)

// maxSnapshotBytes bounds a downloaded snapshot.
const maxSnapshotBytes = 64 << 20

// HTTPStore fetches a published snapshot document (JSON or YAML) over HTTP.
// The last snapshot is kept with its ETag so an unchanged document costs a
// conditional request and no decoding.
type HTTPStore struct {
	url            string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration

	mu   sync.Mutex
	etag string
	last *models.Snapshot
}

// NewHTTPStore creates a store that reads url.
func NewHTTPStore(url string, timeout time.Duration, maxRetries int, retryDelayBase time.Duration) *HTTPStore {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &HTTPStore{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// Snapshot downloads, decodes and validates the snapshot.
func (s *HTTPStore) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.doRequest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && s.last != nil:
		logger.Debug("Snapshot at %s not modified", s.url)
		return s.last, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("failed to fetch snapshot: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if len(data) > maxSnapshotBytes {
		return nil, fmt.Errorf("snapshot exceeds %d bytes", maxSnapshotBytes)
	}

	snap, err := Decode(data, s.format(resp.Header.Get("Content-Type")))
	if err != nil {
		return nil, err
	}
	s.etag = resp.Header.Get("ETag")
	s.last = snap
	return snap, nil
}

// format picks the decoder extension from the content type, falling back to
// the URL path.
func (s *HTTPStore) format(contentType string) string {
	if strings.Contains(contentType, "yaml") {
		return ".yaml"
	}
	if strings.Contains(contentType, "json") {
		return ".json"
	}
	return path.Ext(strings.SplitN(s.url, "?", 2)[0])
}

// doRequest performs the HTTP request, retrying network failures and server
// errors with a linear backoff.
func (s *HTTPStore) doRequest(ctx context.Context) (*http.Response, error) {
	var lastErr error

	for i := 0; i < s.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json, application/yaml")
		if s.etag != "" && s.last != nil {
			req.Header.Set("If-None-Match", s.etag)
		}

		resp, err := s.httpClient.Do(req)
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
		default:
			return resp, nil
		}

		logger.Debug("Snapshot request attempt %d/%d failed: %v", i+1, s.maxRetries, lastErr)
		if i == s.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.retryDelayBase * time.Duration(i+1)):
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
