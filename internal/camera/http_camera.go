package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"sync"
	"time"

	apperrors "go-scan-kiosk/internal/errors"
)

const snapshotAttempts = 3

// HTTPCamera reads frames from an IP-camera style snapshot endpoint: every
// ReadFrame fetches one still image over HTTP.
type HTTPCamera struct {
	snapshotURL string
	client      *http.Client

	mu     sync.Mutex
	stream *Stream
	closed bool
}

// NewHTTPCamera creates a camera backed by a snapshot URL
func NewHTTPCamera(snapshotURL string) *HTTPCamera {
	// Transport tuned for repeated small downloads from a single device
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPCamera{
		snapshotURL: snapshotURL,
		client: &http.Client{
			Transport: transport,
			Timeout:   10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
	}
}

// Open probes the snapshot endpoint and acquires the video stream. A device
// that cannot produce a decodable frame is reported as a blocking camera
// error.
func (c *HTTPCamera) Open(ctx context.Context) (*Stream, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, apperrors.NewCameraError("camera already released", nil)
	}
	if c.stream != nil {
		c.mu.Unlock()
		return nil, apperrors.NewCameraError("camera stream already acquired", nil)
	}
	c.mu.Unlock()

	if _, err := c.fetchFrame(ctx); err != nil {
		return nil, apperrors.NewCameraError("camera unavailable", err)
	}

	stream := NewStream(&Track{Kind: TrackVideo})

	c.mu.Lock()
	c.stream = stream
	c.mu.Unlock()
	return stream, nil
}

// ReadFrame fetches the current snapshot from the device
func (c *HTTPCamera) ReadFrame(ctx context.Context) (image.Image, error) {
	c.mu.Lock()
	if c.closed || c.stream == nil {
		c.mu.Unlock()
		return nil, apperrors.NewCameraError("camera stream not active", nil)
	}
	c.mu.Unlock()

	img, err := c.fetchFrame(ctx)
	if err != nil {
		return nil, apperrors.NewCameraError("failed to read frame", err)
	}
	return img, nil
}

// Close stops every track and releases the device. Safe to call twice.
func (c *HTTPCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.stream != nil {
		c.stream.Stop()
	}
	c.client.CloseIdleConnections()
	return nil
}

// fetchFrame downloads and decodes one snapshot. Transport errors and 5xx
// responses are retried a bounded number of times; 4xx responses are not.
func (c *HTTPCamera) fetchFrame(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.snapshotURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot URL: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, */*")
	req.Header.Set("User-Agent", "Go-Scan-Kiosk/1.0")

	var lastErr error
	for attempt := 0; attempt < snapshotAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			img, _, err := image.Decode(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to decode frame: %w", err)
			}
			return img, nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			resp.Body.Close()
			return nil, fmt.Errorf("client error: status code %d", resp.StatusCode)
		default:
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: status code %d", resp.StatusCode)
		}
	}

	return nil, fmt.Errorf("failed to fetch frame after %d attempts: %w", snapshotAttempts, lastErr)
}
