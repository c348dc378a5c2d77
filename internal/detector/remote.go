package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	apperrors "go-scan-kiosk/internal/errors"
)

// RemoteDetector runs inference through an external face-detection service:
// it posts the frame as a multipart form and reads back bounding boxes.
type RemoteDetector struct {
	inferenceURL  string
	minConfidence float64
	client        *http.Client
	ready         bool
}

// NewRemoteDetector creates a detector backed by an inference service.
// Detections below minConfidence are discarded.
func NewRemoteDetector(inferenceURL string, minConfidence float64) *RemoteDetector {
	return &RemoteDetector{
		inferenceURL:  inferenceURL,
		minConfidence: minConfidence,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

// Init probes the inference service health endpoint. The detection loop
// must not run until this has succeeded.
func (d *RemoteDetector) Init(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.inferenceURL+"/health", nil)
	if err != nil {
		return apperrors.NewDetectorError("invalid inference URL", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return apperrors.NewDetectorError("detection model failed to load", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperrors.NewDetectorError(
			fmt.Sprintf("inference service unhealthy: %d", resp.StatusCode), nil)
	}

	d.ready = true
	return nil
}

// Detect posts the frame to the inference service and returns the face
// boxes that clear the confidence floor.
func (d *RemoteDetector) Detect(ctx context.Context, frame image.Image) ([]Box, error) {
	if !d.ready {
		return nil, apperrors.NewDetectorError("detector not initialized", nil)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := jpeg.Encode(part, frame, nil); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.inferenceURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, apperrors.NewDetectorError("inference request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, apperrors.NewDetectorError(
			fmt.Sprintf("inference failed with status: %d", resp.StatusCode), nil)
	}

	var result struct {
		Detections []Box `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	filtered := make([]Box, 0, len(result.Detections))
	for _, det := range result.Detections {
		if det.Confidence >= d.minConfidence {
			filtered = append(filtered, det)
		}
	}
	return filtered, nil
}

// Close releases the HTTP client resources
func (d *RemoteDetector) Close() error {
	d.ready = false
	d.client.CloseIdleConnections()
	return nil
}
