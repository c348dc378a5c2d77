package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// faceFieldName is the multipart form field carrying the captured frame.
const faceFieldName = "face"

// User is the record returned alongside a recognized face.
type User struct {
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
	Role   string `json:"role"`
}

// ScanResult is the recognition outcome held by the session until reset.
type ScanResult struct {
	Success bool   `json:"success"`
	QRImage string `json:"qr_image"`
	User    User   `json:"user"`
	Message string `json:"message,omitempty"`
}

// scanResponse is the wire envelope of the recognition service.
type scanResponse struct {
	Success bool `json:"success"`
	Data    struct {
		QRImage string `json:"qr_image"`
		User    User   `json:"user"`
	} `json:"data"`
	Message string `json:"message,omitempty"`
}

// APIError is a hard submission failure carrying any server-supplied
// human-readable message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("scan endpoint returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("scan endpoint returned %d", e.StatusCode)
}

// ScanClient submits captured face frames to the recognition service.
type ScanClient interface {
	// SubmitFace posts one JPEG-encoded frame. A response with
	// success=false is NOT an error: it is a soft rejection carried in
	// the result's Message.
	SubmitFace(ctx context.Context, captureID string, jpegData []byte) (*ScanResult, error)
}

// HTTPScanClient implements ScanClient over a configured endpoint URL.
type HTTPScanClient struct {
	endpointURL string
	client      *http.Client
}

// NewHTTPScanClient creates a scan client for the given endpoint. The
// submission cadence is owned by the capture loop, so the client performs
// no retries of its own.
func NewHTTPScanClient(endpointURL string) *HTTPScanClient {
	return &HTTPScanClient{
		endpointURL: endpointURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SubmitFace posts the captured frame as a multipart form.
func (c *HTTPScanClient) SubmitFace(ctx context.Context, captureID string, jpegData []byte) (*ScanResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(faceFieldName, captureID+".jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(jpegData)); err != nil {
		return nil, fmt.Errorf("copy frame data: %w", err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Surface the server's own message when the error body is JSON
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope scanResponse
		if json.NewDecoder(resp.Body).Decode(&envelope) == nil {
			apiErr.Message = envelope.Message
		}
		return nil, apiErr
	}

	var envelope scanResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &ScanResult{
		Success: envelope.Success,
		QRImage: envelope.Data.QRImage,
		User:    envelope.Data.User,
		Message: envelope.Message,
	}, nil
}
