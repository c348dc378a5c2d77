package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPScanClient_SubmitFace(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantSuccess bool
		wantMessage string
		wantName    string
		wantQR      string
	}{
		{
			name:        "recognized face",
			status:      http.StatusOK,
			body:        `{"success":true,"data":{"qr_image":"data:image/png;base64,aGk=","user":{"name":"Ada","mobile":"555-0101","role":"visitor"}}}`,
			wantSuccess: true,
			wantName:    "Ada",
			wantQR:      "data:image/png;base64,aGk=",
		},
		{
			name:        "soft rejection carries server message",
			status:      http.StatusOK,
			body:        `{"success":false,"message":"Unknown face"}`,
			wantSuccess: false,
			wantMessage: "Unknown face",
		},
		{
			name:        "soft rejection without message",
			status:      http.StatusOK,
			body:        `{"success":false}`,
			wantSuccess: false,
			wantMessage: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("Expected POST, got %s", r.Method)
				}
				if err := r.ParseMultipartForm(10 << 20); err != nil {
					t.Errorf("Expected multipart form: %v", err)
				}
				file, header, err := r.FormFile("face")
				if err != nil {
					t.Fatalf("Expected form field %q: %v", "face", err)
				}
				file.Close()
				if header.Filename != "cap-1.jpg" {
					t.Errorf("Expected filename cap-1.jpg, got %s", header.Filename)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewHTTPScanClient(server.URL)
			result, err := c.SubmitFace(context.Background(), "cap-1", []byte{0xff, 0xd8, 0xff})
			if err != nil {
				t.Fatalf("SubmitFace failed: %v", err)
			}

			if result.Success != tt.wantSuccess {
				t.Errorf("Expected success=%v, got %v", tt.wantSuccess, result.Success)
			}
			if result.Message != tt.wantMessage {
				t.Errorf("Expected message %q, got %q", tt.wantMessage, result.Message)
			}
			if result.User.Name != tt.wantName {
				t.Errorf("Expected user name %q, got %q", tt.wantName, result.User.Name)
			}
			if result.QRImage != tt.wantQR {
				t.Errorf("Expected QR image %q, got %q", tt.wantQR, result.QRImage)
			}
		})
	}
}

func TestHTTPScanClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"message":"recognition backend offline"}`))
	}))
	defer server.Close()

	c := NewHTTPScanClient(server.URL)
	_, err := c.SubmitFace(context.Background(), "cap-2", []byte{0x01})
	if err == nil {
		t.Fatal("Expected error on 500")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "recognition backend offline" {
		t.Errorf("Expected server message to be carried, got %q", apiErr.Message)
	}
}

func TestHTTPScanClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if ok {
			conn, _, _ := hj.Hijack()
			conn.Close()
		}
	}))
	defer server.Close()

	c := NewHTTPScanClient(server.URL)
	_, err := c.SubmitFace(context.Background(), "cap-3", []byte{0x01})
	if err == nil {
		t.Fatal("Expected transport error")
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("Transport failure must not be an APIError, got %v", apiErr)
	}
}
