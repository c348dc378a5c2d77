package transport

import (
	"bytes"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"

	"go-scan-kiosk/internal/client"
	"go-scan-kiosk/internal/observer"
	"go-scan-kiosk/internal/scan"
)

type fakeController struct {
	snapshot scan.Snapshot
	overlay  image.Image
	resets   int
}

func (f *fakeController) Snapshot() scan.Snapshot   { return f.snapshot }
func (f *fakeController) ResetScan()                { f.resets++ }
func (f *fakeController) OverlayFrame() image.Image { return f.overlay }

func TestHandler_Health(t *testing.T) {
	handler := NewHandler(&fakeController{}, nil)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body["status"] != "available" {
		t.Errorf("Expected status available, got %v", body["status"])
	}
}

func TestHandler_Status(t *testing.T) {
	metrics := observer.NewMetricsObserver()
	controller := &fakeController{
		snapshot: scan.Snapshot{
			Status:   scan.StatusScanning,
			Loading:  false,
			Progress: 0.4,
			Faces:    1,
		},
	}
	handler := NewHandler(controller, metrics)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body["status"] != string(scan.StatusScanning) {
		t.Errorf("Expected scanning status, got %v", body["status"])
	}
	if body["progress"] != 0.4 {
		t.Errorf("Expected progress 0.4, got %v", body["progress"])
	}
	if _, ok := body["metrics"]; !ok {
		t.Error("Expected metrics in status payload")
	}
}

func TestHandler_Result(t *testing.T) {
	tests := []struct {
		name       string
		result     *client.ScanResult
		wantStatus int
	}{
		{
			name:       "no result yet",
			result:     nil,
			wantStatus: http.StatusNotFound,
		},
		{
			name: "stored result",
			result: &client.ScanResult{
				Success: true,
				QRImage: "data:image/png;base64,cXI=",
				User:    client.User{Name: "Ada", Mobile: "555-0101", Role: "visitor"},
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controller := &fakeController{snapshot: scan.Snapshot{Result: tt.result}}
			handler := NewHandler(controller, nil)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/result", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.result == nil {
				return
			}

			var result client.ScanResult
			if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
				t.Fatalf("Invalid JSON: %v", err)
			}
			if result.User.Name != "Ada" {
				t.Errorf("Expected user Ada, got %q", result.User.Name)
			}
		})
	}
}

func TestHandler_Frame(t *testing.T) {
	controller := &fakeController{overlay: image.NewRGBA(image.Rect(0, 0, 32, 24))}
	handler := NewHandler(controller, nil)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/frame", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %s", ct)
	}
	img, err := jpeg.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("Response is not a decodable JPEG: %v", err)
	}
	if img.Bounds().Dx() != 32 {
		t.Errorf("Expected 32px wide frame, got %d", img.Bounds().Dx())
	}
}

func TestHandler_FrameUnavailable(t *testing.T) {
	handler := NewHandler(&fakeController{}, nil)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/frame", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 without overlay frame, got %d", w.Code)
	}
}

func TestHandler_Reset(t *testing.T) {
	controller := &fakeController{}
	handler := NewHandler(controller, nil)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/reset", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if controller.resets != 1 {
		t.Errorf("Expected 1 reset call, got %d", controller.resets)
	}
}
