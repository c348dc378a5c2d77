package scan

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-scan-kiosk/internal/archive"
	"go-scan-kiosk/internal/camera"
	"go-scan-kiosk/internal/client"
	"go-scan-kiosk/internal/detector"
	apperrors "go-scan-kiosk/internal/errors"
	"go-scan-kiosk/internal/logger"
	"go-scan-kiosk/internal/observer"
	"go-scan-kiosk/internal/overlay"
)

// Status is the user-visible state of the scan session. Beyond the fixed
// markers below it can carry a server-supplied rejection message verbatim.
type Status string

const (
	StatusIdle           Status = "idle"
	StatusScanning       Status = "scanning"
	StatusSubmitting     Status = "submitting"
	StatusQRGenerated    Status = "qr_generated"
	StatusDetectorFailed Status = "detector_unavailable"
)

// FallbackMessage is shown when a submission fails without a
// server-supplied message.
const FallbackMessage = "Face not recognized"

// Options wires a session together. Camera, Client, and Policy are
// required; Detector selects the detection-gated variant, Archiver and
// Events are optional.
type Options struct {
	Camera   camera.Camera
	Detector detector.Detector
	Client   client.ScanClient
	Policy   TriggerPolicy
	Archiver archive.Archiver
	Events   *observer.Publisher

	FrameInterval time.Duration
	SubmitTimeout time.Duration
	DetectTimeout time.Duration

	// Now overrides the clock; tests use it to drive the loop
	// deterministically.
	Now func() time.Time
}

// Snapshot is a point-in-time view of the session for the status surface.
type Snapshot struct {
	Status   Status             `json:"status"`
	Loading  bool               `json:"loading"`
	Progress float64            `json:"progress"`
	Faces    int                `json:"faces"`
	Result   *client.ScanResult `json:"result,omitempty"`
}

// Session owns one camera acquisition and runs the capture loop until its
// context is cancelled. All mutable state sits behind one mutex; the
// submission goroutine re-checks that state before every write so a late
// response cannot mutate a torn-down session.
type Session struct {
	cam      camera.Camera
	det      detector.Detector
	client   client.ScanClient
	policy   TriggerPolicy
	archiver archive.Archiver
	events   *observer.Publisher

	frameInterval time.Duration
	submitTimeout time.Duration
	detectTimeout time.Duration
	now           func() time.Time

	mu           sync.Mutex
	status       Status
	loading      bool
	result       *client.ScanResult
	progress     float64
	faces        int
	overlayFrame *image.RGBA
	stream       *camera.Stream
	closed       bool
}

// NewSession validates options and builds a session in the idle state.
func NewSession(opts Options) (*Session, error) {
	if opts.Camera == nil {
		return nil, errors.New("scan: camera is required")
	}
	if opts.Client == nil {
		return nil, errors.New("scan: client is required")
	}
	if opts.Policy == nil {
		return nil, errors.New("scan: trigger policy is required")
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 250 * time.Millisecond
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 15 * time.Second
	}
	if opts.DetectTimeout <= 0 {
		opts.DetectTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Session{
		cam:           opts.Camera,
		det:           opts.Detector,
		client:        opts.Client,
		policy:        opts.Policy,
		archiver:      opts.Archiver,
		events:        opts.Events,
		frameInterval: opts.FrameInterval,
		submitTimeout: opts.SubmitTimeout,
		detectTimeout: opts.DetectTimeout,
		now:           opts.Now,
		status:        StatusIdle,
	}, nil
}

// Run acquires the camera, initializes the detector when one is
// configured, and drives the capture loop until ctx is cancelled. The
// camera stream is released exactly once on the way out.
func (s *Session) Run(ctx context.Context) error {
	stream, err := s.cam.Open(ctx)
	if err != nil {
		return apperrors.NewCameraError("failed to acquire camera stream", err)
	}
	defer s.teardown()

	s.mu.Lock()
	s.stream = stream
	s.status = StatusScanning
	s.mu.Unlock()

	if s.det != nil {
		if err := s.det.Init(ctx); err != nil {
			logger.WithError(err).Error("Detector initialization failed")
			s.mu.Lock()
			s.status = StatusDetectorFailed
			s.mu.Unlock()
			// The loop is halted, but the session stays up so the status
			// surface can report the failure.
			<-ctx.Done()
			return err
		}
	}

	ticker := time.NewTicker(s.frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.step(ctx)
		}
	}
}

// teardown releases the camera stream and detaches the session. After
// this, no in-flight submission may touch session state.
func (s *Session) teardown() {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.closed = true
	s.mu.Unlock()

	if stream != nil {
		stream.Stop()
	}
	if err := s.cam.Close(); err != nil {
		logger.WithError(err).Warn("Camera release failed")
	}
	if s.det != nil {
		if err := s.det.Close(); err != nil {
			logger.WithError(err).Warn("Detector release failed")
		}
	}
}

// step runs one loop iteration: read a frame, detect, render the overlay,
// and fire the trigger policy.
func (s *Session) step(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	if s.closed || s.result != nil || s.status == StatusDetectorFailed {
		s.mu.Unlock()
		return
	}
	if s.status == StatusIdle {
		s.status = StatusScanning
	}
	s.mu.Unlock()

	frame, err := s.cam.ReadFrame(ctx)
	if err != nil {
		s.publish(observer.ScanEvent{
			EventType: observer.FrameDropped,
			Timestamp: now,
			Error:     err.Error(),
		})
		return
	}

	faces := 0
	var boxes []detector.Box
	if s.det != nil {
		dctx, cancel := context.WithTimeout(ctx, s.detectTimeout)
		boxes, err = s.det.Detect(dctx, frame)
		cancel()
		if err != nil {
			s.publish(observer.ScanEvent{
				EventType: observer.FrameDropped,
				Timestamp: now,
				Error:     err.Error(),
			})
			return
		}
		faces = len(boxes)
	}

	// Trigger evaluation reads the authoritative loading and result state
	// under the same lock, so an eligible tick during an in-flight
	// submission neither fires nor burns the cooldown.
	s.mu.Lock()
	eligible := s.policy.Observe(now, faces)
	fire := eligible && !s.loading && s.result == nil && !s.closed
	if fire {
		s.loading = true
		s.status = StatusSubmitting
		s.policy.MarkTriggered(now)
	}
	s.progress = s.policy.Progress(now)
	s.faces = faces
	if s.det != nil {
		s.overlayFrame = overlay.Render(frame, boxes, s.progress)
	}
	s.mu.Unlock()

	if fire {
		s.capture(frame)
	}
}

// capture freezes the current frame and starts a submission.
func (s *Session) capture(frame image.Image) {
	captureID := uuid.NewString()
	s.publish(observer.ScanEvent{
		EventType: observer.CaptureTriggered,
		Timestamp: s.now(),
		CaptureID: captureID,
	})

	// Fire and forget: the loop never blocks on the network.
	go s.submit(captureID, frame)
}

// submit encodes the clean frame and posts it to the recognition service.
// Every outcome path releases the loading flag atomically with the state
// it writes.
func (s *Session) submit(captureID string, frame image.Image) {
	jpegData, err := encodeFrame(frame)
	if err != nil {
		logger.WithError(err).WithField("capture_id", captureID).Error("Frame encoding failed")
		s.fail(FallbackMessage)
		return
	}

	// In-flight submissions are never cancelled; they run on their own
	// deadline and the detachment guard discards late outcomes.
	ctx, cancel := context.WithTimeout(context.Background(), s.submitTimeout)
	defer cancel()

	if s.archiver != nil {
		if err := s.archiver.Store(ctx, captureID, jpegData); err != nil {
			logger.WithError(err).WithField("capture_id", captureID).Warn("Capture archive failed")
		}
	}

	started := s.now()
	result, err := s.client.SubmitFace(ctx, captureID, jpegData)
	roundTrip := s.now().Sub(started)

	switch {
	case err != nil:
		message := FallbackMessage
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			message = apiErr.Message
		}
		s.fail(message)
		s.publish(observer.ScanEvent{
			EventType: observer.SubmitFailed,
			Timestamp: s.now(),
			CaptureID: captureID,
			Error:     err.Error(),
		})

	case result.Success:
		s.mu.Lock()
		s.loading = false
		if !s.closed {
			s.result = result
			s.status = StatusQRGenerated
		}
		s.mu.Unlock()
		s.publish(observer.ScanEvent{
			EventType: observer.SubmitSucceeded,
			Timestamp: s.now(),
			CaptureID: captureID,
			Status:    string(StatusQRGenerated),
			RoundTrip: roundTrip,
		})

	default:
		message := result.Message
		if message == "" {
			message = FallbackMessage
		}
		s.fail(message)
		s.publish(observer.ScanEvent{
			EventType: observer.SubmitRejected,
			Timestamp: s.now(),
			CaptureID: captureID,
			Status:    message,
			RoundTrip: roundTrip,
		})
	}
}

// fail releases the loading flag and sets a transient failure status
// unless the session is detached.
func (s *Session) fail(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if s.closed {
		return
	}
	s.status = Status(message)
}

// ResetScan clears the stored result and user record and re-arms the
// trigger policy. The next eligible trigger fires normally.
func (s *Session) ResetScan() {
	s.mu.Lock()
	s.result = nil
	s.progress = 0
	s.faces = 0
	if !s.closed {
		s.status = StatusIdle
	}
	s.policy.Reset()
	s.mu.Unlock()

	s.publish(observer.ScanEvent{
		EventType: observer.SessionReset,
		Timestamp: s.now(),
	})
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Status:   s.status,
		Loading:  s.loading,
		Progress: s.progress,
		Faces:    s.faces,
		Result:   s.result,
	}
}

// Result returns the stored scan result, or nil while none is displayed.
func (s *Session) Result() *client.ScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// OverlayFrame returns the most recent overlay rendering, or nil when the
// detection variant is not running.
func (s *Session) OverlayFrame() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overlayFrame == nil {
		return nil
	}
	return s.overlayFrame
}

func (s *Session) publish(event observer.ScanEvent) {
	if s.events == nil {
		return
	}
	s.events.Publish(context.Background(), event)
}

// encodeFrame encodes the clean frame as baseline JPEG at its native
// resolution. Overlay surfaces are never submitted.
func encodeFrame(frame image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
