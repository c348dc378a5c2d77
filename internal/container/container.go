package container

import (
	"fmt"
	"net/http"

	"go-scan-kiosk/internal/archive"
	"go-scan-kiosk/internal/camera"
	"go-scan-kiosk/internal/client"
	"go-scan-kiosk/internal/config"
	"go-scan-kiosk/internal/detector"
	"go-scan-kiosk/internal/logger"
	"go-scan-kiosk/internal/observer"
	"go-scan-kiosk/internal/scan"
	"go-scan-kiosk/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config  *config.Config
	session *scan.Session
	metrics *observer.MetricsObserver
	handler http.Handler
}

// NewContainer wires the kiosk together from configuration: camera,
// detector (when configured), trigger policy, scan client, archiver,
// observers, session, and the HTTP surface.
func NewContainer(cfg *config.Config) (*Container, error) {
	cam := camera.NewHTTPCamera(cfg.CameraURL)
	scanClient := client.NewHTTPScanClient(cfg.ScanEndpointURL)

	// The detection-gated variant needs an inference service; without one
	// the kiosk captures on a fixed interval.
	var det detector.Detector
	var policy scan.TriggerPolicy
	if cfg.DetectionEnabled() {
		det = detector.NewRemoteDetector(cfg.DetectorURL, cfg.MinConfidence)
		policy = scan.NewStabilityPolicy(cfg.StabilityWindow, cfg.CooldownWindow)
	} else {
		policy = scan.NewIntervalPolicy(cfg.CaptureInterval)
	}

	var archiver archive.Archiver
	if cfg.ArchiveEnabled() {
		var err error
		archiver, err = archive.NewBlobArchiver(cfg.AzureAccount, cfg.AzureKey, cfg.AzureContainer)
		if err != nil {
			return nil, fmt.Errorf("failed to build capture archiver: %w", err)
		}
	} else {
		archiver = archive.NewNoopArchiver()
	}

	metrics := observer.NewMetricsObserver()
	events := observer.NewPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	session, err := scan.NewSession(scan.Options{
		Camera:        cam,
		Detector:      det,
		Client:        scanClient,
		Policy:        policy,
		Archiver:      archiver,
		Events:        events,
		FrameInterval: cfg.FrameInterval,
		SubmitTimeout: cfg.SubmitTimeout,
		DetectTimeout: cfg.DetectTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &Container{
		config:  cfg,
		session: session,
		metrics: metrics,
		handler: transport.NewHandler(session, metrics),
	}, nil
}

// Session returns the scan session
func (c *Container) Session() *scan.Session {
	return c.session
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}
