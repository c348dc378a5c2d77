package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"go-scan-kiosk/pkg/validation"
)

// Config carries every externally injected setting. The recognition
// endpoint is configuration, never a compile-time constant.
type Config struct {
	Host string
	Port string

	// ScanEndpointURL is the remote recognition/QR service the kiosk
	// submits captured frames to.
	ScanEndpointURL string

	// CameraURL is the snapshot endpoint of the kiosk camera.
	CameraURL string

	// DetectorURL points at the face-detection inference service. When
	// empty the kiosk runs the basic fixed-interval capture variant.
	DetectorURL string

	FrameInterval   time.Duration
	StabilityWindow time.Duration
	CooldownWindow  time.Duration
	CaptureInterval time.Duration
	SubmitTimeout   time.Duration
	DetectTimeout   time.Duration

	MinConfidence float64

	// Azure capture archive; all three must be set to enable it.
	AzureAccount   string
	AzureKey       string
	AzureContainer string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// DetectionEnabled reports whether the detection-gated capture variant is
// configured.
func (c *Config) DetectionEnabled() bool {
	return c.DetectorURL != ""
}

// ArchiveEnabled reports whether captured frames are archived to blob
// storage.
func (c *Config) ArchiveEnabled() bool {
	return c.AzureAccount != "" && c.AzureKey != "" && c.AzureContainer != ""
}

func LoadFromEnv() (*Config, error) {
	// Set defaults
	cfg := &Config{
		Host:            getEnvOrDefault("HOST", "0.0.0.0"),
		Port:            getEnvOrDefault("PORT", "8080"),
		ScanEndpointURL: os.Getenv("SCAN_ENDPOINT_URL"),
		CameraURL:       os.Getenv("CAMERA_URL"),
		DetectorURL:     os.Getenv("DETECTOR_URL"),
		FrameInterval:   parseDurationOrDefault("FRAME_INTERVAL", 250*time.Millisecond),
		StabilityWindow: parseDurationOrDefault("STABILITY_WINDOW", time.Second),
		CooldownWindow:  parseDurationOrDefault("COOLDOWN_WINDOW", 3*time.Second),
		CaptureInterval: parseDurationOrDefault("CAPTURE_INTERVAL", 3*time.Second),
		SubmitTimeout:   parseDurationOrDefault("SUBMIT_TIMEOUT", 15*time.Second),
		DetectTimeout:   parseDurationOrDefault("DETECT_TIMEOUT", 5*time.Second),
		MinConfidence:   parseFloatOrDefault("MIN_CONFIDENCE", 0.3),
		AzureAccount:    os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureKey:        os.Getenv("AZURE_STORAGE_KEY"),
		AzureContainer:  os.Getenv("AZURE_ARCHIVE_CONTAINER"),
	}

	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}

	urlValidator := validation.NewEndpointValidator()
	if err := urlValidator.ValidateEndpointURL(cfg.ScanEndpointURL); err != nil {
		return nil, fmt.Errorf("invalid SCAN_ENDPOINT_URL: %w", err)
	}
	if err := urlValidator.ValidateEndpointURL(cfg.CameraURL); err != nil {
		return nil, fmt.Errorf("invalid CAMERA_URL: %w", err)
	}
	if cfg.DetectorURL != "" {
		if err := urlValidator.ValidateEndpointURL(cfg.DetectorURL); err != nil {
			return nil, fmt.Errorf("invalid DETECTOR_URL: %w", err)
		}
	}

	if cfg.FrameInterval <= 0 || cfg.StabilityWindow <= 0 || cfg.CooldownWindow <= 0 || cfg.CaptureInterval <= 0 {
		return nil, fmt.Errorf("windows must be > 0 (got frame=%s, stability=%s, cooldown=%s, capture=%s)",
			cfg.FrameInterval, cfg.StabilityWindow, cfg.CooldownWindow, cfg.CaptureInterval)
	}
	if cfg.SubmitTimeout <= 0 || cfg.DetectTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0 (got submit=%s, detect=%s)",
			cfg.SubmitTimeout, cfg.DetectTimeout)
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return nil, fmt.Errorf("MIN_CONFIDENCE must be in [0, 1] (got %v)", cfg.MinConfidence)
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
