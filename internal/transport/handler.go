package transport

import (
	"bytes"
	"image"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	apperrors "go-scan-kiosk/internal/errors"
	"go-scan-kiosk/internal/logger"
	"go-scan-kiosk/internal/observer"
	"go-scan-kiosk/internal/scan"
)

// Controller is the slice of the scan session the status surface needs.
type Controller interface {
	Snapshot() scan.Snapshot
	ResetScan()
	OverlayFrame() image.Image
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// NewHandler builds the kiosk's local HTTP surface: health, session
// status, the stored scan result, the live overlay frame, and manual
// reset.
func NewHandler(session Controller, metrics *observer.MetricsObserver) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", healthCheck)
	r.GET("/status", sessionStatus(session, metrics))
	r.GET("/result", scanResult(session))
	r.GET("/frame", overlayFrame(session))
	r.POST("/reset", resetScan(session))

	return r
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func sessionStatus(session Controller, metrics *observer.MetricsObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot := session.Snapshot()
		payload := gin.H{
			"status":   snapshot.Status,
			"loading":  snapshot.Loading,
			"progress": snapshot.Progress,
			"faces":    snapshot.Faces,
		}
		if metrics != nil {
			payload["metrics"] = metrics.Metrics()
		}
		c.JSON(http.StatusOK, payload)
	}
}

func scanResult(session Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot := session.Snapshot()
		if snapshot.Result == nil {
			respondError(c, apperrors.NewNotFoundError("no scan result available", nil))
			return
		}
		c.JSON(http.StatusOK, snapshot.Result)
	}
}

func overlayFrame(session Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		frame := session.OverlayFrame()
		if frame == nil {
			respondError(c, apperrors.NewNotFoundError("no overlay frame available", nil))
			return
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, frame, nil); err != nil {
			respondError(c, apperrors.NewInternalError("failed to encode overlay frame", err))
			return
		}
		c.Data(http.StatusOK, "image/jpeg", buf.Bytes())
	}
}

func resetScan(session Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		session.ResetScan()
		logger.WithFields(logrus.Fields{
			"ip": c.ClientIP(),
		}).Info("Scan session reset requested")
		c.JSON(http.StatusOK, gin.H{"status": scan.StatusIdle})
	}
}

// Middleware and helper functions
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		}).Debug("Request handled")
	}
}

func respondError(c *gin.Context, err *apperrors.AppError) {
	if err.StatusCode >= http.StatusInternalServerError {
		logger.WithError(err).WithFields(logrus.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("Request failed")
	}

	c.AbortWithStatusJSON(err.StatusCode, ErrorResponse{
		Error:   http.StatusText(err.StatusCode),
		Message: err.Message,
	})
}
