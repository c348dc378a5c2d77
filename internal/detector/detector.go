package detector

import (
	"context"
	"image"
)

// Box is one detected face, in frame coordinates.
type Box struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
}

// Detector locates faces in a video frame. Implementations must be
// initialized with Init before the first Detect call; init failure is a
// distinct, user-visible error state.
type Detector interface {
	// Init prepares the detector. It must succeed before Detect is used.
	Init(ctx context.Context) error

	// Detect returns the bounding boxes of every face in the frame.
	// An empty slice means no face was found.
	Detect(ctx context.Context, frame image.Image) ([]Box, error)

	// Close releases any resources held by the detector.
	Close() error
}
