package camera

import (
	"context"
	"image"
	"sync"
)

// Camera provides live frames to the scan session. The stream returned by
// Open is owned exclusively by the caller and must be stopped via Close.
type Camera interface {
	// Open acquires the camera stream. Failure is fatal to the session:
	// there is no silent fallback source.
	Open(ctx context.Context) (*Stream, error)

	// ReadFrame returns the current frame. It is only valid between Open
	// and Close.
	ReadFrame(ctx context.Context) (image.Image, error)

	// Close stops every track of the acquired stream and releases the
	// device. Close is idempotent.
	Close() error
}

// TrackKind identifies the media type carried by a track.
type TrackKind string

const (
	TrackVideo TrackKind = "video"
)

// Track is one media track of an acquired stream. Stopping a track is
// permanent; a stopped track never produces frames again.
type Track struct {
	Kind TrackKind

	mu      sync.Mutex
	stopped bool
}

// Stop marks the track stopped. Safe to call more than once.
func (t *Track) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

// Stopped reports whether the track has been stopped.
func (t *Track) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Stream bundles the tracks of one camera acquisition. The release
// invariant for a scan session is ActiveTracks() == 0 after teardown.
type Stream struct {
	tracks []*Track
}

// NewStream creates a stream over the given tracks.
func NewStream(tracks ...*Track) *Stream {
	return &Stream{tracks: tracks}
}

// Tracks returns the tracks of the stream.
func (s *Stream) Tracks() []*Track {
	return s.tracks
}

// Stop stops every track of the stream.
func (s *Stream) Stop() {
	for _, t := range s.tracks {
		t.Stop()
	}
}

// ActiveTracks counts tracks that have not been stopped.
func (s *Stream) ActiveTracks() int {
	active := 0
	for _, t := range s.tracks {
		if !t.Stopped() {
			active++
		}
	}
	return active
}
