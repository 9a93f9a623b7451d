// Package snapshot buffers concurrently arriving camera streams and produces
// consistent multi-stream snapshots by approximate timestamp matching.
//
// Each stream keeps only its most recent unmatched item. When every stream
// holds an item and the stamps span at most the slop window, the items are
// consumed into one immutable Snapshot, published atomically and signalled to
// waiting consumers. Producers never block.
package snapshot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robobench/graspd/internal/shared/cloud"
)

// ErrNoSnapshot is returned by Await when no snapshot arrives in time.
var ErrNoSnapshot = errors.New("snapshot: no synchronized camera data received")

// DefaultSlop is the timestamp spread tolerated across streams in one
// snapshot.
const DefaultSlop = 500 * time.Millisecond

// Intrinsics describes the camera's projection parameters.
type Intrinsics struct {
	Frame          string
	Stamp          time.Time
	Width, Height  int
	Fx, Fy, Cx, Cy float64
}

// Image is one color or depth frame. Data is carried opaquely for the
// planner; this service never decodes pixels.
type Image struct {
	Frame         string
	Stamp         time.Time
	Width, Height int
	Encoding      string
	Data          []byte
}

// Snapshot bundles one synchronized capture of all camera streams. It is
// immutable once produced and replaced wholesale on the next match.
type Snapshot struct {
	Intrinsics Intrinsics
	Color      Image
	Depth      Image
	Foreground *cloud.Cloud
	// Background is nil when no segmentation is available, i.e. when the
	// foreground and background streams resolve to the same source.
	Background *cloud.Cloud
	// Stamp is the newest stream stamp in the capture; Skew is the spread
	// between the newest and oldest.
	Stamp time.Time
	Skew  time.Duration
}

type cloudEntry struct {
	c      *cloud.Cloud
	source string
}

// Synchronizer consumes the five camera streams and publishes snapshots.
type Synchronizer struct {
	slop time.Duration

	mu         sync.Mutex
	intrinsics *Intrinsics
	color      *Image
	depth      *Image
	foreground *cloudEntry
	background *cloudEntry
	latest     *Snapshot

	// ready carries the snapshot_ready flag: one token per unconsumed match.
	ready chan struct{}
}

// New creates a synchronizer with the given slop window. A zero slop selects
// DefaultSlop.
func New(slop time.Duration) *Synchronizer {
	if slop <= 0 {
		slop = DefaultSlop
	}
	return &Synchronizer{
		slop:  slop,
		ready: make(chan struct{}, 1),
	}
}

// OfferIntrinsics buffers a camera info message. It returns the produced
// snapshot when the offer completes a match, nil otherwise.
func (s *Synchronizer) OfferIntrinsics(in Intrinsics) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intrinsics = &in
	return s.tryMatch()
}

// OfferColor buffers a color frame.
func (s *Synchronizer) OfferColor(img Image) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.color = &img
	return s.tryMatch()
}

// OfferDepth buffers a depth frame.
func (s *Synchronizer) OfferDepth(img Image) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.depth = &img
	return s.tryMatch()
}

// OfferForeground buffers a foreground cloud. source identifies the
// publishing stream so duplicate foreground/background sources can be
// collapsed at match time.
func (s *Synchronizer) OfferForeground(c *cloud.Cloud, source string) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.foreground = &cloudEntry{c: c, source: source}
	return s.tryMatch()
}

// OfferBackground buffers a background cloud.
func (s *Synchronizer) OfferBackground(c *cloud.Cloud, source string) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.background = &cloudEntry{c: c, source: source}
	return s.tryMatch()
}

// tryMatch is called with the lock held after every offer.
func (s *Synchronizer) tryMatch() *Snapshot {
	if s.intrinsics == nil || s.color == nil || s.depth == nil || s.foreground == nil || s.background == nil {
		return nil
	}

	stamps := []time.Time{
		s.intrinsics.Stamp,
		s.color.Stamp,
		s.depth.Stamp,
		s.foreground.c.Stamp,
		s.background.c.Stamp,
	}
	oldest, newest := stamps[0], stamps[0]
	for _, st := range stamps[1:] {
		if st.Before(oldest) {
			oldest = st
		}
		if st.After(newest) {
			newest = st
		}
	}
	if newest.Sub(oldest) > s.slop {
		return nil
	}

	snap := &Snapshot{
		Intrinsics: *s.intrinsics,
		Color:      *s.color,
		Depth:      *s.depth,
		Foreground: s.foreground.c,
		Stamp:      newest,
		Skew:       newest.Sub(oldest),
	}
	if s.background.source != s.foreground.source {
		snap.Background = s.background.c
	}

	s.intrinsics = nil
	s.color = nil
	s.depth = nil
	s.foreground = nil
	s.background = nil
	s.latest = snap

	// Set the ready flag without blocking; an unconsumed token is replaced
	// by keeping it.
	select {
	case s.ready <- struct{}{}:
	default:
	}
	return snap
}

// Await blocks until a snapshot is ready or the wait budget expires,
// consuming the ready flag on success.
func (s *Synchronizer) Await(ctx context.Context, wait time.Duration) (*Snapshot, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-s.ready:
		s.mu.Lock()
		snap := s.latest
		s.mu.Unlock()
		return snap, nil
	case <-timer.C:
		return nil, ErrNoSnapshot
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Latest returns the most recently matched snapshot, or nil. It does not
// consume the ready flag.
func (s *Synchronizer) Latest() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}
