// Package stats tracks rolling feed-health metrics over a session: the gap
// between successive frames of any kind, and checksum-validation latency.
// Both ride github.com/c-pro/rolling's deque-backed sliding window, bounded
// by count and duration so old samples age out on their own.
package stats

import (
	"sync"
	"time"

	"github.com/c-pro/rolling"
)

// DefaultWindowSize is the number of samples kept per rolling window.
const DefaultWindowSize = 512

// DefaultWindowDuration bounds samples by age as well as count, so a feed
// that goes quiet doesn't keep reporting stale numbers forever.
const DefaultWindowDuration = 5 * time.Minute

// FeedHealth accumulates rolling statistics about one session's frame
// arrival cadence and checksum-validation cost. Safe for concurrent use;
// Observe is expected to be called from the single connectAndServe reader
// goroutine, while Snapshot may be called from any goroutine.
type FeedHealth struct {
	mu sync.Mutex

	frameGap  *rolling.Window
	checksum  *rolling.Window
	lastFrame time.Time
}

// NewFeedHealth creates a FeedHealth with the default window size/duration.
func NewFeedHealth() *FeedHealth {
	return &FeedHealth{
		frameGap: rolling.NewWindow(DefaultWindowSize, DefaultWindowDuration),
		checksum: rolling.NewWindow(DefaultWindowSize, DefaultWindowDuration),
	}
}

// ObserveFrame records that a frame (of any kind) just arrived, adding the
// gap since the previous one to the rolling window. The first call after
// construction or Reset only seeds lastFrame; it has no prior gap to record.
func (f *FeedHealth) ObserveFrame(at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.lastFrame.IsZero() {
		f.frameGap.Add(float64(at.Sub(f.lastFrame)))
	}
	f.lastFrame = at
}

// ObserveChecksum records how long a single checksum validation took.
func (f *FeedHealth) ObserveChecksum(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checksum.Add(float64(d))
}

// Snapshot is a point-in-time read of the rolling windows.
type Snapshot struct {
	FrameGapAvg   time.Duration
	FrameGapMax   time.Duration
	FrameGapCount int64

	ChecksumAvg   time.Duration
	ChecksumMax   time.Duration
	ChecksumCount int64
}

// Snapshot returns the current rolling statistics. NaN averages (an empty
// window) surface as zero durations rather than propagating NaN outward.
func (f *FeedHealth) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	return Snapshot{
		FrameGapAvg:   durationOrZero(f.frameGap.Avg()),
		FrameGapMax:   durationOrZero(f.frameGap.Max()),
		FrameGapCount: f.frameGap.Count(),

		ChecksumAvg:   durationOrZero(f.checksum.Avg()),
		ChecksumMax:   durationOrZero(f.checksum.Max()),
		ChecksumCount: f.checksum.Count(),
	}
}

func durationOrZero(v float64) time.Duration {
	if v != v { // NaN
		return 0
	}
	return time.Duration(v)
}
