// Package monitor tracks playback stalls and estimates download
// throughput from buffered-range growth.
package monitor

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
)

// SizeProber reports the total byte size of a media resource.
// Implementations are best-effort; an error means the size is unknown.
type SizeProber interface {
	ProbeSize(ctx context.Context, url string) (int64, error)
}

// HTTPProber probes size with a HEAD request against the source URL.
type HTTPProber struct {
	Client *http.Client
}

func (p *HTTPProber) ProbeSize(ctx context.Context, url string) (int64, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("probe %s: status %d", url, resp.StatusCode)
	}
	if resp.ContentLength <= 0 {
		return 0, fmt.Errorf("probe %s: size not reported", url)
	}
	return resp.ContentLength, nil
}

type Config struct {
	Clock  clockwork.Clock
	Prober SizeProber
}

// Monitor holds the buffering flag and throughput samples for one
// playback session. All methods are safe for concurrent use.
type Monitor struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	prober SizeProber

	buffering  bool
	totalBytes int64
	duration   float64

	hasSample   bool
	lastLoaded  float64
	lastSample  time.Time
	speedBps    float64
	speedKnown  bool
	downlinkBps float64
}

func New(cfg Config) *Monitor {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Monitor{clock: clock, prober: cfg.Prober}
}

// SetSource resets all samples and probes the new source's total size.
// A failed probe leaves the size unknown; speed then comes from the
// network hint or is suppressed.
func (m *Monitor) SetSource(ctx context.Context, url string) {
	m.mu.Lock()
	m.resetSamplesLocked()
	m.totalBytes = 0
	prober := m.prober
	m.mu.Unlock()

	if prober == nil || url == "" {
		return
	}
	size, err := prober.ProbeSize(ctx, url)
	if err != nil {
		log.Printf("probe: %v", err)
		return
	}
	m.mu.Lock()
	m.totalBytes = size
	m.mu.Unlock()
}

func (m *Monitor) resetSamplesLocked() {
	m.hasSample = false
	m.lastLoaded = 0
	m.speedBps = 0
	m.speedKnown = false
}

func (m *Monitor) SetDuration(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duration = seconds
}

// SetNetworkHint records a coarse downlink estimate in megabits per
// second, used only when the total size is unknown.
func (m *Monitor) SetNetworkHint(downlinkMbps float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if downlinkMbps <= 0 {
		m.downlinkBps = 0
		return
	}
	m.downlinkBps = downlinkMbps * 1e6 / 8
}

// Media stall events.

func (m *Monitor) HandleWaiting() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffering = true
}

func (m *Monitor) HandlePlaying() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffering = false
}

func (m *Monitor) HandleCanPlay() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffering = false
}

// HandleError clears the indicator; the source resolver owns error
// recovery and a stuck spinner over an error prompt helps nobody.
func (m *Monitor) HandleError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffering = false
}

func (m *Monitor) Buffering() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buffering
}

// Progress takes a buffered-range end position (seconds) from a media
// progress event and updates the speed estimate from the byte delta
// since the previous sample.
func (m *Monitor) Progress(bufferedEnd float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.totalBytes <= 0 || m.duration <= 0 {
		return
	}
	loaded := bufferedEnd / m.duration * float64(m.totalBytes)
	now := m.clock.Now()
	if m.hasSample {
		dt := now.Sub(m.lastSample).Seconds()
		// A backward jump means the element re-buffered after a seek;
		// rebaseline instead of reporting a negative speed.
		if dt > 0 && loaded >= m.lastLoaded {
			m.speedBps = (loaded - m.lastLoaded) / dt
			m.speedKnown = true
		}
	}
	m.hasSample = true
	m.lastLoaded = loaded
	m.lastSample = now
}

// Speed returns the estimated throughput in bytes per second. ok is
// false when no honest estimate exists; callers must hide the display
// rather than show a made-up number.
func (m *Monitor) Speed() (bps float64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.speedKnown {
		return m.speedBps, true
	}
	if m.downlinkBps > 0 {
		return m.downlinkBps, true
	}
	return 0, false
}

// SpeedText formats the estimate for the indicator, or "" when there
// is nothing honest to show.
func (m *Monitor) SpeedText() string {
	bps, ok := m.Speed()
	if !ok {
		return ""
	}
	return humanize.Bytes(uint64(bps)) + "/s"
}
