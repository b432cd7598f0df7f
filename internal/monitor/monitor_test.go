package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type fakeProber struct {
	size  int64
	err   error
	calls int
}

func (f *fakeProber) ProbeSize(ctx context.Context, url string) (int64, error) {
	f.calls++
	return f.size, f.err
}

func TestBufferingFollowsStallEvents(t *testing.T) {
	m := New(Config{Clock: clockwork.NewFakeClock()})

	m.HandleWaiting()
	if !m.Buffering() {
		t.Fatal("waiting must raise the buffering flag")
	}
	m.HandlePlaying()
	if m.Buffering() {
		t.Error("playing must clear the buffering flag")
	}

	m.HandleWaiting()
	m.HandleCanPlay()
	if m.Buffering() {
		t.Error("canplay must clear the buffering flag")
	}

	m.HandleWaiting()
	m.HandleError()
	if m.Buffering() {
		t.Error("error must clear the buffering flag")
	}
}

func TestSpeedFromBufferedDeltas(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := New(Config{Clock: clock, Prober: &fakeProber{size: 100_000_000}})
	m.SetSource(context.Background(), "https://media.example.com/v.mp4")
	m.SetDuration(100)

	m.Progress(10) // 10% of 100 MB loaded
	clock.Advance(2 * time.Second)
	m.Progress(12) // +2 MB over 2 s

	bps, ok := m.Speed()
	if !ok {
		t.Fatal("expected a speed estimate after two samples")
	}
	if bps < 999_000 || bps > 1_001_000 {
		t.Errorf("expected ~1 MB/s, got %v", bps)
	}
}

func TestSingleSampleYieldsNoSpeed(t *testing.T) {
	m := New(Config{Clock: clockwork.NewFakeClock(), Prober: &fakeProber{size: 1000}})
	m.SetSource(context.Background(), "u")
	m.SetDuration(10)

	m.Progress(5)

	if _, ok := m.Speed(); ok {
		t.Error("one sample has no delta; speed must be unknown")
	}
}

func TestBackwardBufferJumpRebaselines(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := New(Config{Clock: clock, Prober: &fakeProber{size: 1_000_000}})
	m.SetSource(context.Background(), "u")
	m.SetDuration(100)

	m.Progress(50)
	clock.Advance(time.Second)
	m.Progress(10) // user sought backwards, ranges re-buffered

	if bps, ok := m.Speed(); ok && bps < 0 {
		t.Errorf("negative speed must never be reported, got %v", bps)
	}

	clock.Advance(time.Second)
	m.Progress(20) // 10% of 1 MB over 1 s from the new baseline
	bps, ok := m.Speed()
	if !ok || bps < 99_000 || bps > 101_000 {
		t.Errorf("expected ~100 KB/s after rebaseline, got %v ok=%v", bps, ok)
	}
}

func TestUnknownSizeFallsBackToNetworkHint(t *testing.T) {
	m := New(Config{Clock: clockwork.NewFakeClock(), Prober: &fakeProber{err: errors.New("no head support")}})
	m.SetSource(context.Background(), "u")
	m.SetDuration(100)
	m.Progress(10)

	if _, ok := m.Speed(); ok {
		t.Fatal("no size and no hint must suppress the speed display")
	}

	m.SetNetworkHint(8) // 8 Mbps = 1 MB/s
	bps, ok := m.Speed()
	if !ok || bps != 1e6 {
		t.Errorf("expected hint-derived 1 MB/s, got %v ok=%v", bps, ok)
	}
}

func TestMeasuredSpeedBeatsHint(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := New(Config{Clock: clock, Prober: &fakeProber{size: 1_000_000}})
	m.SetSource(context.Background(), "u")
	m.SetDuration(100)
	m.SetNetworkHint(80)

	m.Progress(10)
	clock.Advance(time.Second)
	m.Progress(20)

	bps, ok := m.Speed()
	if !ok || bps > 200_000 {
		t.Errorf("measured delta must override the hint, got %v", bps)
	}
}

func TestSpeedTextSuppressedWhenUnknown(t *testing.T) {
	m := New(Config{Clock: clockwork.NewFakeClock()})
	if got := m.SpeedText(); got != "" {
		t.Errorf("expected empty speed text, got %q", got)
	}
}

func TestSpeedTextHumanized(t *testing.T) {
	m := New(Config{Clock: clockwork.NewFakeClock()})
	m.SetNetworkHint(8)
	if got := m.SpeedText(); got != "1.0 MB/s" {
		t.Errorf("expected humanized rate, got %q", got)
	}
}

func TestSourceChangeResetsSamplesAndReprobes(t *testing.T) {
	clock := clockwork.NewFakeClock()
	prober := &fakeProber{size: 1_000_000}
	m := New(Config{Clock: clock, Prober: prober})
	ctx := context.Background()

	m.SetSource(ctx, "https://a/v.mp4")
	m.SetDuration(100)
	m.Progress(10)
	clock.Advance(time.Second)
	m.Progress(20)
	if _, ok := m.Speed(); !ok {
		t.Fatal("expected speed before source change")
	}

	m.SetSource(ctx, "https://relay/v.mp4")

	if _, ok := m.Speed(); ok {
		t.Error("source change must drop stale samples")
	}
	if prober.calls != 2 {
		t.Errorf("expected a probe per source, got %d", prober.calls)
	}
}

func TestHTTPProberReadsContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.Header().Set("Content-Length", strconv.Itoa(4096))
	}))
	defer srv.Close()

	size, err := (&HTTPProber{}).ProbeSize(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size != 4096 {
		t.Errorf("expected 4096, got %d", size)
	}
}

func TestHTTPProberErrorStatusMeansUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := (&HTTPProber{}).ProbeSize(context.Background(), srv.URL); err == nil {
		t.Error("expected an error for a 403 probe")
	}
}
