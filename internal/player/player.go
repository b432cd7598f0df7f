// Package player owns the playback state for one mounted player:
// play/pause/seek/volume/rate/fullscreen, the auto-hiding control
// overlay, and the long-press keyboard interactions.
package player

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/reelgrid/reelgrid/internal/playcache"
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StatePlaying
	StatePaused
	StateEnded
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Media is the element the player drives. Events flow back in through
// the Handle* methods.
type Media interface {
	Play() error
	Pause()
	Load(src string)
	SetCurrentTime(seconds float64)
	SetRate(rate float64)
	SetVolume(v float64)
	SetMuted(muted bool)
	Duration() float64
}

// FullscreenHost abstracts the container the player goes fullscreen in.
type FullscreenHost interface {
	Enter() error
	Exit() error
	Active() bool
}

// StallSink receives the stall-related media events the player relays
// onward. Satisfied by monitor.Monitor.
type StallSink interface {
	HandleWaiting()
	HandlePlaying()
	HandleCanPlay()
	HandleError()
}

const (
	seekStep            = 5.0
	boostRate           = 3.0
	defaultUnmuteVolume = 0.5

	longPressThreshold = 300 * time.Millisecond
	repeatInterval     = 200 * time.Millisecond
	hideDelay          = 3 * time.Second
	leaveHideDelay     = 200 * time.Millisecond

	durationPollAttempts = 10
	durationPollInterval = 200 * time.Millisecond
)

type Config struct {
	Media      Media
	Fullscreen FullscreenHost
	Stall      StallSink
	Clock      clockwork.Clock
	// Cache and CacheKey are optional; when set, discovered durations
	// are persisted and a fresh cached duration seeds the display.
	Cache    *playcache.Cache
	CacheKey string
	OnLoaded func(duration float64)
}

// keyPress tracks one arrow key independently so long-press state on
// one key can never corrupt the other's.
type keyPress struct {
	held      bool
	longPress clockwork.Timer
	repeat    clockwork.Timer
}

func (k *keyPress) stopTimers() {
	if k.longPress != nil {
		k.longPress.Stop()
		k.longPress = nil
	}
	if k.repeat != nil {
		k.repeat.Stop()
		k.repeat = nil
	}
}

type Player struct {
	mu         sync.Mutex
	media      Media
	fullscreen FullscreenHost
	stall      StallSink
	clock      clockwork.Clock
	cache      *playcache.Cache
	cacheKey   string
	onLoaded   func(float64)

	state         State
	currentTime   float64
	duration      float64
	volume        float64
	muted         bool
	rate          float64 // nominal, user-selected
	effectiveRate float64 // actually applied; differs during boost
	boosting      bool
	speedTip      bool

	controlsVisible bool
	hideTimer       clockwork.Timer
	leaveTimer      clockwork.Timer

	left  keyPress
	right keyPress

	seeking      bool
	pollTimer    clockwork.Timer
	pollAttempts int

	closed bool
}

func New(cfg Config) *Player {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	p := &Player{
		media:           cfg.Media,
		fullscreen:      cfg.Fullscreen,
		stall:           cfg.Stall,
		clock:           clock,
		cache:           cfg.Cache,
		cacheKey:        cfg.CacheKey,
		onLoaded:        cfg.OnLoaded,
		state:           StateIdle,
		volume:          1,
		rate:            1,
		effectiveRate:   1,
		controlsVisible: true,
	}
	if p.cache != nil && p.cacheKey != "" {
		if d, ok := p.cache.FreshDuration(context.Background(), p.cacheKey); ok {
			p.duration = d
		}
	}
	return p
}

// Load points the media element at a new source and supersedes any
// in-flight duration poll tied to the previous one.
func (p *Player) Load(src string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.stopPollLocked()
	p.state = StateLoading
	p.currentTime = 0
	p.media.Load(src)
}

func (p *Player) TogglePlay() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.togglePlayLocked()
}

func (p *Player) togglePlayLocked() {
	if p.closed {
		return
	}
	if p.state == StatePlaying {
		p.media.Pause()
		return
	}
	// Autoplay policy failures and the like are not crashes.
	if err := p.media.Play(); err != nil {
		log.Printf("player: play rejected: %v", err)
	}
}

// SeekAbsolute maps a fraction of the progress track to a position.
func (p *Player) SeekAbsolute(fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seekAbsoluteLocked(fraction)
}

func (p *Player) seekAbsoluteLocked(fraction float64) {
	if p.closed || p.duration <= 0 {
		return
	}
	fraction = math.Max(0, math.Min(1, fraction))
	p.setTimeLocked(fraction * p.duration)
}

// SeekStart begins a drag-to-seek gesture.
func (p *Player) SeekStart(fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seeking = true
	p.seekAbsoluteLocked(fraction)
}

// SeekMove updates the position live while a gesture is active.
func (p *Player) SeekMove(fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.seeking {
		return
	}
	p.seekAbsoluteLocked(fraction)
}

// SeekEnd finishes the gesture.
func (p *Player) SeekEnd() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seeking = false
}

// SeekRelative adjusts the position by a signed offset, clamped to
// [0, duration].
func (p *Player) SeekRelative(deltaSeconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seekRelativeLocked(deltaSeconds)
}

func (p *Player) seekRelativeLocked(deltaSeconds float64) {
	if p.closed {
		return
	}
	p.setTimeLocked(p.currentTime + deltaSeconds)
}

func (p *Player) setTimeLocked(t float64) {
	if t < 0 {
		t = 0
	}
	if p.duration > 0 && t > p.duration {
		t = p.duration
	}
	p.currentTime = t
	p.media.SetCurrentTime(t)
}

func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	v = math.Max(0, math.Min(1, v))
	p.volume = v
	p.muted = v == 0
	p.media.SetVolume(v)
}

// ToggleMute flips mute; unmuting at zero volume restores a default
// audible level.
func (p *Player) ToggleMute() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.muted = !p.muted
	p.media.SetMuted(p.muted)
	if !p.muted && p.volume == 0 {
		p.volume = defaultUnmuteVolume
		p.media.SetVolume(defaultUnmuteVolume)
	}
}

// SetPlaybackRate applies a user-selected rate. Ignored while a speed
// boost is active to avoid conflicting rate writes.
func (p *Player) SetPlaybackRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.boosting || rate <= 0 {
		return
	}
	p.rate = rate
	p.effectiveRate = rate
	p.media.SetRate(rate)
}

func (p *Player) ToggleFullscreen() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.fullscreen == nil {
		return
	}
	var err error
	if p.fullscreen.Active() {
		err = p.fullscreen.Exit()
	} else {
		err = p.fullscreen.Enter()
	}
	if err != nil {
		log.Printf("player: fullscreen toggle: %v", err)
	}
}

// Close cancels every pending timer and detaches the player. Late
// timer callbacks become no-ops.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.left.stopTimers()
	p.right.stopTimers()
	p.stopPollLocked()
	if p.hideTimer != nil {
		p.hideTimer.Stop()
		p.hideTimer = nil
	}
	if p.leaveTimer != nil {
		p.leaveTimer.Stop()
		p.leaveTimer = nil
	}
	p.media.Pause()
}

// Playback is a snapshot of the player state for rendering and tests.
type Playback struct {
	State           State
	CurrentTime     float64
	Duration        float64
	Volume          float64
	Muted           bool
	Rate            float64
	EffectiveRate   float64
	Boosting        bool
	SpeedTipVisible bool
	ControlsVisible bool
}

func (p *Player) Snapshot() Playback {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Playback{
		State:           p.state,
		CurrentTime:     p.currentTime,
		Duration:        p.duration,
		Volume:          p.volume,
		Muted:           p.muted,
		Rate:            p.rate,
		EffectiveRate:   p.effectiveRate,
		Boosting:        p.boosting,
		SpeedTipVisible: p.speedTip,
		ControlsVisible: p.controlsVisible,
	}
}
