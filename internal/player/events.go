package player

import (
	"context"
	"log"
	"math"
)

// Media element event intake. Each mirrors the corresponding element
// event; the page glue forwards them here.

func (p *Player) HandleLoadedMetadata() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.state == StateIdle || p.state == StateLoading {
		p.state = StateReady
	}
	p.stopPollLocked()
	p.pollAttempts = 0
	p.tryDurationLocked()
}

// tryDurationLocked handles lazily-resolved metadata: some source and
// browser combinations report NaN or Inf durations at first, so the
// reported value is polled a bounded number of times.
func (p *Player) tryDurationLocked() {
	d := p.media.Duration()
	if validDuration(d) {
		p.duration = d
		p.persistDurationLocked(d)
		if p.onLoaded != nil {
			cb := p.onLoaded
			go cb(d)
		}
		return
	}
	if p.pollAttempts >= durationPollAttempts {
		return
	}
	p.pollAttempts++
	p.pollTimer = p.clock.AfterFunc(durationPollInterval, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			return
		}
		p.tryDurationLocked()
	})
}

func validDuration(d float64) bool {
	return d > 0 && !math.IsNaN(d) && !math.IsInf(d, 0)
}

func (p *Player) persistDurationLocked(d float64) {
	if p.cache == nil || p.cacheKey == "" {
		return
	}
	if err := p.cache.SetDuration(context.Background(), p.cacheKey, d); err != nil {
		log.Printf("player: cache duration for %s: %v", p.cacheKey, err)
	}
}

func (p *Player) stopPollLocked() {
	if p.pollTimer != nil {
		p.pollTimer.Stop()
		p.pollTimer = nil
	}
}

func (p *Player) HandleTimeUpdate(currentTime float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.currentTime = currentTime
}

func (p *Player) HandlePlay() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.state = StatePlaying
}

// Stall events pass through to the throughput monitor; HandlePlaying
// and HandleCanPlay additionally confirm playback state.

func (p *Player) HandleWaiting() {
	if p.stall != nil {
		p.stall.HandleWaiting()
	}
}

func (p *Player) HandlePlaying() {
	p.mu.Lock()
	if !p.closed {
		p.state = StatePlaying
	}
	p.mu.Unlock()
	if p.stall != nil {
		p.stall.HandlePlaying()
	}
}

func (p *Player) HandleCanPlay() {
	p.mu.Lock()
	if !p.closed && p.state == StateLoading {
		p.state = StateReady
	}
	p.mu.Unlock()
	if p.stall != nil {
		p.stall.HandleCanPlay()
	}
}

func (p *Player) HandlePause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.state == StateEnded {
		return
	}
	p.state = StatePaused
}

func (p *Player) HandleEnded() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.state = StateEnded
}

// HandleError moves the player to the error state. Recovery happens
// through the source resolver (relay engagement, retry), so the state
// is not terminal.
func (p *Player) HandleError(err error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.state = StateError
	p.mu.Unlock()
	log.Printf("player: media error: %v", err)
	if p.stall != nil {
		p.stall.HandleError()
	}
}
