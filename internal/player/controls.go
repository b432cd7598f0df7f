package player

// Key is a player control key.
type Key int

const (
	KeyLeft Key = iota
	KeyRight
	KeySpace
)

// KeyDown handles a key press. Callers suppress the browser default
// (page scroll on space, history navigation on arrows) themselves.
// Holding a key delivers repeated KeyDown events; the held latch keeps
// auto-repeat from restarting the long-press timer.
func (p *Player) KeyDown(key Key) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.activityLocked()
	switch key {
	case KeySpace:
		p.togglePlayLocked()
	case KeyLeft:
		if p.left.held {
			return
		}
		p.left.held = true
		p.left.stopTimers()
		p.seekRelativeLocked(-seekStep)
		p.left.longPress = p.clock.AfterFunc(longPressThreshold, p.leftLongPressFired)
	case KeyRight:
		if p.right.held {
			return
		}
		p.right.held = true
		p.right.stopTimers()
		p.seekRelativeLocked(seekStep)
		p.right.longPress = p.clock.AfterFunc(longPressThreshold, p.rightLongPressFired)
	}
}

func (p *Player) KeyUp(key Key) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch key {
	case KeyLeft:
		p.left.held = false
		p.left.stopTimers()
	case KeyRight:
		p.right.held = false
		p.right.stopTimers()
		p.endBoostLocked()
	}
}

// Blur clears all long-press state when the player loses input focus,
// so a key released outside the player cannot leave a boost running.
func (p *Player) Blur() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.left.held = false
	p.left.stopTimers()
	p.right.held = false
	p.right.stopTimers()
	p.endBoostLocked()
}

// Holding left past the threshold repeats the backward seek.
func (p *Player) leftLongPressFired() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !p.left.held {
		return
	}
	p.scheduleLeftRepeatLocked()
}

func (p *Player) scheduleLeftRepeatLocked() {
	p.left.repeat = p.clock.AfterFunc(repeatInterval, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed || !p.left.held {
			return
		}
		p.seekRelativeLocked(-seekStep)
		p.scheduleLeftRepeatLocked()
	})
}

// Holding right past the threshold switches into the temporary speed
// boost instead of repeating seeks.
func (p *Player) rightLongPressFired() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !p.right.held || p.boosting {
		return
	}
	p.boosting = true
	p.speedTip = true
	p.effectiveRate = boostRate
	p.media.SetRate(boostRate)
}

func (p *Player) endBoostLocked() {
	if !p.boosting {
		return
	}
	p.boosting = false
	p.speedTip = false
	p.effectiveRate = p.rate
	p.media.SetRate(p.rate)
}

// Control overlay visibility.

// Activity notes user input (pointer move, touch, key press) and
// re-arms the inactivity hide timer.
func (p *Player) Activity() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.activityLocked()
}

func (p *Player) activityLocked() {
	p.controlsVisible = true
	if p.hideTimer != nil {
		p.hideTimer.Stop()
	}
	p.hideTimer = p.clock.AfterFunc(hideDelay, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			return
		}
		p.controlsVisible = false
	})
}

// PointerEnter cancels a pending leave-hide and shows the controls.
func (p *Player) PointerEnter() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.leaveTimer != nil {
		p.leaveTimer.Stop()
		p.leaveTimer = nil
	}
	p.activityLocked()
}

// PointerLeave hides the controls after a short delay, so skimming the
// player edge does not flicker them.
func (p *Player) PointerLeave() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.hideTimer != nil {
		p.hideTimer.Stop()
		p.hideTimer = nil
	}
	if p.leaveTimer != nil {
		p.leaveTimer.Stop()
	}
	p.leaveTimer = p.clock.AfterFunc(leaveHideDelay, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			return
		}
		p.controlsVisible = false
	})
}
