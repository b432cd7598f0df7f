// Package source tracks the active playback URL for a video and walks
// an ordered list of relay endpoints when direct playback fails.
package source

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Mode is the resolver state. Invalid boolean combinations from the
// scattered-flags era are unrepresentable here.
type Mode int

const (
	// Direct plays the original URL.
	Direct Mode = iota
	// AwaitingRelay has switched to a relay and is waiting for the
	// media element to confirm metadata.
	AwaitingRelay
	// RelayActive is a confirmed working relay.
	RelayActive
	// Exhausted means every relay failed. Sticky until Reset.
	Exhausted
)

func (m Mode) String() string {
	switch m {
	case Direct:
		return "direct"
	case AwaitingRelay:
		return "awaiting-relay"
	case RelayActive:
		return "relay-active"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// metadataTimeout is how long a relay attempt may sit without a
// loaded-metadata signal before the next relay is tried.
const metadataTimeout = 5 * time.Second

// DefaultRelays mirrors the public CORS relays the site shipped with.
// A first-party /relay endpoint is usually prepended by the server.
var DefaultRelays = []string{
	"https://cors-anywhere.herokuapp.com/",
	"https://api.allorigins.win/raw?url=",
	"https://proxy.cors.sh/",
}

// Resolver owns the SourceState for one playback session. Relay
// engagement is user-initiated: a direct failure only arms a prompt,
// it never routes media through a third party on its own.
type Resolver struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	original string
	relays   []string

	mode        Mode
	index       int
	promptArmed bool

	// gen invalidates in-flight timeout callbacks after Reset or a
	// manual relay switch.
	gen   int
	timer clockwork.Timer

	onSourceChange func(url string)
}

func NewResolver(original string, relays []string, clock clockwork.Clock, onSourceChange func(url string)) *Resolver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if relays == nil {
		relays = DefaultRelays
	}
	if onSourceChange == nil {
		onSourceChange = func(string) {}
	}
	return &Resolver{
		clock:          clock,
		original:       original,
		relays:         relays,
		onSourceChange: onSourceChange,
	}
}

// CurrentURL is always the original URL or a relay composition of it.
func (r *Resolver) CurrentURL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentURLLocked()
}

func (r *Resolver) currentURLLocked() string {
	if (r.mode == AwaitingRelay || r.mode == RelayActive) && r.index < len(r.relays) {
		return ComposeRelayURL(r.relays[r.index], r.original)
	}
	return r.original
}

func (r *Resolver) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

func (r *Resolver) RelayIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index
}

// PromptVisible reports whether the "try a relay?" prompt should show.
func (r *Resolver) PromptVisible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.promptArmed && r.mode == Direct
}

// ReportFailure handles a playback failure signal from the media
// element. In direct mode it only arms the prompt; switching to a
// relay is the user's call. During a relay attempt it advances to the
// next relay immediately.
func (r *Resolver) ReportFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.mode {
	case Direct:
		r.promptArmed = true
	case AwaitingRelay, RelayActive:
		r.advanceLocked()
	case Exhausted:
	}
}

// UseRelay is the explicit user opt-in. It switches to the relay at
// the current index and arms the metadata timeout.
func (r *Resolver) UseRelay() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.original == "" || r.mode == Exhausted {
		return
	}
	r.promptArmed = false
	r.startRelayLocked()
}

func (r *Resolver) startRelayLocked() {
	if r.index >= len(r.relays) {
		r.mode = Exhausted
		r.stopTimerLocked()
		return
	}
	r.mode = AwaitingRelay
	r.notifyLocked()
	r.armTimeoutLocked()
}

func (r *Resolver) advanceLocked() {
	r.stopTimerLocked()
	r.index++
	r.startRelayLocked()
}

func (r *Resolver) armTimeoutLocked() {
	r.stopTimerLocked()
	gen := r.gen
	r.timer = r.clock.AfterFunc(metadataTimeout, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.gen != gen || r.mode != AwaitingRelay {
			return
		}
		r.advanceLocked()
	})
}

func (r *Resolver) stopTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.gen++
}

// MetadataLoaded confirms the active URL actually plays.
func (r *Resolver) MetadataLoaded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.mode {
	case AwaitingRelay:
		r.stopTimerLocked()
		r.mode = RelayActive
	case Direct:
		r.promptArmed = false
	}
}

// Reset restores the direct source and re-arms the prompt, since a
// retry of the direct path may fail the same way again. Idempotent.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopTimerLocked()
	r.mode = Direct
	r.index = 0
	r.promptArmed = true
	r.notifyLocked()
}

// notifyLocked fires the source-change side effect (media reload).
func (r *Resolver) notifyLocked() {
	url := r.currentURLLocked()
	cb := r.onSourceChange
	// Callback without the lock so handlers may call back in.
	r.mu.Unlock()
	cb(url)
	r.mu.Lock()
}

// ComposeRelayURL builds the relayed source URL. Relays that take a
// query parameter (a "?...=" suffix) get the target percent-encoded;
// path-style relays get it concatenated as-is.
func ComposeRelayURL(relay, original string) string {
	if strings.Contains(relay, "?") && strings.HasSuffix(relay, "=") {
		return relay + url.QueryEscape(original)
	}
	return relay + original
}
