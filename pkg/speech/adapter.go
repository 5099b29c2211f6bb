package speech

import (
	"context"
	"sync"
	"time"

	"github.com/go-go-golems/chatwidget/pkg/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// NotSupportedNotice is shown once per capture request when no speech engine is available.
const NotSupportedNotice = "Speech recognition is not supported in this environment."

// DefaultTickInterval is the period of the listening indicator.
const DefaultTickInterval = 400 * time.Millisecond

// Indicators are the two states of the listening indicator.
var Indicators = [2]string{"● listening", "○ listening"}

// Adapter turns a speech capability into dictation for the composer. At most
// one session is active; its listeners are detached and its indicator tick is
// cancelled on every termination path.
type Adapter struct {
	capability Capability
	available  bool
	config     SessionConfig
	interval   time.Duration
	metrics    *metrics.Metrics

	dispatch     func(func())
	onTranscript func(string)
	onTick       func(string)
	notify       func(string)

	mu         sync.Mutex
	capturing  bool
	generation uint64
	session    Session
	indicator  string
	stopTick   context.CancelFunc
	cancel     context.CancelFunc
}

type Option func(*Adapter)

// WithDispatch routes every composer-facing callback through fn. The UI uses
// it to run callbacks on its own loop.
func WithDispatch(fn func(func())) Option {
	return func(a *Adapter) {
		a.dispatch = fn
	}
}

func WithTranscriptHandler(fn func(transcript string)) Option {
	return func(a *Adapter) {
		a.onTranscript = fn
	}
}

// WithTickHandler receives the indicator on every tick, and "" when capture ends.
func WithTickHandler(fn func(indicator string)) Option {
	return func(a *Adapter) {
		a.onTick = fn
	}
}

func WithNotifier(fn func(notice string)) Option {
	return func(a *Adapter) {
		a.notify = fn
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Adapter) {
		a.metrics = m
	}
}

func WithTickInterval(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.interval = d
		}
	}
}

func WithSessionConfig(cfg SessionConfig) Option {
	return func(a *Adapter) {
		a.config = cfg
	}
}

// NewAdapter queries the capability's availability once.
func NewAdapter(capability Capability, opts ...Option) *Adapter {
	a := &Adapter{
		capability: capability,
		config:     DefaultSessionConfig(),
		interval:   DefaultTickInterval,
		dispatch:   func(fn func()) { fn() },
	}
	for _, opt := range opts {
		opt(a)
	}
	a.available = capability != nil && capability.Available()
	log.Debug().Str("component", "speech").Bool("available", a.available).Msg("speech capability detected")
	return a
}

func (a *Adapter) Available() bool {
	return a.available
}

func (a *Adapter) Capturing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.capturing
}

// Indicator is the current listening indicator, "" when idle.
func (a *Adapter) Indicator() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.indicator
}

// Capture starts a recognition session unless one is already running.
func (a *Adapter) Capture(ctx context.Context) error {
	if !a.available {
		a.metrics.SpeechSession("unsupported")
		if a.notify != nil {
			a.dispatch(func() { a.notify(NotSupportedNotice) })
		}
		return nil
	}

	a.mu.Lock()
	if a.capturing {
		a.mu.Unlock()
		return nil
	}
	session, err := a.capability.NewSession(a.config)
	if err != nil {
		a.mu.Unlock()
		a.metrics.SpeechSession("error")
		return errors.Wrap(err, "create speech session")
	}
	a.generation++
	gen := a.generation
	sessionCtx, cancel := context.WithCancel(ctx)
	tickCtx, stopTick := context.WithCancel(sessionCtx)
	a.capturing = true
	a.session = session
	a.cancel = cancel
	a.stopTick = stopTick
	a.indicator = Indicators[0]
	a.mu.Unlock()

	session.SetListeners(Listeners{
		OnResult: func(transcript string) { a.finish(gen, "result", transcript, nil) },
		OnError:  func(err error) { a.finish(gen, "error", "", err) },
		OnEnd:    func() { a.finish(gen, "end", "", nil) },
	})
	a.emitTick(gen, Indicators[0])
	go a.tick(tickCtx, gen)

	log.Debug().Str("component", "speech").Uint64("session", gen).Msg("starting speech session")
	if err := session.Start(sessionCtx); err != nil {
		a.finish(gen, "error", "", errors.Wrap(err, "start speech session"))
	}
	return nil
}

func (a *Adapter) tick(ctx context.Context, gen uint64) {
	t := time.NewTicker(a.interval)
	defer t.Stop()
	i := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			i ^= 1
			a.mu.Lock()
			if a.generation != gen || !a.capturing {
				a.mu.Unlock()
				return
			}
			a.indicator = Indicators[i]
			a.mu.Unlock()
			a.emitTick(gen, Indicators[i])
		}
	}
}

func (a *Adapter) emitTick(gen uint64, indicator string) {
	if a.onTick == nil {
		return
	}
	a.dispatch(func() {
		// Ticks queued before the session ended are dropped.
		a.mu.Lock()
		current := a.generation == gen && a.capturing
		a.mu.Unlock()
		if current {
			a.onTick(indicator)
		}
	})
}

// finish handles the first terminal event of session gen and ignores the rest.
func (a *Adapter) finish(gen uint64, outcome string, transcript string, err error) {
	a.mu.Lock()
	if a.generation != gen || !a.capturing {
		a.mu.Unlock()
		return
	}
	session := a.release()
	a.mu.Unlock()

	if session != nil {
		session.SetListeners(Listeners{})
	}
	a.metrics.SpeechSession(outcome)

	switch outcome {
	case "result":
		log.Debug().Str("component", "speech").Uint64("session", gen).Msg("speech recognized")
		if a.onTranscript != nil {
			a.dispatch(func() { a.onTranscript(transcript) })
		}
	case "error":
		log.Warn().Err(err).Str("component", "speech").Uint64("session", gen).Msg("speech recognition failed")
	default:
		log.Debug().Str("component", "speech").Uint64("session", gen).Msg("speech session ended without result")
	}
	if a.onTick != nil {
		a.dispatch(func() { a.onTick("") })
	}
}

// release resets the capture state. Callers hold a.mu.
func (a *Adapter) release() Session {
	session := a.session
	a.capturing = false
	a.session = nil
	a.indicator = ""
	if a.stopTick != nil {
		a.stopTick()
		a.stopTick = nil
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	return session
}

// Close aborts a running session. Events it delivers afterwards are ignored.
func (a *Adapter) Close() {
	a.mu.Lock()
	if !a.capturing {
		a.mu.Unlock()
		return
	}
	a.generation++
	session := a.release()
	a.mu.Unlock()
	if session != nil {
		session.SetListeners(Listeners{})
	}
}
