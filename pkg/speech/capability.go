package speech

import "context"

// SessionConfig describes a single-shot recognition session.
type SessionConfig struct {
	Locale          string
	InterimResults  bool
	MaxAlternatives int
}

// DefaultSessionConfig is the configuration every capture uses.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Locale:          "en-US",
		InterimResults:  false,
		MaxAlternatives: 1,
	}
}

// Listeners receive the events of a session. A zero Listeners value detaches
// the previous set.
type Listeners struct {
	OnResult func(transcript string)
	OnError  func(err error)
	OnEnd    func()
}

// Session is one recognition attempt. Start returns once recognition is
// underway; events are delivered asynchronously to the attached listeners.
type Session interface {
	SetListeners(l Listeners)
	Start(ctx context.Context) error
}

// Capability is the speech engine the adapter drives.
type Capability interface {
	Available() bool
	NewSession(cfg SessionConfig) (Session, error)
}
