package comms

import (
	"log/slog"

	"github.com/jonboulle/clockwork"
)

type settings struct {
	logger   *slog.Logger
	clock    clockwork.Clock
	observer Observer
}

// Option configures a Conductor, Session or Heartbeat. Options that do not
// apply to the receiver are ignored.
type Option func(*settings)

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithClock replaces the wall clock, mainly so tests can drive heartbeats.
func WithClock(clock clockwork.Clock) Option {
	return func(s *settings) {
		s.clock = clock
	}
}

// WithObserver registers a listener for session lifecycle events.
func WithObserver(observer Observer) Option {
	return func(s *settings) {
		s.observer = observer
	}
}

func newSettings(options []Option) settings {
	s := settings{
		logger: slog.Default(),
		clock:  clockwork.NewRealClock(),
	}
	for _, option := range options {
		option(&s)
	}
	return s
}
