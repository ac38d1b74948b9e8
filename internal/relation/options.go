package relation

import (
	"fmt"
	"log/slog"
)

// Option configures a Sync.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	clock     Sequencer
	session   string
	describe  func(any) string
	recorders []Recorder
	locking   bool
}

func defaultOptions() options {
	return options{
		logger:   slog.Default(),
		clock:    NewClock(),
		describe: describe,
	}
}

// WithLogger sets the structured logger. Commits log at Debug; conflicts,
// cancellations and rollbacks at Warn.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces the default logical clock.
// Tests pass a resettable clock for reproducible sequence numbers.
func WithClock(c Sequencer) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithSession tags every recorded Mutation with a session token.
func WithSession(token string) Option {
	return func(o *options) {
		o.session = token
	}
}

// WithDescriber sets how containers and items are rendered in logs,
// errors and Mutation records. The default uses fmt.Stringer when
// available and %v otherwise.
func WithDescriber(fn func(any) string) Option {
	return func(o *options) {
		if fn != nil {
			o.describe = fn
		}
	}
}

// WithRecorder adds a Recorder. May be given multiple times.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorders = append(o.recorders, r)
		}
	}
}

// WithLocking serializes all mutations of the Sync and lets View and
// ContainerOf proceed without waiting for a whole mutation.
func WithLocking() Option {
	return func(o *options) {
		o.locking = true
	}
}

// describe is the default renderer for containers and items.
func describe(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
