// Package vlog provides the module's single process-wide log verbosity
// knob. It is not part of correctness: every package here reports errors
// through ordinary return values, never through a logged side channel.
// Diagnostics logged through this package must never include secret
// content or guarded-page addresses.
package vlog

import (
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Logger is the module-wide diagnostic sink. It discards everything until
// [SetLevel] sets a level below [zerolog.Disabled].
var Logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.Disabled)

var level int32 = int32(zerolog.Disabled)

// SetLevel sets the global verbosity. Passing [zerolog.Disabled] (the
// default) silences all diagnostics.
func SetLevel(l zerolog.Level) {
	atomic.StoreInt32(&level, int32(l))
	Logger = Logger.Level(l)
}

// Level returns the current global verbosity.
func Level() zerolog.Level {
	return zerolog.Level(atomic.LoadInt32(&level))
}

// Component returns a child logger tagged with the given component name.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
