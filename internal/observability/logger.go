package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/codewire/internal/logging"
)

// Component returns a logger tagged for one subsystem. Call sites keep
// the returned logger; the global profile is configured once per process.
func Component(name string) zerolog.Logger {
	logging.ConfigureRuntime()
	return log.With().Str("component", name).Logger()
}
