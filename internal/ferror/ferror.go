// Package ferror provides the daemon's logging helper. It wraps
// zerolog the way planet-pulse's pkg/ferror wrapped the standard log
// package: callers pass a component tag and a message or error, and
// the helper attaches the call site automatically.
package ferror

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log zerolog.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	// Verbose gates Debugf. Set from config at startup.
	Verbose bool
)

// SetProductionMode switches the sink to line-delimited JSON, suitable
// for log collection, instead of the human-readable console writer.
func SetProductionMode(json bool) {
	mu.Lock()
	defer mu.Unlock()
	if json {
		log = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
}

func caller(skip int) (file string, line int) {
	_, fn, l, ok := runtime.Caller(skip)
	if !ok {
		return "???", 0
	}
	slice := strings.Split(fn, "/")
	return slice[len(slice)-1], l
}

// ErrorLog logs err against component if it is non-nil and reports
// whether it did, so callers can use it inline in an if-statement the
// way the teacher's ErrorLog did.
func ErrorLog(component string, err error) bool {
	if err == nil {
		return false
	}
	file, line := caller(2)
	mu.RLock()
	defer mu.RUnlock()
	log.Error().
		Str("component", component).
		Str("at", file+":"+strconv.Itoa(line)).
		Err(err).
		Msg("error")
	return true
}

// Infof logs an informational message against component.
func Infof(component string, format string, args ...any) {
	file, line := caller(2)
	mu.RLock()
	defer mu.RUnlock()
	log.Info().
		Str("component", component).
		Str("at", file+":"+strconv.Itoa(line)).
		Msgf(format, args...)
}

// Debugf logs a debug message against component, only when Verbose is set.
func Debugf(component string, format string, args ...any) {
	if !Verbose {
		return
	}
	file, line := caller(2)
	mu.RLock()
	defer mu.RUnlock()
	log.Debug().
		Str("component", component).
		Str("at", file+":"+strconv.Itoa(line)).
		Msgf(format, args...)
}
