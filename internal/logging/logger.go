// Package logging builds the zerolog root logger shared by every component.
// Output is one JSON object per line with the timestamp under "ts".
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TimestampField is the key used for the event time in every log line.
const TimestampField = "ts"

func init() {
	zerolog.TimestampFieldName = TimestampField
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// New returns a JSON logger writing to w. Timestamps are rendered in loc,
// or in local time when loc is nil. Unknown or empty levels fall back to info.
func New(w io.Writer, loc *time.Location, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	l := zerolog.New(w).Level(lvl)
	if loc == nil {
		return l.With().Timestamp().Logger()
	}
	return l.Hook(timestampHook{loc: loc})
}

// timestampHook stamps each event in its own location.
type timestampHook struct {
	loc *time.Location
}

func (h timestampHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	e.Time(TimestampField, time.Now().In(h.loc))
}

// Component returns a child logger tagged with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
