// Package logger configures the process-wide zerolog logger.
package logger

import (
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	gormlogger "gorm.io/gorm/logger"
)

// Options can be embedded in a go-flags options struct as a group.
type Options struct {
	Level  string `long:"log-level"  env:"LOG_LEVEL"  description:"Log level (debug, info, warn, error)" default:"info"`
	Format string `long:"log-format" env:"LOG_FORMAT" description:"Log format (console, json)"          default:"console"`
}

// Setup applies the options to the global logger.
func (o Options) Setup() {
	Setup(o.Level, o.Format)
}

// Setup sets the global level and output. Unknown levels fall back to info.
func Setup(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	if strings.EqualFold(format, "json") {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// Gorm returns a gorm SQL logger that writes through zerolog. Queries slower
// than 100ms are reported as slow.
func Gorm() gormlogger.Interface {
	level := gormlogger.Warn
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		level = gormlogger.Info
	}
	w := log.With().Str("component", "gorm").Logger()
	return gormlogger.New(
		stdlog.New(w, "", 0),
		gormlogger.Config{
			SlowThreshold:             100 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
