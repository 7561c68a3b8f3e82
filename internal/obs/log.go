// Package obs provides the process-wide structured logger and the
// context helpers used to carry a job-scoped child logger through the
// pipeline.
package obs

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level   string
	Output  io.Writer
	Service string
}

var (
	once sync.Once
	base zerolog.Logger
)

// Configure initializes the global logger exactly once; subsequent calls
// are no-ops so packages can call it defensively from init paths.
func Configure(cfg Config) {
	once.Do(func() {
		level := zerolog.InfoLevel
		if cfg.Level != "" {
			if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
				level = parsed
			}
		}
		zerolog.SetGlobalLevel(level)
		zerolog.TimeFieldFormat = time.RFC3339

		writer := cfg.Output
		if writer == nil {
			writer = os.Stdout
		}

		service := cfg.Service
		if service == "" {
			service = "videoscan"
		}

		base = zerolog.New(writer).With().
			Timestamp().
			Str("service", service).
			Logger()
	})
}

func logger() zerolog.Logger {
	Configure(Config{})
	return base
}

// Base returns the configured base logger.
func Base() zerolog.Logger { return logger() }

// WithComponent returns a child logger annotated with component.
func WithComponent(component string) zerolog.Logger {
	return logger().With().Str("component", component).Logger()
}

type ctxKey string

const jobIDKey ctxKey = "job_id"

// ContextWithJobID stores jobID in ctx for later log enrichment.
func ContextWithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey, jobID)
}

// JobIDFromContext extracts the job id stashed by ContextWithJobID, if any.
func JobIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(jobIDKey).(string); ok {
		return v
	}
	return ""
}

// FromContext returns a component logger enriched with the job id carried
// on ctx, falling back to the bare component logger when absent.
func FromContext(ctx context.Context, component string) zerolog.Logger {
	l := WithComponent(component)
	if jid := JobIDFromContext(ctx); jid != "" {
		l = l.With().Str("job_id", jid).Logger()
	}
	return l
}
