// Package logging builds the process logger: structured zap output with
// secret scrubbing applied to every message and string field before it
// leaves the process.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gaiaops/gaia/internal/security"
)

// New returns a logger at the given level. Hooks and CLI paths log to
// stderr; stdout stays clean for protocol output.
func New(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.Encoding = "console"
	}
	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &scrubCore{Core: core, sanitizer: security.NewLogSanitizer()}
	})), nil
}

// scrubCore sanitizes messages and string fields on their way into the
// wrapped core.
type scrubCore struct {
	zapcore.Core
	sanitizer *security.LogSanitizer
}

func (c *scrubCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *scrubCore) With(fields []zapcore.Field) zapcore.Core {
	return &scrubCore{Core: c.Core.With(c.scrub(fields)), sanitizer: c.sanitizer}
}

func (c *scrubCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = c.sanitizer.Sanitize(ent.Message)
	return c.Core.Write(ent, c.scrub(fields))
}

func (c *scrubCore) scrub(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		if f.Type == zapcore.StringType {
			f.String = c.sanitizer.Sanitize(f.String)
		}
		out[i] = f
	}
	return out
}
