// Package audit appends structured execution records to per-project journals
// and aggregates rolling metrics summaries. Journal writes are append-only;
// failures are logged and never propagate to the caller.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gaiaops/gaia/internal/security"
)

// Record is one journal entry for a tool invocation or policy decision.
type Record struct {
	Timestamp      time.Time      `json:"timestamp"`
	SessionID      string         `json:"session_id"`
	Tool           string         `json:"tool"`
	Command        string         `json:"command"`
	ParamsSanitized map[string]any `json:"params_sanitized,omitempty"`
	DurationMs     int64          `json:"duration_ms"`
	ExitCode       int            `json:"exit_code"`
	Tier           string         `json:"tier"`
	Decision       string         `json:"decision,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	OutputHash     string         `json:"output_hash,omitempty"`
	OutputPreview  string         `json:"output_preview,omitempty"`
	CommandType    string         `json:"command_type,omitempty"`
	Success        bool           `json:"success"`
}

// Sink writes audit records to the daily, per-session, and monthly journals.
// One Sink is the single logical writer for its directories within a process.
type Sink struct {
	mu         sync.Mutex
	logsDir    string
	metricsDir string
	sessionID  string
	sanitizer  *security.LogSanitizer
	log        *zap.Logger
}

// NewSink creates a sink writing under logsDir and metricsDir for the given
// session. logger may be nil.
func NewSink(logsDir, metricsDir, sessionID string, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		logsDir:    logsDir,
		metricsDir: metricsDir,
		sessionID:  sessionID,
		sanitizer:  security.NewLogSanitizer(),
		log:        logger,
	}
}

// SessionID returns the session this sink journals for.
func (s *Sink) SessionID() string { return s.sessionID }

// Append writes the record to the daily and per-session journals and to the
// monthly metrics journal. Errors are logged at warn level and swallowed.
func (s *Sink) Append(rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.SessionID == "" {
		rec.SessionID = s.sessionID
	}
	rec.Command = s.sanitizer.Sanitize(rec.Command)
	rec.OutputPreview = s.sanitizer.Sanitize(rec.OutputPreview)
	if rec.CommandType == "" {
		rec.CommandType = ClassifyCommandType(rec.Command)
	}

	line, err := json.Marshal(rec)
	if err != nil {
		s.log.Warn("audit record marshal failed", zap.Error(err))
		return
	}

	day := rec.Timestamp.Format("2006-01-02")
	month := rec.Timestamp.Format("2006-01")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLine(filepath.Join(s.logsDir, "audit-"+day+".jsonl"), line)
	s.appendLine(filepath.Join(s.logsDir, "session-"+rec.SessionID+".jsonl"), line)
	s.appendLine(filepath.Join(s.metricsDir, "metrics-"+month+".jsonl"), line)
}

// RecordDecision implements security.DecisionSink: every policy evaluation
// produces one journal entry regardless of outcome.
func (s *Sink) RecordDecision(tool, command, agent string, decision security.Decision, tier security.Tier, reason string) {
	rec := Record{
		Tool:     tool,
		Command:  command,
		Tier:     tier.String(),
		Decision: string(decision),
		Reason:   reason,
		Success:  decision != security.DecisionDeny,
	}
	if agent != "" {
		rec.ParamsSanitized = map[string]any{"agent": agent}
	}
	s.Append(rec)
}

// RecordExecution journals a completed command execution.
func (s *Sink) RecordExecution(tool, command string, params map[string]any, tier security.Tier, duration time.Duration, exitCode int, output string) {
	s.Append(Record{
		Tool:            tool,
		Command:         command,
		ParamsSanitized: security.SanitizeParams(params),
		DurationMs:      duration.Milliseconds(),
		ExitCode:        exitCode,
		Tier:            tier.String(),
		OutputHash:      HashOutput(output),
		OutputPreview:   previewOutput(output),
		Success:         exitCode == 0,
	})
}

func (s *Sink) appendLine(path string, line []byte) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.log.Warn("audit journal open failed", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()
	// Single write keeps concurrent appenders line-atomic.
	if _, err := f.Write(append(line, '\n')); err != nil {
		s.log.Warn("audit journal write failed", zap.String("path", path), zap.Error(err))
	}
}

// hashInputLimit caps how much output feeds the hash.
const hashInputLimit = 1000

// previewLimit caps the persisted output preview.
const previewLimit = 200

// HashOutput returns the 16-hex prefix of the SHA-256 over the first 1000
// characters of output. Empty output hashes to the empty string.
func HashOutput(output string) string {
	if output == "" {
		return ""
	}
	if len(output) > hashInputLimit {
		output = output[:hashInputLimit]
	}
	sum := sha256.Sum256([]byte(output))
	return hex.EncodeToString(sum[:])[:16]
}

func previewOutput(output string) string {
	if len(output) <= previewLimit {
		return output
	}
	return output[:previewLimit] + fmt.Sprintf("...[%d chars total]", len(output))
}
