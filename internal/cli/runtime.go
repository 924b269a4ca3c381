package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/gaiaops/gaia/internal/approval"
	"github.com/gaiaops/gaia/internal/audit"
	"github.com/gaiaops/gaia/internal/config"
	"github.com/gaiaops/gaia/internal/hooks"
	"github.com/gaiaops/gaia/internal/logging"
	"github.com/gaiaops/gaia/internal/memory"
	"github.com/gaiaops/gaia/internal/paths"
	"github.com/gaiaops/gaia/internal/pending"
	"github.com/gaiaops/gaia/internal/security"
	"github.com/gaiaops/gaia/internal/session"
)

// runtime is the assembled per-invocation backend: one resolver, one policy
// engine, and one handle per store. Commands build it lazily so gaia version
// and friends work outside a project.
type runtime struct {
	resolver  *paths.Resolver
	loader    *config.Loader
	log       *zap.Logger
	sessionID string
	sink      *audit.Sink
	engine    *security.Engine
	episodes  *memory.Store
	sessions  *session.Store
	updates   *pending.Store
	approvals *approval.Gate
	logsDir   string
}

func newRuntime() (*runtime, error) {
	resolver := paths.NewResolver(projectDir)
	if _, err := resolver.ProjectRoot(); err != nil {
		return nil, err
	}

	log, err := logging.New(viper.GetBool("verbose"))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	configDir, err := resolver.ConfigDir()
	if err != nil {
		return nil, err
	}
	logsDir, err := resolver.LogsDir()
	if err != nil {
		return nil, err
	}
	metricsDir, err := resolver.MetricsDir()
	if err != nil {
		return nil, err
	}
	episodicDir, err := resolver.EpisodicDir()
	if err != nil {
		return nil, err
	}
	sessionDir, err := resolver.SessionDir()
	if err != nil {
		return nil, err
	}
	pendingDir, err := resolver.PendingUpdatesDir()
	if err != nil {
		return nil, err
	}
	approvalsDir, err := resolver.ApprovalsDir()
	if err != nil {
		return nil, err
	}

	loader := config.NewLoader(configDir)
	sessionID := hooks.SessionID()
	sink := audit.NewSink(logsDir, metricsDir, sessionID, log)
	engine := security.NewEngine(
		security.NewClassifier(loader),
		security.NewSettings(
			viper.GetStringSlice("policy.deny"),
			viper.GetStringSlice("policy.ask"),
			viper.GetStringSlice("policy.allow"),
		),
		sink,
	)

	secret, err := approvalSecret(configDir)
	if err != nil {
		return nil, err
	}

	thresholds := loader.Load("thresholds")
	var stopWords []string
	if kw, ok := thresholds["keywords"].(map[string]any); ok {
		stopWords = config.StringList(kw, "stop_words")
	}

	return &runtime{
		resolver:  resolver,
		loader:    loader,
		log:       log,
		sessionID: sessionID,
		sink:      sink,
		engine:    engine,
		episodes:  memory.NewStore(episodicDir, memory.Options{StopWords: stopWords, Logger: log}),
		sessions:  session.NewStore(sessionDir, log),
		updates:   pending.NewStore(pendingDir, log),
		approvals: approval.NewGate(approvalsDir, secret, 0),
		logsDir:   logsDir,
	}, nil
}

// approvalSecret loads the HMAC key for approval tokens, generating one on
// first use. The key never leaves the project config directory.
func approvalSecret(configDir string) ([]byte, error) {
	path := filepath.Join(configDir, ".approval_secret")
	if raw, err := os.ReadFile(path); err == nil && len(raw) > 0 {
		return raw, nil
	}
	secret := []byte(uuid.New().String() + uuid.New().String())
	if err := os.WriteFile(path, secret, 0o600); err != nil {
		return nil, fmt.Errorf("failed to persist approval secret: %w", err)
	}
	return secret, nil
}

// contextDocument reads the externally-owned project context document, if
// present.
func (r *runtime) contextDocument() (map[string]any, string, error) {
	path, err := r.resolver.ContextDocument()
	if err != nil {
		return nil, "", err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, path, nil
		}
		return nil, path, fmt.Errorf("failed to read context document: %w", err)
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, path, fmt.Errorf("context document unparseable: %w", err)
	}
	return doc, path, nil
}
