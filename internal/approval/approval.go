// Package approval guards T3 operations: it matches the human's response
// against the canonical approval phrases and manages the single-use approval
// file a sub-agent must consume before executing.
package approval

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/gaiaops/gaia/internal/jsonio"
	"github.com/gaiaops/gaia/internal/security"
)

// approvalPhrases is the canonical list. The scoped form
// "User approved: <scope>" is canonical; the rest are legacy synonyms.
var approvalPhrases = []string{
	"user approved:",
	"user approval received",
	"approved by user",
	"user approved",
	"approved. execute",
	"approved, execute",
	"approval confirmed",
	"proceed with execution",
	"go ahead",
	"confirmed. proceed",
}

// IsApproval reports whether the response contains any canonical approval
// phrase, case-insensitively.
func IsApproval(response string) bool {
	lower := strings.ToLower(response)
	for _, phrase := range approvalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Scope extracts the scope from the canonical "User approved: <scope>" form,
// or returns empty for legacy phrasings.
func Scope(response string) string {
	lower := strings.ToLower(response)
	idx := strings.Index(lower, "user approved:")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(response[idx+len("user approved:"):])
}

// Record is the single-use approval persisted under approvals/pending.json.
type Record struct {
	Agent     string        `json:"agent"`
	Operation string        `json:"operation"`
	Tier      security.Tier `json:"tier"`
	Scope     string        `json:"scope,omitempty"`
	ExpiresAt time.Time     `json:"expires_at"`
	// Token is the signed proof handed to the sub-agent.
	Token string `json:"token"`
}

// Gate errors.
var (
	ErrNoApproval      = errors.New("no pending approval")
	ErrExpired         = errors.New("approval expired")
	ErrMismatch        = errors.New("approval does not cover this operation")
	ErrInvalidToken    = errors.New("approval token invalid")
	ErrAlreadyApproved = errors.New("an approval is already pending")
)

// DefaultTTL bounds how long an unconsumed approval stays valid.
const DefaultTTL = 15 * time.Minute

// Gate manages the approval file. One approval may be live at a time.
type Gate struct {
	mu sync.Mutex

	dir    string
	secret []byte
	ttl    time.Duration

	now func() time.Time
}

// NewGate creates an approval gate storing its file under dir. The secret
// signs approval tokens; it stays within the process.
func NewGate(dir string, secret []byte, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Gate{
		dir:    dir,
		secret: secret,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (g *Gate) pendingPath() string { return filepath.Join(g.dir, "pending.json") }

// claims binds the token to one agent and operation.
type claims struct {
	Agent     string `json:"agent"`
	Operation string `json:"operation"`
	Scope     string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Grant records a fresh approval for one operation. Granting while another
// approval is live is an error: the previous one must be consumed or revoked
// first.
func (g *Gate) Grant(agent, operation string, tier security.Tier, scope string) (*Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := os.Stat(g.pendingPath()); err == nil {
		return nil, ErrAlreadyApproved
	}

	now := g.now()
	expires := now.Add(g.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Agent:     agent,
		Operation: operation,
		Scope:     scope,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign approval: %w", err)
	}

	rec := &Record{
		Agent:     agent,
		Operation: operation,
		Tier:      tier,
		Scope:     scope,
		ExpiresAt: expires,
		Token:     signed,
	}
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create approvals dir: %w", err)
	}
	if err := jsonio.WriteAtomic(g.pendingPath(), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Consume validates and deletes the pending approval for the given agent and
// operation. Exactly-once: a second call fails with ErrNoApproval.
func (g *Gate) Consume(agent, operation string) (*Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	raw, err := os.ReadFile(g.pendingPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoApproval
		}
		return nil, fmt.Errorf("failed to read approval: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse approval: %w", err)
	}

	// The file is removed on every outcome: a failed consume must not
	// leave a reusable approval behind.
	defer os.Remove(g.pendingPath())

	if g.now().After(rec.ExpiresAt) {
		return nil, ErrExpired
	}
	if rec.Agent != agent || rec.Operation != operation {
		return nil, fmt.Errorf("%w: approved %s/%s", ErrMismatch, rec.Agent, rec.Operation)
	}

	var cl claims
	parsed, err := jwt.ParseWithClaims(rec.Token, &cl, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if cl.Agent != agent || cl.Operation != operation {
		return nil, ErrInvalidToken
	}
	return &rec, nil
}

// Revoke deletes any pending approval. Used on rejection, cancellation, and
// by the post-execution hook. Idempotent.
func (g *Gate) Revoke() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := os.Remove(g.pendingPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove approval: %w", err)
	}
	return nil
}

// Pending reports whether an unexpired approval is live.
func (g *Gate) Pending() bool {
	raw, err := os.ReadFile(g.pendingPath())
	if err != nil {
		return false
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return false
	}
	return g.now().Before(rec.ExpiresAt)
}
