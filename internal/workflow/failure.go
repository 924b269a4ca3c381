package workflow

import (
	"fmt"
	"strings"
)

// Kind classifies a workflow termination.
type Kind string

const (
	KindValidation       Kind = "validation_error"
	KindPolicyDenial     Kind = "policy_denial"
	KindGuardFailure     Kind = "guard_failure"
	KindExecutionFailure Kind = "execution_failure"
	KindApprovalRejected Kind = "approval_rejected"
	KindStoreCorruption  Kind = "store_corruption"
	KindCancelled        Kind = "cancelled"
)

// Failure is a structured workflow termination. It carries the phase reached
// so the human message can state exactly how far the request got.
type Failure struct {
	Kind        Kind
	Phase       Phase
	Reason      string
	Suggestions []string
	Err         error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s at %s: %s", f.Kind, f.Phase, f.Reason)
	if len(f.Suggestions) > 0 {
		msg += " (try: " + strings.Join(f.Suggestions, "; ") + ")"
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

func fail(kind Kind, phase Phase, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Phase: phase, Reason: fmt.Sprintf(format, args...)}
}
