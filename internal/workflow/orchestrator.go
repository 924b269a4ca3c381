package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gaiaops/gaia/internal/agentexec"
	"github.com/gaiaops/gaia/internal/approval"
	"github.com/gaiaops/gaia/internal/asker"
	"github.com/gaiaops/gaia/internal/audit"
	"github.com/gaiaops/gaia/internal/clarify"
	"github.com/gaiaops/gaia/internal/config"
	"github.com/gaiaops/gaia/internal/contract"
	"github.com/gaiaops/gaia/internal/memory"
	"github.com/gaiaops/gaia/internal/pending"
	"github.com/gaiaops/gaia/internal/routing"
	"github.com/gaiaops/gaia/internal/security"
	"github.com/gaiaops/gaia/internal/session"
)

// approvalOperation labels the single approval an orchestrated request may
// hold: the right to run its planned state-mutating commands.
const approvalOperation = "realization"

// Operation is one planned command for the realization phase.
type Operation struct {
	Command string
	Profile string
}

// Request is everything the orchestrator needs for one user request.
type Request struct {
	Prompt         string
	ContextDoc     map[string]any
	DiscoveryRoots []string
	Operations     []Operation

	// AgentOutput, when set, is the dispatched sub-agent's raw output; its
	// status verdict refines the episode outcome after realization.
	AgentOutput string

	// SkipClarification enters the pipeline at routing with the prompt
	// taken as already unambiguous.
	SkipClarification bool
}

// Report is the result of a completed request.
type Report struct {
	EpisodeID        string
	AgentID          string
	Agent            string
	Confidence       float64
	EnrichedPrompt   string
	Tier             security.Tier
	Findings         *agentexec.ClassificationResult
	Executions       []agentexec.ExecResult
	CommandsExecuted []string
	Outcome          memory.Outcome
	PendingUpdateIDs []string
	PhasesCompleted  []string
}

// Orchestrator drives one request through the pipeline. It holds no state
// between requests; every Run gets a fresh phase machine.
type Orchestrator struct {
	Clarifier *clarify.Engine
	Router    *routing.Router
	Policy    *security.Engine
	Episodes  *memory.Store
	Sessions  *session.Store
	Updates   *pending.Store
	Approvals *approval.Gate
	Executor  *agentexec.Executor
	Runner    agentexec.Runner
	Asker     asker.Asker
	Config    *config.Loader
	Log       *zap.Logger

	// StatePath is where the current phase is mirrored to disk. Empty
	// disables the mirror.
	StatePath string

	// LiveProbes lets Layer D run read-only probes for real instead of
	// simulating them.
	LiveProbes bool

	now func() time.Time
}

// run carries the mutable state of one request.
type run struct {
	machine  machine
	episode  *memory.Episode
	report   *Report
	payload  *contract.Payload
	spec     routing.AgentSpec
	agentID  string
	commands []string
}

// Run drives the request through all phases. On any non-success termination
// the episode is persisted with a matching outcome, the session is finalized,
// and the returned error is a *Failure naming the phase reached.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Report, error) {
	st := &run{report: &Report{}}

	if err := o.phaseClarification(ctx, req, st); err != nil {
		return st.report, o.abort(st, err)
	}
	if err := o.phaseRouting(req, st); err != nil {
		return st.report, o.abort(st, err)
	}
	if err := o.phaseContext(req, st); err != nil {
		return st.report, o.abort(st, err)
	}
	if err := o.phasePlanning(ctx, req, st); err != nil {
		return st.report, o.abort(st, err)
	}
	if err := o.phaseApproval(ctx, req, st); err != nil {
		return st.report, o.abort(st, err)
	}
	if err := o.phaseRealization(ctx, req, st); err != nil {
		return st.report, o.abort(st, err)
	}
	if err := o.phaseSsotUpdate(st); err != nil {
		return st.report, o.abort(st, err)
	}

	st.report.PhasesCompleted = st.episode.PhasesCompleted()
	return st.report, nil
}

// phaseClarification resolves ambiguity and creates the episode.
func (o *Orchestrator) phaseClarification(ctx context.Context, req Request, st *run) error {
	enriched := req.Prompt
	clarifications := map[string]string{}

	if req.SkipClarification {
		if res := st.machine.advance(PhaseRouting); !res.Allowed {
			return fail(KindGuardFailure, PhaseRouting, "%s", res.Reason)
		}
	} else {
		if res := st.machine.advance(PhaseClarification); !res.Allowed {
			return fail(KindGuardFailure, PhaseClarification, "%s", res.Reason)
		}
		if err := ctx.Err(); err != nil {
			return fail(KindCancelled, PhaseClarification, "request cancelled before clarification")
		}

		result, err := o.Clarifier.Clarify(req.Prompt, req.ContextDoc, o.threshold("clarification", clarify.DefaultThreshold))
		if err != nil {
			return &Failure{Kind: KindCancelled, Phase: PhaseClarification, Reason: "clarification aborted", Err: err}
		}
		enriched = result.EnrichedPrompt
		for entity, answer := range result.Answers {
			clarifications[string(entity)] = answer
		}
	}

	st.episode = &memory.Episode{
		OriginalPrompt: req.Prompt,
		EnrichedPrompt: enriched,
		Clarifications: clarifications,
	}
	if !req.SkipClarification {
		st.episode.MarkPhase(int(PhaseClarification), o.clock())
	}

	id, err := o.Episodes.StoreEpisode(st.episode)
	if err != nil {
		return &Failure{Kind: KindStoreCorruption, Phase: st.machine.current, Reason: "episode store failed", Err: err}
	}
	st.report.EpisodeID = id
	st.report.EnrichedPrompt = enriched
	o.mirror(st)
	return nil
}

// phaseRouting picks the sub-agent and opens its session. The guard requires
// a known agent with confidence at or above the routing floor.
func (o *Orchestrator) phaseRouting(req Request, st *run) error {
	if st.machine.current != PhaseRouting {
		if res := st.machine.advance(PhaseRouting); !res.Allowed {
			return fail(KindGuardFailure, PhaseRouting, "%s", res.Reason)
		}
	}

	decision := o.Router.Route(st.report.EnrichedPrompt)
	if decision.Confidence < routing.MinConfidence {
		return fail(KindValidation, PhaseRouting,
			"routing confidence %.2f below %.2f for %q", decision.Confidence, routing.MinConfidence, req.Prompt)
	}
	spec, ok := o.Router.Lookup(decision.Agent)
	if !ok {
		return fail(KindGuardFailure, PhaseRouting, "routed to unknown agent %q", decision.Agent)
	}
	st.spec = spec
	st.report.Agent = decision.Agent
	st.report.Confidence = decision.Confidence

	agentID, err := o.Sessions.CreateSession(decision.Agent, st.report.EnrichedPrompt, map[string]any{
		"episode_id": st.report.EpisodeID,
	})
	if err != nil {
		return &Failure{Kind: KindStoreCorruption, Phase: PhaseRouting, Reason: "session create failed", Err: err}
	}
	st.agentID = agentID
	st.report.AgentID = agentID
	o.sessionPhase(st, session.PhaseInvestigating)

	wf := st.episode.Workflow()
	wf["routing"] = map[string]any{"agent": decision.Agent, "confidence": decision.Confidence}
	st.episode.MarkPhase(int(PhaseRouting), o.clock())
	o.persistEpisode(st)
	o.mirror(st)
	return nil
}

// phaseContext assembles the agent payload. Requests with no context
// document take the routing→planning skip.
func (o *Orchestrator) phaseContext(req Request, st *run) error {
	if req.ContextDoc == nil {
		return nil
	}
	if res := st.machine.advance(PhaseContext); !res.Allowed {
		return fail(KindGuardFailure, PhaseContext, "%s", res.Reason)
	}

	payload, err := contract.Build(st.spec.Name, st.report.EnrichedPrompt, st.spec.RequiredContextSections, req.ContextDoc)
	if err != nil {
		return &Failure{Kind: KindGuardFailure, Phase: PhaseContext, Reason: err.Error(), Err: err}
	}
	st.payload = payload

	wf := st.episode.Workflow()
	wf["context_sections"] = contract.RequiredSections(st.spec.Name, st.spec.RequiredContextSections)
	st.episode.MarkPhase(int(PhaseContext), o.clock())
	o.persistEpisode(st)
	o.mirror(st)
	return nil
}

// phasePlanning runs Layers A through D and evaluates every planned command
// against policy. No command runs here; Layer E belongs to realization.
func (o *Orchestrator) phasePlanning(ctx context.Context, req Request, st *run) error {
	if res := st.machine.advance(PhasePlanning); !res.Allowed {
		return fail(KindGuardFailure, PhasePlanning, "%s", res.Reason)
	}
	o.sessionPhase(st, session.PhasePlanning)

	// Layer A.
	vr := agentexec.ValidatePayload(o.payloadMap(st), o.contractFields(req, st))
	if !vr.IsValid {
		return fail(KindValidation, PhasePlanning, "payload invalid at %s: %v", vr.PhaseReached, vr.Errors)
	}

	// Layers B and C.
	classification := &agentexec.ClassificationResult{}
	if len(req.DiscoveryRoots) > 0 {
		disc, err := agentexec.Discover(req.DiscoveryRoots, agentexec.DefaultMaxDepth)
		if err != nil {
			return &Failure{Kind: KindValidation, Phase: PhasePlanning, Reason: "discovery failed", Err: err}
		}
		classification = agentexec.Classify(disc)
	}
	st.report.Findings = classification

	// Layer D.
	validator := &agentexec.RemoteValidator{
		Policy: o.Policy,
		Runner: o.Runner,
		Agent:  st.spec.Name,
		DryRun: !o.LiveProbes,
	}
	if _, err := validator.Validate(ctx, classification); err != nil {
		return &Failure{Kind: KindExecutionFailure, Phase: PhasePlanning, Reason: "remote validation failed", Err: err}
	}

	// Every planned command must pass policy before any of them runs.
	tier := security.TierT0
	opTypes := map[string]int{}
	for _, op := range req.Operations {
		eval := o.Policy.Evaluate("Bash", op.Command, st.spec.Name)
		if eval.Decision == security.DecisionDeny {
			return &Failure{
				Kind:        KindPolicyDenial,
				Phase:       PhasePlanning,
				Reason:      fmt.Sprintf("%q denied: %s", op.Command, eval.Reason),
				Suggestions: eval.Suggestions,
			}
		}
		tier = security.MaxTier(tier, eval.Tier)
		opTypes[audit.ClassifyCommandType(op.Command)]++
	}
	st.report.Tier = tier

	if len(st.spec.SecurityTiersSupported) > 0 && !st.spec.SupportsTier(tier) {
		return fail(KindGuardFailure, PhasePlanning, "agent %s does not support %s operations", st.spec.Name, tier)
	}

	wf := st.episode.Workflow()
	wf["planned_tier"] = tier.String()
	wf["operation_count"] = len(req.Operations)
	wf["operation_types"] = opTypes
	st.episode.MarkPhase(int(PhasePlanning), o.clock())
	o.persistEpisode(st)
	o.mirror(st)
	return nil
}

// phaseApproval gates T3 plans behind a human decision. Lower tiers pass
// straight through with the gate marked not required.
func (o *Orchestrator) phaseApproval(ctx context.Context, req Request, st *run) error {
	if res := st.machine.advance(PhaseApproval); !res.Allowed {
		return fail(KindGuardFailure, PhaseApproval, "%s", res.Reason)
	}
	wf := st.episode.Workflow()

	if st.report.Tier != security.TierT3 {
		wf["approval"] = map[string]any{"required": false}
		st.episode.MarkPhase(int(PhaseApproval), o.clock())
		o.persistEpisode(st)
		o.mirror(st)
		return nil
	}

	o.sessionPhase(st, session.PhaseApproval)
	if err := ctx.Err(); err != nil {
		return fail(KindCancelled, PhaseApproval, "request cancelled before approval")
	}

	answers, err := o.Asker.Ask([]asker.Question{{
		Question: fmt.Sprintf("Approve %d state-mutating operation(s) for %s?", len(req.Operations), st.spec.Name),
		Header:   "Approval",
		Options: []asker.Option{
			{Label: "Go ahead", Description: "run the planned operations"},
			{Label: "Reject", Description: "stop without executing anything"},
		},
	}})
	if err != nil {
		return &Failure{Kind: KindCancelled, Phase: PhaseApproval, Reason: "approval prompt aborted", Err: err}
	}
	answer, _ := answers["question_1"].(string)

	if !approval.IsApproval(answer) {
		wf["approval"] = map[string]any{"required": true, "decision": "rejected"}
		st.episode.MarkPhase(int(PhaseApproval), o.clock())
		o.persistEpisode(st)
		return fail(KindApprovalRejected, PhaseApproval, "operator rejected the plan")
	}

	// A stale approval from an earlier request must not satisfy this one.
	if o.Approvals.Pending() {
		if err := o.Approvals.Revoke(); err != nil {
			return &Failure{Kind: KindStoreCorruption, Phase: PhaseApproval, Reason: "stale approval revoke failed", Err: err}
		}
	}
	if _, err := o.Approvals.Grant(st.spec.Name, approvalOperation, st.report.Tier, approval.Scope(answer)); err != nil {
		return &Failure{Kind: KindStoreCorruption, Phase: PhaseApproval, Reason: "approval grant failed", Err: err}
	}

	wf["approval"] = map[string]any{"required": true, "decision": "approved"}
	st.episode.MarkPhase(int(PhaseApproval), o.clock())
	o.persistEpisode(st)
	o.mirror(st)
	return nil
}

// phaseRealization consumes the approval when one is required and runs Layer
// E over the planned operations, serially and in order.
func (o *Orchestrator) phaseRealization(ctx context.Context, req Request, st *run) error {
	if res := st.machine.advance(PhaseRealization); !res.Allowed {
		return fail(KindGuardFailure, PhaseRealization, "%s", res.Reason)
	}
	o.sessionPhase(st, session.PhaseExecuting)

	if st.report.Tier == security.TierT3 {
		if _, err := o.Approvals.Consume(st.spec.Name, approvalOperation); err != nil {
			return &Failure{Kind: KindGuardFailure, Phase: PhaseRealization, Reason: "no valid approval to consume", Err: err}
		}
	}

	for _, op := range req.Operations {
		if err := ctx.Err(); err != nil {
			return fail(KindCancelled, PhaseRealization, "request cancelled after %d of %d operations",
				len(st.commands), len(req.Operations))
		}
		result := o.Executor.Execute(ctx, agentexec.LookupProfile(op.Profile), op.Command)
		st.report.Executions = append(st.report.Executions, result)
		st.commands = append(st.commands, result.CommandUsed)

		if result.Status != agentexec.StatusSuccess {
			return fail(KindExecutionFailure, PhaseRealization,
				"%q finished %s (exit %d, %d retries): %s",
				result.CommandUsed, result.Status, result.ExitCode, result.RetryAttempts, preview(result.Stderr))
		}
	}
	st.report.CommandsExecuted = st.commands

	outcome := memory.OutcomeSuccess
	if req.AgentOutput != "" {
		if parsed, _ := ParseAgentOutput(req.AgentOutput); parsed != memory.OutcomeUnknown {
			outcome = parsed
		}
	}
	if outcome == memory.OutcomeFailed {
		return fail(KindExecutionFailure, PhaseRealization, "agent reported failure after execution")
	}
	st.report.Outcome = outcome

	st.episode.MarkPhase(int(PhaseRealization), o.clock())
	o.persistEpisode(st)
	success := outcome == memory.OutcomeSuccess
	if err := o.Episodes.UpdateOutcome(st.report.EpisodeID, outcome, &success, nil, st.commands); err != nil {
		return &Failure{Kind: KindStoreCorruption, Phase: PhaseRealization, Reason: "outcome update failed", Err: err}
	}
	// The outcome update also derived the duration; keep working on the
	// stored copy so later enrichment does not roll it back.
	if ep, err := o.Episodes.GetEpisode(st.report.EpisodeID); err == nil {
		st.episode = ep
	}
	o.mirror(st)
	return nil
}

// phaseSsotUpdate opens pending updates for the coherence discrepancies
// discovery found. Update creation is best-effort: a store hiccup must not
// fail a request that already executed.
func (o *Orchestrator) phaseSsotUpdate(st *run) error {
	if res := st.machine.advance(PhaseSsotUpdate); !res.Allowed {
		return fail(KindGuardFailure, PhaseSsotUpdate, "%s", res.Reason)
	}
	o.sessionPhase(st, session.PhaseValidating)

	if st.report.Findings != nil && o.Updates != nil {
		for _, f := range st.report.Findings.Findings {
			if f.Tier != agentexec.FindingCritical && f.Tier != agentexec.FindingDeviation {
				continue
			}
			id, err := o.Updates.Create(pending.Discovery{
				Agent:         st.spec.Name,
				Category:      pending.CategoryDriftDetected,
				TargetSection: "gitops_configuration",
				ProposedChange: map[string]any{
					"finding":     f.Title,
					"description": f.Description,
				},
				Summary:    f.Title,
				Confidence: 0.8,
			})
			if err != nil {
				o.log().Warn("pending update creation failed", zap.String("finding", f.Title), zap.Error(err))
				continue
			}
			st.report.PendingUpdateIDs = append(st.report.PendingUpdateIDs, id)
		}
	}

	wf := st.episode.Workflow()
	if len(st.report.PendingUpdateIDs) > 0 {
		wf["pending_updates"] = st.report.PendingUpdateIDs
	}
	st.episode.MarkPhase(int(PhaseSsotUpdate), o.clock())
	o.persistEpisode(st)
	o.mirror(st)

	if err := o.Sessions.FinalizeSession(st.agentID, session.PhaseCompleted, "workflow completed"); err != nil {
		o.log().Warn("session finalize failed", zap.String("agent_id", st.agentID), zap.Error(err))
	}
	return nil
}

// abort persists the terminal state of a failed request: episode outcome per
// failure class, session finalized, live approval revoked on cancellation.
func (o *Orchestrator) abort(st *run, err error) error {
	f, ok := err.(*Failure)
	if !ok {
		f = &Failure{Kind: KindExecutionFailure, Phase: st.machine.current, Reason: err.Error(), Err: err}
	}

	outcome := memory.OutcomeFailed
	sessionEnd := session.PhaseFailed
	switch f.Kind {
	case KindApprovalRejected, KindCancelled:
		outcome = memory.OutcomeAbandoned
		sessionEnd = session.PhaseAbandoned
	}
	st.report.Outcome = outcome

	if f.Kind == KindCancelled && o.Approvals != nil && o.Approvals.Pending() {
		if rerr := o.Approvals.Revoke(); rerr != nil {
			o.log().Warn("approval revoke on cancel failed", zap.Error(rerr))
		}
	}

	if st.report.EpisodeID != "" {
		success := false
		if uerr := o.Episodes.UpdateOutcome(st.report.EpisodeID, outcome, &success, nil, st.commands); uerr != nil {
			o.log().Warn("episode outcome update failed", zap.String("episode_id", st.report.EpisodeID), zap.Error(uerr))
		}
	}
	if st.agentID != "" {
		if serr := o.Sessions.FinalizeSession(st.agentID, sessionEnd, f.Reason); serr != nil {
			o.log().Warn("session finalize failed", zap.String("agent_id", st.agentID), zap.Error(serr))
		}
	}

	o.log().Warn("workflow terminated",
		zap.String("kind", string(f.Kind)),
		zap.String("phase", f.Phase.String()),
		zap.String("reason", f.Reason),
	)
	return f
}

// payloadMap renders the phase-2 payload for Layer A. Requests that took the
// context skip validate a minimal payload with no contract fields.
func (o *Orchestrator) payloadMap(st *run) map[string]any {
	body := map[string]any{
		"contract": map[string]any{},
		"metadata": map[string]any{
			"agent_type": st.spec.Name,
			"timestamp":  o.clock().Format(time.RFC3339),
		},
	}
	if st.payload == nil {
		return body
	}
	contractMap := make(map[string]any, len(st.payload.Contract))
	for k, v := range st.payload.Contract {
		contractMap[k] = v
	}
	body["contract"] = contractMap
	if st.payload.Enrichment != nil {
		enrichment := make(map[string]any, len(st.payload.Enrichment))
		for k, v := range st.payload.Enrichment {
			enrichment[k] = v
		}
		body["enrichment"] = enrichment
	}
	body["metadata"] = map[string]any{
		"agent_type": st.payload.Metadata.AgentType,
		"timestamp":  st.payload.Metadata.Timestamp.Format(time.RFC3339),
		"task":       st.payload.Metadata.Task,
	}
	return body
}

func (o *Orchestrator) contractFields(req Request, st *run) []string {
	if req.ContextDoc == nil {
		return nil
	}
	return contract.RequiredSections(st.spec.Name, st.spec.RequiredContextSections)
}

// sessionPhase advances the agent session, logging instead of failing: the
// session store must never take the main path down.
func (o *Orchestrator) sessionPhase(st *run, phase session.Phase) {
	if st.agentID == "" {
		return
	}
	if err := o.Sessions.UpdateState(st.agentID, phase, nil, ""); err != nil {
		o.log().Warn("session phase update failed",
			zap.String("agent_id", st.agentID), zap.String("phase", string(phase)), zap.Error(err))
	}
}

func (o *Orchestrator) persistEpisode(st *run) {
	if _, err := o.Episodes.StoreEpisode(st.episode); err != nil {
		o.log().Warn("episode enrichment persist failed", zap.String("episode_id", st.report.EpisodeID), zap.Error(err))
	}
}

func (o *Orchestrator) mirror(st *run) {
	if err := saveState(o.StatePath, st.machine.current, st.report.EpisodeID, st.agentID, o.clock()); err != nil {
		o.log().Warn("workflow state mirror failed", zap.Error(err))
	}
}

// threshold reads an integer guard value from the thresholds document.
func (o *Orchestrator) threshold(key string, fallback int) int {
	if o.Config == nil {
		return fallback
	}
	doc := o.Config.Load("thresholds")
	switch v := doc[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return fallback
}

func (o *Orchestrator) clock() time.Time {
	if o.now != nil {
		return o.now()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) log() *zap.Logger {
	if o.Log == nil {
		return zap.NewNop()
	}
	return o.Log
}

const stderrPreviewLen = 200

func preview(s string) string {
	if len(s) <= stderrPreviewLen {
		return s
	}
	return s[:stderrPreviewLen] + "..."
}
