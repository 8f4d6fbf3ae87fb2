package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"firmo/internal/contract"
	"firmo/internal/progression"
	"firmo/internal/verification/metrics"
	"firmo/internal/verification/ports"
	"firmo/internal/verification/scoring"
	"firmo/internal/workflow"
	id "firmo/pkg/domain"
	dErrors "firmo/pkg/domain-errors"
	"firmo/pkg/platform/audit"
	"firmo/pkg/platform/sentinel"
	platstrings "firmo/pkg/platform/strings"
	"firmo/pkg/requestcontext"
)

var tracer = otel.Tracer("firmo/verification")

// faceAnalysisTimeout bounds the three concurrent analyzer calls a face
// submission fans out.
const faceAnalysisTimeout = 30 * time.Second

// errAlreadyDecided signals the session reached a terminal verdict between
// the pre-checks and the transaction; the caller replays the stored result.
var errAlreadyDecided = errors.New("session already decided")

// Coordinator applies the progression table when a party's session completes.
// Both methods write through the transaction carried in ctx.
type Coordinator interface {
	Advance(ctx context.Context, con *contract.Contract, role id.Role, completedAt time.Time) (progression.Result, error)
	ApplyFailSafe(ctx context.Context, con *contract.Contract, reason string, at time.Time) (progression.Result, error)
}

// CompliancePublisher records regulatory-significant events. Emit is
// fail-closed: an error means the event was not persisted and the enclosing
// transaction must roll back.
type CompliancePublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// SecurityPublisher records rejected attempts for SIEM consumption. Emit
// never blocks the request.
type SecurityPublisher interface {
	Emit(ctx context.Context, event audit.SecurityEvent)
}

// OpsTracker records routine activity, possibly sampled.
type OpsTracker interface {
	Track(ctx context.Context, event audit.OpsEvent)
}

// Analyzers groups the four analysis ports a session needs.
type Analyzers struct {
	Face     ports.FaceAnalyzer
	Document ports.DocumentAnalyzer
	Combined ports.CombinedAnalyzer
	Voice    ports.VoiceAnalyzer
}

// Service owns the verification session lifecycle: it opens sessions when a
// party's turn allows it, scores submitted captures, and on completion hands
// the contract to the progression coordinator inside one transaction.
type Service struct {
	sessions    Store
	contracts   contract.Store
	workflows   workflow.Store
	blobs       ports.BlobStore
	analyzers   Analyzers
	progression Coordinator
	atomic      Atomic

	// integrityKey signs session integrity hashes. Same key across restarts
	// or previously issued hashes stop verifying.
	integrityKey []byte

	notifier    ports.Notifier
	invitations ports.Invitations
	compliance  CompliancePublisher
	security    SecurityPublisher
	ops         OpsTracker

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithNotifier(n ports.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithInvitations(inv ports.Invitations) Option {
	return func(s *Service) { s.invitations = inv }
}

func WithCompliancePublisher(p CompliancePublisher) Option {
	return func(s *Service) { s.compliance = p }
}

func WithSecurityPublisher(p SecurityPublisher) Option {
	return func(s *Service) { s.security = p }
}

func WithOpsTracker(t OpsTracker) Option {
	return func(s *Service) { s.ops = t }
}

// NewService constructs the verification service. The positional arguments
// are the dependencies every operation needs; audit publishers, notifier,
// invitations, logger, and metrics are optional.
func NewService(
	sessions Store,
	contracts contract.Store,
	workflows workflow.Store,
	blobs ports.BlobStore,
	analyzers Analyzers,
	coordinator Coordinator,
	atomic Atomic,
	integrityKey []byte,
	opts ...Option,
) *Service {
	s := &Service{
		sessions:     sessions,
		contracts:    contracts,
		workflows:    workflows,
		blobs:        blobs,
		analyzers:    analyzers,
		progression:  coordinator,
		atomic:       atomic,
		integrityKey: integrityKey,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the actor's verification session on a contract, or returns the
// one already open for them. The boolean reports whether a session was
// created; resuming an unexpired session is the idempotent path. An expired
// session is never resumed: it stays queryable and a fresh one supersedes it.
func (s *Service) Start(ctx context.Context, contractID id.ContractID) (*Session, bool, error) {
	actor := requestcontext.UserID(ctx)
	if actor.IsNil() {
		return nil, false, dErrors.New(dErrors.CodeUnauthorized, "no authenticated user in request context")
	}
	now := requestcontext.Now(ctx)

	con, err := s.contracts.FindByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, false, dErrors.New(dErrors.CodeNotFound, "contract not found")
		}
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contract")
	}

	role, ok := con.ResolveRole(actor)
	if !ok {
		s.rejectParty(ctx, con.ID.String(), actor, "user is not a party to the contract")
		return nil, false, dErrors.New(dErrors.CodeForbidden, "user is not a party to this contract")
	}

	if err := s.checkTurn(ctx, con, role, actor); err != nil {
		return nil, false, err
	}

	// Find-or-create runs inside the contract's atomic boundary, so two
	// concurrent Starts cannot both create.
	var (
		session *Session
		created bool
	)
	err = s.atomic.RunInTx(ctx, contractID, func(txCtx context.Context) error {
		existing, err := s.sessions.FindActiveByContractAndParty(txCtx, contractID, actor, now)
		if err == nil {
			session = existing
			return nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up existing session")
		}

		session = NewSession(contractID, actor, role, now,
			requestcontext.DeviceLabel(ctx), requestcontext.ClientIP(ctx))
		if err := s.sessions.Create(txCtx, session); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create session")
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if !created {
		s.logger.InfoContext(ctx, "verification session resumed",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", session.ID,
			"contract_id", contractID,
			"role", role,
		)
		return session, false, nil
	}

	s.trackOps(ctx, audit.OpsEvent{
		Subject:   session.ID.String(),
		Action:    string(audit.EventSessionStarted),
		RequestID: requestcontext.RequestID(ctx),
	})
	s.metrics.IncSessionStarted(role.String())
	s.logger.InfoContext(ctx, "verification session started",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", session.ID,
		"contract_id", contractID,
		"role", role,
		"expires_at", session.ExpiresAt,
	)

	return session, true, nil
}

// StepPayload carries the decoded media for one capture step. Which fields
// are read depends on the step kind.
type StepPayload struct {
	FaceFront []byte
	FaceSide  []byte

	Document     []byte
	DeclaredType string

	Combined []byte

	Voice          []byte
	ExpectedPhrase string

	ContentType string
}

// StepResult reports the outcome of one submitted step.
type StepResult struct {
	SessionID     id.SessionID
	Kind          StepKind
	SessionStatus Status
	Score         float64
	CoherenceFlag bool
}

// SubmitStep stores the captures for one step, runs the matching analyzers,
// and persists the channel's sub-score. Steps arrive in any order and a
// resubmission overwrites the channel; blob keys are content-addressed, so
// resubmitting identical bytes changes nothing. Analyzer calls run outside
// the transaction; only the session write is serialized.
func (s *Service) SubmitStep(ctx context.Context, sessionID id.SessionID, kind StepKind, payload StepPayload) (*StepResult, error) {
	actor := requestcontext.UserID(ctx)
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no authenticated user in request context")
	}
	now := requestcontext.Now(ctx)

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	if err := s.requireOwner(ctx, session, actor); err != nil {
		return nil, err
	}
	if session.Terminal() {
		return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("session already %s", session.Status))
	}
	if session.Expired(now) {
		return nil, dErrors.New(dErrors.CodeConflict, "session expired; start a new one")
	}

	switch kind {
	case StepFace:
		err = s.submitFace(ctx, session, payload)
	case StepDocument:
		err = s.submitDocument(ctx, session, payload)
	case StepCombined:
		err = s.submitCombined(ctx, session, payload)
	case StepVoice:
		err = s.submitVoice(ctx, session, payload)
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown step kind %q", kind))
	}
	if err != nil {
		return nil, err
	}

	// Re-read under the contract lock and copy only this channel over, so a
	// concurrent submission of another kind is never clobbered.
	var updated *Session
	err = s.atomic.RunInTx(ctx, session.ContractID, func(txCtx context.Context) error {
		fresh, err := s.sessions.FindByID(txCtx, session.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload session")
		}
		if fresh.Terminal() {
			return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("session already %s", fresh.Status))
		}
		if fresh.Expired(now) {
			return dErrors.New(dErrors.CodeConflict, "session expired; start a new one")
		}
		applyChannel(fresh, session, kind)
		if fresh.Status == StatusPending {
			fresh.Status = StatusInProgress
		}
		if err := s.sessions.Update(txCtx, fresh); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist step")
		}
		updated = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	session = updated

	score := channelScore(session, kind)
	s.trackOps(ctx, audit.OpsEvent{
		Subject:   session.ID.String(),
		Action:    string(audit.EventStepSubmitted),
		RequestID: requestcontext.RequestID(ctx),
	})
	s.metrics.IncStepSubmitted(string(kind))
	s.logger.InfoContext(ctx, "verification step submitted",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", session.ID,
		"kind", kind,
		"score", score,
	)

	return &StepResult{
		SessionID:     session.ID,
		Kind:          kind,
		SessionStatus: session.Status,
		Score:         score,
		CoherenceFlag: session.CoherenceFlag,
	}, nil
}

// Outcome is the verdict of a completion attempt.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// CompletionResult is the structured verdict Complete returns. A confidence
// below the threshold is an outcome, not an error: the scores explain the
// verdict and the party may start a fresh session.
type CompletionResult struct {
	SessionID         id.SessionID
	Outcome           Outcome
	OverallConfidence float64

	FaceScore     float64
	DocumentScore float64
	VoiceScore    float64
	CombinedScore float64
	CoherenceFlag bool

	ContractPhase    contract.Status
	WorkflowStatus   workflow.Status
	Activated        bool
	FailSafe         bool
	NextRequiredRole id.Role

	CompletedAt time.Time
}

// Complete scores the session and, when accepted, advances the contract. The
// session verdict, the phase write, the workflow mirror, and the compliance
// audit record commit in one transaction. Completing an already completed or
// failed session returns the stored verdict.
func (s *Service) Complete(ctx context.Context, sessionID id.SessionID) (*CompletionResult, error) {
	actor := requestcontext.UserID(ctx)
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no authenticated user in request context")
	}
	now := requestcontext.Now(ctx)

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	if err := s.requireOwner(ctx, session, actor); err != nil {
		return nil, err
	}

	if session.Status == StatusCompleted || session.Status == StatusFailed {
		return s.storedResult(ctx, session)
	}
	if session.Status == StatusExpired || session.Expired(now) {
		return nil, dErrors.New(dErrors.CodeConflict, "session expired; start a new one")
	}

	if missing := session.MissingArtifacts(); len(missing) > 0 {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("incomplete session: missing %s", strings.Join(missing, ", ")))
	}

	ctx, span := tracer.Start(ctx, "verification.complete",
		trace.WithAttributes(attribute.String("session.id", sessionID.String())))
	defer span.End()

	overall := scoring.Overall(session.FaceScore, session.DocumentScore, session.VoiceScore)
	s.metrics.ObserveOverallConfidence(overall)

	con, err := s.contracts.FindByID(ctx, session.ContractID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contract")
	}

	var result *CompletionResult
	if !scoring.Accepted(overall) {
		result, err = s.reject(ctx, session, con, overall, now)
	} else {
		result, err = s.accept(ctx, session, con, overall, now)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("verification.outcome", string(result.Outcome)),
		attribute.Float64("verification.confidence", result.OverallConfidence),
	)
	return result, nil
}

// reject marks the session failed. The compliance record is written in the
// same transaction as the session row; the contract phase does not move.
func (s *Service) reject(ctx context.Context, session *Session, con *contract.Contract, overall float64, now time.Time) (*CompletionResult, error) {
	err := s.atomic.RunInTx(ctx, session.ContractID, func(txCtx context.Context) error {
		fresh, err := s.reloadForVerdict(txCtx, session.ID, now)
		if err != nil {
			session = fresh
			return err
		}
		if err := s.persistVerdict(txCtx, fresh, StatusFailed, overall, now); err != nil {
			return err
		}
		session = fresh
		return s.emitCompliance(txCtx, audit.ComplianceEvent{
			UserID:        fresh.PartyID,
			ContractID:    fresh.ContractID.String(),
			SessionID:     fresh.ID.String(),
			Role:          fresh.Role.String(),
			Subject:       con.ContractNumber,
			Action:        string(audit.EventSessionFailed),
			Decision:      string(OutcomeFailed),
			Confidence:    overall,
			IntegrityHash: fresh.IntegrityHash,
			RequestID:     requestcontext.RequestID(ctx),
		})
	})
	if errors.Is(err, errAlreadyDecided) {
		return s.storedResult(ctx, session)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.IncCompletion(string(OutcomeFailed))
	s.logger.InfoContext(ctx, "verification session failed",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", session.ID,
		"contract_id", session.ContractID,
		"overall_confidence", overall,
	)
	s.notify(ctx, con.ContactEmail(session.Role), ports.TemplateSessionFailed, map[string]any{
		"contract_number":    con.ContractNumber,
		"overall_confidence": overall,
	})

	next, _ := contract.RequiredRole(con.Status, con.HasGuarantor())
	return s.result(session, OutcomeFailed, overall, con.Status, "", false, false, next, now), nil
}

// accept commits the session verdict and the phase advance together. A
// conflict inside the transaction surfaces unchanged; an infrastructure
// failure parks the contract through the fail-safe branch instead of
// stranding it mid-phase.
func (s *Service) accept(ctx context.Context, session *Session, con *contract.Contract, overall float64, now time.Time) (*CompletionResult, error) {
	var res progression.Result

	txErr := s.atomic.RunInTx(ctx, session.ContractID, func(txCtx context.Context) error {
		fresh, err := s.reloadForVerdict(txCtx, session.ID, now)
		if err != nil {
			session = fresh
			return err
		}

		locked, err := s.contracts.FindByIDForUpdate(txCtx, fresh.ContractID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock contract")
		}
		// Re-run the turn gate under the lock; a concurrent completion may
		// have moved the phase since the pre-checks.
		if err := s.checkTurn(txCtx, locked, fresh.Role, fresh.PartyID); err != nil {
			return err
		}
		con = locked

		res, err = s.progression.Advance(txCtx, locked, fresh.Role, now)
		if err != nil {
			return err
		}
		if res.FailSafe {
			// No rule matched the pair; park the contract in this same
			// transaction rather than leaving the phase untouched.
			res, err = s.progression.ApplyFailSafe(txCtx, locked, res.Reason, now)
			if err != nil {
				return err
			}
		}

		if err := s.persistVerdict(txCtx, fresh, StatusCompleted, overall, now); err != nil {
			return err
		}
		session = fresh

		if res.FailSafe {
			return s.auditFailSafe(txCtx, fresh, locked)
		}

		if err := s.emitCompliance(txCtx, audit.ComplianceEvent{
			UserID:        fresh.PartyID,
			ContractID:    fresh.ContractID.String(),
			SessionID:     fresh.ID.String(),
			Role:          fresh.Role.String(),
			Subject:       con.ContractNumber,
			Action:        string(audit.EventSessionCompleted),
			Decision:      string(OutcomeCompleted),
			Confidence:    overall,
			IntegrityHash: fresh.IntegrityHash,
			RequestID:     requestcontext.RequestID(ctx),
		}); err != nil {
			return err
		}
		if res.Activated {
			if err := s.emitCompliance(txCtx, audit.ComplianceEvent{
				UserID:     fresh.PartyID,
				ContractID: fresh.ContractID.String(),
				SessionID:  fresh.ID.String(),
				Role:       fresh.Role.String(),
				Subject:    con.ContractNumber,
				Action:     string(audit.EventContractActivated),
				Decision:   string(contract.StatusActive),
				RequestID:  requestcontext.RequestID(ctx),
			}); err != nil {
				return err
			}
		}
		return nil
	})

	if txErr != nil {
		if errors.Is(txErr, errAlreadyDecided) {
			return s.storedResult(ctx, session)
		}
		if dErrors.HasCode(txErr, dErrors.CodeConflict) {
			return nil, txErr
		}
		return s.applyFailSafe(ctx, session, con, overall, now, txErr)
	}

	s.metrics.IncCompletion(string(OutcomeCompleted))
	s.logger.InfoContext(ctx, "verification session completed",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", session.ID,
		"contract_id", session.ContractID,
		"overall_confidence", overall,
		"next_phase", res.NextPhase,
		"activated", res.Activated,
	)

	s.afterCompletion(ctx, session, con, res)

	next, _ := contract.RequiredRole(res.NextPhase, con.HasGuarantor())
	return s.result(session, OutcomeCompleted, overall, res.NextPhase, res.WorkflowStatus, res.Activated, res.FailSafe, next, now), nil
}

// applyFailSafe runs after the completion transaction failed for an
// infrastructure reason. The party did verify; losing the progression write
// must not strand the contract, so a fresh small transaction re-persists the
// verdict and parks the contract where a human picks it up.
func (s *Service) applyFailSafe(ctx context.Context, session *Session, con *contract.Contract, overall float64, now time.Time, cause error) (*CompletionResult, error) {
	s.logger.ErrorContext(ctx, "completion transaction failed, applying fail-safe phase",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", session.ID,
		"contract_id", session.ContractID,
		"error", cause,
	)

	var res progression.Result
	txErr := s.atomic.RunInTx(ctx, session.ContractID, func(txCtx context.Context) error {
		fresh, err := s.reloadForVerdict(txCtx, session.ID, now)
		if err != nil {
			session = fresh
			return err
		}

		locked, err := s.contracts.FindByIDForUpdate(txCtx, fresh.ContractID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock contract")
		}
		con = locked

		res, err = s.progression.ApplyFailSafe(txCtx, locked, cause.Error(), now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply fail-safe phase")
		}

		if err := s.persistVerdict(txCtx, fresh, StatusCompleted, overall, now); err != nil {
			return err
		}
		session = fresh
		return s.auditFailSafe(txCtx, fresh, locked)
	})
	if errors.Is(txErr, errAlreadyDecided) {
		return s.storedResult(ctx, session)
	}
	if txErr != nil {
		return nil, dErrors.Wrap(txErr, dErrors.CodeInternal, "fail-safe transaction failed")
	}

	s.metrics.IncCompletion(string(OutcomeCompleted))
	return s.result(session, OutcomeCompleted, overall, res.NextPhase, res.WorkflowStatus, false, true, "", now), nil
}

// reloadForVerdict re-reads the session inside the transaction. It returns
// errAlreadyDecided with the fresh session when another request already
// finalized it, so the caller can replay the stored verdict.
func (s *Service) reloadForVerdict(ctx context.Context, sessionID id.SessionID, now time.Time) (*Session, error) {
	fresh, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload session")
	}
	if fresh.Status == StatusCompleted || fresh.Status == StatusFailed {
		return fresh, errAlreadyDecided
	}
	if fresh.Expired(now) {
		return fresh, dErrors.New(dErrors.CodeConflict, "session expired; start a new one")
	}
	return fresh, nil
}

// persistVerdict finalizes the session row: terminal status, completion
// time, and the integrity hash recomputed over the final timestamps.
func (s *Service) persistVerdict(ctx context.Context, session *Session, status Status, overall float64, now time.Time) error {
	session.Status = status
	session.CompletedAt = &now
	session.OverallConfidence = overall
	session.IntegrityHash = session.ComputeIntegrityHash(s.integrityKey)
	if err := s.sessions.Update(ctx, session); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist session verdict")
	}
	return nil
}

func (s *Service) auditFailSafe(ctx context.Context, session *Session, con *contract.Contract) error {
	return s.emitCompliance(ctx, audit.ComplianceEvent{
		UserID:        session.PartyID,
		ContractID:    session.ContractID.String(),
		SessionID:     session.ID.String(),
		Role:          session.Role.String(),
		Subject:       con.ContractNumber,
		Action:        string(audit.EventFailSafeApplied),
		Decision:      string(progression.FailSafePhase),
		Confidence:    session.OverallConfidence,
		IntegrityHash: session.IntegrityHash,
		RequestID:     requestcontext.RequestID(ctx),
	})
}

// storedResult rebuilds the verdict of a session that already completed or
// failed, so Complete replays idempotently.
func (s *Service) storedResult(ctx context.Context, session *Session) (*CompletionResult, error) {
	con, err := s.contracts.FindByID(ctx, session.ContractID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contract")
	}

	outcome := OutcomeFailed
	if session.Status == StatusCompleted {
		outcome = OutcomeCompleted
	}
	var completedAt time.Time
	if session.CompletedAt != nil {
		completedAt = *session.CompletedAt
	}
	next, _ := contract.RequiredRole(con.Status, con.HasGuarantor())
	activated := con.Status == contract.StatusActive

	return s.result(session, outcome, session.OverallConfidence, con.Status, "", activated, false, next, completedAt), nil
}

func (s *Service) result(session *Session, outcome Outcome, overall float64, phase contract.Status, wf workflow.Status, activated, failSafe bool, next id.Role, completedAt time.Time) *CompletionResult {
	return &CompletionResult{
		SessionID:         session.ID,
		Outcome:           outcome,
		OverallConfidence: overall,
		FaceScore:         session.FaceScore,
		DocumentScore:     session.DocumentScore,
		VoiceScore:        session.VoiceScore,
		CombinedScore:     session.CombinedScore,
		CoherenceFlag:     session.CoherenceFlag,
		ContractPhase:     phase,
		WorkflowStatus:    wf,
		Activated:         activated,
		FailSafe:          failSafe,
		NextRequiredRole:  next,
		CompletedAt:       completedAt,
	}
}

// RoleStatus reports one role's place in the verification sequence.
type RoleStatus struct {
	Required    bool
	Completed   bool
	CompletedAt *time.Time
}

// StatusView is the read-only progress projection for one contract.
type StatusView struct {
	ContractID       id.ContractID
	ContractNumber   string
	CurrentPhase     contract.Status
	ProgressPercent  int
	Roles            map[id.Role]RoleStatus
	NextRequiredRole id.Role
}

// Status projects the contract's verification progress for its parties. The
// per-role completions come from the workflow's progress map, which the
// coordinator writes in the same transaction as each phase change.
func (s *Service) Status(ctx context.Context, contractID id.ContractID) (*StatusView, error) {
	actor := requestcontext.UserID(ctx)
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no authenticated user in request context")
	}

	con, err := s.contracts.FindByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "contract not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contract")
	}
	if _, ok := con.ResolveRole(actor); !ok {
		s.rejectParty(ctx, con.ID.String(), actor, "status query by non-party")
		return nil, dErrors.New(dErrors.CodeForbidden, "user is not a party to this contract")
	}

	w, err := s.workflows.FindByProperty(ctx, con.PropertyID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load workflow")
		}
		w = nil
	}

	roles := make(map[id.Role]RoleStatus, 3)
	var required, completed int
	for _, role := range []id.Role{id.RoleTenant, id.RoleGuarantor, id.RoleLandlord} {
		rs := RoleStatus{Required: role != id.RoleGuarantor || con.HasGuarantor()}
		if w != nil {
			if p, ok := w.Data.BiometricProgress[role]; ok && p.Completed {
				rs.Completed = true
				at := p.CompletedAt
				rs.CompletedAt = &at
			}
		}
		if rs.Required {
			required++
			if rs.Completed {
				completed++
			}
		}
		roles[role] = rs
	}

	percent := 0
	if required > 0 {
		percent = completed * 100 / required
	}
	if con.Status == contract.StatusActive {
		percent = 100
	}

	next, _ := contract.RequiredRole(con.Status, con.HasGuarantor())

	s.trackOps(ctx, audit.OpsEvent{
		Subject:   contractID.String(),
		Action:    string(audit.EventStatusQueried),
		RequestID: requestcontext.RequestID(ctx),
	})

	return &StatusView{
		ContractID:       con.ID,
		ContractNumber:   con.ContractNumber,
		CurrentPhase:     con.Status,
		ProgressPercent:  percent,
		Roles:            roles,
		NextRequiredRole: next,
	}, nil
}

// checkTurn enforces the two gates on working a contract: the phase must
// accept verification at all, and it must be this role's turn.
func (s *Service) checkTurn(ctx context.Context, con *contract.Contract, role id.Role, actor id.UserID) error {
	if !contract.EligibleForVerification(con.Status) {
		s.emitSecurity(ctx, audit.SecurityEvent{
			Subject:   con.ID.String(),
			Action:    string(audit.EventStateRejected),
			Reason:    fmt.Sprintf("contract in phase %q", con.Status),
			IP:        requestcontext.ClientIP(ctx),
			RequestID: requestcontext.RequestID(ctx),
			ActorID:   actor.String(),
			Severity:  audit.SeverityInfo,
		})
		return dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("contract in phase %q does not accept verification", con.Status))
	}
	required, ok := contract.RequiredRole(con.Status, con.HasGuarantor())
	if ok && required != role {
		s.emitSecurity(ctx, audit.SecurityEvent{
			Subject:   con.ID.String(),
			Action:    string(audit.EventStateRejected),
			Reason:    fmt.Sprintf("out of turn: %s acted during the %s's turn", role, required),
			IP:        requestcontext.ClientIP(ctx),
			RequestID: requestcontext.RequestID(ctx),
			ActorID:   actor.String(),
			Severity:  audit.SeverityWarning,
		})
		return dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("it is the %s's turn to verify", required))
	}
	return nil
}

func (s *Service) requireOwner(ctx context.Context, session *Session, actor id.UserID) error {
	if session.PartyID == actor {
		return nil
	}
	s.rejectParty(ctx, session.ID.String(), actor, "session belongs to another party")
	return dErrors.New(dErrors.CodeForbidden, "session belongs to another party")
}

func (s *Service) rejectParty(ctx context.Context, subject string, actor id.UserID, reason string) {
	s.emitSecurity(ctx, audit.SecurityEvent{
		Subject:   subject,
		Action:    string(audit.EventPartyRejected),
		Reason:    reason,
		IP:        requestcontext.ClientIP(ctx),
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   actor.String(),
		Severity:  audit.SeverityWarning,
	})
}

// afterCompletion fires the side effects that must never unwind a committed
// phase: the turn handoff (invitation plus notification) or the activation
// notices. Failures are logged and dropped.
func (s *Service) afterCompletion(ctx context.Context, session *Session, con *contract.Contract, res progression.Result) {
	s.notify(ctx, con.ContactEmail(session.Role), ports.TemplateSessionCompleted, map[string]any{
		"contract_number": con.ContractNumber,
		"role":            session.Role.String(),
	})

	if res.Activated {
		recipients := make([]string, 0, 3)
		for _, role := range []id.Role{id.RoleTenant, id.RoleGuarantor, id.RoleLandlord} {
			recipients = append(recipients, con.ContactEmail(role))
		}
		// A party holding two roles gets one activation notice.
		for _, email := range platstrings.DedupeAndTrimLower(recipients) {
			s.notify(ctx, email, ports.TemplateContractActivated, map[string]any{
				"contract_number": con.ContractNumber,
			})
		}
		return
	}
	if res.FailSafe {
		return
	}

	next, ok := contract.RequiredRole(res.NextPhase, con.HasGuarantor())
	if !ok {
		return
	}
	s.inviteNext(ctx, session, con, next)
	s.notify(ctx, con.ContactEmail(next), ports.TemplateTurnReady, map[string]any{
		"contract_number": con.ContractNumber,
		"role":            next.String(),
	})
}

func (s *Service) inviteNext(ctx context.Context, session *Session, con *contract.Contract, next id.Role) {
	if s.invitations == nil {
		return
	}
	email := con.ContactEmail(next)
	if email == "" {
		return
	}
	err := s.invitations.Invite(ctx, ports.InviteRequest{
		ContractID: con.ID,
		InviterID:  session.PartyID,
		Email:      email,
		Role:       next,
		Message:    fmt.Sprintf("Contract %s is ready for your biometric verification", con.ContractNumber),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "invitation for next party failed",
			"request_id", requestcontext.RequestID(ctx),
			"contract_id", con.ID,
			"role", next,
			"error", err,
		)
	}
}

func (s *Service) notify(ctx context.Context, recipient, template string, payload map[string]any) {
	if s.notifier == nil || recipient == "" {
		return
	}
	if err := s.notifier.Send(ctx, recipient, template, payload); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			"request_id", requestcontext.RequestID(ctx),
			"template", template,
			"error", err,
		)
	}
}

func (s *Service) emitCompliance(ctx context.Context, event audit.ComplianceEvent) error {
	if s.compliance == nil {
		return nil
	}
	return s.compliance.Emit(ctx, event)
}

func (s *Service) emitSecurity(ctx context.Context, event audit.SecurityEvent) {
	if s.security == nil {
		return
	}
	s.security.Emit(ctx, event)
}

func (s *Service) trackOps(ctx context.Context, event audit.OpsEvent) {
	if s.ops == nil {
		return
	}
	s.ops.Track(ctx, event)
}

// applyChannel copies one channel's keys, analysis, and score from src onto
// dst, leaving the other channels untouched.
func applyChannel(dst, src *Session, kind StepKind) {
	switch kind {
	case StepFace:
		dst.FaceFrontKey = src.FaceFrontKey
		dst.FaceSideKey = src.FaceSideKey
		dst.Analysis.FaceFront = src.Analysis.FaceFront
		dst.Analysis.FaceSide = src.Analysis.FaceSide
		dst.Analysis.FaceComparison = src.Analysis.FaceComparison
		dst.FaceScore = src.FaceScore
	case StepDocument:
		dst.DocumentKey = src.DocumentKey
		dst.Analysis.Document = src.Analysis.Document
		dst.DocumentScore = src.DocumentScore
	case StepCombined:
		dst.CombinedKey = src.CombinedKey
		dst.Analysis.Combined = src.Analysis.Combined
		dst.CombinedScore = src.CombinedScore
		dst.CoherenceFlag = src.CoherenceFlag
	case StepVoice:
		dst.VoiceKey = src.VoiceKey
		dst.Analysis.Voice = src.Analysis.Voice
		dst.VoiceScore = src.VoiceScore
	}
}

func channelScore(session *Session, kind StepKind) float64 {
	switch kind {
	case StepFace:
		return session.FaceScore
	case StepDocument:
		return session.DocumentScore
	case StepCombined:
		return session.CombinedScore
	case StepVoice:
		return session.VoiceScore
	}
	return 0
}
