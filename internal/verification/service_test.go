package verification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"firmo/internal/contract"
	"firmo/internal/progression"
	"firmo/internal/verification/adapters"
	"firmo/internal/verification/ports"
	"firmo/internal/workflow"
	id "firmo/pkg/domain"
	dErrors "firmo/pkg/domain-errors"
	"firmo/pkg/platform/audit"
	"firmo/pkg/platform/sentinel"
	"firmo/pkg/requestcontext"
)

const spokenPhrase = "my voice confirms this rental contract"

type captureCompliance struct {
	mu     sync.Mutex
	events []audit.ComplianceEvent
}

func (c *captureCompliance) Emit(_ context.Context, event audit.ComplianceEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureCompliance) byAction(action audit.AuditEvent) []audit.ComplianceEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []audit.ComplianceEvent
	for _, e := range c.events {
		if e.Action == string(action) {
			out = append(out, e)
		}
	}
	return out
}

func (c *captureCompliance) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

type captureSecurity struct {
	mu     sync.Mutex
	events []audit.SecurityEvent
}

func (c *captureSecurity) Emit(_ context.Context, event audit.SecurityEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureSecurity) byAction(action audit.AuditEvent) []audit.SecurityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []audit.SecurityEvent
	for _, e := range c.events {
		if e.Action == string(action) {
			out = append(out, e)
		}
	}
	return out
}

type sentNotification struct {
	Recipient string
	Template  string
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *captureNotifier) Send(_ context.Context, recipient, template string, _ map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Recipient: recipient, Template: template})
	return nil
}

func (n *captureNotifier) recipients(template string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, s := range n.sent {
		if s.Template == template {
			out = append(out, s.Recipient)
		}
	}
	return out
}

type captureInvitations struct {
	mu       sync.Mutex
	requests []ports.InviteRequest
}

func (c *captureInvitations) Invite(_ context.Context, req ports.InviteRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	return nil
}

// failingContracts refuses status writes to one target phase, so the
// completion transaction fails mid-flight while the fail-safe phase still
// goes through.
type failingContracts struct {
	contract.Store
	refuse contract.Status
}

func (f *failingContracts) UpdateStatus(ctx context.Context, contractID id.ContractID, status contract.Status, updatedAt time.Time) error {
	if status == f.refuse {
		return errors.New("status write refused")
	}
	return f.Store.UpdateStatus(ctx, contractID, status, updatedAt)
}

type ServiceSuite struct {
	suite.Suite

	ctx        context.Context
	sessions   *InMemoryStore
	contracts  *contract.InMemoryStore
	workflows  *workflow.InMemoryStore
	blobs      *adapters.MemoryBlobStore
	analyzer   *adapters.MockAnalyzer
	compliance *captureCompliance
	security   *captureSecurity
	notifier   *captureNotifier
	invites    *captureInvitations
	service    *Service

	base time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.sessions = NewInMemoryStore()
	s.contracts = contract.NewInMemoryStore()
	s.workflows = workflow.NewInMemoryStore()
	s.blobs = adapters.NewMemoryBlobStore()
	s.analyzer = adapters.NewMockAnalyzer()
	s.compliance = &captureCompliance{}
	s.security = &captureSecurity{}
	s.notifier = &captureNotifier{}
	s.invites = &captureInvitations{}
	s.base = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s.buildService(s.contracts)
}

// buildService wires the service over the given contract store, so tests can
// swap in the failing wrapper.
func (s *ServiceSuite) buildService(contracts contract.Store) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	coordinator := progression.New(contracts, s.workflows, logger, nil)
	analyzers := Analyzers{Face: s.analyzer, Document: s.analyzer, Combined: s.analyzer, Voice: s.analyzer}
	s.service = NewService(
		s.sessions, contracts, s.workflows, s.blobs, analyzers,
		coordinator, NewMemoryAtomic(), []byte("integrity-test-key"),
		WithLogger(logger),
		WithNotifier(s.notifier),
		WithInvitations(s.invites),
		WithCompliancePublisher(s.compliance),
		WithSecurityPublisher(s.security),
	)
}

func (s *ServiceSuite) newContract(withGuarantor bool, status contract.Status) *contract.Contract {
	con := &contract.Contract{
		ID:             id.NewContractID(),
		ContractNumber: "CT-2025-000042",
		PropertyID:     id.NewPropertyID(),
		LandlordID:     id.NewUserID(),
		TenantID:       id.NewUserID(),
		LandlordEmail:  "landlord@example.com",
		TenantEmail:    "tenant@example.com",
		Status:         status,
		MonthlyRent:    95000,
		Currency:       "EUR",
		CreatedAt:      s.base,
		UpdatedAt:      s.base,
	}
	if withGuarantor {
		con.GuarantorID = id.NewUserID()
		con.GuarantorEmail = "guarantor@example.com"
	}
	s.Require().NoError(s.contracts.Create(s.ctx, con))
	return con
}

// asParty builds the request context the HTTP middleware would hand the
// service: actor, frozen clock, and client metadata.
func (s *ServiceSuite) asParty(userID id.UserID, at time.Time) context.Context {
	ctx := requestcontext.WithUserID(s.ctx, userID)
	ctx = requestcontext.WithTime(ctx, at)
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "firmo-app/2.1")
	ctx = requestcontext.WithDeviceLabel(ctx, "Safari on iOS")
	return requestcontext.WithRequestID(ctx, "req-svc-test")
}

// tune stages the analyzer for exact channel scores: with every face input
// equal the face weights sum to the input, likewise document. Voice gets
// full duration credit plus full word overlap when the recording carries the
// phrase, leaving the two knobs to place the score.
func (s *ServiceSuite) tune(face, document, voiceAudio, voiceBio float64) {
	s.analyzer.FaceQuality = face
	s.analyzer.Liveness = face
	s.analyzer.Similarity = face
	s.analyzer.DocumentConfidence = document
	s.analyzer.ImageQuality = document
	s.analyzer.FieldValidationRate = document
	s.analyzer.AudioQuality = voiceAudio
	s.analyzer.BiometricScore = voiceBio
}

func stepPayload(kind StepKind, audio string) StepPayload {
	switch kind {
	case StepFace:
		return StepPayload{FaceFront: []byte("front-capture"), FaceSide: []byte("side-capture"), ContentType: "image/jpeg"}
	case StepDocument:
		return StepPayload{Document: []byte("passport-scan"), DeclaredType: "passport", ContentType: "image/jpeg"}
	case StepCombined:
		return StepPayload{Combined: []byte("combined-capture"), ContentType: "image/jpeg"}
	case StepVoice:
		return StepPayload{Voice: []byte(audio), ExpectedPhrase: spokenPhrase, ContentType: "audio/ogg"}
	}
	return StepPayload{}
}

func (s *ServiceSuite) submitKinds(ctx context.Context, sessionID id.SessionID, audio string, kinds ...StepKind) {
	for _, kind := range kinds {
		_, err := s.service.SubmitStep(ctx, sessionID, kind, stepPayload(kind, audio))
		s.Require().NoError(err)
	}
}

func (s *ServiceSuite) submitAll(ctx context.Context, sessionID id.SessionID, audio string) {
	s.submitKinds(ctx, sessionID, audio, StepFace, StepDocument, StepCombined, StepVoice)
}

func (s *ServiceSuite) reloadContract(contractID id.ContractID) *contract.Contract {
	con, err := s.contracts.FindByID(s.ctx, contractID)
	s.Require().NoError(err)
	return con
}

func (s *ServiceSuite) reloadSession(sessionID id.SessionID) *Session {
	session, err := s.sessions.FindByID(s.ctx, sessionID)
	s.Require().NoError(err)
	return session
}

func (s *ServiceSuite) TestStartCreatesPendingSession() {
	con := s.newContract(false, contract.StatusReadyForAuthentication)
	ctx := s.asParty(con.TenantID, s.base)

	session, created, err := s.service.Start(ctx, con.ID)
	s.Require().NoError(err)

	s.True(created)
	s.Equal(StatusPending, session.Status)
	s.Equal(con.ID, session.ContractID)
	s.Equal(con.TenantID, session.PartyID)
	s.Equal(id.RoleTenant, session.Role)
	s.Equal(s.base, session.CreatedAt)
	s.Equal(s.base.Add(SessionTTL), session.ExpiresAt)
	s.Equal("203.0.113.7", session.ClientIP)
	s.Equal("Safari on iOS", session.DeviceLabel)
	s.Empty(s.security.events)
}

func (s *ServiceSuite) TestStartResumesOpenSession() {
	con := s.newContract(false, contract.StatusReadyForAuthentication)
	ctx := s.asParty(con.TenantID, s.base)

	first, created, err := s.service.Start(ctx, con.ID)
	s.Require().NoError(err)
	s.True(created)

	later := s.asParty(con.TenantID, s.base.Add(6*time.Hour))
	second, created, err := s.service.Start(later, con.ID)
	s.Require().NoError(err)

	s.False(created)
	s.Equal(first.ID, second.ID)
}

func (s *ServiceSuite) TestStartSupersedesExpiredSession() {
	con := s.newContract(false, contract.StatusReadyForAuthentication)

	first, _, err := s.service.Start(s.asParty(con.TenantID, s.base), con.ID)
	s.Require().NoError(err)

	after := s.base.Add(25 * time.Hour)
	second, created, err := s.service.Start(s.asParty(con.TenantID, after), con.ID)
	s.Require().NoError(err)

	s.True(created)
	s.NotEqual(first.ID, second.ID)

	// The superseded session is still queryable and reads as expired without
	// ever having been rewritten.
	old := s.reloadSession(first.ID)
	s.Equal(StatusPending, old.Status)
	s.Equal(StatusExpired, old.EffectiveStatus(after))
}

func (s *ServiceSuite) TestStartRequiresAuthenticatedUser() {
	con := s.newContract(false, contract.StatusReadyForAuthentication)

	_, _, err := s.service.Start(requestcontext.WithTime(s.ctx, s.base), con.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestStartRejectsUnknownContract() {
	_, _, err := s.service.Start(s.asParty(id.NewUserID(), s.base), id.NewContractID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestStartRejectsNonParty() {
	con := s.newContract(false, contract.StatusReadyForAuthentication)
	stranger := id.NewUserID()

	_, _, err := s.service.Start(s.asParty(stranger, s.base), con.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	rejected := s.security.byAction(audit.EventPartyRejected)
	s.Require().Len(rejected, 1)
	s.Equal(con.ID.String(), rejected[0].Subject)
	s.Equal(stranger.String(), rejected[0].ActorID)
	s.Equal("203.0.113.7", rejected[0].IP)
	s.Equal(audit.SeverityWarning, rejected[0].Severity)
}

func (s *ServiceSuite) TestStartRejectsOutOfTurn() {
	con := s.newContract(false, contract.StatusReadyForAuthentication)

	_, _, err := s.service.Start(s.asParty(con.LandlordID, s.base), con.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Contains(err.Error(), "tenant")

	rejected := s.security.byAction(audit.EventStateRejected)
	s.Require().Len(rejected, 1)
	s.Equal(audit.SeverityWarning, rejected[0].Severity)
	s.Contains(rejected[0].Reason, "out of turn")
}

func (s *ServiceSuite) TestStartRejectsIneligiblePhase() {
	con := s.newContract(false, contract.StatusActive)

	_, _, err := s.service.Start(s.asParty(con.TenantID, s.base), con.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	rejected := s.security.byAction(audit.EventStateRejected)
	s.Require().Len(rejected, 1)
	s.Equal(audit.SeverityInfo, rejected[0].Severity)
}

func (s *ServiceSuite) TestSubmitStepRejectsNonOwner() {
	con := s.newContract(false, contract.StatusReadyForAuthentication)
	session, _, err := s.service.Start(s.asParty(con.TenantID, s.base), con.ID)
	s.Require().NoError(err)

	_, err = s.service.SubmitStep(s.asParty(con.LandlordID, s.base), session.ID, StepFace, stepPayload(StepFace, ""))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Len(s.security.byAction(audit.EventPartyRejected), 1)
}

func (s *ServiceSuite) TestSubmitStepRejectsExpiredSession() {
	con := s.newContract(false, contract.StatusReadyForAuthentication)
	session, _, err := s.service.Start(s.asParty(con.TenantID, s.base), con.ID)
	s.Require().NoError(err)

	late := s.asParty(con.TenantID, s.base.Add(25*time.Hour))
	_, err = s.service.SubmitStep(late, session.ID, StepFace, stepPayload(StepFace, ""))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Contains(err.Error(), "expired")
}

func (s *ServiceSuite) TestSubmitStepValidatesPayload() {
	con := s.newContract(false, contract.StatusReadyForAuthentication)
	ctx := s.asParty(con.TenantID, s.base)
	session, _, err := s.service.Start(ctx, con.ID)
	s.Require().NoError(err)

	s.Run("face needs both captures", func() {
		_, err := s.service.SubmitStep(ctx, session.ID, StepFace, StepPayload{FaceFront: []byte("front")})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("voice needs the expected phrase", func() {
		_, err := s.service.SubmitStep(ctx, session.ID, StepVoice, StepPayload{Voice: []byte("audio")})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown kind", func() {
		_, err := s.service.SubmitStep(ctx, session.ID, StepKind("retina"), StepPayload{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestSubmitStepMovesSessionInProgress() {
	con := s.newContract(false, contract.StatusReadyForAuthentication)
	ctx := s.asParty(con.TenantID, s.base)
	session, _, err := s.service.Start(ctx, con.ID)
	s.Require().NoError(err)

	res, err := s.service.SubmitStep(ctx, session.ID, StepDocument, stepPayload(StepDocument, ""))
	s.Require().NoError(err)

	s.Equal(StatusInProgress, res.SessionStatus)
	s.Greater(res.Score, 0.0)
	s.Equal(StatusInProgress, s.reloadSession(session.ID).Status)
}

func (s *ServiceSuite) TestResubmissionOverwritesChannel() {
	con := s.newContract(false, contract.StatusReadyForAuthentication)
	ctx := s.asParty(con.TenantID, s.base)
	session, _, err := s.service.Start(ctx, con.ID)
	s.Require().NoError(err)

	first, err := s.service.SubmitStep(ctx, session.ID, StepDocument, stepPayload(StepDocument, ""))
	s.Require().NoError(err)
	s.Equal(1, s.blobs.Len())

	// Identical bytes are content-addressed: no new blob, same key.
	firstKey := s.reloadSession(session.ID).DocumentKey
	_, err = s.service.SubmitStep(ctx, session.ID, StepDocument, stepPayload(StepDocument, ""))
	s.Require().NoError(err)
	s.Equal(1, s.blobs.Len())
	s.Equal(firstKey, s.reloadSession(session.ID).DocumentKey)

	// New bytes with a weaker analysis replace the channel outright.
	s.analyzer.DocumentConfidence = 0.6
	s.analyzer.ImageQuality = 0.6
	s.analyzer.FieldValidationRate = 0.6
	second, err := s.service.SubmitStep(ctx, session.ID, StepDocument, StepPayload{
		Document: []byte("passport-rescan"), DeclaredType: "passport", ContentType: "image/jpeg",
	})
	s.Require().NoError(err)

	s.Equal(2, s.blobs.Len())
	s.NotEqual(firstKey, s.reloadSession(session.ID).DocumentKey)
	s.InDelta(0.6, second.Score, 1e-9)
	s.Less(second.Score, first.Score)
}

func (s *ServiceSuite) TestCompleteRequiresAllArtifacts() {
	cases := []struct {
		name    string
		submit  []StepKind
		missing []string
	}{
		{"nothing submitted", nil, []string{ArtifactFaceFront, ArtifactFaceSide, ArtifactDocument, ArtifactCombined, ArtifactVoice}},
		{"face missing", []StepKind{StepDocument, StepCombined, StepVoice}, []string{ArtifactFaceFront, ArtifactFaceSide}},
		{"document missing", []StepKind{StepFace, StepCombined, StepVoice}, []string{ArtifactDocument}},
		{"combined missing", []StepKind{StepFace, StepDocument, StepVoice}, []string{ArtifactCombined}},
		{"voice missing", []StepKind{StepFace, StepDocument, StepCombined}, []string{ArtifactVoice}},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			con := s.newContract(false, contract.StatusReadyForAuthentication)
			ctx := s.asParty(con.TenantID, s.base)
			session, _, err := s.service.Start(ctx, con.ID)
			s.Require().NoError(err)
			s.submitKinds(ctx, session.ID, spokenPhrase, tc.submit...)

			_, err = s.service.Complete(ctx, session.ID)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
			for _, label := range tc.missing {
				s.Contains(err.Error(), label)
			}
		})
	}
}

func (s *ServiceSuite) TestCompleteTenantHandsTurnToLandlord() {
	s.tune(0.90, 0.85, 0.5, 0.5)
	con := s.newContract(false, contract.StatusReadyForAuthentication)
	ctx := s.asParty(con.TenantID, s.base)

	session, _, err := s.service.Start(ctx, con.ID)
	s.Require().NoError(err)
	s.submitAll(ctx, session.ID, spokenPhrase)

	completedAt := s.base.Add(time.Hour)
	res, err := s.service.Complete(s.asParty(con.TenantID, completedAt), session.ID)
	s.Require().NoError(err)

	s.Equal(OutcomeCompleted, res.Outcome)
	s.InDelta(0.90, res.FaceScore, 1e-9)
	s.InDelta(0.85, res.DocumentScore, 1e-9)
	s.InDelta(0.75, res.VoiceScore, 1e-9)
	s.InDelta(0.8333, res.OverallConfidence, 0.001)
	s.False(res.CoherenceFlag)
	s.Equal(contract.StatusPendingLandlordBiometric, res.ContractPhase)
	s.Equal(workflow.StatusPendingLandlord, res.WorkflowStatus)
	s.False(res.Activated)
	s.False(res.FailSafe)
	s.Equal(id.RoleLandlord, res.NextRequiredRole)
	s.Equal(completedAt, res.CompletedAt)

	stored := s.reloadSession(session.ID)
	s.Equal(StatusCompleted, stored.Status)
	s.Require().NotNil(stored.CompletedAt)
	s.Equal(completedAt, *stored.CompletedAt)
	s.True(stored.VerifyIntegrity([]byte("integrity-test-key")))

	s.Equal(contract.StatusPendingLandlordBiometric, s.reloadContract(con.ID).Status)

	w, err := s.workflows.FindByProperty(s.ctx, con.PropertyID)
	s.Require().NoError(err)
	s.True(w.Completed(id.RoleTenant))

	completedEvents := s.compliance.byAction(audit.EventSessionCompleted)
	s.Require().Len(completedEvents, 1)
	s.Equal(con.TenantID, completedEvents[0].UserID)
	s.Equal(session.ID.String(), completedEvents[0].SessionID)
	s.Equal(con.ContractNumber, completedEvents[0].Subject)
	s.Equal(string(OutcomeCompleted), completedEvents[0].Decision)
	s.InDelta(res.OverallConfidence, completedEvents[0].Confidence, 1e-9)
	s.Equal(stored.IntegrityHash, completedEvents[0].IntegrityHash)

	s.Require().Len(s.invites.requests, 1)
	s.Equal("landlord@example.com", s.invites.requests[0].Email)
	s.Equal(id.RoleLandlord, s.invites.requests[0].Role)
	s.Equal(con.TenantID, s.invites.requests[0].InviterID)
	s.Contains(s.invites.requests[0].Message, con.ContractNumber)

	s.Equal([]string{"tenant@example.com"}, s.notifier.recipients(ports.TemplateSessionCompleted))
	s.Equal([]string{"landlord@example.com"}, s.notifier.recipients(ports.TemplateTurnReady))
}

func (s *ServiceSuite) TestCompleteTenantHandsTurnToGuarantor() {
	s.tune(0.90, 0.85, 0.5, 0.5)
	con := s.newContract(true, contract.StatusReadyForAuthentication)
	ctx := s.asParty(con.TenantID, s.base)

	session, _, err := s.service.Start(ctx, con.ID)
	s.Require().NoError(err)
	s.submitAll(ctx, session.ID, spokenPhrase)

	res, err := s.service.Complete(ctx, session.ID)
	s.Require().NoError(err)

	s.Equal(contract.StatusPendingGuarantorBiometric, res.ContractPhase)
	s.Equal(id.RoleGuarantor, res.NextRequiredRole)

	s.Require().Len(s.invites.requests, 1)
	s.Equal("guarantor@example.com", s.invites.requests[0].Email)
	s.Equal(id.RoleGuarantor, s.invites.requests[0].Role)
}

func (s *ServiceSuite) TestCompleteLandlordActivatesContract() {
	s.tune(0.72, 0.72, 0.6, 0.2)
	con := s.newContract(false, contract.StatusPendingLandlordBiometric)
	ctx := s.asParty(con.LandlordID, s.base)

	session, _, err := s.service.Start(ctx, con.ID)
	s.Require().NoError(err)
	s.submitAll(ctx, session.ID, spokenPhrase)

	res, err := s.service.Complete(ctx, session.ID)
	s.Require().NoError(err)

	s.Equal(OutcomeCompleted, res.Outcome)
	s.InDelta(0.72, res.OverallConfidence, 1e-9)
	s.True(res.Activated)
	s.Equal(contract.StatusActive, res.ContractPhase)
	s.Equal(workflow.StatusCompleted, res.WorkflowStatus)
	s.Equal(id.Role(""), res.NextRequiredRole)

	s.Equal(contract.StatusActive, s.reloadContract(con.ID).Status)

	activated := s.compliance.byAction(audit.EventContractActivated)
	s.Require().Len(activated, 1)
	s.Equal(string(contract.StatusActive), activated[0].Decision)
	s.Len(s.compliance.byAction(audit.EventSessionCompleted), 1)

	s.Empty(s.invites.requests)
	s.ElementsMatch(
		[]string{"tenant@example.com", "landlord@example.com"},
		s.notifier.recipients(ports.TemplateContractActivated),
	)
}

func (s *ServiceSuite) TestCompleteAcceptsDespiteWeakVoice() {
	// Voice lands at 0.40: half word overlap plus floor-level quality knobs.
	// The other channels carry the mean over the threshold.
	s.tune(0.90, 0.85, 0.1, 0.1)
	con := s.newContract(false, contract.StatusReadyForAuthentication)
	ctx := s.asParty(con.TenantID, s.base)

	session, _, err := s.service.Start(ctx, con.ID)
	s.Require().NoError(err)
	s.submitAll(ctx, session.ID, "my voice confirms")

	res, err := s.service.Complete(ctx, session.ID)
	s.Require().NoError(err)

	s.Equal(OutcomeCompleted, res.Outcome)
	s.InDelta(0.40, res.VoiceScore, 1e-9)
	s.InDelta(0.7166, res.OverallConfidence, 0.001)
	s.Equal(contract.StatusPendingLandlordBiometric, res.ContractPhase)
}

func (s *ServiceSuite) TestCompleteLowConfidenceFailsWithoutAdvancing() {
	s.tune(0.60, 0.60, 0.2, 0.2)
	con := s.newContract(false, contract.StatusReadyForAuthentication)
	ctx := s.asParty(con.TenantID, s.base)

	session, _, err := s.service.Start(ctx, con.ID)
	s.Require().NoError(err)
	s.submitAll(ctx, session.ID, spokenPhrase)

	res, err := s.service.Complete(ctx, session.ID)
	s.Require().NoError(err)

	s.Equal(OutcomeFailed, res.Outcome)
	s.InDelta(0.60, res.OverallConfidence, 1e-9)
	s.Equal(contract.StatusReadyForAuthentication, res.ContractPhase)
	s.Equal(id.RoleTenant, res.NextRequiredRole)

	s.Equal(StatusFailed, s.reloadSession(session.ID).Status)
	s.Equal(contract.StatusReadyForAuthentication, s.reloadContract(con.ID).Status)
	_, err = s.workflows.FindByProperty(s.ctx, con.PropertyID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	failedEvents := s.compliance.byAction(audit.EventSessionFailed)
	s.Require().Len(failedEvents, 1)
	s.Equal(string(OutcomeFailed), failedEvents[0].Decision)
	s.InDelta(0.60, failedEvents[0].Confidence, 1e-9)

	s.Empty(s.invites.requests)
	s.Equal([]string{"tenant@example.com"}, s.notifier.recipients(ports.TemplateSessionFailed))

	// A failed session is terminal; the party retries through a fresh one.
	retry, created, err := s.service.Start(ctx, con.ID)
	s.Require().NoError(err)
	s.True(created)
	s.NotEqual(session.ID, retry.ID)
}

func (s *ServiceSuite) TestCompleteReplaysStoredVerdict() {
	s.tune(0.90, 0.85, 0.5, 0.5)
	con := s.newContract(false, contract.StatusReadyForAuthentication)
	ctx := s.asParty(con.TenantID, s.base)

	session, _, err := s.service.Start(ctx, con.ID)
	s.Require().NoError(err)
	s.submitAll(ctx, session.ID, spokenPhrase)

	first, err := s.service.Complete(ctx, session.ID)
	s.Require().NoError(err)
	eventsAfterFirst := s.compliance.count()

	second, err := s.service.Complete(ctx, session.ID)
	s.Require().NoError(err)

	s.Equal(first.Outcome, second.Outcome)
	s.Equal(first.SessionID, second.SessionID)
	s.InDelta(first.OverallConfidence, second.OverallConfidence, 1e-9)
	s.Equal(contract.StatusPendingLandlordBiometric, second.ContractPhase)
	s.Equal(first.CompletedAt, second.CompletedAt)

	// The replay neither advances the contract again nor re-audits.
	s.Equal(contract.StatusPendingLandlordBiometric, s.reloadContract(con.ID).Status)
	s.Equal(eventsAfterFirst, s.compliance.count())
	s.Len(s.invites.requests, 1)
}

func (s *ServiceSuite) TestCompleteReplaysFailedVerdict() {
	s.tune(0.60, 0.60, 0.2, 0.2)
	con := s.newContract(false, contract.StatusReadyForAuthentication)
	ctx := s.asParty(con.TenantID, s.base)

	session, _, err := s.service.Start(ctx, con.ID)
	s.Require().NoError(err)
	s.submitAll(ctx, session.ID, spokenPhrase)

	_, err = s.service.Complete(ctx, session.ID)
	s.Require().NoError(err)
	eventsAfterFirst := s.compliance.count()

	replay, err := s.service.Complete(ctx, session.ID)
	s.Require().NoError(err)

	s.Equal(OutcomeFailed, replay.Outcome)
	s.InDelta(0.60, replay.OverallConfidence, 1e-9)
	s.Equal(eventsAfterFirst, s.compliance.count())
}

func (s *ServiceSuite) TestCompleteRejectsExpiredSession() {
	s.tune(0.90, 0.85, 0.5, 0.5)
	con := s.newContract(false, contract.StatusReadyForAuthentication)
	ctx := s.asParty(con.TenantID, s.base)

	session, _, err := s.service.Start(ctx, con.ID)
	s.Require().NoError(err)
	s.submitAll(ctx, session.ID, spokenPhrase)

	late := s.asParty(con.TenantID, s.base.Add(25*time.Hour))
	_, err = s.service.Complete(late, session.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Contains(err.Error(), "expired")
}

func (s *ServiceSuite) TestCompleteRejectsNonOwner() {
	con := s.newContract(false, contract.StatusReadyForAuthentication)
	ctx := s.asParty(con.TenantID, s.base)
	session, _, err := s.service.Start(ctx, con.ID)
	s.Require().NoError(err)

	_, err = s.service.Complete(s.asParty(con.LandlordID, s.base), session.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestCompleteConflictsWhenPhaseMovedUnderneath() {
	s.tune(0.90, 0.85, 0.5, 0.5)
	con := s.newContract(false, contract.StatusReadyForAuthentication)
	ctx := s.asParty(con.TenantID, s.base)

	session, _, err := s.service.Start(ctx, con.ID)
	s.Require().NoError(err)
	s.submitAll(ctx, session.ID, spokenPhrase)

	// The phase moves on after the pre-checks would have passed.
	s.Require().NoError(s.contracts.UpdateStatus(s.ctx, con.ID, contract.StatusPendingLandlordBiometric, s.base))

	_, err = s.service.Complete(ctx, session.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	// The conflict neither finalizes the session nor parks the contract.
	s.Equal(StatusInProgress, s.reloadSession(session.ID).Status)
	s.Equal(contract.StatusPendingLandlordBiometric, s.reloadContract(con.ID).Status)
}

func (s *ServiceSuite) TestCompleteParksContractWhenAdvanceFails() {
	s.tune(0.90, 0.85, 0.5, 0.5)
	flaky := &failingContracts{Store: s.contracts, refuse: contract.StatusPendingLandlordBiometric}
	s.buildService(flaky)

	con := s.newContract(false, contract.StatusReadyForAuthentication)
	ctx := s.asParty(con.TenantID, s.base)

	session, _, err := s.service.Start(ctx, con.ID)
	s.Require().NoError(err)
	s.submitAll(ctx, session.ID, spokenPhrase)

	res, err := s.service.Complete(ctx, session.ID)
	s.Require().NoError(err)

	// The party did verify; the contract parks instead of stranding.
	s.Equal(OutcomeCompleted, res.Outcome)
	s.True(res.FailSafe)
	s.False(res.Activated)
	s.Equal(contract.StatusAuthenticatedPendingSignature, res.ContractPhase)
	s.Equal(workflow.StatusHeld, res.WorkflowStatus)
	s.Equal(id.Role(""), res.NextRequiredRole)

	s.Equal(StatusCompleted, s.reloadSession(session.ID).Status)
	s.Equal(contract.StatusAuthenticatedPendingSignature, s.reloadContract(con.ID).Status)

	w, err := s.workflows.FindByProperty(s.ctx, con.PropertyID)
	s.Require().NoError(err)
	s.Equal(workflow.StatusHeld, w.Status)

	parked := s.compliance.byAction(audit.EventFailSafeApplied)
	s.Require().Len(parked, 1)
	s.Equal(string(contract.StatusAuthenticatedPendingSignature), parked[0].Decision)
	s.Empty(s.compliance.byAction(audit.EventSessionCompleted))

	// No turn handoff happens for a parked contract.
	s.Empty(s.invites.requests)
	s.Empty(s.notifier.recipients(ports.TemplateTurnReady))
}

func (s *ServiceSuite) TestCompleteOverallIgnoresSubmissionOrder() {
	s.tune(0.90, 0.85, 0.5, 0.5)

	forward := s.newContract(false, contract.StatusReadyForAuthentication)
	fctx := s.asParty(forward.TenantID, s.base)
	fs, _, err := s.service.Start(fctx, forward.ID)
	s.Require().NoError(err)
	s.submitKinds(fctx, fs.ID, spokenPhrase, StepFace, StepDocument, StepCombined, StepVoice)
	fres, err := s.service.Complete(fctx, fs.ID)
	s.Require().NoError(err)

	reverse := s.newContract(false, contract.StatusReadyForAuthentication)
	rctx := s.asParty(reverse.TenantID, s.base)
	rs, _, err := s.service.Start(rctx, reverse.ID)
	s.Require().NoError(err)
	s.submitKinds(rctx, rs.ID, spokenPhrase, StepVoice, StepCombined, StepDocument, StepFace)
	rres, err := s.service.Complete(rctx, rs.ID)
	s.Require().NoError(err)

	s.InDelta(fres.OverallConfidence, rres.OverallConfidence, 1e-9)
	s.Equal(fres.Outcome, rres.Outcome)
}

func (s *ServiceSuite) TestCompleteFlagsLowCoherenceWithoutBlocking() {
	s.tune(0.90, 0.85, 0.5, 0.5)
	s.analyzer.CoherenceScore = 0.3

	con := s.newContract(false, contract.StatusReadyForAuthentication)
	ctx := s.asParty(con.TenantID, s.base)
	session, _, err := s.service.Start(ctx, con.ID)
	s.Require().NoError(err)
	s.submitAll(ctx, session.ID, spokenPhrase)

	res, err := s.service.Complete(ctx, session.ID)
	s.Require().NoError(err)

	// The combined capture flags the session for review but stays out of the
	// overall mean.
	s.True(res.CoherenceFlag)
	s.Equal(OutcomeCompleted, res.Outcome)
	s.InDelta(0.8333, res.OverallConfidence, 0.001)
}

func (s *ServiceSuite) TestStatusProjectsProgress() {
	s.tune(0.90, 0.85, 0.5, 0.5)
	con := s.newContract(true, contract.StatusReadyForAuthentication)

	before, err := s.service.Status(s.asParty(con.LandlordID, s.base), con.ID)
	s.Require().NoError(err)
	s.Equal(contract.StatusReadyForAuthentication, before.CurrentPhase)
	s.Equal(0, before.ProgressPercent)
	s.Equal(id.RoleTenant, before.NextRequiredRole)
	s.True(before.Roles[id.RoleGuarantor].Required)
	s.False(before.Roles[id.RoleTenant].Completed)

	ctx := s.asParty(con.TenantID, s.base)
	session, _, err := s.service.Start(ctx, con.ID)
	s.Require().NoError(err)
	s.submitAll(ctx, session.ID, spokenPhrase)
	completedAt := s.base.Add(time.Hour)
	_, err = s.service.Complete(s.asParty(con.TenantID, completedAt), session.ID)
	s.Require().NoError(err)

	view, err := s.service.Status(s.asParty(con.GuarantorID, completedAt), con.ID)
	s.Require().NoError(err)

	s.Equal(con.ID, view.ContractID)
	s.Equal(con.ContractNumber, view.ContractNumber)
	s.Equal(contract.StatusPendingGuarantorBiometric, view.CurrentPhase)
	s.Equal(33, view.ProgressPercent)
	s.Equal(id.RoleGuarantor, view.NextRequiredRole)

	tenant := view.Roles[id.RoleTenant]
	s.True(tenant.Required)
	s.True(tenant.Completed)
	s.Require().NotNil(tenant.CompletedAt)
	s.Equal(completedAt, *tenant.CompletedAt)

	s.False(view.Roles[id.RoleGuarantor].Completed)
	s.False(view.Roles[id.RoleLandlord].Completed)
}

func (s *ServiceSuite) TestStatusOmitsGuarantorWhenAbsent() {
	con := s.newContract(false, contract.StatusReadyForAuthentication)

	view, err := s.service.Status(s.asParty(con.TenantID, s.base), con.ID)
	s.Require().NoError(err)

	s.False(view.Roles[id.RoleGuarantor].Required)
	s.True(view.Roles[id.RoleTenant].Required)
	s.True(view.Roles[id.RoleLandlord].Required)
}

func (s *ServiceSuite) TestStatusReportsActiveAsFullProgress() {
	s.tune(0.72, 0.72, 0.6, 0.2)
	con := s.newContract(false, contract.StatusPendingLandlordBiometric)
	ctx := s.asParty(con.LandlordID, s.base)

	session, _, err := s.service.Start(ctx, con.ID)
	s.Require().NoError(err)
	s.submitAll(ctx, session.ID, spokenPhrase)
	_, err = s.service.Complete(ctx, session.ID)
	s.Require().NoError(err)

	view, err := s.service.Status(ctx, con.ID)
	s.Require().NoError(err)

	s.Equal(contract.StatusActive, view.CurrentPhase)
	s.Equal(100, view.ProgressPercent)
	s.Equal(id.Role(""), view.NextRequiredRole)
}

func (s *ServiceSuite) TestStatusRejectsNonParty() {
	con := s.newContract(false, contract.StatusReadyForAuthentication)

	_, err := s.service.Status(s.asParty(id.NewUserID(), s.base), con.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Len(s.security.byAction(audit.EventPartyRejected), 1)
}
