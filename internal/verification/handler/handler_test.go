package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"firmo/internal/contract"
	"firmo/internal/platform/ratelimit"
	"firmo/internal/verification"
	"firmo/internal/verification/handler/mocks"
	id "firmo/pkg/domain"
	dErrors "firmo/pkg/domain-errors"
	"firmo/pkg/platform/middleware/auth"
	"firmo/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/verification-mocks.go -package=mocks Service

// staticValidator accepts any bearer token and returns a fixed subject, so
// tests exercise the registered router including the auth middleware.
type staticValidator struct {
	userID string
}

func (v staticValidator) ValidateToken(string) (*auth.JWTClaims, error) {
	return &auth.JWTClaims{UserID: v.userID}, nil
}

type HandlerSuite struct {
	suite.Suite

	actor   id.UserID
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.T().Cleanup(ctrl.Finish)

	s.actor = id.NewUserID()
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(s.service, logger, nil, staticValidator{userID: s.actor.String()})
	s.router = chi.NewRouter()
	h.Register(s.router)
}

// do serves an authenticated JSON request through the full router.
func (s *HandlerSuite) do(method, target string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Authorization", "Bearer test-token")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var resp map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func (s *HandlerSuite) newSession(contractID id.ContractID) *verification.Session {
	now := time.Now()
	return verification.NewSession(contractID, s.actor, id.RoleTenant, now, "Chrome on macOS", "203.0.113.7")
}

func (s *HandlerSuite) TestStartCreatesSession() {
	contractID := id.NewContractID()
	session := s.newSession(contractID)

	s.service.EXPECT().
		Start(gomock.Any(), contractID).
		DoAndReturn(func(ctx context.Context, _ id.ContractID) (*verification.Session, bool, error) {
			s.Equal(s.actor, requestcontext.UserID(ctx))
			return session, true, nil
		})

	w := s.do(http.MethodPost, "/contracts/"+contractID.String()+"/verification/session", nil)

	s.Equal(http.StatusCreated, w.Code, w.Body.String())
	resp := s.decode(w)
	s.Equal(session.ID.String(), resp["id"])
	s.Equal(contractID.String(), resp["contract_id"])
	s.Equal("tenant", resp["role"])
	s.Equal("pending", resp["status"])
	s.Len(resp["missing_artifacts"], 5)
}

func (s *HandlerSuite) TestStartResumesSession() {
	contractID := id.NewContractID()
	session := s.newSession(contractID)

	s.service.EXPECT().Start(gomock.Any(), contractID).Return(session, false, nil)

	w := s.do(http.MethodPost, "/contracts/"+contractID.String()+"/verification/session", nil)

	s.Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal(session.ID.String(), s.decode(w)["id"])
}

func (s *HandlerSuite) TestStartRejectsMalformedContractID() {
	w := s.do(http.MethodPost, "/contracts/not-a-uuid/verification/session", nil)

	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("invalid_input", s.decode(w)["error"])
}

func (s *HandlerSuite) TestStartMapsConflict() {
	contractID := id.NewContractID()
	s.service.EXPECT().
		Start(gomock.Any(), contractID).
		Return(nil, false, dErrors.New(dErrors.CodeConflict, "it is the tenant's turn to verify"))

	w := s.do(http.MethodPost, "/contracts/"+contractID.String()+"/verification/session", nil)

	s.Equal(http.StatusConflict, w.Code)
	resp := s.decode(w)
	s.Equal("conflict", resp["error"])
	s.Contains(resp["error_description"], "tenant")
}

func (s *HandlerSuite) TestStartRequiresToken() {
	req := httptest.NewRequest(http.MethodPost, "/contracts/"+id.NewContractID().String()+"/verification/session", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlerSuite) TestSubmitStepDecodesMedia() {
	sessionID := id.NewSessionID()
	front := []byte("front-capture-bytes")
	side := []byte("side-capture-bytes")

	s.service.EXPECT().
		SubmitStep(gomock.Any(), sessionID, verification.StepFace, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ id.SessionID, _ verification.StepKind, payload verification.StepPayload) (*verification.StepResult, error) {
			s.Equal(front, payload.FaceFront)
			s.Equal(side, payload.FaceSide)
			s.Equal("image/jpeg", payload.ContentType)
			return &verification.StepResult{
				SessionID:     sessionID,
				Kind:          verification.StepFace,
				SessionStatus: verification.StatusInProgress,
				Score:         0.91,
			}, nil
		})

	w := s.do(http.MethodPost, "/verification/sessions/"+sessionID.String()+"/steps/face", StepRequest{
		FaceFront:   base64.StdEncoding.EncodeToString(front),
		FaceSide:    base64.StdEncoding.EncodeToString(side),
		ContentType: "image/jpeg",
	})

	s.Equal(http.StatusOK, w.Code, w.Body.String())
	resp := s.decode(w)
	s.Equal("face", resp["kind"])
	s.Equal("in_progress", resp["session_status"])
	s.InDelta(0.91, resp["score"], 1e-9)
}

func (s *HandlerSuite) TestSubmitStepPassesVoicePhrase() {
	sessionID := id.NewSessionID()
	audio := []byte("spoken-audio")

	s.service.EXPECT().
		SubmitStep(gomock.Any(), sessionID, verification.StepVoice, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ id.SessionID, _ verification.StepKind, payload verification.StepPayload) (*verification.StepResult, error) {
			s.Equal(audio, payload.Voice)
			s.Equal("my voice confirms this rental contract", payload.ExpectedPhrase)
			return &verification.StepResult{
				SessionID:     sessionID,
				Kind:          verification.StepVoice,
				SessionStatus: verification.StatusInProgress,
				Score:         0.8,
			}, nil
		})

	w := s.do(http.MethodPost, "/verification/sessions/"+sessionID.String()+"/steps/voice", StepRequest{
		Voice:          base64.StdEncoding.EncodeToString(audio),
		ExpectedPhrase: "  my voice confirms this rental contract ",
	})

	s.Equal(http.StatusOK, w.Code, w.Body.String())
}

func (s *HandlerSuite) TestSubmitStepRejectsBadBase64() {
	sessionID := id.NewSessionID()

	w := s.do(http.MethodPost, "/verification/sessions/"+sessionID.String()+"/steps/document", StepRequest{
		Document: "%%% not base64 %%%",
	})

	s.Equal(http.StatusBadRequest, w.Code)
	resp := s.decode(w)
	s.Equal("validation_error", resp["error"])
	s.Contains(resp["error_description"], "document")
}

func (s *HandlerSuite) TestSubmitStepRejectsUnknownKind() {
	sessionID := id.NewSessionID()

	w := s.do(http.MethodPost, "/verification/sessions/"+sessionID.String()+"/steps/retina", StepRequest{})

	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("bad_request", s.decode(w)["error"])
}

func (s *HandlerSuite) TestCompleteReturnsVerdict() {
	sessionID := id.NewSessionID()
	completedAt := time.Now().Truncate(time.Second)

	s.service.EXPECT().Complete(gomock.Any(), sessionID).Return(&verification.CompletionResult{
		SessionID:         sessionID,
		Outcome:           verification.OutcomeCompleted,
		OverallConfidence: 0.8333,
		FaceScore:         0.9,
		DocumentScore:     0.85,
		VoiceScore:        0.75,
		CombinedScore:     0.9,
		ContractPhase:     contract.StatusPendingLandlordBiometric,
		NextRequiredRole:  id.RoleLandlord,
		CompletedAt:       completedAt,
	}, nil)

	w := s.do(http.MethodPost, "/verification/sessions/"+sessionID.String()+"/complete", nil)

	s.Equal(http.StatusOK, w.Code, w.Body.String())
	resp := s.decode(w)
	s.Equal("completed", resp["outcome"])
	s.InDelta(0.8333, resp["overall_confidence"], 1e-9)
	scores := resp["scores"].(map[string]any)
	s.InDelta(0.9, scores["face"], 1e-9)
	s.InDelta(0.85, scores["document"], 1e-9)
	s.InDelta(0.75, scores["voice"], 1e-9)
	s.Equal(string(contract.StatusPendingLandlordBiometric), resp["contract_phase"])
	s.Equal("landlord", resp["next_required_role"])
	s.Equal(false, resp["activated"])
}

func (s *HandlerSuite) TestCompleteFailedVerdictIsStillOK() {
	sessionID := id.NewSessionID()

	s.service.EXPECT().Complete(gomock.Any(), sessionID).Return(&verification.CompletionResult{
		SessionID:         sessionID,
		Outcome:           verification.OutcomeFailed,
		OverallConfidence: 0.6,
		ContractPhase:     contract.StatusPendingTenantBiometric,
		NextRequiredRole:  id.RoleTenant,
		CompletedAt:       time.Now(),
	}, nil)

	w := s.do(http.MethodPost, "/verification/sessions/"+sessionID.String()+"/complete", nil)

	s.Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("failed", s.decode(w)["outcome"])
}

func (s *HandlerSuite) TestCompleteMapsIncompleteSession() {
	sessionID := id.NewSessionID()

	s.service.EXPECT().Complete(gomock.Any(), sessionID).
		Return(nil, dErrors.New(dErrors.CodeValidation, "incomplete session: missing voice"))

	w := s.do(http.MethodPost, "/verification/sessions/"+sessionID.String()+"/complete", nil)

	s.Equal(http.StatusBadRequest, w.Code)
	resp := s.decode(w)
	s.Equal("validation_error", resp["error"])
	s.Contains(resp["error_description"], "voice")
}

func (s *HandlerSuite) TestStatusProjectsRoles() {
	contractID := id.NewContractID()
	completedAt := time.Now()

	s.service.EXPECT().Status(gomock.Any(), contractID).Return(&verification.StatusView{
		ContractID:      contractID,
		ContractNumber:  "CT-2025-000042",
		CurrentPhase:    contract.StatusPendingLandlordBiometric,
		ProgressPercent: 50,
		Roles: map[id.Role]verification.RoleStatus{
			id.RoleTenant:    {Required: true, Completed: true, CompletedAt: &completedAt},
			id.RoleGuarantor: {Required: false},
			id.RoleLandlord:  {Required: true},
		},
		NextRequiredRole: id.RoleLandlord,
	}, nil)

	w := s.do(http.MethodGet, "/contracts/"+contractID.String()+"/verification/status", nil)

	s.Equal(http.StatusOK, w.Code, w.Body.String())
	resp := s.decode(w)
	s.Equal("CT-2025-000042", resp["contract_number"])
	s.InDelta(50, resp["progress_percent"], 1e-9)
	roles := resp["roles"].(map[string]any)
	tenant := roles["tenant"].(map[string]any)
	s.Equal(true, tenant["completed"])
	guarantor := roles["guarantor"].(map[string]any)
	s.Equal(false, guarantor["required"])
	s.Equal("landlord", resp["next_required_role"])
}

func (s *HandlerSuite) TestStatusMapsForbidden() {
	contractID := id.NewContractID()

	s.service.EXPECT().Status(gomock.Any(), contractID).
		Return(nil, dErrors.New(dErrors.CodeForbidden, "user is not a party to this contract"))

	w := s.do(http.MethodGet, "/contracts/"+contractID.String()+"/verification/status", nil)

	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("forbidden", s.decode(w)["error"])
}

func (s *HandlerSuite) TestRateLimitOptionThrottlesRoutes() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.service, logger, nil, staticValidator{userID: s.actor.String()},
		WithRateLimit(ratelimit.New(1, time.Minute)))
	limited := chi.NewRouter()
	h.Register(limited)

	contractID := id.NewContractID()
	s.service.EXPECT().Status(gomock.Any(), contractID).
		Return(&verification.StatusView{ContractID: contractID}, nil)

	target := "/contracts/" + contractID.String() + "/verification/status"
	req := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, target, nil)
		r.Header.Set("Authorization", "Bearer test-token")
		w := httptest.NewRecorder()
		limited.ServeHTTP(w, r)
		return w
	}

	s.Equal(http.StatusOK, req().Code)

	w := req()
	s.Equal(http.StatusTooManyRequests, w.Code)
	s.NotEmpty(w.Header().Get("Retry-After"))
	s.Equal("rate_limit_exceeded", s.decode(w)["error"])
}
