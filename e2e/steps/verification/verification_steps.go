package verification

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/cucumber/godog"
)

// voicePhrase is what each party is asked to read. The development analyzer
// transcribes the audio bytes verbatim, so sending the phrase itself yields a
// full transcript match.
const voicePhrase = "my voice confirms this rental agreement"

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	AuthenticateRole(role string) error
	ContractID() string
	SaveSessionID(role string) error
	SessionID(role string) (string, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers verification flow step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &verificationSteps{tc: tc}

	ctx.Step(`^I am authenticated as the "([^"]*)"$`, steps.authenticateAsRole)
	ctx.Step(`^I start a verification session$`, steps.startSession)
	ctx.Step(`^I start a verification session for contract "([^"]*)"$`, steps.startSessionForContract)
	ctx.Step(`^I save the verification session$`, steps.saveSession)
	ctx.Step(`^I submit a valid "([^"]*)" step$`, steps.submitValidStep)
	ctx.Step(`^I submit all verification steps$`, steps.submitAllSteps)
	ctx.Step(`^I submit a "([^"]*)" step without media$`, steps.submitStepWithoutMedia)
	ctx.Step(`^I complete the verification session$`, steps.completeSession)
	ctx.Step(`^I complete the session "([^"]*)"$`, steps.completeSessionByID)
	ctx.Step(`^I request the verification status$`, steps.requestStatus)
	ctx.Step(`^I request the verification status for contract "([^"]*)"$`, steps.requestStatusForContract)
}

type verificationSteps struct {
	tc TestContext

	// currentRole tracks who authenticated last, so step submissions address
	// that party's saved session.
	currentRole string
}

func (s *verificationSteps) authenticateAsRole(ctx context.Context, role string) error {
	if err := s.tc.AuthenticateRole(role); err != nil {
		return err
	}
	s.currentRole = role
	return nil
}

func (s *verificationSteps) startSession(ctx context.Context) error {
	return s.startSessionForContract(ctx, s.tc.ContractID())
}

func (s *verificationSteps) startSessionForContract(ctx context.Context, contractID string) error {
	return s.tc.POST("/contracts/"+contractID+"/verification/session", nil)
}

func (s *verificationSteps) saveSession(ctx context.Context) error {
	if s.currentRole == "" {
		return fmt.Errorf("no authenticated role to save the session for")
	}
	return s.tc.SaveSessionID(s.currentRole)
}

func (s *verificationSteps) submitValidStep(ctx context.Context, kind string) error {
	body, err := s.stepBody(kind)
	if err != nil {
		return err
	}
	return s.submit(kind, body)
}

func (s *verificationSteps) submitAllSteps(ctx context.Context) error {
	for _, kind := range []string{"face", "document", "combined", "voice"} {
		if err := s.submitValidStep(ctx, kind); err != nil {
			return err
		}
		if status := s.tc.GetLastResponseStatus(); status != 200 {
			return fmt.Errorf("%s step returned %d: %s",
				kind, status, s.tc.GetLastResponseBody())
		}
	}
	return nil
}

func (s *verificationSteps) submitStepWithoutMedia(ctx context.Context, kind string) error {
	return s.submit(kind, map[string]interface{}{})
}

func (s *verificationSteps) completeSession(ctx context.Context) error {
	sessionID, err := s.tc.SessionID(s.currentRole)
	if err != nil {
		return err
	}
	return s.completeSessionByID(ctx, sessionID)
}

func (s *verificationSteps) completeSessionByID(ctx context.Context, sessionID string) error {
	return s.tc.POST("/verification/sessions/"+sessionID+"/complete", nil)
}

func (s *verificationSteps) requestStatus(ctx context.Context) error {
	return s.requestStatusForContract(ctx, s.tc.ContractID())
}

func (s *verificationSteps) requestStatusForContract(ctx context.Context, contractID string) error {
	return s.tc.GET("/contracts/"+contractID+"/verification/status", nil)
}

func (s *verificationSteps) submit(kind string, body interface{}) error {
	sessionID, err := s.tc.SessionID(s.currentRole)
	if err != nil {
		return err
	}
	return s.tc.POST("/verification/sessions/"+sessionID+"/steps/"+kind, body)
}

// stepBody builds a passing payload for the step kind. Media bytes embed the
// role so each party's captures differ.
func (s *verificationSteps) stepBody(kind string) (map[string]interface{}, error) {
	switch kind {
	case "face":
		return map[string]interface{}{
			"face_front":   s.media("face front capture"),
			"face_side":    s.media("face side capture"),
			"content_type": "image/jpeg",
		}, nil
	case "document":
		return map[string]interface{}{
			"document":      s.media("identity document scan"),
			"declared_type": "passport",
			"content_type":  "image/jpeg",
		}, nil
	case "combined":
		return map[string]interface{}{
			"combined":     s.media("face and document together"),
			"content_type": "image/jpeg",
		}, nil
	case "voice":
		return map[string]interface{}{
			"voice":           base64.StdEncoding.EncodeToString([]byte(voicePhrase)),
			"expected_phrase": voicePhrase,
			"content_type":    "audio/wav",
		}, nil
	}
	return nil, fmt.Errorf("unknown step kind %q", kind)
}

func (s *verificationSteps) media(label string) string {
	return base64.StdEncoding.EncodeToString([]byte(s.currentRole + " " + label))
}
