package verification

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"firmo/internal/verification/ports"
	id "firmo/pkg/domain"
	domainerrors "firmo/pkg/domain-errors"
)

// SessionTTL is the validity window for an incomplete session. Past it the
// session reads as expired and the next Start supersedes it.
const SessionTTL = 24 * time.Hour

// Status is the stored lifecycle state of a verification session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

// StepKind names one of the four capture submissions a party performs.
type StepKind string

const (
	StepFace     StepKind = "face"
	StepDocument StepKind = "document"
	StepCombined StepKind = "combined"
	StepVoice    StepKind = "voice"
)

// ParseStepKind validates a step kind from the request path.
func ParseStepKind(raw string) (StepKind, error) {
	switch StepKind(raw) {
	case StepFace, StepDocument, StepCombined, StepVoice:
		return StepKind(raw), nil
	}
	return "", domainerrors.New(domainerrors.CodeBadRequest, fmt.Sprintf("unknown step kind %q", raw))
}

// Artifact labels for the five stored captures. The face step stores two.
const (
	ArtifactFaceFront = "face_front"
	ArtifactFaceSide  = "face_side"
	ArtifactDocument  = "document"
	ArtifactCombined  = "combined"
	ArtifactVoice     = "voice"
)

// Analysis holds the analyzers' raw responses per channel, persisted
// alongside the computed scores so a review can see what the scores were
// derived from.
type Analysis struct {
	FaceFront      *ports.FaceAssessment     `json:"face_front,omitempty"`
	FaceSide       *ports.FaceAssessment     `json:"face_side,omitempty"`
	FaceComparison float64                   `json:"face_comparison,omitempty"`
	Document       *ports.DocumentAnalysis   `json:"document,omitempty"`
	Combined       *ports.CombinedAnalysis   `json:"combined,omitempty"`
	Voice          *ports.VoiceTranscription `json:"voice,omitempty"`
}

// Session is one party's biometric verification attempt on one contract.
// Sessions are never deleted: an expired one stays queryable and a new one
// supersedes it.
type Session struct {
	ID         id.SessionID
	ContractID id.ContractID
	PartyID    id.UserID
	Role       id.Role
	Status     Status

	FaceFrontKey string
	FaceSideKey  string
	DocumentKey  string
	CombinedKey  string
	VoiceKey     string

	Analysis Analysis

	FaceScore         float64
	DocumentScore     float64
	VoiceScore        float64
	CombinedScore     float64
	CoherenceFlag     bool
	OverallConfidence float64

	DeviceLabel string
	ClientIP    string

	CreatedAt   time.Time
	ExpiresAt   time.Time
	CompletedAt *time.Time

	IntegrityHash string
}

// NewSession creates a pending session for the party's turn.
func NewSession(contractID id.ContractID, partyID id.UserID, role id.Role, now time.Time, deviceLabel, clientIP string) *Session {
	return &Session{
		ID:          id.NewSessionID(),
		ContractID:  contractID,
		PartyID:     partyID,
		Role:        role,
		Status:      StatusPending,
		DeviceLabel: deviceLabel,
		ClientIP:    clientIP,
		CreatedAt:   now,
		ExpiresAt:   now.Add(SessionTTL),
	}
}

// Expired reports whether the validity window has passed.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Terminal reports whether the stored status can no longer change.
func (s *Session) Terminal() bool {
	switch s.Status {
	case StatusCompleted, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// EffectiveStatus is what a read should report: completed and failed are
// final, anything else past the window reads as expired even if the stored
// row was never touched again.
func (s *Session) EffectiveStatus(now time.Time) Status {
	if s.Status == StatusCompleted || s.Status == StatusFailed {
		return s.Status
	}
	if s.Expired(now) {
		return StatusExpired
	}
	return s.Status
}

// Active reports whether the session still accepts steps and completion.
func (s *Session) Active(now time.Time) bool {
	return !s.Terminal() && !s.Expired(now)
}

// ArtifactKey returns the stored blob keys for a step kind.
func (s *Session) ArtifactKey(kind StepKind) []string {
	switch kind {
	case StepFace:
		return []string{s.FaceFrontKey, s.FaceSideKey}
	case StepDocument:
		return []string{s.DocumentKey}
	case StepCombined:
		return []string{s.CombinedKey}
	case StepVoice:
		return []string{s.VoiceKey}
	}
	return nil
}

// MissingArtifacts names the captures still absent, in the fixed artifact
// order. Empty means the session is complete enough to score.
func (s *Session) MissingArtifacts() []string {
	var missing []string
	for _, a := range []struct {
		label string
		key   string
	}{
		{ArtifactFaceFront, s.FaceFrontKey},
		{ArtifactFaceSide, s.FaceSideKey},
		{ArtifactDocument, s.DocumentKey},
		{ArtifactCombined, s.CombinedKey},
		{ArtifactVoice, s.VoiceKey},
	} {
		if a.key == "" {
			missing = append(missing, a.label)
		}
	}
	return missing
}

// ComputeIntegrityHash binds the session identity and timestamps under the
// service key. Recomputed when CompletedAt is set.
func (s *Session) ComputeIntegrityHash(key []byte) string {
	completed := ""
	if s.CompletedAt != nil {
		completed = s.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s|%s|%s|%s|%s",
		s.ID, s.ContractID, s.PartyID,
		s.CreatedAt.UTC().Format(time.RFC3339Nano), completed)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyIntegrity checks the stored hash against a recomputation.
func (s *Session) VerifyIntegrity(key []byte) bool {
	expected := s.ComputeIntegrityHash(key)
	return hmac.Equal([]byte(expected), []byte(s.IntegrityHash))
}
