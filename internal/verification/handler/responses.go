package handler

import (
	"time"

	"firmo/internal/verification"
)

// SessionResponse is the session view returned by session start.
type SessionResponse struct {
	ID               string    `json:"id"`
	ContractID       string    `json:"contract_id"`
	Role             string    `json:"role"`
	Status           string    `json:"status"`
	MissingArtifacts []string  `json:"missing_artifacts"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// FromSession converts a session to its HTTP view. The status is the
// effective one, so a lapsed window reads as expired.
func FromSession(s *verification.Session, now time.Time) *SessionResponse {
	return &SessionResponse{
		ID:               s.ID.String(),
		ContractID:       s.ContractID.String(),
		Role:             s.Role.String(),
		Status:           string(s.EffectiveStatus(now)),
		MissingArtifacts: s.MissingArtifacts(),
		CreatedAt:        s.CreatedAt,
		ExpiresAt:        s.ExpiresAt,
	}
}

// StepResponse is the HTTP response for a submitted step.
type StepResponse struct {
	SessionID        string  `json:"session_id"`
	Kind             string  `json:"kind"`
	SessionStatus    string  `json:"session_status"`
	Score            float64 `json:"score"`
	CoherenceFlagged bool    `json:"coherence_flagged,omitempty"`
}

// FromStepResult converts a step result to its HTTP response.
func FromStepResult(r *verification.StepResult) *StepResponse {
	return &StepResponse{
		SessionID:        r.SessionID.String(),
		Kind:             string(r.Kind),
		SessionStatus:    string(r.SessionStatus),
		Score:            r.Score,
		CoherenceFlagged: r.CoherenceFlag,
	}
}

// CompletionResponse is the HTTP response for a completion attempt. A failed
// verdict uses the same shape; the outcome field carries the difference.
type CompletionResponse struct {
	SessionID         string         `json:"session_id"`
	Outcome           string         `json:"outcome"`
	OverallConfidence float64        `json:"overall_confidence"`
	Scores            ScoreBreakdown `json:"scores"`
	CoherenceFlagged  bool           `json:"coherence_flagged,omitempty"`
	ContractPhase     string         `json:"contract_phase"`
	Activated         bool           `json:"activated"`
	NextRequiredRole  string         `json:"next_required_role,omitempty"`
	CompletedAt       time.Time      `json:"completed_at"`
}

// ScoreBreakdown is the per-channel score portion of the completion response.
type ScoreBreakdown struct {
	Face     float64 `json:"face"`
	Document float64 `json:"document"`
	Voice    float64 `json:"voice"`
	Combined float64 `json:"combined"`
}

// FromCompletionResult converts a completion verdict to its HTTP response.
func FromCompletionResult(r *verification.CompletionResult) *CompletionResponse {
	return &CompletionResponse{
		SessionID:         r.SessionID.String(),
		Outcome:           string(r.Outcome),
		OverallConfidence: r.OverallConfidence,
		Scores: ScoreBreakdown{
			Face:     r.FaceScore,
			Document: r.DocumentScore,
			Voice:    r.VoiceScore,
			Combined: r.CombinedScore,
		},
		CoherenceFlagged: r.CoherenceFlag,
		ContractPhase:    string(r.ContractPhase),
		Activated:        r.Activated,
		NextRequiredRole: r.NextRequiredRole.String(),
		CompletedAt:      r.CompletedAt,
	}
}

// StatusResponse is the HTTP response for the progress query.
type StatusResponse struct {
	ContractID       string                        `json:"contract_id"`
	ContractNumber   string                        `json:"contract_number"`
	CurrentPhase     string                        `json:"current_phase"`
	ProgressPercent  int                           `json:"progress_percent"`
	Roles            map[string]RoleStatusResponse `json:"roles"`
	NextRequiredRole string                        `json:"next_required_role,omitempty"`
}

// RoleStatusResponse is one role's entry in the status response.
type RoleStatusResponse struct {
	Required    bool       `json:"required"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// FromStatusView converts the progress projection to its HTTP response.
func FromStatusView(v *verification.StatusView) *StatusResponse {
	roles := make(map[string]RoleStatusResponse, len(v.Roles))
	for role, rs := range v.Roles {
		roles[role.String()] = RoleStatusResponse{
			Required:    rs.Required,
			Completed:   rs.Completed,
			CompletedAt: rs.CompletedAt,
		}
	}
	return &StatusResponse{
		ContractID:       v.ContractID.String(),
		ContractNumber:   v.ContractNumber,
		CurrentPhase:     string(v.CurrentPhase),
		ProgressPercent:  v.ProgressPercent,
		Roles:            roles,
		NextRequiredRole: v.NextRequiredRole.String(),
	}
}
