package audit

import (
	"time"

	id "firmo/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention (e.g., 7 years).
	// Examples: verification outcomes, contract activation, invitations.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring and forensics.
	// These feed into SIEM systems and alerting pipelines.
	// Examples: rejected verification attempts by non-parties.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational visibility.
	// These can be sampled or aggregated with shorter retention.
	// Examples: session starts, step submissions, status reads.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out. It is the union of
// the category-specific event types below; publishers convert before
// handing it to a store.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	Subject   string
	Action    string
	// ContractID ties the event to the rental contract it concerns.
	ContractID string
	// SessionID identifies the verification session, when one is involved.
	SessionID string
	// Role is the contract role of the party the event concerns.
	Role     string
	Decision string
	Reason   string
	// Confidence carries the overall verification confidence for
	// completion events.
	Confidence float64
	// IntegrityHash is the session integrity hash at completion time, kept
	// so the audit trail can be checked against later tampering.
	IntegrityHash string
	// Email is the invitee address for invitation events.
	Email string
	// IP is the client address for security events.
	IP string
	// Severity routes security events inside SIEM pipelines.
	Severity  string
	RequestID string
	// ActorID tracks who performed the action when different from UserID.
	ActorID string
}

type AuditEvent string

const (
	// Verification session events
	EventSessionStarted   AuditEvent = "verification_session_started"
	EventStepSubmitted    AuditEvent = "verification_step_submitted"
	EventSessionCompleted AuditEvent = "verification_session_completed"
	EventSessionFailed    AuditEvent = "verification_session_failed"
	EventStatusQueried    AuditEvent = "verification_status_queried"

	// Contract lifecycle events
	EventContractActivated AuditEvent = "contract_activated"
	EventFailSafeApplied   AuditEvent = "contract_failsafe_applied"

	// Invitation events
	EventInvitationCreated AuditEvent = "invitation_created"
	EventInvitationSent    AuditEvent = "invitation_sent"

	// Rejected attempts
	EventPartyRejected AuditEvent = "verification_party_rejected"
	EventStateRejected AuditEvent = "verification_state_rejected"
)

// eventCategories maps each audit event to its category.
// Compliance: legal/regulatory significance, long retention required.
// Security: security monitoring, SIEM integration, alerting.
// Operations: debugging, operational visibility, can be sampled.
var eventCategories = map[AuditEvent]EventCategory{
	// Compliance events - require tamper-proof storage
	EventSessionCompleted:  CategoryCompliance,
	EventSessionFailed:     CategoryCompliance,
	EventContractActivated: CategoryCompliance,
	EventFailSafeApplied:   CategoryCompliance,
	EventInvitationCreated: CategoryCompliance,

	// Security events - feed into SIEM and alerting
	EventPartyRejected: CategorySecurity,
	EventStateRejected: CategorySecurity,

	// Operations events - routine activity, can be sampled
	EventSessionStarted: CategoryOperations,
	EventStepSubmitted:  CategoryOperations,
	EventInvitationSent: CategoryOperations,
	EventStatusQueried:  CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// -----------------------------------------------------------------------------
// Right-sized event types for tri-publisher architecture
// -----------------------------------------------------------------------------

// ComplianceEvent captures regulatory-significant actions requiring guaranteed
// persistence: verification outcomes, contract activation, invitations.
// Use with the compliance publisher for fail-closed semantics.
type ComplianceEvent struct {
	Timestamp     time.Time // When the event occurred (set automatically if zero)
	UserID        id.UserID // The party affected (required)
	ContractID    string    // The rental contract involved (required)
	SessionID     string    // Verification session, when one is involved
	Role          string    // Contract role of the party
	Subject       string    // Human-readable subject (contract number)
	Action        string    // The action taken (e.g., "verification_session_completed")
	Decision      string    // Outcome of the action (e.g., "completed", "activated")
	Confidence    float64   // Overall verification confidence for completion events
	IntegrityHash string    // Session integrity hash at completion time
	Email         string    // Invitee address for invitation events
	RequestID     string    // Correlation ID for request tracing
	ActorID       string    // Actor when different from UserID
}

// Category returns CategoryCompliance (always).
func (e ComplianceEvent) Category() EventCategory { return CategoryCompliance }

// ToEvent converts to the transport-agnostic Event for store fan-out.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:      CategoryCompliance,
		Timestamp:     e.Timestamp,
		UserID:        e.UserID,
		ContractID:    e.ContractID,
		SessionID:     e.SessionID,
		Role:          e.Role,
		Subject:       e.Subject,
		Action:        e.Action,
		Decision:      e.Decision,
		Confidence:    e.Confidence,
		IntegrityHash: e.IntegrityHash,
		Email:         e.Email,
		RequestID:     e.RequestID,
		ActorID:       e.ActorID,
	}
}

// SecurityEvent captures security-relevant actions for SIEM and alerting.
// Events are processed asynchronously with buffering; under pressure the
// oldest events are dropped first.
type SecurityEvent struct {
	Timestamp time.Time // When the event occurred (set automatically if zero)
	Subject   string    // Entity involved (contract ID, user ID, IP)
	Action    string    // Security action (e.g., "verification_party_rejected")
	Reason    string    // Why this happened (e.g., "not a contract party")
	IP        string    // Client IP address (critical for security forensics)
	RequestID string    // Correlation ID
	ActorID   string    // Actor if different from subject
	Severity  Severity  // "info", "warning", "critical" for SIEM routing
}

// Severity levels for security events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Category returns CategorySecurity (always).
func (e SecurityEvent) Category() EventCategory { return CategorySecurity }

// ToEvent converts to the transport-agnostic Event for store fan-out.
func (e SecurityEvent) ToEvent() Event {
	return Event{
		Category:  CategorySecurity,
		Timestamp: e.Timestamp,
		Subject:   e.Subject,
		Action:    e.Action,
		Reason:    e.Reason,
		IP:        e.IP,
		Severity:  string(e.Severity),
		RequestID: e.RequestID,
		ActorID:   e.ActorID,
	}
}

// OpsEvent captures operational events with minimal overhead.
// Events are fire-and-forget with optional sampling.
type OpsEvent struct {
	Timestamp time.Time // When the event occurred (set automatically if zero)
	Subject   string    // Entity involved
	Action    string    // Operational action (e.g., "verification_step_submitted")
	RequestID string    // Correlation ID
}

// Category returns CategoryOperations (always).
func (e OpsEvent) Category() EventCategory { return CategoryOperations }

// ToEvent converts to the transport-agnostic Event for store fan-out.
func (e OpsEvent) ToEvent() Event {
	return Event{
		Category:  CategoryOperations,
		Timestamp: e.Timestamp,
		Subject:   e.Subject,
		Action:    e.Action,
		RequestID: e.RequestID,
	}
}
