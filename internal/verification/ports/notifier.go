package ports

import "context"

// Notifier delivers turn and outcome notifications to parties. Message
// content and channel mechanics are downstream concerns; the core only
// names a template and hands over the payload.
type Notifier interface {
	Send(ctx context.Context, recipient, template string, payload map[string]any) error
}

// Notification template names used by the verification flow.
const (
	TemplateTurnReady         = "verification_turn_ready"
	TemplateSessionCompleted  = "verification_session_completed"
	TemplateSessionFailed     = "verification_session_failed"
	TemplateContractActivated = "contract_activated"
)
