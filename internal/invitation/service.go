package invitation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"firmo/internal/invitation/secrets"
	id "firmo/pkg/domain"
	dErrors "firmo/pkg/domain-errors"
	"firmo/pkg/email"
	"firmo/pkg/platform/audit"
	"firmo/pkg/platform/sentinel"
	"firmo/pkg/requestcontext"
)

// TemplateInvitation is the notification template carrying the invitation
// token to the invitee.
const TemplateInvitation = "verification_invitation"

// ActiveIndex is the optional fast-path dedupe for the one-active-invitation
// rule. The store-level uniqueness check remains authoritative.
type ActiveIndex interface {
	Claim(ctx context.Context, contractID id.ContractID, email string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, contractID id.ContractID, email string) error
}

// Notifier delivers the invitation to the invitee.
type Notifier interface {
	Send(ctx context.Context, recipient, template string, payload map[string]any) error
}

// CompliancePublisher records invitation creation for the audit trail.
type CompliancePublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// SecurityPublisher records rejected redemption attempts.
type SecurityPublisher interface {
	Emit(ctx context.Context, event audit.SecurityEvent)
}

// OpsTracker records routine delivery activity.
type OpsTracker interface {
	Track(ctx context.Context, event audit.OpsEvent)
}

// Service owns the invitation lifecycle: creation with the one-active rule,
// delivery, and token redemption.
type Service struct {
	store      Store
	index      ActiveIndex
	notifier   Notifier
	compliance CompliancePublisher
	security   SecurityPublisher
	ops        OpsTracker
	logger     *slog.Logger
}

type Option func(*Service)

func WithActiveIndex(index ActiveIndex) Option {
	return func(s *Service) { s.index = index }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
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

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest carries everything needed to create one invitation.
type CreateRequest struct {
	ContractID id.ContractID
	InviterID  id.UserID
	Email      string
	Role       id.Role
	Message    string
}

// Create makes an invitation for the pair, or returns the one already
// active: at most one active invitation exists per (contract, invitee
// email). The plaintext token is returned only when this call created the
// invitation; resumed invitations return an empty token.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Invitation, string, error) {
	addr := strings.ToLower(strings.TrimSpace(req.Email))
	if addr == "" || !strings.Contains(addr, "@") {
		return nil, "", dErrors.New(dErrors.CodeValidation, "a valid invitee email is required")
	}
	if !req.Role.IsValid() {
		return nil, "", dErrors.New(dErrors.CodeValidation, "invalid invitee role")
	}
	if req.ContractID.IsNil() {
		return nil, "", dErrors.New(dErrors.CodeValidation, "contract id is required")
	}
	now := requestcontext.Now(ctx)

	// Fast path: the Redis slot answers "already invited" without touching
	// the store. Index failures never block creation.
	if s.index != nil {
		won, err := s.index.Claim(ctx, req.ContractID, addr, InvitationTTL)
		if err != nil {
			s.logger.WarnContext(ctx, "invitation index unavailable",
				"request_id", requestcontext.RequestID(ctx),
				"contract_id", req.ContractID,
				"error", err,
			)
		} else if !won {
			if existing, err := s.store.FindActive(ctx, req.ContractID, addr, now); err == nil {
				return existing, "", nil
			}
			// Stale marker; the store decides below.
		}
	}

	if existing, err := s.store.FindActive(ctx, req.ContractID, addr, now); err == nil {
		return existing, "", nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check active invitations")
	}

	token, err := secrets.GenerateToken()
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate invitation token")
	}
	hash, err := secrets.HashToken(token)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash invitation token")
	}

	inv := NewInvitation(req.ContractID, req.InviterID, addr, req.Role, req.Message, hash, now)
	if err := s.store.Create(ctx, inv); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost the create race; the winner's invitation holds the slot.
			if existing, ferr := s.store.FindActive(ctx, req.ContractID, addr, now); ferr == nil {
				return existing, "", nil
			}
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to create invitation")
	}

	if s.compliance != nil {
		if err := s.compliance.Emit(ctx, audit.ComplianceEvent{
			UserID:     req.InviterID,
			ContractID: req.ContractID.String(),
			Role:       req.Role.String(),
			Subject:    inv.ID.String(),
			Action:     string(audit.EventInvitationCreated),
			Decision:   string(inv.Status),
			Email:      addr,
			RequestID:  requestcontext.RequestID(ctx),
		}); err != nil {
			s.logger.ErrorContext(ctx, "invitation audit record failed",
				"request_id", requestcontext.RequestID(ctx),
				"invitation_id", inv.ID,
				"error", err,
			)
		}
	}

	s.deliver(ctx, inv, token)

	s.logger.InfoContext(ctx, "invitation created",
		"request_id", requestcontext.RequestID(ctx),
		"invitation_id", inv.ID,
		"contract_id", inv.ContractID,
		"role", inv.Role,
		"expires_at", inv.ExpiresAt,
	)
	return inv, token, nil
}

// deliver hands the invitation to the notifier. Delivery failure leaves the
// invitation pending; the token is still valid and a later resend can pick
// it up.
func (s *Service) deliver(ctx context.Context, inv *Invitation, token string) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Send(ctx, inv.InviteeEmail, TemplateInvitation, map[string]any{
		"invitation_id": inv.ID.String(),
		"first_name":    email.GreetingName(inv.InviteeEmail),
		"role":          inv.Role.String(),
		"message":       inv.Message,
		"token":         token,
		"expires_at":    inv.ExpiresAt,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "invitation delivery failed",
			"request_id", requestcontext.RequestID(ctx),
			"invitation_id", inv.ID,
			"error", err,
		)
		return
	}

	inv.Status = StatusSent
	if err := s.store.Update(ctx, inv); err != nil {
		s.logger.WarnContext(ctx, "failed to mark invitation sent",
			"request_id", requestcontext.RequestID(ctx),
			"invitation_id", inv.ID,
			"error", err,
		)
	}
	if s.ops != nil {
		s.ops.Track(ctx, audit.OpsEvent{
			Subject:   inv.ID.String(),
			Action:    string(audit.EventInvitationSent),
			RequestID: requestcontext.RequestID(ctx),
		})
	}
}

// Accept redeems the invitation token. Accepting an already accepted
// invitation is idempotent; a wrong token is a security event.
func (s *Service) Accept(ctx context.Context, invitationID id.InvitationID, token string) (*Invitation, error) {
	now := requestcontext.Now(ctx)

	inv, err := s.store.FindByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "invitation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load invitation")
	}

	if err := secrets.VerifyToken(token, inv.TokenHash); err != nil {
		if s.security != nil {
			s.security.Emit(ctx, audit.SecurityEvent{
				Subject:   inv.ID.String(),
				Action:    string(audit.EventPartyRejected),
				Reason:    "invalid invitation token",
				IP:        requestcontext.ClientIP(ctx),
				RequestID: requestcontext.RequestID(ctx),
				ActorID:   actorID(ctx),
				Severity:  audit.SeverityWarning,
			})
		}
		return nil, dErrors.New(dErrors.CodeForbidden, "invalid invitation token")
	}

	// Acceptance is final: a replay with the right token returns the same
	// invitation, even past its expiry.
	if inv.Status == StatusAccepted {
		return inv, nil
	}
	if inv.Expired(now) {
		return nil, dErrors.New(dErrors.CodeConflict, "invitation expired")
	}

	inv.Status = StatusAccepted
	inv.AcceptedAt = &now
	if err := s.store.Update(ctx, inv); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update invitation")
	}

	if s.index != nil {
		if err := s.index.Release(ctx, inv.ContractID, inv.InviteeEmail); err != nil {
			s.logger.WarnContext(ctx, "failed to release invitation slot",
				"request_id", requestcontext.RequestID(ctx),
				"invitation_id", inv.ID,
				"error", err,
			)
		}
	}

	s.logger.InfoContext(ctx, "invitation accepted",
		"request_id", requestcontext.RequestID(ctx),
		"invitation_id", inv.ID,
		"contract_id", inv.ContractID,
		"role", inv.Role,
	)
	return inv, nil
}

func actorID(ctx context.Context) string {
	if actor := requestcontext.UserID(ctx); !actor.IsNil() {
		return actor.String()
	}
	return ""
}
