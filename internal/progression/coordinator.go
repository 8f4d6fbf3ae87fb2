package progression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"firmo/internal/contract"
	"firmo/internal/progression/metrics"
	"firmo/internal/workflow"
	id "firmo/pkg/domain"
	"firmo/pkg/platform/sentinel"
	"firmo/pkg/requestcontext"
)

// Result reports what a progression step decided. FailSafe carries the
// decision back to the caller instead of hiding it behind a catch-all: the
// coordinator never force-writes on an unmatched pair, the caller applies
// the fail-safe phase as its own tested branch.
type Result struct {
	NextPhase      contract.Status
	WorkflowStatus workflow.Status
	Activated      bool
	FailSafe       bool
	Reason         string
}

// Coordinator applies the progression table to the contract and its workflow
// mirror. Both writes happen through the context's transaction; callers run
// Advance inside the same transaction as the session mutation that triggered
// it.
type Coordinator struct {
	contracts contract.Store
	workflows workflow.Store
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func New(contracts contract.Store, workflows workflow.Store, logger *slog.Logger, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		contracts: contracts,
		workflows: workflows,
		logger:    logger,
		metrics:   m,
	}
}

// Advance resolves the rule for the completing role and, when one matches,
// writes the next phase to the contract, mirrors it on the workflow, and
// appends the role's entry to the biometric progress map. When no rule
// matches, nothing is written: the Result reports FailSafe with the reason
// and the proposed landing phase.
func (c *Coordinator) Advance(ctx context.Context, con *contract.Contract, role id.Role, completedAt time.Time) (Result, error) {
	rule, ok := Resolve(con.Status, role, con.HasGuarantor())
	if !ok {
		reason := fmt.Sprintf("no progression rule for phase %q and role %q", con.Status, role)
		c.logger.WarnContext(ctx, "progression conflict",
			"request_id", requestcontext.RequestID(ctx),
			"contract_id", con.ID,
			"phase", con.Status,
			"role", role,
		)
		c.metrics.IncConflict(string(con.Status), role.String())
		return Result{
			NextPhase:      FailSafePhase,
			WorkflowStatus: workflow.StatusHeld,
			FailSafe:       true,
			Reason:         reason,
		}, nil
	}

	if err := c.contracts.UpdateStatus(ctx, con.ID, rule.Next, completedAt); err != nil {
		return Result{}, fmt.Errorf("advance contract %s to %s: %w", con.ID, rule.Next, err)
	}
	if err := c.mirrorWorkflow(ctx, con.PropertyID, rule.Workflow, role, completedAt); err != nil {
		return Result{}, err
	}

	c.logger.InfoContext(ctx, "contract progressed",
		"request_id", requestcontext.RequestID(ctx),
		"contract_id", con.ID,
		"role", role,
		"from_phase", con.Status,
		"to_phase", rule.Next,
		"activated", rule.Activates,
	)
	c.metrics.IncAdvance(string(con.Status), role.String(), string(rule.Next))

	return Result{
		NextPhase:      rule.Next,
		WorkflowStatus: rule.Workflow,
		Activated:      rule.Activates,
	}, nil
}

// ApplyFailSafe parks the contract in the fail-safe phase and holds the
// workflow. Called by the owner of the completion operation, either in the
// same transaction after Advance reported an unmatched pair, or in a fresh
// one after the progression transaction failed.
func (c *Coordinator) ApplyFailSafe(ctx context.Context, con *contract.Contract, reason string, at time.Time) (Result, error) {
	if err := c.contracts.UpdateStatus(ctx, con.ID, FailSafePhase, at); err != nil {
		return Result{}, fmt.Errorf("apply fail-safe phase to contract %s: %w", con.ID, err)
	}
	if err := c.holdWorkflow(ctx, con.PropertyID, at); err != nil {
		return Result{}, err
	}

	c.logger.ErrorContext(ctx, "fail-safe phase applied",
		"request_id", requestcontext.RequestID(ctx),
		"contract_id", con.ID,
		"phase", FailSafePhase,
		"reason", reason,
	)
	c.metrics.IncFailSafe()

	return Result{
		NextPhase:      FailSafePhase,
		WorkflowStatus: workflow.StatusHeld,
		FailSafe:       true,
		Reason:         reason,
	}, nil
}

// NextRequiredRole names the party whose turn the current phase waits on.
func (c *Coordinator) NextRequiredRole(con *contract.Contract) (id.Role, bool) {
	return contract.RequiredRole(con.Status, con.HasGuarantor())
}

func (c *Coordinator) mirrorWorkflow(ctx context.Context, propertyID id.PropertyID, status workflow.Status, role id.Role, completedAt time.Time) error {
	w, err := c.loadOrCreate(ctx, propertyID)
	if err != nil {
		return err
	}
	w.Status = status
	w.AppendProgress(role, completedAt)
	w.UpdatedAt = completedAt
	if err := c.workflows.Save(ctx, w); err != nil {
		return fmt.Errorf("mirror workflow for property %s: %w", propertyID, err)
	}
	return nil
}

func (c *Coordinator) holdWorkflow(ctx context.Context, propertyID id.PropertyID, at time.Time) error {
	w, err := c.loadOrCreate(ctx, propertyID)
	if err != nil {
		return err
	}
	w.Status = workflow.StatusHeld
	w.UpdatedAt = at
	if err := c.workflows.Save(ctx, w); err != nil {
		return fmt.Errorf("hold workflow for property %s: %w", propertyID, err)
	}
	return nil
}

func (c *Coordinator) loadOrCreate(ctx context.Context, propertyID id.PropertyID) (*workflow.Workflow, error) {
	w, err := c.workflows.FindByProperty(ctx, propertyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return workflow.New(propertyID), nil
		}
		return nil, fmt.Errorf("load workflow for property %s: %w", propertyID, err)
	}
	return w, nil
}
