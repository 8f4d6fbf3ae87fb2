// Package progression advances a contract through its biometric phases when
// a party completes verification. The ordering is fixed: tenant, then
// guarantor when the contract has one, then landlord, then active. The whole
// transition table is data, not control flow, so every row can be read and
// tested on its own.
package progression

import (
	"firmo/internal/contract"
	"firmo/internal/workflow"
	id "firmo/pkg/domain"
)

// GuarantorCondition narrows a rule to contracts with or without a guarantor.
type GuarantorCondition int

const (
	GuarantorAny GuarantorCondition = iota
	GuarantorPresent
	GuarantorAbsent
)

// Rule maps a (current phase, completing role, guarantor condition) triple to
// the next contract phase and its workflow mirror.
type Rule struct {
	Phase     contract.Status
	Role      id.Role
	Guarantor GuarantorCondition

	Next      contract.Status
	Workflow  workflow.Status
	Activates bool
}

// preSplit lists the statuses a contract may hold before the first party
// completes: the generic pre-authentication statuses plus the explicit
// tenant phase. All three behave identically for the tenant's completion.
var preSplit = []contract.Status{
	contract.StatusReadyForAuthentication,
	contract.StatusPendingAuthentication,
	contract.StatusPendingTenantBiometric,
}

// Table is the full progression rule set. Order matters only for reading;
// at most one row matches any (phase, role, guarantor) input.
var Table = buildTable()

func buildTable() []Rule {
	var rules []Rule
	for _, phase := range preSplit {
		rules = append(rules,
			Rule{
				Phase: phase, Role: id.RoleTenant, Guarantor: GuarantorPresent,
				Next: contract.StatusPendingGuarantorBiometric, Workflow: workflow.StatusPendingGuarantor,
			},
			Rule{
				Phase: phase, Role: id.RoleTenant, Guarantor: GuarantorAbsent,
				Next: contract.StatusPendingLandlordBiometric, Workflow: workflow.StatusPendingLandlord,
			},
		)
	}
	rules = append(rules,
		Rule{
			Phase: contract.StatusPendingGuarantorBiometric, Role: id.RoleGuarantor, Guarantor: GuarantorPresent,
			Next: contract.StatusPendingLandlordBiometric, Workflow: workflow.StatusPendingLandlord,
		},
		Rule{
			Phase: contract.StatusPendingLandlordBiometric, Role: id.RoleLandlord, Guarantor: GuarantorAny,
			Next: contract.StatusActive, Workflow: workflow.StatusCompleted, Activates: true,
		},
	)
	return rules
}

// FailSafePhase is where a contract is parked when no rule matches, so an
// unexpected (phase, role) pair can never strand it in a biometric phase.
const FailSafePhase = contract.StatusAuthenticatedPendingSignature

// Resolve finds the rule for a completion event. The boolean is false when
// no rule matches; the caller decides whether to apply the fail-safe phase.
func Resolve(phase contract.Status, role id.Role, hasGuarantor bool) (Rule, bool) {
	for _, rule := range Table {
		if rule.Phase != phase || rule.Role != role {
			continue
		}
		switch rule.Guarantor {
		case GuarantorPresent:
			if !hasGuarantor {
				continue
			}
		case GuarantorAbsent:
			if hasGuarantor {
				continue
			}
		}
		return rule, true
	}
	return Rule{}, false
}
