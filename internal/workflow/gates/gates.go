// Package gates evaluates conditional prerequisites on transitions. A gate is
// a pure predicate over a record snapshot: it never creates, mutates, or
// deletes data. Gates are registered per (record_type, action) at startup;
// unregistered combinations always evaluate Clear.
package gates

import (
	"fmt"
	"sync"

	"procureflow/internal/workflow/models"
)

// Decision is the outcome of a gate evaluation.
type Decision struct {
	Blocked bool
	Reason  string
}

// Clear is the decision for an unblocked transition.
func Clear() Decision { return Decision{} }

// Blocked builds a blocking decision with a caller-visible reason.
func Blocked(reason string) Decision {
	return Decision{Blocked: true, Reason: reason}
}

// Gate is a registered prerequisite check.
type Gate interface {
	Name() string
	Evaluate(record *models.Record) (Decision, error)
}

// GateFunc adapts a function to the Gate interface.
type GateFunc struct {
	GateName string
	Fn       func(record *models.Record) (Decision, error)
}

func (g GateFunc) Name() string { return g.GateName }

func (g GateFunc) Evaluate(record *models.Record) (Decision, error) {
	return g.Fn(record)
}

// Evaluator holds the gate registry. Registration happens during startup;
// after that the registry is read-only and shared across concurrent callers.
type Evaluator struct {
	mu    sync.RWMutex
	gates map[string]Gate
}

// NewEvaluator returns an empty evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{gates: make(map[string]Gate)}
}

func key(recordType models.RecordType, action models.Action) string {
	return string(recordType) + "/" + string(action)
}

// Register installs a gate for (recordType, action). Registering twice for the
// same key is a configuration error.
func (e *Evaluator) Register(recordType models.RecordType, action models.Action, gate Gate) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	k := key(recordType, action)
	if _, dup := e.gates[k]; dup {
		return fmt.Errorf("gate already registered for (%s, %s)", recordType, action)
	}
	e.gates[k] = gate
	return nil
}

// Evaluate runs the gate registered for (recordType, action) against the
// snapshot. Unregistered combinations are Clear. An evaluation error is
// returned alongside a blocking decision so callers fail closed.
func (e *Evaluator) Evaluate(recordType models.RecordType, action models.Action, record *models.Record) (Decision, error) {
	e.mu.RLock()
	gate, ok := e.gates[key(recordType, action)]
	e.mu.RUnlock()
	if !ok {
		return Clear(), nil
	}

	decision, err := gate.Evaluate(record)
	if err != nil {
		return Blocked(fmt.Sprintf("gate %s evaluation failed", gate.Name())), err
	}
	return decision, nil
}

// RiskAcceptanceRequired is the standard high-risk gate: a high-risk record
// cannot pass final sign-off until a risk acceptance sub-record is attached.
// Attaching the acceptance (and changing nothing else) makes the same
// transition Clear on the next evaluation.
func RiskAcceptanceRequired() Gate {
	return GateFunc{
		GateName: "risk-acceptance-required",
		Fn: func(record *models.Record) (Decision, error) {
			if record.RiskLevel == models.RiskLevelHigh && !record.HasRiskAcceptance() {
				return Blocked("risk acceptance required"), nil
			}
			return Clear(), nil
		},
	}
}

// DefaultEvaluator registers the standard gates for the four governed record
// types. The payment authorization gate is expressed in CEL to keep its
// threshold logic configurable without recompiling.
func DefaultEvaluator() (*Evaluator, error) {
	e := NewEvaluator()

	if err := e.Register(models.RecordTypeVendorDD, models.ActionHopApproval, RiskAcceptanceRequired()); err != nil {
		return nil, err
	}
	if err := e.Register(models.RecordTypeVendorDD, models.ActionApproveWithConditions, RiskAcceptanceRequired()); err != nil {
		return nil, err
	}
	if err := e.Register(models.RecordTypeContract, models.ActionGovernanceApprove, RiskAcceptanceRequired()); err != nil {
		return nil, err
	}

	paymentGate, err := NewCELGate(
		"payment-risk-acceptance",
		`risk_level == "high" && !has_risk_acceptance`,
		"risk acceptance required",
	)
	if err != nil {
		return nil, err
	}
	if err := e.Register(models.RecordTypePaymentAuth, models.ActionAuthorize, paymentGate); err != nil {
		return nil, err
	}

	return e, nil
}
