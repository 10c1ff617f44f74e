// Package definition holds the static per-record-type transition tables.
//
// Tables are defined at configuration time and validated at startup; after
// that they are read-only and safe to share across concurrent callers without
// locking. All authorization and sequencing rules live here, in one place,
// instead of being scattered across rendering conditionals.
package definition

import (
	"fmt"

	"procureflow/internal/workflow/models"
)

// Table is the compiled state graph for one record type.
type Table struct {
	RecordType  models.RecordType
	Initial     models.State
	Transitions []models.Transition

	index map[string]models.Transition
}

// compile builds the deterministic (from, action) lookup index.
// Fails on duplicate keys: for every (from_state, action) pair there must be
// at most one transition.
func (t *Table) compile() error {
	t.index = make(map[string]models.Transition, len(t.Transitions))
	for _, tr := range t.Transitions {
		key := tr.Key()
		if _, dup := t.index[key]; dup {
			return fmt.Errorf("%s: duplicate transition for (%s, %s)", t.RecordType, tr.From, tr.Action)
		}
		t.index[key] = tr
	}
	return nil
}

// validate enforces the structural invariants of a table:
//   - the initial state is draft
//   - every state is reachable from the initial state
//   - a state with a reopen edge is terminal: reopen is its only way out
func (t *Table) validate() error {
	if t.Initial != models.StateDraft {
		return fmt.Errorf("%s: initial state must be %q, got %q", t.RecordType, models.StateDraft, t.Initial)
	}
	if len(t.Transitions) == 0 {
		return fmt.Errorf("%s: transition table is empty", t.RecordType)
	}

	states := make(map[models.State]bool)
	outgoing := make(map[models.State][]models.Transition)
	for _, tr := range t.Transitions {
		states[tr.From] = true
		states[tr.To] = true
		outgoing[tr.From] = append(outgoing[tr.From], tr)
	}
	if !states[t.Initial] {
		return fmt.Errorf("%s: initial state %q has no transitions", t.RecordType, t.Initial)
	}

	// Reachability walk from the initial state. An unreachable state is a
	// configuration error, not a runtime condition.
	reached := map[models.State]bool{t.Initial: true}
	frontier := []models.State{t.Initial}
	for len(frontier) > 0 {
		s := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		for _, tr := range outgoing[s] {
			if !reached[tr.To] {
				reached[tr.To] = true
				frontier = append(frontier, tr.To)
			}
		}
	}
	for s := range states {
		if !reached[s] {
			return fmt.Errorf("%s: state %q is unreachable from %q", t.RecordType, s, t.Initial)
		}
	}

	for s, out := range outgoing {
		hasReopen := false
		for _, tr := range out {
			if tr.Action == models.ActionReopen {
				hasReopen = true
			}
		}
		if hasReopen && len(out) > 1 {
			return fmt.Errorf("%s: state %q mixes reopen with other outgoing transitions", t.RecordType, s)
		}
	}
	return nil
}

// Lookup returns the unique transition for (from, action), if defined.
func (t *Table) Lookup(from models.State, action models.Action) (models.Transition, bool) {
	tr, ok := t.index[string(from)+"/"+string(action)]
	return tr, ok
}

// From returns all transitions leaving the given state, in table order.
func (t *Table) From(state models.State) []models.Transition {
	var out []models.Transition
	for _, tr := range t.Transitions {
		if tr.From == state {
			out = append(out, tr)
		}
	}
	return out
}

// IsTerminal reports whether a state has no outgoing transitions other than
// an explicit reopen.
func (t *Table) IsTerminal(state models.State) bool {
	for _, tr := range t.Transitions {
		if tr.From == state && tr.Action != models.ActionReopen {
			return false
		}
	}
	return true
}

// Registry maps record types to their compiled tables.
type Registry struct {
	tables map[models.RecordType]*Table
}

// NewRegistry compiles and validates the given tables, failing fast on any
// configuration error so a bad graph never reaches request handling.
func NewRegistry(tables ...*Table) (*Registry, error) {
	r := &Registry{tables: make(map[models.RecordType]*Table, len(tables))}
	for _, t := range tables {
		if !t.RecordType.Valid() {
			return nil, fmt.Errorf("unknown record type %q", t.RecordType)
		}
		if _, dup := r.tables[t.RecordType]; dup {
			return nil, fmt.Errorf("duplicate table for record type %q", t.RecordType)
		}
		if err := t.compile(); err != nil {
			return nil, err
		}
		if err := t.validate(); err != nil {
			return nil, err
		}
		r.tables[t.RecordType] = t
	}
	return r, nil
}

// Table returns the table for a record type.
func (r *Registry) Table(recordType models.RecordType) (*Table, bool) {
	t, ok := r.tables[recordType]
	return t, ok
}

// Lookup resolves the unique transition for (recordType, from, action).
func (r *Registry) Lookup(recordType models.RecordType, from models.State, action models.Action) (models.Transition, bool) {
	t, ok := r.tables[recordType]
	if !ok {
		return models.Transition{}, false
	}
	return t.Lookup(from, action)
}
