// Package roles resolves the acting principal's effective roles for a
// transition attempt. Base roles come from the identity collaborator; this
// package adds the contextual roles that only make sense against a concrete
// record snapshot. Resolution is a pure function and is evaluated per attempt,
// never cached.
package roles

import "procureflow/internal/workflow/models"

// RoleSet is the effective role set for one (actor, snapshot) pair.
type RoleSet map[models.Role]struct{}

// Has reports whether the set contains the given role.
func (s RoleSet) Has(role models.Role) bool {
	_, ok := s[role]
	return ok
}

// Resolver derives effective roles from an actor and a record snapshot.
type Resolver struct{}

// NewResolver returns the default resolver.
func NewResolver() *Resolver { return &Resolver{} }

// Resolve returns the actor's effective roles against the snapshot:
//
//   - every base role carried by the actor
//   - requester, when the actor created the record
//   - approver, when the actor's ID appears in the record's assigned
//     approver list, or the actor holds senior_manager (a business-request
//     rule: senior managers may approve without being individually assigned)
func (r *Resolver) Resolve(actor models.Actor, record *models.Record) RoleSet {
	set := make(RoleSet, len(actor.Roles)+2)
	for _, role := range actor.Roles {
		set[role] = struct{}{}
	}

	if record == nil {
		return set
	}

	if record.CreatedBy != "" && record.CreatedBy == actor.ID {
		set[models.RoleRequester] = struct{}{}
	}

	if record.Type == models.RecordTypeBusinessRequest {
		if record.IsAssignedApprover(actor.ID) || actor.HasBaseRole(models.RoleSeniorManager) {
			set[models.RoleApprover] = struct{}{}
		}
	}

	return set
}
