package analytics

import (
	"context"
	"fmt"

	"perfpulse/internal/types"
)

// MembershipReader provides the team membership lookups the scope resolver
// needs. Implemented by db.MembershipRepository.
type MembershipReader interface {
	// ListActiveTeamMembers returns the user IDs of all active members of the
	// team. An empty result is valid (a team with no active members).
	ListActiveTeamMembers(ctx context.Context, orgID, teamID string) ([]string, error)
}

// ScopeResolver expands an aggregation scope into the owner filter used by
// the aggregation engine. Resolution is a pure read with no side effects.
type ScopeResolver struct {
	memberships MembershipReader
}

// NewScopeResolver creates a ScopeResolver backed by the given membership
// reader.
func NewScopeResolver(memberships MembershipReader) *ScopeResolver {
	return &ScopeResolver{memberships: memberships}
}

// Resolve maps a (scope kind, entity id) pair to an OwnerFilter.
//
//   - user: a single-owner filter.
//   - team: the set of currently active member IDs; an empty team resolves
//     to an empty owner set, which produces an empty-result snapshot rather
//     than an error.
//   - department / business_unit: filtered by the owning user's attribute.
//   - organization: no filter beyond the organization ID.
//
// An unrecognized scope kind is a configuration error and fails fast.
func (r *ScopeResolver) Resolve(ctx context.Context, orgID string, kind types.ScopeKind, entityID string) (OwnerFilter, error) {
	switch kind {
	case types.ScopeUser:
		return OwnerFilter{OwnerIDs: []string{entityID}}, nil
	case types.ScopeTeam:
		members, err := r.memberships.ListActiveTeamMembers(ctx, orgID, entityID)
		if err != nil {
			return OwnerFilter{}, fmt.Errorf("resolving team %s members: %w", entityID, err)
		}
		if members == nil {
			members = []string{}
		}
		return OwnerFilter{OwnerIDs: members}, nil
	case types.ScopeDepartment:
		return OwnerFilter{Department: entityID}, nil
	case types.ScopeBusinessUnit:
		return OwnerFilter{BusinessUnit: entityID}, nil
	case types.ScopeOrganization:
		return OwnerFilter{}, nil
	default:
		return OwnerFilter{}, types.NewAppError(
			types.ErrCodeValidationScopeKind,
			fmt.Sprintf("unrecognized scope kind: %q", kind),
			nil,
		)
	}
}
