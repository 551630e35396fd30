package db

import (
	"context"

	"perfpulse/internal/analytics"
	"perfpulse/internal/types"
)

// MembershipRepository reads team membership for scope resolution. It
// implements analytics.MembershipReader.
type MembershipRepository struct {
	db DBTX
}

// NewMembershipRepository creates a MembershipRepository backed by the given
// database connection (pool or transaction).
func NewMembershipRepository(db DBTX) *MembershipRepository {
	return &MembershipRepository{db: db}
}

var _ analytics.MembershipReader = (*MembershipRepository)(nil)

// ListActiveTeamMembers returns the user IDs of the team's active members.
// A team with no active members returns an empty slice, not an error.
func (r *MembershipRepository) ListActiveTeamMembers(ctx context.Context, orgID, teamID string) ([]string, error) {
	query := `SELECT tm.user_id
		FROM team_memberships tm
		JOIN teams t ON t.id = tm.team_id
		WHERE t.organization_id = $1 AND tm.team_id = $2 AND tm.status = 'active'
		ORDER BY tm.user_id`

	rows, err := r.db.Query(ctx, query, orgID, teamID)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list team members", err)
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan team member", err)
		}
		members = append(members, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "membership row iteration failed", err)
	}
	return members, nil
}
