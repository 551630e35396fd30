package analytics

import "time"

// TemporalRule identifies which inclusion window a record query uses. The
// three rules are intentionally different per category and preserved from the
// original system's behavior: goals use an overlap window, reviews, feedback,
// and activity use a cumulative-to-period-end window (so "this week's total
// reviews" is "all reviews as of this week"), and performance scores use a
// true range window. Changing a category's rule changes reported totals.
type TemporalRule int

const (
	// TemporalOverlap includes records whose lifetime overlaps the period:
	// created on or before the period end AND (no due date OR due date on or
	// after the period start), OR completed within the period.
	TemporalOverlap TemporalRule = iota

	// TemporalCumulative includes every record created on or before the
	// period end, a point-in-time snapshot as of the period's close.
	TemporalCumulative

	// TemporalRange includes records whose effective date falls within
	// [period start, period end].
	TemporalRange
)

// String returns the rule's wire name.
func (r TemporalRule) String() string {
	switch r {
	case TemporalOverlap:
		return "overlap"
	case TemporalCumulative:
		return "cumulative_to_period_end"
	case TemporalRange:
		return "range"
	default:
		return "unknown"
	}
}

// OwnerFilter narrows a record query to the owners selected by a resolved
// scope. Exactly one of the narrowing fields is set, or none for
// organization scope.
type OwnerFilter struct {
	// OwnerIDs is set for user and team scopes; a user scope carries one
	// element. An empty non-nil slice is valid and matches nothing.
	OwnerIDs []string

	// Department is set for department scope.
	Department string

	// BusinessUnit is set for business-unit scope.
	BusinessUnit string
}

// Matches reports whether the owner attributes satisfy the filter. Department
// and business unit are attributes of the owning user's profile.
func (f OwnerFilter) Matches(ownerID, department, businessUnit string) bool {
	switch {
	case f.OwnerIDs != nil:
		for _, id := range f.OwnerIDs {
			if id == ownerID {
				return true
			}
		}
		return false
	case f.Department != "":
		return department == f.Department
	case f.BusinessUnit != "":
		return businessUnit == f.BusinessUnit
	default:
		return true
	}
}

// RecordPredicate is the named, independently testable specification of one
// sub-aggregation's record selection: which organization, which owners, and
// which temporal inclusion rule over which period.
type RecordPredicate struct {
	OrganizationID string
	Owner          OwnerFilter
	Rule           TemporalRule
	PeriodStart    time.Time
	PeriodEnd      time.Time
}

// IncludesGoal applies the TemporalOverlap rule to a goal's lifecycle dates.
// Draft exclusion is the caller's concern; this evaluates timing only.
func (p RecordPredicate) IncludesGoal(createdAt time.Time, dueDate, completedAt *time.Time) bool {
	if p.Rule != TemporalOverlap {
		return p.includesInstant(createdAt)
	}
	if completedAt != nil && !completedAt.Before(p.PeriodStart) && !completedAt.After(p.PeriodEnd) {
		return true
	}
	if createdAt.After(p.PeriodEnd) {
		return false
	}
	return dueDate == nil || !dueDate.Before(p.PeriodStart)
}

// IncludesInstant applies the predicate's rule to a single record timestamp
// (creation date for cumulative categories, effective date for range-bounded
// ones).
func (p RecordPredicate) IncludesInstant(t time.Time) bool {
	return p.includesInstant(t)
}

func (p RecordPredicate) includesInstant(t time.Time) bool {
	switch p.Rule {
	case TemporalCumulative:
		return !t.After(p.PeriodEnd)
	case TemporalRange:
		return !t.Before(p.PeriodStart) && !t.After(p.PeriodEnd)
	default:
		return !t.After(p.PeriodEnd)
	}
}
