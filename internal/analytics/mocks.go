package analytics

import (
	"context"
	"sync"
	"time"

	"perfpulse/internal/types"
)

// --- MockMembershipReader ---

// MockMembershipReader implements the MembershipReader interface for testing.
// Members maps team ID to active member IDs; a missing team resolves to an
// empty membership.
type MockMembershipReader struct {
	Members map[string][]string
	Err     error

	mu    sync.Mutex
	Calls []string
}

// ListActiveTeamMembers implements MembershipReader.
func (m *MockMembershipReader) ListActiveTeamMembers(_ context.Context, _, teamID string) ([]string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, teamID)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	return m.Members[teamID], nil
}

// --- MockRecordStore ---

// MockRecordStore implements the RecordStore interface for testing. It
// returns the configured record slices after applying the predicate's
// temporal and owner rules in memory, mirroring what the SQL layer does, so
// engine tests exercise the real inclusion semantics.
type MockRecordStore struct {
	Goals       []types.Goal
	Reviews     []types.Review
	Feedback    []types.FeedbackItem
	Performance []types.PerformanceRecord
	Activity    []types.ActivityEvent

	// Owners maps user ID to (department, business unit) attributes used by
	// OwnerFilter matching. Missing owners have empty attributes.
	Owners map[string][2]string

	// Err, when set, is returned by every list method.
	Err error

	// FailCategory, when non-empty, fails only the named category
	// ("goals", "reviews", "feedback", "performance", "activity").
	FailCategory string
	CategoryErr  error

	mu         sync.Mutex
	Predicates []RecordPredicate
}

func (m *MockRecordStore) record(pred RecordPredicate, category string) error {
	m.mu.Lock()
	m.Predicates = append(m.Predicates, pred)
	m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if m.FailCategory == category {
		return m.CategoryErr
	}
	return nil
}

func (m *MockRecordStore) ownerAttrs(id string) (string, string) {
	attrs := m.Owners[id]
	return attrs[0], attrs[1]
}

// ListGoals implements RecordStore. Draft goals are excluded at the query
// layer, matching the SQL implementation.
func (m *MockRecordStore) ListGoals(_ context.Context, pred RecordPredicate) ([]types.Goal, error) {
	if err := m.record(pred, "goals"); err != nil {
		return nil, err
	}
	var out []types.Goal
	for _, g := range m.Goals {
		if g.OrganizationID != pred.OrganizationID || g.Status == types.GoalDraft {
			continue
		}
		dept, bu := m.ownerAttrs(g.OwnerID)
		if !pred.Owner.Matches(g.OwnerID, dept, bu) {
			continue
		}
		if pred.IncludesGoal(g.CreatedAt, g.DueDate, g.CompletedAt) {
			out = append(out, g)
		}
	}
	return out, nil
}

// ListReviews implements RecordStore.
func (m *MockRecordStore) ListReviews(_ context.Context, pred RecordPredicate) ([]types.Review, error) {
	if err := m.record(pred, "reviews"); err != nil {
		return nil, err
	}
	var out []types.Review
	for _, r := range m.Reviews {
		if r.OrganizationID != pred.OrganizationID {
			continue
		}
		dept, bu := m.ownerAttrs(r.RevieweeID)
		if !pred.Owner.Matches(r.RevieweeID, dept, bu) {
			continue
		}
		if pred.IncludesInstant(r.CreatedAt) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListFeedback implements RecordStore.
func (m *MockRecordStore) ListFeedback(_ context.Context, pred RecordPredicate) ([]types.FeedbackItem, error) {
	if err := m.record(pred, "feedback"); err != nil {
		return nil, err
	}
	var out []types.FeedbackItem
	for _, f := range m.Feedback {
		if f.OrganizationID != pred.OrganizationID {
			continue
		}
		dept, bu := m.ownerAttrs(f.RecipientID)
		if !pred.Owner.Matches(f.RecipientID, dept, bu) {
			continue
		}
		if pred.IncludesInstant(f.CreatedAt) {
			out = append(out, f)
		}
	}
	return out, nil
}

// ListPerformanceRecords implements RecordStore.
func (m *MockRecordStore) ListPerformanceRecords(_ context.Context, pred RecordPredicate) ([]types.PerformanceRecord, error) {
	if err := m.record(pred, "performance"); err != nil {
		return nil, err
	}
	var out []types.PerformanceRecord
	for _, p := range m.Performance {
		if p.OrganizationID != pred.OrganizationID {
			continue
		}
		dept, bu := m.ownerAttrs(p.UserID)
		if !pred.Owner.Matches(p.UserID, dept, bu) {
			continue
		}
		if pred.IncludesInstant(p.MetricDate) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListActivityEvents implements RecordStore.
func (m *MockRecordStore) ListActivityEvents(_ context.Context, pred RecordPredicate) ([]types.ActivityEvent, error) {
	if err := m.record(pred, "activity"); err != nil {
		return nil, err
	}
	var out []types.ActivityEvent
	for _, e := range m.Activity {
		if e.OrganizationID != pred.OrganizationID {
			continue
		}
		dept, bu := m.ownerAttrs(e.ActorID)
		if !pred.Owner.Matches(e.ActorID, dept, bu) {
			continue
		}
		if pred.IncludesInstant(e.OccurredAt) {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- MockSnapshotStore ---

// MockSnapshotStore implements the SnapshotStore interface with an in-memory
// map keyed by the snapshot's natural key.
type MockSnapshotStore struct {
	GetErr    error
	UpsertErr error

	mu        sync.Mutex
	Snapshots map[string]*types.MetricsSnapshot
	Upserts   int
}

// Get implements SnapshotStore, returning (nil, nil) for a missing key.
func (m *MockSnapshotStore) Get(_ context.Context, key types.SnapshotKey) (*types.MetricsSnapshot, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Snapshots[flightKey(key)], nil
}

// Upsert implements SnapshotStore.
func (m *MockSnapshotStore) Upsert(_ context.Context, snap *types.MetricsSnapshot) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Snapshots == nil {
		m.Snapshots = make(map[string]*types.MetricsSnapshot)
	}
	m.Snapshots[flightKey(snap.SnapshotKey)] = snap
	m.Upserts++
	return nil
}

// --- MockReportStore ---

// MockReportStore implements the ReportStore interface with upsert-by-cache-key
// semantics: a first write stores the document with access count 1; a repeat
// write for the same key replaces it and increments the counter.
type MockReportStore struct {
	UpsertErr error

	mu        sync.Mutex
	Documents map[string]*types.ReportDocument
}

// Upsert implements ReportStore.
func (m *MockReportStore) Upsert(_ context.Context, doc *types.ReportDocument) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Documents == nil {
		m.Documents = make(map[string]*types.ReportDocument)
	}
	if existing, ok := m.Documents[doc.CacheKey]; ok {
		doc.ID = existing.ID
		doc.AccessCount = existing.AccessCount + 1
	} else {
		doc.ID = "rep_" + doc.CacheKey
		doc.AccessCount = 1
	}
	m.Documents[doc.CacheKey] = doc
	return nil
}

// --- Mock telemetry ---

// MockTelemetry implements Telemetry and ReportTelemetry, recording calls.
type MockTelemetry struct {
	mu              sync.Mutex
	SnapshotEvents  []ComputeSource
	ReportDurations []time.Duration
	ReportErrors    []error
}

// RecordSnapshotCompute implements Telemetry.
func (m *MockTelemetry) RecordSnapshotCompute(_ context.Context, source ComputeSource, _ time.Duration) {
	m.mu.Lock()
	m.SnapshotEvents = append(m.SnapshotEvents, source)
	m.mu.Unlock()
}

// RecordReportGeneration implements ReportTelemetry.
func (m *MockTelemetry) RecordReportGeneration(_ context.Context, _ types.ReportType, d time.Duration, err error) {
	m.mu.Lock()
	m.ReportDurations = append(m.ReportDurations, d)
	m.ReportErrors = append(m.ReportErrors, err)
	m.mu.Unlock()
}

// Compile-time interface assertions.
var (
	_ MembershipReader = (*MockMembershipReader)(nil)
	_ RecordStore      = (*MockRecordStore)(nil)
	_ SnapshotStore    = (*MockSnapshotStore)(nil)
	_ ReportStore      = (*MockReportStore)(nil)
	_ Telemetry        = (*MockTelemetry)(nil)
	_ ReportTelemetry  = (*MockTelemetry)(nil)
)
