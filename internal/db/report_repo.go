package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/klauspost/compress/zstd"

	"perfpulse/internal/analytics"
	"perfpulse/internal/types"
)

// Report payloads are full composed documents (snapshots, trends,
// comparisons) and compress well; they are stored zstd-compressed in a bytea
// column with a handful of projected columns for listing without decoding.
var (
	reportEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	reportDecoder, _ = zstd.NewReader(nil)
)

// ReportRepository persists composed report documents. It implements
// analytics.ReportStore: Upsert writes by cache key, inserting with access
// count 1 or replacing the existing document and incrementing its counter.
type ReportRepository struct {
	db DBTX
}

// NewReportRepository creates a ReportRepository backed by the given database
// connection (pool or transaction).
func NewReportRepository(db DBTX) *ReportRepository {
	return &ReportRepository{db: db}
}

var _ analytics.ReportStore = (*ReportRepository)(nil)

// Upsert implements analytics.ReportStore. The stored ID and post-write
// access count are filled in on doc before returning.
func (r *ReportRepository) Upsert(ctx context.Context, doc *types.ReportDocument) error {
	payload, err := compressDocument(doc)
	if err != nil {
		return err
	}

	query := `INSERT INTO reports (
			id, organization_id, report_type, scope_kind, entity_id,
			cache_key, period_label, title, summary, payload,
			generated_at, access_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
		ON CONFLICT (cache_key) DO UPDATE SET
			scope_kind = EXCLUDED.scope_kind,
			entity_id = EXCLUDED.entity_id,
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			payload = EXCLUDED.payload,
			generated_at = EXCLUDED.generated_at,
			access_count = reports.access_count + 1
		RETURNING id, access_count`

	err = r.db.QueryRow(ctx, query,
		"rpt_"+uuid.NewString(), doc.OrganizationID, doc.ReportType, doc.ScopeKind, doc.EntityID,
		doc.CacheKey, doc.PeriodLabel, doc.Title, doc.Summary, payload,
		doc.GeneratedAt,
	).Scan(&doc.ID, &doc.AccessCount)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert report", err)
	}
	return nil
}

// GetByCacheKey returns the stored document for the key, or a not-found
// AppError when no report exists.
func (r *ReportRepository) GetByCacheKey(ctx context.Context, cacheKey string) (*types.ReportDocument, error) {
	query := `SELECT id, payload, generated_at, access_count
		FROM reports WHERE cache_key = $1`

	var (
		id          string
		payload     []byte
		generatedAt time.Time
		accessCount int
	)
	err := r.db.QueryRow(ctx, query, cacheKey).Scan(&id, &payload, &generatedAt, &accessCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(
			types.ErrCodeNotFoundReport,
			fmt.Sprintf("no report for cache key %q", cacheKey),
			nil,
		)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get report", err)
	}

	doc, err := decompressDocument(payload)
	if err != nil {
		return nil, err
	}
	doc.ID = id
	doc.GeneratedAt = generatedAt
	doc.AccessCount = accessCount
	return doc, nil
}

// ListRecent returns projected document headers for an organization, newest
// first, without decoding payloads.
func (r *ReportRepository) ListRecent(ctx context.Context, orgID string, limit int) ([]types.ReportDocument, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := `SELECT id, organization_id, report_type, scope_kind, entity_id,
			cache_key, period_label, title, summary, generated_at, access_count
		FROM reports
		WHERE organization_id = $1
		ORDER BY generated_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, orgID, limit)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list reports", err)
	}
	defer rows.Close()

	var docs []types.ReportDocument
	for rows.Next() {
		var d types.ReportDocument
		if err := rows.Scan(
			&d.ID, &d.OrganizationID, &d.ReportType, &d.ScopeKind, &d.EntityID,
			&d.CacheKey, &d.PeriodLabel, &d.Title, &d.Summary, &d.GeneratedAt, &d.AccessCount,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan report header", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "report row iteration failed", err)
	}
	return docs, nil
}

// DeleteGeneratedBefore removes reports generated before the cutoff. Returns
// the number of rows removed.
func (r *ReportRepository) DeleteGeneratedBefore(ctx context.Context, orgID string, cutoff time.Time) (int64, error) {
	query := `DELETE FROM reports WHERE generated_at < $1`
	args := []any{cutoff}
	if orgID != "" {
		query += ` AND organization_id = $2`
		args = append(args, orgID)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete expired reports", err)
	}
	return tag.RowsAffected(), nil
}

func compressDocument(doc *types.ReportDocument) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode report payload", err)
	}
	return reportEncoder.EncodeAll(raw, nil), nil
}

func decompressDocument(payload []byte) (*types.ReportDocument, error) {
	raw, err := reportDecoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to decompress report payload", err)
	}
	var doc types.ReportDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to decode report payload", err)
	}
	return &doc, nil
}
