package calls

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidArgument = errors.New("calls: invalid argument")

// Repository is the persistence contract for call records.
// Implementations must enforce tenant filtering.
type Repository interface {
	Insert(ctx context.Context, r Record) error
	List(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]Record, error)
	AttachVoicemail(ctx context.Context, providerCallID, transcript string) error
}

// NewRecord stamps identity and creation time onto a flush payload.
func NewRecord(r Record, now time.Time) (Record, error) {
	if r.TenantID == "" || r.ProviderCallID == "" {
		return Record{}, ErrInvalidArgument
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now.UTC()
	}
	if r.EndedAt.IsZero() {
		r.EndedAt = now.UTC()
	}
	if r.DurationSeconds == 0 && !r.StartedAt.IsZero() {
		r.DurationSeconds = int(r.EndedAt.Sub(r.StartedAt).Seconds())
	}
	return r, nil
}

// PostgresRepo persists call records in the calls table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Insert(ctx context.Context, rec Record) error {
	const q = `
INSERT INTO calls (
  id, tenant_id, provider_call_id, from_number, status, duration_seconds,
  transcript, intent, booking_id, interactions, voicemail_transcript,
  started_at, ended_at, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (provider_call_id) DO NOTHING
`
	// ON CONFLICT keeps the flush idempotent under duplicate call-status
	// deliveries.
	_, err := r.db.ExecContext(ctx, q,
		rec.ID,
		rec.TenantID,
		rec.ProviderCallID,
		rec.From,
		rec.Status,
		rec.DurationSeconds,
		rec.Transcript,
		rec.Intent,
		rec.BookingID,
		rec.Interactions,
		rec.VoicemailTranscript,
		rec.StartedAt,
		rec.EndedAt,
		rec.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) AttachVoicemail(ctx context.Context, providerCallID, transcript string) error {
	if providerCallID == "" {
		return ErrInvalidArgument
	}
	const q = `UPDATE calls SET voicemail_transcript = $2 WHERE provider_call_id = $1`
	_, err := r.db.ExecContext(ctx, q, providerCallID, transcript)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]Record, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `
SELECT id, tenant_id, provider_call_id, from_number, status, duration_seconds,
       transcript, intent, booking_id, interactions, voicemail_transcript,
       started_at, ended_at, created_at
FROM calls
WHERE tenant_id = $1 AND started_at >= $2 AND started_at < $3
ORDER BY started_at DESC
LIMIT $4
`
	rows, err := r.db.QueryContext(ctx, q, tenantID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID,
			&rec.TenantID,
			&rec.ProviderCallID,
			&rec.From,
			&rec.Status,
			&rec.DurationSeconds,
			&rec.Transcript,
			&rec.Intent,
			&rec.BookingID,
			&rec.Interactions,
			&rec.VoicemailTranscript,
			&rec.StartedAt,
			&rec.EndedAt,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MemoryRepo is an in-memory Repository for tests and early development.
type MemoryRepo struct {
	mu      sync.RWMutex
	records map[string]Record // keyed by provider call id for idempotent flush
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: make(map[string]Record)}
}

func (r *MemoryRepo) Insert(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[rec.ProviderCallID]; exists {
		return nil
	}
	r.records[rec.ProviderCallID] = rec
	return nil
}

func (r *MemoryRepo) AttachVoicemail(_ context.Context, providerCallID, transcript string) error {
	if providerCallID == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[providerCallID]
	if !ok {
		return nil
	}
	rec.VoicemailTranscript = transcript
	r.records[providerCallID] = rec
	return nil
}

func (r *MemoryRepo) List(_ context.Context, tenantID string, from, to time.Time, limit int) ([]Record, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Record
	for _, rec := range r.records {
		if rec.TenantID != tenantID {
			continue
		}
		if rec.StartedAt.Before(from) || !rec.StartedAt.Before(to) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Get returns a record by provider call id. Test helper.
func (r *MemoryRepo) Get(providerCallID string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[providerCallID]
	return rec, ok
}
