package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"
)

// Snippet is a short domain-knowledge excerpt injected into the system
// prompt for intents that benefit from it.
//
// Tenancy invariant: TenantID is required on every row.
type Snippet struct {
	ID       string    `json:"id" db:"id"`
	TenantID string    `json:"tenant_id" db:"tenant_id"`
	Intent   string    `json:"intent" db:"intent"`
	Title    string    `json:"title" db:"title"`
	Content  string    `json:"content" db:"content"`
	Created  time.Time `json:"created_at" db:"created_at"`
}

var ErrInvalidArgument = errors.New("knowledge: invalid argument")

// Repository abstracts snippet lookup. Implementations must enforce tenant
// filtering.
type Repository interface {
	ForIntent(ctx context.Context, tenantID, intent string, limit int) ([]Snippet, error)
}

// PostgresRepo reads snippets from the knowledge_snippets table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ForIntent(ctx context.Context, tenantID, intent string, limit int) ([]Snippet, error) {
	if tenantID == "" || intent == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = 3
	}
	const q = `
SELECT id, tenant_id, intent, title, content, created_at
FROM knowledge_snippets
WHERE tenant_id = $1 AND intent = $2
ORDER BY created_at DESC
LIMIT $3
`
	rows, err := r.db.QueryContext(ctx, q, tenantID, intent, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snippet
	for rows.Next() {
		var s Snippet
		if err := rows.Scan(&s.ID, &s.TenantID, &s.Intent, &s.Title, &s.Content, &s.Created); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MemoryRepo is an in-memory Repository for tests and early development.
type MemoryRepo struct {
	mu       sync.RWMutex
	snippets []Snippet

	// Delay simulates a slow lookup in tests.
	Delay time.Duration
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Add(s Snippet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snippets = append(r.snippets, s)
}

func (r *MemoryRepo) ForIntent(ctx context.Context, tenantID, intent string, limit int) ([]Snippet, error) {
	if tenantID == "" || intent == "" {
		return nil, ErrInvalidArgument
	}
	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if limit <= 0 {
		limit = 3
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Snippet
	for _, s := range r.snippets {
		if s.TenantID == tenantID && s.Intent == intent {
			out = append(out, s)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Excerpt joins snippets into a single prompt-sized block.
func Excerpt(snippets []Snippet) string {
	if len(snippets) == 0 {
		return ""
	}
	var b strings.Builder
	for i, s := range snippets {
		if i > 0 {
			b.WriteString("\n")
		}
		if s.Title != "" {
			b.WriteString(s.Title)
			b.WriteString(": ")
		}
		b.WriteString(s.Content)
	}
	return b.String()
}
