package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/averix/internal/domain"
)

// AuditStore implements domain.AuditStore using PostgreSQL.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates a new AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Log appends a submission or session event. The detail map is stored as
// JSONB; a nil map stores SQL NULL.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	var detailJSON []byte
	if detail != nil {
		var err error
		detailJSON, err = json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("postgres: marshal audit detail: %w", err)
		}
	}

	const query = `INSERT INTO audit_log (event, detail) VALUES ($1, $2)`
	if _, err := s.pool.Exec(ctx, query, event, detailJSON); err != nil {
		return fmt.Errorf("postgres: log audit event %s: %w", event, err)
	}
	return nil
}

// List returns audit entries, newest first.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	where, args := listFilter(opts, "created_at", nil)
	query := `SELECT id, event, detail, created_at FROM audit_log` + where +
		` ORDER BY created_at DESC` + listPage(opts, &args)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var detailJSON []byte

		if err := rows.Scan(&e.ID, &e.Event, &detailJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan audit entry: %w", err)
		}
		if detailJSON != nil {
			if err := json.Unmarshal(detailJSON, &e.Detail); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal audit detail: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list audit entries rows: %w", err)
	}
	return entries, nil
}

// listFilter builds a WHERE clause from the time bounds of opts, appending
// to any leading conditions already bound in args.
func listFilter(opts domain.ListOpts, column string, args []any, conds ...string) (string, []any) {
	if opts.Since != nil {
		args = append(args, *opts.Since)
		conds = append(conds, fmt.Sprintf("%s >= $%d", column, len(args)))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		conds = append(conds, fmt.Sprintf("%s <= $%d", column, len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	where := " WHERE " + conds[0]
	for _, c := range conds[1:] {
		where += " AND " + c
	}
	return where, args
}

// listPage returns the LIMIT/OFFSET suffix for opts, binding into args.
func listPage(opts domain.ListOpts, args *[]any) string {
	var page string
	if opts.Limit > 0 {
		*args = append(*args, opts.Limit)
		page += fmt.Sprintf(" LIMIT $%d", len(*args))
	}
	if opts.Offset > 0 {
		*args = append(*args, opts.Offset)
		page += fmt.Sprintf(" OFFSET $%d", len(*args))
	}
	return page
}

// Compile-time interface check.
var _ domain.AuditStore = (*AuditStore)(nil)
