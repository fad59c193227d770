package leads

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the repository needs. Narrowed so
// tests can substitute pgxmock.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores leads and their activity log in the relational
// database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, lead *Lead) (*Lead, error) {
	copied := cloneLead(lead)
	if copied.ID == "" {
		copied.ID = uuid.NewString()
	}
	if copied.Status == "" {
		copied.Status = StatusNew
	}

	query := `
		INSERT INTO leads (id, org_id, name, email, phone, company, status, priority, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	if err := r.pool.QueryRow(ctx, query,
		copied.ID,
		copied.OrgID,
		copied.Name,
		copied.Email,
		copied.Phone,
		copied.Company,
		copied.Status,
		copied.Priority,
		copied.Tags,
	).Scan(&copied.CreatedAt, &copied.UpdatedAt); err != nil {
		return nil, fmt.Errorf("leads: insert failed: %w", err)
	}
	return copied, nil
}

// GetByID fetches a lead scoped to the org, with its activity log.
func (r *PostgresRepository) GetByID(ctx context.Context, orgID, id string) (*Lead, error) {
	query := `
		SELECT id, org_id, name, email, phone, company, status, priority, tags, created_at, updated_at
		FROM leads
		WHERE id = $1 AND org_id = $2
	`
	row := r.pool.QueryRow(ctx, query, id, orgID)
	var lead Lead
	if err := row.Scan(
		&lead.ID,
		&lead.OrgID,
		&lead.Name,
		&lead.Email,
		&lead.Phone,
		&lead.Company,
		&lead.Status,
		&lead.Priority,
		&lead.Tags,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}

	activities, err := r.activities(ctx, lead.ID)
	if err != nil {
		return nil, err
	}
	lead.Activities = activities
	return &lead, nil
}

// List returns org leads ordered by creation time descending.
func (r *PostgresRepository) List(ctx context.Context, orgID string, limit, offset int) ([]*Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, org_id, name, email, phone, company, status, priority, tags, created_at, updated_at
		FROM leads
		WHERE org_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, orgID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Lead
	for rows.Next() {
		var lead Lead
		if err := rows.Scan(
			&lead.ID,
			&lead.OrgID,
			&lead.Name,
			&lead.Email,
			&lead.Phone,
			&lead.Company,
			&lead.Status,
			&lead.Priority,
			&lead.Tags,
			&lead.CreatedAt,
			&lead.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("leads: scan lead: %w", err)
		}
		out = append(out, &lead)
	}
	return out, rows.Err()
}

// SaveTransition persists the status change and its activity entry in one
// transaction, so a lead row never disagrees with its log.
func (r *PostgresRepository) SaveTransition(ctx context.Context, lead *Lead, activity Activity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("leads: begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE leads SET status = $2, updated_at = $3 WHERE id = $1`,
		lead.ID, lead.Status, lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("leads: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO lead_activities (id, lead_id, type, description, actor, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		activity.ID, lead.ID, activity.Type, activity.Description, activity.Actor, activity.CreatedAt,
	); err != nil {
		return fmt.Errorf("leads: insert activity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("leads: commit transition: %w", err)
	}
	return nil
}

func (r *PostgresRepository) activities(ctx context.Context, leadID string) ([]Activity, error) {
	query := `
		SELECT id, type, description, actor, created_at
		FROM lead_activities
		WHERE lead_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("leads: list activities: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		var createdAt time.Time
		if err := rows.Scan(&a.ID, &a.Type, &a.Description, &a.Actor, &createdAt); err != nil {
			return nil, fmt.Errorf("leads: scan activity: %w", err)
		}
		a.CreatedAt = createdAt
		out = append(out, a)
	}
	return out, rows.Err()
}
