package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/RestorePortal/internal/model"
	"github.com/dharsanguruparan/RestorePortal/internal/storage"
)

const uniqueViolation = "23505"

const selectColumns = `id, org_name, email, org_type, project_title, status, files, professional_id, session_token, created_at, updated_at`

// ApplicationRepository is the PostgreSQL implementation of storage.Store.
// Row locks taken with SELECT ... FOR UPDATE serialize concurrent updates of
// one application across processes.
type ApplicationRepository struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*ApplicationRepository)(nil)

// NewApplicationRepository constructs a repository.
func NewApplicationRepository(pool *pgxpool.Pool) *ApplicationRepository {
	return &ApplicationRepository{pool: pool}
}

// ReserveID draws the next value of the id sequence.
func (r *ApplicationRepository) ReserveID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('applications_id_seq')`).Scan(&id); err != nil {
		return 0, fmt.Errorf("reserve id: %w", err)
	}
	return id, nil
}

// Create inserts draft. Explicit ids advance the sequence past them so later
// reservations do not collide.
func (r *ApplicationRepository) Create(ctx context.Context, draft *model.Application) (int64, error) {
	app := draft.Clone()
	if app.ID == 0 {
		id, err := r.ReserveID(ctx)
		if err != nil {
			return 0, err
		}
		app.ID = id
	}
	if app.Files == nil {
		app.Files = map[model.ArtifactKind]string{}
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)
	_, err = tx.Exec(ctx, `
		INSERT INTO applications (id, org_name, email, org_type, project_title, status, files, professional_id, session_token, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, app.ID, app.OrgName, app.Email, app.OrgType, app.ProjectTitle, app.Status, app.Files, app.ProfessionalID, app.SessionToken, app.CreatedAt, app.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "applications_email_key" {
			return 0, model.ErrDuplicateEmail
		}
		return 0, fmt.Errorf("insert application: %w", err)
	}
	_, err = tx.Exec(ctx, `
		SELECT setval('applications_id_seq', GREATEST($1, (SELECT last_value FROM applications_id_seq)))
	`, app.ID)
	if err != nil {
		return 0, fmt.Errorf("advance id sequence: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return app.ID, nil
}

// Get returns an application by id.
func (r *ApplicationRepository) Get(ctx context.Context, id int64) (*model.Application, error) {
	return r.one(ctx, `SELECT `+selectColumns+` FROM applications WHERE id=$1`, id)
}

// FindByEmail returns the application registered with email.
func (r *ApplicationRepository) FindByEmail(ctx context.Context, email string) (*model.Application, error) {
	return r.one(ctx, `SELECT `+selectColumns+` FROM applications WHERE email=$1`, email)
}

// FindByCredentials matches both credentials on the same row.
func (r *ApplicationRepository) FindByCredentials(ctx context.Context, professionalID, sessionToken string) (*model.Application, error) {
	return r.one(ctx, `SELECT `+selectColumns+` FROM applications WHERE professional_id=$1 AND session_token=$2`, professionalID, sessionToken)
}

// List returns every application ordered by id.
func (r *ApplicationRepository) List(ctx context.Context) ([]*model.Application, error) {
	return r.many(ctx, `SELECT `+selectColumns+` FROM applications ORDER BY id`)
}

// ListByStatus returns applications with status ordered by id.
func (r *ApplicationRepository) ListByStatus(ctx context.Context, status model.Status) ([]*model.Application, error) {
	return r.many(ctx, `SELECT `+selectColumns+` FROM applications WHERE status=$1 ORDER BY id`, status)
}

// Update locks the row, applies fn and writes the mutable columns back.
func (r *ApplicationRepository) Update(ctx context.Context, id int64, fn func(*model.Application) error) (*model.Application, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)
	current, err := scanApplication(tx.QueryRow(ctx, `SELECT `+selectColumns+` FROM applications WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	if working.ID != current.ID || working.Email != current.Email {
		return nil, storage.ErrImmutableField
	}
	working.UpdatedAt = time.Now().UTC()
	_, err = tx.Exec(ctx, `
		UPDATE applications
		SET org_name=$1, org_type=$2, project_title=$3, status=$4, files=$5,
			professional_id=$6, session_token=$7, updated_at=$8
		WHERE id=$9
	`, working.OrgName, working.OrgType, working.ProjectTitle, working.Status, working.Files,
		working.ProfessionalID, working.SessionToken, working.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("update application: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return working, nil
}

func (r *ApplicationRepository) one(ctx context.Context, query string, args ...any) (*model.Application, error) {
	return scanApplication(r.pool.QueryRow(ctx, query, args...))
}

func (r *ApplicationRepository) many(ctx context.Context, query string, args ...any) ([]*model.Application, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select applications: %w", err)
	}
	defer rows.Close()
	var out []*model.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}

func scanApplication(row pgx.Row) (*model.Application, error) {
	var app model.Application
	err := row.Scan(&app.ID, &app.OrgName, &app.Email, &app.OrgType, &app.ProjectTitle, &app.Status,
		&app.Files, &app.ProfessionalID, &app.SessionToken, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NotFoundError{Resource: "application"}
		}
		return nil, fmt.Errorf("select application: %w", err)
	}
	if app.Files == nil {
		app.Files = map[model.ArtifactKind]string{}
	}
	return &app, nil
}
