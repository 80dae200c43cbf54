package shortener

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/snaplink/snaplink/internal/errx"
	"github.com/snaplink/snaplink/internal/idgen"
)

// dbtx is the subset of pgxpool.Pool the repositories need. Abstracting it
// keeps the repositories testable against any pgx-compatible handle.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RepositoryConfig holds configuration shared by the pg repositories.
type RepositoryConfig struct {
	IDGenerator idgen.Generator
}

func idGeneratorOrDefault(config *RepositoryConfig) idgen.Generator {
	if config != nil && config.IDGenerator != nil {
		return config.IDGenerator
	}
	// Default: UUID v7 (good for DB locality). Retry once by default inside idgen.NewV7.
	return idgen.NewV7(idgen.WithRetries(1))
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)

	case isCodeUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)

	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

/***************
 * Link repository
 ***************/

type linkRepo struct {
	db  dbtx
	ids idgen.Generator
}

// NewLinkRepository creates a PostgreSQL-backed LinkRepository.
func NewLinkRepository(db dbtx, config *RepositoryConfig) LinkRepository {
	return &linkRepo{
		db:  db,
		ids: idGeneratorOrDefault(config),
	}
}

func (r *linkRepo) Create(ctx context.Context, link Link) (Link, error) {
	const op = "shortener.linkRepo.Create"

	// Generate ID if not provided
	if link.ID == uuid.Nil {
		id, err := r.ids.Generate()
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		link.ID = id
	}

	// The unique constraint on short_code is the only uniqueness check;
	// a duplicate surfaces here as Conflict, never as a pre-read.
	row := r.db.QueryRow(ctx,
		`INSERT INTO links (id, original_url, short_code, password, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		link.ID, link.OriginalURL, link.Code, link.Password, link.ExpiresAt,
	)
	if err := row.Scan(&link.CreatedAt); err != nil {
		return Link{}, mapRepoError(op, err)
	}

	return link, nil
}

func (r *linkRepo) GetByCode(ctx context.Context, code string) (Link, error) {
	const op = "shortener.linkRepo.GetByCode"

	var link Link
	row := r.db.QueryRow(ctx,
		`SELECT id, original_url, short_code, password, created_at, expires_at
		 FROM links
		 WHERE short_code = $1`,
		code,
	)
	err := row.Scan(&link.ID, &link.OriginalURL, &link.Code,
		&link.Password, &link.CreatedAt, &link.ExpiresAt)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}

	return link, nil
}

func (r *linkRepo) Delete(ctx context.Context, code string) error {
	const op = "shortener.linkRepo.Delete"

	// Deleting an unknown code is a no-op, not an error.
	if _, err := r.db.Exec(ctx,
		`DELETE FROM links WHERE short_code = $1`, code); err != nil {
		return mapRepoError(op, err)
	}
	return nil
}

func (r *linkRepo) ListAll(ctx context.Context) ([]LinkStats, error) {
	const op = "shortener.linkRepo.ListAll"

	rows, err := r.db.Query(ctx,
		`SELECT l.id, l.original_url, l.short_code, l.password,
		        l.created_at, l.expires_at, COUNT(c.id) AS total_clicks
		 FROM links l
		 LEFT JOIN clicks c ON c.short_code = l.short_code
		 GROUP BY l.id
		 ORDER BY l.created_at DESC, l.short_code`,
	)
	if err != nil {
		return nil, mapRepoError(op, err)
	}
	defer rows.Close()

	var out []LinkStats
	for rows.Next() {
		var s LinkStats
		err := rows.Scan(&s.ID, &s.OriginalURL, &s.Code, &s.Password,
			&s.CreatedAt, &s.ExpiresAt, &s.TotalClicks)
		if err != nil {
			return nil, mapRepoError(op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapRepoError(op, err)
	}

	return out, nil
}

/***************
 * Click repository
 ***************/

type clickRepo struct {
	db  dbtx
	ids idgen.Generator
}

// NewClickRepository creates a PostgreSQL-backed ClickRepository.
func NewClickRepository(db dbtx, config *RepositoryConfig) ClickRepository {
	return &clickRepo{
		db:  db,
		ids: idGeneratorOrDefault(config),
	}
}

func (r *clickRepo) Record(ctx context.Context, code string) error {
	const op = "shortener.clickRepo.Record"

	id, err := r.ids.Generate()
	if err != nil {
		return errx.E(op, errx.Unavailable, err)
	}

	// No foreign key on purpose: recording for an unknown code is allowed,
	// and events may outlive their link.
	if _, err := r.db.Exec(ctx,
		`INSERT INTO clicks (id, short_code) VALUES ($1, $2)`,
		id, code); err != nil {
		return mapRepoError(op, err)
	}
	return nil
}

func (r *clickRepo) CountFor(ctx context.Context, code string) (int64, error) {
	const op = "shortener.clickRepo.CountFor"

	var count int64
	row := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM clicks WHERE short_code = $1`, code)
	if err := row.Scan(&count); err != nil {
		return 0, mapRepoError(op, err)
	}
	return count, nil
}

func (r *clickRepo) DeleteAllFor(ctx context.Context, code string) error {
	const op = "shortener.clickRepo.DeleteAllFor"

	if _, err := r.db.Exec(ctx,
		`DELETE FROM clicks WHERE short_code = $1`, code); err != nil {
		return mapRepoError(op, err)
	}
	return nil
}
