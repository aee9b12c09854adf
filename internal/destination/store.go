package destination

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists destinations in PostgreSQL. All queries are scoped by
// organization and exclude soft-deleted rows. Safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const selectColumns = `id, org_id, name, country, description, latitude, longitude, tags, created_by, created_at, updated_at`

func scanDestination(row pgx.Row) (*Destination, error) {
	d := &Destination{}
	err := row.Scan(&d.ID, &d.OrgID, &d.Name, &d.Country, &d.Description,
		&d.Latitude, &d.Longitude, &d.Tags, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning destination: %w", err)
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	return d, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create inserts a destination. Returns ErrDuplicateName when an active
// destination in the organization already has the name (case-insensitive).
func (s *Store) Create(ctx context.Context, orgID, createdBy uuid.UUID, in Input) (*Destination, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO destinations (org_id, name, country, description, latitude, longitude, tags, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+selectColumns,
		orgID, in.Name, in.Country, in.Description, in.Latitude, in.Longitude, in.Tags, createdBy)

	d, err := scanDestination(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, in.Name)
		}
		return nil, err
	}
	return d, nil
}

// Get fetches a single active destination in the organization.
func (s *Store) Get(ctx context.Context, orgID, id uuid.UUID) (*Destination, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+selectColumns+`
		FROM destinations
		WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL`, id, orgID)
	return scanDestination(row)
}

// List returns active destinations in the organization, optionally filtered
// by a case-insensitive name or country substring match.
func (s *Store) List(ctx context.Context, orgID uuid.UUID, search string, limit, offset int) ([]*Destination, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+selectColumns+`
		FROM destinations
		WHERE org_id = $1 AND deleted_at IS NULL
		  AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR country ILIKE '%' || $2 || '%')
		ORDER BY name
		LIMIT $3 OFFSET $4`, orgID, search, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing destinations: %w", err)
	}
	defer rows.Close()

	out := make([]*Destination, 0)
	for rows.Next() {
		d, err := scanDestination(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Update replaces the writable fields of an active destination.
func (s *Store) Update(ctx context.Context, orgID, id uuid.UUID, in Input) (*Destination, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE destinations
		SET name = $3, country = $4, description = $5, latitude = $6, longitude = $7, tags = $8, updated_at = now()
		WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL
		RETURNING `+selectColumns,
		id, orgID, in.Name, in.Country, in.Description, in.Latitude, in.Longitude, in.Tags)

	d, err := scanDestination(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, in.Name)
		}
		return nil, err
	}
	return d, nil
}

// Delete soft deletes a destination so past agent runs keep resolving it.
func (s *Store) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE destinations SET deleted_at = now()
		WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL`, id, orgID)
	if err != nil {
		return fmt.Errorf("deleting destination: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
