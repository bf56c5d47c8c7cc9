package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCategoryStore implements CategoryStore over vb.categories.
type PostgresCategoryStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCategoryStore creates a Postgres-backed category store.
func NewPostgresCategoryStore(pool *pgxpool.Pool) *PostgresCategoryStore {
	return &PostgresCategoryStore{pool: pool}
}

const categorySelect = `
	SELECT c.id, c.name, c.parent_id, p.name, c.is_active, c.created_at
	FROM vb.categories c
	LEFT JOIN vb.categories p ON p.id = c.parent_id
`

func scanCategory(row pgx.Row) (Category, error) {
	var (
		c          Category
		parentName *string
	)
	err := row.Scan(&c.ID, &c.Name, &c.ParentID, &parentName, &c.IsActive, &c.CreatedAt)
	if err != nil {
		return Category{}, err
	}
	if parentName != nil {
		c.ParentName = *parentName
	}
	return c, nil
}

// GetCategory loads one category with its parent name.
func (s *PostgresCategoryStore) GetCategory(ctx context.Context, id string) (Category, error) {
	c, err := scanCategory(s.pool.QueryRow(ctx, categorySelect+`WHERE c.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, OpError{Op: "catalog.GetCategory", Kind: ErrNotFound}
	}
	return c, err
}

// ListCategories returns every category ordered by name.
func (s *PostgresCategoryStore) ListCategories(ctx context.Context) ([]Category, error) {
	return s.list(ctx, categorySelect+`ORDER BY c.name`)
}

// ListActiveCategories returns the active categories ordered by name.
func (s *PostgresCategoryStore) ListActiveCategories(ctx context.Context) ([]Category, error) {
	return s.list(ctx, categorySelect+`WHERE c.is_active ORDER BY c.name`)
}

// ListCategoriesByParent returns direct children; nil parentID selects roots.
func (s *PostgresCategoryStore) ListCategoriesByParent(ctx context.Context, parentID *string) ([]Category, error) {
	return s.list(ctx, categorySelect+`WHERE c.parent_id IS NOT DISTINCT FROM $1 ORDER BY c.name`, parentID)
}

func (s *PostgresCategoryStore) list(ctx context.Context, query string, args ...any) ([]Category, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCategory inserts a new category.
func (s *PostgresCategoryStore) CreateCategory(ctx context.Context, id string, in CreateCategoryInput) (Category, error) {
	const op = "catalog.CreateCategory"

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO vb.categories (id, name, name_norm, parent_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, id, in.Name, normalizeName(in.Name), in.ParentID, in.IsActive, now)
	if err != nil {
		if isUniqueViolation(err) {
			return Category{}, OpError{Op: op, Kind: ErrConflict, Msg: "category name already exists"}
		}
		return Category{}, err
	}

	return s.GetCategory(ctx, id)
}

// UpdateCategory rewrites the mutable fields.
func (s *PostgresCategoryStore) UpdateCategory(ctx context.Context, id string, in UpdateCategoryInput) (Category, error) {
	const op = "catalog.UpdateCategory"

	tag, err := s.pool.Exec(ctx, `
		UPDATE vb.categories
		SET name = $2, name_norm = $3, parent_id = $4, is_active = $5, updated_at = now()
		WHERE id = $1
	`, id, in.Name, normalizeName(in.Name), in.ParentID, in.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			return Category{}, OpError{Op: op, Kind: ErrConflict, Msg: "category name already exists"}
		}
		return Category{}, err
	}
	if tag.RowsAffected() == 0 {
		return Category{}, OpError{Op: op, Kind: ErrNotFound}
	}

	return s.GetCategory(ctx, id)
}

// DeleteCategory removes a category. Referencing rows surface as a conflict.
func (s *PostgresCategoryStore) DeleteCategory(ctx context.Context, id string) error {
	const op = "catalog.DeleteCategory"

	tag, err := s.pool.Exec(ctx, `DELETE FROM vb.categories WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return OpError{Op: op, Kind: ErrConflict, Msg: "category is referenced"}
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	return nil
}

// CategoryNameExists reports whether a normalized name is taken by another row.
func (s *PostgresCategoryStore) CategoryNameExists(ctx context.Context, name, excludeID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM vb.categories
			WHERE name_norm = $1 AND id <> $2
		)
	`, normalizeName(name), excludeID).Scan(&exists)
	return exists, err
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
