package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ventasbros/cmd/identity/ids"
)

// PostgresProductStore implements ProductStore over vb.products and
// vb.product_images.
type PostgresProductStore struct {
	pool *pgxpool.Pool
}

// NewPostgresProductStore creates a Postgres-backed product store.
func NewPostgresProductStore(pool *pgxpool.Pool) *PostgresProductStore {
	return &PostgresProductStore{pool: pool}
}

const productSelect = `
	SELECT p.id, p.name, p.description, p.price, p.category_id, c.name,
	       p.is_active, p.created_at
	FROM vb.products p
	JOIN vb.categories c ON c.id = p.category_id
`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.CategoryID,
		&p.CategoryName, &p.IsActive, &p.CreatedAt)
	return p, err
}

// GetProduct loads one product with its images.
func (s *PostgresProductStore) GetProduct(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, productSelect+`WHERE p.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, OpError{Op: "catalog.GetProduct", Kind: ErrNotFound}
	}
	if err != nil {
		return Product{}, err
	}

	images, err := s.imagesFor(ctx, []string{id})
	if err != nil {
		return Product{}, err
	}
	p.Images = images[id]
	if p.Images == nil {
		p.Images = []Image{}
	}
	return p, nil
}

// ListProducts returns one filtered, ordered page plus the total row count.
func (s *PostgresProductStore) ListProducts(ctx context.Context, f ProductFilter) (ProductPage, error) {
	where, args := buildProductWhere(f)

	var total int64
	countQuery := `SELECT count(*) FROM vb.products p JOIN vb.categories c ON c.id = p.category_id` + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return ProductPage{}, err
	}

	orderCol := map[string]string{
		"name":      "p.name",
		"price":     "p.price",
		"createdAt": "p.created_at",
	}[f.Sort]
	dir := "DESC"
	if f.Direction == "asc" {
		dir = "ASC"
	}

	offset := (f.Page - 1) * f.PageSize
	pageQuery := fmt.Sprintf("%s%s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		productSelect, where, orderCol, dir, len(args)+1, len(args)+2)
	args = append(args, f.PageSize, offset)

	rows, err := s.pool.Query(ctx, pageQuery, args...)
	if err != nil {
		return ProductPage{}, err
	}
	defer rows.Close()

	items := []Product{}
	var pageIDs []string
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return ProductPage{}, err
		}
		p.Images = []Image{}
		items = append(items, p)
		pageIDs = append(pageIDs, p.ID)
	}
	if err := rows.Err(); err != nil {
		return ProductPage{}, err
	}

	if len(pageIDs) > 0 {
		images, err := s.imagesFor(ctx, pageIDs)
		if err != nil {
			return ProductPage{}, err
		}
		for i := range items {
			if imgs, ok := images[items[i].ID]; ok {
				items[i].Images = imgs
			}
		}
	}

	return ProductPage{
		Items:      items,
		TotalCount: total,
		Page:       f.Page,
		PageSize:   f.PageSize,
		TotalPages: totalPages(total, f.PageSize),
	}, nil
}

// CreateProduct inserts the product and its images in one transaction.
func (s *PostgresProductStore) CreateProduct(ctx context.Context, id string, in CreateProductInput) (Product, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Product{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO vb.products (id, name, description, price, category_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, id, in.Name, in.Description, in.Price, in.CategoryID, in.IsActive, now)
	if err != nil {
		return Product{}, err
	}

	for _, img := range in.Images {
		imgID, err := ids.NewULID(now)
		if err != nil {
			return Product{}, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO vb.product_images (id, product_id, url, is_main)
			VALUES ($1, $2, $3, $4)
		`, imgID, id, img.URL, img.IsMain); err != nil {
			return Product{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Product{}, err
	}

	return s.GetProduct(ctx, id)
}

// UpdateProduct rewrites the mutable fields.
func (s *PostgresProductStore) UpdateProduct(ctx context.Context, id string, in UpdateProductInput) (Product, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE vb.products
		SET name = $2, description = $3, price = $4, category_id = $5, is_active = $6, updated_at = now()
		WHERE id = $1
	`, id, in.Name, in.Description, in.Price, in.CategoryID, in.IsActive)
	if err != nil {
		return Product{}, err
	}
	if tag.RowsAffected() == 0 {
		return Product{}, OpError{Op: "catalog.UpdateProduct", Kind: ErrNotFound}
	}

	return s.GetProduct(ctx, id)
}

// DeleteProduct removes a product; its images go with it via ON DELETE CASCADE.
func (s *PostgresProductStore) DeleteProduct(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM vb.products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return OpError{Op: "catalog.DeleteProduct", Kind: ErrNotFound}
	}
	return nil
}

// CountProductsInCategory counts products referencing a category.
func (s *PostgresProductStore) CountProductsInCategory(ctx context.Context, categoryID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM vb.products WHERE category_id = $1
	`, categoryID).Scan(&n)
	return n, err
}

func (s *PostgresProductStore) imagesFor(ctx context.Context, productIDs []string) (map[string][]Image, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, url, is_main
		FROM vb.product_images
		WHERE product_id = ANY($1)
		ORDER BY is_main DESC, id
	`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]Image)
	for rows.Next() {
		var (
			img       Image
			productID string
		)
		if err := rows.Scan(&img.ID, &productID, &img.URL, &img.IsMain); err != nil {
			return nil, err
		}
		out[productID] = append(out[productID], img)
	}
	return out, rows.Err()
}

func buildProductWhere(f ProductFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Search != "" {
		args = append(args, f.Search)
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			`(p.name ILIKE '%%' || $%d || '%%' OR p.description ILIKE '%%' || $%d || '%%')`, n, n))
	}
	if f.CategoryID != "" {
		add(`p.category_id = $%d`, f.CategoryID)
	}
	if f.MinPrice != nil {
		add(`p.price >= $%d`, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add(`p.price <= $%d`, *f.MaxPrice)
	}
	if f.OnlyActive {
		conds = append(conds, `p.is_active`)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func totalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
