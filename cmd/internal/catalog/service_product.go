package catalog

import (
	"context"
	"strings"
	"time"

	"ventasbros/cmd/identity/ids"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// ProductService validates product operations on top of the stores.
type ProductService struct {
	products   ProductStore
	categories CategoryStore
}

// NewProductService builds a ProductService.
func NewProductService(products ProductStore, categories CategoryStore) *ProductService {
	return &ProductService{products: products, categories: categories}
}

// Get loads one product with its images and category name.
func (s *ProductService) Get(ctx context.Context, id string) (Product, error) {
	return s.products.GetProduct(ctx, id)
}

// Paged is the admin listing: every filter field is honored as given.
func (s *ProductService) Paged(ctx context.Context, f ProductFilter) (ProductPage, error) {
	return s.products.ListProducts(ctx, normalizeFilter(f))
}

// CatalogPaged is the storefront listing: only active products, regardless of
// what the caller asked for.
func (s *ProductService) CatalogPaged(ctx context.Context, f ProductFilter) (ProductPage, error) {
	f.OnlyActive = true
	return s.products.ListProducts(ctx, normalizeFilter(f))
}

// Create adds a product after validating its fields and that the target
// category exists and is active.
func (s *ProductService) Create(ctx context.Context, in CreateProductInput) (Product, error) {
	const op = "catalog.CreateProduct"

	if err := s.validate(ctx, op, in.Name, in.Price, in.CategoryID); err != nil {
		return Product{}, err
	}
	in.Name = strings.TrimSpace(in.Name)

	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	id, err := ids.NewULID(in.Now)
	if err != nil {
		return Product{}, err
	}

	return s.products.CreateProduct(ctx, id, in)
}

// Update modifies a product with the same validation as Create.
func (s *ProductService) Update(ctx context.Context, id string, in UpdateProductInput) (Product, error) {
	const op = "catalog.UpdateProduct"

	if err := s.validate(ctx, op, in.Name, in.Price, in.CategoryID); err != nil {
		return Product{}, err
	}
	in.Name = strings.TrimSpace(in.Name)

	return s.products.UpdateProduct(ctx, id, in)
}

// Delete removes a product.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	return s.products.DeleteProduct(ctx, id)
}

func (s *ProductService) validate(ctx context.Context, op, name string, price float64, categoryID string) error {
	if strings.TrimSpace(name) == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "name is required"}
	}
	if price < 0 {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "price cannot be negative"}
	}
	if categoryID == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "category_id is required"}
	}

	cat, err := s.categories.GetCategory(ctx, categoryID)
	if err != nil {
		if IsNotFound(err) {
			return OpError{Op: op, Kind: ErrInvalidInput, Msg: "category does not exist"}
		}
		return err
	}
	if !cat.IsActive {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "category is not active"}
	}
	return nil
}

func normalizeFilter(f ProductFilter) ProductFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}

	switch f.Sort {
	case "name", "price", "createdAt":
	default:
		f.Sort = "createdAt"
	}
	switch strings.ToLower(f.Direction) {
	case "asc", "desc":
		f.Direction = strings.ToLower(f.Direction)
	default:
		f.Direction = "desc"
	}

	f.Search = strings.TrimSpace(f.Search)
	return f
}
