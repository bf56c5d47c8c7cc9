package catalog

import (
	"context"
	"time"
)

// Product is a catalog entry plus its category name and images.
type Product struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Price        float64   `json:"price"`
	CategoryID   string    `json:"category_id"`
	CategoryName string    `json:"category_name"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	Images       []Image   `json:"images"`
}

// Image is a product image reference. At most one image per product is main.
type Image struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	IsMain bool   `json:"is_main"`
}

// ImageInput describes an image attached at product creation.
type ImageInput struct {
	URL    string `json:"url"`
	IsMain bool   `json:"is_main"`
}

// ProductFilter selects and orders a page of products for the admin listing.
type ProductFilter struct {
	Search     string
	CategoryID string
	MinPrice   *float64
	MaxPrice   *float64
	Sort       string // "name", "price", "createdAt"
	Direction  string // "asc", "desc"
	OnlyActive bool
	Page       int
	PageSize   int
}

// ProductPage is one page of a filtered listing.
type ProductPage struct {
	Items      []Product `json:"items"`
	TotalCount int64     `json:"total_count"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalPages int       `json:"total_pages"`
}

// CreateProductInput carries the fields for a new product.
type CreateProductInput struct {
	Name        string
	Description string
	Price       float64
	CategoryID  string
	IsActive    bool
	Images      []ImageInput

	// Now is injectable for tests; zero means time.Now().UTC().
	Now time.Time
}

// UpdateProductInput carries the mutable product fields.
type UpdateProductInput struct {
	Name        string
	Description string
	Price       float64
	CategoryID  string
	IsActive    bool
}

// ProductStore is the persistence boundary for products.
type ProductStore interface {
	GetProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context, f ProductFilter) (ProductPage, error)
	CreateProduct(ctx context.Context, id string, in CreateProductInput) (Product, error)
	UpdateProduct(ctx context.Context, id string, in UpdateProductInput) (Product, error)
	DeleteProduct(ctx context.Context, id string) error
	CountProductsInCategory(ctx context.Context, categoryID string) (int64, error)
}
