package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory CategoryStore + ProductStore for unit tests.
// Error mapping mirrors the Postgres implementations.
type MemoryStore struct {
	mu         sync.Mutex
	categories map[string]*Category
	products   map[string]*Product
}

// NewMemoryStore creates an empty in-memory catalog store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		categories: make(map[string]*Category),
		products:   make(map[string]*Product),
	}
}

// ---- CategoryStore ----

func (s *MemoryStore) GetCategory(_ context.Context, id string) (Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCategoryLocked(id)
}

func (s *MemoryStore) getCategoryLocked(id string) (Category, error) {
	c, ok := s.categories[id]
	if !ok {
		return Category{}, OpError{Op: "catalog.GetCategory", Kind: ErrNotFound}
	}
	out := *c
	out.Children = nil
	if c.ParentID != nil {
		if p, ok := s.categories[*c.ParentID]; ok {
			out.ParentName = p.Name
		}
	}
	return out, nil
}

func (s *MemoryStore) ListCategories(_ context.Context) ([]Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCategoriesLocked(func(*Category) bool { return true }), nil
}

func (s *MemoryStore) ListActiveCategories(_ context.Context) ([]Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCategoriesLocked(func(c *Category) bool { return c.IsActive }), nil
}

func (s *MemoryStore) ListCategoriesByParent(_ context.Context, parentID *string) ([]Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCategoriesLocked(func(c *Category) bool {
		if parentID == nil {
			return c.ParentID == nil
		}
		return c.ParentID != nil && *c.ParentID == *parentID
	}), nil
}

func (s *MemoryStore) listCategoriesLocked(keep func(*Category) bool) []Category {
	var out []Category
	for id, c := range s.categories {
		if !keep(c) {
			continue
		}
		cat, _ := s.getCategoryLocked(id)
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *MemoryStore) CreateCategory(_ context.Context, id string, in CreateCategoryInput) (Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.categories {
		if normalizeName(c.Name) == normalizeName(in.Name) {
			return Category{}, OpError{Op: "catalog.CreateCategory", Kind: ErrConflict, Msg: "category name already exists"}
		}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	s.categories[id] = &Category{
		ID:        id,
		Name:      in.Name,
		ParentID:  in.ParentID,
		IsActive:  in.IsActive,
		CreatedAt: now,
	}
	return s.getCategoryLocked(id)
}

func (s *MemoryStore) UpdateCategory(_ context.Context, id string, in UpdateCategoryInput) (Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok {
		return Category{}, OpError{Op: "catalog.UpdateCategory", Kind: ErrNotFound}
	}
	for otherID, other := range s.categories {
		if otherID != id && normalizeName(other.Name) == normalizeName(in.Name) {
			return Category{}, OpError{Op: "catalog.UpdateCategory", Kind: ErrConflict, Msg: "category name already exists"}
		}
	}

	c.Name = in.Name
	c.ParentID = in.ParentID
	c.IsActive = in.IsActive
	return s.getCategoryLocked(id)
}

func (s *MemoryStore) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return OpError{Op: "catalog.DeleteCategory", Kind: ErrNotFound}
	}
	for _, p := range s.products {
		if p.CategoryID == id {
			return OpError{Op: "catalog.DeleteCategory", Kind: ErrConflict, Msg: "category is referenced"}
		}
	}
	delete(s.categories, id)
	return nil
}

func (s *MemoryStore) CategoryNameExists(_ context.Context, name, excludeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.categories {
		if id != excludeID && normalizeName(c.Name) == normalizeName(name) {
			return true, nil
		}
	}
	return false, nil
}

// ---- ProductStore ----

func (s *MemoryStore) GetProduct(_ context.Context, id string) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getProductLocked(id)
}

func (s *MemoryStore) getProductLocked(id string) (Product, error) {
	p, ok := s.products[id]
	if !ok {
		return Product{}, OpError{Op: "catalog.GetProduct", Kind: ErrNotFound}
	}
	out := *p
	out.Images = append([]Image{}, p.Images...)
	if c, ok := s.categories[p.CategoryID]; ok {
		out.CategoryName = c.Name
	}
	return out, nil
}

func (s *MemoryStore) ListProducts(_ context.Context, f ProductFilter) (ProductPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []Product
	for id, p := range s.products {
		if f.OnlyActive && !p.IsActive {
			continue
		}
		if f.CategoryID != "" && p.CategoryID != f.CategoryID {
			continue
		}
		if f.MinPrice != nil && p.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && p.Price > *f.MaxPrice {
			continue
		}
		if f.Search != "" {
			needle := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(p.Name), needle) &&
				!strings.Contains(strings.ToLower(p.Description), needle) {
				continue
			}
		}
		prod, _ := s.getProductLocked(id)
		matched = append(matched, prod)
	}

	asc := f.Direction == "asc"
	sort.Slice(matched, func(i, j int) bool {
		var less bool
		switch f.Sort {
		case "name":
			less = matched[i].Name < matched[j].Name
		case "price":
			less = matched[i].Price < matched[j].Price
		default:
			less = matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		if asc {
			return less
		}
		return !less
	})

	total := int64(len(matched))
	start := (f.Page - 1) * f.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + f.PageSize
	if end > len(matched) {
		end = len(matched)
	}

	items := matched[start:end]
	if items == nil {
		items = []Product{}
	}
	return ProductPage{
		Items:      items,
		TotalCount: total,
		Page:       f.Page,
		PageSize:   f.PageSize,
		TotalPages: totalPages(total, f.PageSize),
	}, nil
}

func (s *MemoryStore) CreateProduct(_ context.Context, id string, in CreateProductInput) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	images := make([]Image, 0, len(in.Images))
	for i, img := range in.Images {
		images = append(images, Image{
			ID:     fmt.Sprintf("%s-img-%d", id, i),
			URL:    img.URL,
			IsMain: img.IsMain,
		})
	}

	s.products[id] = &Product{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		CategoryID:  in.CategoryID,
		IsActive:    in.IsActive,
		CreatedAt:   now,
		Images:      images,
	}
	return s.getProductLocked(id)
}

func (s *MemoryStore) UpdateProduct(_ context.Context, id string, in UpdateProductInput) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return Product{}, OpError{Op: "catalog.UpdateProduct", Kind: ErrNotFound}
	}
	p.Name = in.Name
	p.Description = in.Description
	p.Price = in.Price
	p.CategoryID = in.CategoryID
	p.IsActive = in.IsActive
	return s.getProductLocked(id)
}

func (s *MemoryStore) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return OpError{Op: "catalog.DeleteProduct", Kind: ErrNotFound}
	}
	delete(s.products, id)
	return nil
}

func (s *MemoryStore) CountProductsInCategory(_ context.Context, categoryID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, p := range s.products {
		if p.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}
