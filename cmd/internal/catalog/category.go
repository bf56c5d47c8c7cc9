package catalog

import (
	"context"
	"sort"
	"time"
)

// Category is a catalog category. ParentID is nil for roots. Children is only
// populated by the tree builder.
type Category struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	ParentID   *string     `json:"parent_id,omitempty"`
	ParentName string      `json:"parent_name,omitempty"`
	IsActive   bool        `json:"is_active"`
	CreatedAt  time.Time   `json:"created_at"`
	Children   []*Category `json:"children,omitempty"`
}

// CreateCategoryInput carries the fields for a new category.
type CreateCategoryInput struct {
	Name     string
	ParentID *string
	IsActive bool

	// Now is injectable for tests; zero means time.Now().UTC().
	Now time.Time
}

// UpdateCategoryInput carries the mutable category fields.
type UpdateCategoryInput struct {
	Name     string
	ParentID *string
	IsActive bool
}

// CategoryStore is the persistence boundary for categories.
type CategoryStore interface {
	GetCategory(ctx context.Context, id string) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	ListActiveCategories(ctx context.Context) ([]Category, error)
	ListCategoriesByParent(ctx context.Context, parentID *string) ([]Category, error)
	CreateCategory(ctx context.Context, id string, in CreateCategoryInput) (Category, error)
	UpdateCategory(ctx context.Context, id string, in UpdateCategoryInput) (Category, error)
	DeleteCategory(ctx context.Context, id string) error
	CategoryNameExists(ctx context.Context, name, excludeID string) (bool, error)
}

// BuildCategoryTree arranges a flat category list into a name-sorted forest.
// A child whose parent is absent from the input (e.g. an active child of an
// inactive parent) is promoted to a root so it stays reachable.
func BuildCategoryTree(flat []Category) []*Category {
	nodes := make(map[string]*Category, len(flat))
	for i := range flat {
		c := flat[i]
		c.Children = nil
		nodes[c.ID] = &c
	}

	var roots []*Category
	for _, n := range nodes {
		if n.ParentID != nil {
			if parent, ok := nodes[*n.ParentID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}

	var sortTree func(cs []*Category)
	sortTree = func(cs []*Category) {
		sort.Slice(cs, func(i, j int) bool { return cs[i].Name < cs[j].Name })
		for _, c := range cs {
			sortTree(c.Children)
		}
	}
	sortTree(roots)

	return roots
}
