package catalog

import (
	"context"
	"strings"
	"time"

	"ventasbros/cmd/identity/ids"
)

// CategoryService validates category operations on top of a CategoryStore.
// It consults the product store only to guard deletion.
type CategoryService struct {
	store    CategoryStore
	products ProductStore
}

// NewCategoryService builds a CategoryService.
func NewCategoryService(store CategoryStore, products ProductStore) *CategoryService {
	return &CategoryService{store: store, products: products}
}

// Active returns the active categories, as a flat list or arranged as a tree.
func (s *CategoryService) Active(ctx context.Context, flat bool) ([]Category, []*Category, error) {
	cats, err := s.store.ListActiveCategories(ctx)
	if err != nil {
		return nil, nil, err
	}
	if flat {
		return cats, nil, nil
	}
	return nil, BuildCategoryTree(cats), nil
}

// Get loads one category.
func (s *CategoryService) Get(ctx context.Context, id string) (Category, error) {
	return s.store.GetCategory(ctx, id)
}

// All returns every category, active or not.
func (s *CategoryService) All(ctx context.Context) ([]Category, error) {
	return s.store.ListCategories(ctx)
}

// ByParent returns the direct children of parentID; nil parentID selects roots.
func (s *CategoryService) ByParent(ctx context.Context, parentID *string) ([]Category, error) {
	return s.store.ListCategoriesByParent(ctx, parentID)
}

// NameExists reports whether a category name is taken, optionally excluding one id.
func (s *CategoryService) NameExists(ctx context.Context, name, excludeID string) (bool, error) {
	return s.store.CategoryNameExists(ctx, strings.TrimSpace(name), excludeID)
}

// Create adds a category after checking name uniqueness and, when a parent is
// given, that the parent exists and is active.
func (s *CategoryService) Create(ctx context.Context, in CreateCategoryInput) (Category, error) {
	const op = "catalog.CreateCategory"

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Category{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "name is required"}
	}

	taken, err := s.store.CategoryNameExists(ctx, in.Name, "")
	if err != nil {
		return Category{}, err
	}
	if taken {
		return Category{}, OpError{Op: op, Kind: ErrConflict, Msg: "category name already exists"}
	}

	if err := s.checkParent(ctx, op, in.ParentID); err != nil {
		return Category{}, err
	}

	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	id, err := ids.NewULID(in.Now)
	if err != nil {
		return Category{}, err
	}

	return s.store.CreateCategory(ctx, id, in)
}

// Update modifies a category. The new parent must not be the category itself
// or any of its descendants, or the hierarchy would cycle.
func (s *CategoryService) Update(ctx context.Context, id string, in UpdateCategoryInput) (Category, error) {
	const op = "catalog.UpdateCategory"

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Category{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "name is required"}
	}

	if _, err := s.store.GetCategory(ctx, id); err != nil {
		return Category{}, err
	}

	taken, err := s.store.CategoryNameExists(ctx, in.Name, id)
	if err != nil {
		return Category{}, err
	}
	if taken {
		return Category{}, OpError{Op: op, Kind: ErrConflict, Msg: "category name already exists"}
	}

	if in.ParentID != nil {
		if *in.ParentID == id {
			return Category{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "category cannot be its own parent"}
		}
		descendant, err := s.isDescendant(ctx, id, *in.ParentID)
		if err != nil {
			return Category{}, err
		}
		if descendant {
			return Category{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "new parent is a descendant"}
		}
		if err := s.checkParent(ctx, op, in.ParentID); err != nil {
			return Category{}, err
		}
	}

	return s.store.UpdateCategory(ctx, id, in)
}

// Delete removes a category with no products and no active children.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	const op = "catalog.DeleteCategory"

	if _, err := s.store.GetCategory(ctx, id); err != nil {
		return err
	}

	n, err := s.products.CountProductsInCategory(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return OpError{Op: op, Kind: ErrConflict, Msg: "category has products"}
	}

	children, err := s.store.ListCategoriesByParent(ctx, &id)
	if err != nil {
		return err
	}
	for _, c := range children {
		if c.IsActive {
			return OpError{Op: op, Kind: ErrConflict, Msg: "category has active subcategories"}
		}
	}

	return s.store.DeleteCategory(ctx, id)
}

func (s *CategoryService) checkParent(ctx context.Context, op string, parentID *string) error {
	if parentID == nil {
		return nil
	}
	parent, err := s.store.GetCategory(ctx, *parentID)
	if err != nil {
		if IsNotFound(err) {
			return OpError{Op: op, Kind: ErrInvalidInput, Msg: "parent category does not exist"}
		}
		return err
	}
	if !parent.IsActive {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "parent category is not active"}
	}
	return nil
}

// isDescendant walks candidate's ancestor chain looking for id.
func (s *CategoryService) isDescendant(ctx context.Context, id, candidate string) (bool, error) {
	cur := candidate
	for i := 0; i < 64; i++ { // hierarchy depth guard
		cat, err := s.store.GetCategory(ctx, cur)
		if err != nil {
			if IsNotFound(err) {
				return false, nil
			}
			return false, err
		}
		if cat.ParentID == nil {
			return false, nil
		}
		if *cat.ParentID == id {
			return true, nil
		}
		cur = *cat.ParentID
	}
	return true, nil
}
