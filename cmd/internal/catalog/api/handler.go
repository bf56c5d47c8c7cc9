// Package catalogapi exposes the product and category HTTP endpoints:
// authenticated category management, admin product management, and the public
// storefront listing.
package catalogapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ventasbros/cmd/identity"
	authapi "ventasbros/cmd/internal/auth/api"
	"ventasbros/cmd/internal/auth/session"
	"ventasbros/cmd/internal/catalog"
)

// Handler wires catalog HTTP endpoints to the product and category services.
type Handler struct {
	log        *slog.Logger
	maxBody    int64
	products   *catalog.ProductService
	categories *catalog.CategoryService
	sessions   *session.Service
}

// NewHandler constructs a catalog Handler.
func NewHandler(log *slog.Logger, maxBody int64, products *catalog.ProductService, categories *catalog.CategoryService, sessions *session.Service) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if products == nil || categories == nil || sessions == nil {
		return nil, errors.New("catalogapi: nil service")
	}
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &Handler{
		log:        log,
		maxBody:    maxBody,
		products:   products,
		categories: categories,
		sessions:   sessions,
	}, nil
}

// Register wires catalog routes onto the provided mux. Path names follow the
// established client contract.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}

	// Authenticated category management.
	mux.HandleFunc("/api/categories/getAllCategories", h.handleAllCategories)
	mux.HandleFunc("/api/categories/getActiveCategoriesTree", h.handleActiveCategories)
	mux.HandleFunc("/api/categories/getCategoryById/{id}", h.handleCategoryByID)
	mux.HandleFunc("/api/categories/getCategoriesByParent", h.handleCategoriesByParent)
	mux.HandleFunc("/api/categories/getCategoriesByParent/{parentId}", h.handleCategoriesByParent)
	mux.HandleFunc("/api/categories/createCategory", h.handleCreateCategory)
	mux.HandleFunc("/api/categories/updateCategoryById/{id}", h.handleUpdateCategory)
	mux.HandleFunc("/api/categories/deleteCategoryById/{id}", h.handleDeleteCategory)
	mux.HandleFunc("/api/categories/checkCategoryNameExists/{name}", h.handleCategoryNameExists)

	// Admin product management; reads are public.
	mux.HandleFunc("/api/products", h.handleProducts)
	mux.HandleFunc("/api/products/{id}", h.handleProductByID)

	// Public storefront.
	mux.HandleFunc("/catalog/searchProducts", h.handleCatalogSearch)
	mux.HandleFunc("/catalog/getAllProducts", h.handleCatalogList)
	mux.HandleFunc("/catalog/getProductById/{id}", h.handleCatalogProduct)
	mux.HandleFunc("/catalog/getAllCategories", h.handleCatalogCategories)
}

// ---- categories ----

func (h *Handler) handleAllCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := h.requireAuth(w, r); !ok {
		return
	}

	cats, err := h.categories.All(r.Context())
	if err != nil {
		h.fail(w, "catalog.categories.list.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *Handler) handleActiveCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := h.requireAuth(w, r); !ok {
		return
	}
	h.writeActiveCategories(w, r)
}

func (h *Handler) writeActiveCategories(w http.ResponseWriter, r *http.Request) {
	flat := queryBool(r, "flat")
	flatCats, tree, err := h.categories.Active(r.Context(), flat)
	if err != nil {
		h.fail(w, "catalog.categories.active.fail", err)
		return
	}
	if flat {
		writeJSON(w, http.StatusOK, flatCats)
		return
	}
	if tree == nil {
		tree = []*catalog.Category{}
	}
	writeJSON(w, http.StatusOK, tree)
}

func (h *Handler) handleCategoryByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := h.requireAuth(w, r); !ok {
		return
	}

	cat, err := h.categories.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "catalog.categories.get.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (h *Handler) handleCategoriesByParent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := h.requireAuth(w, r); !ok {
		return
	}

	var parentID *string
	if v := strings.TrimSpace(r.PathValue("parentId")); v != "" {
		parentID = &v
	}
	cats, err := h.categories.ByParent(r.Context(), parentID)
	if err != nil {
		h.fail(w, "catalog.categories.by_parent.fail", err)
		return
	}
	if cats == nil {
		cats = []catalog.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

type categoryRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
	IsActive bool    `json:"is_active"`
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.requireRole(w, r, identity.RoleAdmin) {
		return
	}

	var req categoryRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	cat, err := h.categories.Create(r.Context(), catalog.CreateCategoryInput{
		Name:     req.Name,
		ParentID: req.ParentID,
		IsActive: req.IsActive,
	})
	if err != nil {
		h.fail(w, "catalog.categories.create.fail", err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

func (h *Handler) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.requireRole(w, r, identity.RoleAdmin) {
		return
	}

	var req categoryRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	cat, err := h.categories.Update(r.Context(), r.PathValue("id"), catalog.UpdateCategoryInput{
		Name:     req.Name,
		ParentID: req.ParentID,
		IsActive: req.IsActive,
	})
	if err != nil {
		h.fail(w, "catalog.categories.update.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (h *Handler) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.requireRole(w, r, identity.RoleAdmin) {
		return
	}

	if err := h.categories.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, "catalog.categories.delete.fail", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCategoryNameExists(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := h.requireAuth(w, r); !ok {
		return
	}

	exists, err := h.categories.NameExists(r.Context(), r.PathValue("name"), r.URL.Query().Get("excludeId"))
	if err != nil {
		h.fail(w, "catalog.categories.name_exists.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

// ---- products ----

type productRequest struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Price       float64              `json:"price"`
	CategoryID  string               `json:"category_id"`
	IsActive    bool                 `json:"is_active"`
	Images      []catalog.ImageInput `json:"images,omitempty"`
}

func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		page, err := h.products.Paged(r.Context(), filterFromQuery(r))
		if err != nil {
			h.fail(w, "catalog.products.list.fail", err)
			return
		}
		writeJSON(w, http.StatusOK, page)

	case http.MethodPost:
		if !h.requireRole(w, r, identity.RoleAdmin) {
			return
		}
		var req productRequest
		if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
		p, err := h.products.Create(r.Context(), catalog.CreateProductInput{
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			CategoryID:  req.CategoryID,
			IsActive:    req.IsActive,
			Images:      req.Images,
		})
		if err != nil {
			h.fail(w, "catalog.products.create.fail", err)
			return
		}
		writeJSON(w, http.StatusCreated, p)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleProductByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		p, err := h.products.Get(r.Context(), id)
		if err != nil {
			h.fail(w, "catalog.products.get.fail", err)
			return
		}
		writeJSON(w, http.StatusOK, p)

	case http.MethodPut:
		if !h.requireRole(w, r, identity.RoleAdmin) {
			return
		}
		var req productRequest
		if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
		p, err := h.products.Update(r.Context(), id, catalog.UpdateProductInput{
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			CategoryID:  req.CategoryID,
			IsActive:    req.IsActive,
		})
		if err != nil {
			h.fail(w, "catalog.products.update.fail", err)
			return
		}
		writeJSON(w, http.StatusOK, p)

	case http.MethodDelete:
		if !h.requireRole(w, r, identity.RoleAdmin) {
			return
		}
		if err := h.products.Delete(r.Context(), id); err != nil {
			h.fail(w, "catalog.products.delete.fail", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ---- public storefront ----

type catalogSearchRequest struct {
	Search     string   `json:"search"`
	CategoryID string   `json:"category_id"`
	MinPrice   *float64 `json:"min_price"`
	MaxPrice   *float64 `json:"max_price"`
	Sort       string   `json:"sort"`
	Direction  string   `json:"direction"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
}

func (h *Handler) handleCatalogSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req catalogSearchRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	page, err := h.products.CatalogPaged(r.Context(), catalog.ProductFilter{
		Search:     req.Search,
		CategoryID: req.CategoryID,
		MinPrice:   req.MinPrice,
		MaxPrice:   req.MaxPrice,
		Sort:       req.Sort,
		Direction:  req.Direction,
		Page:       req.Page,
		PageSize:   req.PageSize,
	})
	if err != nil {
		h.fail(w, "catalog.search.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleCatalogList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	page, err := h.products.CatalogPaged(r.Context(), filterFromQuery(r))
	if err != nil {
		h.fail(w, "catalog.list.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleCatalogProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	p, err := h.products.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "catalog.product.fail", err)
		return
	}
	if !p.IsActive {
		// Storefront never exposes inactive products.
		writeError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleCatalogCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.writeActiveCategories(w, r)
}

// ---- helpers ----

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (session.Claims, bool) {
	if claims, ok := authapi.ClaimsFromContext(r.Context()); ok {
		return claims, true
	}

	tokenValue := bearerToken(r)
	if tokenValue == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return session.Claims{}, false
	}
	claims, err := h.sessions.Authenticate(r.Context(), time.Now().UTC(), tokenValue)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return session.Claims{}, false
	}
	return claims, true
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, role string) bool {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return false
	}
	if claims.Role != role {
		writeError(w, http.StatusForbidden, "forbidden", "insufficient role")
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, event string, err error) {
	switch {
	case catalog.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	case catalog.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case catalog.IsConflict(err):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		h.log.Error(event, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func filterFromQuery(r *http.Request) catalog.ProductFilter {
	q := r.URL.Query()
	f := catalog.ProductFilter{
		Search:     q.Get("search"),
		CategoryID: q.Get("categoryId"),
		Sort:       q.Get("sort"),
		Direction:  q.Get("direction"),
		OnlyActive: queryBool(r, "onlyActive"),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PageSize, _ = strconv.Atoi(q.Get("pageSize"))
	if v, err := strconv.ParseFloat(q.Get("minPrice"), 64); err == nil {
		f.MinPrice = &v
	}
	if v, err := strconv.ParseFloat(q.Get("maxPrice"), 64); err == nil {
		f.MaxPrice = &v
	}
	return f
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}
