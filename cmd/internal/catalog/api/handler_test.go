package catalogapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ventasbros/cmd/internal/auth/session"
	"ventasbros/cmd/internal/catalog"
)

type testEnv struct {
	mux      *http.ServeMux
	store    *catalog.MemoryStore
	sessions *session.Service

	adminToken    string
	customerToken string
}

type staticPrincipals map[string]session.Principal

func (s staticPrincipals) FindPrincipalByID(_ context.Context, id string) (session.Principal, error) {
	p, ok := s[id]
	if !ok {
		return session.Principal{}, session.ErrPrincipalUnavailable
	}
	return p, nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	admin := session.Principal{ID: "u-admin", Username: "root", Email: "root@example.com", Role: "Admin", Active: true}
	customer := session.Principal{ID: "u-cust", Username: "buyer", Email: "buyer@example.com", Role: "Customer", Active: true}

	cfg := session.DefaultConfig()
	cfg.SigningKey = []byte("0123456789abcdef0123456789abcdef")
	codec, err := session.NewHS256Codec(cfg)
	if err != nil {
		t.Fatalf("NewHS256Codec: %v", err)
	}
	sessions := session.NewService(cfg, session.NewMemoryStore(), codec,
		staticPrincipals{admin.ID: admin, customer.ID: customer})

	now := time.Now().UTC()
	adminTok, err := sessions.Issue(context.Background(), now, admin)
	if err != nil {
		t.Fatalf("issue admin token: %v", err)
	}
	custTok, err := sessions.Issue(context.Background(), now, customer)
	if err != nil {
		t.Fatalf("issue customer token: %v", err)
	}

	store := catalog.NewMemoryStore()
	products := catalog.NewProductService(store, store)
	categories := catalog.NewCategoryService(store, store)

	h, err := NewHandler(nil, 1<<20, products, categories, sessions)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	mux := http.NewServeMux()
	h.Register(mux)

	return &testEnv{
		mux:           mux,
		store:         store,
		sessions:      sessions,
		adminToken:    adminTok.Token,
		customerToken: custTok.Token,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) mustCreateCategory(t *testing.T, body string) catalog.Category {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/categories/createCategory", body, e.adminToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var c catalog.Category
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatalf("decode category: %v", err)
	}
	return c
}

func TestCategoryEndpoints_AuthRequired(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/categories/getAllCategories", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/api/categories/getAllCategories", "", e.customerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("customer read status = %d", rec.Code)
	}
}

func TestCategoryEndpoints_RoleGating(t *testing.T) {
	e := newTestEnv(t)

	body := `{"name":"Electronics","is_active":true}`
	rec := e.do(t, http.MethodPost, "/api/categories/createCategory", body, e.customerToken)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("customer create status = %d", rec.Code)
	}

	c := e.mustCreateCategory(t, body)
	if c.Name != "Electronics" || !c.IsActive {
		t.Fatalf("created = %+v", c)
	}

	// Duplicate name conflicts.
	rec = e.do(t, http.MethodPost, "/api/categories/createCategory", `{"name":"electronics","is_active":true}`, e.adminToken)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d", rec.Code)
	}
}

func TestCategoryTreeEndpoint(t *testing.T) {
	e := newTestEnv(t)

	root := e.mustCreateCategory(t, `{"name":"Electronics","is_active":true}`)
	e.mustCreateCategory(t, `{"name":"Phones","parent_id":"`+root.ID+`","is_active":true}`)
	e.mustCreateCategory(t, `{"name":"Archive","is_active":false}`)

	rec := e.do(t, http.MethodGet, "/api/categories/getActiveCategoriesTree", "", e.customerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("tree status = %d", rec.Code)
	}
	var tree []catalog.Category
	if err := json.Unmarshal(rec.Body.Bytes(), &tree); err != nil {
		t.Fatalf("decode tree: %v", err)
	}
	if len(tree) != 1 || tree[0].Name != "Electronics" || len(tree[0].Children) != 1 {
		t.Fatalf("tree shape = %+v", tree)
	}

	rec = e.do(t, http.MethodGet, "/api/categories/getActiveCategoriesTree?flat=true", "", e.customerToken)
	var flat []catalog.Category
	if err := json.Unmarshal(rec.Body.Bytes(), &flat); err != nil {
		t.Fatalf("decode flat: %v", err)
	}
	if len(flat) != 2 {
		t.Fatalf("flat = %d, want 2", len(flat))
	}

	// The storefront mirror is public.
	rec = e.do(t, http.MethodGet, "/catalog/getAllCategories", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("public categories status = %d", rec.Code)
	}
}

func TestCategoryNameExistsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	c := e.mustCreateCategory(t, `{"name":"Electronics","is_active":true}`)

	rec := e.do(t, http.MethodGet, "/api/categories/checkCategoryNameExists/ELECTRONICS", "", e.customerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp["exists"] {
		t.Fatalf("exists = false, want true")
	}

	rec = e.do(t, http.MethodGet, "/api/categories/checkCategoryNameExists/Electronics?excludeId="+c.ID, "", e.customerToken)
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["exists"] {
		t.Fatalf("exclusion not honored")
	}
}

func TestProductEndpoints(t *testing.T) {
	e := newTestEnv(t)
	c := e.mustCreateCategory(t, `{"name":"Electronics","is_active":true}`)

	body := `{"name":"Pixel 9","description":"phone","price":799,"category_id":"` + c.ID + `","is_active":true,` +
		`"images":[{"url":"https://cdn.example.com/p.jpg","is_main":true}]}`

	rec := e.do(t, http.MethodPost, "/api/products", body, e.customerToken)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("customer create status = %d", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/products", body, e.adminToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var p catalog.Product
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if p.CategoryName != "Electronics" || len(p.Images) != 1 {
		t.Fatalf("product = %+v", p)
	}

	// Public read.
	rec = e.do(t, http.MethodGet, "/api/products/"+p.ID, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	rec = e.do(t, http.MethodGet, "/api/products/missing", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing get status = %d", rec.Code)
	}

	// Update, then hide it and check the storefront stops serving it.
	update := `{"name":"Pixel 9","description":"phone","price":749,"category_id":"` + c.ID + `","is_active":false}`
	rec = e.do(t, http.MethodPut, "/api/products/"+p.ID, update, e.adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}
	rec = e.do(t, http.MethodGet, "/catalog/getProductById/"+p.ID, "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("storefront inactive product status = %d", rec.Code)
	}

	rec = e.do(t, http.MethodDelete, "/api/products/"+p.ID, "", e.adminToken)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
}

func TestStorefrontSearch(t *testing.T) {
	e := newTestEnv(t)
	c := e.mustCreateCategory(t, `{"name":"Electronics","is_active":true}`)

	for _, item := range []string{
		`{"name":"Pixel","price":799,"category_id":"` + c.ID + `","is_active":true}`,
		`{"name":"Keyboard","price":59,"category_id":"` + c.ID + `","is_active":true}`,
		`{"name":"Prototype","price":1,"category_id":"` + c.ID + `","is_active":false}`,
	} {
		rec := e.do(t, http.MethodPost, "/api/products", item, e.adminToken)
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed product status = %d", rec.Code)
		}
	}

	rec := e.do(t, http.MethodPost, "/catalog/searchProducts", `{"search":"pixel"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d", rec.Code)
	}
	var page catalog.ProductPage
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.TotalCount != 1 || page.Items[0].Name != "Pixel" {
		t.Fatalf("search page = %+v", page)
	}

	// Inactive products never show up in the storefront listing.
	rec = e.do(t, http.MethodGet, "/catalog/getAllProducts", "", "")
	_ = json.Unmarshal(rec.Body.Bytes(), &page)
	if page.TotalCount != 2 {
		t.Fatalf("storefront total = %d, want 2", page.TotalCount)
	}
}

func TestProductValidationErrors(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/products", `{"name":"X","price":10,"category_id":"missing"}`, e.adminToken)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing category status = %d", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/products", `{not json`, e.adminToken)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d", rec.Code)
	}
}
