package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/lokmanguedri/motivex/internal/catalog"
	"github.com/lokmanguedri/motivex/internal/storage"
	"github.com/lokmanguedri/motivex/internal/validation"
)

type CatalogStore interface {
	ListCategories(ctx context.Context, activeOnly bool) ([]catalog.Category, error)
	GetCategory(ctx context.Context, idOrSlug string) (catalog.Category, error)
	CreateCategory(ctx context.Context, in catalog.CategoryInput) (catalog.Category, error)
	UpdateCategory(ctx context.Context, id string, in catalog.CategoryInput) (catalog.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	ListProducts(ctx context.Context, f catalog.Filter) (catalog.Page, error)
	GetProduct(ctx context.Context, id string, includeHidden bool) (catalog.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (catalog.Product, error)
	CreateProduct(ctx context.Context, in catalog.ProductInput) (catalog.Product, error)
	UpdateProduct(ctx context.Context, id string, in catalog.ProductInput) (catalog.Product, error)
	SetImages(ctx context.Context, id string, in []catalog.ImageInput) (catalog.Product, error)
	DeleteProduct(ctx context.Context, id string) (soft bool, err error)
}

type CatalogHandler struct {
	Store     CatalogStore
	Uploads   storage.Store
	MaxUpload int64
	Log       zerolog.Logger
}

// categoryView and productView add the fields resolved for the requested
// language next to the fr/ar originals.
type categoryView struct {
	catalog.Category
	Name string `json:"name"`
}

type productView struct {
	catalog.Product
	Name        string `json:"name"`
	Description string `json:"description"`
	MainImage   string `json:"main_image,omitempty"`
}

type productPage struct {
	Items    []productView `json:"items"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

func viewProduct(p catalog.Product, l catalog.Lang) productView {
	if p.Images == nil {
		p.Images = []catalog.Image{}
	}
	return productView{Product: p, Name: p.Name(l), Description: p.Description(l), MainImage: p.MainImage()}
}

func viewPage(pg catalog.Page, l catalog.Lang) productPage {
	out := productPage{Items: make([]productView, 0, len(pg.Items)), Total: pg.Total, Page: pg.Page, PageSize: pg.PageSize}
	for _, p := range pg.Items {
		out.Items = append(out.Items, viewProduct(p, l))
	}
	return out
}

func requestLang(r *http.Request) catalog.Lang {
	if l := r.URL.Query().Get("lang"); l != "" {
		return catalog.ParseLang(l)
	}
	return catalog.ParseLang(r.Header.Get("Accept-Language"))
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/categories", h.listCategories)
	r.Get("/categories/{slug}", h.getCategory)
	r.Get("/products", h.listProducts)
	r.Get("/products/sku/{sku}", h.getProductBySKU)
	r.Get("/products/{id}", h.getProduct)
}

func (h *CatalogHandler) RegisterAdmin(r chi.Router) {
	r.Get("/categories", h.adminListCategories)
	r.Post("/categories", h.createCategory)
	r.Put("/categories/{id}", h.updateCategory)
	r.Delete("/categories/{id}", h.deleteCategory)

	r.Get("/products", h.adminListProducts)
	r.Post("/products", h.createProduct)
	r.Get("/products/{id}", h.adminGetProduct)
	r.Put("/products/{id}", h.updateProduct)
	r.Delete("/products/{id}", h.deleteProduct)
	r.Put("/products/{id}/images", h.setImages)

	r.Post("/uploads", h.upload)
}

func (h *CatalogHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	h.writeCategories(w, r, true)
}

func (h *CatalogHandler) adminListCategories(w http.ResponseWriter, r *http.Request) {
	h.writeCategories(w, r, false)
}

func (h *CatalogHandler) writeCategories(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	cs, err := h.Store.ListCategories(r.Context(), activeOnly)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	l := requestLang(r)
	out := make([]categoryView, 0, len(cs))
	for _, c := range cs {
		out = append(out, categoryView{Category: c, Name: c.Name(l)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) getCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.GetCategory(r.Context(), chi.URLParam(r, "slug"))
	if err == nil && !c.Active {
		err = catalog.ErrNotFound
	}
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, categoryView{Category: c, Name: c.Name(requestLang(r))})
}

func (h *CatalogHandler) createCategory(w http.ResponseWriter, r *http.Request) {
	var in catalog.CategoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := in.Normalize(); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	c, err := h.Store.CreateCategory(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CatalogHandler) updateCategory(w http.ResponseWriter, r *http.Request) {
	var in catalog.CategoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := in.Normalize(); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	c, err := h.Store.UpdateCategory(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CatalogHandler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	h.writeProducts(w, r, false)
}

func (h *CatalogHandler) adminListProducts(w http.ResponseWriter, r *http.Request) {
	h.writeProducts(w, r, true)
}

func (h *CatalogHandler) writeProducts(w http.ResponseWriter, r *http.Request, includeHidden bool) {
	f, err := parseProductFilter(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	f.IncludeHidden = includeHidden
	pg, err := h.Store.ListProducts(r.Context(), f)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, viewPage(pg, requestLang(r)))
}

func parseProductFilter(r *http.Request) (catalog.Filter, error) {
	q := r.URL.Query()
	f := catalog.Filter{
		CategorySlug: strings.TrimSpace(q.Get("category")),
		Brand:        strings.TrimSpace(q.Get("brand")),
		Model:        strings.TrimSpace(q.Get("model")),
		Query:        strings.TrimSpace(q.Get("q")),
		Sort:         catalog.Sort(q.Get("sort")),
	}
	var errs validation.Errors
	ints := []struct {
		name string
		dst  *int
	}{{"year", &f.Year}, {"page", &f.Page}, {"page_size", &f.PageSize}}
	for _, p := range ints {
		n, err := queryInt(r, p.name)
		if err != nil {
			errs = append(errs, validation.FieldError{Field: p.name, Rule: "number"})
			continue
		}
		*p.dst = n
	}
	prices := []struct {
		name string
		dst  **decimal.Decimal
	}{{"min_price", &f.MinPrice}, {"max_price", &f.MaxPrice}}
	for _, p := range prices {
		s := q.Get(p.name)
		if s == "" {
			continue
		}
		d, err := decimal.NewFromString(s)
		if err != nil || d.IsNegative() {
			errs = append(errs, validation.FieldError{Field: p.name, Rule: "decimal"})
			continue
		}
		*p.dst = &d
	}
	switch strings.ToLower(q.Get("in_stock")) {
	case "1", "true", "yes":
		f.InStock = true
	}
	if len(errs) > 0 {
		return f, errs
	}
	return f, nil
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProduct(r.Context(), chi.URLParam(r, "id"), false)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, viewProduct(p, requestLang(r)))
}

func (h *CatalogHandler) getProductBySKU(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProductBySKU(r.Context(), strings.ToUpper(chi.URLParam(r, "sku")))
	if err == nil && !p.Active {
		err = catalog.ErrNotFound
	}
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, viewProduct(p, requestLang(r)))
}

func (h *CatalogHandler) adminGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProduct(r.Context(), chi.URLParam(r, "id"), true)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, viewProduct(p, requestLang(r)))
}

func (h *CatalogHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p, err := h.Store.CreateProduct(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.Log.Info().Str("product_id", p.ID).Str("sku", p.SKU).Msg("product created")
	writeJSON(w, http.StatusCreated, viewProduct(p, requestLang(r)))
}

func (h *CatalogHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p, err := h.Store.UpdateProduct(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, viewProduct(p, requestLang(r)))
}

func (h *CatalogHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	soft, err := h.Store.DeleteProduct(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deactivated": soft})
}

func (h *CatalogHandler) setImages(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Images []catalog.ImageInput `json:"images" validate:"max=12,dive"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if body.Images == nil {
		body.Images = []catalog.ImageInput{}
	}
	if err := validation.Struct(&body); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p, err := h.Store.SetImages(r.Context(), chi.URLParam(r, "id"), body.Images)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, viewProduct(p, requestLang(r)))
}

// upload takes one multipart "file" field.
func (h *CatalogHandler) upload(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxUpload
	if limit <= 0 {
		limit = storage.DefaultMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+64<<10)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "multipart field \"file\" is required and must fit the size limit")
		return
	}
	defer file.Close()

	url, err := h.Uploads.Save(r.Context(), hdr.Filename, hdr.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.Log.Info().Str("name", hdr.Filename).Int64("size", hdr.Size).Str("url", url).Msg("image uploaded")
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}
