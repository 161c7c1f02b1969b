package api

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/erazemk/dustgatherer/internal/assets"
	"github.com/erazemk/dustgatherer/internal/imaging"
	"github.com/erazemk/dustgatherer/internal/model"
	"github.com/erazemk/dustgatherer/internal/store"
)

// ItemsHandler handles item CRUD endpoints.
type ItemsHandler struct {
	DB       *sql.DB
	Assets   *assets.Local
	Validate *validator.Validate
}

type itemRequest struct {
	Title             string              `json:"title" validate:"required,max=200"`
	Description       string              `json:"description" validate:"max=5000"`
	PurchasePrice     decimal.Decimal     `json:"purchase_price" validate:"gte=0"`
	SellingPrice      decimal.NullDecimal `json:"selling_price" validate:"omitempty,gte=0"`
	PurchaseDate      model.Date          `json:"purchase_date"`
	ScheduledPostDate *model.Date         `json:"scheduled_post_date"`
	PostedDate        *model.Date         `json:"posted_date"`
	SoldDate          *model.Date         `json:"sold_date"`
	PurchaseLocation  string              `json:"purchase_location" validate:"max=200"`
	Category          string              `json:"category" validate:"max=100"`
	Notes             string              `json:"notes" validate:"max=5000"`
}

// itemResponse adds the derived fields clients display.
type itemResponse struct {
	model.Item
	Status   string           `json:"status"`
	Profit   *decimal.Decimal `json:"profit,omitempty"`
	HasImage bool             `json:"has_image"`
}

func newItemResponse(item *model.Item) itemResponse {
	resp := itemResponse{Item: *item, Status: item.Status(), HasImage: item.HasImage()}
	if profit, ok := item.Profit(); ok {
		resp.Profit = &profit
	}
	return resp
}

func newItemResponses(items []model.Item) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for i := range items {
		out = append(out, newItemResponse(&items[i]))
	}
	return out
}

// decodeItem reads and validates an item request body.
func (h *ItemsHandler) decodeItem(w http.ResponseWriter, r *http.Request) (*itemRequest, bool) {
	var req itemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := h.Validate.Struct(&req); err != nil {
		jsonError(w, http.StatusBadRequest, validationMessage(err))
		return nil, false
	}
	if req.PurchaseDate.IsZero() {
		jsonError(w, http.StatusBadRequest, "purchase_date required")
		return nil, false
	}
	return &req, true
}

func (req *itemRequest) apply(item *model.Item) {
	item.Title = req.Title
	item.Description = req.Description
	item.PurchasePrice = req.PurchasePrice
	item.SellingPrice = req.SellingPrice
	item.PurchaseDate = req.PurchaseDate
	item.ScheduledPostDate = req.ScheduledPostDate
	item.PostedDate = req.PostedDate
	item.SoldDate = req.SoldDate
	item.PurchaseLocation = req.PurchaseLocation
	item.Category = req.Category
	item.Notes = req.Notes
}

// List handles GET /api/items. It accepts ?status= and ?q= filters.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	var (
		items []model.Item
		err   error
	)
	switch {
	case query != "":
		items, err = store.SearchItems(r.Context(), h.DB, query)
	case status != "" && !model.ValidStatus(status):
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	default:
		items, err = store.ListItemsByStatus(r.Context(), h.DB, status)
	}
	if err != nil {
		slog.Error("listing items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	jsonResponse(w, http.StatusOK, newItemResponses(items))
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeItem(w, r)
	if !ok {
		return
	}

	var item model.Item
	req.apply(&item)
	id, err := store.CreateItem(r.Context(), h.DB, &item)
	if err != nil {
		slog.Error("creating item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	created, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil || created == nil {
		jsonError(w, http.StatusInternalServerError, "failed to load item")
		return
	}
	slog.Info("item created", "id", id, "title", created.Title)
	jsonResponse(w, http.StatusCreated, newItemResponse(created))
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, ok := h.load(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, newItemResponse(item))
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	item, ok := h.load(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeItem(w, r)
	if !ok {
		return
	}

	req.apply(item)
	if err := store.UpdateItem(r.Context(), h.DB, item); err != nil {
		slog.Error("updating item", "id", item.ID, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update item")
		return
	}

	updated, err := store.GetItem(r.Context(), h.DB, item.ID)
	if err != nil || updated == nil {
		jsonError(w, http.StatusInternalServerError, "failed to load item")
		return
	}
	jsonResponse(w, http.StatusOK, newItemResponse(updated))
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	item, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := store.DeleteItem(r.Context(), h.DB, item.ID); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}
	if item.HasImage() {
		h.releaseImage(r.Context(), item.ID, *item.ImagePath)
	}

	slog.Info("item deleted", "id", item.ID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	item, ok := h.load(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadSize); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	photo, err := imaging.Normalize(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	path, err := h.Assets.Save(photo.Reader(), imaging.Ext)
	if err != nil {
		slog.Error("saving image", "id", item.ID, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}
	if err := store.SetItemImagePath(r.Context(), h.DB, item.ID, &path); err != nil {
		h.Assets.Delete(path)
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}
	if item.HasImage() && *item.ImagePath != path {
		h.releaseImage(r.Context(), item.ID, *item.ImagePath)
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "image uploaded",
		"width":   photo.Width,
		"height":  photo.Height,
	})
}

// GetImage handles GET /api/items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	item, ok := h.load(w, r)
	if !ok {
		return
	}
	if !item.HasImage() || !h.Assets.Exists(*item.ImagePath) {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	rc, err := h.Assets.Open(*item.ImagePath)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	defer rc.Close()

	w.Header().Set("Cache-Control", "private, max-age=3600")
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, filepath.Base(*item.ImagePath), item.UpdatedAt, rs)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	io.Copy(w, rc)
}

// DeleteImage handles DELETE /api/items/{id}/image.
func (h *ItemsHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	item, ok := h.load(w, r)
	if !ok {
		return
	}
	if !item.HasImage() {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}
	if err := store.SetItemImagePath(r.Context(), h.DB, item.ID, nil); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to remove image")
		return
	}
	h.releaseImage(r.Context(), item.ID, *item.ImagePath)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image removed"})
}

// releaseImage removes a stored image file once no item references it.
// Items restored from one archive entry share a file.
func (h *ItemsHandler) releaseImage(ctx context.Context, id int64, path string) {
	inUse, err := store.ImageInUse(ctx, h.DB, path)
	if err != nil {
		slog.Warn("checking image references", "id", id, "error", err)
		return
	}
	if inUse {
		return
	}
	if err := h.Assets.Delete(path); err != nil {
		slog.Warn("removing image file", "id", id, "path", path, "error", err)
	}
}

// load fetches the item named by the {id} path value, writing an error
// response when it cannot.
func (h *ItemsHandler) load(w http.ResponseWriter, r *http.Request) (*model.Item, bool) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("getting item", "id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return nil, false
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return nil, false
	}
	return item, true
}
