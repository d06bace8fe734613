package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/assetly/assetly/internal/auth"
	"github.com/assetly/assetly/internal/model"
	"github.com/assetly/assetly/internal/store"
)

// InventoryHandler manages the caller's own items: creation, stock
// adjustment and deletion. Ownership checks live here; the store does not
// know who is calling.
type InventoryHandler struct {
	DB *sql.DB
}

type createInventoryRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type updateInventoryRequest struct {
	Name          string `json:"name"`
	QuantityDelta int    `json:"quantity_delta"`
}

// List handles GET /api/inventory.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	items, err := store.ListItemsByOwner(r.Context(), h.DB, claims.UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list inventory")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/inventory.
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createInventoryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := store.CreateItem(r.Context(), h.DB, claims.UserID, req.Name, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("item created", "item", item.ID, "owner", claims.UserID, "quantity", item.TotalQuantity)
	jsonResponse(w, http.StatusCreated, item)
}

// Update handles PUT /api/inventory/{id}. It renames the item and/or shifts
// the stock level by quantity_delta.
func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	item, claims, ok := h.ownedItem(w, r)
	if !ok {
		return
	}

	var req updateInventoryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := store.UpdateItem(r.Context(), h.DB, item.ID, req.Name, req.QuantityDelta)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("item updated", "item", item.ID, "owner", claims.UserID, "delta", req.QuantityDelta)
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/inventory/{id}. Deletion is refused while any
// stock is out.
func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	item, claims, ok := h.ownedItem(w, r)
	if !ok {
		return
	}

	if err := store.DeleteItem(r.Context(), h.DB, item.ID); err != nil {
		writeError(w, err)
		return
	}

	slog.Info("item deleted", "item", item.ID, "owner", claims.UserID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// ownedItem loads the item from the path and verifies the caller owns it.
// On failure it writes the response and returns ok=false.
func (h *InventoryHandler) ownedItem(w http.ResponseWriter, r *http.Request) (*model.Item, *auth.Claims, bool) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return nil, nil, false
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return nil, nil, false
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return nil, nil, false
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return nil, nil, false
	}
	if item.OwnerID != claims.UserID {
		jsonError(w, http.StatusForbidden, "not your item")
		return nil, nil, false
	}
	return item, claims, true
}
