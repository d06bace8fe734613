package api

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/assetly/assetly/internal/engine"
	"github.com/assetly/assetly/internal/model"
	"github.com/assetly/assetly/internal/store"
)

// TransactionsHandler exposes the lending lifecycle over HTTP. All state
// changes go through the engine; the handler only authenticates, decodes and
// maps errors.
type TransactionsHandler struct {
	DB     *sql.DB
	Engine *engine.Engine
}

type requestItemRequest struct {
	ItemID     int64     `json:"item_id"`
	Quantity   int       `json:"quantity"`
	Reason     string    `json:"reason"`
	ReturnDate time.Time `json:"return_date"`
}

type assignRequest struct {
	ItemID   int64  `json:"item_id"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

type returnDateRequest struct {
	ReturnDate time.Time `json:"return_date"`
}

// Request handles POST /api/transactions/request.
func (h *TransactionsHandler) Request(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req requestItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	txn, err := h.Engine.RequestItem(r.Context(), req.ItemID, claims.UserID, req.Quantity, req.Reason, req.ReturnDate)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, txn)
}

// Assign handles POST /api/transactions/assign.
func (h *TransactionsHandler) Assign(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	txn, err := h.Engine.AssignToProject(r.Context(), req.ItemID, claims.UserID, req.Quantity, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, txn)
}

// Approve handles POST /api/transactions/{id}/approve.
func (h *TransactionsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Engine.Approve)
}

// Reject handles POST /api/transactions/{id}/reject.
func (h *TransactionsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Engine.Reject)
}

// Issue handles POST /api/transactions/{id}/issue.
func (h *TransactionsHandler) Issue(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Engine.Issue)
}

// Return handles POST /api/transactions/{id}/return.
func (h *TransactionsHandler) Return(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Engine.Return)
}

// transition runs one of the owner-driven lifecycle moves that share the
// signature (ctx, transactionID, actorID).
func (h *TransactionsHandler) transition(w http.ResponseWriter, r *http.Request,
	move func(ctx context.Context, transactionID, actorID int64) (*model.Transaction, error)) {

	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	txn, err := move(r.Context(), id, claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, txn)
}

// UpdateReturnDate handles PUT /api/transactions/{id}/return-date.
func (h *TransactionsHandler) UpdateReturnDate(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var req returnDateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	txn, err := h.Engine.MoveReturnDate(r.Context(), id, claims.UserID, req.ReturnDate)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, txn)
}

// List handles GET /api/transactions: everything where the caller is owner
// or issuer, most recently updated first.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, nil)
}

// ListUrgent handles GET /api/transactions/urgent: overdue items and
// requests awaiting an owner action.
func (h *TransactionsHandler) ListUrgent(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, model.UrgentStatuses)
}

func (h *TransactionsHandler) list(w http.ResponseWriter, r *http.Request, statuses []model.Status) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	transactions, err := store.ListUserTransactions(r.Context(), h.DB, claims.UserID, statuses)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if transactions == nil {
		transactions = []model.Transaction{}
	}
	jsonResponse(w, http.StatusOK, transactions)
}

type historyView struct {
	Action      string `json:"action"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

// Get handles GET /api/transactions/{id}: the detail view with party names,
// the issuer's contact number and the formatted history. Only the two
// parties may see it.
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	txn, err := store.GetTransaction(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get transaction")
		return
	}
	if txn == nil {
		jsonError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if txn.OwnerID != claims.UserID && txn.IssuerID != claims.UserID {
		jsonError(w, http.StatusForbidden, "not authorized to view this transaction")
		return
	}

	txn.ItemName = "Unknown Item"
	if item, err := store.GetItem(r.Context(), h.DB, txn.ItemID); err == nil && item != nil {
		txn.ItemName = item.Name
	}

	txn.OwnerName = "Unknown"
	if owner, err := store.GetUser(r.Context(), h.DB, txn.OwnerID); err == nil && owner != nil {
		txn.OwnerName = owner.Name
	}

	txn.IssuerName = "Unknown"
	issuerContact := ""
	if issuer, err := store.GetUser(r.Context(), h.DB, txn.IssuerID); err == nil && issuer != nil {
		txn.IssuerName = issuer.Name
		issuerContact = issuer.ContactNumber
	}

	history := make([]historyView, 0, len(txn.History))
	for _, entry := range txn.History {
		history = append(history, historyView{
			Action:      entry.Action,
			Description: entry.Description,
			Date:        entry.CreatedAt.Format("02/01/2006"),
		})
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"transaction":    txn,
		"issuer_contact": issuerContact,
		"is_owner":       txn.OwnerID == claims.UserID,
		"history":        history,
	})
}
