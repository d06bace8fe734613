// Package api exposes the lending system over a JSON HTTP API.
package api

import (
	"database/sql"
	"net/http"

	"github.com/assetly/assetly/internal/engine"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, eng *engine.Engine, jwtSecret string) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	itemsHandler := &ItemsHandler{DB: db}
	inventoryHandler := &InventoryHandler{DB: db}
	transactionsHandler := &TransactionsHandler{DB: db, Engine: eng}

	authMW := AuthMiddleware(jwtSecret)

	// Public: account creation and login.
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Item catalog (all authenticated users).
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("GET /api/items/{id}/transactions", authMW(http.HandlerFunc(itemsHandler.GetTransactions)))
	mux.Handle("PUT /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.UploadImage)))
	mux.Handle("GET /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.GetImage)))

	// The caller's own inventory.
	mux.Handle("GET /api/inventory", authMW(http.HandlerFunc(inventoryHandler.List)))
	mux.Handle("POST /api/inventory", authMW(http.HandlerFunc(inventoryHandler.Create)))
	mux.Handle("PUT /api/inventory/{id}", authMW(http.HandlerFunc(inventoryHandler.Update)))
	mux.Handle("DELETE /api/inventory/{id}", authMW(http.HandlerFunc(inventoryHandler.Delete)))

	// Lending lifecycle.
	mux.Handle("POST /api/transactions/request", authMW(http.HandlerFunc(transactionsHandler.Request)))
	mux.Handle("POST /api/transactions/assign", authMW(http.HandlerFunc(transactionsHandler.Assign)))
	mux.Handle("POST /api/transactions/{id}/approve", authMW(http.HandlerFunc(transactionsHandler.Approve)))
	mux.Handle("POST /api/transactions/{id}/reject", authMW(http.HandlerFunc(transactionsHandler.Reject)))
	mux.Handle("POST /api/transactions/{id}/issue", authMW(http.HandlerFunc(transactionsHandler.Issue)))
	mux.Handle("POST /api/transactions/{id}/return", authMW(http.HandlerFunc(transactionsHandler.Return)))
	mux.Handle("PUT /api/transactions/{id}/return-date", authMW(http.HandlerFunc(transactionsHandler.UpdateReturnDate)))
	mux.Handle("GET /api/transactions", authMW(http.HandlerFunc(transactionsHandler.List)))
	mux.Handle("GET /api/transactions/urgent", authMW(http.HandlerFunc(transactionsHandler.ListUrgent)))
	mux.Handle("GET /api/transactions/{id}", authMW(http.HandlerFunc(transactionsHandler.Get)))

	return mux
}
