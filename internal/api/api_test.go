package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/assetly/assetly/internal/db"
	"github.com/assetly/assetly/internal/engine"
	"github.com/assetly/assetly/internal/model"
)

const testJWTSecret = "test-secret"

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	database := db.NewTestDB(t)
	eng := &engine.Engine{DB: database}
	router := NewRouter(database, eng, testJWTSecret)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

// registerUser creates an account through the API and returns its token.
func registerUser(t *testing.T, server *httptest.Server, name, email string) string {
	t.Helper()

	body, _ := json.Marshal(map[string]string{
		"name":     name,
		"email":    email,
		"password": "password123",
	})
	resp, err := http.Post(server.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: %d", resp.StatusCode)
	}

	var reg struct {
		Token string `json:"token"`
	}
	json.NewDecoder(resp.Body).Decode(&reg)
	if reg.Token == "" {
		t.Fatal("empty token from register")
	}
	return reg.Token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do runs an authenticated request and fails the test on transport errors.
func do(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	req, err := authRequest(method, url, token, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestRegisterAndLogin(t *testing.T) {
	server := setupTestServer(t)

	registerUser(t, server, "Alice", "alice@example.com")

	// Duplicate email is refused.
	body, _ := json.Marshal(map[string]string{
		"name": "Alice Again", "email": "alice@example.com", "password": "password123",
	})
	resp, _ := http.Post(server.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Short password is refused.
	body, _ = json.Marshal(map[string]string{
		"name": "Bob", "email": "bob@example.com", "password": "short",
	})
	resp, _ = http.Post(server.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for short password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Login with the right password.
	body, _ = json.Marshal(map[string]string{"email": "alice@example.com", "password": "password123"})
	resp, _ = http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for login, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Login with the wrong password.
	body, _ = json.Marshal(map[string]string{"email": "alice@example.com", "password": "wrong-password"})
	resp, _ = http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnauthenticatedAccess(t *testing.T) {
	server := setupTestServer(t)

	resp, _ := http.Get(server.URL + "/api/items")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLendingFlowOverHTTP(t *testing.T) {
	server := setupTestServer(t)

	ownerToken := registerUser(t, server, "Owner", "owner@example.com")
	borrowerToken := registerUser(t, server, "Borrower", "borrower@example.com")

	// Owner creates an item.
	resp := do(t, "POST", server.URL+"/api/inventory", ownerToken, map[string]any{
		"name": "Soldering Iron", "quantity": 10,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("creating item: expected 201, got %d", resp.StatusCode)
	}
	item := decodeBody[model.Item](t, resp)

	// Borrower sees it in the catalog.
	resp = do(t, "GET", server.URL+"/api/items", borrowerToken, nil)
	items := decodeBody[[]model.Item](t, resp)
	if len(items) != 1 || items[0].OwnerName != "Owner" {
		t.Fatalf("catalog = %+v, want one item owned by Owner", items)
	}

	// Borrower requests 3 units.
	resp = do(t, "POST", server.URL+"/api/transactions/request", borrowerToken, map[string]any{
		"item_id":     item.ID,
		"quantity":    3,
		"reason":      "workshop",
		"return_date": time.Now().AddDate(0, 0, 7),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("requesting item: expected 201, got %d", resp.StatusCode)
	}
	txn := decodeBody[model.Transaction](t, resp)
	txnURL := server.URL + "/api/transactions/" + itoa(txn.ID)

	// The borrower cannot approve their own request.
	resp = do(t, "POST", txnURL+"/approve", borrowerToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("borrower approve: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Owner approves, then issues.
	resp = do(t, "POST", txnURL+"/approve", ownerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = do(t, "POST", txnURL+"/issue", ownerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("issue: expected 200, got %d", resp.StatusCode)
	}
	issued := decodeBody[model.Transaction](t, resp)
	if issued.Status != model.StatusIssued {
		t.Errorf("status = %q, want Issued", issued.Status)
	}

	// Stock moved from available to issued.
	resp = do(t, "GET", server.URL+"/api/inventory", ownerToken, nil)
	inventory := decodeBody[[]model.Item](t, resp)
	if inventory[0].AvailableQuantity != 7 || inventory[0].IssuedQuantity != 3 {
		t.Errorf("counters = (available=%d issued=%d), want (7, 3)",
			inventory[0].AvailableQuantity, inventory[0].IssuedQuantity)
	}

	// Both parties see the detail; a stranger does not.
	resp = do(t, "GET", txnURL, borrowerToken, nil)
	detail := decodeBody[map[string]any](t, resp)
	if isOwner, _ := detail["is_owner"].(bool); isOwner {
		t.Error("borrower detail reports is_owner = true")
	}

	strangerToken := registerUser(t, server, "Stranger", "stranger@example.com")
	resp = do(t, "GET", txnURL, strangerToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("stranger detail: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Owner takes the item back.
	resp = do(t, "POST", txnURL+"/return", ownerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("return: expected 200, got %d", resp.StatusCode)
	}
	returned := decodeBody[model.Transaction](t, resp)
	if returned.Status != model.StatusReturned {
		t.Errorf("status = %q, want Returned", returned.Status)
	}
	if len(returned.History) != 4 {
		t.Errorf("history length = %d, want 4", len(returned.History))
	}

	resp = do(t, "GET", server.URL+"/api/inventory", ownerToken, nil)
	inventory = decodeBody[[]model.Item](t, resp)
	if inventory[0].AvailableQuantity != 10 || inventory[0].IssuedQuantity != 0 {
		t.Errorf("counters after return = (available=%d issued=%d), want (10, 0)",
			inventory[0].AvailableQuantity, inventory[0].IssuedQuantity)
	}
}

func TestInventoryOwnershipOverHTTP(t *testing.T) {
	server := setupTestServer(t)

	ownerToken := registerUser(t, server, "Owner", "owner@example.com")
	otherToken := registerUser(t, server, "Other", "other@example.com")

	resp := do(t, "POST", server.URL+"/api/inventory", ownerToken, map[string]any{
		"name": "Multimeter", "quantity": 4,
	})
	item := decodeBody[model.Item](t, resp)
	itemURL := server.URL + "/api/inventory/" + itoa(item.ID)

	// Someone else cannot adjust or delete it.
	resp = do(t, "PUT", itemURL, otherToken, map[string]any{"quantity_delta": -1})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign update: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = do(t, "DELETE", itemURL, otherToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign delete: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The owner can.
	resp = do(t, "PUT", itemURL, ownerToken, map[string]any{"name": "Fluke Multimeter", "quantity_delta": 2})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner update: expected 200, got %d", resp.StatusCode)
	}
	updated := decodeBody[model.Item](t, resp)
	if updated.Name != "Fluke Multimeter" || updated.TotalQuantity != 6 {
		t.Errorf("updated = (%q, total=%d), want (Fluke Multimeter, 6)", updated.Name, updated.TotalQuantity)
	}

	resp = do(t, "DELETE", itemURL, ownerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("owner delete: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUrgentListOverHTTP(t *testing.T) {
	server := setupTestServer(t)

	ownerToken := registerUser(t, server, "Owner", "owner@example.com")
	borrowerToken := registerUser(t, server, "Borrower", "borrower@example.com")

	resp := do(t, "POST", server.URL+"/api/inventory", ownerToken, map[string]any{
		"name": "Oscilloscope", "quantity": 2,
	})
	item := decodeBody[model.Item](t, resp)

	// A pending request is urgent for both parties.
	resp = do(t, "POST", server.URL+"/api/transactions/request", borrowerToken, map[string]any{
		"item_id":     item.ID,
		"quantity":    1,
		"reason":      "lab session",
		"return_date": time.Now().AddDate(0, 0, 3),
	})
	txn := decodeBody[model.Transaction](t, resp)

	resp = do(t, "GET", server.URL+"/api/transactions/urgent", ownerToken, nil)
	urgent := decodeBody[[]model.Transaction](t, resp)
	if len(urgent) != 1 || urgent[0].ID != txn.ID {
		t.Fatalf("urgent list = %+v, want the pending request", urgent)
	}

	// Once rejected it disappears from the urgent view.
	resp = do(t, "POST", server.URL+"/api/transactions/"+itoa(txn.ID)+"/reject", ownerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = do(t, "GET", server.URL+"/api/transactions/urgent", ownerToken, nil)
	urgent = decodeBody[[]model.Transaction](t, resp)
	if len(urgent) != 0 {
		t.Errorf("urgent list after reject = %+v, want empty", urgent)
	}

	// The full list still shows it.
	resp = do(t, "GET", server.URL+"/api/transactions", borrowerToken, nil)
	all := decodeBody[[]model.Transaction](t, resp)
	if len(all) != 1 || all[0].Status != model.StatusRejected {
		t.Errorf("transaction list = %+v, want one Rejected entry", all)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
