package hrest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kardiguemagassa/paymybuddy/internal/repository/inmemory"
	"github.com/kardiguemagassa/paymybuddy/internal/service"
	"github.com/kardiguemagassa/paymybuddy/internal/usecase"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := inmemory.NewStore()
	locks := usecase.NewPairLocker(time.Second)
	log := zap.NewNop()
	fx := service.NewFXService()

	handler := NewLedgerRestHandler(
		usecase.NewAccountUsecase(store, log),
		usecase.NewTransactionUsecase(store, store, store, store, fx, locks, nil, nil, log),
		usecase.NewConnectionUsecase(store, store, locks, log),
		fx,
		log,
	)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, out
}

func createAccount(t *testing.T, srv *httptest.Server, email string) {
	t.Helper()
	resp, out := doJSON(t, http.MethodPost, srv.URL+"/api/accounts",
		map[string]string{"email": email, "name": email})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create %s: status %d (%v)", email, resp.StatusCode, out)
	}
}

func TestAccountEndpoints(t *testing.T) {
	srv := newTestServer(t)

	createAccount(t, srv, "alice@test.io")

	// Duplicate email conflicts.
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/accounts",
		map[string]string{"email": "alice@test.io", "name": "other"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate account: status %d, want 409", resp.StatusCode)
	}

	// Missing fields are rejected.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/accounts",
		map[string]string{"email": "not-an-email", "name": "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad email: status %d, want 400", resp.StatusCode)
	}

	resp, out := doJSON(t, http.MethodGet, srv.URL+"/api/accounts/alice@test.io/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get account: status %d", resp.StatusCode)
	}
	data := out["data"].(map[string]interface{})
	if data["balance"] != "0.00" {
		t.Errorf("new account balance = %v, want 0.00", data["balance"])
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/accounts/ghost@test.io/", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown account: status %d, want 404", resp.StatusCode)
	}
}

func TestTransferEndpoint(t *testing.T) {
	srv := newTestServer(t)
	createAccount(t, srv, "alice@test.io")
	createAccount(t, srv, "bob@test.io")

	topUp := func(email, amount string) {
		resp, out := doJSON(t, http.MethodPost, srv.URL+"/api/accounts/"+email+"/balance",
			map[string]string{"amount": amount})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("top up %s: status %d (%v)", email, resp.StatusCode, out)
		}
	}
	topUp("alice@test.io", "1000")

	transfer := map[string]string{
		"sender_email":   "alice@test.io",
		"receiver_email": "bob@test.io",
		"amount":         "100",
		"currency":       "USD",
		"description":    "lunch",
	}

	// Not connected yet.
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/transfers", transfer)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unconnected transfer: status %d, want 400", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/accounts/alice@test.io/connections",
		map[string]string{"peer_email": "bob@test.io"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add connection: status %d", resp.StatusCode)
	}

	resp, out := doJSON(t, http.MethodPost, srv.URL+"/api/transfers", transfer)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("transfer: status %d (%v)", resp.StatusCode, out)
	}
	data := out["data"].(map[string]interface{})
	if data["amount"] != "100.00" || data["currency"] != "USD" || data["fee"] != "0.43" {
		t.Errorf("transfer payload = %v", data)
	}

	// Display rounding only: 914.575 shows as 914.58.
	resp, out = doJSON(t, http.MethodGet, srv.URL+"/api/accounts/alice@test.io/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get sender: status %d", resp.StatusCode)
	}
	if bal := out["data"].(map[string]interface{})["balance"]; bal != "914.58" {
		t.Errorf("sender balance = %v, want 914.58", bal)
	}

	// Overdraw is rejected.
	transfer["amount"] = "5000"
	transfer["currency"] = "EUR"
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/transfers", transfer)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("overdraw: status %d, want 422", resp.StatusCode)
	}

	resp, out = doJSON(t, http.MethodGet, srv.URL+"/api/accounts/alice@test.io/transactions?limit=10", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history: status %d", resp.StatusCode)
	}
	page := out["data"].(map[string]interface{})
	if page["total"].(float64) != 1 {
		t.Errorf("history total = %v, want 1", page["total"])
	}
}

func TestConnectionEndpoints(t *testing.T) {
	srv := newTestServer(t)
	createAccount(t, srv, "alice@test.io")
	createAccount(t, srv, "bob@test.io")
	createAccount(t, srv, "carol@test.io")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/accounts/alice@test.io/connections",
		map[string]string{"peer_email": "bob@test.io"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add: status %d", resp.StatusCode)
	}

	// Duplicate edge conflicts.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/accounts/bob@test.io/connections",
		map[string]string{"peer_email": "alice@test.io"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate: status %d, want 409", resp.StatusCode)
	}

	// Self connection rejected.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/accounts/alice@test.io/connections",
		map[string]string{"peer_email": "alice@test.io"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("self: status %d, want 400", resp.StatusCode)
	}

	resp, out := doJSON(t, http.MethodGet, srv.URL+"/api/accounts/alice@test.io/connections", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d", resp.StatusCode)
	}
	if peers := out["data"].([]interface{}); len(peers) != 1 {
		t.Errorf("connections = %v, want one peer", peers)
	}

	resp, out = doJSON(t, http.MethodGet, srv.URL+"/api/accounts/alice@test.io/connections/potential", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("potential: status %d", resp.StatusCode)
	}
	if candidates := out["data"].([]interface{}); len(candidates) != 1 {
		t.Errorf("potential = %v, want just carol", candidates)
	}

	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/api/accounts/alice@test.io/connections",
		map[string]string{"old_peer_email": "bob@test.io", "new_peer_email": "carol@test.io"})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("replace: status %d", resp.StatusCode)
	}

	// Replacing an edge that is gone.
	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/api/accounts/alice@test.io/connections",
		map[string]string{"old_peer_email": "bob@test.io", "new_peer_email": "carol@test.io"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("replace missing: status %d, want 404", resp.StatusCode)
	}

	// Removal is idempotent.
	for i := 0; i < 2; i++ {
		resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/accounts/alice@test.io/connections/carol@test.io", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("remove #%d: status %d, want 200", i+1, resp.StatusCode)
		}
	}
}

func TestCurrenciesEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, out := doJSON(t, http.MethodGet, srv.URL+"/api/currencies", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("currencies: status %d", resp.StatusCode)
	}

	list := out["data"].([]interface{})
	if len(list) != 7 {
		t.Fatalf("currencies = %d entries, want 7", len(list))
	}
	first := list[0].(map[string]interface{})
	if first["code"] != "CNY" {
		t.Errorf("first currency = %v, want CNY (sorted)", first["code"])
	}
}

func TestRandomTopUpEndpoint(t *testing.T) {
	srv := newTestServer(t)
	createAccount(t, srv, "alice@test.io")

	resp, out := doJSON(t, http.MethodPost, srv.URL+"/api/accounts/alice@test.io/balance",
		map[string]interface{}{"random": true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("random top-up: status %d (%v)", resp.StatusCode, out)
	}
	data := out["data"].(map[string]interface{})
	if data["added"] == "" || data["balance"] == "" {
		t.Errorf("payload = %v, want added and balance", data)
	}

	// Rejected without amount or random flag.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/accounts/alice@test.io/balance",
		map[string]interface{}{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty top-up: status %d, want 400", resp.StatusCode)
	}
}
