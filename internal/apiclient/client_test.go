package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"restaurant-system/internal/models"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "Invalid username or password"})
			return
		}
		json.NewEncoder(w).Encode(models.LoginResponse{AccessToken: "tok", Role: models.RoleWaitress, FullName: "Maria"})
	})

	mux.HandleFunc("GET /menu", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "Authentication required"})
			return
		}
		json.NewEncoder(w).Encode([]models.MenuItem{{ID: "coffee", Price: decimal.RequireFromString("3.99")}})
	})

	mux.HandleFunc("POST /orders", func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TableNumber > 28 {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "table number must be between 1 and 28", "field": "table_number"})
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.Order{ID: "o1", TableNumber: req.TableNumber, Total: req.Total, Status: models.StatusPending})
	})

	mux.HandleFunc("PUT /orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req models.UpdateStatusRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(models.Order{ID: r.PathValue("id"), Status: req.Status})
	})

	mux.HandleFunc("GET /orders/kitchen", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]models.Order{{ID: "o1"}, {ID: "o2"}})
	})

	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /dashboard/stats", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginAndToken(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL+"/", time.Second)
	ctx := context.Background()

	if _, err := c.Login(ctx, "maria", "wrong"); !IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("Login(wrong) error = %v, want 401", err)
	}

	resp, err := c.Login(ctx, "maria", "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if _, err := c.Menu(ctx); !IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("Menu() without token error = %v", err)
	}

	authed := c.WithToken(resp.AccessToken)
	items, err := authed.Menu(ctx)
	if err != nil || len(items) != 1 {
		t.Fatalf("Menu() = %v, %v", items, err)
	}
	if c.Token() != "" {
		t.Errorf("WithToken mutated the original client")
	}

	if err := authed.Logout(ctx); err != nil {
		t.Errorf("Logout() error = %v", err)
	}
}

func TestCreateOrder(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, time.Second).WithToken("tok")

	order, err := c.CreateOrder(context.Background(), models.CreateOrderRequest{
		TableNumber: 5,
		Total:       decimal.RequireFromString("25.00"),
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if order.ID != "o1" || !order.Total.Equal(decimal.RequireFromString("25")) {
		t.Errorf("order = %+v", order)
	}

	_, err = c.CreateOrder(context.Background(), models.CreateOrderRequest{TableNumber: 40})
	var rerr *RemoteError
	if !errors.As(err, &rerr) {
		t.Fatalf("error = %v, want RemoteError", err)
	}
	if rerr.StatusCode != http.StatusBadRequest || rerr.Field != "table_number" || rerr.Detail != "table number must be between 1 and 28" {
		t.Errorf("RemoteError = %+v", rerr)
	}
}

func TestUpdateStatusAndLists(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, time.Second).WithToken("tok")
	ctx := context.Background()

	order, err := c.UpdateStatus(ctx, "o7", models.StatusReady)
	if err != nil || order.ID != "o7" || order.Status != models.StatusReady {
		t.Errorf("UpdateStatus() = %+v, %v", order, err)
	}

	orders, err := c.DepartmentOrders(ctx, models.Kitchen)
	if err != nil || len(orders) != 2 {
		t.Errorf("DepartmentOrders() = %v, %v", orders, err)
	}
}

func TestRemoteErrorPlainBody(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, time.Second)

	_, err := c.Stats(context.Background())
	var rerr *RemoteError
	if !errors.As(err, &rerr) || rerr.StatusCode != http.StatusBadGateway || rerr.Detail != "upstream down" {
		t.Errorf("error = %v", err)
	}
}

func TestTransportError(t *testing.T) {
	srv := newTestServer(t)
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second).Menu(context.Background())
	if err == nil {
		t.Fatal("expected transport error")
	}
	var rerr *RemoteError
	if errors.As(err, &rerr) {
		t.Errorf("transport failure reported as RemoteError: %v", err)
	}
}
