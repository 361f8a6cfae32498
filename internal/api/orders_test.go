package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/nerrad567/shopgate/internal/auth"
	"github.com/nerrad567/shopgate/internal/catalog"
)

func TestPlaceOrder(t *testing.T) {
	env := testServer(t)
	p := env.addProduct(t, "Kettle", 2999, 3)
	alice := env.token(t, "alice", auth.RoleUser)

	w := env.do(t, http.MethodPost, "/orders", alice, orderRequest{ProductID: p.ID, Quantity: 2})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", w.Code, w.Body.String())
	}
	var order catalog.Order
	if err := json.Unmarshal(w.Body.Bytes(), &order); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if order.Username != "alice" {
		t.Errorf("order username = %q, want alice", order.Username)
	}
	if order.TotalCents != 2*2999 {
		t.Errorf("total = %d, want %d", order.TotalCents, 2*2999)
	}

	got, err := env.catalog.GetProduct(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetProduct() error: %v", err)
	}
	if got.Stock != 1 {
		t.Errorf("stock = %d, want 1", got.Stock)
	}
}

func TestPlaceOrder_Errors(t *testing.T) {
	env := testServer(t)
	p := env.addProduct(t, "Kettle", 2999, 1)
	alice := env.token(t, "alice", auth.RoleUser)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"invalid json", "{", http.StatusBadRequest},
		{"missing product", orderRequest{Quantity: 1}, http.StatusBadRequest},
		{"zero quantity", orderRequest{ProductID: p.ID}, http.StatusBadRequest},
		{"negative quantity", orderRequest{ProductID: p.ID, Quantity: -1}, http.StatusBadRequest},
		{"unknown product", orderRequest{ProductID: "prd-missing", Quantity: 1}, http.StatusNotFound},
		{"insufficient stock", orderRequest{ProductID: p.ID, Quantity: 5}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/orders", alice, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestListOrders_OnlyCallersOrders(t *testing.T) {
	env := testServer(t)
	p := env.addProduct(t, "Kettle", 2999, 10)
	ctx := context.Background()

	for _, user := range []string{"alice", "alice", "bob"} {
		if _, err := env.catalog.PlaceOrder(ctx, user, p.ID, 1); err != nil {
			t.Fatalf("PlaceOrder(%s) error: %v", user, err)
		}
	}

	w := env.do(t, http.MethodGet, "/orders", env.token(t, "alice", auth.RoleUser), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Orders []catalog.Order `json:"orders"`
		Count  int             `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}
	for _, o := range resp.Orders {
		if o.Username != "alice" {
			t.Errorf("order %s belongs to %q", o.ID, o.Username)
		}
	}
}
