package api

import (
	"encoding/json"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/nerrad567/shopgate/internal/auth"
	"github.com/nerrad567/shopgate/internal/catalog"
)

// orderRequest is the request body for POST /orders.
type orderRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (req orderRequest) validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.ProductID, validation.Required),
		validation.Field(&req.Quantity, validation.Required, validation.Min(1)),
	)
}

// handleListOrders returns the caller's own orders.
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	orders, err := s.catalog.ListOrders(r.Context(), principal.Username)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	if orders == nil {
		orders = []catalog.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": orders,
		"count":  len(orders),
	})
}

// handlePlaceOrder buys a quantity of one product for the caller.
func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	order, err := s.catalog.PlaceOrder(r.Context(), principal.Username, req.ProductID, req.Quantity)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}
