package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/nerrad567/shopgate/internal/catalog"
)

const maxProductNameLength = 200

// productRequest is the request body for creating or replacing a product.
type productRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Stock       int    `json:"stock"`
}

func (req productRequest) validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, maxProductNameLength)),
		validation.Field(&req.Description, validation.Length(0, 2000)),
		validation.Field(&req.PriceCents, validation.Min(0)),
		validation.Field(&req.Stock, validation.Min(0)),
	)
}

// productPatch carries a partial update; nil fields are left unchanged.
type productPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	PriceCents  *int64  `json:"price_cents"`
	Stock       *int    `json:"stock"`
}

func (p productPatch) apply(product *catalog.Product) {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.PriceCents != nil {
		product.PriceCents = *p.PriceCents
	}
	if p.Stock != nil {
		product.Stock = *p.Stock
	}
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.ListProducts(r.Context())
	if err != nil {
		s.logger.Error("listing products", "error", err)
		writeInternalError(w, "failed to list products")
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"count":    len(products),
	})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	product := &catalog.Product{
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
	}
	if err := s.catalog.CreateProduct(r.Context(), product); err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

// handleUpdateProduct replaces every mutable field of a product.
func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	product, err := s.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	product.Name = req.Name
	product.Description = req.Description
	product.PriceCents = req.PriceCents
	product.Stock = req.Stock

	if err := s.catalog.UpdateProduct(r.Context(), product); err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *Server) handlePatchProduct(w http.ResponseWriter, r *http.Request) {
	var patch productPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	product, err := s.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	patch.apply(product)

	req := productRequest{
		Name:        product.Name,
		Description: product.Description,
		PriceCents:  product.PriceCents,
		Stock:       product.Stock,
	}
	if err := req.validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := s.catalog.UpdateProduct(r.Context(), product); err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeCatalogError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeCatalogError maps catalog errors to HTTP responses.
func (s *Server) writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		writeNotFound(w, "product not found")
	case errors.Is(err, catalog.ErrProductInUse):
		writeConflict(w, err.Error())
	case errors.Is(err, catalog.ErrInsufficientStock):
		writeConflict(w, err.Error())
	case errors.Is(err, catalog.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		s.logger.Error("catalog operation failed", "error", err)
		writeInternalError(w, "internal server error")
	}
}
