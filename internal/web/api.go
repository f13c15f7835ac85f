package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/billed-app/billed/internal/bill"
	"github.com/billed-app/billed/internal/logger"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encoding response", zap.Error(err))
	}
}

// handleAPIListBills returns every bill, or those of ?email= when given
func (s *Server) handleAPIListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := s.deps.Store.List(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		logger.Error("listing bills", zap.Error(err))
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if bills == nil {
		bills = []bill.Bill{}
	}
	writeJSON(w, http.StatusOK, bills)
}

func (s *Server) handleAPIGetBill(w http.ResponseWriter, r *http.Request) {
	b, err := s.deps.Store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, bill.ErrNotFound) {
		corsError(w, "Bill not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("getting bill", zap.Error(err))
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleAPIUpdateBill replaces a bill; this is how an administrator accepts or refuses it
func (s *Server) handleAPIUpdateBill(w http.ResponseWriter, r *http.Request) {
	var b bill.Bill
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&b); err != nil {
		corsError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	b.ID = r.PathValue("id")

	updated, err := s.deps.Store.Update(r.Context(), b)
	countEvent("update", err)
	switch {
	case errors.Is(err, bill.ErrNotFound):
		corsError(w, "Bill not found", http.StatusNotFound)
		return
	case errors.Is(err, bill.ErrInvalidBill):
		corsError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		logger.Error("updating bill", zap.String("id", b.ID), zap.Error(err))
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
