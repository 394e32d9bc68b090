package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/suanphol/fruitshop/internal/billing"
	"github.com/suanphol/fruitshop/internal/catalog"
	"github.com/suanphol/fruitshop/internal/inventory"
	"github.com/suanphol/fruitshop/internal/lifecycle"
	"github.com/suanphol/fruitshop/internal/notify"
	"github.com/suanphol/fruitshop/internal/orders"
	"github.com/suanphol/fruitshop/internal/payments"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeDomainError maps business errors to 4xx and everything else to a
// generic 500. Recoverable conflicts (stock race, stale status) are the
// caller's problem, not server faults.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, billing.ErrNotFound),
		errors.Is(err, notify.ErrNotFound),
		errors.Is(err, payments.ErrSlipNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, lifecycle.ErrNotOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, orders.ErrStale):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, lifecycle.ErrInvalidQuantity),
		errors.Is(err, lifecycle.ErrInvalidStatus),
		errors.Is(err, lifecycle.ErrIllegalTransition),
		errors.Is(err, lifecycle.ErrMissingShipping),
		errors.Is(err, lifecycle.ErrNoItems):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
