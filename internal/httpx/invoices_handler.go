package httpx

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/suanphol/fruitshop/internal/billing"
	"github.com/suanphol/fruitshop/internal/orders"
)

type InvoicesHandler struct {
	Invoices *billing.Store
	Orders   *orders.Store
	PDF      billing.PDFRenderer // optional
}

func (h *InvoicesHandler) Register(r *chi.Mux) {
	r.Get("/invoices", h.listMyInvoices)
	r.Get("/invoices/{id}", h.getInvoice)
	r.Get("/orders/{orderId}/invoice", h.getInvoiceByOrder)
	r.Get("/admin/invoices", h.listAllInvoices)
	if h.PDF != nil {
		r.Get("/invoices/{id}/pdf", h.downloadPDF)
	}
}

func (h *InvoicesHandler) listMyInvoices(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Invoices.ListByUser(ctx, id.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *InvoicesHandler) listAllInvoices(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Invoices.ListAll(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// loadOwnedInvoice fetches an invoice and enforces that non-admin callers
// only see their own.
func (h *InvoicesHandler) loadOwnedInvoice(ctx context.Context, w http.ResponseWriter, r *http.Request, byOrder bool) (billing.Invoice, bool) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return billing.Invoice{}, false
	}

	param := "id"
	if byOrder {
		param = "orderId"
	}
	n, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return billing.Invoice{}, false
	}

	var inv billing.Invoice
	if byOrder {
		inv, err = h.Invoices.GetByOrderID(ctx, n)
	} else {
		inv, err = h.Invoices.GetByID(ctx, n)
	}
	if err != nil {
		writeDomainError(w, err)
		return billing.Invoice{}, false
	}
	if !id.Admin() && inv.UserID != id.UserID {
		writeError(w, http.StatusForbidden, "you can only view your own invoices")
		return billing.Invoice{}, false
	}
	return inv, true
}

func (h *InvoicesHandler) getInvoice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	inv, ok := h.loadOwnedInvoice(ctx, w, r, false)
	if !ok {
		return
	}
	items, err := h.Orders.Items(ctx, nil, inv.OrderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": inv, "items": items})
}

func (h *InvoicesHandler) getInvoiceByOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	inv, ok := h.loadOwnedInvoice(ctx, w, r, true)
	if !ok {
		return
	}
	items, err := h.Orders.Items(ctx, nil, inv.OrderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": inv, "items": items})
}

func (h *InvoicesHandler) downloadPDF(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	inv, ok := h.loadOwnedInvoice(ctx, w, r, false)
	if !ok {
		return
	}
	items, err := h.Orders.Items(ctx, nil, inv.OrderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	doc, err := h.PDF.Render(inv, items)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "pdf rendering failed")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%s.pdf", inv.InvoiceNumber))
	_, _ = w.Write(doc)
}
