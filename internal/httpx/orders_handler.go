package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/suanphol/fruitshop/internal/lifecycle"
	"github.com/suanphol/fruitshop/internal/orders"
	"github.com/suanphol/fruitshop/internal/payments"
	"github.com/suanphol/fruitshop/internal/redisx"
)

// OrderReader is the slice of the orders store the handlers read through.
type OrderReader interface {
	GetByID(ctx context.Context, q orders.Querier, id int64) (orders.Order, error)
	GetStatus(ctx context.Context, id int64) (orders.Status, int64, error)
	ListByUser(ctx context.Context, userID int64) ([]orders.OrderSummary, error)
	ListAll(ctx context.Context) ([]orders.OrderSummary, error)
}

type OrdersHandler struct {
	Lifecycle *lifecycle.Service
	Orders    OrderReader
	QR        payments.QRGenerator // optional
	Redis     *redis.Client
}

// statusCacheEntry is the JSON stored under the status key. The owner id
// rides along so the fast path can enforce ownership without a DB read;
// responses expose only the status.
type statusCacheEntry struct {
	Status orders.Status `json:"status"`
	UserID int64         `json:"user_id"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listMyOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Post("/orders/{id}/confirm-payment", h.confirmPayment)
	r.Post("/orders/{id}/payment-slip", h.uploadPaymentSlip)
	if h.QR != nil {
		r.Get("/orders/{id}/qr", h.getOrderQR)
	}
	r.Get("/admin/orders", h.listAllOrders)
	r.Patch("/admin/orders/{id}/status", h.updateOrderStatus)
}

func orderID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req lifecycle.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Lifecycle.CreateOrder(ctx, id.UserID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	oid, err := orderID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.GetByID(ctx, nil, oid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !id.Admin() && o.UserID != id.UserID {
		writeError(w, http.StatusForbidden, "you can only view your own orders")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getOrderStatus serves the status poll: Redis fast path, DB fallback that
// refills the cache. Both paths check the caller owns the order.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	oid, err := orderID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, oid)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			var ent statusCacheEntry
			if json.Unmarshal([]byte(s), &ent) == nil && ent.Status != "" {
				if !id.Admin() && ent.UserID != id.UserID {
					writeError(w, http.StatusForbidden, "you can only view your own orders")
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"status": ent.Status})
				return
			}
		}
	}

	status, owner, err := h.Orders.GetStatus(ctx, oid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !id.Admin() && owner != id.UserID {
		writeError(w, http.StatusForbidden, "you can only view your own orders")
		return
	}
	if h.Redis != nil {
		body, _ := json.Marshal(statusCacheEntry{Status: status, UserID: owner})
		_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}

func (h *OrdersHandler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Orders.ListByUser(ctx, id.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Orders.ListAll(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	oid, err := orderID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req struct {
		Status orders.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Lifecycle.TransitionStatus(ctx, oid, req.Status, lifecycle.ActorAdmin)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	oid, err := orderID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Lifecycle.ConfirmPaymentByOwner(ctx, oid, id.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) uploadPaymentSlip(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	oid, err := orderID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req struct {
		Image  []byte          `json:"image_data"` // base64 in JSON
		Amount decimal.Decimal `json:"amount"`
		Notes  string          `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Image) == 0 {
		writeError(w, http.StatusBadRequest, "slip image is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := h.Lifecycle.UploadPaymentSlip(ctx, oid, id.UserID, req.Image, req.Amount, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

// getOrderQR returns the PromptPay QR for a pending order.
func (h *OrdersHandler) getOrderQR(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	oid, err := orderID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.GetByID(ctx, nil, oid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !id.Admin() && o.UserID != id.UserID {
		writeError(w, http.StatusForbidden, "you can only get QR codes for your own orders")
		return
	}
	if o.Status != orders.StatusPending {
		writeError(w, http.StatusBadRequest, "QR codes are only available for pending orders")
		return
	}

	qr, err := h.QR.Generate(o.TotalAmount, o.OrderNumber)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "qr generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":     o.ID,
		"order_number": o.OrderNumber,
		"amount":       o.TotalAmount,
		"payload":      qr.Payload,
		"qr_code":      qr.PNG, // base64 in JSON
	})
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o orders.Order) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	body, _ := json.Marshal(statusCacheEntry{Status: o.Status, UserID: o.UserID})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}
