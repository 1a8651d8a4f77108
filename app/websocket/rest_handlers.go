package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"CafePos/app/errs"
	"CafePos/app/models"
	"CafePos/app/money"
	"CafePos/app/services"
	"CafePos/app/store"
)

// RESTHandlers exposes the engine over HTTP for kitchen tablets and the
// counter terminal. Carts are per-terminal state and stay client side; the
// API covers everything after checkout plus lookups.
type RESTHandlers struct {
	orders   *services.OrderService
	drawers  *services.DrawerService
	printer  *services.PrinterService
	loyalty  *services.LoyaltyService
	catalog  store.CatalogStore
	notifier *services.NotificationService
}

// NewRESTHandlers creates the REST handler set. printer and notifier may be
// nil; the print endpoints then report the printer as disconnected, and
// ready events are simply not pushed.
func NewRESTHandlers(orders *services.OrderService, drawers *services.DrawerService, printer *services.PrinterService, loyalty *services.LoyaltyService, catalog store.CatalogStore, notifier *services.NotificationService) *RESTHandlers {
	return &RESTHandlers{
		orders:   orders,
		drawers:  drawers,
		printer:  printer,
		loyalty:  loyalty,
		catalog:  catalog,
		notifier: notifier,
	}
}

// Register mounts all API routes on the mux.
func (h *RESTHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/menu", h.HandleMenu)
	mux.HandleFunc("/api/orders", h.HandleOrders)
	mux.HandleFunc("/api/orders/", h.HandleOrderByID)
	mux.HandleFunc("/api/drawer/open", h.HandleDrawerOpen)
	mux.HandleFunc("/api/drawer/close", h.HandleDrawerClose)
	mux.HandleFunc("/api/drawer", h.HandleDrawerCurrent)
	mux.HandleFunc("/api/customers/", h.HandleCustomerByID)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("encode response")
	}
}

// writeError maps engine error kinds to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case errs.KindEmptyCart, errs.KindMissingTable, errs.KindInvalidItem:
		status = http.StatusBadRequest
	case errs.KindPaymentMismatch:
		status = http.StatusUnprocessableEntity
	case errs.KindInvalidTransition, errs.KindOrderNotActive, errs.KindAlreadyCompleted,
		errs.KindDrawerAlreadyOpen, errs.KindAlreadyClosed, errs.KindInsufficientPoints:
		status = http.StatusConflict
	case errs.KindNoOpenDrawer:
		status = http.StatusNotFound
	case errs.KindPrinterNotConnected:
		status = http.StatusServiceUnavailable
	case errs.KindStoreUnavailable:
		status = http.StatusBadGateway
	}
	if errors.Is(err, store.ErrNotFound) {
		status = http.StatusNotFound
	}

	body := map[string]interface{}{"error": err.Error()}
	if kind != "" {
		body["kind"] = string(kind)
	}
	var e *errs.Error
	if errors.As(err, &e) && e.Kind == errs.KindPaymentMismatch {
		body["deficit"] = e.Deficit
	}
	writeJSON(w, status, body)
}

// HandleMenu returns the active menu.
func (h *RESTHandlers) HandleMenu(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	items, err := h.catalog.ListMenuItems(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleOrders returns all active orders.
func (h *RESTHandlers) HandleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	orders, err := h.orders.ActiveOrders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

type statusRequest struct {
	Status models.OrderStatus `json:"status"`
}

type completeRequest struct {
	Method     models.PaymentMethod `json:"method"`
	CashAmount money.Money          `json:"cash_amount"`
	UPIAmount  money.Money          `json:"upi_amount"`
}

// HandleOrderByID routes /api/orders/{id} and its action subpaths.
func (h *RESTHandlers) HandleOrderByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		order, err := h.orders.GetOrder(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, order)

	case action == "status" && r.Method == http.MethodPost:
		var req statusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
			return
		}
		if err := h.orders.UpdateStatus(r.Context(), id, req.Status); err != nil {
			writeError(w, err)
			return
		}
		if req.Status == models.OrderStatusReady && h.notifier != nil {
			if order, err := h.orders.GetOrder(r.Context(), id); err == nil {
				h.notifier.OrderReady(order)
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})

	case action == "complete" && r.Method == http.MethodPost:
		var req completeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
			return
		}
		payment := models.PaymentDetails{
			Method:     req.Method,
			CashAmount: req.CashAmount,
			UPIAmount:  req.UPIAmount,
		}
		order, err := h.orders.CompleteOrder(r.Context(), id, payment)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, order)

	case action == "cancel" && r.Method == http.MethodPost:
		if err := h.orders.CancelOrder(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": string(models.OrderStatusCancelled)})

	case action == "print/kot" && r.Method == http.MethodPost:
		h.print(w, r, id, true)

	case action == "print/bill" && r.Method == http.MethodPost:
		h.print(w, r, id, false)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *RESTHandlers) print(w http.ResponseWriter, r *http.Request, id string, kitchen bool) {
	if h.printer == nil {
		writeError(w, errs.New(errs.KindPrinterNotConnected, "no printer configured"))
		return
	}
	var err error
	if kitchen {
		err = h.printer.PrintKOT(r.Context(), id)
	} else {
		err = h.printer.PrintBill(r.Context(), id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"printed": true})
}

type drawerOpenRequest struct {
	StaffID       string      `json:"staff_id"`
	StaffName     string      `json:"staff_name"`
	OpeningAmount money.Money `json:"opening_amount"`
	Reason        string      `json:"reason"`
}

// HandleDrawerOpen opens the day's drawer for a staff member.
func (h *RESTHandlers) HandleDrawerOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req drawerOpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StaffID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "staff_id required"})
		return
	}
	entry, err := h.drawers.OpenDrawer(r.Context(), req.StaffID, req.StaffName, req.OpeningAmount, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type drawerCloseRequest struct {
	StaffID string      `json:"staff_id"`
	Counted money.Money `json:"counted"`
}

// HandleDrawerClose closes the drawer and returns the reconciliation.
func (h *RESTHandlers) HandleDrawerClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req drawerCloseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StaffID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "staff_id required"})
		return
	}
	rec, err := h.drawers.CloseDrawer(r.Context(), req.StaffID, req.Counted)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleDrawerCurrent returns today's drawer entry for ?staff_id=.
func (h *RESTHandlers) HandleDrawerCurrent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	staffID := r.URL.Query().Get("staff_id")
	if staffID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "staff_id required"})
		return
	}
	entry, err := h.drawers.CurrentDrawer(r.Context(), staffID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type redeemRequest struct {
	Points int64 `json:"points"`
}

// HandleCustomerByID routes /api/customers/{id} and /api/customers/{id}/redeem.
func (h *RESTHandlers) HandleCustomerByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/customers/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		customer, err := h.loyalty.GetCustomer(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, customer)

	case action == "redeem" && r.Method == http.MethodPost:
		var req redeemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
			return
		}
		if err := h.loyalty.Redeem(r.Context(), id, req.Points); err != nil {
			writeError(w, err)
			return
		}
		customer, err := h.loyalty.GetCustomer(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, customer)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
