package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/katalis/laku/internal/core/domain"
	"github.com/katalis/laku/internal/core/service"
)

const RequestIDHeader = "X-Request-ID"

type HTTPHandler struct {
	ledger *service.LedgerService
	logger *zap.Logger
}

type AddItemHTTPRequest struct {
	ItemName string           `json:"item_name"`
	Price    *decimal.Decimal `json:"price"`
	Quantity *int             `json:"quantity"`
}

type UpdateItemHTTPRequest struct {
	ItemName *string          `json:"item_name"`
	Price    *decimal.Decimal `json:"price"`
	Quantity *int             `json:"quantity"`
}

// SaleHTTPRequest accepts either free text or explicit sale fields.
type SaleHTTPRequest struct {
	Text     string           `json:"text"`
	ItemName string           `json:"item_name"`
	Quantity int              `json:"quantity"`
	Price    *decimal.Decimal `json:"price"`
}

type SaleHTTPResponse struct {
	Success         bool               `json:"success"`
	RequestID       string             `json:"request_id"`
	Sale            domain.Sale        `json:"sale"`
	InventoryUpdate InventoryUpdate    `json:"inventory_update"`
	Summary         domain.SalesTotals `json:"summary"`
	Message         string             `json:"message"`
}

type InventoryUpdate struct {
	ItemID           int64  `json:"item_id"`
	ItemName         string `json:"item_name"`
	PreviousQuantity int    `json:"previous_quantity"`
	NewQuantity      int    `json:"new_quantity"`
	QuantitySold     int    `json:"quantity_sold"`
}

type ErrorHTTPResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func NewHTTPHandler(ledger *service.LedgerService, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{ledger: ledger, logger: logger.With(zap.String("component", "http"))}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /api/items", h.ListItems)
	mux.HandleFunc("POST /api/items", h.AddItem)
	mux.HandleFunc("PATCH /api/items/{id}", h.UpdateItem)
	mux.HandleFunc("DELETE /api/items/{id}", h.RemoveItem)
	mux.HandleFunc("GET /api/inventory/chart-data", h.ChartData)
	mux.HandleFunc("GET /api/sales", h.ListSales)
	mux.HandleFunc("POST /api/sales", h.RecordSale)
	mux.HandleFunc("DELETE /api/sales/{id}", h.DeleteSale)
	mux.HandleFunc("GET /api/analytics", h.Analytics)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ledger.Stats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "database": stats})
}

func (h *HTTPHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.ledger.ListInventory(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *HTTPHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Error: "invalid request body"})
		return
	}
	if req.ItemName == "" || req.Price == nil {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Error: "item_name and price are required"})
		return
	}

	item, err := h.ledger.AddInventoryItem(r.Context(), service.NewItem{
		Name:     req.ItemName,
		Price:    *req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "item": item})
}

func (h *HTTPHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateItemHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Error: "invalid request body"})
		return
	}

	item, err := h.ledger.UpdateInventoryItem(r.Context(), id, domain.ItemPatch{
		Name:     req.ItemName,
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "item": item})
}

func (h *HTTPHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	item, err := h.ledger.RemoveInventoryItem(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "item": item, "message": "item deleted"})
}

func (h *HTTPHandler) ChartData(w http.ResponseWriter, r *http.Request) {
	levels, err := h.ledger.StockLevels(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": levels})
}

func (h *HTTPHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.ledger.ListSales(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (h *HTTPHandler) RecordSale(w http.ResponseWriter, r *http.Request) {
	var body SaleHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Error: "invalid request body"})
		return
	}

	var req service.SaleRequest
	if strings.TrimSpace(body.Text) != "" {
		parsed, err := service.ParseSaleText(body.Text)
		if err != nil {
			h.writeError(w, err)
			return
		}
		req = parsed
	} else {
		if body.ItemName == "" || body.Quantity == 0 || body.Price == nil {
			writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Error: "provide text, or item_name, quantity and price"})
			return
		}
		req = service.SaleRequest{ItemName: body.ItemName, Quantity: body.Quantity, Price: *body.Price}
	}

	req.RequestID = r.Header.Get(RequestIDHeader)
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	receipt, err := h.ledger.Submit(r.Context(), req)
	if err != nil {
		h.logger.Debug("sale submission failed", zap.String("request_id", requestID), zap.Error(err))
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, SaleHTTPResponse{
		Success:   true,
		RequestID: requestID,
		Sale:      receipt.Sale,
		InventoryUpdate: InventoryUpdate{
			ItemID:           receipt.ItemID,
			ItemName:         receipt.Sale.ItemName,
			PreviousQuantity: receipt.PreviousQuantity,
			NewQuantity:      receipt.NewQuantity,
			QuantitySold:     receipt.Sale.Quantity,
		},
		Summary: receipt.Totals,
		Message: fmt.Sprintf("recorded sale: %dx %s at %s each", receipt.Sale.Quantity, receipt.Sale.ItemName, receipt.Sale.Price.StringFixed(2)),
	})
}

func (h *HTTPHandler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	result, err := h.ledger.DeleteSale(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	message := "sale deleted"
	if result.All {
		message = "all sales deleted"
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": result, "message": message})
}

func (h *HTTPHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ledger.Summary(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "analytics": summary})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Error: "id must be a positive integer"})
		return 0, false
	}
	return id, true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		h.logger.Error("request failed", zap.Error(err))
		message = http.StatusText(status)
	}

	body := map[string]any{"success": false, "error": message}
	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		body["item_id"] = stockErr.ItemID
		body["available_quantity"] = stockErr.Available
		body["requested_quantity"] = stockErr.Requested
	}
	writeJSON(w, status, body)
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
