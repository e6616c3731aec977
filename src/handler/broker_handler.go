package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"openbroker/src/broker"
	"openbroker/src/model"
)

// brokerService is the slice of broker.Service the handlers need.
type brokerService interface {
	PlaceOrder(ctx context.Context, order *model.Order) (uint, error)
	CancelOrder(ctx context.Context, orderID uint) error
	ListOrders(ctx context.Context, userID uint) ([]model.Order, error)
	ListPositions(ctx context.Context, userID uint) ([]model.Position, error)
	ListTrades(ctx context.Context, orderID uint) ([]model.Trade, error)
}

// placeOrderRequest is the inbound order description.
type placeOrderRequest struct {
	UserID   uint            `json:"user_id"`
	Symbol   string          `json:"symbol"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// statusResponse carries a human-readable message plus, on failure, a
// structured error kind so callers can branch without parsing prose.
type statusResponse struct {
	Message string `json:"message"`
	OrderID uint   `json:"order_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

func statusForKind(kind broker.ErrorKind) int {
	switch kind {
	case broker.KindValidation, broker.KindDecode:
		return http.StatusBadRequest
	case broker.KindNotFound:
		return http.StatusNotFound
	case broker.KindAlreadyTerminal:
		return http.StatusConflict
	case broker.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	kind := broker.KindOf(err)
	writeJSON(w, statusForKind(kind), statusResponse{
		Message: err.Error(),
		Error:   string(kind),
	})
}

// PlaceOrderHandler accepts an order description and runs it through the
// lifecycle engine.
func PlaceOrderHandler(service brokerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req placeOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, statusResponse{
				Message: "invalid order payload",
				Error:   string(broker.KindDecode),
			})
			return
		}

		order := &model.Order{
			UserID:   req.UserID,
			Symbol:   req.Symbol,
			Quantity: req.Quantity,
			Price:    req.Price,
		}

		orderID, err := service.PlaceOrder(r.Context(), order)
		if err != nil {
			logger.WithError(err).Warn("place order failed")
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, statusResponse{
			Message: fmt.Sprintf("Order %d placed successfully with the stock exchange.", orderID),
			OrderID: orderID,
		})
	}
}

// CancelOrderHandler cancels the order addressed in the path.
func CancelOrderHandler(service brokerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, ok := uintURLParam(w, r, "orderId")
		if !ok {
			return
		}

		if err := service.CancelOrder(r.Context(), orderID); err != nil {
			logger.WithError(err).WithField("order_id", orderID).Warn("cancel order failed")
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, statusResponse{
			Message: fmt.Sprintf("Order %d successfully canceled on both broker and stock exchange.", orderID),
			OrderID: orderID,
		})
	}
}

// GetOrdersHandler lists all orders of the user addressed in the path.
func GetOrdersHandler(service brokerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := uintURLParam(w, r, "userId")
		if !ok {
			return
		}

		orders, err := service.ListOrders(r.Context(), userID)
		if err != nil {
			logger.WithError(err).Error("failed to list orders")
			writeServiceError(w, err)
			return
		}
		if orders == nil {
			orders = []model.Order{}
		}

		writeJSON(w, http.StatusOK, orders)
	}
}

// GetPositionsHandler lists all positions of the user addressed in the path.
func GetPositionsHandler(service brokerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := uintURLParam(w, r, "userId")
		if !ok {
			return
		}

		positions, err := service.ListPositions(r.Context(), userID)
		if err != nil {
			logger.WithError(err).Error("failed to list positions")
			writeServiceError(w, err)
			return
		}
		if positions == nil {
			positions = []model.Position{}
		}

		writeJSON(w, http.StatusOK, positions)
	}
}

// GetTradesHandler lists the trade log of the order addressed in the path.
func GetTradesHandler(service brokerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, ok := uintURLParam(w, r, "orderId")
		if !ok {
			return
		}

		trades, err := service.ListTrades(r.Context(), orderID)
		if err != nil {
			logger.WithError(err).Error("failed to list trades")
			writeServiceError(w, err)
			return
		}
		if trades == nil {
			trades = []model.Trade{}
		}

		writeJSON(w, http.StatusOK, trades)
	}
}

func uintURLParam(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{
			Message: fmt.Sprintf("invalid %s", name),
			Error:   string(broker.KindValidation),
		})
		return 0, false
	}
	return uint(id), true
}
