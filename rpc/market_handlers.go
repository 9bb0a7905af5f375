package rpc

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"bazaar/crypto"
	"bazaar/escrow"
)

const (
	codeMarketInvalidParams = -32021
	codeMarketNotFound      = -32022
	codeMarketForbidden     = -32023
	codeMarketConflict      = -32024
	codeMarketInternal      = -32025
	codeMarketUnavailable   = -32026
	codeMarketPayment       = -32027
	codeMarketTransfer      = -32028
)

type buyProductParams struct {
	Buyer     string `json:"buyer"`
	ProductID uint64 `json:"productId"`
	Quantity  uint64 `json:"quantity"`
	Payment   string `json:"payment"`
}

type orderActionParams struct {
	Caller  string `json:"caller"`
	OrderID uint64 `json:"orderId"`
}

type orderIDParams struct {
	OrderID uint64 `json:"orderId"`
}

type addressParams struct {
	Address string `json:"address"`
}

type setFeeRateParams struct {
	Caller  string `json:"caller"`
	RateBps uint32 `json:"rateBps"`
}

type buyProductResult struct {
	OrderID uint64 `json:"orderId"`
}

type orderJSON struct {
	ID          uint64 `json:"id"`
	ProductID   uint64 `json:"productId"`
	Buyer       string `json:"buyer"`
	Seller      string `json:"seller"`
	Quantity    uint64 `json:"quantity"`
	TotalPrice  string `json:"totalPrice"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"createdAt"`
	DeliveredAt int64  `json:"deliveredAt,omitempty"`
}

func orderToJSON(o *escrow.Order) orderJSON {
	out := orderJSON{
		ID:          o.ID,
		ProductID:   o.ProductID,
		Buyer:       crypto.MustNewAddress(crypto.BazaarPrefix, o.Buyer[:]).String(),
		Seller:      crypto.MustNewAddress(crypto.BazaarPrefix, o.Seller[:]).String(),
		Quantity:    o.Quantity,
		Status:      o.Status.String(),
		CreatedAt:   o.CreatedAt,
		DeliveredAt: o.DeliveredAt,
	}
	if o.TotalPrice != nil {
		out.TotalPrice = o.TotalPrice.String()
	}
	return out
}

func parseAddress(value string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Raw(), nil
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

// engineError maps engine sentinel errors onto the module's JSON-RPC codes.
func engineError(err error) (int, int, string) {
	switch {
	case errors.Is(err, escrow.ErrProductNotFound), errors.Is(err, escrow.ErrOrderNotFound):
		return http.StatusNotFound, codeMarketNotFound, "not_found"
	case errors.Is(err, escrow.ErrNotBuyer), errors.Is(err, escrow.ErrNotSeller), errors.Is(err, escrow.ErrUnauthorized):
		return http.StatusForbidden, codeMarketForbidden, "forbidden"
	case errors.Is(err, escrow.ErrSelfPurchase):
		return http.StatusBadRequest, codeMarketInvalidParams, "invalid_params"
	case errors.Is(err, escrow.ErrInvalidTransition):
		return http.StatusConflict, codeMarketConflict, "invalid_transition"
	case errors.Is(err, escrow.ErrPaymentMismatch):
		return http.StatusBadRequest, codeMarketPayment, "payment_mismatch"
	case errors.Is(err, escrow.ErrUnavailable):
		return http.StatusConflict, codeMarketUnavailable, "unavailable"
	case errors.Is(err, escrow.ErrTransferFailed):
		return http.StatusBadGateway, codeMarketTransfer, "transfer_failed"
	default:
		return http.StatusInternalServerError, codeMarketInternal, "internal_error"
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, req *RPCRequest, method string, err error) string {
	status, code, message := engineError(err)
	s.metrics.ObserveError("market", method, message)
	writeError(w, status, req.ID, code, message, err.Error())
	return "error"
}

func (s *Server) handleBuyProduct(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "error"
	}
	var params buyProductParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	buyer, err := parseAddress(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	payment, err := parsePositiveBigInt(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	orderID, err := s.engine.BuyProduct(buyer, params.ProductID, params.Quantity, payment)
	if err != nil {
		return s.writeEngineError(w, req, "market_buyProduct", err)
	}
	writeResult(w, req.ID, buyProductResult{OrderID: orderID})
	return "ok"
}

func (s *Server) handleMarkShipped(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	return s.handleOrderAction(w, r, req, "market_markShipped", s.engine.MarkShipped)
}

func (s *Server) handleConfirmDelivery(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	return s.handleOrderAction(w, r, req, "market_confirmDelivery", s.engine.ConfirmDelivery)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	return s.handleOrderAction(w, r, req, "market_cancelOrder", s.engine.CancelOrder)
}

func (s *Server) handleOrderAction(w http.ResponseWriter, r *http.Request, req *RPCRequest, method string, action func([20]byte, uint64) error) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "error"
	}
	var params orderActionParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	if err := action(caller, params.OrderID); err != nil {
		return s.writeEngineError(w, req, method, err)
	}
	writeResult(w, req.ID, true)
	return "ok"
}

func (s *Server) handleGetOrder(w http.ResponseWriter, req *RPCRequest) string {
	var params orderIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	order, err := s.engine.GetOrder(params.OrderID)
	if err != nil {
		return s.writeEngineError(w, req, "market_getOrder", err)
	}
	writeResult(w, req.ID, orderToJSON(order))
	return "ok"
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, req *RPCRequest) string {
	var params orderIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	status, err := s.engine.OrderStatus(params.OrderID)
	if err != nil {
		return s.writeEngineError(w, req, "market_orderStatus", err)
	}
	writeResult(w, req.ID, status.String())
	return "ok"
}

func (s *Server) handleOrdersByBuyer(w http.ResponseWriter, req *RPCRequest) string {
	return s.handleOrderIndex(w, req, "market_ordersByBuyer", s.engine.OrdersByBuyer)
}

func (s *Server) handleOrdersBySeller(w http.ResponseWriter, req *RPCRequest) string {
	return s.handleOrderIndex(w, req, "market_ordersBySeller", s.engine.OrdersBySeller)
}

func (s *Server) handleOrderIndex(w http.ResponseWriter, req *RPCRequest, method string, list func([20]byte) ([]uint64, error)) string {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	ids, err := list(addr)
	if err != nil {
		return s.writeEngineError(w, req, method, err)
	}
	if ids == nil {
		ids = []uint64{}
	}
	writeResult(w, req.ID, ids)
	return "ok"
}

func (s *Server) handleOrderCount(w http.ResponseWriter, req *RPCRequest) string {
	count, err := s.engine.OrderCount()
	if err != nil {
		return s.writeEngineError(w, req, "market_orderCount", err)
	}
	writeResult(w, req.ID, count)
	return "ok"
}

func (s *Server) handleSetFeeRate(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "error"
	}
	var params setFeeRateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	if err := s.engine.SetFeeRate(caller, params.RateBps); err != nil {
		return s.writeEngineError(w, req, "market_setFeeRate", err)
	}
	writeResult(w, req.ID, true)
	return "ok"
}
