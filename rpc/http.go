package rpc

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"bazaar/catalog"
	"bazaar/core/events"
	"bazaar/escrow"
	"bazaar/ledger"
	"bazaar/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB

	requestsPerSecond = 20
	requestBurst      = 40
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
)

// Server exposes the settlement engine over JSON-RPC 2.0 plus a websocket
// event stream for external indexers.
type Server struct {
	engine  *escrow.Engine
	catalog *catalog.Catalog
	ledger  *ledger.Ledger
	hub     *events.Hub
	auth    *Authenticator
	logger  *slog.Logger
	metrics interface {
		ObserveRequest(module, method, outcome string, took time.Duration)
		ObserveError(module, method, code string)
	}

	allowFaucet bool

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewServer wires a server around the engine and its collaborators. The hub
// may be nil when no event streaming is desired.
func NewServer(engine *escrow.Engine, cat *catalog.Catalog, led *ledger.Ledger, hub *events.Hub, auth *Authenticator, logger *slog.Logger, allowFaucet bool) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:      engine,
		catalog:     cat,
		ledger:      led,
		hub:         hub,
		auth:        auth,
		logger:      logger,
		metrics:     observability.ModuleMetrics(),
		allowFaucet: allowFaucet,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// Router assembles the HTTP surface: JSON-RPC on POST /, websocket event
// stream, prometheus metrics and a liveness probe.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Method(http.MethodPost, "/", otelhttp.NewHandler(http.HandlerFunc(s.handle), "rpc"))
	r.Get("/ws/events", s.handleEventsWS)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Start serves the router until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) allow(clientIP string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[clientIP]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst)
		s.limiters[clientIP] = limiter
	}
	return limiter.Allow()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.allow(s.clientIP(r)) {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON", nil)
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", nil)
		return
	}

	start := time.Now()
	method := strings.TrimSpace(req.Method)
	module := moduleOf(method)
	outcome := "ok"
	defer func() {
		s.metrics.ObserveRequest(module, method, outcome, time.Since(start))
	}()

	switch method {
	case "market_buyProduct":
		outcome = s.handleBuyProduct(w, r, &req)
	case "market_markShipped":
		outcome = s.handleMarkShipped(w, r, &req)
	case "market_confirmDelivery":
		outcome = s.handleConfirmDelivery(w, r, &req)
	case "market_cancelOrder":
		outcome = s.handleCancelOrder(w, r, &req)
	case "market_getOrder":
		outcome = s.handleGetOrder(w, &req)
	case "market_ordersByBuyer":
		outcome = s.handleOrdersByBuyer(w, &req)
	case "market_ordersBySeller":
		outcome = s.handleOrdersBySeller(w, &req)
	case "market_orderCount":
		outcome = s.handleOrderCount(w, &req)
	case "market_orderStatus":
		outcome = s.handleOrderStatus(w, &req)
	case "market_setFeeRate":
		outcome = s.handleSetFeeRate(w, r, &req)
	case "market_feeRate":
		writeResult(w, req.ID, s.engine.FeeRate())
	case "catalog_addProduct":
		outcome = s.handleAddProduct(w, r, &req)
	case "catalog_setActive":
		outcome = s.handleSetActive(w, r, &req)
	case "catalog_getProduct":
		outcome = s.handleGetProduct(w, &req)
	case "ledger_getBalance":
		outcome = s.handleGetBalance(w, &req)
	case "ledger_mint":
		outcome = s.handleMint(w, r, &req)
	default:
		outcome = "error"
		s.metrics.ObserveError(module, method, "method_not_found")
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

func moduleOf(method string) string {
	if idx := strings.IndexByte(method, '_'); idx > 0 {
		return method[:idx]
	}
	return "unknown"
}

// decodeParams expects exactly one parameter object and unmarshals it into v.
func decodeParams(req *RPCRequest, v interface{}) error {
	if len(req.Params) != 1 {
		return errExactlyOneParam
	}
	return json.Unmarshal(req.Params[0], v)
}
