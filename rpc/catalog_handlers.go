package rpc

import (
	"errors"
	"net/http"

	"bazaar/catalog"
	"bazaar/crypto"
)

const (
	codeCatalogInvalidParams = -32031
	codeCatalogNotFound      = -32032
	codeCatalogForbidden     = -32033
	codeCatalogInternal      = -32035
	codeLedgerInvalidParams  = -32041
	codeLedgerForbidden      = -32043
	codeLedgerInternal       = -32045
)

type addProductParams struct {
	Seller string `json:"seller"`
	Price  string `json:"price"`
	Stock  uint64 `json:"stock"`
}

type setActiveParams struct {
	Caller    string `json:"caller"`
	ProductID uint64 `json:"productId"`
	Active    bool   `json:"active"`
}

type productIDParams struct {
	ProductID uint64 `json:"productId"`
}

type mintParams struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type addProductResult struct {
	ProductID uint64 `json:"productId"`
}

type productJSON struct {
	ID     uint64 `json:"id"`
	Seller string `json:"seller"`
	Price  string `json:"price"`
	Stock  uint64 `json:"stock"`
	Active bool   `json:"active"`
}

type balanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func productToJSON(p *catalog.Product) productJSON {
	out := productJSON{
		ID:     p.ID,
		Seller: crypto.MustNewAddress(crypto.BazaarPrefix, p.Seller[:]).String(),
		Stock:  p.Stock,
		Active: p.Active,
	}
	if p.Price != nil {
		out.Price = p.Price.String()
	}
	return out
}

func (s *Server) handleAddProduct(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "error"
	}
	var params addProductParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCatalogInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCatalogInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	price, err := parsePositiveBigInt(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCatalogInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	id, err := s.catalog.AddProduct(seller, price, params.Stock)
	if err != nil {
		s.metrics.ObserveError("catalog", "catalog_addProduct", "internal_error")
		writeError(w, http.StatusInternalServerError, req.ID, codeCatalogInternal, "internal_error", err.Error())
		return "error"
	}
	writeResult(w, req.ID, addProductResult{ProductID: id})
	return "ok"
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "error"
	}
	var params setActiveParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCatalogInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCatalogInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	if err := s.catalog.SetActive(caller, params.ProductID, params.Active); err != nil {
		switch {
		case errors.Is(err, catalog.ErrProductNotFound):
			s.metrics.ObserveError("catalog", "catalog_setActive", "not_found")
			writeError(w, http.StatusNotFound, req.ID, codeCatalogNotFound, "not_found", err.Error())
		case errors.Is(err, catalog.ErrNotSeller):
			s.metrics.ObserveError("catalog", "catalog_setActive", "forbidden")
			writeError(w, http.StatusForbidden, req.ID, codeCatalogForbidden, "forbidden", err.Error())
		default:
			s.metrics.ObserveError("catalog", "catalog_setActive", "internal_error")
			writeError(w, http.StatusInternalServerError, req.ID, codeCatalogInternal, "internal_error", err.Error())
		}
		return "error"
	}
	writeResult(w, req.ID, true)
	return "ok"
}

func (s *Server) handleGetProduct(w http.ResponseWriter, req *RPCRequest) string {
	var params productIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCatalogInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	product, err := s.catalog.Get(params.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			s.metrics.ObserveError("catalog", "catalog_getProduct", "not_found")
			writeError(w, http.StatusNotFound, req.ID, codeCatalogNotFound, "not_found", err.Error())
		} else {
			s.metrics.ObserveError("catalog", "catalog_getProduct", "internal_error")
			writeError(w, http.StatusInternalServerError, req.ID, codeCatalogInternal, "internal_error", err.Error())
		}
		return "error"
	}
	writeResult(w, req.ID, productToJSON(product))
	return "ok"
}

func (s *Server) handleGetBalance(w http.ResponseWriter, req *RPCRequest) string {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLedgerInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLedgerInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	balance, err := s.ledger.Balance(addr)
	if err != nil {
		s.metrics.ObserveError("ledger", "ledger_getBalance", "internal_error")
		writeError(w, http.StatusInternalServerError, req.ID, codeLedgerInternal, "internal_error", err.Error())
		return "error"
	}
	writeResult(w, req.ID, balanceResult{Address: params.Address, Balance: balance.String()})
	return "ok"
}

// handleMint is the dev faucet. It is disabled unless the node was started
// with AllowFaucet and always requires auth.
func (s *Server) handleMint(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if !s.allowFaucet {
		s.metrics.ObserveError("ledger", "ledger_mint", "forbidden")
		writeError(w, http.StatusForbidden, req.ID, codeLedgerForbidden, "forbidden", "faucet disabled")
		return "error"
	}
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "error"
	}
	var params mintParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLedgerInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLedgerInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeLedgerInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	if err := s.ledger.Mint(addr, amount); err != nil {
		s.metrics.ObserveError("ledger", "ledger_mint", "internal_error")
		writeError(w, http.StatusInternalServerError, req.ID, codeLedgerInternal, "internal_error", err.Error())
		return "error"
	}
	writeResult(w, req.ID, true)
	return "ok"
}
