package devnet

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/token-bridge/pkg/app/errors"
	apphttp "github.com/chainsafe/token-bridge/pkg/app/http"
	"github.com/chainsafe/token-bridge/pkg/auth"
	"github.com/chainsafe/token-bridge/pkg/ledger"
)

// SignatureMaxAge bounds how old a signed devnet request message may be
const SignatureMaxAge = 5 * time.Minute

// ChainInfo describes a deployment
type ChainInfo struct {
	Name        string `json:"name"`
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	Token       string `json:"token"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"total_supply"`
	Bridge      string `json:"bridge"`
	Mode        string `json:"mode"`
	Nonce       uint64 `json:"nonce"`
}

// BalanceResponse is the balance of an account in base units and tokens
type BalanceResponse struct {
	Address         string `json:"address"`
	Balance         string `json:"balance"`
	Display         string `json:"display"`
	BridgeAllowance string `json:"bridge_allowance"`
}

// AmountRequest is the body of the signed mutation endpoints. Amount is in
// whole tokens and may carry up to the token's decimals.
type AmountRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// TxResponse is returned for a sealed transaction
type TxResponse struct {
	TxHash      string  `json:"tx_hash"`
	BlockNumber uint64  `json:"block_number"`
	Nonce       *uint64 `json:"nonce,omitempty"`
}

// API serves the devnet endpoints
type API struct {
	network *Network
	logger  *zap.Logger
	now     func() time.Time
}

// NewAPI creates the devnet API. now may be nil.
func NewAPI(network *Network, logger *zap.Logger, now func() time.Time) *API {
	if now == nil {
		now = time.Now
	}
	return &API{network: network, logger: logger, now: now}
}

// RegisterRoutes mounts the devnet endpoints on r
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/chains/{chain}", func(r chi.Router) {
		r.Get("/", apphttp.HandleError(a.info))
		r.Get("/balances/{address}", apphttp.HandleError(a.balance))
		r.Get("/nonce", apphttp.HandleError(a.nonce))
		r.Get("/processed/{nonce}", apphttp.HandleError(a.processed))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSignature(SignatureMaxAge, a.now))
			r.Post("/mint", apphttp.HandleError(a.mint))
			r.Post("/approve", apphttp.HandleError(a.approve))
			r.Post("/transfer-out", apphttp.HandleError(a.transferOut))
		})
	})
}

func (a *API) deployment(r *http.Request) (*Deployment, error) {
	name := chi.URLParam(r, "chain")
	d, ok := a.network.Deployment(name)
	if !ok {
		return nil, apperrors.ResourceNotFoundError(nil, "unknown chain "+name)
	}
	return d, nil
}

func (a *API) info(w http.ResponseWriter, r *http.Request) error {
	d, err := a.deployment(r)
	if err != nil {
		return err
	}
	var info ChainInfo
	d.Chain.View(func() {
		info = ChainInfo{
			Name:        d.Name,
			ChainID:     d.Chain.ID(),
			Token:       d.Token.Address().Hex(),
			Symbol:      d.Token.Symbol(),
			Decimals:    d.Token.Decimals(),
			TotalSupply: d.Token.TotalSupply().Dec(),
			Bridge:      d.Bridge.Address().Hex(),
			Mode:        string(d.Bridge.Mode()),
			Nonce:       d.Bridge.Nonce(),
		}
	})
	info.BlockNumber = d.Chain.BlockNumber()
	return writeJSON(w, http.StatusOK, info)
}

func (a *API) balance(w http.ResponseWriter, r *http.Request) error {
	d, err := a.deployment(r)
	if err != nil {
		return err
	}
	raw := chi.URLParam(r, "address")
	if !auth.ValidateEVMAddress(raw) {
		return apperrors.BadRequestError(nil, "invalid address")
	}
	addr := common.HexToAddress(raw)

	var bal, allowance *uint256.Int
	d.Chain.View(func() {
		bal = d.Token.BalanceOf(addr)
		allowance = d.Token.Allowance(addr, d.Bridge.Address())
	})
	return writeJSON(w, http.StatusOK, BalanceResponse{
		Address:         addr.Hex(),
		Balance:         bal.Dec(),
		Display:         FormatUnits(bal, d.Token.Decimals()),
		BridgeAllowance: allowance.Dec(),
	})
}

func (a *API) nonce(w http.ResponseWriter, r *http.Request) error {
	d, err := a.deployment(r)
	if err != nil {
		return err
	}
	var n uint64
	d.Chain.View(func() { n = d.Bridge.Nonce() })
	return writeJSON(w, http.StatusOK, map[string]uint64{"nonce": n})
}

func (a *API) processed(w http.ResponseWriter, r *http.Request) error {
	d, err := a.deployment(r)
	if err != nil {
		return err
	}
	n, err := strconv.ParseUint(chi.URLParam(r, "nonce"), 10, 64)
	if err != nil {
		return apperrors.BadRequestError(err, "invalid nonce")
	}
	var done bool
	d.Chain.View(func() { done = d.Bridge.ProcessedNonces(n) })
	return writeJSON(w, http.StatusOK, map[string]any{"nonce": n, "processed": done})
}

// mint is the faucet: the signed caller needs MINTER on the token
func (a *API) mint(w http.ResponseWriter, r *http.Request) error {
	return a.transact(w, r, func(d *Deployment, tx *ledger.Tx, to common.Address, amount *uint256.Int) (*uint64, error) {
		return nil, d.Token.Mint(tx, to, amount)
	})
}

// approve sets the bridge's allowance over the caller's balance. The to field
// is ignored.
func (a *API) approve(w http.ResponseWriter, r *http.Request) error {
	return a.transact(w, r, func(d *Deployment, tx *ledger.Tx, _ common.Address, amount *uint256.Int) (*uint64, error) {
		return nil, d.Token.Approve(tx, d.Bridge.Address(), amount)
	})
}

func (a *API) transferOut(w http.ResponseWriter, r *http.Request) error {
	return a.transact(w, r, func(d *Deployment, tx *ledger.Tx, to common.Address, amount *uint256.Int) (*uint64, error) {
		n, err := d.Bridge.TransferOut(tx, to, amount)
		if err != nil {
			return nil, err
		}
		return &n, nil
	})
}

type txFunc func(d *Deployment, tx *ledger.Tx, to common.Address, amount *uint256.Int) (*uint64, error)

func (a *API) transact(w http.ResponseWriter, r *http.Request, fn txFunc) error {
	d, err := a.deployment(r)
	if err != nil {
		return err
	}
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "caller required")
	}

	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid request body")
	}
	to := caller
	if req.To != "" {
		if !auth.ValidateEVMAddress(req.To) {
			return apperrors.BadRequestError(nil, "invalid recipient address")
		}
		to = common.HexToAddress(req.To)
	}
	value, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return apperrors.BadRequestError(err, "invalid amount")
	}
	amount, err := ParseUnits(value, d.Token.Decimals())
	if err != nil {
		return apperrors.BadRequestError(err, err.Error())
	}

	var nonce *uint64
	receipt, err := d.Chain.Transact(caller, func(tx *ledger.Tx) error {
		var err error
		nonce, err = fn(d, tx, to, amount)
		return err
	})
	if err != nil {
		return revertError(err)
	}

	a.logger.Info("Devnet transaction sealed",
		zap.String("chain", d.Name),
		zap.String("path", r.URL.Path),
		zap.String("caller", caller.Hex()),
		zap.String("to", to.Hex()),
		zap.String("amount", amount.Dec()),
		zap.Uint64("block", receipt.BlockNumber))

	return writeJSON(w, http.StatusOK, TxResponse{
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: receipt.BlockNumber,
		Nonce:       nonce,
	})
}

func revertError(err error) error {
	reason := ledger.Reason(err)
	if reason == "" {
		reason = err.Error()
	}
	switch {
	case errors.Is(err, ledger.ErrAccessDenied):
		return apperrors.ForbiddenError(err, reason)
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrAllowanceExceeded),
		errors.Is(err, ledger.ErrOverflow):
		return apperrors.BadRequestError(err, reason)
	case errors.Is(err, ledger.ErrReplayedNonce):
		return apperrors.ConflictError(err, reason)
	default:
		return apperrors.GeneralError(err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
