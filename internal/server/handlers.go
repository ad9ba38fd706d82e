package server

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"StableCore/internal/engine"
	"StableCore/internal/ledger"
	"StableCore/internal/observability"
	"StableCore/internal/oracle"
)

type handlers struct {
	engine  *engine.Engine
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// writeJSON marshals v as JSON and writes it with the given status code.
// If marshaling fails, it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine failures onto HTTP statuses. Solvency and
// ledger rejections are valid requests the protocol refuses (422); oracle
// outages are upstream unavailability (503); collaborator transfer
// failures surface as a bad gateway.
func (h *handlers) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNeedsMoreThanZero),
		errors.Is(err, engine.ErrNotAllowedToken),
		errors.Is(err, oracle.ErrUnknownFeed):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrBreaksHealthFactor),
		errors.Is(err, engine.ErrHealthFactorOk),
		errors.Is(err, engine.ErrHealthFactorNotImproved),
		errors.Is(err, ledger.ErrInsufficientCollateral),
		errors.Is(err, ledger.ErrInsufficientDebt):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, engine.ErrReentrantCall):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, oracle.ErrStalePrice),
		errors.Is(err, oracle.ErrInvalidPrice):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, engine.ErrTransferFailed),
		errors.Is(err, engine.ErrMintFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error().Err(err).Msg("unexpected engine error")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseAmount parses a non-empty decimal-string amount. Amounts travel as
// strings because wad quantities overflow float64 and JSON numbers.
func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, errors.New("missing amount")
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.New("amount must be a decimal integer")
	}
	return n, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// --- read endpoints -----------------------------------------------------

type paramsResponse struct {
	CollateralTokens     []string `json:"collateral_tokens"`
	LiquidationThreshold int64    `json:"liquidation_threshold"`
	LiquidationPrecision int64    `json:"liquidation_precision"`
	LiquidationBonus     int64    `json:"liquidation_bonus"`
	MinHealthFactor      string   `json:"min_health_factor"`
	StaleTimeoutSeconds  int64    `json:"stale_timeout_seconds"`
}

// GET /api/params
func (h *handlers) getParams(w http.ResponseWriter, r *http.Request) {
	p := h.engine.Params()
	writeJSON(w, http.StatusOK, paramsResponse{
		CollateralTokens:     h.engine.CollateralTokens(),
		LiquidationThreshold: p.LiquidationThreshold,
		LiquidationPrecision: p.LiquidationPrecision,
		LiquidationBonus:     p.LiquidationBonus,
		MinHealthFactor:      p.MinHealthFactor.String(),
		StaleTimeoutSeconds:  int64(p.StaleTimeout.Seconds()),
	})
}

type accountResponse struct {
	Account         string            `json:"account"`
	Collateral      map[string]string `json:"collateral"`
	CollateralValue string            `json:"collateral_value_usd"`
	Debt            string            `json:"debt"`
	HealthFactor    string            `json:"health_factor"`
}

// GET /api/accounts/{id}
func (h *handlers) getAccount(w http.ResponseWriter, r *http.Request) {
	account, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	balances := make(map[string]string)
	for _, tok := range h.engine.CollateralTokens() {
		balances[tok] = h.engine.CollateralBalance(account, tok).String()
	}

	value, err := h.engine.AccountCollateralValue(r.Context(), account)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	hf, err := h.engine.HealthFactor(r.Context(), account)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, accountResponse{
		Account:         account.String(),
		Collateral:      balances,
		CollateralValue: value.String(),
		Debt:            h.engine.Debt(account).String(),
		HealthFactor:    hf.String(),
	})
}

// GET /api/accounts/{id}/collateral/{token}
func (h *handlers) getCollateralBalance(w http.ResponseWriter, r *http.Request) {
	account, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	tok := r.PathValue("token")

	writeJSON(w, http.StatusOK, map[string]string{
		"account": account.String(),
		"token":   tok,
		"balance": h.engine.CollateralBalance(account, tok).String(),
	})
}

// GET /api/value/usd?token=WETH&amount=1000000000000000000
func (h *handlers) getUsdValue(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("token")
	amount, err := parseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	usd, err := h.engine.UsdValue(r.Context(), tok, amount)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":  tok,
		"amount": amount.String(),
		"usd":    usd.String(),
	})
}

// GET /api/value/token?token=WETH&usd=1000000000000000000000
func (h *handlers) getTokenAmount(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("token")
	usd, err := parseAmount(r.URL.Query().Get("usd"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := h.engine.TokenAmountFromUsd(r.Context(), tok, usd)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":  tok,
		"usd":    usd.String(),
		"amount": amount.String(),
	})
}

// --- operation endpoints ------------------------------------------------

type depositRequest struct {
	Account string `json:"account"`
	Token   string `json:"token"`
	Amount  string `json:"amount"`
}

// POST /api/deposit
func (h *handlers) postDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := uuid.Parse(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.Deposit(r.Context(), account, req.Token, amount); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type mintRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// POST /api/mint
func (h *handlers) postMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := uuid.Parse(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.Mint(r.Context(), account, amount); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type depositAndMintRequest struct {
	Account    string `json:"account"`
	Token      string `json:"token"`
	Amount     string `json:"amount"`
	MintAmount string `json:"mint_amount"`
}

// POST /api/deposit-and-mint
func (h *handlers) postDepositAndMint(w http.ResponseWriter, r *http.Request) {
	var req depositAndMintRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := uuid.Parse(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mintAmount, err := parseAmount(req.MintAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.DepositAndMint(r.Context(), account, req.Token, amount, mintAmount); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/redeem
func (h *handlers) postRedeem(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := uuid.Parse(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.Redeem(r.Context(), account, req.Token, amount); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/burn
func (h *handlers) postBurn(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := uuid.Parse(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.Burn(r.Context(), account, amount); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type redeemForBurnRequest struct {
	Account          string `json:"account"`
	Token            string `json:"token"`
	CollateralAmount string `json:"collateral_amount"`
	BurnAmount       string `json:"burn_amount"`
}

// POST /api/redeem-for-burn
func (h *handlers) postRedeemForBurn(w http.ResponseWriter, r *http.Request) {
	var req redeemForBurnRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := uuid.Parse(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	collateralAmount, err := parseAmount(req.CollateralAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	burnAmount, err := parseAmount(req.BurnAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.RedeemForBurn(r.Context(), account, req.Token, collateralAmount, burnAmount); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type liquidateRequest struct {
	Liquidator  string `json:"liquidator"`
	Target      string `json:"target"`
	Token       string `json:"token"`
	DebtToCover string `json:"debt_to_cover"`
}

// POST /api/liquidate
func (h *handlers) postLiquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	liquidator, err := uuid.Parse(req.Liquidator)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid liquidator id")
		return
	}
	target, err := uuid.Parse(req.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid target id")
		return
	}
	debtToCover, err := parseAmount(req.DebtToCover)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.Liquidate(r.Context(), liquidator, req.Token, target, debtToCover); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
