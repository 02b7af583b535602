package routes

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"vaultchain/core"
	"vaultchain/crypto"
)

// defaultMaxLossBps mirrors the vault's default withdraw tolerance.
const defaultMaxLossBps uint64 = 1

type callerRequest struct {
	Caller string `json:"caller"`
}

type approveRequest struct {
	Caller  string `json:"caller"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type depositRequest struct {
	Caller    string `json:"caller"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

type withdrawRequest struct {
	Caller     string  `json:"caller"`
	Shares     string  `json:"shares"`
	Recipient  string  `json:"recipient"`
	MaxLossBps *uint64 `json:"maxLossBps"`
}

type debtRatioRequest struct {
	Caller    string `json:"caller"`
	DebtRatio uint64 `json:"debtRatio"`
}

type feesRequest struct {
	Caller         string  `json:"caller"`
	PerformanceBps *uint64 `json:"performanceBps"`
	ManagementBps  *uint64 `json:"managementBps"`
}

type toggleRequest struct {
	Caller string `json:"caller"`
	Active bool   `json:"active"`
}

type sweepRequest struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
}

type tradeRequest struct {
	Caller       string `json:"caller"`
	AmountIn     string `json:"amountIn"`
	MinAmountOut string `json:"minAmountOut"`
}

type pauseRequest struct {
	Caller string `json:"caller"`
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

type advanceRequest struct {
	Seconds uint64 `json:"seconds"`
	Blocks  uint64 `json:"blocks"`
}

type faucetRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	// Token is a symbol or address; empty mints want.
	Token string `json:"token"`
}

type statusResponse struct {
	Status string `json:"status"`
	Height uint64 `json:"height"`
}

func parseAddressField(field, raw string) (common.Address, error) {
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %s: %v", errBadRequest, field, err)
	}
	return addr, nil
}

// parseRecipient defaults an empty recipient to fallback.
func parseRecipient(raw string, fallback common.Address) (common.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return parseAddressField("recipient", raw)
}

func (h *handler) ok(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Height: h.node.Info().Height})
}

// decodeCaller decodes req and resolves its caller field.
func (h *handler) decodeCaller(w http.ResponseWriter, r *http.Request, req any, caller *string) (common.Address, bool) {
	if err := decodeBody(r, req); err != nil {
		h.writeError(w, r, err)
		return common.Address{}, false
	}
	addr, err := parseAddressField("caller", *caller)
	if err != nil {
		h.writeError(w, r, err)
		return common.Address{}, false
	}
	return addr, true
}

func (h *handler) approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	caller, ok := h.decodeCaller(w, r, &req, &req.Caller)
	if !ok {
		return
	}
	spender, err := parseRecipient(req.Spender, core.VaultAddress)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount, h.wantDecimals)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.node.Approve(r.Context(), caller, spender, amount); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w)
}

func (h *handler) deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	caller, ok := h.decodeCaller(w, r, &req, &req.Caller)
	if !ok {
		return
	}
	recipient, err := parseRecipient(req.Recipient, caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount, h.wantDecimals)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shares, err := h.node.Deposit(r.Context(), caller, amount, recipient)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]Amount{"shares": newAmount(shares, h.wantDecimals)})
}

func (h *handler) withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	caller, ok := h.decodeCaller(w, r, &req, &req.Caller)
	if !ok {
		return
	}
	recipient, err := parseRecipient(req.Recipient, caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shares, err := parseOptionalAmount("shares", req.Shares, h.wantDecimals)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	maxLoss := defaultMaxLossBps
	if req.MaxLossBps != nil {
		maxLoss = *req.MaxLossBps
	}
	res, err := h.node.Withdraw(r.Context(), caller, shares, recipient, maxLoss)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]Amount{
		"shares": newAmount(res.Shares, h.wantDecimals),
		"value":  newAmount(res.Value, h.wantDecimals),
		"loss":   newAmount(res.Loss, h.wantDecimals),
	})
}

func (h *handler) harvest(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	caller, ok := h.decodeCaller(w, r, &req, &req.Caller)
	if !ok {
		return
	}
	receipt, err := h.node.Harvest(r.Context(), caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newHarvestView(receipt, h.wantDecimals))
}

func (h *handler) tend(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	caller, ok := h.decodeCaller(w, r, &req, &req.Caller)
	if !ok {
		return
	}
	if err := h.node.Tend(r.Context(), caller); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w)
}

func (h *handler) claimRewards(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	caller, ok := h.decodeCaller(w, r, &req, &req.Caller)
	if !ok {
		return
	}
	claimed, err := h.node.ClaimRewards(r.Context(), caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]Amount{"claimed": newAmount(claimed, h.rewardDecimals)})
}

func (h *handler) claimFees(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	caller, ok := h.decodeCaller(w, r, &req, &req.Caller)
	if !ok {
		return
	}
	claimed, err := h.node.ClaimFees(r.Context(), caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]Amount{"claimed": newAmount(claimed, h.wantDecimals)})
}

func (h *handler) fees(w http.ResponseWriter, r *http.Request) {
	var req feesRequest
	caller, ok := h.decodeCaller(w, r, &req, &req.Caller)
	if !ok {
		return
	}
	if req.PerformanceBps == nil && req.ManagementBps == nil {
		writeBadRequest(w, fmt.Errorf("%w: performanceBps or managementBps is required", errBadRequest))
		return
	}
	if err := h.node.SetFees(r.Context(), caller, req.PerformanceBps, req.ManagementBps); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w)
}

func (h *handler) debtRatio(w http.ResponseWriter, r *http.Request) {
	var req debtRatioRequest
	caller, ok := h.decodeCaller(w, r, &req, &req.Caller)
	if !ok {
		return
	}
	if err := h.node.SetDebtRatio(r.Context(), caller, req.DebtRatio); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w)
}

func (h *handler) emergencyExit(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	caller, ok := h.decodeCaller(w, r, &req, &req.Caller)
	if !ok {
		return
	}
	if err := h.node.SetEmergencyExit(r.Context(), caller); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w)
}

func (h *handler) shutdown(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	caller, ok := h.decodeCaller(w, r, &req, &req.Caller)
	if !ok {
		return
	}
	if err := h.node.SetEmergencyShutdown(r.Context(), caller, req.Active); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w)
}

func (h *handler) revoke(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	caller, ok := h.decodeCaller(w, r, &req, &req.Caller)
	if !ok {
		return
	}
	if err := h.node.RevokeStrategy(r.Context(), caller); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w)
}

// sweep accepts a token symbol or address.
func (h *handler) sweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	caller, ok := h.decodeCaller(w, r, &req, &req.Caller)
	if !ok {
		return
	}
	tok, err := h.node.LookupToken(req.Token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	swept, err := h.node.Sweep(r.Context(), caller, tok.Address)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": tok.Symbol, "amount": newAmount(swept, tok.Decimals)})
}

// executeTrade settles the strategy's pending reward trade. An empty caller
// acts as the first configured mechanic.
func (h *handler) executeTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	caller, ok := h.node.Mechanic()
	if strings.TrimSpace(req.Caller) != "" {
		addr, err := parseAddressField("caller", req.Caller)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		caller, ok = addr, true
	}
	if !ok {
		h.writeError(w, r, fmt.Errorf("%w: caller is required", errBadRequest))
		return
	}
	amountIn, err := parseOptionalAmount("amountIn", req.AmountIn, h.rewardDecimals)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	minOut, err := parseOptionalAmount("minAmountOut", req.MinAmountOut, h.wantDecimals)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	receipt, err := h.node.ExecuteTrade(r.Context(), caller, amountIn, minOut)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTradeReceiptView(receipt, h.rewardDecimals, h.wantDecimals))
}

func (h *handler) tradeFactory(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	caller, ok := h.decodeCaller(w, r, &req, &req.Caller)
	if !ok {
		return
	}
	if err := h.node.SetTradeFactory(r.Context(), caller, req.Active); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w)
}

func (h *handler) pause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	caller, ok := h.decodeCaller(w, r, &req, &req.Caller)
	if !ok {
		return
	}
	if err := h.node.SetPaused(r.Context(), caller, strings.ToLower(strings.TrimSpace(req.Module)), req.Paused); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w)
}

func (h *handler) advanceClock(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Seconds == 0 && req.Blocks == 0 {
		h.writeError(w, r, fmt.Errorf("%w: seconds or blocks required", errBadRequest))
		return
	}
	h.node.Advance(req.Seconds, req.Blocks)
	info := h.node.Info()
	writeJSON(w, http.StatusOK, map[string]uint64{"height": info.Height, "timestamp": info.Timestamp})
}

func (h *handler) faucet(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	recipient, err := parseAddressField("recipient", req.Recipient)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tok := h.node.Info().Want
	if strings.TrimSpace(req.Token) != "" {
		if tok, err = h.node.LookupToken(req.Token); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	amount, err := parseAmount("amount", req.Amount, tok.Decimals)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.node.FaucetToken(r.Context(), tok.Address, recipient, amount); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.ok(w)
}
