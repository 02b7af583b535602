package routes

import (
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"vaultchain/crypto"
)

const defaultHistoryLimit = 50

func (h *handler) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newInfoView(h.node.Info()))
}

func (h *handler) vault(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newVaultView(h.node.VaultSummary(), h.wantDecimals))
}

// strategy returns the strategy status. The optional callCost query value,
// in want units, feeds the keeper triggers.
func (h *handler) strategy(w http.ResponseWriter, r *http.Request) {
	callCost := big.NewInt(0)
	if raw := r.URL.Query().Get("callCost"); raw != "" {
		parsed, err := parseAmount("callCost", raw, h.wantDecimals)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		callCost = parsed
	}
	view := newStrategyView(h.node.StrategyStatus(), h.node.StrategyParams(), h.node.Triggers(callCost), h.wantDecimals, h.rewardDecimals)
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) farm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newFarmView(h.node.FarmTotals(), h.wantDecimals))
}

func (h *handler) account(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.ParseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(h.node.Account(addr), h.wantDecimals, h.rewardDecimals))
}

func (h *handler) reports(w http.ResponseWriter, r *http.Request) {
	limit, err := historyLimit(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	records, err := h.node.Reports(limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	views := make([]reportView, len(records))
	for i, rec := range records {
		views[i] = newReportView(rec, h.wantDecimals)
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *handler) trades(w http.ResponseWriter, r *http.Request) {
	limit, err := historyLimit(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	records, err := h.node.Trades(limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	views := make([]tradeView, len(records))
	for i, rec := range records {
		views[i] = newTradeRecordView(rec, h.rewardDecimals, h.wantDecimals)
	}
	writeJSON(w, http.StatusOK, views)
}

func historyLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("%w: limit must be a non-negative integer", errBadRequest)
	}
	return limit, nil
}
