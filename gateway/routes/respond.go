package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"vaultchain/core"
	nativecommon "vaultchain/native/common"
)

const requestBodyLimit = 1 << 20 // 1 MiB

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

// writeError maps engine failures to HTTP statuses. Reverts are conflicts
// with the current chain state and carry their reason verbatim.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if reason, ok := nativecommon.ReasonOf(err); ok {
		writeJSON(w, http.StatusConflict, errorResponse{Error: reason})
		return
	}
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, core.ErrUnknownModule), errors.Is(err, core.ErrUnknownToken):
		writeBadRequest(w, err)
	default:
		h.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, requestBodyLimit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", errBadRequest)
		}
		return fmt.Errorf("%w: decode request: %v", errBadRequest, err)
	}
	return nil
}

// Amount renders a base-unit quantity next to its token-unit decimal form.
type Amount struct {
	Raw   string `json:"raw"`
	Units string `json:"units"`
}

func newAmount(v *big.Int, decimals uint8) Amount {
	if v == nil {
		v = new(big.Int)
	}
	return Amount{
		Raw:   v.String(),
		Units: decimal.NewFromBigInt(v, -int32(decimals)).String(),
	}
}

// parseAmount converts a token-unit decimal string ("12.5") into base units.
// It rejects negative values and precision finer than the token supports.
func parseAmount(field, raw string, decimals uint8) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(raw), "_", "")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: %s is required", errBadRequest, field)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errBadRequest, field, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %s must not be negative", errBadRequest, field)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: %s has more than %d decimals", errBadRequest, field, decimals)
	}
	return scaled.BigInt(), nil
}

// parseOptionalAmount returns nil for an empty field.
func parseOptionalAmount(field, raw string, decimals uint8) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return parseAmount(field, raw, decimals)
}
