package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func uintToString(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func boolToString(v bool) string {
	return strconv.FormatBool(v)
}

func formatAddress(addr common.Address) string {
	return addr.Hex()
}
