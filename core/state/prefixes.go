package state

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	schemaVersionKey   = []byte("meta/schema-version")
	vaultCheckpointKey = []byte("vault/checkpoint")
	strategyPrefix     = []byte("strategy/checkpoint/")
	reportSeqKey       = []byte("reports/seq")
	reportPrefix       = []byte("reports/entry/")
	tradeSeqKey        = []byte("trades/seq")
	tradePrefix        = []byte("trades/entry/")
)

// SchemaVersion is bumped whenever a record layout changes.
const SchemaVersion uint64 = 1

// StrategyCheckpointKey returns the key of a strategy's latest checkpoint.
func StrategyCheckpointKey(addr common.Address) []byte {
	return append(append([]byte(nil), strategyPrefix...), []byte(strings.ToLower(addr.Hex()))...)
}

// ReportKey returns the key of the seq-th harvest report. The sequence is
// zero padded so lexical order matches insertion order.
func ReportKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", reportPrefix, seq))
}

// TradeKey returns the key of the seq-th settled trade.
func TradeKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", tradePrefix, seq))
}
