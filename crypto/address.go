package crypto

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ZeroAddress is the unset address.
var ZeroAddress = common.Address{}

// DeriveAddress maps a human readable label onto a deterministic address by
// taking the last 20 bytes of keccak256(label). Simulated contracts and test
// accounts use it so that identities are stable across runs.
func DeriveAddress(label string) common.Address {
	normalized := strings.ToLower(strings.TrimSpace(label))
	return common.BytesToAddress(ethcrypto.Keccak256([]byte(normalized)))
}

// ContractAddress derives the address of a contract deployed by deployer with
// the given nonce, mirroring CREATE semantics.
func ContractAddress(deployer common.Address, nonce uint64) common.Address {
	return ethcrypto.CreateAddress(deployer, nonce)
}

// ParseAddress accepts a 0x-prefixed hex address or a label prefixed with
// "@" (resolved through DeriveAddress).
func ParseAddress(value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return common.Address{}, fmt.Errorf("address must not be empty")
	}
	if strings.HasPrefix(trimmed, "@") {
		label := strings.TrimPrefix(trimmed, "@")
		if strings.TrimSpace(label) == "" {
			return common.Address{}, fmt.Errorf("address label must not be empty")
		}
		return DeriveAddress(label), nil
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", value)
	}
	return common.HexToAddress(trimmed), nil
}

// IsZero reports whether addr is the zero address.
func IsZero(addr common.Address) bool {
	return addr == ZeroAddress
}
