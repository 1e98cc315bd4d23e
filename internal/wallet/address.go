package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var ErrInvalidAddress = errors.New("invalid address")

const ZeroAddress = "0x0000000000000000000000000000000000000000"

// NormalizeAddress returns the lowercase form of a 0x-prefixed 20-byte hex address.
func NormalizeAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return "0x" + strings.ToLower(addr[2:]), nil
}

// MustAddress converts an already-normalized address for contract calls.
func MustAddress(addr string) common.Address {
	return common.HexToAddress(addr)
}
