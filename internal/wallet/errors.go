package wallet

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// EIP-1193 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
)

var (
	ErrNoProvider   = errors.New("no wallet found")
	ErrNotConnected = errors.New("wallet not connected")
	ErrUserRejected = errors.New("user rejected the request")
)

// ProviderError is a coded error returned by a wallet provider.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// Is matches ErrUserRejected for code 4001.
func (e *ProviderError) Is(target error) bool {
	return target == ErrUserRejected && e.Code == CodeUserRejected
}

// ErrorCode lets ProviderError satisfy rpc.Error.
func (e *ProviderError) ErrorCode() int { return e.Code }

// IsUserRejection reports whether err is the user declining a wallet prompt.
func IsUserRejection(err error) bool {
	var coded rpc.Error
	if errors.As(err, &coded) {
		return coded.ErrorCode() == CodeUserRejected
	}
	return false
}
