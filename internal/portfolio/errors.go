package portfolio

import (
	"errors"
	"fmt"
)

// Kind names why a trade was rejected
type Kind string

const (
	KindInvalidSymbol      Kind = "invalid_symbol"
	KindInvalidQuantity    Kind = "invalid_quantity"
	KindInvalidPrice       Kind = "invalid_price"
	KindInsufficientFunds  Kind = "insufficient_funds"
	KindNoPosition         Kind = "no_position"
	KindInsufficientShares Kind = "insufficient_shares"
)

var (
	ErrInvalidSymbol      = errors.New("invalid symbol")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrInvalidPrice       = errors.New("no usable price")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrNoPosition         = errors.New("no position held")
	ErrInsufficientShares = errors.New("insufficient shares")
)

var sentinels = map[Kind]error{
	KindInvalidSymbol:      ErrInvalidSymbol,
	KindInvalidQuantity:    ErrInvalidQuantity,
	KindInvalidPrice:       ErrInvalidPrice,
	KindInsufficientFunds:  ErrInsufficientFunds,
	KindNoPosition:         ErrNoPosition,
	KindInsufficientShares: ErrInsufficientShares,
}

// RejectionError is a trade the engine refused. Nothing was written.
type RejectionError struct {
	Kind   Kind
	Symbol string
	Detail string
	cause  error
}

func (e *RejectionError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Symbol, sentinels[e.Kind])
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is matches the sentinel of the rejection kind
func (e *RejectionError) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func (e *RejectionError) Unwrap() error { return e.cause }

func reject(kind Kind, symbol, format string, args ...any) *RejectionError {
	return &RejectionError{Kind: kind, Symbol: symbol, Detail: fmt.Sprintf(format, args...)}
}

// AsRejection returns the rejection inside err, if any
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
