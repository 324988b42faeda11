package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies a ledger failure for the retry policy upstream. The client
// itself never retries.
type Kind int

const (
	// KindInvalidInput: malformed hash or unusable config. Permanent.
	KindInvalidInput Kind = iota + 1
	// KindReceiptTimeout: tx broadcast but not mined in time. Retryable.
	KindReceiptTimeout
	// KindTxRejected: receipt status 0, reverted. Permanent.
	KindTxRejected
	// KindTransport: RPC/network failure. Retryable.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindReceiptTimeout:
		return "receipt_timeout"
	case KindTxRejected:
		return "tx_rejected"
	case KindTransport:
		return "transport"
	}
	return "unknown"
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ledger %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("ledger %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the failure kind; unclassified errors count as transport
// so they stay retryable.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindTransport
}

// Permanent reports whether the failure should dead-letter immediately.
func Permanent(err error) bool {
	k := KindOf(err)
	return k == KindInvalidInput || k == KindTxRejected
}
