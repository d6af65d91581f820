package ledger

import "github.com/cockroachdb/errors"

// ErrorKind names one branch of the taxonomy in the design notes: callers
// switch on Kind rather than matching error strings, and the indexer
// strips the cause chain before it reaches an external client.
type ErrorKind int

const (
	ErrKindUnknown ErrorKind = iota
	ErrKindDeserialization
	ErrKindMalformedTransaction
	ErrKindInvalidTransaction
	ErrKindSystemTransaction
	ErrKindBlockLimitExceeded
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindDeserialization:
		return "deserialization"
	case ErrKindMalformedTransaction:
		return "malformed_transaction"
	case ErrKindInvalidTransaction:
		return "invalid_transaction"
	case ErrKindSystemTransaction:
		return "system_transaction"
	case ErrKindBlockLimitExceeded:
		return "block_limit_exceeded"
	default:
		return "unknown"
	}
}

// LedgerError wraps a cause with the taxonomy kind it belongs to. The cause
// chain is preserved for Error()/logging and stripped by Public() for
// anything that crosses a client boundary.
type LedgerError struct {
	Kind  ErrorKind
	cause error
}

func (e *LedgerError) Error() string {
	return errors.Wrapf(e.cause, "%s", e.Kind).Error()
}

func (e *LedgerError) Unwrap() error { return e.cause }

// Public renders a client-safe message: the kind and nothing from the
// wrapped cause chain, which may carry internal state.
func (e *LedgerError) Public() string {
	return e.Kind.String()
}

func wrapErr(kind ErrorKind, cause error) error {
	if cause == nil {
		return nil
	}
	return &LedgerError{Kind: kind, cause: cause}
}

func newErr(kind ErrorKind, format string, args ...any) error {
	return &LedgerError{Kind: kind, cause: errors.Newf(format, args...)}
}

// Sentinel leaf errors matched with errors.Is against the Unwrap()'d cause.
var (
	ErrDoubleSpend             = errors.New("nullifier already present")
	ErrInvalidUpdate           = errors.New("invalid collapsed-update range")
	ErrContractAlreadyDeployed = errors.New("contract already deployed at address")
	ErrReplayProtectionFailure = errors.New("replay protection counter did not advance")
	ErrIllegalMint             = errors.New("mint not authorized at this block position")
	ErrInsufficientTreasury    = errors.New("insufficient treasury funds")
	ErrCommitmentAlreadyPresent = errors.New("commitment already present")
	ErrUTXONotFound            = errors.New("referenced unshielded utxo does not exist")
	ErrBalanceMismatch         = errors.New("segment does not balance")
	ErrTTLExpired              = errors.New("intent ttl has expired")
)
