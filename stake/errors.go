package stake

import (
	"context"
	"errors"
	"fmt"

	"ore-boost-cli/derive"
	"ore-boost-cli/instruction"
	"ore-boost-cli/rewards"
	ore_protocol "ore-boost-cli/solana"
	"ore-boost-cli/txbuilder"
)

// ErrorKind is the user-facing class of a failed operation.
type ErrorKind int

const (
	Unknown ErrorKind = iota
	Validation
	Derivation
	LedgerQuery
	Submission
	ConfirmationTimeout
	InsufficientFunds
	RewardsAPI
)

var errorKindNames = map[ErrorKind]string{
	Unknown:             "unknown",
	Validation:          "validation",
	Derivation:          "derivation",
	LedgerQuery:         "ledger query",
	Submission:          "submission",
	ConfirmationTimeout: "confirmation timeout",
	InsufficientFunds:   "insufficient funds",
	RewardsAPI:          "rewards api",
}

func (k ErrorKind) String() string {
	if s, ok := errorKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Retryable reports whether re-running the operation from Idle can succeed
// without the user changing anything.
func (k ErrorKind) Retryable() bool {
	switch k {
	case LedgerQuery, Submission, RewardsAPI:
		return true
	}
	return false
}

// OperationError is the terminal error of a failed operation.
type OperationError struct {
	Kind  ErrorKind
	Op    instruction.OperationKind
	State State
	Err   error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed while %s (%s error): %v", e.Op, e.State, e.Kind, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

var (
	ErrMissingStaker = errors.New("staker address is required")
	ErrMissingMint   = errors.New("mint address is required")
	// ErrUnstakeAllDirect is returned by UnstakeAll for the current boost
	// program, whose stake records the rewards service does not report.
	ErrUnstakeAllDirect = errors.New("unstake all is not available for direct stake records; give an amount")
)

// Classify maps err to its ErrorKind. Errors of unknown type are Unknown.
func Classify(err error) ErrorKind {
	if err == nil {
		return Unknown
	}

	var (
		opErr       *OperationError
		fundsErr    *ore_protocol.InsufficientFundsError
		timeoutErr  *ore_protocol.ConfirmationTimeoutError
		submitErr   *ore_protocol.SubmissionError
		ledgerErr   *ore_protocol.LedgerQueryError
		apiErr      *rewards.APIError
		amountErr   *instruction.InvalidAmountError
		overflowErr *instruction.AmountOverflowError
		unsupported *instruction.UnsupportedOperationError
		missingErr  *txbuilder.MissingAccountError
		depErr      *txbuilder.DependencyUnresolvedError
		seedErr     *derive.InvalidSeedError
	)
	switch {
	case errors.As(err, &opErr) && opErr.Kind != Unknown:
		return opErr.Kind
	case errors.As(err, &fundsErr):
		return InsufficientFunds
	case errors.As(err, &timeoutErr):
		return ConfirmationTimeout
	case errors.As(err, &submitErr), errors.Is(err, ore_protocol.ErrReadOnly):
		return Submission
	case errors.As(err, &ledgerErr):
		return LedgerQuery
	case errors.As(err, &apiErr), errors.Is(err, rewards.ErrNot200Status):
		return RewardsAPI
	case errors.As(err, &amountErr), errors.As(err, &overflowErr), errors.As(err, &unsupported),
		errors.As(err, &missingErr), errors.Is(err, txbuilder.ErrEmptyTransaction),
		errors.Is(err, ErrMissingStaker), errors.Is(err, ErrMissingMint), errors.Is(err, ErrUnstakeAllDirect):
		return Validation
	case errors.As(err, &depErr), errors.As(err, &seedErr), errors.Is(err, derive.ErrNoViableBump),
		errors.Is(err, derive.ErrBoostProgramUnset):
		return Derivation
	}
	return Unknown
}

// classifyAt falls back to the state the operation failed in when the error
// type alone says nothing.
func classifyAt(err error, state State) ErrorKind {
	if kind := Classify(err); kind != Unknown {
		return kind
	}
	if errors.Is(err, context.DeadlineExceeded) && state == Confirming {
		return ConfirmationTimeout
	}
	switch state {
	case Validating:
		return Validation
	case Deriving:
		return Derivation
	case Resolving:
		return LedgerQuery
	case Submitting, Confirming:
		return Submission
	}
	return Unknown
}
