package ore_protocol

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
)

// LedgerQueryError is a failed read of ledger state. It never means the
// account is absent.
type LedgerQueryError struct {
	Op      string
	Account solana.PublicKey
	Err     error
}

func (e *LedgerQueryError) Error() string {
	if e.Account.IsZero() {
		return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("failed to %s for %s: %v", e.Op, e.Account, e.Err)
}

func (e *LedgerQueryError) Unwrap() error { return e.Err }

// SubmissionError covers signing, sending and on-chain execution failures.
type SubmissionError struct {
	Stage     string
	Signature solana.Signature
	Err       error
}

func (e *SubmissionError) Error() string {
	if e.Signature.IsZero() {
		return fmt.Sprintf("failed to %s transaction: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("transaction %s failed to %s: %v", e.Signature, e.Stage, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// ConfirmationTimeoutError means the transaction was sent but no
// confirmation was observed. It may still land.
type ConfirmationTimeoutError struct {
	Signature solana.Signature
	Waited    time.Duration
	Err       error
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("transaction %s was sent but not confirmed after %s; check an explorer before retrying", e.Signature, e.Waited.Round(time.Second))
}

func (e *ConfirmationTimeoutError) Unwrap() error { return e.Err }

type FundsResource int

const (
	NativeFunds FundsResource = iota + 1
	TokenFunds
)

func (r FundsResource) String() string {
	switch r {
	case NativeFunds:
		return "SOL"
	case TokenFunds:
		return "token"
	default:
		return "unknown"
	}
}

// InsufficientFundsError distinguishes a fee shortfall (NativeFunds) from a
// token balance shortfall (TokenFunds).
type InsufficientFundsError struct {
	Resource  FundsResource
	Mint      solana.PublicKey
	Required  uint64
	Available uint64
	Err       error
}

func (e *InsufficientFundsError) Error() string {
	switch e.Resource {
	case NativeFunds:
		if e.Required > 0 {
			return fmt.Sprintf("insufficient SOL for transaction fees: have %d lamports, need at least %d", e.Available, e.Required)
		}
		return fmt.Sprintf("insufficient SOL for transaction fees: %v", e.Err)
	default:
		if e.Required > 0 {
			return fmt.Sprintf("insufficient %s token balance: have %d, need %d base units", e.Mint, e.Available, e.Required)
		}
		return fmt.Sprintf("insufficient token balance: %v", e.Err)
	}
}

func (e *InsufficientFundsError) Unwrap() error { return e.Err }

var (
	nativeShortfall = regexp.MustCompile(`insufficient lamports|insufficientfundsforfee|insufficient funds for fee|no record of a prior credit`)
	tokenShortfall  = regexp.MustCompile(`error: insufficient funds|custom program error: 0x1\b`)
)

// classifyFundsError recognises funds shortfalls in node error messages.
func classifyFundsError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case nativeShortfall.MatchString(msg):
		return &InsufficientFundsError{Resource: NativeFunds, Err: err}
	case tokenShortfall.MatchString(msg):
		return &InsufficientFundsError{Resource: TokenFunds, Err: err}
	}
	return nil
}
