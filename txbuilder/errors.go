package txbuilder

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"ore-boost-cli/instruction"
)

// ErrEmptyTransaction is returned instead of a transaction that would carry
// no staking instruction.
var ErrEmptyTransaction = errors.New("transaction has no operation instructions")

// DependencyUnresolvedError means an address an operation needs could not be
// derived.
type DependencyUnresolvedError struct {
	Kind instruction.OperationKind
	Mint solana.PublicKey
	Err  error
}

func (e *DependencyUnresolvedError) Error() string {
	return fmt.Sprintf("cannot resolve accounts for %s of %s: %v", e.Kind, e.Mint, e.Err)
}

func (e *DependencyUnresolvedError) Unwrap() error { return e.Err }

// MissingAccountError means an operation needs a record that does not exist
// and that it may not create.
type MissingAccountError struct {
	Kind    instruction.OperationKind
	Version instruction.ProgramVersion
	Account solana.PublicKey
	What    string
}

func (e *MissingAccountError) Error() string {
	return fmt.Sprintf("%s (%s) requires %s %s, which does not exist", e.Kind, e.Version, e.What, e.Account)
}
