// Package derive computes program-derived addresses bit-compatible with the
// Solana runtime.
package derive

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"
	sha256 "github.com/minio/sha256-simd"
)

const (
	MaxSeeds   = 16
	MaxSeedLen = 32
	PdaMarker  = "ProgramDerivedAddress"
)

var ErrNoViableBump = errors.New("unable to find a viable program address bump seed")

// InvalidSeedError reports a seed list the runtime would refuse.
type InvalidSeedError struct {
	Index  int
	Reason string
}

func (e *InvalidSeedError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid seeds: %s", e.Reason)
	}
	return fmt.Sprintf("invalid seed %d: %s", e.Index, e.Reason)
}

// CheckSeeds validates user seeds, leaving room for the bump seed.
func CheckSeeds(seeds [][]byte) error {
	if len(seeds) == 0 {
		return &InvalidSeedError{Index: -1, Reason: "seed list is empty"}
	}
	if len(seeds) > MaxSeeds-1 {
		return &InvalidSeedError{Index: -1, Reason: fmt.Sprintf("%d seeds exceed the maximum of %d", len(seeds), MaxSeeds-1)}
	}
	for i, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return &InvalidSeedError{Index: i, Reason: fmt.Sprintf("length %d exceeds %d bytes", len(seed), MaxSeedLen)}
		}
	}
	return nil
}

// CreateProgramAddress hashes seeds (bump included) under programID and
// rejects results that lie on the ed25519 curve.
func CreateProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, bool) {
	hasher := sha256.New()
	for _, seed := range seeds {
		hasher.Write(seed)
	}
	hasher.Write(programID[:])
	hasher.Write([]byte(PdaMarker))

	var out solana.PublicKey
	copy(out[:], hasher.Sum(nil))
	if IsOnCurve(out[:]) {
		return solana.PublicKey{}, false
	}
	return out, true
}

// IsOnCurve checks if b is a valid ed25519 point encoding.
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// FindProgramAddress searches bumps from 255 down to 1 and returns the first
// off-curve address.
func FindProgramAddress(programID solana.PublicKey, seeds ...[]byte) (solana.PublicKey, uint8, error) {
	if err := CheckSeeds(seeds); err != nil {
		return solana.PublicKey{}, 0, err
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	bump := []byte{0}
	withBump[len(seeds)] = bump

	for b := 255; b > 0; b-- {
		bump[0] = byte(b)
		if addr, ok := CreateProgramAddress(withBump, programID); ok {
			return addr, uint8(b), nil
		}
	}
	return solana.PublicKey{}, 0, ErrNoViableBump
}
