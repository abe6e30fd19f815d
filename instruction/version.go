// Package instruction encodes delegation and boost program instructions:
// discriminator tables per program version, payload layout, base-unit
// amounts and the ordered account lists each operation expects.
package instruction

import (
	"fmt"
	"strings"
)

// ProgramVersion selects the program and discriminator table an instruction
// targets. It is always explicit.
type ProgramVersion int

const (
	// V1 is the delegation program with the original delegated-boost record.
	V1 ProgramVersion = iota + 1
	// V2 is the delegation program with the v2 delegated-boost record.
	V2
	// Direct is the current boost program, staking without delegation.
	Direct
)

var versionNames = map[ProgramVersion]string{
	V1:     "v1",
	V2:     "v2",
	Direct: "direct",
}

func (v ProgramVersion) String() string {
	if name, ok := versionNames[v]; ok {
		return name
	}
	return fmt.Sprintf("version(%d)", int(v))
}

func (v ProgramVersion) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *ProgramVersion) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Delegated reports whether the version targets the delegation program.
func (v ProgramVersion) Delegated() bool {
	return v == V1 || v == V2
}

func ParseVersion(s string) (ProgramVersion, error) {
	for v, name := range versionNames {
		if strings.EqualFold(s, name) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown program version %q (want v1, v2 or direct)", s)
}

type OperationKind int

const (
	Init OperationKind = iota + 1
	Stake
	Unstake
	Migrate
	Claim
)

var kindNames = map[OperationKind]string{
	Init:    "init",
	Stake:   "stake",
	Unstake: "unstake",
	Migrate: "migrate",
	Claim:   "claim",
}

func (k OperationKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", int(k))
}

func (k OperationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *OperationKind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// CarriesAmount reports whether the payload of k ends with a u64 amount.
func (k OperationKind) CarriesAmount() bool {
	return k == Stake || k == Unstake || k == Claim
}

// ParseKind accepts the canonical names plus the open/deposit/withdraw
// aliases used by the boost program.
func ParseKind(s string) (OperationKind, error) {
	switch strings.ToLower(s) {
	case "open":
		return Init, nil
	case "deposit":
		return Stake, nil
	case "withdraw":
		return Unstake, nil
	}
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q", s)
}
