package instruction

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Table maps operations to their one-byte discriminator for a single
// program version.
type Table map[OperationKind]byte

// DefaultTables are the discriminators of the deployed programs.
func DefaultTables() map[ProgramVersion]Table {
	return map[ProgramVersion]Table{
		V1:     {Stake: 6, Unstake: 7, Init: 8},
		V2:     {Stake: 9, Unstake: 10, Init: 11, Migrate: 12},
		Direct: {Claim: 0, Stake: 1, Init: 2, Unstake: 3},
	}
}

type UnsupportedOperationError struct {
	Kind    OperationKind
	Version ProgramVersion
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("operation %s is not defined for program version %s", e.Kind, e.Version)
}

var (
	ErrMissingAmount    = errors.New("operation requires an amount")
	ErrUnexpectedAmount = errors.New("operation does not take an amount")
	ErrZeroAmount       = errors.New("amount must be positive")
	ErrPayloadLength    = errors.New("payload must be 1 or 9 bytes")
)

// Payload is an encoded instruction data buffer.
type Payload struct {
	Discriminator byte
	Data          []byte
}

// Encoder holds the discriminator tables for every program version.
type Encoder struct {
	tables map[ProgramVersion]Table
}

// NewEncoder applies overrides, keyed by version then operation name, on top
// of DefaultTables.
func NewEncoder(overrides map[string]map[string]uint8) (*Encoder, error) {
	tables := DefaultTables()
	for versionName, entries := range overrides {
		v, err := ParseVersion(versionName)
		if err != nil {
			return nil, fmt.Errorf("failed to apply discriminator overrides: %w", err)
		}
		for opName, disc := range entries {
			k, err := ParseKind(opName)
			if err != nil {
				return nil, fmt.Errorf("failed to apply discriminator overrides for %s: %w", v, err)
			}
			tables[v][k] = disc
		}
	}

	for v, table := range tables {
		seen := make(map[byte]OperationKind, len(table))
		for k, disc := range table {
			if prev, ok := seen[disc]; ok {
				return nil, fmt.Errorf("program version %s maps both %s and %s to discriminator %d", v, prev, k, disc)
			}
			seen[disc] = k
		}
	}
	return &Encoder{tables: tables}, nil
}

// Supports reports whether kind has a discriminator under version.
func (e *Encoder) Supports(kind OperationKind, version ProgramVersion) bool {
	_, ok := e.tables[version][kind]
	return ok
}

func (e *Encoder) Discriminator(kind OperationKind, version ProgramVersion) (byte, error) {
	disc, ok := e.tables[version][kind]
	if !ok {
		return 0, &UnsupportedOperationError{Kind: kind, Version: version}
	}
	return disc, nil
}

// Encode lays out [discriminator] or [discriminator] ++ LE64(amount).
func (e *Encoder) Encode(kind OperationKind, version ProgramVersion, amount *uint64) (Payload, error) {
	disc, err := e.Discriminator(kind, version)
	if err != nil {
		return Payload{}, err
	}

	if !kind.CarriesAmount() {
		if amount != nil {
			return Payload{}, fmt.Errorf("%s: %w", kind, ErrUnexpectedAmount)
		}
		return Payload{Discriminator: disc, Data: []byte{disc}}, nil
	}

	if amount == nil {
		return Payload{}, fmt.Errorf("%s: %w", kind, ErrMissingAmount)
	}
	if *amount == 0 {
		return Payload{}, fmt.Errorf("%s: %w", kind, ErrZeroAmount)
	}
	data := make([]byte, 9)
	data[0] = disc
	binary.LittleEndian.PutUint64(data[1:], *amount)
	return Payload{Discriminator: disc, Data: data}, nil
}

// DecodePayload splits a payload into its discriminator and optional amount.
func DecodePayload(data []byte) (byte, *uint64, error) {
	switch len(data) {
	case 1:
		return data[0], nil, nil
	case 9:
		amount := binary.LittleEndian.Uint64(data[1:])
		return data[0], &amount, nil
	default:
		return 0, nil, ErrPayloadLength
	}
}

// Decode resolves a payload back to its operation under version.
func (e *Encoder) Decode(version ProgramVersion, data []byte) (OperationKind, *uint64, error) {
	disc, amount, err := DecodePayload(data)
	if err != nil {
		return 0, nil, err
	}
	for k, d := range e.tables[version] {
		if d != disc {
			continue
		}
		if k.CarriesAmount() != (amount != nil) {
			return 0, nil, fmt.Errorf("discriminator %d (%s) with %d byte payload: %w", disc, k, len(data), ErrPayloadLength)
		}
		return k, amount, nil
	}
	return 0, nil, fmt.Errorf("unknown discriminator %d for program version %s", disc, version)
}
