package ore_protocol

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
)

const (
	defaultConfigDirName = ".config"
	solanaConfigDirName  = "solana"
	keypairFileName      = "id.json"
)

// Wallet holds a staker keypair.
type Wallet struct {
	PrivateKey solana.PrivateKey
}

// PublicKey returns the public key of the wallet.
func (w *Wallet) PublicKey() solana.PublicKey {
	return w.PrivateKey.PublicKey()
}

// NewWallet generates a fresh keypair.
func NewWallet() *Wallet {
	return &Wallet{PrivateKey: solana.NewWallet().PrivateKey}
}

// LoadWalletFromFile reads a solana-keygen style JSON byte array.
func LoadWalletFromFile(path string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet file: %w", err)
	}
	return ParseWallet(data)
}

// ParseWallet decodes a solana-keygen style JSON byte array.
func ParseWallet(data []byte) (*Wallet, error) {
	var privateKeyBytes []byte
	if err := json.Unmarshal(data, &privateKeyBytes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet file: %w", err)
	}
	if len(privateKeyBytes) != solana.PrivateKeyLength {
		return nil, fmt.Errorf("invalid private key length: expected %d, got %d", solana.PrivateKeyLength, len(privateKeyBytes))
	}

	privateKey := solana.PrivateKey(privateKeyBytes)
	if err := privateKey.Validate(); err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Wallet{PrivateKey: privateKey}, nil
}

// MarshalWallet encodes the keypair the way solana-keygen writes it.
func MarshalWallet(w *Wallet) ([]byte, error) {
	ints := make([]int, len(w.PrivateKey))
	for i, b := range w.PrivateKey {
		ints[i] = int(b)
	}
	return json.Marshal(ints)
}

// SaveWalletToFile writes the keypair with owner-only permissions.
func SaveWalletToFile(w *Wallet, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create wallet directory: %w", err)
	}

	data, err := MarshalWallet(w)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write wallet file: %w", err)
	}
	return nil
}

// DefaultKeypairPath is the solana CLI default, e.g.
// /home/user/.config/solana/id.json
func DefaultKeypairPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, defaultConfigDirName, solanaConfigDirName, keypairFileName), nil
}
