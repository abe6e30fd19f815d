package storage

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/gagliardetto/solana-go"
)

const (
	walletFileName = "wallets.json"
	configDirName  = "ore-boost"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")
	ErrInvalidName     = errors.New("profile name must not be empty")
)

// JSONDB stores named signing keys in a single JSON file.
type JSONDB struct {
	path string
	mu   sync.Mutex
}

// NewWalletStorage opens the store under the user's config directory.
func NewWalletStorage() (*JSONDB, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("could not get config directory: %w", err)
	}
	return Connect(filepath.Join(dir, configDirName, walletFileName))
}

// Connect opens the store at path, creating its directory when needed.
func Connect(path string) (*JSONDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}
	return &JSONDB{path: path}, nil
}

// Path returns the file backing the store.
func (db *JSONDB) Path() string {
	return db.path
}

func (db *JSONDB) load() (*walletFile, error) {
	data, err := os.ReadFile(db.path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0) {
		return &walletFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read wallet file: %w", err)
	}

	var f walletFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("could not parse wallet file: %w", err)
	}
	return &f, nil
}

func (db *JSONDB) store(f *walletFile) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal wallet data: %w", err)
	}
	tmp := db.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("could not write wallet file: %w", err)
	}
	if err := os.Rename(tmp, db.path); err != nil {
		return fmt.Errorf("could not replace wallet file: %w", err)
	}
	return nil
}

func decodeKey(w WalletData) (solana.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(w.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("could not decode private key of %q: %w", w.Name, err)
	}
	if len(raw) != solana.PrivateKeyLength {
		return nil, fmt.Errorf("invalid private key length for %q: expected %d, got %d", w.Name, solana.PrivateKeyLength, len(raw))
	}
	return solana.PrivateKey(raw), nil
}

// GetWallet returns the signing key of the named profile.
func (db *JSONDB) GetWallet(name string) (solana.PrivateKey, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	f, err := db.load()
	if err != nil {
		return nil, err
	}
	for _, w := range f.Wallets {
		if w.Name == name {
			return decodeKey(w)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// SaveWallet stores key under name. Existing profiles are never replaced.
// The first saved profile becomes the default.
func (db *JSONDB) SaveWallet(name string, key solana.PrivateKey) error {
	if name == "" {
		return ErrInvalidName
	}
	if len(key) != solana.PrivateKeyLength {
		return fmt.Errorf("invalid private key length: expected %d, got %d", solana.PrivateKeyLength, len(key))
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	f, err := db.load()
	if err != nil {
		return err
	}
	for _, w := range f.Wallets {
		if w.Name == name {
			return fmt.Errorf("%w: %s", ErrProfileExists, name)
		}
	}
	f.Wallets = append(f.Wallets, WalletData{
		Name:       name,
		PublicKey:  key.PublicKey().String(),
		PrivateKey: base64.StdEncoding.EncodeToString(key),
	})
	if f.Default == "" {
		f.Default = name
	}
	return db.store(f)
}

// DeleteWallet removes the named profile.
func (db *JSONDB) DeleteWallet(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	f, err := db.load()
	if err != nil {
		return err
	}
	i := slices.IndexFunc(f.Wallets, func(w WalletData) bool { return w.Name == name })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	f.Wallets = slices.Delete(f.Wallets, i, i+1)
	if f.Default == name {
		f.Default = ""
		if len(f.Wallets) > 0 {
			f.Default = f.Wallets[0].Name
		}
	}
	return db.store(f)
}

// GetAllWalletNames lists the profile names in creation order.
func (db *JSONDB) GetAllWalletNames() ([]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	f, err := db.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(f.Wallets))
	for _, w := range f.Wallets {
		names = append(names, w.Name)
	}
	return names, nil
}

// GetAllWallets returns the public key of every profile, keyed by name.
func (db *JSONDB) GetAllWallets() (map[string]solana.PublicKey, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	f, err := db.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]solana.PublicKey, len(f.Wallets))
	for _, w := range f.Wallets {
		key, err := decodeKey(w)
		if err != nil {
			return nil, err
		}
		out[w.Name] = key.PublicKey()
	}
	return out, nil
}

// DefaultWallet returns the name of the default profile, or "" when the
// store is empty.
func (db *JSONDB) DefaultWallet() (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	f, err := db.load()
	if err != nil {
		return "", err
	}
	return f.Default, nil
}

// SetDefaultWallet makes name the default profile.
func (db *JSONDB) SetDefaultWallet(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	f, err := db.load()
	if err != nil {
		return err
	}
	if !slices.ContainsFunc(f.Wallets, func(w WalletData) bool { return w.Name == name }) {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	f.Default = name
	return db.store(f)
}
