package storage

// WalletData is one named profile as stored in the JSON file.
type WalletData struct {
	Name       string `json:"name"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"` // base64
}

// walletFile is the on-disk layout of the profile store.
type walletFile struct {
	Default string       `json:"default,omitempty"`
	Wallets []WalletData `json:"wallets"`
}
