package ore_protocol

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	lru "github.com/hashicorp/golang-lru"
)

const (
	// maxAccountsPerRequest is the getMultipleAccounts limit of the public nodes.
	maxAccountsPerRequest = 100
	decimalsCacheSize     = 64

	DefaultPollInterval   = 700 * time.Millisecond
	DefaultConfirmTimeout = 60 * time.Second
)

// Client reads ledger state and submits transactions for the staking
// programs.
type Client struct {
	RpcClient  *rpc.Client
	Signer     solana.PrivateKey
	Commitment rpc.CommitmentType

	// PollInterval and ConfirmTimeout drive Confirm.
	PollInterval   time.Duration
	ConfirmTimeout time.Duration

	decimals *lru.Cache
}

// NewClient creates a new Client with a specific signer.
func NewClient(rpcEndpoint string, signer solana.PrivateKey) (*Client, error) {
	return NewClientWithRPC(rpc.New(rpcEndpoint), signer)
}

// NewClientWithRPC wraps an existing rpc client.
func NewClientWithRPC(rpcClient *rpc.Client, signer solana.PrivateKey) (*Client, error) {
	cache, err := lru.New(decimalsCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create decimals cache: %w", err)
	}
	return &Client{
		RpcClient:      rpcClient,
		Signer:         signer,
		Commitment:     rpc.CommitmentConfirmed,
		PollInterval:   DefaultPollInterval,
		ConfirmTimeout: DefaultConfirmTimeout,
		decimals:       cache,
	}, nil
}

// CanSign reports whether the client holds a signing key.
func (c *Client) CanSign() bool {
	return len(c.Signer) == solana.PrivateKeyLength
}

// PublicKey returns the signer's address, or the zero key for read-only
// clients.
func (c *Client) PublicKey() solana.PublicKey {
	if !c.CanSign() {
		return solana.PublicKey{}
	}
	return c.Signer.PublicKey()
}

// GetAccountInfo returns the account at address, or nil when none exists.
func (c *Client) GetAccountInfo(ctx context.Context, address solana.PublicKey) (*rpc.Account, error) {
	resp, err := c.RpcClient.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.Commitment,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, &LedgerQueryError{Op: "get account info", Account: address, Err: err}
	}
	return resp.Value, nil
}

// GetMultipleAccountsInfo returns one entry per address, nil where no account
// exists. Large lists are fetched in chunks.
func (c *Client) GetMultipleAccountsInfo(ctx context.Context, addresses []solana.PublicKey) ([]*rpc.Account, error) {
	out := make([]*rpc.Account, 0, len(addresses))
	for start := 0; start < len(addresses); start += maxAccountsPerRequest {
		end := min(start+maxAccountsPerRequest, len(addresses))
		chunk := addresses[start:end]

		resp, err := c.RpcClient.GetMultipleAccountsWithOpts(ctx, chunk, &rpc.GetMultipleAccountsOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: c.Commitment,
		})
		switch {
		case errors.Is(err, rpc.ErrNotFound):
			out = append(out, make([]*rpc.Account, len(chunk))...)
			continue
		case err != nil:
			return nil, &LedgerQueryError{Op: "get multiple accounts", Err: err}
		case len(resp.Value) != len(chunk):
			return nil, &LedgerQueryError{
				Op:  "get multiple accounts",
				Err: fmt.Errorf("node returned %d accounts for %d addresses", len(resp.Value), len(chunk)),
			}
		}
		out = append(out, resp.Value...)
	}
	return out, nil
}

// GetBalance retrieves the lamport balance of address.
func (c *Client) GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	balance, err := c.RpcClient.GetBalance(ctx, address, c.Commitment)
	if err != nil {
		return 0, &LedgerQueryError{Op: "get balance", Account: address, Err: err}
	}
	return balance.Value, nil
}

// AccountExists reports whether address holds an account.
func (c *Client) AccountExists(ctx context.Context, address solana.PublicKey) (bool, error) {
	acct, err := c.GetAccountInfo(ctx, address)
	if err != nil {
		return false, err
	}
	return acct != nil, nil
}

// TokenAmount is a token balance in base units.
type TokenAmount struct {
	Amount   uint64
	Decimals uint8
}

// GetTokenAccountBalance reads a token account. A missing account is a zero
// balance with Exists false.
func (c *Client) GetTokenAccountBalance(ctx context.Context, tokenAccount solana.PublicKey) (TokenAmount, bool, error) {
	exists, err := c.AccountExists(ctx, tokenAccount)
	if err != nil || !exists {
		return TokenAmount{}, false, err
	}

	balance, err := c.RpcClient.GetTokenAccountBalance(ctx, tokenAccount, c.Commitment)
	if err != nil {
		return TokenAmount{}, true, &LedgerQueryError{Op: "get token account balance", Account: tokenAccount, Err: err}
	}
	if balance.Value == nil {
		return TokenAmount{}, true, nil
	}

	amount, err := strconv.ParseUint(balance.Value.Amount, 10, 64)
	if err != nil {
		return TokenAmount{}, true, &LedgerQueryError{
			Op:      "parse token amount",
			Account: tokenAccount,
			Err:     fmt.Errorf("amount %q: %w", balance.Value.Amount, err),
		}
	}
	return TokenAmount{Amount: amount, Decimals: balance.Value.Decimals}, true, nil
}

// GetTokenBalance retrieves the balance of owner's associated token account
// for mint.
func (c *Client) GetTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (TokenAmount, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return TokenAmount{}, fmt.Errorf("failed to find associated token address: %w", err)
	}
	amount, _, err := c.GetTokenAccountBalance(ctx, ata)
	return amount, err
}
