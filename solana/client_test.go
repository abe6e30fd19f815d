package ore_protocol

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetAccountInfoMissingIsNil(t *testing.T) {
	fake, client := newFakeRPC(t)
	fake.handle("getAccountInfo", func([]json.RawMessage) (any, *rpcFailure) {
		return withContext(nil), nil
	})

	acct, err := client.GetAccountInfo(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Nil(t, acct)
}

func TestClient_GetAccountInfoFailureIsLedgerQueryError(t *testing.T) {
	fake, client := newFakeRPC(t)
	fake.handle("getAccountInfo", func([]json.RawMessage) (any, *rpcFailure) {
		return nil, &rpcFailure{Code: -32005, Message: "node is behind"}
	})

	addr := solana.NewWallet().PublicKey()
	_, err := client.GetAccountInfo(context.Background(), addr)
	var lqe *LedgerQueryError
	require.ErrorAs(t, err, &lqe)
	assert.Equal(t, addr, lqe.Account)
	assert.Contains(t, err.Error(), "get account info")
}

func TestClient_GetMultipleAccountsInfoChunks(t *testing.T) {
	fake, client := newFakeRPC(t)
	owner := solana.NewWallet().PublicKey()

	addrs := make([]solana.PublicKey, 150)
	for i := range addrs {
		addrs[i] = solana.NewWallet().PublicKey()
	}
	present := addrs[120].String()

	fake.handle("getMultipleAccounts", func(params []json.RawMessage) (any, *rpcFailure) {
		keys, err := firstParamKeys(params)
		if err != nil {
			return nil, &rpcFailure{Code: -32602, Message: err.Error()}
		}
		value := make([]any, len(keys))
		for i, k := range keys {
			if k == present {
				value[i] = accountJSON(owner, []byte{1, 2, 3})
			}
		}
		return withContext(value), nil
	})

	accts, err := client.GetMultipleAccountsInfo(context.Background(), addrs)
	require.NoError(t, err)
	require.Len(t, accts, len(addrs))
	assert.Equal(t, 2, fake.count("getMultipleAccounts"))
	for i, a := range accts {
		if i == 120 {
			require.NotNil(t, a)
			assert.Equal(t, []byte{1, 2, 3}, a.Data.GetBinary())
			assert.Equal(t, owner, a.Owner)
			continue
		}
		assert.Nil(t, a, "index %d", i)
	}
}

func TestClient_GetMultipleAccountsInfoFailure(t *testing.T) {
	fake, client := newFakeRPC(t)
	fake.handle("getMultipleAccounts", func([]json.RawMessage) (any, *rpcFailure) {
		return nil, &rpcFailure{Code: -32000, Message: "rate limited"}
	})

	_, err := client.GetMultipleAccountsInfo(context.Background(), []solana.PublicKey{solana.NewWallet().PublicKey()})
	var lqe *LedgerQueryError
	assert.ErrorAs(t, err, &lqe)
}

func TestClient_GetBalance(t *testing.T) {
	fake, client := newFakeRPC(t)
	fake.handle("getBalance", func([]json.RawMessage) (any, *rpcFailure) {
		return withContext(2_500_000), nil
	})

	lamports, err := client.GetBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000), lamports)
}

func TestClient_GetTokenAccountBalanceMissingAccountIsZero(t *testing.T) {
	fake, client := newFakeRPC(t)
	fake.handle("getAccountInfo", func([]json.RawMessage) (any, *rpcFailure) {
		return withContext(nil), nil
	})

	amount, exists, err := client.GetTokenAccountBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Zero(t, amount.Amount)
	assert.Zero(t, fake.count("getTokenAccountBalance"))
}

func TestClient_GetTokenBalance(t *testing.T) {
	fake, client := newFakeRPC(t)
	fake.handle("getAccountInfo", func([]json.RawMessage) (any, *rpcFailure) {
		return withContext(accountJSON(solana.TokenProgramID, make([]byte, 165))), nil
	})
	fake.handle("getTokenAccountBalance", func([]json.RawMessage) (any, *rpcFailure) {
		return withContext(map[string]any{
			"amount":         "123400000000",
			"decimals":       11,
			"uiAmountString": "1.234",
		}), nil
	})

	amount, err := client.GetTokenBalance(context.Background(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, TokenAmount{Amount: 123_400_000_000, Decimals: 11}, amount)
}

func TestClient_GetMintDecimalsIsCached(t *testing.T) {
	fake, client := newFakeRPC(t)
	data := mintData(t, 9)
	fake.handle("getAccountInfo", func([]json.RawMessage) (any, *rpcFailure) {
		return withContext(accountJSON(solana.TokenProgramID, data)), nil
	})

	mint := solana.NewWallet().PublicKey()
	for range 3 {
		decimals, err := client.GetMintDecimals(context.Background(), mint)
		require.NoError(t, err)
		assert.Equal(t, uint8(9), decimals)
	}
	assert.Equal(t, 1, fake.count("getAccountInfo"))
}

func TestClient_GetMintDecimalsMissingMint(t *testing.T) {
	fake, client := newFakeRPC(t)
	fake.handle("getAccountInfo", func([]json.RawMessage) (any, *rpcFailure) {
		return withContext(nil), nil
	})

	_, err := client.GetMintDecimals(context.Background(), solana.NewWallet().PublicKey())
	var lqe *LedgerQueryError
	assert.ErrorAs(t, err, &lqe)
}

func TestClient_GetMintDecimalsShortData(t *testing.T) {
	fake, client := newFakeRPC(t)
	fake.handle("getAccountInfo", func([]json.RawMessage) (any, *rpcFailure) {
		return withContext(accountJSON(solana.TokenProgramID, []byte{1, 2})), nil
	})

	_, err := client.GetMintDecimals(context.Background(), solana.NewWallet().PublicKey())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}

func TestClient_PublicKeyReadOnly(t *testing.T) {
	_, client := newFakeRPC(t)
	assert.False(t, client.CanSign())
	assert.True(t, client.PublicKey().IsZero())

	w := NewWallet()
	client.Signer = w.PrivateKey
	assert.True(t, client.CanSign())
	assert.Equal(t, w.PublicKey(), client.PublicKey())
}
