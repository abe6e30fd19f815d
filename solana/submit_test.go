package ore_protocol

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockhashHandler(hash solana.Hash) rpcHandler {
	return func([]json.RawMessage) (any, *rpcFailure) {
		return withContext(map[string]any{
			"blockhash":            hash.String(),
			"lastValidBlockHeight": 100,
		}), nil
	}
}

func memoInstruction(signer solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		solana.MemoProgramID,
		solana.AccountMetaSlice{solana.NewAccountMeta(signer, true, true)},
		[]byte("stake"),
	)
}

func signingClient(t *testing.T) (*fakeRPC, *Client) {
	t.Helper()
	fake, client := newFakeRPC(t)
	client.Signer = NewWallet().PrivateKey
	client.PollInterval = 5 * time.Millisecond
	fake.handle("getLatestBlockhash", blockhashHandler(solana.Hash{7, 7, 7}))
	return fake, client
}

func TestClient_SendReadOnly(t *testing.T) {
	_, client := newFakeRPC(t)

	_, err := client.Send(context.Background(), []solana.Instruction{memoInstruction(solana.NewWallet().PublicKey())})
	var se *SubmissionError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestClient_SendReturnsSignature(t *testing.T) {
	fake, client := signingClient(t)
	want := solana.Signature{9, 9, 9}
	fake.handle("sendTransaction", func([]json.RawMessage) (any, *rpcFailure) {
		return want.String(), nil
	})

	sig, err := client.Send(context.Background(), []solana.Instruction{memoInstruction(client.PublicKey())})
	require.NoError(t, err)
	assert.Equal(t, want, sig)
	assert.Equal(t, 1, fake.count("getLatestBlockhash"))
}

func TestClient_SendClassifiesFundsShortfall(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    FundsResource
	}{
		{
			name:    "no prior credit",
			message: "Transaction simulation failed: Attempt to debit an account but found no record of a prior credit.",
			want:    NativeFunds,
		},
		{
			name:    "token program",
			message: "Transaction simulation failed: Error processing Instruction 2: custom program error: 0x1",
			want:    TokenFunds,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, client := signingClient(t)
			fake.handle("sendTransaction", func([]json.RawMessage) (any, *rpcFailure) {
				return nil, &rpcFailure{Code: -32002, Message: tt.message}
			})

			_, err := client.Send(context.Background(), []solana.Instruction{memoInstruction(client.PublicKey())})
			var ife *InsufficientFundsError
			require.ErrorAs(t, err, &ife)
			assert.Equal(t, tt.want, ife.Resource)
		})
	}
}

func TestClient_SendOtherFailureIsSubmissionError(t *testing.T) {
	fake, client := signingClient(t)
	fake.handle("sendTransaction", func([]json.RawMessage) (any, *rpcFailure) {
		return nil, &rpcFailure{Code: -32002, Message: "Blockhash not found"}
	})

	_, err := client.Send(context.Background(), []solana.Instruction{memoInstruction(client.PublicKey())})
	var se *SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "send", se.Stage)
	var ife *InsufficientFundsError
	assert.False(t, errors.As(err, &ife))
}

func TestClient_ConfirmConfirmed(t *testing.T) {
	fake, client := signingClient(t)
	var polls atomic.Int32
	fake.handle("getSignatureStatuses", func([]json.RawMessage) (any, *rpcFailure) {
		if polls.Add(1) < 3 {
			return withContext([]any{nil}), nil
		}
		return withContext([]any{map[string]any{
			"slot":               10,
			"confirmations":      1,
			"err":                nil,
			"confirmationStatus": "confirmed",
		}}), nil
	})

	require.NoError(t, client.Confirm(context.Background(), solana.Signature{1}))
	assert.GreaterOrEqual(t, fake.count("getSignatureStatuses"), 3)
}

func TestClient_ConfirmOnChainFailure(t *testing.T) {
	fake, client := signingClient(t)
	fake.handle("getSignatureStatuses", func([]json.RawMessage) (any, *rpcFailure) {
		return withContext([]any{map[string]any{
			"slot":               10,
			"confirmations":      nil,
			"err":                map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 6}}},
			"confirmationStatus": "confirmed",
		}}), nil
	})

	sig := solana.Signature{2}
	err := client.Confirm(context.Background(), sig)
	var se *SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, sig, se.Signature)
	assert.Equal(t, "execute", se.Stage)
}

func TestClient_ConfirmTimeout(t *testing.T) {
	fake, client := signingClient(t)
	client.ConfirmTimeout = 40 * time.Millisecond
	fake.handle("getSignatureStatuses", func([]json.RawMessage) (any, *rpcFailure) {
		return withContext([]any{nil}), nil
	})

	sig := solana.Signature{3}
	err := client.Confirm(context.Background(), sig)
	var cte *ConfirmationTimeoutError
	require.ErrorAs(t, err, &cte)
	assert.Equal(t, sig, cte.Signature)
	assert.Contains(t, err.Error(), "not confirmed")
}

func TestClassifyFundsError(t *testing.T) {
	tests := []struct {
		msg  string
		want FundsResource
	}{
		{"Transfer: insufficient lamports 10, need 2039280", NativeFunds},
		{"InsufficientFundsForFee", NativeFunds},
		{"Program log: Error: insufficient funds", TokenFunds},
		{"custom program error: 0x1", TokenFunds},
		{"custom program error: 0x10", 0},
		{"blockhash not found", 0},
	}
	for _, tt := range tests {
		got := classifyFundsError(errors.New(tt.msg))
		if tt.want == 0 {
			assert.Nil(t, got, tt.msg)
			continue
		}
		var ife *InsufficientFundsError
		require.ErrorAs(t, got, &ife, tt.msg)
		assert.Equal(t, tt.want, ife.Resource, tt.msg)
	}
}

func TestInsufficientFundsError_Messages(t *testing.T) {
	native := &InsufficientFundsError{Resource: NativeFunds, Required: 10_000, Available: 10}
	assert.Contains(t, native.Error(), "SOL")
	assert.Contains(t, native.Error(), "fees")

	mint := solana.NewWallet().PublicKey()
	tok := &InsufficientFundsError{Resource: TokenFunds, Mint: mint, Required: 5, Available: 1}
	assert.Contains(t, tok.Error(), mint.String())
	assert.NotContains(t, tok.Error(), "SOL")
}
