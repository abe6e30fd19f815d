package ore_protocol

import (
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"k8s.io/klog/v2"
)

// DecodeMint deserializes an SPL token mint account.
func DecodeMint(acct *rpc.Account) (*token.Mint, error) {
	if acct == nil || acct.Data == nil {
		return nil, fmt.Errorf("mint account has no data")
	}
	data := acct.Data.GetBinary()
	if len(data) < token.MINT_SIZE {
		return nil, fmt.Errorf("mint account data is %d bytes, want %d", len(data), token.MINT_SIZE)
	}
	var mint token.Mint
	if err := mint.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("failed to deserialize mint: %w", err)
	}
	return &mint, nil
}

// GetMintDecimals reads the decimals of mint. Results are cached; mint
// decimals never change.
func (c *Client) GetMintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	if v, ok := c.decimals.Get(mint); ok {
		return v.(uint8), nil
	}

	acct, err := c.GetAccountInfo(ctx, mint)
	if err != nil {
		return 0, err
	}
	if acct == nil {
		return 0, &LedgerQueryError{Op: "get mint decimals", Account: mint, Err: fmt.Errorf("mint account not found")}
	}
	m, err := DecodeMint(acct)
	if err != nil {
		return 0, &LedgerQueryError{Op: "get mint decimals", Account: mint, Err: err}
	}

	klog.V(4).Infof("mint %s has %d decimals", mint, m.Decimals)
	c.decimals.Add(mint, m.Decimals)
	return m.Decimals, nil
}
