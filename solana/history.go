package ore_protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"ore-boost-cli/instruction"
)

const (
	// maxSignaturesPerRequest is the getSignaturesForAddress limit.
	maxSignaturesPerRequest = 1000
	historyFetchConcurrency = 10
)

// StakeEvent is one staking instruction found in a staker's transactions.
type StakeEvent struct {
	Signature solana.Signature           `json:"signature"`
	Slot      uint64                     `json:"slot"`
	Timestamp time.Time                  `json:"timestamp"`
	Program   solana.PublicKey           `json:"program"`
	Version   instruction.ProgramVersion `json:"version"`
	Kind      instruction.OperationKind  `json:"kind"`
	Mint      solana.PublicKey           `json:"mint"`
	Amount    *uint64                    `json:"amount,omitempty"`
	Failed    bool                       `json:"failed"`
}

// HistoryPrograms tells GetStakeHistory which program ids carry which
// instruction version.
type HistoryPrograms struct {
	Delegation solana.PublicKey
	Boost      solana.PublicKey
}

// mintIndex is the position of the mint in each instruction's account list.
func mintIndex(kind instruction.OperationKind, version instruction.ProgramVersion) int {
	switch {
	case version == instruction.Direct && kind == instruction.Init:
		return 3
	case version == instruction.Direct:
		return 4
	case kind == instruction.Stake || kind == instruction.Unstake:
		return 6
	default:
		return 5
	}
}

// GetStakeHistory fetches up to limit recent transactions of staker and
// decodes the staking instructions they contain, newest first. Transactions
// that cannot be fetched are logged and skipped.
func (c *Client) GetStakeHistory(ctx context.Context, staker solana.PublicKey, programs HistoryPrograms, encoder *instruction.Encoder, limit int) ([]StakeEvent, error) {
	if limit <= 0 || limit > maxSignaturesPerRequest {
		limit = maxSignaturesPerRequest
	}

	signatures, err := c.RpcClient.GetSignaturesForAddressWithOpts(ctx, staker, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: c.Commitment,
	})
	if err != nil {
		return nil, &LedgerQueryError{Op: "fetch transaction signatures", Account: staker, Err: err}
	}
	if len(signatures) == 0 {
		return []StakeEvent{}, nil
	}

	perTx := make([][]StakeEvent, len(signatures))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(historyFetchConcurrency)
	for i, sigInfo := range signatures {
		g.Go(func() error {
			version := uint64(0)
			tx, err := c.RpcClient.GetTransaction(gctx, sigInfo.Signature, &rpc.GetTransactionOpts{
				Encoding:                       solana.EncodingBase64,
				Commitment:                     c.Commitment,
				MaxSupportedTransactionVersion: &version,
			})
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				klog.Warningf("failed to fetch transaction %s: %v", sigInfo.Signature, err)
				return nil
			}
			perTx[i] = decodeStakeEvents(tx, sigInfo, programs, encoder)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &LedgerQueryError{Op: "fetch transactions", Account: staker, Err: err}
	}

	events := make([]StakeEvent, 0, len(signatures))
	for _, evs := range perTx {
		events = append(events, evs...)
	}
	return events, nil
}

func decodeStakeEvents(tx *rpc.GetTransactionResult, sigInfo *rpc.TransactionSignature, programs HistoryPrograms, encoder *instruction.Encoder) []StakeEvent {
	if tx == nil || tx.Transaction == nil {
		return nil
	}
	parsed, err := tx.Transaction.GetTransaction()
	if err != nil {
		klog.V(3).Infof("skipping undecodable transaction %s: %v", sigInfo.Signature, err)
		return nil
	}

	var timestamp time.Time
	if tx.BlockTime != nil {
		timestamp = tx.BlockTime.Time()
	}
	failed := sigInfo.Err != nil || (tx.Meta != nil && tx.Meta.Err != nil)

	keys := parsed.Message.AccountKeys
	var events []StakeEvent
	for _, instr := range parsed.Message.Instructions {
		if int(instr.ProgramIDIndex) >= len(keys) {
			continue
		}
		programID := keys[instr.ProgramIDIndex]

		var candidates []instruction.ProgramVersion
		switch {
		case programID.Equals(programs.Delegation):
			candidates = []instruction.ProgramVersion{instruction.V2, instruction.V1}
		case !programs.Boost.IsZero() && programID.Equals(programs.Boost):
			candidates = []instruction.ProgramVersion{instruction.Direct}
		default:
			continue
		}

		for _, v := range candidates {
			kind, amount, err := encoder.Decode(v, instr.Data)
			if err != nil {
				continue
			}
			ev := StakeEvent{
				Signature: sigInfo.Signature,
				Slot:      tx.Slot,
				Timestamp: timestamp,
				Program:   programID,
				Version:   v,
				Kind:      kind,
				Amount:    amount,
				Failed:    failed,
			}
			if idx := mintIndex(kind, v); idx < len(instr.Accounts) && int(instr.Accounts[idx]) < len(keys) {
				ev.Mint = keys[instr.Accounts[idx]]
			}
			events = append(events, ev)
			break
		}
	}
	return events
}

// Describe renders an event on one line for terminal output.
func (e StakeEvent) Describe(decimals uint8) string {
	status := "ok"
	if e.Failed {
		status = "failed"
	}
	amount := "-"
	if e.Amount != nil {
		amount = instruction.FormatBaseUnits(*e.Amount, decimals)
	}
	return fmt.Sprintf("%s  %-8s %-6s %-12s %s  %s",
		e.Timestamp.Format(time.DateTime), e.Kind, e.Version, amount, status, e.Signature)
}
