package ore_protocol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"k8s.io/klog/v2"
)

var ErrReadOnly = errors.New("client has no signing key")

// Send signs instructions into a transaction paid by the client's signer and
// submits it. A shortfall reported by the node comes back as
// *InsufficientFundsError, anything else as *SubmissionError.
func (c *Client) Send(ctx context.Context, instructions []solana.Instruction) (solana.Signature, error) {
	if !c.CanSign() {
		return solana.Signature{}, &SubmissionError{Stage: "sign", Err: ErrReadOnly}
	}
	if len(instructions) == 0 {
		return solana.Signature{}, &SubmissionError{Stage: "build", Err: errors.New("no instructions")}
	}

	recent, err := c.RpcClient.GetLatestBlockhash(ctx, c.Commitment)
	if err != nil {
		return solana.Signature{}, &SubmissionError{Stage: "get latest blockhash for", Err: err}
	}

	tx, err := solana.NewTransaction(
		instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(c.Signer.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, &SubmissionError{Stage: "build", Err: err}
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if c.Signer.PublicKey().Equals(key) {
			return &c.Signer
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, &SubmissionError{Stage: "sign", Err: err}
	}

	sig, err := c.RpcClient.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.Commitment,
	})
	if err != nil {
		if funds := classifyFundsError(err); funds != nil {
			return solana.Signature{}, funds
		}
		return solana.Signature{}, &SubmissionError{Stage: "send", Err: err}
	}

	klog.V(2).Infof("sent transaction %s with %d instructions", sig, len(instructions))
	return sig, nil
}

// Confirm polls the signature status until the transaction reaches the
// confirmed or finalized level, it fails on-chain, or ConfirmTimeout elapses.
func (c *Client) Confirm(ctx context.Context, sig solana.Signature) error {
	timeout := c.ConfirmTimeout
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return &ConfirmationTimeoutError{Signature: sig, Waited: time.Since(started), Err: ctx.Err()}
		case <-ticker.C:
			result, err := c.RpcClient.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				if !errors.Is(err, rpc.ErrNotFound) {
					klog.V(3).Infof("signature status for %s: %v", sig, err)
				}
				continue
			}
			if len(result.Value) == 0 || result.Value[0] == nil {
				continue
			}
			status := result.Value[0]
			if status.Err != nil {
				failure := fmt.Errorf("transaction failed: %v", status.Err)
				if funds := classifyFundsError(failure); funds != nil {
					return funds
				}
				return &SubmissionError{Stage: "execute", Signature: sig, Err: failure}
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				klog.V(2).Infof("transaction %s %s after %s", sig, status.ConfirmationStatus, time.Since(started).Round(time.Millisecond))
				return nil
			}
		}
	}
}
