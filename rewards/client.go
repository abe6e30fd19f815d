// Package rewards is a client for the pool operator's rewards accounting
// REST API: stake account balances, queued reward claims and legacy staked
// amounts.
package rewards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"

	"ore-boost-cli/instruction"
)

// RewardScaleDecimals is the fixed decimal scale of reward balances.
const RewardScaleDecimals = 11

var (
	ErrNotFound     = errors.New("not found")
	ErrNot200Status = errors.New("not 200 status code")
)

// APIError is a non-200 response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("http error - Status Code %d - %s", e.Status, strings.TrimSpace(e.Body))
}

func (e *APIError) Unwrap() error { return ErrNot200Status }

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// BaseUnits is an integer balance the API may send as a JSON number or string.
type BaseUnits uint64

func (b *BaseUnits) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*b = 0
		return nil
	}
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		*b = BaseUnits(v)
		return nil
	}
	// Some responses carry integral values in float notation.
	f, ok := new(big.Float).SetString(s)
	if !ok || f.Sign() < 0 || !f.IsInt() {
		return fmt.Errorf("invalid base unit amount %q", s)
	}
	v, acc := f.Uint64()
	if acc != big.Exact {
		return fmt.Errorf("base unit amount %q out of range", s)
	}
	*b = BaseUnits(v)
	return nil
}

// StakeAccount is the operator's view of one staked mint.
type StakeAccount struct {
	Mint           solana.PublicKey `json:"mint_pubkey"`
	StakedBalance  BaseUnits        `json:"staked_balance"`
	RewardsBalance BaseUnits        `json:"rewards_balance"`
}

// Client talks to the rewards API.
type Client struct {
	url string
	c   *http.Client
}

// New creates a new Client with the provided base URL.
func New(url string) *Client {
	return NewWithHTTP(url, http.DefaultClient)
}

func NewWithHTTP(url string, c *http.Client) *Client {
	return &Client{
		url: strings.TrimRight(url, "/"),
		c:   c,
	}
}

// StakeAccounts lists the staker's stake accounts with their staked and
// reward balances.
func (c *Client) StakeAccounts(ctx context.Context, staker solana.PublicKey) ([]StakeAccount, error) {
	q := url.Values{}
	q.Set("pubkey", staker.String())

	body, err := c.httpGET(ctx, c.url+"/v2/miner/boost/stake-accounts?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve stake accounts - %w", err)
	}

	var accounts []StakeAccount
	if err = json.Unmarshal(body, &accounts); err != nil {
		return nil, fmt.Errorf("unable to unmarshal stake accounts - %w", err)
	}
	return accounts, nil
}

// QueueClaim asks the operator to pay out amount reward base units of mint
// to staker. A rejected request usually means a claim is already queued.
func (c *Client) QueueClaim(ctx context.Context, staker, mint solana.PublicKey, amount uint64) error {
	q := url.Values{}
	q.Set("pubkey", staker.String())
	q.Set("mint", mint.String())
	q.Set("amount", strconv.FormatUint(amount, 10))

	if _, err := c.httpPOST(ctx, c.url+"/v3/claim-stake-rewards?"+q.Encode()); err != nil {
		return fmt.Errorf("unable to queue claim - %w", err)
	}
	return nil
}

// Staked returns the staker's current staked amount of mint in base units.
func (c *Client) Staked(ctx context.Context, staker, mint solana.PublicKey, decimals uint8) (uint64, error) {
	return c.stakedAt(ctx, "/v2/miner/boost/stake", staker, mint, decimals)
}

// LegacyStaked returns the amount still staked through the legacy delegated
// boost record, in base units.
func (c *Client) LegacyStaked(ctx context.Context, staker, mint solana.PublicKey, decimals uint8) (uint64, error) {
	return c.stakedAt(ctx, "/miner/boost/stake", staker, mint, decimals)
}

func (c *Client) stakedAt(ctx context.Context, path string, staker, mint solana.PublicKey, decimals uint8) (uint64, error) {
	q := url.Values{}
	q.Set("pubkey", staker.String())
	q.Set("mint", mint.String())

	body, err := c.httpGET(ctx, c.url+path+"?"+q.Encode())
	if err != nil {
		return 0, fmt.Errorf("unable to retrieve staked amount - %w", err)
	}
	amount, err := ParseDecimal(string(body), decimals)
	if err != nil {
		return 0, fmt.Errorf("unable to parse staked amount - %w", err)
	}
	return amount, nil
}

// ParseDecimal converts a plain-text human amount to base units. An empty
// body and zero are both 0.
func ParseDecimal(text string, decimals uint8) (uint64, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, nil
	}
	if r, ok := new(big.Rat).SetString(s); ok && r.Sign() == 0 {
		return 0, nil
	}
	return instruction.ToBaseUnits(s, decimals)
}

// FormatRewards renders reward base units at the reward scale.
func FormatRewards(amount uint64) string {
	return instruction.FormatBaseUnits(amount, RewardScaleDecimals)
}

func (c *Client) httpGET(ctx context.Context, url string) ([]byte, error) {
	return c.httpRequest(ctx, http.MethodGet, url)
}

func (c *Client) httpPOST(ctx context.Context, url string) ([]byte, error) {
	return c.httpRequest(ctx, http.MethodPost, url)
}

func (c *Client) httpRequest(ctx context.Context, method, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error performing request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(responseBody)}
	}
	return responseBody, nil
}
