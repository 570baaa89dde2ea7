// Package ledger provides the typed client for the ledger service, which
// owns balances and transfer settlement.
package ledger

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/louisbranch/depths.social/internal/platform/errors"
)

// Balance is a cached view of a principal's funds. AsOf marks when the
// value was fetched; readers treat values older than the configured
// staleness bound as stale.
type Balance struct {
	Amount uint64
	AsOf   time.Time
}

// Direction tags a transaction relative to the viewing principal.
type Direction int

const (
	DirectionSent Direction = iota + 1
	DirectionReceived
)

// String renders the direction for logs and CLI output.
func (d Direction) String() string {
	switch d {
	case DirectionSent:
		return "sent"
	case DirectionReceived:
		return "received"
	default:
		return "unknown"
	}
}

// Transaction is a settled ledger movement. An empty From marks an
// onboarding mint.
type Transaction struct {
	ID        uint64 `json:"id"`
	From      string `json:"from,omitempty"`
	To        string `json:"to"`
	Amount    uint64 `json:"amount"`
	Timestamp int64  `json:"timestamp_ns"`

	// Direction is derived client-side and never sent on the wire.
	Direction Direction `json:"-"`
}

// Caller abstracts the transport so tests can substitute a fake.
type Caller interface {
	Call(ctx context.Context, method string, params any, out any) error
	Mutate(ctx context.Context, method string, params any, out any) error
}

// Client exposes the ledger service operations used by the core.
type Client struct {
	rpc Caller
	now func() time.Time
}

// NewClient builds a ledger client over the given transport.
func NewClient(rpc Caller) *Client {
	return &Client{rpc: rpc, now: time.Now}
}

type balanceParams struct {
	Principal string `json:"principal"`
}

// BalanceOf fetches the authoritative balance for a principal.
func (c *Client) BalanceOf(ctx context.Context, principal string) (Balance, error) {
	if c == nil || c.rpc == nil {
		return Balance{}, apperrors.E(apperrors.KindUnavailable, "ledger service client is not configured")
	}
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return Balance{}, apperrors.E(apperrors.KindInvalidInput, "principal is required")
	}
	var amount uint64
	if err := c.rpc.Call(ctx, "ledger.balance_of", balanceParams{Principal: principal}, &amount); err != nil {
		return Balance{}, err
	}
	return Balance{Amount: amount, AsOf: c.now()}, nil
}

type transferParams struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// Transfer moves amount from the authenticated caller to another
// principal. Non-positive amounts and self-transfers are rejected locally
// before any RPC; sufficiency is never pre-validated here — the server's
// verdict is final.
func (c *Client) Transfer(ctx context.Context, from, to string, amount uint64) (Transaction, error) {
	if c == nil || c.rpc == nil {
		return Transaction{}, apperrors.E(apperrors.KindUnavailable, "ledger service client is not configured")
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return Transaction{}, apperrors.E(apperrors.KindInvalidInput, "recipient principal is required")
	}
	if amount == 0 {
		return Transaction{}, apperrors.E(apperrors.KindInvalidInput, "transfer amount must be positive")
	}
	if to == strings.TrimSpace(from) {
		return Transaction{}, apperrors.EC(apperrors.KindInvalidInput, apperrors.CodeSelfTransfer,
			"cannot transfer to yourself")
	}
	var tx Transaction
	if err := c.rpc.Mutate(ctx, "ledger.transfer", transferParams{To: to, Amount: amount}, &tx); err != nil {
		return Transaction{}, err
	}
	tx.Direction = DirectionSent
	return tx, nil
}

type historyParams struct {
	Principal string `json:"principal"`
	Offset    int    `json:"offset"`
	Count     int    `json:"count"`
}

// GetHistory fetches one page of a principal's transactions, newest
// first, each tagged Sent or Received relative to that principal.
func (c *Client) GetHistory(ctx context.Context, principal string, offset, count int) ([]Transaction, error) {
	if c == nil || c.rpc == nil {
		return nil, apperrors.E(apperrors.KindUnavailable, "ledger service client is not configured")
	}
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return nil, apperrors.E(apperrors.KindInvalidInput, "principal is required")
	}
	if offset < 0 {
		offset = 0
	}
	if count <= 0 {
		return nil, nil
	}
	var page []Transaction
	err := c.rpc.Call(ctx, "ledger.get_history", historyParams{
		Principal: principal,
		Offset:    offset,
		Count:     count,
	}, &page)
	if err != nil {
		return nil, err
	}
	for i := range page {
		page[i].Direction = directionFor(principal, page[i])
	}
	return page, nil
}

func directionFor(principal string, tx Transaction) Direction {
	if tx.From == principal {
		return DirectionSent
	}
	// Onboarding mints have no sender and always land as received funds.
	return DirectionReceived
}
