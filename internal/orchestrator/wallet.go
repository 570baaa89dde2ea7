package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/depths.social/internal/ledger"
	"github.com/louisbranch/depths.social/internal/viewcache"
)

// Balance returns the caller's balance, served from cache within the
// staleness bound.
func (o *Orchestrator) Balance(ctx context.Context) (ledger.Balance, error) {
	sess, err := o.requireSession()
	if err != nil {
		return ledger.Balance{}, err
	}
	key := viewcache.Key{Kind: kindBalance, Scope: sess.Principal}
	return viewcache.ReadThrough(ctx, o.cache, key, o.balanceTTL, func(ctx context.Context) (ledger.Balance, error) {
		b, err := o.ledgers.BalanceOf(ctx, sess.Principal)
		return b, o.observe(err)
	})
}

// InsufficientFundsHint reports whether the cached balance is known to
// be smaller than amount. Advisory only: it never fetches, and a false
// return does not promise the transfer will settle. The ledger service
// stays authoritative.
func (o *Orchestrator) InsufficientFundsHint(amount uint64) bool {
	sess := o.sessions.Current()
	if !sess.Authenticated() {
		return false
	}
	v, ok := o.cache.Peek(viewcache.Key{Kind: kindBalance, Scope: sess.Principal}, o.balanceTTL)
	if !ok {
		return false
	}
	b, ok := v.(ledger.Balance)
	return ok && b.Amount < amount
}

// Transfer moves tokens to another principal. On success both cached
// balances go stale and the settled transaction is prepended to the
// caller's resident history pages. A failed transfer leaves the cache
// untouched.
func (o *Orchestrator) Transfer(ctx context.Context, to string, amount uint64) (ledger.Transaction, error) {
	sess, err := o.requireSession()
	if err != nil {
		return ledger.Transaction{}, err
	}
	release, err := o.slots.acquire(slotSendTokens, "")
	if err != nil {
		return ledger.Transaction{}, err
	}
	defer release()

	ctx, span := o.tracer.Start(context.WithoutCancel(ctx), "intent.transfer",
		trace.WithAttributes(attribute.Int64("transfer.amount", int64(amount))))
	tx, err := o.ledgers.Transfer(ctx, sess.Principal, to, amount)
	o.finish(span, err)
	if err != nil {
		return ledger.Transaction{}, o.observe(err)
	}
	tx.Direction = ledger.DirectionSent

	o.cache.Invalidate(kindBalance, sess.Principal)
	o.cache.Invalidate(kindBalance, to)
	o.cache.Update(kindHistory, sess.Principal, func(key viewcache.Key, value any) (any, bool) {
		if key.Offset != 0 {
			return nil, false
		}
		page, ok := value.([]ledger.Transaction)
		if !ok {
			return nil, false
		}
		next := append([]ledger.Transaction{tx}, page...)
		if key.Count > 0 && len(next) > key.Count {
			next = next[:key.Count]
		}
		return next, true
	})
	return tx, nil
}

// History returns a page of the caller's transactions, newest first.
func (o *Orchestrator) History(ctx context.Context, offset, count int) ([]ledger.Transaction, error) {
	sess, err := o.requireSession()
	if err != nil {
		return nil, err
	}
	ctx, done := o.views.bind(ctx, ViewHistory)
	defer done()
	key := viewcache.Key{Kind: kindHistory, Scope: sess.Principal, Offset: offset, Count: count}
	return viewcache.ReadThrough(ctx, o.cache, key, o.historyTTL, func(ctx context.Context) ([]ledger.Transaction, error) {
		page, err := o.ledgers.GetHistory(ctx, sess.Principal, offset, count)
		return page, o.observe(err)
	})
}
