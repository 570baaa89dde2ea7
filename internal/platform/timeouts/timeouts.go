// Package timeouts defines shared timeout constants used across the client.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// RPCCall caps the time allowed for a single service RPC.
const RPCCall = 5 * time.Second

// LoginRetryInitial sets the initial wait between onboarding attempts when
// the identity service is unavailable.
const LoginRetryInitial = 500 * time.Millisecond

// LoginRetryMax caps the backoff between onboarding attempts.
const LoginRetryMax = 5 * time.Second

// BalanceStaleness bounds how old a cached balance may be before a read
// re-fetches it from the ledger service.
const BalanceStaleness = 30 * time.Second

// FeedStaleness bounds how old cached feed pages may be before a read
// re-fetches them.
const FeedStaleness = 30 * time.Second
