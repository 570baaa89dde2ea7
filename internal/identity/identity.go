// Package identity provides the typed client for the identity service,
// which owns profile records and principal-to-profile mapping.
package identity

import (
	"context"
	"strings"

	apperrors "github.com/louisbranch/depths.social/internal/platform/errors"
)

// Profile is the read-through cached copy of an identity service record.
type Profile struct {
	Principal string `json:"principal"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarKey string `json:"avatar_key,omitempty"`
	CreatedAt int64  `json:"created_at_ns"`
}

// ProfileUpdate carries a partial profile mutation. Nil fields are left
// unchanged server-side.
type ProfileUpdate struct {
	Name      *string `json:"name,omitempty"`
	Email     *string `json:"email,omitempty"`
	AvatarKey *string `json:"avatar_key,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil && u.AvatarKey == nil
}

// Caller abstracts the transport so tests can substitute a fake.
type Caller interface {
	Call(ctx context.Context, method string, params any, out any) error
	Mutate(ctx context.Context, method string, params any, out any) error
}

// Client exposes the identity service operations used by the core.
type Client struct {
	rpc Caller
}

// NewClient builds an identity client over the given transport.
func NewClient(rpc Caller) *Client {
	return &Client{rpc: rpc}
}

// EnsureProfile fetches the caller's canonical profile, creating it on
// first contact. Creation-or-fetch semantics are owned by the remote
// service; the call is safe to repeat on every app start.
func (c *Client) EnsureProfile(ctx context.Context) (Profile, error) {
	if c == nil || c.rpc == nil {
		return Profile{}, apperrors.E(apperrors.KindUnavailable, "identity service client is not configured")
	}
	var profile Profile
	if err := c.rpc.Mutate(ctx, "identity.ensure_profile", nil, &profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// UpdateProfile applies a partial update and returns the authoritative
// profile as the service stored it.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (Profile, error) {
	if c == nil || c.rpc == nil {
		return Profile{}, apperrors.E(apperrors.KindUnavailable, "identity service client is not configured")
	}
	if update.Empty() {
		return Profile{}, apperrors.E(apperrors.KindInvalidInput, "profile update must change at least one field")
	}
	var profile Profile
	if err := c.rpc.Mutate(ctx, "identity.update_profile", update, &profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

type searchParams struct {
	Query  string `json:"query"`
	Offset int    `json:"offset"`
	Count  int    `json:"count"`
}

// SearchProfiles looks up profiles by name. An empty query returns no
// results without issuing an RPC; there is no implicit list-all. Results
// are deduplicated by principal, preserving server order.
func (c *Client) SearchProfiles(ctx context.Context, query string, offset, count int) ([]Profile, error) {
	if c == nil || c.rpc == nil {
		return nil, apperrors.E(apperrors.KindUnavailable, "identity service client is not configured")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if offset < 0 {
		offset = 0
	}
	if count <= 0 {
		return nil, nil
	}
	var results []Profile
	err := c.rpc.Call(ctx, "identity.search_profiles", searchParams{
		Query:  query,
		Offset: offset,
		Count:  count,
	}, &results)
	if err != nil {
		return nil, err
	}
	return dedupeByPrincipal(results), nil
}

func dedupeByPrincipal(profiles []Profile) []Profile {
	if len(profiles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(profiles))
	out := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		if _, ok := seen[p.Principal]; ok {
			continue
		}
		seen[p.Principal] = struct{}{}
		out = append(out, p)
	}
	return out
}
