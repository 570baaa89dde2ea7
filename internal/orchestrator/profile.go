package orchestrator

import (
	"context"

	apperrors "github.com/louisbranch/depths.social/internal/platform/errors"

	"github.com/louisbranch/depths.social/internal/identity"
)

// UpdateProfile applies the update to the session snapshot immediately,
// then confirms it with the identity service. On failure the previous
// snapshot is restored; on success the server's profile replaces the
// optimistic one.
func (o *Orchestrator) UpdateProfile(ctx context.Context, update identity.ProfileUpdate) (identity.Profile, error) {
	sess, err := o.requireSession()
	if err != nil {
		return identity.Profile{}, err
	}
	if update.Empty() {
		return identity.Profile{}, apperrors.E(apperrors.KindInvalidInput, "profile update has no fields")
	}
	release, err := o.slots.acquire(slotEditProfile, "")
	if err != nil {
		return identity.Profile{}, err
	}
	defer release()

	prev := *sess.Profile
	if err := o.sessions.SetProfile(applyUpdate(prev, update)); err != nil {
		return identity.Profile{}, err
	}

	ctx, span := o.tracer.Start(context.WithoutCancel(ctx), "intent.update_profile")
	authoritative, err := o.identities.UpdateProfile(ctx, update)
	o.finish(span, err)
	if err != nil {
		// Restore the pre-edit snapshot. The session may have ended
		// while the call was in flight; that rollback failure is moot.
		_ = o.sessions.SetProfile(prev)
		return identity.Profile{}, o.observe(err)
	}
	_ = o.sessions.SetProfile(authoritative)
	return authoritative, nil
}

// SearchProfiles looks up recipients for the transfer view. Results are
// not cached; the identity client already deduplicates them.
func (o *Orchestrator) SearchProfiles(ctx context.Context, query string, offset, count int) ([]identity.Profile, error) {
	if _, err := o.requireSession(); err != nil {
		return nil, err
	}
	ctx, done := o.views.bind(ctx, ViewTransfer)
	defer done()
	out, err := o.identities.SearchProfiles(ctx, query, offset, count)
	return out, o.observe(err)
}

func applyUpdate(p identity.Profile, u identity.ProfileUpdate) identity.Profile {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Email != nil {
		p.Email = *u.Email
	}
	if u.AvatarKey != nil {
		p.AvatarKey = *u.AvatarKey
	}
	return p
}
