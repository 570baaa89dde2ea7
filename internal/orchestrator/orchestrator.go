// Package orchestrator coordinates the session, the three service
// clients, and the view cache behind a single intent surface. The
// presentation layer calls intents; it never talks to a service client
// or the cache directly.
package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/depths.social/internal/platform/errors"
	"github.com/louisbranch/depths.social/internal/platform/timeouts"

	"github.com/louisbranch/depths.social/internal/feed"
	"github.com/louisbranch/depths.social/internal/identity"
	"github.com/louisbranch/depths.social/internal/ledger"
	"github.com/louisbranch/depths.social/internal/session"
	"github.com/louisbranch/depths.social/internal/viewcache"
)

// Cache kinds. Scope is the global feed, an author principal, or the
// viewing principal depending on the kind.
const (
	kindFeed        viewcache.Kind = "feed"
	kindAuthorPosts viewcache.Kind = "author_posts"
	kindBalance     viewcache.Kind = "balance"
	kindHistory     viewcache.Kind = "history"
)

const scopeGlobal = "global"

// Identity is the slice of the identity client the orchestrator uses.
type Identity interface {
	UpdateProfile(ctx context.Context, update identity.ProfileUpdate) (identity.Profile, error)
	SearchProfiles(ctx context.Context, query string, offset, count int) ([]identity.Profile, error)
}

// Feed is the slice of the feed client the orchestrator uses.
type Feed interface {
	GetFeed(ctx context.Context, offset, count int) ([]feed.PostDetail, error)
	GetPostsByAuthor(ctx context.Context, author string, offset, count int) ([]feed.PostDetail, error)
	CreatePost(ctx context.Context, authorDisplay, content, imageKey string) (feed.Post, error)
	LikePost(ctx context.Context, id uint64) (feed.LikeResult, error)
	CommentPost(ctx context.Context, id uint64, authorDisplay, text string) ([]feed.Comment, error)
}

// Ledger is the slice of the ledger client the orchestrator uses.
type Ledger interface {
	BalanceOf(ctx context.Context, principal string) (ledger.Balance, error)
	Transfer(ctx context.Context, from, to string, amount uint64) (ledger.Transaction, error)
	GetHistory(ctx context.Context, principal string, offset, count int) ([]ledger.Transaction, error)
}

// Sessions is the session manager surface the orchestrator drives.
type Sessions interface {
	Login(ctx context.Context) error
	Logout()
	Expire()
	Acknowledge()
	Current() session.Session
	SetProfile(profile identity.Profile) error
}

// Options tunes cache staleness bounds. Zero values fall back to the
// platform defaults.
type Options struct {
	FeedTTL    time.Duration
	BalanceTTL time.Duration
	HistoryTTL time.Duration
}

// Orchestrator owns the cross-service workflows: read-through caching,
// one in-flight mutation per action slot, invalidation after writes,
// and the optimistic profile update.
type Orchestrator struct {
	sessions   Sessions
	identities Identity
	feeds      Feed
	ledgers    Ledger

	cache      *viewcache.Cache
	feedTTL    time.Duration
	balanceTTL time.Duration
	historyTTL time.Duration

	slots  *slotSet
	views  *viewBinder
	tracer trace.Tracer
}

func New(sessions Sessions, identities Identity, feeds Feed, ledgers Ledger, cache *viewcache.Cache, opts Options) *Orchestrator {
	if cache == nil {
		cache = viewcache.New()
	}
	if opts.FeedTTL <= 0 {
		opts.FeedTTL = timeouts.FeedStaleness
	}
	if opts.BalanceTTL <= 0 {
		opts.BalanceTTL = timeouts.BalanceStaleness
	}
	if opts.HistoryTTL <= 0 {
		opts.HistoryTTL = timeouts.FeedStaleness
	}
	return &Orchestrator{
		sessions:   sessions,
		identities: identities,
		feeds:      feeds,
		ledgers:    ledgers,
		cache:      cache,
		feedTTL:    opts.FeedTTL,
		balanceTTL: opts.BalanceTTL,
		historyTTL: opts.HistoryTTL,
		slots:      newSlotSet(),
		views:      newViewBinder(),
		tracer:     otel.Tracer("depths.social/orchestrator"),
	}
}

// Login establishes the session. Concurrent calls collapse into one
// attempt inside the session manager.
func (o *Orchestrator) Login(ctx context.Context) error {
	ctx, span := o.tracer.Start(ctx, "intent.login")
	err := o.sessions.Login(ctx)
	o.finish(span, err)
	return err
}

// Logout ends the session and drops every cached view. The next login
// starts from an empty cache.
func (o *Orchestrator) Logout() {
	o.sessions.Logout()
	o.cache.Clear()
}

// AcknowledgeLoginError clears a failed login so a fresh attempt can
// start.
func (o *Orchestrator) AcknowledgeLoginError() {
	o.sessions.Acknowledge()
}

// Session returns a snapshot of the current session.
func (o *Orchestrator) Session() session.Session {
	return o.sessions.Current()
}

// EnterView records the active view and cancels read requests still
// bound to any other view. Mutations are never cancelled by
// navigation.
func (o *Orchestrator) EnterView(v View) {
	o.views.enter(v)
}

func (o *Orchestrator) requireSession() (session.Session, error) {
	sess := o.sessions.Current()
	if !sess.Authenticated() {
		return session.Session{}, apperrors.E(apperrors.KindUnauthenticated, "not signed in")
	}
	return sess, nil
}

// observe expires the session when a service rejects our token. The
// caller still surfaces the original error.
func (o *Orchestrator) observe(err error) error {
	if apperrors.IsKind(err, apperrors.KindUnauthenticated) {
		o.sessions.Expire()
	}
	return err
}

func (o *Orchestrator) finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.KindOf(err)))
	}
	span.End()
}
