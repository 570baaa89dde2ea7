package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/depths.social/internal/platform/errors"

	"github.com/louisbranch/depths.social/internal/feed"
	"github.com/louisbranch/depths.social/internal/identity"
	"github.com/louisbranch/depths.social/internal/ledger"
	"github.com/louisbranch/depths.social/internal/viewcache"
)

const onboardingCredit = 100

// memBackend is a stateful stand-in for the three services, shared by
// every viewer in a scenario.
type memBackend struct {
	mu       sync.Mutex
	profiles map[string]identity.Profile
	balances map[string]uint64
	history  map[string][]ledger.Transaction
	posts    []*memPost
	nextID   uint64
}

type memPost struct {
	post  feed.Post
	likes map[string]struct{}
}

func newMemBackend() *memBackend {
	return &memBackend{
		profiles: make(map[string]identity.Profile),
		balances: make(map[string]uint64),
		history:  make(map[string][]ledger.Transaction),
	}
}

// ensure registers a principal, granting the onboarding credit exactly
// once.
func (b *memBackend) ensure(principal string) identity.Profile {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.profiles[principal]; ok {
		return p
	}
	p := identity.Profile{Principal: principal, Name: "New User"}
	b.profiles[principal] = p
	b.balances[principal] = onboardingCredit
	b.nextID++
	b.history[principal] = []ledger.Transaction{{ID: b.nextID, To: principal, Amount: onboardingCredit}}
	return p
}

// viewerClient adapts the backend to one principal's point of view.
type viewerClient struct {
	b      *memBackend
	viewer string
}

func (v *viewerClient) GetFeed(_ context.Context, offset, count int) ([]feed.PostDetail, error) {
	v.b.mu.Lock()
	defer v.b.mu.Unlock()
	var page []feed.PostDetail
	for i := len(v.b.posts) - 1; i >= 0 && len(page) < count; i-- {
		p := v.b.posts[i]
		_, liked := p.likes[v.viewer]
		detail := p.post
		detail.LikeCount = uint64(len(p.likes))
		page = append(page, feed.PostDetail{Post: detail, LikedByCaller: liked})
	}
	return page, nil
}

func (v *viewerClient) GetPostsByAuthor(ctx context.Context, author string, offset, count int) ([]feed.PostDetail, error) {
	page, err := v.GetFeed(ctx, offset, count)
	if err != nil {
		return nil, err
	}
	var own []feed.PostDetail
	for _, d := range page {
		if d.Post.Author == author {
			own = append(own, d)
		}
	}
	return own, nil
}

func (v *viewerClient) CreatePost(_ context.Context, authorDisplay, content, imageKey string) (feed.Post, error) {
	v.b.mu.Lock()
	defer v.b.mu.Unlock()
	v.b.nextID++
	post := feed.Post{
		ID:            v.b.nextID,
		Author:        v.viewer,
		AuthorDisplay: authorDisplay,
		Content:       content,
		ImageKey:      imageKey,
	}
	v.b.posts = append(v.b.posts, &memPost{post: post, likes: make(map[string]struct{})})
	return post, nil
}

func (v *viewerClient) LikePost(_ context.Context, id uint64) (feed.LikeResult, error) {
	v.b.mu.Lock()
	defer v.b.mu.Unlock()
	for _, p := range v.b.posts {
		if p.post.ID != id {
			continue
		}
		if p.post.Author == v.viewer {
			return feed.LikeResult{}, apperrors.EC(apperrors.KindBusinessRule, apperrors.CodeOwnPost, "cannot like your own post")
		}
		p.likes[v.viewer] = struct{}{}
		return feed.LikeResult{LikeCount: uint64(len(p.likes)), LikedByCaller: true}, nil
	}
	return feed.LikeResult{}, apperrors.E(apperrors.KindNotFound, "post not found")
}

func (v *viewerClient) CommentPost(_ context.Context, id uint64, authorDisplay, text string) ([]feed.Comment, error) {
	return []feed.Comment{{ID: 1, AuthorDisplay: authorDisplay, Text: text}}, nil
}

func (v *viewerClient) BalanceOf(_ context.Context, principal string) (ledger.Balance, error) {
	v.b.mu.Lock()
	defer v.b.mu.Unlock()
	return ledger.Balance{Amount: v.b.balances[principal], AsOf: time.Now()}, nil
}

func (v *viewerClient) Transfer(_ context.Context, from, to string, amount uint64) (ledger.Transaction, error) {
	v.b.mu.Lock()
	defer v.b.mu.Unlock()
	if v.b.balances[from] < amount {
		return ledger.Transaction{}, apperrors.EC(apperrors.KindBusinessRule, apperrors.CodeInsufficientFunds, "balance too low")
	}
	v.b.balances[from] -= amount
	v.b.balances[to] += amount
	v.b.nextID++
	tx := ledger.Transaction{ID: v.b.nextID, From: from, To: to, Amount: amount}
	v.b.history[from] = append([]ledger.Transaction{tx}, v.b.history[from]...)
	v.b.history[to] = append([]ledger.Transaction{tx}, v.b.history[to]...)
	return tx, nil
}

func (v *viewerClient) GetHistory(_ context.Context, principal string, offset, count int) ([]ledger.Transaction, error) {
	v.b.mu.Lock()
	defer v.b.mu.Unlock()
	return append([]ledger.Transaction(nil), v.b.history[principal]...), nil
}

func (v *viewerClient) UpdateProfile(_ context.Context, update identity.ProfileUpdate) (identity.Profile, error) {
	v.b.mu.Lock()
	defer v.b.mu.Unlock()
	p := v.b.profiles[v.viewer]
	if update.Name != nil {
		p.Name = *update.Name
	}
	v.b.profiles[v.viewer] = p
	return p, nil
}

func (v *viewerClient) SearchProfiles(context.Context, string, int, int) ([]identity.Profile, error) {
	return nil, nil
}

func scenarioOrchestrator(b *memBackend, principal string) *Orchestrator {
	profile := b.ensure(principal)
	client := &viewerClient{b: b, viewer: principal}
	s := authedSessions(principal, profile.Name)
	// Refetch on every read so cross-client effects become visible.
	return New(s, client, client, client, viewcache.New(), Options{
		FeedTTL:    time.Nanosecond,
		BalanceTTL: time.Nanosecond,
		HistoryTTL: time.Nanosecond,
	})
}

func TestOnboardAndLikeScenario(t *testing.T) {
	backend := newMemBackend()
	ctx := context.Background()

	p1 := scenarioOrchestrator(backend, "p1")
	p2 := scenarioOrchestrator(backend, "p2")

	if sess := p1.Session(); sess.Profile.Name != "New User" {
		t.Fatalf("p1 profile name = %q, want %q", sess.Profile.Name, "New User")
	}
	balance, err := p1.Balance(ctx)
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if balance.Amount != onboardingCredit {
		t.Fatalf("onboarding balance = %d, want %d", balance.Amount, onboardingCredit)
	}
	history, err := p1.History(ctx, 0, 20)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || history[0].From != "" {
		t.Fatalf("history = %+v, want a single mint", history)
	}

	post, err := p1.CreatePost(ctx, "hello", "")
	if err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	page, err := p1.Feed(ctx, 0, 50)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(page) != 1 || page[0].Post.Content != "hello" || page[0].Post.LikeCount != 0 {
		t.Fatalf("feed = %+v, want the new post with zero likes", page)
	}

	if _, err := p1.LikePost(ctx, post.ID); apperrors.CodeOf(err) != apperrors.CodeOwnPost {
		t.Fatalf("own like error = %v, want OwnPost", err)
	}
	res, err := p2.LikePost(ctx, post.ID)
	if err != nil {
		t.Fatalf("p2 LikePost() error = %v", err)
	}
	if res.LikeCount != 1 || !res.LikedByCaller {
		t.Fatalf("p2 like = %+v, want count 1 liked", res)
	}

	// Repeat like deduplicates server-side; the count is adopted, never
	// incremented locally.
	res, err = p2.LikePost(ctx, post.ID)
	if err != nil {
		t.Fatalf("repeat LikePost() error = %v", err)
	}
	if res.LikeCount != 1 {
		t.Fatalf("repeat like count = %d, want 1", res.LikeCount)
	}

	p1Page, err := p1.Feed(ctx, 0, 50)
	if err != nil {
		t.Fatalf("p1 Feed() after like error = %v", err)
	}
	if p1Page[0].Post.LikeCount != 1 || p1Page[0].LikedByCaller {
		t.Fatalf("p1 view = %+v, want one like, not by p1", p1Page[0])
	}
	p2Page, err := p2.Feed(ctx, 0, 50)
	if err != nil {
		t.Fatalf("p2 Feed() error = %v", err)
	}
	if !p2Page[0].LikedByCaller {
		t.Fatal("p2 view not marked liked")
	}

	// Transfer settles server-side and both balances reflect it.
	if _, err := p1.Transfer(ctx, "p2", 40); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	b1, err := p1.Balance(ctx)
	if err != nil {
		t.Fatalf("p1 Balance() error = %v", err)
	}
	b2, err := p2.Balance(ctx)
	if err != nil {
		t.Fatalf("p2 Balance() error = %v", err)
	}
	if b1.Amount != 60 || b2.Amount != 140 {
		t.Fatalf("balances = %d/%d, want 60/140", b1.Amount, b2.Amount)
	}
}
