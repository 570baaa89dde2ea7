package orchestrator

import (
	"context"
	"strconv"

	"github.com/louisbranch/depths.social/internal/feed"
	"github.com/louisbranch/depths.social/internal/viewcache"
)

// Feed returns a page of the global feed, served from cache when fresh.
// The read is bound to the feed view.
func (o *Orchestrator) Feed(ctx context.Context, offset, count int) ([]feed.PostDetail, error) {
	if _, err := o.requireSession(); err != nil {
		return nil, err
	}
	ctx, done := o.views.bind(ctx, ViewFeed)
	defer done()
	key := viewcache.Key{Kind: kindFeed, Scope: scopeGlobal, Offset: offset, Count: count}
	return viewcache.ReadThrough(ctx, o.cache, key, o.feedTTL, func(ctx context.Context) ([]feed.PostDetail, error) {
		page, err := o.feeds.GetFeed(ctx, offset, count)
		return page, o.observe(err)
	})
}

// MyPosts returns a page of the caller's own posts.
func (o *Orchestrator) MyPosts(ctx context.Context, offset, count int) ([]feed.PostDetail, error) {
	sess, err := o.requireSession()
	if err != nil {
		return nil, err
	}
	ctx, done := o.views.bind(ctx, ViewMyPosts)
	defer done()
	key := viewcache.Key{Kind: kindAuthorPosts, Scope: sess.Principal, Offset: offset, Count: count}
	return viewcache.ReadThrough(ctx, o.cache, key, o.feedTTL, func(ctx context.Context) ([]feed.PostDetail, error) {
		page, err := o.feeds.GetPostsByAuthor(ctx, sess.Principal, offset, count)
		return page, o.observe(err)
	})
}

// CreatePost publishes a post and invalidates the feed pages plus the
// caller's own-posts pages. One compose at a time.
func (o *Orchestrator) CreatePost(ctx context.Context, content, imageKey string) (feed.Post, error) {
	sess, err := o.requireSession()
	if err != nil {
		return feed.Post{}, err
	}
	release, err := o.slots.acquire(slotComposePost, "")
	if err != nil {
		return feed.Post{}, err
	}
	defer release()

	ctx, span := o.tracer.Start(context.WithoutCancel(ctx), "intent.create_post")
	post, err := o.feeds.CreatePost(ctx, sess.Profile.Name, content, imageKey)
	o.finish(span, err)
	if err != nil {
		return feed.Post{}, o.observe(err)
	}
	o.cache.Invalidate(kindFeed, scopeGlobal)
	o.cache.Invalidate(kindAuthorPosts, sess.Principal)
	return post, nil
}

// LikePost likes a post, adopting the server's count as truth, and
// invalidates the cached pages that contain the post.
func (o *Orchestrator) LikePost(ctx context.Context, id uint64) (feed.LikeResult, error) {
	if _, err := o.requireSession(); err != nil {
		return feed.LikeResult{}, err
	}
	release, err := o.slots.acquire(slotLikePost, strconv.FormatUint(id, 10))
	if err != nil {
		return feed.LikeResult{}, err
	}
	defer release()

	ctx, span := o.tracer.Start(context.WithoutCancel(ctx), "intent.like_post")
	res, err := o.feeds.LikePost(ctx, id)
	o.finish(span, err)
	if err != nil {
		return feed.LikeResult{}, o.observe(err)
	}
	o.invalidatePagesWith(id)
	return res, nil
}

// CommentPost appends a comment and invalidates the cached pages that
// contain the post.
func (o *Orchestrator) CommentPost(ctx context.Context, id uint64, text string) ([]feed.Comment, error) {
	sess, err := o.requireSession()
	if err != nil {
		return nil, err
	}
	release, err := o.slots.acquire(slotCommentPost, strconv.FormatUint(id, 10))
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, span := o.tracer.Start(context.WithoutCancel(ctx), "intent.comment_post")
	comments, err := o.feeds.CommentPost(ctx, id, sess.Profile.Name, text)
	o.finish(span, err)
	if err != nil {
		return nil, o.observe(err)
	}
	o.invalidatePagesWith(id)
	return comments, nil
}

// invalidatePagesWith marks stale every cached post page holding id.
// Pages without the post stay fresh.
func (o *Orchestrator) invalidatePagesWith(id uint64) {
	match := func(_ viewcache.Key, value any) bool {
		page, ok := value.([]feed.PostDetail)
		if !ok {
			return false
		}
		for _, d := range page {
			if d.Post.ID == id {
				return true
			}
		}
		return false
	}
	o.cache.InvalidateWhere(kindFeed, match)
	o.cache.InvalidateWhere(kindAuthorPosts, match)
}
