// Package feed provides the typed client for the feed service, which owns
// posts, likes and comments.
package feed

import (
	"context"
	"strings"

	apperrors "github.com/louisbranch/depths.social/internal/platform/errors"
)

// Post is a single feed entry. A valid post carries content, an image key
// or both; the client enforces that before submission.
type Post struct {
	ID            uint64 `json:"id"`
	Author        string `json:"author"`
	AuthorDisplay string `json:"author_display"`
	Content       string `json:"content"`
	ImageKey      string `json:"image_key,omitempty"`
	CreatedAt     int64  `json:"created_at_ns"`
	LikeCount     uint64 `json:"like_count"`
}

// Comment is a reply attached to a post.
type Comment struct {
	ID            uint64 `json:"id"`
	AuthorDisplay string `json:"author_display"`
	Text          string `json:"text"`
	CreatedAt     int64  `json:"created_at_ns"`
}

// PostDetail is a post with its comments, viewed by a specific caller.
type PostDetail struct {
	Post          Post      `json:"post"`
	Comments      []Comment `json:"comments"`
	LikedByCaller bool      `json:"liked_by_caller"`
}

// LikeResult is the server verdict after a like attempt. The server is
// the single source of truth for the count; the client never assumes a
// successful call incremented it.
type LikeResult struct {
	LikeCount     uint64 `json:"like_count"`
	LikedByCaller bool   `json:"liked_by_caller"`
}

// Caller abstracts the transport so tests can substitute a fake.
type Caller interface {
	Call(ctx context.Context, method string, params any, out any) error
	Mutate(ctx context.Context, method string, params any, out any) error
}

// Client exposes the feed service operations used by the core.
type Client struct {
	rpc Caller
}

// NewClient builds a feed client over the given transport.
func NewClient(rpc Caller) *Client {
	return &Client{rpc: rpc}
}

type pageParams struct {
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

type authorPageParams struct {
	Author string `json:"author"`
	Offset int    `json:"offset"`
	Count  int    `json:"count"`
}

// GetFeed fetches one feed page, newest first. Pages are not snapshot
// isolated server-side: a page fetched after a mutation may overlap or
// shift relative to an earlier page, and callers must tolerate duplicate
// entries across pages.
func (c *Client) GetFeed(ctx context.Context, offset, count int) ([]PostDetail, error) {
	if c == nil || c.rpc == nil {
		return nil, apperrors.E(apperrors.KindUnavailable, "feed service client is not configured")
	}
	if offset < 0 {
		offset = 0
	}
	if count <= 0 {
		return nil, nil
	}
	var page []PostDetail
	if err := c.rpc.Call(ctx, "feed.get_feed", pageParams{Offset: offset, Count: count}, &page); err != nil {
		return nil, err
	}
	return page, nil
}

// GetPostsByAuthor fetches one page of a single author's posts, newest
// first.
func (c *Client) GetPostsByAuthor(ctx context.Context, author string, offset, count int) ([]PostDetail, error) {
	if c == nil || c.rpc == nil {
		return nil, apperrors.E(apperrors.KindUnavailable, "feed service client is not configured")
	}
	author = strings.TrimSpace(author)
	if author == "" {
		return nil, apperrors.E(apperrors.KindInvalidInput, "author principal is required")
	}
	if offset < 0 {
		offset = 0
	}
	if count <= 0 {
		return nil, nil
	}
	var page []PostDetail
	err := c.rpc.Call(ctx, "feed.get_posts_by_author", authorPageParams{
		Author: author,
		Offset: offset,
		Count:  count,
	}, &page)
	if err != nil {
		return nil, err
	}
	return page, nil
}

type createPostParams struct {
	AuthorDisplay string `json:"author_display"`
	Content       string `json:"content"`
	ImageKey      string `json:"image_key,omitempty"`
}

// CreatePost submits a new post. A post with neither content nor an image
// key is rejected locally before any RPC.
func (c *Client) CreatePost(ctx context.Context, authorDisplay, content, imageKey string) (Post, error) {
	if c == nil || c.rpc == nil {
		return Post{}, apperrors.E(apperrors.KindUnavailable, "feed service client is not configured")
	}
	imageKey = strings.TrimSpace(imageKey)
	if strings.TrimSpace(content) == "" && imageKey == "" {
		return Post{}, apperrors.E(apperrors.KindInvalidInput, "post needs content or an image")
	}
	var post Post
	err := c.rpc.Mutate(ctx, "feed.create_post", createPostParams{
		AuthorDisplay: authorDisplay,
		Content:       content,
		ImageKey:      imageKey,
	}, &post)
	if err != nil {
		return Post{}, err
	}
	return post, nil
}

type likeParams struct {
	ID uint64 `json:"id"`
}

// LikePost registers a like. The remote service deduplicates per
// (post, principal), so repeating the call cannot double count; the
// returned count is always the server's.
func (c *Client) LikePost(ctx context.Context, id uint64) (LikeResult, error) {
	if c == nil || c.rpc == nil {
		return LikeResult{}, apperrors.E(apperrors.KindUnavailable, "feed service client is not configured")
	}
	var result LikeResult
	if err := c.rpc.Mutate(ctx, "feed.like_post", likeParams{ID: id}, &result); err != nil {
		return LikeResult{}, err
	}
	return result, nil
}

type commentParams struct {
	ID            uint64 `json:"id"`
	AuthorDisplay string `json:"author_display"`
	Text          string `json:"text"`
}

// CommentPost appends a comment and returns the post's full comment
// sequence as the server stored it. Whitespace-only comments are rejected
// locally.
func (c *Client) CommentPost(ctx context.Context, id uint64, authorDisplay, text string) ([]Comment, error) {
	if c == nil || c.rpc == nil {
		return nil, apperrors.E(apperrors.KindUnavailable, "feed service client is not configured")
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.E(apperrors.KindInvalidInput, "comment text is required")
	}
	var comments []Comment
	err := c.rpc.Mutate(ctx, "feed.comment_post", commentParams{
		ID:            id,
		AuthorDisplay: authorDisplay,
		Text:          text,
	}, &comments)
	if err != nil {
		return nil, err
	}
	return comments, nil
}
