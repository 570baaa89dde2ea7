package orchestrator

import (
	"context"
	"sync"
)

// View identifies a screen of the client. The set is closed; reads are
// bound to the view that requested them so navigating away cancels
// them.
type View int

const (
	ViewFeed View = iota
	ViewMyPosts
	ViewCompose
	ViewProfile
	ViewTransfer
	ViewHistory
)

func (v View) String() string {
	switch v {
	case ViewFeed:
		return "feed"
	case ViewMyPosts:
		return "my_posts"
	case ViewCompose:
		return "compose"
	case ViewProfile:
		return "profile"
	case ViewTransfer:
		return "transfer"
	case ViewHistory:
		return "history"
	default:
		return "unknown"
	}
}

// viewBinder tracks the cancel funcs of in-flight reads per view.
// Entering a view cancels the reads bound to every other view.
type viewBinder struct {
	mu      sync.Mutex
	next    uint64
	cancels map[View]map[uint64]context.CancelFunc
}

func newViewBinder() *viewBinder {
	return &viewBinder{cancels: make(map[View]map[uint64]context.CancelFunc)}
}

func (b *viewBinder) enter(v View) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for view, reads := range b.cancels {
		if view == v {
			continue
		}
		for _, cancel := range reads {
			cancel()
		}
		delete(b.cancels, view)
	}
}

// bind derives a context for one read on view v. The returned done func
// must be called when the read finishes; it releases the registration
// whether or not the read was cancelled.
func (b *viewBinder) bind(ctx context.Context, v View) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	id := b.next
	b.next++
	reads, ok := b.cancels[v]
	if !ok {
		reads = make(map[uint64]context.CancelFunc)
		b.cancels[v] = reads
	}
	reads[id] = cancel
	b.mu.Unlock()
	return ctx, func() {
		b.mu.Lock()
		if reads, ok := b.cancels[v]; ok {
			delete(reads, id)
		}
		b.mu.Unlock()
		cancel()
	}
}
