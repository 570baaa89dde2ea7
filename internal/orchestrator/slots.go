package orchestrator

import (
	"fmt"
	"sync"

	apperrors "github.com/louisbranch/depths.social/internal/platform/errors"
)

// slot names one serialized user action. Scoped slots (like, comment)
// append the target post ID so actions on different posts run in
// parallel while a repeat on the same post is rejected.
type slot string

const (
	slotComposePost slot = "compose_post"
	slotLikePost    slot = "like_post"
	slotCommentPost slot = "comment_post"
	slotSendTokens  slot = "send_tokens"
	slotEditProfile slot = "edit_profile"
)

type slotSet struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newSlotSet() *slotSet {
	return &slotSet{held: make(map[string]struct{})}
}

// acquire claims the slot or fails with KindInFlight when the previous
// action on it has not settled. The release func is idempotent.
func (s *slotSet) acquire(sl slot, scope string) (func(), error) {
	key := string(sl)
	if scope != "" {
		key += ":" + scope
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.held[key]; busy {
		return nil, apperrors.E(apperrors.KindInFlight, fmt.Sprintf("%s already in progress", key))
	}
	s.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.held, key)
			s.mu.Unlock()
		})
	}, nil
}
