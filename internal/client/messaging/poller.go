package messaging

import (
	"context"
	"time"
)

// poller re-fetches one conversation on a fixed interval. At most one poller
// is live per session: selecting a different conversation, clearing the
// current one, or closing the session cancels it before a replacement
// starts. Cancellation only suppresses future ticks; a tick already running
// finishes and its response lands last-writer-wins.
type poller struct {
	conversationID int64
	cancel         context.CancelFunc
	done           chan struct{}
}

// startPollingLocked replaces any live poll loop with one for the given
// conversation. Caller holds s.mu.
func (s *Session) startPollingLocked(conversationID int64) {
	s.stopPollingLocked()
	ctx, cancel := context.WithCancel(context.Background())
	p := &poller{conversationID: conversationID, cancel: cancel, done: make(chan struct{})}
	s.poll = p
	go s.pollLoop(ctx, p)
}

// stopPollingLocked cancels the live poll loop, if any. Caller holds s.mu.
// It does not wait for the loop goroutine: the loop re-checks the current
// conversation under the mutex before touching state, so a straggling tick
// cannot resurrect a cleared conversation.
func (s *Session) stopPollingLocked() {
	if s.poll == nil {
		return
	}
	s.poll.cancel()
	s.poll = nil
}

func (s *Session) pollLoop(ctx context.Context, p *poller) {
	defer close(p.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollTick(ctx, p)
		}
	}
}

// pollTick re-runs the current-conversation refresh sequence. A failed tick
// is logged inside the refresh helpers and retried on the next interval;
// there is no backoff.
func (s *Session) pollTick(ctx context.Context, p *poller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poll != p {
		return
	}
	if s.current == nil || s.current.ID != p.conversationID {
		return
	}
	s.refreshCurrentLocked(ctx, p.conversationID)
}
