package channel

import (
	"context"
	"sync"
)

// Progress remembers which contacts of one record already received it, so a
// retried Send only reaches the contacts that are still missing.
type Progress struct {
	mu   sync.Mutex
	sent map[string]struct{}
}

type progressKey struct{}

// WithProgress attaches a fresh Progress to ctx. Callers retrying Send for the
// same record pass the returned context to every attempt.
func WithProgress(ctx context.Context) (context.Context, *Progress) {
	p := &Progress{sent: make(map[string]struct{})}
	return context.WithValue(ctx, progressKey{}, p), p
}

func progressFrom(ctx context.Context) *Progress {
	p, _ := ctx.Value(progressKey{}).(*Progress)
	return p
}

// Sent returns how many contacts have received the record so far.
func (p *Progress) Sent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func (p *Progress) done(userID string) bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.sent[userID]
	return ok
}

func (p *Progress) mark(userID string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent[userID] = struct{}{}
}
