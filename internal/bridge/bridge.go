// Package bridge talks to a cooperating extension that keeps answers in its
// own storage. Requests are correlated with their responses; every waiter is
// released on response, cancellation or timeout.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-answerbook/internal/metrics"
)

// Transport carries envelopes to and from the extension peer.
type Transport interface {
	Send(ctx context.Context, env Envelope) error
	// Receive registers the callback for inbound envelopes.
	Receive(fn func(Envelope))
}

type waiter struct {
	id  string
	typ string // expected response event
	key string // composite key for load responses
	ch  chan Envelope
}

type Bridge struct {
	transport Transport
	timeout   time.Duration
	log       *zap.Logger

	mu      sync.Mutex
	waiters []*waiter
}

func New(t Transport, timeout time.Duration, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Bridge{transport: t, timeout: timeout, log: log}
	t.Receive(b.deliver)
	return b
}

// Save dispatches a save request. The peer does not acknowledge saves.
func (b *Bridge) Save(ctx context.Context, key, content string) error {
	env, err := newEnvelope(uuid.NewString(), EventSaveRequest, SaveDetail{Key: key, Content: content})
	if err != nil {
		return err
	}
	err = b.transport.Send(ctx, env)
	b.count(EventSaveRequest, err)
	return err
}

// Load asks the peer for the content stored under key.
func (b *Bridge) Load(ctx context.Context, key string) (string, bool, error) {
	resp, err := b.request(ctx, EventLoadRequest, EventLoadResponse, key, LoadDetail{Key: key})
	if err != nil {
		return "", false, err
	}
	var d LoadDetail
	if err := json.Unmarshal(resp.Detail, &d); err != nil {
		return "", false, err
	}
	return d.Content, d.Content != "", nil
}

// GetAll returns every composite key and answer the peer holds.
func (b *Bridge) GetAll(ctx context.Context) (map[string]string, error) {
	resp, err := b.request(ctx, EventGetAllRequest, EventGetAllResponse, "", nil)
	if err != nil {
		return nil, err
	}
	var d GetAllDetail
	if len(resp.Detail) > 0 {
		if err := json.Unmarshal(resp.Detail, &d); err != nil {
			return nil, err
		}
	}
	if d.AllData == nil {
		d.AllData = map[string]string{}
	}
	return d.AllData, nil
}

func (b *Bridge) request(ctx context.Context, reqType, respType, key string, detail any) (Envelope, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	w := &waiter{id: uuid.NewString(), typ: respType, key: key, ch: make(chan Envelope, 1)}
	b.mu.Lock()
	b.waiters = append(b.waiters, w)
	b.mu.Unlock()
	defer b.remove(w)

	env, err := newEnvelope(w.id, reqType, detail)
	if err != nil {
		return Envelope{}, err
	}
	if err := b.transport.Send(ctx, env); err != nil {
		b.count(reqType, err)
		return Envelope{}, err
	}

	select {
	case resp := <-w.ch:
		b.count(reqType, nil)
		return resp, nil
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrTimeout
		}
		b.log.Warn("extension request abandoned", zap.String("event", reqType), zap.String("key", key), zap.Error(err))
		b.count(reqType, err)
		return Envelope{}, err
	}
}

func (b *Bridge) remove(w *waiter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.waiters = removeWaiter(b.waiters, w)
}

// Pending reports how many requests are waiting for a response.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.waiters)
}

func (b *Bridge) deliver(env Envelope) {
	var key string
	if env.Type == EventLoadResponse {
		var d LoadDetail
		if err := json.Unmarshal(env.Detail, &d); err != nil {
			b.log.Warn("malformed load response", zap.Error(err))
			return
		}
		key = d.Key
	}

	b.mu.Lock()
	var target *waiter
	for _, w := range b.waiters {
		if w.typ != env.Type {
			continue
		}
		if env.ID != "" {
			if env.ID == w.id {
				target = w
				break
			}
			continue
		}
		if env.Type != EventLoadResponse || w.key == key {
			target = w
			break
		}
	}
	if target != nil {
		b.waiters = removeWaiter(b.waiters, target)
	}
	b.mu.Unlock()

	if target == nil {
		b.log.Debug("unsolicited extension event", zap.String("type", env.Type))
		return
	}
	target.ch <- env
}

func removeWaiter(ws []*waiter, w *waiter) []*waiter {
	for i, x := range ws {
		if x == w {
			return append(ws[:i], ws[i+1:]...)
		}
	}
	return ws
}

func (b *Bridge) count(event string, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, ErrTimeout):
		outcome = "timeout"
	case errors.Is(err, ErrNoPeer):
		outcome = "no_peer"
	case err != nil:
		outcome = "error"
	}
	metrics.BridgeRequests.WithLabelValues(event, outcome).Inc()
}
