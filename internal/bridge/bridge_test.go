package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	auth "github.com/mind-engage/mindengage-answerbook/internal/auth/middleware"
)

// fakePeer answers requests in-process, the way the extension would.
type fakePeer struct {
	mu      sync.Mutex
	data    map[string]string
	sent    []Envelope
	silent  bool // never answer
	echoID  bool
	sendErr error
	deliver func(Envelope)
}

func newFakePeer() *fakePeer { return &fakePeer{data: map[string]string{}, echoID: true} }

func (f *fakePeer) Receive(fn func(Envelope)) { f.deliver = fn }

func (f *fakePeer) Send(_ context.Context, env Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, env)

	var reply *Envelope
	switch env.Type {
	case EventSaveRequest:
		var d SaveDetail
		_ = json.Unmarshal(env.Detail, &d)
		f.data[d.Key] = d.Content
	case EventLoadRequest:
		var d LoadDetail
		_ = json.Unmarshal(env.Detail, &d)
		r, _ := newEnvelope("", EventLoadResponse, LoadDetail{Key: d.Key, Content: f.data[d.Key]})
		reply = &r
	case EventGetAllRequest:
		all := make(map[string]string, len(f.data))
		for k, v := range f.data {
			all[k] = v
		}
		r, _ := newEnvelope("", EventGetAllResponse, GetAllDetail{AllData: all})
		reply = &r
	}
	if reply == nil || f.silent {
		return nil
	}
	if f.echoID {
		reply.ID = env.ID
	}
	// answer on a later turn, like an event listener would
	go f.deliver(*reply)
	return nil
}

func TestBridgeSaveLoadGetAll(t *testing.T) {
	defer goleak.VerifyNone(t)

	peer := newFakePeer()
	b := New(peer, time.Second, nil)
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, "ch1|1", "<p>one</p>"))
	require.NoError(t, b.Save(ctx, "ch2|1", "<p>other</p>"))

	content, found, err := b.Load(ctx, "ch1|1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "<p>one</p>", content)

	_, found, err = b.Load(ctx, "ch1|missing")
	require.NoError(t, err)
	assert.False(t, found)

	all, err := b.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ch1|1": "<p>one</p>", "ch2|1": "<p>other</p>"}, all)
	assert.Zero(t, b.Pending())
}

func TestBridgeMatchesByKeyWithoutID(t *testing.T) {
	defer goleak.VerifyNone(t)

	peer := newFakePeer()
	peer.echoID = false
	peer.data["a|1"] = "first"
	peer.data["a|2"] = "second"
	b := New(peer, time.Second, nil)

	var wg sync.WaitGroup
	got := make([]string, 2)
	for i, key := range []string{"a|1", "a|2"} {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			c, _, err := b.Load(context.Background(), key)
			assert.NoError(t, err)
			got[i] = c
		}(i, key)
	}
	wg.Wait()
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestBridgeTimeoutReleasesWaiter(t *testing.T) {
	defer goleak.VerifyNone(t)

	peer := newFakePeer()
	peer.silent = true
	b := New(peer, 20*time.Millisecond, nil)

	_, _, err := b.Load(context.Background(), "a|1")
	assert.ErrorIs(t, err, ErrTimeout)
	_, err = b.GetAll(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Zero(t, b.Pending(), "abandoned listeners must not be retained")
}

func TestBridgeCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	peer := newFakePeer()
	peer.silent = true
	b := New(peer, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := b.GetAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, b.Pending())
}

func TestBridgeSendError(t *testing.T) {
	peer := newFakePeer()
	peer.sendErr = ErrNoPeer
	b := New(peer, time.Second, nil)

	assert.ErrorIs(t, b.Save(context.Background(), "a|1", "x"), ErrNoPeer)
	_, _, err := b.Load(context.Background(), "a|1")
	assert.True(t, errors.Is(err, ErrNoPeer))
	assert.Zero(t, b.Pending())
}

func TestBridgeIgnoresLateResponses(t *testing.T) {
	peer := newFakePeer()
	b := New(peer, time.Second, nil)

	late, _ := newEnvelope("not-a-live-id", EventGetAllResponse, GetAllDetail{})
	peer.deliver(late)
	assert.Zero(t, b.Pending())
}

func TestHubRoundTrip(t *testing.T) {
	hub := NewHub(nil)
	b := New(hub, 2*time.Second, nil)

	_, _, err := b.Load(context.Background(), "a|1")
	require.ErrorIs(t, err, ErrNoPeer)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, hub.Connected, time.Second, 5*time.Millisecond)

	// extension side: answer load requests from a fixed map
	go func() {
		for {
			var env Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			if env.Type != EventLoadRequest {
				continue
			}
			var d LoadDetail
			_ = json.Unmarshal(env.Detail, &d)
			reply, _ := newEnvelope(env.ID, EventLoadResponse, LoadDetail{Key: d.Key, Content: "<p>from extension</p>"})
			_ = conn.WriteJSON(reply)
		}
	}()

	content, found, err := b.Load(context.Background(), "a|1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "<p>from extension</p>", content)

	require.NoError(t, hub.Close())
	assert.False(t, hub.Connected())
}

func TestHubRecordsPeerSubject(t *testing.T) {
	hub := NewHub(nil)
	a := auth.NewAuthService("secret")
	tok, err := a.IssuePeerToken("ext-7", time.Hour)
	require.NoError(t, err)

	srv := httptest.NewServer(auth.JWTMiddleware(a)(hub))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"?token="+tok, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, hub.Connected, time.Second, 5*time.Millisecond)
	assert.Equal(t, "ext-7", hub.Subject())

	require.NoError(t, hub.Close())
	assert.Equal(t, "", hub.Subject())
}
