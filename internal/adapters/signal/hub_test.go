package signal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brownjh18/SafeTalk-sub000/internal/core"
)

func newTestConn() *WsSignalConn {
	return &WsSignalConn{send: make(chan core.Frame, 8)}
}

func drain(c *WsSignalConn) [][]byte {
	var out [][]byte
	for {
		select {
		case f := <-c.send:
			out = append(out, f)
		default:
			return out
		}
	}
}

func TestHubPublishReachesSubscribers(t *testing.T) {
	r := require.New(t)
	h := NewHub()

	a := newTestConn()
	b := newTestConn()
	h.Bind("alice", a)
	h.Bind("bob", b)
	h.Subscribe("s1", "alice")

	h.Publish("s1", map[string]string{"type": "message"})

	frames := drain(a)
	r.Len(frames, 1)
	var env struct {
		Type string `json:"type"`
	}
	r.NoError(json.Unmarshal(frames[0], &env))
	r.Equal("message", env.Type)

	r.Empty(drain(b))
}

func TestHubUnsubscribe(t *testing.T) {
	r := require.New(t)
	h := NewHub()

	a := newTestConn()
	h.Bind("alice", a)
	h.Subscribe("s1", "alice")
	h.Unsubscribe("s1", "alice")

	h.Publish("s1", map[string]string{"type": "message"})
	r.Empty(drain(a))
}

func TestHubUnbindDropsSubscriptions(t *testing.T) {
	r := require.New(t)
	h := NewHub()

	a := newTestConn()
	h.Bind("alice", a)
	h.Subscribe("s1", "alice")
	h.Unbind("alice", a)

	h.Publish("s1", map[string]string{"type": "message"})
	r.Empty(drain(a))
}

func TestHubUnbindIgnoresStaleConn(t *testing.T) {
	r := require.New(t)
	h := NewHub()

	old := newTestConn()
	h.Bind("alice", old)
	fresh := newTestConn()
	h.Bind("alice", fresh)

	// the old goroutine's deferred unbind must not evict the new conn
	h.Unbind("alice", old)
	h.Subscribe("s1", "alice")
	h.Publish("s1", map[string]string{"type": "message"})
	r.Len(drain(fresh), 1)
}

func TestJoinRateLimiter(t *testing.T) {
	r := require.New(t)
	rl := NewJoinRateLimiter(2, time.Minute)

	r.True(rl.Allow("alice"))
	r.True(rl.Allow("alice"))
	r.False(rl.Allow("alice"))
	// other users are unaffected
	r.True(rl.Allow("bob"))
}

func TestJoinRateLimiterWindowSlides(t *testing.T) {
	r := require.New(t)
	rl := NewJoinRateLimiter(1, 10*time.Millisecond)

	r.True(rl.Allow("alice"))
	r.False(rl.Allow("alice"))
	time.Sleep(15 * time.Millisecond)
	r.True(rl.Allow("alice"))
}

func TestConnTrySendBackpressure(t *testing.T) {
	r := require.New(t)
	c := &WsSignalConn{send: make(chan core.Frame, 1)}

	r.NoError(c.TrySend([]byte("one")))
	r.ErrorIs(c.TrySend([]byte("two")), ErrBackpressure)
}

func TestValidateSignalPayload(t *testing.T) {
	r := require.New(t)

	r.NoError(validateSignalPayload("offer", []byte(`{"sdp":"v=0"}`)))
	r.Error(validateSignalPayload("offer", []byte(`{}`)))
	r.Error(validateSignalPayload("answer", []byte(`not json`)))
	r.NoError(validateSignalPayload("candidate", []byte(`{"candidate":"candidate:1 1 udp"}`)))
	r.Error(validateSignalPayload("candidate", []byte(`{"candidate":""}`)))
	// unknown kinds pass through untouched
	r.NoError(validateSignalPayload("bye", []byte(`whatever`)))
}
