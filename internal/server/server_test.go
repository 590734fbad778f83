package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	fws "github.com/fasthttp/websocket"
	"github.com/san-kum/policyloop/internal/config"
	"github.com/san-kum/policyloop/internal/loop"
	"github.com/san-kum/policyloop/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newServer(t *testing.T, model, preset string, every int) (*Server, *loop.Orchestrator) {
	t.Helper()
	cfg := config.GetPreset(model, preset)
	require.NotNil(t, cfg)
	b, _, err := scene.NewRegistry().Load(cfg, nil)
	require.NoError(t, err)
	o, err := loop.New(b, nil, loop.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { o.Close() })
	return New(o, config.ServerConfig{FrameEvery: every}, nil), o
}

func decode(t *testing.T, r io.Reader, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r).Decode(out))
}

func TestGetParams(t *testing.T) {
	s, o := newServer(t, "pendulum", "upright", 1)
	require.NoError(t, o.Start())
	require.NoError(t, o.Tick(context.Background()))

	resp, err := s.App().Test(httptest.NewRequest("GET", "/params", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var got map[string]any
	decode(t, resp.Body, &got)
	assert.Equal(t, "pendulum-upright", got["scene"])
	assert.Equal(t, "running", got["state"])
	assert.Equal(t, 1.0, got["tick"])
}

func TestGetScene(t *testing.T) {
	s, _ := newServer(t, "cartpole", "track", 1)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/scene", nil))
	require.NoError(t, err)

	var info SceneInfo
	decode(t, resp.Body, &info)
	assert.Equal(t, "cartpole-track", info.Name)
	assert.Equal(t, []string{"slider", "hinge"}, info.Joints)
	assert.Equal(t, []string{"target_x"}, info.CommandFields)
	assert.Equal(t, 1, info.ActionDim)
	require.Len(t, info.Observation, 3)
	assert.Equal(t, "command", info.Observation[2].Name)
	assert.Equal(t, 4, info.Observation[2].Offset)
}

func TestPostCommands(t *testing.T) {
	s, o := newServer(t, "cartpole", "track", 1)

	req := httptest.NewRequest("POST", "/commands", strings.NewReader(`{"values":{"target_x":0.5}}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	v, _ := o.Binding().Commands.Get("target_x")
	assert.Equal(t, 0.5, v)

	req = httptest.NewRequest("POST", "/commands", strings.NewReader(`{"values":{"target_x":1,"bogus":2}}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	v, _ = o.Binding().Commands.Get("target_x")
	assert.Equal(t, 0.5, v, "a rejected batch leaves every field untouched")
}

func TestPostControl(t *testing.T) {
	s, o := newServer(t, "pendulum", "upright", 1)

	tests := []struct {
		action string
		status int
		state  loop.State
	}{
		{"resume", 409, loop.Stopped},
		{"start", 200, loop.Running},
		{"pause", 200, loop.Paused},
		{"resume", 200, loop.Running},
		{"reset", 200, loop.Running},
		{"stop", 200, loop.Stopped},
		{"explode", 404, loop.Stopped},
	}
	for _, tt := range tests {
		resp, err := s.App().Test(httptest.NewRequest("POST", "/control/"+tt.action, nil))
		require.NoError(t, err)
		if resp.StatusCode != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.action, tt.status, resp.StatusCode)
		}
		if o.State() != tt.state {
			t.Errorf("%s: expected state %s, got %s", tt.action, tt.state, o.State())
		}
	}
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	s, _ := newServer(t, "pendulum", "upright", 1)
	resp, err := s.App().Test(httptest.NewRequest("GET", "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, 426, resp.StatusCode)
}

func TestFramesBroadcastEveryN(t *testing.T) {
	s, o := newServer(t, "pendulum", "upright", 2)
	cl := s.hub.add()
	require.NoError(t, o.Start())

	for i := 0; i < 4; i++ {
		require.NoError(t, o.Tick(context.Background()))
	}
	require.Len(t, cl.send, 2)

	var msg Message
	require.NoError(t, json.Unmarshal(<-cl.send, &msg))
	assert.Equal(t, TypeFrame, msg.Type)
	var frame FrameMessage
	require.NoError(t, json.Unmarshal(msg.Data, &frame))
	assert.Equal(t, uint64(2), frame.Tick)
	require.Len(t, frame.Bodies, 1)
	assert.Equal(t, "pole", frame.Bodies[0].Name)
	assert.True(t, frame.InferenceOK)
}

func TestHandleMessage(t *testing.T) {
	s, o := newServer(t, "cartpole", "track", 1)

	var msg Message
	require.NoError(t, json.Unmarshal(s.handleMessage([]byte(`{"type":"commands","data":{"values":{"target_x":-1}}}`)), &msg))
	assert.Equal(t, TypeParams, msg.Type)
	v, _ := o.Binding().Commands.Get("target_x")
	assert.Equal(t, -1.0, v)

	require.NoError(t, json.Unmarshal(s.handleMessage([]byte(`{"type":"control","data":{"action":"start"}}`)), &msg))
	assert.Equal(t, TypeParams, msg.Type)
	assert.Equal(t, loop.Running, o.State())

	for _, raw := range []string{
		`not json`,
		`{"type":"teleport","data":{}}`,
		`{"type":"control","data":{"action":"fly"}}`,
		`{"type":"commands","data":{"values":{"nope":1}}}`,
	} {
		require.NoError(t, json.Unmarshal(s.handleMessage([]byte(raw)), &msg))
		assert.Equal(t, TypeError, msg.Type, raw)
	}
}

func TestHubDropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHub()
	c := h.add()
	for i := 0; i < clientBuffer+5; i++ {
		h.broadcast([]byte("x"))
	}
	assert.Equal(t, uint64(5), h.dropped.Load())

	h.remove(c)
	h.remove(c)
	h.sendTo(c, []byte("late"))
	assert.Equal(t, 0, h.len())

	other := h.add()
	h.closeAll()
	_, ok := <-other.send
	assert.False(t, ok)
}

func TestWebsocketSession(t *testing.T) {
	s, o := newServer(t, "cartpole", "track", 1)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.App().Listener(ln)
	defer s.Shutdown()

	conn, _, err := fws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	read := func() Message {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var m Message
		require.NoError(t, json.Unmarshal(raw, &m))
		return m
	}

	msg := read()
	require.Equal(t, TypeScene, msg.Type)

	require.NoError(t, conn.WriteMessage(fws.TextMessage, []byte(`{"type":"control","data":{"action":"start"}}`)))
	msg = read()
	require.Equal(t, TypeParams, msg.Type)

	require.Eventually(t, func() bool { return s.hub.len() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, o.Tick(context.Background()))
	msg = read()
	assert.Equal(t, TypeFrame, msg.Type)
}
