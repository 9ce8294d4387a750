package msf

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type received struct {
	data interface{}
	from Client
}

// collect binds a handler that forwards events to a channel.
func collect(ch Channel, event string) <-chan received {
	out := make(chan received, 8)
	ch.On(event, func(data interface{}, from Client) {
		out <- received{data: data, from: from}
	})
	return out
}

func wait(t *testing.T, ch <-chan received, what string) received {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for %s", what)
		return received{}
	}
}

// startService runs a WSService on a test listener and returns its host:port.
func startService(t *testing.T) (*WSService, string) {
	t.Helper()
	svc := NewWSService(nil)
	server := httptest.NewServer(svc)
	t.Cleanup(server.Close)
	return svc, strings.TrimPrefix(server.URL, "http://")
}

func hostChannel(t *testing.T, svc *WSService, name string) Channel {
	t.Helper()
	ch, err := svc.Channel(name)
	require.NoError(t, err)
	connected := make(chan error, 1)
	ch.Connect(map[string]interface{}{"name": "TV"}, func(err error) { connected <- err })
	require.NoError(t, <-connected)
	return ch
}

func TestRemoteToHostRoundtrip(t *testing.T) {
	req := require.New(t)
	svc, addr := startService(t)
	ch := hostChannel(t, svc, "demo")

	joined := collect(ch, EventClientConnect)
	hello := collect(ch, "hello")

	conn, err := Dial(addr, "demo", "phone", "")
	req.NoError(err)
	defer conn.Close()

	client := wait(t, joined, "clientConnect").from
	req.False(client.IsHost)
	req.Equal("phone", client.Attributes["name"])

	req.NoError(conn.Send("hello", map[string]interface{}{"text": "hi"}))
	got := wait(t, hello, "hello")
	req.Equal(client.ID, got.from.ID)
	req.JSONEq(`{"text": "hi"}`, string(got.data.(json.RawMessage)))
}

func TestHostToRemotePublish(t *testing.T) {
	req := require.New(t)
	svc, addr := startService(t)
	ch := hostChannel(t, svc, "demo")
	joined := collect(ch, EventClientConnect)

	conn, err := Dial(addr, "demo", "phone", "")
	req.NoError(err)
	defer conn.Close()
	wait(t, joined, "clientConnect")

	req.NoError(ch.Publish("greeting", map[string]interface{}{"text": "welcome"}, "", nil))
	env, err := conn.Next()
	req.NoError(err)
	req.Equal("greeting", env.Event)
	req.Empty(env.To, "broadcasts carry no addressee")
	req.JSONEq(`{"text": "welcome"}`, string(env.Data))
}

func TestPublishToOneClient(t *testing.T) {
	req := require.New(t)
	svc, addr := startService(t)
	ch := hostChannel(t, svc, "demo")
	joined := collect(ch, EventClientConnect)

	conn1, err := Dial(addr, "demo", "one", "")
	req.NoError(err)
	defer conn1.Close()
	first := wait(t, joined, "first clientConnect").from

	conn2, err := Dial(addr, "demo", "two", "")
	req.NoError(err)
	defer conn2.Close()
	wait(t, joined, "second clientConnect")

	req.NoError(ch.Publish("secret", "just for you", first.ID, nil))
	env, err := conn1.Next()
	req.NoError(err)
	req.Equal("secret", env.Event)
	req.Equal(first.ID, env.To)

	// The other client hears nothing.
	conn2.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, err = conn2.Next()
	req.Error(err)
}

func TestPublishUnknownClient(t *testing.T) {
	req := require.New(t)
	svc, _ := startService(t)
	ch := hostChannel(t, svc, "demo")
	req.Error(ch.Publish("secret", nil, "nobody", nil))
}

func TestPublishRequiresHost(t *testing.T) {
	req := require.New(t)
	svc, _ := startService(t)
	ch, err := svc.Channel("demo")
	req.NoError(err)
	req.False(ch.IsConnected())
	req.Error(ch.Publish("greeting", nil, "", nil))
}

func TestClientDisconnectRaised(t *testing.T) {
	req := require.New(t)
	svc, addr := startService(t)
	ch := hostChannel(t, svc, "demo")
	joined := collect(ch, EventClientConnect)
	left := collect(ch, EventClientDisconnect)

	conn, err := Dial(addr, "demo", "phone", "")
	req.NoError(err)
	client := wait(t, joined, "clientConnect").from

	conn.Close()
	gone := wait(t, left, "clientDisconnect").from
	req.Equal(client.ID, gone.ID)
}

func TestClientsSnapshot(t *testing.T) {
	req := require.New(t)
	svc, addr := startService(t)
	ch := hostChannel(t, svc, "demo")
	joined := collect(ch, EventClientConnect)

	conn, err := Dial(addr, "demo", "phone", "")
	req.NoError(err)
	defer conn.Close()
	wait(t, joined, "clientConnect")

	clients := ch.Clients()
	req.Len(clients, 2)
	hosts := 0
	for _, c := range clients {
		if c.IsHost {
			hosts++
		}
	}
	req.Equal(1, hosts)
}

func TestEmitLoopback(t *testing.T) {
	req := require.New(t)
	svc, _ := startService(t)
	ch := hostChannel(t, svc, "demo")
	pings := collect(ch, "ping")

	ch.Emit("ping", "local")
	got := wait(t, pings, "ping")
	req.Equal("local", got.data)
	req.True(got.from.IsHost)
}

func TestAccessTokenChecked(t *testing.T) {
	req := require.New(t)
	svc, addr := startService(t)
	svc.AccessToken = "sekrit"
	hostChannel(t, svc, "demo")

	_, err := Dial(addr, "demo", "phone", "wrong")
	req.Error(err)

	conn, err := Dial(addr, "demo", "phone", "sekrit")
	req.NoError(err)
	conn.Close()
}

func TestDisconnectDropsRemotes(t *testing.T) {
	req := require.New(t)
	svc, addr := startService(t)
	ch := hostChannel(t, svc, "demo")
	joined := collect(ch, EventClientConnect)

	conn, err := Dial(addr, "demo", "phone", "")
	req.NoError(err)
	defer conn.Close()
	wait(t, joined, "clientConnect")

	ch.Disconnect()
	req.False(ch.IsConnected())
	req.Empty(ch.Clients())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, err := conn.Next(); err != nil {
			break
		}
	}
}

func TestHostReconnect(t *testing.T) {
	req := require.New(t)
	svc, _ := startService(t)
	ch := hostChannel(t, svc, "demo")

	// A second connect while attached is refused.
	dup := make(chan error, 1)
	ch.Connect(nil, func(err error) { dup <- err })
	req.Error(<-dup)

	ch.Disconnect()
	again := make(chan error, 1)
	ch.Connect(nil, func(err error) { again <- err })
	req.NoError(<-again)
}

func TestLocalResolver(t *testing.T) {
	req := require.New(t)
	_, err := LocalResolver{}.Resolve()
	req.Error(err)

	svc := NewWSService(nil)
	resolved, err := LocalResolver{Service: svc}.Resolve()
	req.NoError(err)
	req.Equal(Service(svc), resolved)

	_, err = svc.Channel("")
	req.Error(err, "empty channel name must be rejected")
}
