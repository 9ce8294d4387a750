package msf

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// wsChannel is a channel hosted by a WSService. The host side attaches
// in-process through the Channel interface; remote clients attach over
// websocket and are represented by remotes.
type wsChannel struct {
	name string
	log  *logrus.Logger

	mu        sync.RWMutex // Protects everything below
	connected bool
	host      Client
	handlers  map[string]HandlerFunc
	remotes   map[string]*remote
}

func newWSChannel(name string, log *logrus.Logger) *wsChannel {
	return &wsChannel{
		name:     name,
		log:      log,
		handlers: make(map[string]HandlerFunc),
		remotes:  make(map[string]*remote),
	}
}

// Connect attaches the host application to this channel.
func (ch *wsChannel) Connect(props map[string]interface{}, cb func(error)) {
	ch.mu.Lock()
	if ch.connected {
		ch.mu.Unlock()
		if cb != nil {
			cb(errors.Errorf("host is already connected to channel %q", ch.name))
		}
		return
	}
	host := Client{
		ID:          uuid.NewString(),
		IsHost:      true,
		Attributes:  props,
		ConnectTime: time.Now(),
	}
	ch.connected = true
	ch.host = host
	ch.mu.Unlock()

	ch.log.WithFields(logrus.Fields{
		"channel": ch.name,
		"host":    host.ID,
	}).Info("Host connected to channel")

	if cb != nil {
		cb(nil)
	}
	ch.dispatch(EventConnect, nil, host)
}

// Disconnect detaches the host and drops every remote client.
func (ch *wsChannel) Disconnect() {
	ch.mu.Lock()
	if !ch.connected {
		ch.mu.Unlock()
		return
	}
	ch.connected = false
	host := ch.host
	ch.host = Client{}
	remotes := make([]*remote, 0, len(ch.remotes))
	for _, r := range ch.remotes {
		remotes = append(remotes, r)
	}
	ch.remotes = make(map[string]*remote)
	handlers := ch.handlers
	ch.handlers = make(map[string]HandlerFunc)
	ch.mu.Unlock()

	for _, r := range remotes {
		r.stop()
	}
	if h := handlers[EventDisconnect]; h != nil {
		h(nil, host)
	}
	ch.log.WithField("channel", ch.name).Info("Host disconnected from channel")
}

// On binds the handler for the named event. The last registration wins.
func (ch *wsChannel) On(name string, h HandlerFunc) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.handlers[name] = h
}

// Emit delivers an event to the host's own handler, bypassing the network.
func (ch *wsChannel) Emit(name string, data interface{}) {
	ch.mu.RLock()
	host := ch.host
	ch.mu.RUnlock()
	ch.dispatch(name, data, host)
}

// Publish sends an event to one remote client, or to all of them when
// clientID is empty.
func (ch *wsChannel) Publish(name string, data interface{}, clientID string, payload []byte) error {
	ch.mu.RLock()
	if !ch.connected {
		ch.mu.RUnlock()
		return errors.Errorf("channel %q is not connected", ch.name)
	}
	from := ch.host.ID
	targets := make([]*remote, 0, len(ch.remotes))
	if clientID == "" {
		for _, r := range ch.remotes {
			targets = append(targets, r)
		}
	} else if r, ok := ch.remotes[clientID]; ok {
		targets = append(targets, r)
	}
	ch.mu.RUnlock()

	if clientID != "" && len(targets) == 0 {
		return errors.Errorf("no client %q on channel %q", clientID, ch.name)
	}

	body, err := encodeBody(data)
	if err != nil {
		return errors.Wrap(err, "Encode event body")
	}
	env, err := json.Marshal(Envelope{
		Event:   name,
		Data:    body,
		To:      clientID,
		From:    from,
		Payload: payload,
	})
	if err != nil {
		return errors.Wrap(err, "Encode envelope")
	}

	for _, r := range targets {
		r.enqueue(env)
	}
	return nil
}

// Clients returns a snapshot of the channel's participants. The snapshot is
// safe to iterate while clients connect and disconnect.
func (ch *wsChannel) Clients() []Client {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	clients := make([]Client, 0, len(ch.remotes)+1)
	if ch.connected {
		clients = append(clients, ch.host)
	}
	for _, r := range ch.remotes {
		clients = append(clients, r.client)
	}
	return clients
}

// IsConnected reports whether the host is attached to this channel.
func (ch *wsChannel) IsConnected() bool {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.connected
}

// dispatch hands an inbound event to the bound handler, if there is one.
func (ch *wsChannel) dispatch(name string, data interface{}, from Client) {
	ch.mu.RLock()
	h := ch.handlers[name]
	ch.mu.RUnlock()
	if h == nil {
		ch.log.WithFields(logrus.Fields{
			"channel": ch.name,
			"event":   name,
		}).Debug("No handler bound for event")
		return
	}
	h(data, from)
}

// register adds a remote client to the channel and raises clientConnect.
func (ch *wsChannel) register(r *remote) {
	ch.mu.Lock()
	ch.remotes[r.client.ID] = r
	ch.mu.Unlock()

	ch.log.WithFields(logrus.Fields{
		"channel": ch.name,
		"client":  r.client.ID,
	}).Info("Client connected")
	ch.dispatch(EventClientConnect, nil, r.client)
}

// unregister removes a remote client and raises clientDisconnect. It is a
// no-op if the client already left.
func (ch *wsChannel) unregister(r *remote) {
	ch.mu.Lock()
	if _, ok := ch.remotes[r.client.ID]; !ok {
		ch.mu.Unlock()
		return
	}
	delete(ch.remotes, r.client.ID)
	ch.mu.Unlock()

	ch.log.WithFields(logrus.Fields{
		"channel": ch.name,
		"client":  r.client.ID,
	}).Info("Client disconnected")
	ch.dispatch(EventClientDisconnect, nil, r.client)
}
