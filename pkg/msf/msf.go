// Package msf provides the multiscreen service surface a TV application
// attaches to: named channels joining the application and its remote
// second-screen clients.
//
// The interfaces in this file are the contract consumed by package ms2.
// The websocket service in this package is one implementation of them;
// tests substitute their own.
package msf

import (
	"time"

	"github.com/pkg/errors"
)

// A Client is a participant on a channel. The host is the TV application
// itself; every other client is a remote device.
type Client struct {
	ID          string                 `json:"id"`
	IsHost      bool                   `json:"isHost"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
	ConnectTime time.Time              `json:"connectTime"`
}

// A HandlerFunc receives a channel message. data is the message body as it
// arrived on the wire, and from identifies the sending client.
type HandlerFunc func(data interface{}, from Client)

// A Channel joins the host application and its remote clients under one name.
type Channel interface {
	// Connect attaches the host to the channel. props become the host
	// client's attributes. cb is invoked once, with a nil error on success.
	Connect(props map[string]interface{}, cb func(error))

	// Disconnect detaches the host and drops all remote clients.
	Disconnect()

	// On binds the handler for the named event, replacing any previous one.
	On(name string, h HandlerFunc)

	// Emit delivers an event to the host's own handler without touching the
	// network.
	Emit(name string, data interface{})

	// Publish sends an event to remote clients. If clientID is empty the
	// event is broadcast to every remote client; otherwise it is sent to
	// that client only. payload optionally carries opaque binary data.
	Publish(name string, data interface{}, clientID string, payload []byte) error

	// Clients returns a snapshot of everyone on the channel, host included.
	Clients() []Client

	// IsConnected reports whether the host is attached.
	IsConnected() bool
}

// A Service hands out channels by name.
type Service interface {
	Channel(name string) (Channel, error)
}

// A Resolver locates the multiscreen service running on this device.
type Resolver interface {
	Resolve() (Service, error)
}

// LocalResolver resolves to a service already running in this process.
type LocalResolver struct {
	Service Service
}

// Resolve returns the in-process service.
func (r LocalResolver) Resolve() (Service, error) {
	if r.Service == nil {
		return nil, errors.New("no local multiscreen service is running")
	}
	return r.Service, nil
}
