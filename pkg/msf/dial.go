package msf

import (
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// A RemoteConn is the client side of a channel connection, used by second
// screens talking to a WSService.
type RemoteConn struct {
	conn *websocket.Conn
}

// Dial connects to the named channel on a service at host:port. name and
// token, if set, are passed along as query parameters.
func Dial(addr, channel, name, token string) (*RemoteConn, error) {
	if channel == "" {
		return nil, errors.New("channel name required")
	}
	u := url.URL{Scheme: "ws", Host: addr, Path: channelsPrefix + channel}
	q := u.Query()
	if name != "" {
		q.Set("name", name)
	}
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "Dial channel (%s)", resp.Status)
		}
		return nil, errors.Wrap(err, "Dial channel")
	}
	return &RemoteConn{conn: conn}, nil
}

// Send publishes an event to the channel's host.
func (c *RemoteConn) Send(event string, data interface{}) error {
	body, err := encodeBody(data)
	if err != nil {
		return errors.Wrap(err, "Encode event body")
	}
	return errors.Wrap(c.conn.WriteJSON(Envelope{Event: event, Data: body}), "Send event")
}

// SetReadDeadline bounds how long Next will wait.
func (c *RemoteConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Next blocks until the host publishes the next envelope.
func (c *RemoteConn) Next() (Envelope, error) {
	var env Envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		return Envelope{}, errors.Wrap(err, "Read event")
	}
	return env, nil
}

// Close closes the connection.
func (c *RemoteConn) Close() error {
	return c.conn.Close()
}
