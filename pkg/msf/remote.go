package msf

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	sendBuffSize = 16 // Outbound queue per remote client
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 1 << 20
)

// A remote is the service-side end of one websocket client. Two goroutines
// pump it: readLoop feeds inbound envelopes to the channel, writeLoop drains
// the send queue to the socket.
type remote struct {
	client Client
	ch     *wsChannel
	conn   *websocket.Conn
	log    *logrus.Logger
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func newRemote(ch *wsChannel, conn *websocket.Conn, attributes map[string]interface{}, log *logrus.Logger) *remote {
	return &remote{
		client: Client{
			ID:          uuid.NewString(),
			Attributes:  attributes,
			ConnectTime: time.Now(),
		},
		ch:   ch,
		conn: conn,
		log:  log,
		send: make(chan []byte, sendBuffSize),
		done: make(chan struct{}),
	}
}

// run serves the client until the socket closes or the channel drops it.
func (r *remote) run() {
	r.ch.register(r)
	go r.writeLoop()
	r.readLoop()
	r.ch.unregister(r)
	r.stop()
}

func (r *remote) readLoop() {
	defer r.conn.Close()
	r.conn.SetReadLimit(maxFrameSize)
	r.conn.SetReadDeadline(time.Now().Add(pongWait))
	r.conn.SetPongHandler(func(string) error {
		r.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env Envelope
		if err := r.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				r.log.WithFields(logrus.Fields{
					"client": r.client.ID,
					"error":  err,
				}).Debug("Client read error")
			}
			return
		}
		if env.Event == "" {
			continue
		}
		// The body stays raw JSON; the host side decides how to decode it.
		r.ch.dispatch(env.Event, env.Data, r.client)
	}
}

func (r *remote) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer r.conn.Close()

	for {
		select {
		case msg, ok := <-r.send:
			r.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				r.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := r.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			r.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := r.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.done:
			return
		}
	}
}

// enqueue queues an envelope for delivery. Clients that cannot keep up are
// dropped rather than allowed to stall the channel.
func (r *remote) enqueue(msg []byte) {
	select {
	case r.send <- msg:
	default:
		r.log.WithField("client", r.client.ID).Warn("Dropping slow client")
		r.ch.unregister(r)
		r.stop()
	}
}

// stop tears the connection down. It is safe to call more than once.
func (r *remote) stop() {
	r.once.Do(func() {
		close(r.done)
		r.conn.Close()
	})
}
