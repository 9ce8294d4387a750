// Package ms2 runs a TV application's side of a second-screen channel.
//
// A Session attaches to a channel provided by the multiscreen service,
// translates the built-in protocol messages (keydown, seek, volume, play,
// reclaim) into typed notifications for the hosting application, enforces a
// client-count admission policy, and exposes publish helpers for the
// application's own messages.
package ms2

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tvkit/ms2/pkg/msf"
	"github.com/tvkit/ms2/pkg/platform"
)

// DefaultName is the connection name used when Connect is given none.
const DefaultName = "SmartTV"

// ErrNotOpen is returned by operations that need an attached channel.
var ErrNotOpen = errors.New("session is not open")

// A VideoID identifies the video a session is showing. Zero means no video.
type VideoID int64

// A ConnectFunc is told about each admitted client. Returning (id, true)
// resumes playback of that video for the new client; (0, false) means no
// video is in progress.
type ConnectFunc func(c msf.Client) (VideoID, bool)

// A DisconnectFunc is told about each client that leaves.
type DisconnectFunc func(c msf.Client)

// A VisibilitySource reports application visibility transitions, such as the
// TV moving the application to the background.
type VisibilitySource interface {
	Subscribe(func(visible bool))
}

// A Session is one application's lifetime on one channel. Open attaches it,
// Close detaches it; everything in between operates on the attached channel.
type Session struct {
	// Resolver locates the multiscreen service. Required.
	Resolver msf.Resolver

	// Device is the TV platform the session drives. Optional; without it,
	// volume messages only notify and Status cannot self-report.
	Device platform.Device

	// Notifier receives application notifications. Optional.
	Notifier Notifier

	// Visibility, if set, is subscribed on Connect to broadcast
	// suspend/restore to remote clients.
	Visibility VisibilitySource

	Log *logrus.Logger

	mu           sync.Mutex // Protects everything below
	epoch        uint64
	ch           msf.Channel
	maxClients   int
	allowAll     bool
	denied       map[string]struct{}
	currentVideo VideoID
	onConnect    ConnectFunc
	onDisconnect DisconnectFunc
	keycodes     map[string]int
}

// New creates a session that resolves its service through resolver and
// drives device.
func New(log *logrus.Logger, resolver msf.Resolver, device platform.Device) *Session {
	s := &Session{
		Resolver: resolver,
		Device:   device,
		Log:      log,
		denied:   make(map[string]struct{}),
		keycodes: make(map[string]int, len(baseKeycodes)),
	}
	for name, code := range baseKeycodes {
		s.keycodes[name] = code
	}
	return s
}

// Open resolves the local multiscreen service and attaches to the named
// channel. Resolution happens on its own goroutine; ready, if not nil, runs
// once the channel handle is installed. A resolution that completes after
// Close is discarded.
func (s *Session) Open(channelName string, ready func()) error {
	if channelName == "" {
		return errors.New("channel name required")
	}
	if s.Resolver == nil {
		return errors.New("no service resolver configured")
	}

	s.mu.Lock()
	if s.ch != nil {
		s.mu.Unlock()
		return errors.New("already connected")
	}
	epoch := s.epoch
	s.mu.Unlock()

	go s.resolve(channelName, epoch, ready)
	return nil
}

func (s *Session) resolve(channelName string, epoch uint64, ready func()) {
	svc, err := s.Resolver.Resolve()
	if err != nil {
		s.log().WithFields(logrus.Fields{
			"error": err,
		}).Error("Cannot resolve local multiscreen service")
		return
	}
	ch, err := svc.Channel(channelName)
	if err != nil {
		s.log().WithFields(logrus.Fields{
			"channel": channelName,
			"error":   err,
		}).Error("Cannot get channel from service")
		return
	}

	s.mu.Lock()
	if s.epoch != epoch || s.ch != nil {
		s.mu.Unlock()
		s.log().WithField("channel", channelName).Debug("Discarding stale channel resolution")
		return
	}
	s.ch = ch
	s.mu.Unlock()

	if ready != nil {
		ready()
	}
}

// Close disconnects from the channel and clears the handle. Any resolution
// still in flight from Open is invalidated. Closing a session that is not
// open does nothing.
func (s *Session) Close() {
	s.mu.Lock()
	ch := s.ch
	s.ch = nil
	s.epoch++
	s.allowAll = false
	s.maxClients = 0
	s.currentVideo = 0
	s.denied = make(map[string]struct{})
	s.mu.Unlock()

	if ch != nil {
		ch.Disconnect()
	}
}

// Connect joins the channel as its host and installs the protocol and
// lifecycle handlers. props become the host's attributes; a missing name
// defaults to DefaultName. maxClients is the number of remote clients
// allowed on top of the host's own slot; a negative value disables the
// admission check entirely.
func (s *Session) Connect(props map[string]interface{}, maxClients int) error {
	s.mu.Lock()
	ch := s.ch
	if ch == nil {
		s.mu.Unlock()
		s.log().Error("Cannot connect: session is not open")
		return ErrNotOpen
	}
	if maxClients < 0 {
		s.allowAll = true
	} else {
		s.allowAll = false
		s.maxClients = maxClients + 1 // The host holds a slot too.
	}
	if s.Device != nil {
		for _, k := range s.Device.SupportedKeys() {
			s.keycodes[k.Name] = k.Code
		}
	}
	s.mu.Unlock()

	// The caller keeps its map; the default name goes on a copy.
	merged := make(map[string]interface{}, len(props)+1)
	for k, v := range props {
		merged[k] = v
	}
	if _, ok := merged["name"]; !ok {
		merged["name"] = DefaultName
	}

	for _, event := range protocolEvents {
		ch.On(event, s.protocolHandler(event))
	}
	ch.On(msf.EventConnect, func(data interface{}, from msf.Client) {
		s.log().WithField("host", from.ID).Debug("Channel attached")
	})
	ch.On(msf.EventDisconnect, func(data interface{}, from msf.Client) {
		s.log().WithField("host", from.ID).Debug("Channel detached")
	})
	ch.On(msf.EventClientConnect, func(data interface{}, from msf.Client) {
		s.handleClientConnect(from)
	})
	ch.On(msf.EventClientDisconnect, func(data interface{}, from msf.Client) {
		s.handleClientDisconnect(from)
	})

	ch.Connect(merged, s.onChannelConnect)

	if s.Visibility != nil {
		s.Visibility.Subscribe(s.visibilityChanged)
	}
	return nil
}

// onChannelConnect runs once the service accepts the host. Clients that were
// already on the channel are admitted as if they had just connected.
func (s *Session) onChannelConnect(err error) {
	if err != nil {
		s.log().WithFields(logrus.Fields{
			"error": err,
		}).Error("Cannot connect to channel")
		return
	}
	ch := s.channel()
	if ch == nil {
		return
	}

	for _, c := range ch.Clients() {
		if c.IsHost {
			continue
		}
		s.handleClientConnect(c)
	}
	if err := ch.Publish("ready", nil, "", nil); err != nil {
		s.log().WithField("error", err).Warn("Cannot broadcast ready")
	}
}

func (s *Session) handleClientConnect(c msf.Client) {
	ch := s.channel()
	if ch == nil {
		return
	}
	if err := ch.Publish("ready", nil, "", nil); err != nil {
		s.log().WithField("error", err).Warn("Cannot broadcast ready")
	}

	s.mu.Lock()
	allowAll, maxClients := s.allowAll, s.maxClients
	s.mu.Unlock()

	if !allowAll && len(ch.Clients()) > maxClients {
		s.log().WithFields(logrus.Fields{
			"client":      c.ID,
			"max_clients": maxClients,
		}).Info("Denying client over the limit")
		s.sendError(errAccessDenied, c.ID)
		s.mu.Lock()
		s.denied[c.ID] = struct{}{}
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	delete(s.denied, c.ID)
	cb := s.onConnect
	s.mu.Unlock()
	if cb == nil {
		return
	}
	if videoID, ok := cb(c); ok {
		s.mu.Lock()
		s.currentVideo = videoID
		s.mu.Unlock()
	}
}

func (s *Session) handleClientDisconnect(c msf.Client) {
	ch := s.channel()
	if ch == nil {
		return
	}

	s.mu.Lock()
	if len(ch.Clients()) <= s.maxClients {
		// Room again; pardon everyone.
		s.denied = make(map[string]struct{})
	}
	cb := s.onDisconnect
	s.mu.Unlock()

	if cb != nil {
		cb(c)
	}
}

// OnClientConnect registers the callback run for each admitted client.
// The last registration wins.
func (s *Session) OnClientConnect(cb ConnectFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnect = cb
}

// OnClientDisconnect registers the callback run for each client that
// leaves. The last registration wins.
func (s *Session) OnClientDisconnect(cb DisconnectFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnect = cb
}

// CurrentVideo is the video id last seen in a play message or returned by
// the connect callback.
func (s *Session) CurrentVideo() VideoID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentVideo
}

// visibilityChanged tells remote clients when the application leaves and
// returns to the foreground.
func (s *Session) visibilityChanged(visible bool) {
	ch := s.channel()
	if ch == nil {
		return
	}
	event := "suspend"
	if visible {
		event = "restore"
	}
	if err := ch.Publish(event, nil, "", nil); err != nil {
		s.log().WithFields(logrus.Fields{
			"event": event,
			"error": err,
		}).Warn("Cannot broadcast visibility change")
	}
}

func (s *Session) channel() msf.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

func (s *Session) log() *logrus.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}
