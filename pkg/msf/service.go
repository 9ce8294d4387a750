// Copyright © 2024 the ms2 authors
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package msf

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const channelsPrefix = "/channels/"

// WSService hosts channels for a TV application. The application attaches
// to channels in-process through Channel; remote clients attach over
// websocket at /channels/<name>.
type WSService struct {
	// AccessToken, if set, must be presented by remote clients as the
	// "token" query parameter when connecting.
	AccessToken string

	Log *logrus.Logger

	upgrader websocket.Upgrader

	mu       sync.Mutex // Protects channels
	channels map[string]*wsChannel
}

// NewWSService creates a service with no channels.
func NewWSService(log *logrus.Logger) *WSService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WSService{
		Log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The service fronts a local channel, not a browser origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		channels: make(map[string]*wsChannel),
	}
}

// Channel returns the named channel, creating it if needed.
func (s *WSService) Channel(name string) (Channel, error) {
	if name == "" {
		return nil, errors.New("channel name required")
	}
	return s.channel(name), nil
}

func (s *WSService) channel(name string) *wsChannel {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[name]
	if !ok {
		ch = newWSChannel(name, s.Log)
		s.channels[name] = ch
	}
	return ch
}

// ServeHTTP upgrades remote clients on /channels/<name>.
func (s *WSService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, channelsPrefix)
	if !strings.HasPrefix(r.URL.Path, channelsPrefix) || name == "" || strings.Contains(name, "/") {
		http.NotFound(w, r)
		return
	}
	if s.AccessToken != "" && r.URL.Query().Get("token") != s.AccessToken {
		s.Log.WithFields(logrus.Fields{
			"channel": name,
			"remote":  r.RemoteAddr,
		}).Warn("Rejecting client with bad access token")
		http.Error(w, "invalid access token", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.WithField("error", err).Error("Error upgrading connection")
		return
	}

	attributes := map[string]interface{}{}
	if clientName := r.URL.Query().Get("name"); clientName != "" {
		attributes["name"] = clientName
	}
	go newRemote(s.channel(name), conn, attributes, s.Log).run()
}

// ListenAndServe serves remote clients on addr until the listener fails.
func (s *WSService) ListenAndServe(addr string) error {
	s.Log.WithField("addr", addr).Info("Listening for incoming clients")
	return errors.Wrap(http.ListenAndServe(addr, s), "Listen")
}
