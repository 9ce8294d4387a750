package ms2

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// A Notification is raised for the hosting application, as opposed to a
// message published on the channel for remote clients.
type Notification interface {
	Name() string
}

// A Notifier receives the session's notifications. Sessions without one
// log and drop them.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notification)

// Notify calls f.
func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

// Volume reports a volume change requested by a remote client.
type Volume struct {
	Volume int  `json:"volume"`
	IsMute bool `json:"isMute"`
}

// Name gets this notification's name.
func (Volume) Name() string { return "ms2:volume" }

// Seek reports a seek requested by a remote client.
type Seek struct {
	Position float64 `json:"position"`
}

// Name gets this notification's name.
func (Seek) Name() string { return "ms2:seek" }

// Play reports a play request from a remote client.
type Play struct {
	VideoID  VideoID         `json:"videoId"`
	Position float64         `json:"position"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Name gets this notification's name.
func (Play) Name() string { return "ms2:play" }

// Reclaim reports that a remote client wants playback back on its own
// screen. It carries no parameters.
type Reclaim struct{}

// Name gets this notification's name.
func (Reclaim) Name() string { return "ms2:reclaim" }

// KeyPress is a synthetic key press resolved from a remote keydown message.
type KeyPress struct {
	Code int `json:"code"`
}

// Name gets this notification's name.
func (KeyPress) Name() string { return "ms2:keypress" }

func (s *Session) notify(n Notification) {
	if s.Notifier != nil {
		s.Notifier.Notify(n)
		return
	}
	s.log().WithFields(logrus.Fields{
		"notification": n.Name(),
	}).Debug("No notifier configured; dropping notification")
}
