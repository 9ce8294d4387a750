package ms2

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tvkit/ms2/pkg/msf"
)

// A ChannelError is an application-level error sent over the channel.
type ChannelError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// An ErrorID names one of the predefined channel errors.
type ErrorID int

const (
	ErrNotConnected ErrorID = iota
	ErrSeekFailed
	ErrNoSuchStream
)

var predefinedErrors = [...]ChannelError{
	ErrNotConnected: {Message: "NOT_CONNECTED", Code: 500},
	ErrSeekFailed:   {Message: "SEEK_FAILED", Code: 500},
	ErrNoSuchStream: {Message: "NO_SUCH_STREAM", Code: 404},
}

// Errors the session raises on its own behalf.
var (
	errAccessDenied = ChannelError{Message: "ACCESS_DENIED", Code: 403}
	errNoSuchEvent  = ChannelError{Message: "NO_SUCH_EVENT", Code: 500}
)

// PredefinedError looks up one of the predefined channel errors. Unknown
// ids produce a generic error rather than a panic.
func PredefinedError(id ErrorID) ChannelError {
	if id < 0 || int(id) >= len(predefinedErrors) {
		return ErrorMessage("UNKNOWN_ERROR")
	}
	return predefinedErrors[id]
}

// ErrorMessage wraps an ad-hoc message in a ChannelError.
func ErrorMessage(msg string) ChannelError {
	return ChannelError{Message: msg, Code: 9999}
}

// Send publishes an event on the channel. Every argument is forwarded to
// the channel as-is; an empty clientID broadcasts.
func (s *Session) Send(event string, data interface{}, clientID string, payload []byte) error {
	ch := s.channel()
	if ch == nil {
		return ErrNotOpen
	}
	return ch.Publish(event, data, clientID, payload)
}

// Play broadcasts a play message for the given video. data, if not nil,
// rides along for the remote clients.
func (s *Session) Play(videoID VideoID, position float64, data interface{}) error {
	msg := map[string]interface{}{
		"videoId":  videoID,
		"position": position,
	}
	if data != nil {
		msg["data"] = data
	}
	return s.Send(EventPlay, msg, "", nil)
}

// A Status describes the host's playback and audio state.
type Status struct {
	Volume   int     `json:"volume"`
	IsMute   bool    `json:"isMute"`
	State    string  `json:"state"`
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
	VideoID  VideoID `json:"videoId"`
}

// Status broadcasts st to remote clients. A nil st is built by querying the
// device, which only reflects playback going through the platform player.
func (s *Session) Status(st *Status) error {
	ch := s.channel()
	if ch == nil {
		return ErrNotOpen
	}
	if st == nil {
		if s.Device == nil {
			return errors.New("no device to query status from")
		}
		st = &Status{
			Volume:   s.Device.Volume(),
			IsMute:   s.Device.Muted(),
			State:    s.Device.PlayState().String(),
			Position: s.Device.Position(),
			Duration: s.Device.Duration(),
			VideoID:  s.CurrentVideo(),
		}
	}
	b, err := json.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "Encode status")
	}
	return ch.Publish("status", string(b), "", nil)
}

// Error broadcasts e as an error message on the channel.
func (s *Session) Error(e ChannelError) error {
	return s.Send("error", e, "", nil)
}

// sendError reports an error to one client. Failures only get logged; the
// offending client may already be gone.
func (s *Session) sendError(e ChannelError, clientID string) {
	ch := s.channel()
	if ch == nil {
		return
	}
	if err := ch.Publish("error", e, clientID, nil); err != nil {
		s.log().WithFields(logrus.Fields{
			"client": clientID,
			"code":   e.Code,
			"error":  err,
		}).Debug("Cannot send error to client")
	}
}

// On binds a handler for a custom event. The protocol and lifecycle event
// names are reserved and cannot be rebound. A nil handler logs and drops.
func (s *Session) On(event string, h msf.HandlerFunc) error {
	if _, reserved := reservedEvents[event]; reserved {
		s.log().WithField("event", event).Error("Cannot bind a handler to a reserved event")
		return errors.Errorf("event %q is reserved", event)
	}
	ch := s.channel()
	if ch == nil {
		return ErrNotOpen
	}
	if h == nil {
		h = func(data interface{}, from msf.Client) {
			s.log().WithFields(logrus.Fields{
				"event":  event,
				"client": from.ID,
			}).Debug("Unhandled event")
		}
	}
	ch.On(event, h)
	return nil
}
