package ms2

import (
	"encoding/json"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/tvkit/ms2/pkg/msf"
)

// The built-in protocol events.
const (
	EventKeydown = "keydown"
	EventSeek    = "seek"
	EventVolume  = "volume"
	EventPlay    = "play"
	EventReclaim = "reclaim"
)

var protocolEvents = []string{EventKeydown, EventSeek, EventVolume, EventPlay, EventReclaim}

// reservedEvents are the names On refuses to rebind: the protocol events
// plus the channel lifecycle events.
var reservedEvents = map[string]struct{}{
	EventKeydown:              {},
	EventSeek:                 {},
	EventVolume:               {},
	EventPlay:                 {},
	EventReclaim:              {},
	msf.EventConnect:          {},
	msf.EventDisconnect:       {},
	msf.EventClientConnect:    {},
	msf.EventClientDisconnect: {},
}

// baseKeycodes covers the keys every platform supports; Connect extends the
// table with whatever the device reports.
var baseKeycodes = map[string]int{
	"Left":  37,
	"Up":    38,
	"Right": 39,
	"Down":  40,
	"Enter": 13,
}

func (s *Session) protocolHandler(event string) msf.HandlerFunc {
	return func(data interface{}, from msf.Client) {
		s.dispatch(event, data, from)
	}
}

// dispatch routes one inbound protocol message: denied clients get a 403,
// everyone else gets their payload decoded and handled. Malformed payloads
// decode to nothing and fall through each handler's own field checks.
func (s *Session) dispatch(event string, data interface{}, from msf.Client) {
	s.mu.Lock()
	_, denied := s.denied[from.ID]
	allowAll := s.allowAll
	s.mu.Unlock()
	if denied && !allowAll {
		s.sendError(errAccessDenied, from.ID)
		return
	}

	raw := rawPayload(data)
	switch event {
	case EventKeydown:
		var p keydownPayload
		s.decodePayload(event, raw, &p)
		s.handleKeydown(p)
	case EventSeek:
		var p seekPayload
		s.decodePayload(event, raw, &p)
		s.handleSeek(p)
	case EventVolume:
		var p volumePayload
		s.decodePayload(event, raw, &p)
		s.handleVolume(p)
	case EventPlay:
		var p playPayload
		s.decodePayload(event, raw, &p)
		s.handlePlay(p)
	case EventReclaim:
		s.handleReclaim()
	default:
		// Nothing registers dispatch for other events; if one slips
		// through, tell the sender rather than dropping it silently.
		s.sendError(errNoSuchEvent, from.ID)
	}
}

// rawPayload normalizes a message body to JSON text. Bodies that are
// already decoded values are re-encoded so every payload takes the same
// path.
func rawPayload(data interface{}) []byte {
	switch d := data.(type) {
	case nil:
		return nil
	case json.RawMessage:
		return d
	case []byte:
		return d
	case string:
		return []byte(d)
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return nil
		}
		return b
	}
}

// decodePayload fills p from raw JSON. Malformed payloads are ignored, not
// rejected; p keeps its zero value and the handler no-ops on it.
func (s *Session) decodePayload(event string, raw []byte, p interface{}) {
	if len(raw) == 0 {
		return
	}
	if err := json.Unmarshal(raw, p); err != nil {
		s.log().WithFields(logrus.Fields{
			"event": event,
			"error": err,
		}).Debug("Ignoring malformed payload")
	}
}

type keydownPayload struct {
	// Keycode is either a key name or a numeric code.
	Keycode interface{} `json:"keycode"`
}

func (s *Session) handleKeydown(p keydownPayload) {
	var code int
	switch k := p.Keycode.(type) {
	case float64:
		code = int(k)
	case string:
		s.mu.Lock()
		c, ok := s.keycodes[k]
		s.mu.Unlock()
		if !ok {
			s.log().WithField("key", k).Debug("Ignoring unknown key name")
			return
		}
		code = c
	default:
		return
	}
	s.notify(KeyPress{Code: code})
}

type seekPayload struct {
	Position float64 `json:"position"`
}

func (s *Session) handleSeek(p seekPayload) {
	// A zero position is indistinguishable from an absent one and is
	// dropped.
	if p.Position == 0 {
		return
	}
	s.notify(Seek{Position: p.Position})
}

type volumePayload struct {
	// Value is a signed level, possibly as a string. A negative value
	// means muted at that absolute level.
	Value interface{} `json:"value"`
}

func (s *Session) handleVolume(p volumePayload) {
	var level int
	switch v := p.Value.(type) {
	case float64:
		level = int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			s.log().WithField("value", v).Debug("Ignoring non-numeric volume")
			return
		}
		level = n
	default:
		return
	}

	mute := level < 0
	if mute {
		level = -level
	}
	if s.Device != nil {
		s.Device.SetVolume(level)
		s.Device.SetMute(mute)
	}
	s.notify(Volume{Volume: level, IsMute: mute})
}

type playPayload struct {
	VideoID  VideoID         `json:"videoId"`
	Position float64         `json:"position"`
	Data     json.RawMessage `json:"data,omitempty"`
}

func (s *Session) handlePlay(p playPayload) {
	if p.VideoID == 0 {
		return
	}
	s.mu.Lock()
	s.currentVideo = p.VideoID
	s.mu.Unlock()

	n := Play{VideoID: p.VideoID, Position: p.Position}
	if len(p.Data) > 0 {
		n.Data = p.Data
	}
	s.notify(n)
}

func (s *Session) handleReclaim() {
	s.notify(Reclaim{})
}
