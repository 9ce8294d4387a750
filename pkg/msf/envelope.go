package msf

import "encoding/json"

// Lifecycle events the service raises on a channel, alongside whatever
// events the participants publish themselves.
const (
	EventConnect          = "connect"
	EventDisconnect       = "disconnect"
	EventClientConnect    = "clientConnect"
	EventClientDisconnect = "clientDisconnect"
)

// An Envelope frames every message crossing the websocket. Data holds the
// event body as raw JSON so intermediaries never re-encode it; Payload
// carries opaque binary data, if any.
type Envelope struct {
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
	To      string          `json:"to,omitempty"`
	From    string          `json:"from,omitempty"`
	Payload []byte          `json:"payload,omitempty"`
}

// encodeBody turns an event body into the raw JSON carried by an Envelope.
// []byte and json.RawMessage bodies are assumed to be JSON already.
func encodeBody(data interface{}) (json.RawMessage, error) {
	switch d := data.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return d, nil
	case []byte:
		return json.RawMessage(d), nil
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(b), nil
	}
}
