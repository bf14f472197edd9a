package bridge

import (
	"encoding/json"
	"errors"
)

// Event names understood by the extension peer.
const (
	EventSaveRequest    = "ab-save-request"
	EventLoadRequest    = "ab-load-request"
	EventLoadResponse   = "ab-load-response"
	EventGetAllRequest  = "ab-get-all-request"
	EventGetAllResponse = "ab-get-all-response"
)

var (
	ErrTimeout = errors.New("bridge: no response from extension")
	ErrNoPeer  = errors.New("bridge: no extension connected")
	ErrClosed  = errors.New("bridge: closed")
)

// Envelope is one message on the wire. ID correlates a request with its
// response; peers that do not echo it are matched by event type and key.
type Envelope struct {
	ID     string          `json:"id,omitempty"`
	Type   string          `json:"type"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

type SaveDetail struct {
	Key     string `json:"key"`
	Content string `json:"content"`
}

type LoadDetail struct {
	Key     string `json:"key"`
	Content string `json:"content,omitempty"`
}

type GetAllDetail struct {
	AllData map[string]string `json:"allData"`
}

func newEnvelope(id, typ string, detail any) (Envelope, error) {
	env := Envelope{ID: id, Type: typ}
	if detail == nil {
		return env, nil
	}
	b, err := json.Marshal(detail)
	if err != nil {
		return Envelope{}, err
	}
	env.Detail = b
	return env, nil
}
