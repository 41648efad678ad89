package ws

import "encoding/json"

// Subprotocol is the websocket subprotocol spoken on /graphql.
const Subprotocol = "graphql-transport-ws"

const (
	typeConnectionInit = "connection_init"
	typeConnectionAck  = "connection_ack"
	typePing           = "ping"
	typePong           = "pong"
	typeSubscribe      = "subscribe"
	typeNext           = "next"
	typeError          = "error"
	typeComplete       = "complete"
)

// Close codes defined by the protocol.
const (
	closeBadRequest       = 4400
	closeUnauthorized     = 4401
	closeInitTimeout      = 4408
	closeSubscriberExists = 4409
	closeTooManyInits     = 4429
)

// message is one protocol frame.
type message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// tokenFromParams reads the bearer token from connection_init params.
// Both header spellings are accepted.
func tokenFromParams(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var params map[string]interface{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return ""
	}
	for _, key := range []string{"Authorization", "authorization"} {
		if v, ok := params[key].(string); ok && v != "" {
			return v
		}
	}
	if headers, ok := params["headers"].(map[string]interface{}); ok {
		for _, key := range []string{"Authorization", "authorization"} {
			if v, ok := headers[key].(string); ok && v != "" {
				return v
			}
		}
	}
	return ""
}
