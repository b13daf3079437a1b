package realtime

import "encoding/json"

// Message types
const (
	TypeAuth           = "auth"
	TypeAuthAck        = "auth_ack"
	TypeSubscribe      = "subscribe"
	TypeSubscribeAck   = "subscribe_ack"
	TypeUnsubscribe    = "unsubscribe"
	TypeUnsubscribeAck = "unsubscribe_ack"
	TypeEvent          = "event"
	TypeError          = "error"
)

// BaseMessage is the envelope for all messages
type BaseMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AuthPayload (Client -> Server). Browsers cannot set headers on the
// websocket handshake, so they send the bearer token as the first message.
type AuthPayload struct {
	Token string `json:"token"`
}

// SubscribePayload (Client -> Server). An empty table subscribes to all
// tables.
type SubscribePayload struct {
	Table string `json:"table"`
}

// UnsubscribePayload (Client -> Server)
type UnsubscribePayload struct {
	ID string `json:"id"`
}

// EventPayload (Server -> Client)
type EventPayload struct {
	SubID   string          `json:"subId"`
	Subject string          `json:"subject"`
	Event   json.RawMessage `json:"event"`
}

// ErrorPayload
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// eventHeader is the part of a published event the hub routes on.
type eventHeader struct {
	Type  string `json:"type"`
	Owner string `json:"owner"`
	Table string `json:"table"`
}
