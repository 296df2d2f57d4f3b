package realtime

import (
	"encoding/json"
	"fmt"
)

// Frame types understood by the gateway core. Anything else is opaque
// to the controller and handed to the Handler strategy untouched.
const (
	TypeAuth         = "auth"
	TypePing         = "ping"
	TypePong         = "pong"
	TypeSubscribe    = "subscribe"
	TypeUnsubscribe  = "unsubscribe"
	TypeSubscription = "subscription"
	TypeError        = "error"
)

// Message is a decoded inbound frame envelope. UID is the
// client-supplied correlation id, kept as raw JSON so it is echoed back
// byte-for-byte whatever its type. Raw holds the full frame for
// handlers that need fields beyond the envelope.
type Message struct {
	Type string          `json:"type"`
	UID  json.RawMessage `json:"uid,omitempty"`
	Raw  json.RawMessage `json:"-"`
}

// AuthPayload is the body of an auth frame. Exactly one credential
// shape is expected: an access token, an email/password pair, or a
// refresh token.
type AuthPayload struct {
	Type         string          `json:"type"`
	UID          json.RawMessage `json:"uid,omitempty"`
	AccessToken  string          `json:"access_token,omitempty"`
	Email        string          `json:"email,omitempty"`
	Password     string          `json:"password,omitempty"`
	RefreshToken string          `json:"refresh_token,omitempty"`
}

// DecodeMessage parses a raw text frame into a Message envelope.
// Unparseable input or a missing type yields ErrInvalidMessage — never
// a raw decoding error surfaced to the transport.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	}
	msg.Raw = data
	return msg, nil
}

// DecodeAuthPayload parses the credential fields out of an auth frame.
func DecodeAuthPayload(data []byte) (AuthPayload, error) {
	var payload AuthPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return AuthPayload{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if payload.AccessToken == "" && payload.Email == "" && payload.RefreshToken == "" {
		return AuthPayload{}, fmt.Errorf("%w: auth frame carries no credentials", ErrInvalidMessage)
	}
	return payload, nil
}

// frameError is the wire shape of the error object inside error frames.
type frameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorFrame is an outgoing structured error:
//
//	{"type":"auth","status":"error","error":{"code":"AUTH_FAILED","message":"..."},"uid":...}
type errorFrame struct {
	Type   string          `json:"type"`
	Status string          `json:"status"`
	Error  frameError      `json:"error"`
	UID    json.RawMessage `json:"uid,omitempty"`
}

// successFrame is an outgoing acknowledgement:
//
//	{"type":"auth","status":"ok","refresh_token":"...","uid":...}
type successFrame struct {
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	UID          json.RawMessage `json:"uid,omitempty"`
}

// NewErrorFrame serialises a structured error frame, echoing the
// client's correlation id when present.
func NewErrorFrame(frameType, code, message string, uid json.RawMessage) []byte {
	data, err := json.Marshal(errorFrame{
		Type:   frameType,
		Status: "error",
		Error:  frameError{Code: code, Message: message},
		UID:    uid,
	})
	if err != nil {
		// The frame shape contains nothing unmarshalable; this is unreachable
		// short of memory corruption, but a dropped frame beats a panic.
		return nil
	}
	return data
}

// NewAuthSuccessFrame serialises the acknowledgement for a successful
// auth exchange, carrying the rotated refresh token when one exists.
func NewAuthSuccessFrame(refreshToken string, uid json.RawMessage) []byte {
	data, err := json.Marshal(successFrame{
		Type:         TypeAuth,
		Status:       "ok",
		RefreshToken: refreshToken,
		UID:          uid,
	})
	if err != nil {
		return nil
	}
	return data
}

// NewPongFrame serialises the reply to a ping, echoing the uid.
func NewPongFrame(uid json.RawMessage) []byte {
	data, err := json.Marshal(struct {
		Type string          `json:"type"`
		UID  json.RawMessage `json:"uid,omitempty"`
	}{Type: TypePong, UID: uid})
	if err != nil {
		return nil
	}
	return data
}
