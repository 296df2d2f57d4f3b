package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/slate-cms/internal/infrastructure/logging"
)

// Handler is the message strategy plugged into a Controller. The
// controller owns transport and authentication; the handler owns
// everything after: application frames, subscription bookkeeping, and
// reactions to auth state changes.
type Handler interface {
	// OnMessage receives every decoded non-auth frame from an admitted
	// connection.
	OnMessage(client *Client, msg Message)

	// OnAuthSuccess fires after a connection gains accountability.
	OnAuthSuccess(client *Client)

	// OnAuthFailure fires after a rejected auth frame, before the
	// controller decides the connection's fate.
	OnAuthFailure(client *Client)

	// OnClose fires once per connection as it is torn down.
	OnClose(client *Client)
}

// NopHandler ignores everything. Useful for tests and for gateways
// that only push server-initiated events.
type NopHandler struct{}

func (NopHandler) OnMessage(*Client, Message) {}
func (NopHandler) OnAuthSuccess(*Client)      {}
func (NopHandler) OnAuthFailure(*Client)      {}
func (NopHandler) OnClose(*Client)            {}

// subscribePayload is the body of subscribe and unsubscribe frames.
type subscribePayload struct {
	Collection string `json:"collection"`
}

// CollectionHandler implements the content-subscription protocol:
// clients subscribe to collections by name and receive change events
// published for those collections. Authentication loss clears nothing
// here — subscriptions survive re-auth windows; the controller stops
// delivery by closing the connection if re-auth never happens.
type CollectionHandler struct {
	logger *logging.Logger
}

// NewCollectionHandler creates the standard gateway message handler.
func NewCollectionHandler(logger *logging.Logger) *CollectionHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CollectionHandler{
		logger: logger.With("component", "gateway_handler"),
	}
}

func (h *CollectionHandler) OnMessage(client *Client, msg Message) {
	switch msg.Type {
	case TypePing:
		client.Send(NewPongFrame(msg.UID))

	case TypeSubscribe:
		collection, ok := h.decodeCollection(client, msg)
		if !ok {
			return
		}
		client.Subscribe(collection)
		client.Send(subscriptionAck("subscribed", collection, msg.UID))
		h.logger.Debug("subscribed", "client", client.ID(), "collection", collection)

	case TypeUnsubscribe:
		collection, ok := h.decodeCollection(client, msg)
		if !ok {
			return
		}
		client.Unsubscribe(collection)
		client.Send(subscriptionAck("unsubscribed", collection, msg.UID))
		h.logger.Debug("unsubscribed", "client", client.ID(), "collection", collection)

	default:
		client.SendError(TypeError, CodeInvalidPayload,
			fmt.Sprintf("unknown message type %q", msg.Type), msg.UID)
	}
}

func (h *CollectionHandler) OnAuthSuccess(client *Client) {
	// Subscriptions made while anonymous carry over
}

func (h *CollectionHandler) OnAuthFailure(client *Client) {}

func (h *CollectionHandler) OnClose(client *Client) {}

func (h *CollectionHandler) decodeCollection(client *Client, msg Message) (string, bool) {
	var payload subscribePayload
	if err := json.Unmarshal(msg.Raw, &payload); err != nil || payload.Collection == "" {
		client.SendError(TypeError, CodeInvalidPayload, "missing collection", msg.UID)
		return "", false
	}
	return payload.Collection, true
}

// subscriptionAck serialises the acknowledgement for a subscribe or
// unsubscribe frame.
func subscriptionAck(status, collection string, uid json.RawMessage) []byte {
	data, err := json.Marshal(struct {
		Type       string          `json:"type"`
		Status     string          `json:"status"`
		Collection string          `json:"collection"`
		UID        json.RawMessage `json:"uid,omitempty"`
	}{Type: TypeSubscription, Status: status, Collection: collection, UID: uid})
	if err != nil {
		return nil
	}
	return data
}

// NewEventFrame serialises a content change event for delivery to
// subscribers of a collection.
func NewEventFrame(action, collection string, payload json.RawMessage) []byte {
	data, err := json.Marshal(struct {
		Type       string          `json:"type"`
		Action     string          `json:"action"`
		Collection string          `json:"collection"`
		Payload    json.RawMessage `json:"payload,omitempty"`
	}{Type: TypeSubscription, Action: action, Collection: collection, Payload: payload})
	if err != nil {
		return nil
	}
	return data
}
