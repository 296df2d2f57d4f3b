package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the Slate event bus.
//
// Content mutations flow on: slate/content/{action}/{collection}
// where action is one of create, update, delete. The realtime gateway
// subscribes to the wildcard form and fans events out to websocket
// subscribers; other services (search indexers, cache invalidators)
// consume the same stream.
const (
	// TopicPrefix is the base for all Slate topics.
	TopicPrefix = "slate"

	// TopicPrefixContent is the base for content mutation events.
	TopicPrefixContent = "slate/content"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "slate/system"
)

// Content mutation actions carried in event topics.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Topics provides builders for Slate MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.ContentEvent(mqtt.ActionUpdate, "articles")
//	// Returns: "slate/content/update/articles"
type Topics struct{}

// ContentEvent returns the topic for a content mutation on a collection.
//
// Example: slate/content/update/articles
func (Topics) ContentEvent(action, collection string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixContent, action, collection)
}

// CollectionEvents returns a pattern matching every mutation on one collection.
//
// Pattern: slate/content/+/articles
func (Topics) CollectionEvents(collection string) string {
	return fmt.Sprintf("%s/+/%s", TopicPrefixContent, collection)
}

// AllContentEvents returns a pattern matching all content mutations.
//
// Pattern: slate/content/+/+
func (Topics) AllContentEvents() string {
	return TopicPrefixContent + "/+/+"
}

// SystemStatus returns the instance status topic (online/offline, LWT).
//
// Example: slate/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// SystemShutdown returns the shutdown signal topic.
//
// Example: slate/system/shutdown
func (Topics) SystemShutdown() string {
	return TopicPrefixSystem + "/shutdown"
}

// AllTopics returns a pattern matching all Slate topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: slate/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// ParseContentTopic splits a content event topic into its action and
// collection. Topics that are not content events return an error.
func ParseContentTopic(topic string) (action, collection string, err error) {
	rest, ok := strings.CutPrefix(topic, TopicPrefixContent+"/")
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not a content topic", ErrInvalidTopic, topic)
	}

	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: malformed content topic %q", ErrInvalidTopic, topic)
	}

	switch parts[0] {
	case ActionCreate, ActionUpdate, ActionDelete:
	default:
		return "", "", fmt.Errorf("%w: unknown content action %q", ErrInvalidTopic, parts[0])
	}

	return parts[0], parts[1], nil
}
