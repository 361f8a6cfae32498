package mqtt

import "strings"

// DefaultTopicPrefix is used when the configuration leaves the prefix empty.
const DefaultTopicPrefix = "shopgate"

// Topics builds topic names under a prefix.
type Topics struct {
	prefix string
}

// NewTopics returns builders rooted at prefix. Surrounding slashes are trimmed.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the root every topic is built under.
func (t Topics) Prefix() string {
	return t.prefix
}

// SystemStatus is the retained online/offline topic.
//
// Example: shopgate/system/status
func (t Topics) SystemStatus() string {
	return t.prefix + "/system/status"
}

// AuthEvent is the topic for one audit action.
//
// Example: shopgate/events/auth/login.failed
func (t Topics) AuthEvent(action string) string {
	return t.prefix + "/events/auth/" + action
}

// AllAuthEvents matches every audit action.
func (t Topics) AllAuthEvents() string {
	return t.prefix + "/events/auth/#"
}
