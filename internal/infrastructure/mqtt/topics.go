package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes. Everything the relay publishes or listens to lives
// under TopicPrefix.
const (
	TopicPrefix        = "remorelay"
	TopicPrefixSystem  = TopicPrefix + "/system"
	TopicPrefixCommand = TopicPrefix + "/command"
	TopicPrefixEvent   = TopicPrefix + "/event"
)

// Topics builds the relay's MQTT topic names.
//
//	topics := mqtt.Topics{}
//	topics.SendCommand("tv-power") // remorelay/command/send/tv-power
type Topics struct{}

// SystemStatus is the retained online/offline status topic.
//
// Example: remorelay/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// SendCommand is the topic that asks the relay to send a stored signal.
//
// Example: remorelay/command/send/tv-power
func (Topics) SendCommand(name string) string {
	return fmt.Sprintf("%s/send/%s", TopicPrefixCommand, name)
}

// AllSendCommands matches every SendCommand topic.
//
// Pattern: remorelay/command/send/+
func (Topics) AllSendCommands() string {
	return TopicPrefixCommand + "/send/+"
}

// SentEvent carries the outcome of a send attempt.
//
// Example: remorelay/event/sent/tv-power
func (Topics) SentEvent(name string) string {
	return fmt.Sprintf("%s/sent/%s", TopicPrefixEvent, name)
}

// SignalNameFromTopic extracts the signal name from a SendCommand or
// SentEvent topic. It returns false for any other topic or an empty name.
func SignalNameFromTopic(topic string) (string, bool) {
	for _, prefix := range []string{TopicPrefixCommand + "/send/", TopicPrefixEvent + "/sent/"} {
		if name, ok := strings.CutPrefix(topic, prefix); ok {
			if name == "" || strings.Contains(name, "/") {
				return "", false
			}
			return name, true
		}
	}
	return "", false
}
