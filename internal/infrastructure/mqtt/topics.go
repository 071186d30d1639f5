package mqtt

import "fmt"

// Topic prefixes. Every topic the service publishes lives under
// TopicPrefix.
const (
	TopicPrefix       = "powertag"
	TopicPrefixSystem = "powertag/system"
)

// Topics provides builders for PowerTag MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.State("Panel-A")  // powertag/state/Panel-A
//	topics.Alert("Panel-A")  // powertag/alert/Panel-A
type Topics struct{}

// State returns the retained topic carrying a tag's latest row.
//
// Example: powertag/state/Panel-A
func (Topics) State(tag string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, topicLevel(tag))
}

// Alert returns the topic alert events for a tag are published to.
//
// Example: powertag/alert/Panel-A
func (Topics) Alert(tag string) string {
	return fmt.Sprintf("%s/alert/%s", TopicPrefix, topicLevel(tag))
}

// Event returns the topic for service-level events (startup, shutdown,
// error).
//
// Example: powertag/event/startup
func (Topics) Event(kind string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, topicLevel(kind))
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: powertag/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllStates matches every tag's state topic.
func (Topics) AllStates() string {
	return TopicPrefix + "/state/+"
}

// AllAlerts matches every tag's alert topic.
func (Topics) AllAlerts() string {
	return TopicPrefix + "/alert/+"
}

// topicLevel makes a name safe to use as a single topic level: the level
// separator and wildcards are replaced with underscores.
func topicLevel(name string) string {
	out := []byte(name)
	for i, b := range out {
		switch b {
		case '/', '+', '#':
			out[i] = '_'
		}
	}
	if len(out) == 0 {
		return "_"
	}
	return string(out)
}
