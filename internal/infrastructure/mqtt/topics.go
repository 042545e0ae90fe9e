package mqtt

import "strings"

// TopicPrefix is the root of every Gray Logic topic.
const TopicPrefix = "graylogic"

// Topics provides builders for service-level topics. Bridge topics
// (state, command, ack, discovery, health) are built by the bridge
// packages themselves.
type Topics struct{}

// SystemStatus returns the retained online/offline status topic.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// Match reports whether topic matches filter, honouring the + (one level)
// and # (remaining levels) wildcards.
func Match(filter, topic string) bool {
	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")

	for i, level := range f {
		if level == "#" {
			return true
		}
		if i >= len(t) {
			return false
		}
		if level != "+" && level != t[i] {
			return false
		}
	}
	return len(f) == len(t)
}
