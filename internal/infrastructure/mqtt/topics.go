package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "machine"

// Topics builds control bus topic strings under a configured prefix.
// Using these helpers ensures consistent topic naming across the codebase.
//
// Point topics follow the scheme: {prefix}/{category}/{hwtype}/{device}/{point}
//
//	topics := mqtt.NewTopics("machine")
//	stateTopic := topics.PointState("magnet", "QUAD-01", "current")
//	// Returns: "machine/state/magnet/QUAD-01/current"
type Topics struct {
	prefix string
}

// NewTopics returns a Topics builder for the given prefix.
// An empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the configured topic prefix.
func (t Topics) Prefix() string {
	return t.prefix
}

// PointState returns the topic for readback value updates from hardware.
//
// Example: machine/state/magnet/QUAD-01/current
func (t Topics) PointState(hwtype, device, point string) string {
	return fmt.Sprintf("%s/state/%s/%s/%s", t.prefix, hwtype, device, point)
}

// PointSet returns the topic for setpoint commands toward hardware.
//
// Example: machine/set/magnet/QUAD-01/current_sp
func (t Topics) PointSet(hwtype, device, point string) string {
	return fmt.Sprintf("%s/set/%s/%s/%s", t.prefix, hwtype, device, point)
}

// SystemStatus returns the system status topic.
//
// Example: machine/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix)
}

// SystemShutdown returns the shutdown signal topic.
//
// Example: machine/system/shutdown
func (t Topics) SystemShutdown() string {
	return fmt.Sprintf("%s/system/shutdown", t.prefix)
}

// AllPointStates returns a pattern matching every point state update.
//
// Pattern: machine/state/+/+/+
func (t Topics) AllPointStates() string {
	return fmt.Sprintf("%s/state/+/+/+", t.prefix)
}

// DevicePointStates returns a pattern matching all point states for one device.
//
// Pattern: machine/state/magnet/QUAD-01/+
func (t Topics) DevicePointStates(hwtype, device string) string {
	return fmt.Sprintf("%s/state/%s/%s/+", t.prefix, hwtype, device)
}

// AllTopics returns a pattern matching every control bus topic.
// Use with caution - this receives ALL traffic.
func (t Topics) AllTopics() string {
	return t.prefix + "/#"
}

// ParsePointTopic extracts the hardware type, device and point names from a
// point state or setpoint topic. Returns ok=false for topics that do not
// match the point scheme.
func (t Topics) ParsePointTopic(topic string) (hwtype, device, point string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != t.prefix {
		return "", "", "", false
	}
	if parts[1] != "state" && parts[1] != "set" {
		return "", "", "", false
	}
	return parts[2], parts[3], parts[4], true
}
