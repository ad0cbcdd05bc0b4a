package mqtt

import "fmt"

// Topic prefixes for the Templegate MQTT hierarchy.
//
// Inbound feeds (occupancy counters, weather stations) publish under the
// flat scheme: templegate/{category}/{site_id}. Core publishes evaluated
// state under templegate/core.
const (
	// TopicPrefix is the base for all Templegate topics.
	TopicPrefix = "templegate"

	// TopicPrefixCore is the base for all core-published topics.
	TopicPrefixCore = "templegate/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "templegate/system"
)

// Topics provides builders for Templegate MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.CapacityState("temple-001")
//	// Returns: "templegate/core/capacity/temple-001/state"
type Topics struct{}

// =============================================================================
// Inbound Feed Topics
// =============================================================================

// Occupancy returns the topic occupancy counters publish headcounts on.
//
// Example: templegate/occupancy/temple-001
func (Topics) Occupancy(siteID string) string {
	return fmt.Sprintf("%s/occupancy/%s", TopicPrefix, siteID)
}

// Weather returns the topic weather stations publish reports on.
//
// Example: templegate/weather/temple-001
func (Topics) Weather(siteID string) string {
	return fmt.Sprintf("%s/weather/%s", TopicPrefix, siteID)
}

// =============================================================================
// Core Topics
// =============================================================================

// CapacityState returns the canonical evaluated-state topic for a site.
// Published retained so new subscribers immediately see the current state.
//
// Example: templegate/core/capacity/temple-001/state
func (Topics) CapacityState(siteID string) string {
	return fmt.Sprintf("%s/capacity/%s/state", TopicPrefixCore, siteID)
}

// CapacityStatus returns the compact crowd-status topic for a site.
// Published retained alongside the full state.
//
// Example: templegate/core/capacity/temple-001/status
func (Topics) CapacityStatus(siteID string) string {
	return fmt.Sprintf("%s/capacity/%s/status", TopicPrefixCore, siteID)
}

// CoreEvent returns the topic for system events.
//
// Example: templegate/core/event/override_applied
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic.
//
// Example: templegate/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllOccupancy returns a pattern matching occupancy feeds for every site.
//
// Pattern: templegate/occupancy/+
func (Topics) AllOccupancy() string {
	return fmt.Sprintf("%s/occupancy/+", TopicPrefix)
}

// AllWeather returns a pattern matching weather feeds for every site.
//
// Pattern: templegate/weather/+
func (Topics) AllWeather() string {
	return fmt.Sprintf("%s/weather/+", TopicPrefix)
}

// AllCapacityStates returns a pattern matching every site's evaluated state.
//
// Pattern: templegate/core/capacity/+/state
func (Topics) AllCapacityStates() string {
	return fmt.Sprintf("%s/capacity/+/state", TopicPrefixCore)
}

// AllTopics returns a pattern matching all Templegate topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: templegate/#
func (Topics) AllTopics() string {
	return "templegate/#"
}
