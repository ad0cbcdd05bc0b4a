package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/templegate/capacity-core/internal/capacity"
)

// feedHandlerTimeout bounds the work triggered by a single feed message.
const feedHandlerTimeout = 10 * time.Second

// OccupancyMessage is the payload occupancy counters publish on
// templegate/occupancy/{site_id}.
//
// SiteOccupancy may be omitted by counters that only report per-zone
// figures; the site total is then derived by summing the zones.
type OccupancyMessage struct {
	SiteOccupancy *int           `json:"site_occupancy,omitempty"`
	Zones         map[string]int `json:"zones,omitempty"`
	ObservedAt    time.Time      `json:"observed_at"`
}

// CapacityFeed connects the broker to the capacity engine. Inbound
// occupancy and weather messages update the store and trigger
// re-evaluation; evaluated state flows back out retained on the
// site's state topic, alongside a compact crowd status derived from
// the configured utilisation thresholds.
type CapacityFeed struct {
	client *Client
	siteID string
	qos    byte
	store  *capacity.Store
	engine *capacity.Engine

	warningThreshold  float64
	criticalThreshold float64
}

// NewCapacityFeed creates a feed for one site. Warning and critical are
// utilisation percentages (0-100) for the published crowd status.
func NewCapacityFeed(client *Client, siteID string, qos byte, store *capacity.Store, warning, critical float64) *CapacityFeed {
	return &CapacityFeed{
		client:            client,
		siteID:            siteID,
		qos:               qos,
		store:             store,
		warningThreshold:  warning,
		criticalThreshold: critical,
	}
}

// SetEngine wires the engine for weather report handling. Called after
// both the feed and the engine are created, since the engine takes the
// feed as its state publisher.
func (f *CapacityFeed) SetEngine(engine *capacity.Engine) {
	f.engine = engine
}

// Start subscribes to the site's occupancy and weather feeds.
// Subscriptions survive broker reconnects via the client's tracking.
func (f *CapacityFeed) Start() error {
	topics := Topics{}

	if err := f.client.Subscribe(topics.Occupancy(f.siteID), f.qos, f.handleOccupancy); err != nil {
		return fmt.Errorf("subscribing to occupancy feed: %w", err)
	}
	if err := f.client.Subscribe(topics.Weather(f.siteID), f.qos, f.handleWeather); err != nil {
		return fmt.Errorf("subscribing to weather feed: %w", err)
	}
	return nil
}

// statusMessage is the compact crowd status published for display boards
// that only need a traffic-light view.
type statusMessage struct {
	Status          string    `json:"status"` // normal, warning, critical
	UtilisationRate float64   `json:"utilisation_rate"`
	Available       int       `json:"available_capacity"`
	Timestamp       time.Time `json:"timestamp"`
}

// PublishState publishes an evaluated snapshot retained on the site's
// state topic, plus the derived crowd status. Implements the engine's
// state publisher.
func (f *CapacityFeed) PublishState(state *capacity.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}
	if err := f.client.Publish(Topics{}.CapacityState(f.siteID), payload, f.qos, true); err != nil {
		return err
	}

	status := "normal"
	switch {
	case f.criticalThreshold > 0 && state.UtilisationRate >= f.criticalThreshold:
		status = "critical"
	case f.warningThreshold > 0 && state.UtilisationRate >= f.warningThreshold:
		status = "warning"
	}
	statusPayload, err := json.Marshal(statusMessage{
		Status:          status,
		UtilisationRate: state.UtilisationRate,
		Available:       state.AvailableCapacity,
		Timestamp:       state.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshalling status: %w", err)
	}
	return f.client.Publish(Topics{}.CapacityStatus(f.siteID), statusPayload, f.qos, true)
}

// handleOccupancy processes a headcount update from the gate counters.
func (f *CapacityFeed) handleOccupancy(topic string, payload []byte) error {
	var msg OccupancyMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("parsing occupancy message: %w", err)
	}

	site := 0
	if msg.SiteOccupancy != nil {
		site = *msg.SiteOccupancy
	} else {
		for _, n := range msg.Zones {
			site += n
		}
	}

	f.store.SetOccupancy(site, msg.Zones)
	return nil
}

// handleWeather processes a weather station report. Matching weather
// rules materialise capacity rules inside the engine.
func (f *CapacityFeed) handleWeather(topic string, payload []byte) error {
	if f.engine == nil {
		return nil
	}

	var report capacity.WeatherReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return fmt.Errorf("parsing weather report: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), feedHandlerTimeout)
	defer cancel()

	if err := f.engine.HandleWeatherReport(ctx, report); err != nil {
		return fmt.Errorf("handling weather report: %w", err)
	}
	return nil
}
