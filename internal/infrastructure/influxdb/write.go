package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/templegate/capacity-core/internal/capacity"
)

// RecordSnapshot writes an evaluated capacity snapshot as time-series
// points: one site-level point plus one per zone and per slot. Writes are
// non-blocking; data is batched and sent asynchronously.
//
// Implements the engine's snapshot recorder, so evaluation never stalls
// on the analytics sink.
func (c *Client) RecordSnapshot(state *capacity.State) {
	if state == nil || !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"site_capacity",
		map[string]string{
			"site_id": state.SiteID,
		},
		map[string]interface{}{
			"total_capacity":     state.TotalCapacity,
			"current_occupancy":  state.CurrentOccupancy,
			"available_capacity": state.AvailableCapacity,
			"utilisation_rate":   state.UtilisationRate,
			"active_rules":       len(state.ActiveRules),
			"manual_overrides":   len(state.ManualOverrides),
		},
		state.Timestamp,
	))

	for _, zone := range state.Zones {
		if zone == nil {
			continue
		}
		c.writeAPI.WritePoint(write.NewPoint(
			"zone_capacity",
			map[string]string{
				"site_id": state.SiteID,
				"zone_id": zone.ZoneID,
			},
			map[string]interface{}{
				"base_capacity":      zone.BaseCapacity,
				"adjusted_capacity":  zone.AdjustedCapacity,
				"current_occupancy":  zone.CurrentOccupancy,
				"available_capacity": zone.AvailableCapacity,
				"utilisation_rate":   zone.UtilisationRate,
			},
			state.Timestamp,
		))
	}

	for _, slot := range state.Slots {
		if slot == nil {
			continue
		}
		c.writeAPI.WritePoint(write.NewPoint(
			"slot_capacity",
			map[string]string{
				"site_id": state.SiteID,
				"date":    slot.Date,
				"slot":    slot.Slot,
			},
			map[string]interface{}{
				"base_capacity":      slot.BaseCapacity,
				"adjusted_capacity":  slot.AdjustedCapacity,
				"booked_capacity":    slot.BookedCapacity,
				"available_capacity": slot.AvailableCapacity,
				"waiting_list":       slot.WaitingList,
				"bookable":           slot.Bookable,
			},
			state.Timestamp,
		))
	}
}

// RecordEvaluationMetric records how long a fold took and how many rules
// it applied. Useful for watching rule-set growth. Implements the other
// half of the engine's recorder.
func (c *Client) RecordEvaluationMetric(siteID string, durationMS int, rulesApplied int) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"evaluation",
		map[string]string{
			"site_id": siteID,
		},
		map[string]interface{}{
			"duration_ms":   durationMS,
			"rules_applied": rulesApplied,
		},
		time.Now(),
	))
}
