package history

import (
	"time"

	"github.com/LeonardoBeccarini/waitress_call/internal/model"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	Measurement = "station_update"

	KindUpdate = "update"
	KindReset  = "reset"
)

// UpdatePoint records one accepted channel update.
func UpdatePoint(id model.NodeID, ch model.Channel, on bool, count, rssi int, at time.Time) *write.Point {
	tags := map[string]string{
		"station_id": string(id),
		"channel":    ch.String(),
		"kind":       KindUpdate,
	}
	fields := map[string]interface{}{
		"on":    on,
		"count": int64(count),
		"rssi":  int64(rssi),
	}
	return influxdb2.NewPoint(Measurement, tags, fields, at)
}

// ResetPoint records a performed reset. Both channels end up off.
func ResetPoint(id model.NodeID, at time.Time) *write.Point {
	tags := map[string]string{
		"station_id": string(id),
		"channel":    "all",
		"kind":       KindReset,
	}
	return influxdb2.NewPoint(Measurement, tags, map[string]interface{}{"on": false}, at)
}
