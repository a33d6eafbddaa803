package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Entry is one row of the station history.
type Entry struct {
	StationID string `json:"station_id"`
	Channel   string `json:"channel"`
	Kind      string `json:"kind"`
	On        bool   `json:"on"`
	Time      string `json:"time"`
}

type recentParams struct {
	Station   string
	Minutes   int
	Limit     int
	TimeoutMS int
}

func parseRecent(r *http.Request) recentParams {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if max > 0 && n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	return recentParams{
		Station:   strings.TrimSpace(q.Get("station")),
		Minutes:   get("minutes", 60, 1, 7*24*60),
		Limit:     get("limit", 50, 1, 500),
		TimeoutMS: get("timeout_ms", 2000, 200, 5000),
	}
}

func buildFlux(bucket string, p recentParams) string {
	station := ""
	if p.Station != "" {
		station = fmt.Sprintf("\n  |> filter(fn: (r) => r.station_id == %q)", p.Station)
	}
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q and r._field == "on")%s
  |> keep(columns: ["_time","_value","station_id","channel","kind"])
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, p.Minutes, Measurement, station, p.Limit)
}

// NewRecentHandler serves GET /history?station=ID&minutes=60&limit=50,
// newest first. A failed query answers an empty list with an X-Error header.
func NewRecentHandler(query api.QueryAPI, bucket string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := parseRecent(r)
		w.Header().Set("Content-Type", "application/json")

		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
		defer cancel()

		res, err := query.Query(ctx, buildFlux(bucket, p))
		if err != nil {
			w.Header().Set("X-Error", "influx-query-error")
			_, _ = w.Write([]byte("[]"))
			return
		}
		defer res.Close()

		out := make([]Entry, 0, p.Limit)
		for res.Next() {
			rec := res.Record()
			on, _ := rec.Value().(bool)
			out = append(out, Entry{
				StationID: stringValue(rec.ValueByKey("station_id")),
				Channel:   stringValue(rec.ValueByKey("channel")),
				Kind:      stringValue(rec.ValueByKey("kind")),
				On:        on,
				Time:      rec.Time().UTC().Format(time.RFC3339),
			})
		}
		if res.Err() != nil {
			w.Header().Set("X-Error", "influx-iter-error")
		}
		_ = json.NewEncoder(w).Encode(out)
	})
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}
