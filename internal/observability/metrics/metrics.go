package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "waitress_"

// Result labels.
const (
	ResultAccepted  = "accepted"
	ResultDebounced = "debounced"
	ResultRouting   = "routing_mismatch"
	ResultDecode    = "decode_error"
	ResultPerformed = "performed"
	ResultCooldown  = "cooldown"
	ResultIgnored   = "ignored"
)

var (
	registerOnce sync.Once

	eventsTotal     *prometheus.CounterVec
	resetsTotal     *prometheus.CounterVec
	reconnectsTotal *prometheus.CounterVec
	publishErrors   *prometheus.CounterVec
	channelState    *prometheus.GaugeVec
	busConnected    prometheus.Gauge
)

// Init registers the collectors with the default registry. Until it is
// called every helper below is a no-op.
func Init() {
	registerOnce.Do(func() {
		eventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_total",
				Help: "Inbound station events by outcome",
			},
			[]string{"result"},
		)
		resetsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "resets_total",
				Help: "Reset requests by source and outcome",
			},
			[]string{"source", "result"},
		)
		reconnectsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bus_reconnects_total",
				Help: "Bus reconnect attempts by result",
			},
			[]string{"result"},
		)
		publishErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "publish_errors_total",
				Help: "Failed bus publishes by topic kind",
			},
			[]string{"kind"},
		)
		channelState = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "channel_on",
				Help: "1 when the station channel is ON in the receiver view",
			},
			[]string{"station", "channel"},
		)
		busConnected = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "bus_connected",
				Help: "1 while the bus link is up",
			},
		)

		prometheus.MustRegister(
			eventsTotal,
			resetsTotal,
			reconnectsTotal,
			publishErrors,
			channelState,
			busConnected,
		)
	})
}

func ObserveEvent(result string) {
	if result == "" {
		result = "unknown"
	}
	if eventsTotal != nil {
		eventsTotal.WithLabelValues(result).Inc()
	}
}

func ObserveReset(source, result string) {
	if source == "" {
		source = "unknown"
	}
	if resetsTotal != nil {
		resetsTotal.WithLabelValues(source, result).Inc()
	}
}

func ObserveReconnect(ok bool) {
	result := "success"
	if !ok {
		result = "error"
	}
	if reconnectsTotal != nil {
		reconnectsTotal.WithLabelValues(result).Inc()
	}
}

func IncPublishError(kind string) {
	if publishErrors != nil {
		publishErrors.WithLabelValues(kind).Inc()
	}
}

func SetChannel(station, channel string, on bool) {
	if channelState == nil {
		return
	}
	v := 0.0
	if on {
		v = 1
	}
	channelState.WithLabelValues(station, channel).Set(v)
}

func SetConnected(up bool) {
	if busConnected == nil {
		return
	}
	if up {
		busConnected.Set(1)
	} else {
		busConnected.Set(0)
	}
}
