package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog"
)

const (
	TelemetryReported   = "reported"
	TelemetryOutOfRange = "out_of_range"
	TelemetrySkipped    = "skipped"
	TelemetryDropped    = "dropped"
)

var (
	// TwinAcks counts the acknowledgments sent per desired property.
	TwinAcks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devtwin",
			Name:      "twin_acks_total",
			Help:      "Acknowledgments of desired property updates by verdict.",
		},
		[]string{"property", "verdict"},
	)

	// Telemetry counts the telemetry ticks by result.
	Telemetry = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devtwin",
			Name:      "telemetry_total",
			Help:      "Telemetry ticks by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(TwinAcks, Telemetry)
}

func ObserveAck(property, verdict string) {
	TwinAcks.WithLabelValues(property, verdict).Inc()
}

func ObserveTelemetry(result string) {
	Telemetry.WithLabelValues(result).Inc()
}

// Handler serve the registered metrics.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve blocks serving /metrics on addr.
func Serve(addr string) error {
	klog.Infof("serve metrics on %s", addr)
	return http.ListenAndServe(addr, Handler())
}
