package camera

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	openAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jetcam",
		Subsystem: "camera",
		Name:      "open_total",
		Help:      "Camera open attempts by source kind and result",
	}, []string{"kind", "result"})

	framesRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jetcam",
		Subsystem: "camera",
		Name:      "frames_total",
		Help:      "Frame reads by source kind and result",
	}, []string{"kind", "result"})

	openSources = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "jetcam",
		Subsystem: "camera",
		Name:      "open",
		Help:      "Number of currently open camera sources",
	}, []string{"kind"})
)

func recordOpen(kind SourceKind, err error) {
	result := "ok"
	if err != nil {
		result = KindOf(err).String()
	}
	openAttempts.WithLabelValues(string(kind), result).Inc()
	if err == nil {
		openSources.WithLabelValues(string(kind)).Inc()
	}
}

func recordRelease(kind SourceKind) {
	openSources.WithLabelValues(string(kind)).Dec()
}

func recordRead(kind SourceKind, ok bool) {
	result := "ok"
	if !ok {
		result = "fail"
	}
	framesRead.WithLabelValues(string(kind), result).Inc()
}
