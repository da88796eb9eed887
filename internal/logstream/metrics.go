package logstream

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	notifications prometheus.Counter
	traces        prometheus.Counter
	duplicates    prometheus.Counter
	reconnects    prometheus.Counter
	sinkFailures  prometheus.Counter
	programErrors *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mango",
			Subsystem: "logstream",
			Name:      name,
			Help:      help,
		})
	}
	m := &Metrics{
		notifications: counter("notifications_total", "logsNotification messages received."),
		traces:        counter("traces_total", "Instruction traces reconstructed."),
		duplicates:    counter("duplicates_total", "Notifications dropped as already seen."),
		reconnects:    counter("reconnects_total", "Websocket reconnect attempts."),
		sinkFailures:  counter("sink_failures_total", "Trace batches the sink rejected."),
		programErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mango",
			Subsystem: "logstream",
			Name:      "program_errors_total",
			Help:      "Failed transactions by mapped program error.",
		}, []string{"name"}),
	}
	if reg != nil {
		reg.MustRegister(m.notifications, m.traces, m.duplicates, m.reconnects, m.sinkFailures, m.programErrors)
	}
	return m
}
