package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Métricas del cliente de pruebas. Viven en un paquete aparte para que invoke,
// admin, mailbox y batch puedan reportar sin importarse entre sí.

var (
	Calls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "iamprobe_calls_total",
		Help: "Llamadas ejecutadas por el invoker, por resultado (ok|error|timeout|canceled|panic)",
	}, []string{"outcome"})

	CallLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "iamprobe_call_latency_ms",
		Help:    "Latencia de las llamadas completadas en milisegundos",
		Buckets: prometheus.ExponentialBuckets(5, 2, 12),
	})

	CredentialRefreshes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "iamprobe_credential_refreshes_total",
		Help: "Re-logins del usuario administrador tras un 401",
	})

	MailboxCycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "iamprobe_mailbox_cycles_total",
		Help: "Ciclos de búsqueda en el buzón, por resultado (found|empty)",
	}, []string{"result"})

	Batches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "iamprobe_batches_total",
		Help: "Batches enviados por tipo de operación y resultado",
	}, []string{"op", "outcome"})

	CleanupFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "iamprobe_cleanup_failures_total",
		Help: "Batches de cleanup que fallaron (se ignoran y se continúa)",
	}, []string{"kind"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{Calls, CallLatency, CredentialRefreshes, MailboxCycles, Batches, CleanupFailures}
}

// Register registers the probe metrics on the given registry (or default if nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// Handler expone las métricas registradas en g (o el default si nil).
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
