// Package metrics collects and exposes Prometheus metrics for the
// notification and realtime delivery path.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the interface consumed by services and the socket layer
type Recorder interface {
	NotificationCreated(notifType string)
	PushDelivered(event string, channels int)
	ChannelOpened()
	ChannelClosed()
}

// Collector implements Recorder backed by Prometheus
type Collector struct {
	registry             *prometheus.Registry
	notificationsCreated *prometheus.CounterVec
	pushesDelivered      *prometheus.CounterVec
	liveChannels         prometheus.Gauge
}

// NewCollector creates a Collector and registers its metrics
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		notificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "connect_notifications_created_total",
			Help: "Number of notifications persisted, by type",
		}, []string{"type"}),
		pushesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "connect_pushes_delivered_total",
			Help: "Number of live channels reached by push events, by event",
		}, []string{"event"}),
		liveChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "connect_live_channels",
			Help: "Number of currently connected realtime channels",
		}),
	}
	c.registry.MustRegister(c.notificationsCreated, c.pushesDelivered, c.liveChannels)
	return c
}

func (c *Collector) NotificationCreated(notifType string) {
	c.notificationsCreated.WithLabelValues(notifType).Inc()
}

func (c *Collector) PushDelivered(event string, channels int) {
	c.pushesDelivered.WithLabelValues(event).Add(float64(channels))
}

func (c *Collector) ChannelOpened() {
	c.liveChannels.Inc()
}

func (c *Collector) ChannelClosed() {
	c.liveChannels.Dec()
}

// Handler returns the /metrics HTTP handler
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Nop is a Recorder that records nothing, for tests
type Nop struct{}

func (Nop) NotificationCreated(string)   {}
func (Nop) PushDelivered(string, int)    {}
func (Nop) ChannelOpened()               {}
func (Nop) ChannelClosed()               {}
