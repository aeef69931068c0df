package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	OnlineDrivers prometheus.Gauge

	SamplesAccepted prometheus.Counter
	SamplesDropped  *prometheus.CounterVec // reason label: throttled|stale
	PersistWrites   prometheus.Counter
	PersistErrs     prometheus.Counter

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	PathsComputed prometheus.Counter
	PathFallbacks prometheus.Counter

	DisplayThrottle prometheus.Gauge // seconds
	PersistThrottle prometheus.Gauge // seconds
}

func NewCollector(displayThrottle, persistThrottle time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		OnlineDrivers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_online_drivers",
			Help: "Number of drivers with a running sampling loop.",
		}),
		SamplesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_samples_accepted_total",
			Help: "Raw position samples that passed a throttle gate.",
		}),
		SamplesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_samples_dropped_total",
			Help: "Raw position samples suppressed before taking effect.",
		}, []string{"reason"}),
		PersistWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_position_writes_total",
			Help: "Durable live-position writes.",
		}),
		PersistErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_position_write_errors_total",
			Help: "Failed durable live-position writes.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		PathsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_paths_computed_total",
			Help: "Drivable paths obtained from the directions service.",
		}),
		PathFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_path_fallbacks_total",
			Help: "Paths rendered as a straight line after a directions failure.",
		}),
		DisplayThrottle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_display_throttle_seconds",
			Help: "Configured display throttle interval.",
		}),
		PersistThrottle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_persist_throttle_seconds",
			Help: "Configured persistence throttle interval.",
		}),
	}

	// Register
	reg.MustRegister(
		c.OnlineDrivers,
		c.SamplesAccepted, c.SamplesDropped, c.PersistWrites, c.PersistErrs,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.PathsComputed, c.PathFallbacks,
		c.DisplayThrottle, c.PersistThrottle,
	)

	c.DisplayThrottle.Set(displayThrottle.Seconds())
	c.PersistThrottle.Set(persistThrottle.Seconds())

	return c
}

// live.Metrics

func (c *Collector) SampleAccepted()             { c.SamplesAccepted.Inc() }
func (c *Collector) SampleDropped(reason string) { c.SamplesDropped.WithLabelValues(reason).Inc() }
func (c *Collector) PersistOK()                  { c.PersistWrites.Inc() }
func (c *Collector) PersistErr()                 { c.PersistErrs.Inc() }
func (c *Collector) SetOnlineDrivers(n int)      { c.OnlineDrivers.Set(float64(n)) }

// publisher.Metrics

func (c *Collector) PublishedInc()                  { c.NATSPublished.Inc() }
func (c *Collector) PublishErrInc()                 { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }
func (c *Collector) SetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

// render.Metrics

func (c *Collector) PathComputed() { c.PathsComputed.Inc() }
func (c *Collector) PathFallback() { c.PathFallbacks.Inc() }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
