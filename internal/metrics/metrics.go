package metrics

import (
	"errors"
	"net/http"
	"time"

	"departure-board/internal/departures"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Collector struct {
	reg *prometheus.Registry

	Vehicles   prometheus.Gauge
	Timetables prometheus.Gauge
	Boards     prometheus.Gauge

	ScheduleDuration   *prometheus.HistogramVec // mode label
	ScheduleCandidates *prometheus.HistogramVec // mode label
	ScheduleRecords    *prometheus.HistogramVec // mode label
	SourceErrors       prometheus.Counter
	IterationCaps      prometheus.Counter

	Refreshes       *prometheus.CounterVec // result label: ok|error
	RefreshDuration prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	DBSwitches *prometheus.CounterVec // reason label: update|ping_failure

	PublishInterval prometheus.Gauge // seconds
	RefreshInterval prometheus.Gauge // seconds
	HorizonMinutes  prometheus.Gauge
}

func NewCollector(publishInterval, refreshInterval, horizon time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Vehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boards_snapshot_vehicles",
			Help: "Number of vehicles in the latest snapshot.",
		}),
		Timetables: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boards_timetables",
			Help: "Number of trips loaded for the current service day.",
		}),
		Boards: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boards_configured",
			Help: "Number of configured boards.",
		}),
		ScheduleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "boards_schedule_duration_seconds",
			Help:    "Duration of one departure or arrival computation.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 15),
		}, []string{"mode"}),
		ScheduleCandidates: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "boards_schedule_candidates",
			Help:    "Vehicles seeded per computation.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"mode"}),
		ScheduleRecords: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "boards_schedule_records",
			Help:    "Records returned per computation.",
			Buckets: prometheus.LinearBuckets(0, 5, 10),
		}, []string{"mode"}),
		SourceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boards_source_errors_total",
			Help: "Vehicle enumeration failures.",
		}),
		IterationCaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boards_iteration_cap_total",
			Help: "Computations stopped by the iteration cap.",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boards_timetable_refreshes_total",
			Help: "Timetable reloads by result.",
		}, []string{"result"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "boards_timetable_refresh_duration_seconds",
			Help:    "Duration of timetable reloads.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boards_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boards_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boards_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "boards_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		DBSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boards_db_switches_total",
			Help: "Number of database switches.",
		}, []string{"reason"}),
		PublishInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boards_publish_interval_seconds",
			Help: "Publish interval in seconds.",
		}),
		RefreshInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boards_refresh_interval_seconds",
			Help: "Timetable refresh interval in seconds.",
		}),
		HorizonMinutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boards_horizon_minutes",
			Help: "Scheduling horizon in minutes.",
		}),
	}

	reg.MustRegister(
		c.Vehicles, c.Timetables, c.Boards,
		c.ScheduleDuration, c.ScheduleCandidates, c.ScheduleRecords,
		c.SourceErrors, c.IterationCaps,
		c.Refreshes, c.RefreshDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.DBSwitches,
		c.PublishInterval, c.RefreshInterval, c.HorizonMinutes,
	)

	c.PublishInterval.Set(publishInterval.Seconds())
	c.RefreshInterval.Set(refreshInterval.Seconds())
	c.HorizonMinutes.Set(horizon.Minutes())

	return c
}

// ObserveSchedule implements departures.Metrics.
func (c *Collector) ObserveSchedule(mode departures.Mode, d time.Duration, candidates, records int) {
	m := mode.String()
	c.ScheduleDuration.WithLabelValues(m).Observe(d.Seconds())
	c.ScheduleCandidates.WithLabelValues(m).Observe(float64(candidates))
	c.ScheduleRecords.WithLabelValues(m).Observe(float64(records))
}

func (c *Collector) SourceErrorInc()  { c.SourceErrors.Inc() }
func (c *Collector) IterationCapInc() { c.IterationCaps.Inc() }

func (c *Collector) NATSPublishedInc()              { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()             { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }
func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

// RefreshObserve records one timetable reload.
func (c *Collector) RefreshObserve(d time.Duration, trips, vehicles int, err error) {
	c.RefreshDuration.Observe(d.Seconds())
	if err != nil {
		c.Refreshes.WithLabelValues("error").Inc()
		return
	}
	c.Refreshes.WithLabelValues("ok").Inc()
	c.Timetables.Set(float64(trips))
	c.Vehicles.Set(float64(vehicles))
}

func (c *Collector) DBSwitchInc(reason string) { c.DBSwitches.WithLabelValues(reason).Inc() }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, logger *logrus.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server error")
		}
	}()
	logger.WithField("addr", addr).Info("metrics listening")
	return srv
}
