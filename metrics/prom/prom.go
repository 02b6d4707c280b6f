// Package prom exports querycache activity to Prometheus.
//
// Hooks turns hook events into counters; NewStatsCollector exposes a Cache's
// Stats at scrape time. Both are optional and independent:
//
//	reg := prometheus.NewRegistry()
//	hooks := prom.NewHooks(reg)
//	c, _ := querycache.New(querycache.Options{Hooks: hooks})
//	reg.MustRegister(prom.NewStatsCollector(c))
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/querycache"
)

const namespace = "querycache"

// Hooks implements querycache.Hooks with Prometheus counters.
type Hooks struct {
	evicted      prometheus.Counter
	expired      *prometheus.CounterVec
	fetchFailed  *prometheus.CounterVec
	remoteErrors *prometheus.CounterVec
	selfHeals    *prometheus.CounterVec
}

var _ querycache.Hooks = (*Hooks)(nil)

// NewHooks creates the counters and registers them with reg (nil => not registered).
func NewHooks(reg prometheus.Registerer) *Hooks {
	h := &Hooks{
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Entries evicted because the cache was full",
		}),
		expired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expirations_total",
			Help:      "Expired entries removed, by cause (read or sweep)",
		}, []string{"cause"}),
		fetchFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Fetch functions that returned an error",
		}, []string{"prefix"}),
		remoteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_errors_total",
			Help:      "Remote tier failures swallowed by GetOrFetch",
		}, []string{"op"}),
		selfHeals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_self_heals_total",
			Help:      "Invalid remote entries deleted on read",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(h.evicted, h.expired, h.fetchFailed, h.remoteErrors, h.selfHeals)
	}
	return h
}

func (h *Hooks) Evicted(string)                     { h.evicted.Inc() }
func (h *Hooks) Expired(_, cause string)            { h.expired.WithLabelValues(cause).Inc() }
func (h *Hooks) FetchFailed(prefix string, _ error) { h.fetchFailed.WithLabelValues(prefix).Inc() }
func (h *Hooks) RemoteError(op, _ string, _ error)  { h.remoteErrors.WithLabelValues(op).Inc() }
func (h *Hooks) RemoteSelfHeal(_, reason string)    { h.selfHeals.WithLabelValues(reason).Inc() }

// StatsSource is satisfied by *querycache.Cache.
type StatsSource interface {
	Stats() querycache.Stats
}

type statsCollector struct {
	src     StatsSource
	hits    *prometheus.Desc
	misses  *prometheus.Desc
	entries *prometheus.Desc
	hitRate *prometheus.Desc
}

// NewStatsCollector reports src.Stats() on every scrape. Hits and misses are
// counters that reset to zero on ClearAll.
func NewStatsCollector(src StatsSource) prometheus.Collector {
	return &statsCollector{
		src:     src,
		hits:    prometheus.NewDesc(namespace+"_hits_total", "Lookups that found a live entry", nil, nil),
		misses:  prometheus.NewDesc(namespace+"_misses_total", "Lookups that found no live entry", nil, nil),
		entries: prometheus.NewDesc(namespace+"_entries", "Entries currently stored, expired or not", nil, nil),
		hitRate: prometheus.NewDesc(namespace+"_hit_rate_percent", "Hit rate in percent, two decimals", nil, nil),
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.entries
	ch <- c.hitRate
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(st.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(st.Misses))
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(st.Size))
	ch <- prometheus.MustNewConstMetric(c.hitRate, prometheus.GaugeValue, st.HitRate)
}
