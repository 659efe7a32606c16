// Package metrics exposes a small set of honeypot counters in Prometheus
// exposition format, without pulling in the full client library.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value.Add(1) }

// Value returns the current counter value.
func (c *Counter) Value() int64 { return c.value.Load() }

// Collector aggregates the named counters.
type Collector struct {
	mu        sync.RWMutex
	counters  map[string]*Counter
	startTime time.Time
}

func NewCollector() *Collector {
	return &Collector{
		counters:  make(map[string]*Counter),
		startTime: time.Now(),
	}
}

// Default is the process-wide collector.
var Default = NewCollector()

// Counter returns (registering if needed) the counter with the given name.
func (c *Collector) Counter(name, help string) *Counter {
	c.mu.RLock()
	ctr, ok := c.counters[name]
	c.mu.RUnlock()
	if ok {
		return ctr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ctr, ok := c.counters[name]; ok {
		return ctr
	}
	ctr = &Counter{name: name, help: help}
	c.counters[name] = ctr
	return ctr
}

// Uptime returns how long the collector has been running.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Handler serves the counters in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		c.mu.RLock()
		names := make([]string, 0, len(c.counters))
		for name := range c.counters {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			ctr := c.counters[name]
			fmt.Fprintf(w, "# HELP %s %s\n", ctr.name, ctr.help)
			fmt.Fprintf(w, "# TYPE %s counter\n", ctr.name)
			fmt.Fprintf(w, "%s %d\n", ctr.name, ctr.Value())
		}
		c.mu.RUnlock()

		fmt.Fprintf(w, "# HELP scamtrap_uptime_seconds Process uptime in seconds\n")
		fmt.Fprintf(w, "# TYPE scamtrap_uptime_seconds gauge\n")
		fmt.Fprintf(w, "scamtrap_uptime_seconds %.0f\n", c.Uptime().Seconds())
	})
}

// Honeypot counters, registered on the default collector.
var (
	MessagesTotal      = Default.Counter("scamtrap_messages_total", "Inbound messages processed")
	ScamsFlagged       = Default.Counter("scamtrap_scams_flagged_total", "Messages classified as scam attempts")
	ClassifierFallback = Default.Counter("scamtrap_classifier_fallbacks_total", "Classifications that failed open")
	PersonaFallback    = Default.Counter("scamtrap_persona_fallbacks_total", "Replies served from the fixed fallback")
	SessionsFinalized  = Default.Counter("scamtrap_sessions_finalized_total", "Sessions finalized and handed off")
	ReportsFailed      = Default.Counter("scamtrap_reports_failed_total", "Reporting handoffs that did not succeed")
)
