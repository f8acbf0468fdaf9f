package metrics

import "github.com/prometheus/client_golang/prometheus"

// PricingMetrics tracks the trend cache and price appends.
type PricingMetrics struct {
	cache   *prometheus.CounterVec
	appends prometheus.Counter
}

func NewPricingMetrics(reg prometheus.Registerer) *PricingMetrics {
	if reg == nil {
		return &PricingMetrics{}
	}
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trend_cache_requests_total",
		Help:      "Trend cache lookups by result (hit, miss, error).",
	}, []string{"result"})
	appends := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_observations_appended_total",
		Help:      "Price observations appended to listing histories.",
	})
	reg.MustRegister(cache, appends)
	return &PricingMetrics{cache: cache, appends: appends}
}

func (m *PricingMetrics) CacheHit()   { m.cacheResult("hit") }
func (m *PricingMetrics) CacheMiss()  { m.cacheResult("miss") }
func (m *PricingMetrics) CacheError() { m.cacheResult("error") }

func (m *PricingMetrics) cacheResult(result string) {
	if m == nil || m.cache == nil {
		return
	}
	m.cache.WithLabelValues(result).Inc()
}

// IncAppended counts one appended observation.
func (m *PricingMetrics) IncAppended() {
	if m == nil || m.appends == nil {
		return
	}
	m.appends.Inc()
}
