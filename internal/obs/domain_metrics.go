package obs

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteCalculationsTotal counts engine runs by operation and outcome.
	QuoteCalculationsTotal *prometheus.CounterVec
	// QuoteCalculationDuration records engine run latency in milliseconds.
	QuoteCalculationDuration *prometheus.HistogramVec
	// QuoteVersionsTotal counts persisted quote versions by trigger.
	QuoteVersionsTotal *prometheus.CounterVec
	// QuoteCacheTotal counts preview cache lookups by outcome.
	QuoteCacheTotal *prometheus.CounterVec
	// QuoteWarningsTotal counts emitted validation warnings by code.
	QuoteWarningsTotal *prometheus.CounterVec
	// RecalculationJobsTotal counts background recalculation task outcomes.
	RecalculationJobsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteCalculationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_calculations_total",
			Help:      "Count of quote calculations by operation and outcome.",
		}, []string{"operation", "result"})
		QuoteCalculationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_calculation_duration_ms",
			Help:      "Quote calculation latency in milliseconds.",
			Buckets:   []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"operation"})
		QuoteVersionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_versions_total",
			Help:      "Count of persisted quote versions.",
		}, []string{"trigger"})
		QuoteCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_cache_total",
			Help:      "Count of quote preview cache lookups by outcome.",
		}, []string{"result"})
		QuoteWarningsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_warnings_total",
			Help:      "Count of validation warnings attached to quote results.",
		}, []string{"code"})
		RecalculationJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_recalculation_jobs_total",
			Help:      "Count of background recalculation task outcomes.",
		}, []string{"result"})

		for _, c := range []**prometheus.CounterVec{&QuoteCalculationsTotal, &QuoteVersionsTotal, &QuoteCacheTotal, &QuoteWarningsTotal, &RecalculationJobsTotal} {
			target := c
			mustRegisterCollector(reg, *target, func(existing prometheus.Collector) {
				if v, ok := existing.(*prometheus.CounterVec); ok {
					*target = v
				}
			})
		}
		mustRegisterCollector(reg, QuoteCalculationDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				QuoteCalculationDuration = v
			}
		})
	})
}

// ObserveCalculation records one engine run. It is a no-op before registration.
func ObserveCalculation(operation, result string, d time.Duration) {
	if QuoteCalculationsTotal != nil {
		QuoteCalculationsTotal.WithLabelValues(operation, result).Inc()
	}
	if QuoteCalculationDuration != nil {
		QuoteCalculationDuration.WithLabelValues(operation).Observe(DurationMillis(d))
	}
}

// ObserveVersion records a persisted version.
func ObserveVersion(trigger string) {
	if QuoteVersionsTotal != nil {
		QuoteVersionsTotal.WithLabelValues(trigger).Inc()
	}
}

// ObserveCache records a preview cache lookup.
func ObserveCache(result string) {
	if QuoteCacheTotal != nil {
		QuoteCacheTotal.WithLabelValues(result).Inc()
	}
}

// ObserveWarnings records each warning code once per occurrence.
func ObserveWarnings(codes []string) {
	if QuoteWarningsTotal == nil {
		return
	}
	for _, code := range codes {
		QuoteWarningsTotal.WithLabelValues(code).Inc()
	}
}

// ObserveJob records a recalculation task outcome.
func ObserveJob(result string) {
	if RecalculationJobsTotal != nil {
		RecalculationJobsTotal.WithLabelValues(result).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
