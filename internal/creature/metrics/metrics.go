package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics provides observability for the creature registry.
// Tracks record lifecycle counts, rejected merges and critical path durations.
type Metrics struct {
	RecordsMinted   prometheus.Counter
	RecordsMerged   prometheus.Counter
	RecordsRetired  prometheus.Counter
	MergeRejected   *prometheus.CounterVec
	MetadataCache   *prometheus.CounterVec
	Compensations   *prometheus.CounterVec
	MintDuration    prometheus.Histogram
	MergeDuration   prometheus.Histogram
	MergeFeeCurrent prometheus.Gauge
}

// New creates a Metrics instance registered on reg. Pass nil to use the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		RecordsMinted: factory.NewCounter(prometheus.CounterOpts{
			Name: "chimera_records_minted_total",
			Help: "Total number of records minted",
		}),
		RecordsMerged: factory.NewCounter(prometheus.CounterOpts{
			Name: "chimera_records_merged_total",
			Help: "Total number of successful merges",
		}),
		RecordsRetired: factory.NewCounter(prometheus.CounterOpts{
			Name: "chimera_records_retired_total",
			Help: "Total number of records burned as merge parents",
		}),
		MergeRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chimera_merge_rejected_total",
			Help: "Merges rejected before any mutation, by error code",
		}, []string{"code"}),
		MetadataCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chimera_metadata_cache_requests_total",
			Help: "Metadata cache lookups by result (hit/miss)",
		}, []string{"result"}),
		Compensations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chimera_compensations_total",
			Help: "Collaborator side effects undone after a failed operation, by outcome",
		}, []string{"outcome"}),
		MintDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chimera_mint_duration_seconds",
			Help:    "Duration of Mint operations",
			Buckets: latencyBuckets,
		}),
		MergeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chimera_merge_duration_seconds",
			Help:    "Duration of Merge operations including validation",
			Buckets: latencyBuckets,
		}),
		MergeFeeCurrent: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chimera_merge_fee",
			Help: "Merge fee currently in force",
		}),
	}
}

func (m *Metrics) IncrementMinted() {
	m.RecordsMinted.Inc()
}

// IncrementMerged records one merge, which also retires two parents.
func (m *Metrics) IncrementMerged() {
	m.RecordsMerged.Inc()
	m.RecordsRetired.Add(2)
}

func (m *Metrics) IncrementMergeRejected(code string) {
	m.MergeRejected.WithLabelValues(code).Inc()
}

func (m *Metrics) IncrementCacheHit() {
	m.MetadataCache.WithLabelValues("hit").Inc()
}

func (m *Metrics) IncrementCacheMiss() {
	m.MetadataCache.WithLabelValues("miss").Inc()
}

func (m *Metrics) IncrementCompensation(outcome string) {
	m.Compensations.WithLabelValues(outcome).Inc()
}

// ObserveMint records the duration of a Mint operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveMint(start time.Time) {
	m.MintDuration.Observe(time.Since(start).Seconds())
}

// ObserveMerge records the duration of a Merge operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveMerge(start time.Time) {
	m.MergeDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetMergeFee(fee uint64) {
	m.MergeFeeCurrent.Set(float64(fee))
}
