package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var totalLaunches atomic.Int64

var (
	KernelLaunchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bodkin_kernel_launches_total",
		Help: "Total number of kernel launches by kernel name",
	}, []string{"kernel"})

	KernelDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bodkin_kernel_duration_seconds",
		Help:    "Histogram of kernel execution times",
		Buckets: prometheus.DefBuckets,
	}, []string{"kernel"})

	KernelElementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bodkin_kernel_elements_total",
		Help: "Total number of tensor elements moved by kernel name",
	}, []string{"kernel"})

	ScratchAllocatedBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bodkin_scratch_allocated_bytes",
		Help: "Total bytes physically allocated by the scratch allocator",
	})

	ScratchBuffersInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bodkin_scratch_buffers_in_use",
		Help: "Number of scratch buffers currently leased",
	})

	ScratchBuffersTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bodkin_scratch_buffers_tracked",
		Help: "Number of scratch buffers tracked (free + leased)",
	})

	TransposeCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bodkin_transpose_cache_hits_total",
		Help: "Transpose cache lookups served from a cached buffer",
	})

	TransposeCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bodkin_transpose_cache_misses_total",
		Help: "Transpose cache lookups that required compute or returned nothing",
	})

	ContractViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bodkin_contract_violations_total",
		Help: "Rejected launches by operation and violation type",
	}, []string{"operation", "violation"})

	AbsmaxUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bodkin_absmax_updates_total",
		Help: "Number of kernel launches that folded into an absmax slot",
	})
)

func RecordLaunch(kernel string, elements int, duration time.Duration) {
	totalLaunches.Add(1)
	KernelLaunchesTotal.WithLabelValues(kernel).Inc()
	KernelElementsTotal.WithLabelValues(kernel).Add(float64(elements))
	KernelDuration.WithLabelValues(kernel).Observe(duration.Seconds())
}

func RecordScratchMemory(allocatedBytes int64, inUse, tracked int) {
	ScratchAllocatedBytes.Set(float64(allocatedBytes))
	ScratchBuffersInUse.Set(float64(inUse))
	ScratchBuffersTracked.Set(float64(tracked))
}

func RecordCacheLookup(hit bool) {
	if hit {
		TransposeCacheHits.Inc()
	} else {
		TransposeCacheMisses.Inc()
	}
}

func RecordContractViolation(operation, violation string) {
	ContractViolations.WithLabelValues(operation, violation).Inc()
}

func RecordAbsmaxUpdate() {
	AbsmaxUpdatesTotal.Inc()
}

// TotalLaunches returns the process-wide launch count. Tests use it to
// verify that cache hits do not relaunch kernels.
func TotalLaunches() int64 {
	return totalLaunches.Load()
}
