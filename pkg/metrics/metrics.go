// Copyright 2025 Takhin Data, Inc.

package metrics

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamcap/throttle/pkg/config"
	"github.com/streamcap/throttle/pkg/logger"
)

var (
	// Throttle group metrics
	BytesProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamcap_bytes_processed_total",
			Help: "Total bytes emitted across all throttles in the group",
		},
	)

	InFlightStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamcap_in_flight_streams",
			Help: "Number of throttles currently in flight (producing or draining buffered bytes)",
		},
	)

	BytesPerSecondConfigured = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamcap_bytes_per_second_configured",
			Help: "Currently configured aggregate byte budget",
		},
	)

	ThroughputUtilization = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamcap_throughput_utilization_ratio",
			Help: "Sampled utilization of the configured byte budget, 0 to 1",
		},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streamcap_tick_duration_seconds",
			Help:    "Wall time spent processing a single group tick",
			Buckets: []float64{.00005, .0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	StreamsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamcap_streams_created_total",
			Help: "Total throttles ever created on the group",
		},
	)

	StreamsAbortedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamcap_streams_aborted_total",
			Help: "Total throttles aborted, by reason",
		},
		[]string{"reason"},
	)

	BufferOverflowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamcap_buffer_overflows_total",
			Help: "Total times a throttle's pending buffer overflowed maxBufferSize",
		},
	)

	// Governor metrics
	GovernorRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamcap_governor_rate_bytes_per_second",
			Help: "The governor's last-applied byte budget",
		},
	)

	GovernorAdjustmentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamcap_governor_adjustments_total",
			Help: "Total number of times the governor changed the shared byte budget",
		},
	)

	// Admin API metrics
	AdminAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamcap_admin_api_requests_total",
			Help: "Total admin API requests by route and status code",
		},
		[]string{"route", "status"},
	)

	AdminAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamcap_admin_api_request_duration_seconds",
			Help:    "Admin API request duration in seconds by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	AdminAPIStreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamcap_admin_api_stream_clients",
			Help: "Number of websocket clients subscribed to the live metrics stream",
		},
	)

	// Go runtime metrics, grounded on the retrieval pack's own runtime
	// collector goroutine.
	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamcap_go_goroutines",
			Help: "Number of goroutines",
		},
	)

	GoThreads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamcap_go_threads",
			Help: "GOMAXPROCS: maximum number of OS threads executing Go code simultaneously",
		},
	)

	GoMemAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamcap_go_mem_alloc_bytes",
			Help: "Bytes of allocated heap objects",
		},
	)

	GoMemTotalAllocBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamcap_go_mem_total_alloc_bytes",
			Help: "Cumulative bytes allocated for heap objects",
		},
	)

	GoMemSysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamcap_go_mem_sys_bytes",
			Help: "Total bytes of memory obtained from the OS",
		},
	)

	GoMemHeapAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamcap_go_mem_heap_alloc_bytes",
			Help: "Bytes of allocated heap objects",
		},
	)

	GoMemHeapIdleBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamcap_go_mem_heap_idle_bytes",
			Help: "Bytes in idle heap spans",
		},
	)

	GoMemHeapInuseBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamcap_go_mem_heap_inuse_bytes",
			Help: "Bytes in in-use heap spans",
		},
	)

	GoGCPauseSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streamcap_go_gc_pause_seconds",
			Help:    "GC pause duration in seconds",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	GoGCTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamcap_go_gc_total",
			Help: "Total number of GC runs",
		},
	)
)

// Server hosts the Prometheus scrape endpoint on its own listener,
// separate from the admin API, the way the retrieval pack keeps metrics
// on a dedicated port rather than folding it into the operator API.
type Server struct {
	config      *config.Config
	logger      *logger.Logger
	server      *http.Server
	stopChan    chan struct{}
	lastNumGC   uint32
}

func New(cfg *config.Config) *Server {
	return &Server{
		config:   cfg,
		logger:   logger.Default().WithComponent("metrics"),
		stopChan: make(chan struct{}),
	}
}

func (s *Server) Start() error {
	if !s.config.Metrics.Enabled {
		s.logger.Info("metrics server disabled")
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.config.Metrics.Host, s.config.Metrics.Port)

	mux := http.NewServeMux()
	mux.Handle(s.config.Metrics.Path, promhttp.Handler())

	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	s.logger.Info("starting metrics server",
		"address", addr,
		"path", s.config.Metrics.Path,
	)

	go s.collectRuntimeMetrics()

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

func (s *Server) collectRuntimeMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	var lastTotalAlloc uint64
	for {
		select {
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			GoRoutines.Set(float64(runtime.NumGoroutine()))
			GoThreads.Set(float64(runtime.GOMAXPROCS(0)))

			GoMemAllocBytes.Set(float64(m.Alloc))
			if m.TotalAlloc > lastTotalAlloc {
				GoMemTotalAllocBytes.Add(float64(m.TotalAlloc - lastTotalAlloc))
				lastTotalAlloc = m.TotalAlloc
			}
			GoMemSysBytes.Set(float64(m.Sys))
			GoMemHeapAllocBytes.Set(float64(m.HeapAlloc))
			GoMemHeapIdleBytes.Set(float64(m.HeapIdle))
			GoMemHeapInuseBytes.Set(float64(m.HeapInuse))

			if m.NumGC > s.lastNumGC {
				for i := s.lastNumGC; i < m.NumGC; i++ {
					pause := m.PauseNs[i%256]
					GoGCPauseSeconds.Observe(float64(pause) / 1e9)
					GoGCTotal.Inc()
				}
				s.lastNumGC = m.NumGC
			}

		case <-s.stopChan:
			return
		}
	}
}

func (s *Server) Stop() error {
	close(s.stopChan)
	if s.server != nil {
		s.logger.Info("stopping metrics server")
		return s.server.Close()
	}
	return nil
}
