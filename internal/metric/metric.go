package metric

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Basic metrics
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobs3_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"method", "endpoint"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blobs3_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobs3_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)

	// Authorization metrics
	authorizationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobs3_authorization_decisions_total",
			Help: "Authorization decisions by access type and outcome",
		},
		[]string{"access", "outcome"},
	)

	ruleEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobs3_rule_evaluations_total",
			Help: "Candidate rule evaluations by authorization type and result",
		},
		[]string{"kind", "result"},
	)

	// Chain health metrics
	chainHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "blobs3_chain_healthy",
			Help: "1 when the chain is considered healthy, 0 otherwise",
		},
		[]string{"chain"},
	)

	chainLastBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "blobs3_chain_last_block",
			Help: "Last block height observed by the health monitor",
		},
		[]string{"chain"},
	)

	probeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blobs3_chain_probe_duration_seconds",
			Help:    "Duration of chain health probes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain"},
	)
)

type Server struct {
	conf *Config
	srv  *http.Server
}

type Config struct {
	Port int `default:"4014"`
}

func New(conf *Config) *Server {
	if conf == nil {
		conf = &Config{}
		envconfig.MustProcess("metric", conf)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		conf: conf,
		srv: &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", conf.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// RecordRequest records a request metric
func RecordRequest(method, endpoint string) {
	requestsTotal.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestDuration records the duration of a request
func RecordRequestDuration(method, endpoint string, duration time.Duration) {
	requestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}

// RecordAuthorization records the outcome of one authorize call
func RecordAuthorization(access, outcome string) {
	authorizationDecisions.WithLabelValues(access, outcome).Inc()
}

// RecordRuleEvaluation records what happened to one candidate rule
func RecordRuleEvaluation(kind, result string) {
	ruleEvaluations.WithLabelValues(kind, result).Inc()
}

// RecordChainHealth exports the latest health state of a chain
func RecordChainHealth(chain string, healthy bool, lastBlock uint64) {
	v := 0.0
	if healthy {
		v = 1
	}
	chainHealthy.WithLabelValues(chain).Set(v)
	chainLastBlock.WithLabelValues(chain).Set(float64(lastBlock))
}

// RecordProbeDuration records how long a chain probe took
func RecordProbeDuration(chain string, duration time.Duration) {
	probeDuration.WithLabelValues(chain).Observe(duration.Seconds())
}
